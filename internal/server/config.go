package server

import (
	"fmt"
	"time"

	"github.com/amalg/go-robots/internal/protocol"
)

// Config holds the operator parameters for one server run. All fields
// except Seed are required; Seed defaults to wall-clock seconds in main.
type Config struct {
	ServerName      string
	Port            uint16
	BombTimer       uint16
	PlayersCount    uint8
	TurnDuration    time.Duration
	ExplosionRadius uint16
	InitialBlocks   uint16
	GameLength      uint16
	SizeX           uint16
	SizeY           uint16
	Seed            uint32
}

// Validate rejects configurations the protocol or the simulation cannot
// represent.
func (c Config) Validate() error {
	if len(c.ServerName) > protocol.MaxStringLen {
		return fmt.Errorf("server name of %d bytes exceeds %d", len(c.ServerName), protocol.MaxStringLen)
	}
	if c.PlayersCount == 0 {
		return fmt.Errorf("players count must be at least 1")
	}
	if c.SizeX == 0 || c.SizeY == 0 {
		return fmt.Errorf("grid size %dx%d is empty", c.SizeX, c.SizeY)
	}
	if c.GameLength == 0 {
		return fmt.Errorf("game length must be at least 1 turn")
	}
	if c.BombTimer == 0 {
		return fmt.Errorf("bomb timer must be at least 1 turn")
	}
	if c.TurnDuration <= 0 {
		return fmt.Errorf("turn duration must be positive")
	}
	return nil
}

func (c Config) hello() protocol.Hello {
	return protocol.Hello{
		ServerName:      c.ServerName,
		PlayersCount:    c.PlayersCount,
		SizeX:           c.SizeX,
		SizeY:           c.SizeY,
		GameLength:      c.GameLength,
		ExplosionRadius: c.ExplosionRadius,
		BombTimer:       c.BombTimer,
	}
}
