package game

import "github.com/amalg/go-robots/internal/protocol"

// State is the full grid-world state. The server owns the authoritative
// copy; the client keeps a mirror rebuilt from the server's events.
// Concurrency protection is the owner's job, not this struct's.
type State struct {
	Players          map[uint8]protocol.Player
	PlayerToPosition map[uint8]protocol.Position
	Blocks           map[protocol.Position]bool
	Bombs            map[uint32]protocol.Bomb
	Scores           map[uint8]uint32
	Turn             uint16
	NextBombID       uint32
}

// NewState returns an empty state.
func NewState() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset clears everything back to the empty lobby state.
func (s *State) Reset() {
	s.Players = make(map[uint8]protocol.Player)
	s.PlayerToPosition = make(map[uint8]protocol.Position)
	s.Blocks = make(map[protocol.Position]bool)
	s.Bombs = make(map[uint32]protocol.Bomb)
	s.Scores = make(map[uint8]uint32)
	s.Turn = 0
	s.NextBombID = 0
}
