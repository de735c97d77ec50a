package client

import (
	"slices"

	"github.com/amalg/go-robots/internal/protocol"
)

// Draw construction snapshots the mirror, so a message stays valid after
// later events mutate the state it was built from.

func (c *Client) lobbyDrawLocked() protocol.Lobby {
	return protocol.Lobby{
		ServerName:      c.hello.ServerName,
		PlayersCount:    c.hello.PlayersCount,
		SizeX:           c.hello.SizeX,
		SizeY:           c.hello.SizeY,
		GameLength:      c.hello.GameLength,
		ExplosionRadius: c.hello.ExplosionRadius,
		BombTimer:       c.hello.BombTimer,
		Players:         copyMap(c.mirror.Players),
	}
}

func (c *Client) gameDrawLocked(turn uint16, explosions []protocol.Position) protocol.Game {
	blocks := make([]protocol.Position, 0, len(c.mirror.Blocks))
	for pos := range c.mirror.Blocks {
		blocks = append(blocks, pos)
	}
	sortPositions(blocks)

	bombIDs := make([]uint32, 0, len(c.mirror.Bombs))
	for id := range c.mirror.Bombs {
		bombIDs = append(bombIDs, id)
	}
	slices.Sort(bombIDs)
	bombs := make([]protocol.Bomb, 0, len(bombIDs))
	for _, id := range bombIDs {
		bombs = append(bombs, c.mirror.Bombs[id])
	}

	return protocol.Game{
		ServerName:      c.hello.ServerName,
		SizeX:           c.hello.SizeX,
		SizeY:           c.hello.SizeY,
		GameLength:      c.hello.GameLength,
		Turn:            turn,
		Players:         copyMap(c.mirror.Players),
		PlayerPositions: copyMap(c.mirror.PlayerToPosition),
		Blocks:          blocks,
		Bombs:           bombs,
		Explosions:      explosions,
		Scores:          copyMap(c.mirror.Scores),
	}
}

func copyMap[V any](m map[uint8]V) map[uint8]V {
	out := make(map[uint8]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortPositions(positions []protocol.Position) {
	slices.SortFunc(positions, func(a, b protocol.Position) int {
		if a.X != b.X {
			return int(a.X) - int(b.X)
		}
		return int(a.Y) - int(b.Y)
	})
}
