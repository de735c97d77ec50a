package server

import (
	"log"
	"slices"
	"time"

	"github.com/amalg/go-robots/internal/game"
	"github.com/amalg/go-robots/internal/protocol"
)

// randomPosition draws one grid cell. The generator is consumed strictly
// in the order {initial player positions, initial blocks, respawns}, so
// equal seeds replay bit-identically.
func (s *Server) randomPosition() protocol.Position {
	x := uint16(s.rng.Next() % uint32(s.cfg.SizeX))
	y := uint16(s.rng.Next() % uint32(s.cfg.SizeY))
	return protocol.Position{X: x, Y: y}
}

// startGameLocked transitions LOBBY→GAME: announces the roster, rolls the
// initial world and broadcasts it as Turn 0, then arms the turn clock.
func (s *Server) startGameLocked() {
	s.phase = phaseGame
	log.Printf("[SERVER] lobby full, starting game with %d players", len(s.state.Players))

	s.broadcastAndLogLocked(protocol.GameStarted{Players: s.state.Players})

	var events []protocol.Event
	for _, id := range sortedPlayerIDs(s.state.Players) {
		pos := s.randomPosition()
		s.state.PlayerToPosition[id] = pos
		s.state.Scores[id] = 0
		events = append(events, protocol.PlayerMoved{PlayerID: id, Position: pos})
	}
	for i := uint16(0); i < s.cfg.InitialBlocks; i++ {
		pos := s.randomPosition()
		s.state.Blocks[pos] = true
		// The event is emitted even when the draw repeats a cell; the
		// block set dedups on its own.
		events = append(events, protocol.BlockPlaced{Position: pos})
	}

	s.state.Turn = 0
	s.broadcastAndLogLocked(protocol.Turn{Turn: 0, Events: events})

	go s.runTurns()
}

// runTurns drives the turn clock on absolute deadlines: each deadline is
// the previous one plus the turn duration, so slow handlers do not drift
// the schedule — an overrun just fires the next turn immediately.
func (s *Server) runTurns() {
	deadline := time.Now().Add(s.cfg.TurnDuration)
	timer := time.NewTimer(s.cfg.TurnDuration)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-timer.C:
		}
		if !s.processTurn() {
			return
		}
		deadline = deadline.Add(s.cfg.TurnDuration)
		timer.Reset(time.Until(deadline))
	}
}

// processTurn runs one full simulation turn and broadcasts it. Returns
// false once the game has ended and the clock should stop.
func (s *Server) processTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != phaseGame {
		return false
	}

	robotsDestroyed := make(map[uint8]bool)
	var events []protocol.Event

	events = s.explodeBombsLocked(robotsDestroyed, events)
	events = s.applyInputsLocked(robotsDestroyed, events)

	for _, id := range sortedDestroyed(robotsDestroyed) {
		s.state.Scores[id]++
	}

	s.inputs = make(map[uint8]protocol.ClientMessage)
	s.state.Turn++
	s.broadcastAndLogLocked(protocol.Turn{Turn: s.state.Turn, Events: events})

	if s.state.Turn == s.cfg.GameLength {
		s.endGameLocked()
		return false
	}
	return true
}

// explodeBombsLocked decrements every bomb and resolves the ones reaching
// zero. Footprints are computed against the block set as it stood at the
// start of the turn: blocks are only erased after every bomb has been
// evaluated, so two bombs sharing a block both report it destroyed.
func (s *Server) explodeBombsLocked(robotsDestroyed map[uint8]bool, events []protocol.Event) []protocol.Event {
	blocksDestroyed := make(map[protocol.Position]bool)
	playerIDs := sortedPlayerIDs(s.state.Players)

	var exploded []uint32
	for _, bombID := range sortedBombIDs(s.state.Bombs) {
		bomb := s.state.Bombs[bombID]
		bomb.Timer--
		s.state.Bombs[bombID] = bomb
		if bomb.Timer != 0 {
			continue
		}
		exploded = append(exploded, bombID)

		footprint := game.ExplosionRange(bomb.Position, s.cfg.ExplosionRadius, s.cfg.SizeX, s.cfg.SizeY, s.state.Blocks)
		event := protocol.BombExploded{BombID: bombID}
		for _, id := range playerIDs {
			if footprint[s.state.PlayerToPosition[id]] {
				event.RobotsDestroyed = append(event.RobotsDestroyed, id)
				robotsDestroyed[id] = true
			}
		}
		for pos := range footprint {
			if s.state.Blocks[pos] {
				event.BlocksDestroyed = append(event.BlocksDestroyed, pos)
				blocksDestroyed[pos] = true
			}
		}
		sortPositions(event.BlocksDestroyed)
		events = append(events, event)
	}

	for _, bombID := range exploded {
		delete(s.state.Bombs, bombID)
	}
	for pos := range blocksDestroyed {
		delete(s.state.Blocks, pos)
	}
	return events
}

// applyInputsLocked handles each player in ascending id order: destroyed
// robots respawn at a fresh random cell and their buffered input is
// ignored; everyone else gets their single buffered action applied.
func (s *Server) applyInputsLocked(robotsDestroyed map[uint8]bool, events []protocol.Event) []protocol.Event {
	for _, id := range sortedPlayerIDs(s.state.Players) {
		if robotsDestroyed[id] {
			pos := s.randomPosition()
			s.state.PlayerToPosition[id] = pos
			events = append(events, protocol.PlayerMoved{PlayerID: id, Position: pos})
			continue
		}

		msg, ok := s.inputs[id]
		if !ok {
			continue
		}
		switch msg := msg.(type) {
		case protocol.PlaceBomb:
			bombID := s.state.NextBombID
			s.state.NextBombID++
			pos := s.state.PlayerToPosition[id]
			s.state.Bombs[bombID] = protocol.Bomb{Position: pos, Timer: s.cfg.BombTimer}
			events = append(events, protocol.BombPlaced{BombID: bombID, Position: pos})
		case protocol.PlaceBlock:
			pos := s.state.PlayerToPosition[id]
			if !s.state.Blocks[pos] {
				s.state.Blocks[pos] = true
				events = append(events, protocol.BlockPlaced{Position: pos})
			}
		case protocol.Move:
			if pos, ok := s.moveTarget(s.state.PlayerToPosition[id], msg.Direction); ok {
				s.state.PlayerToPosition[id] = pos
				events = append(events, protocol.PlayerMoved{PlayerID: id, Position: pos})
			}
		case protocol.Join:
			// Joins are meaningless mid-game.
		}
	}
	return events
}

// moveTarget resolves one step. Up is y+1, Down is y-1. A step off the
// grid or into a block is refused.
func (s *Server) moveTarget(pos protocol.Position, dir protocol.Direction) (protocol.Position, bool) {
	x, y := int(pos.X), int(pos.Y)
	switch dir {
	case protocol.DirUp:
		y++
	case protocol.DirRight:
		x++
	case protocol.DirDown:
		y--
	case protocol.DirLeft:
		x--
	}
	if x < 0 || y < 0 || x >= int(s.cfg.SizeX) || y >= int(s.cfg.SizeY) {
		return protocol.Position{}, false
	}
	target := protocol.Position{X: uint16(x), Y: uint16(y)}
	if s.state.Blocks[target] {
		return protocol.Position{}, false
	}
	return target, true
}

// endGameLocked transitions GAME→LOBBY: final scores go out, then every
// piece of per-game state is cleared. Connections stay open and their
// peers may Join the next game.
func (s *Server) endGameLocked() {
	log.Printf("[SERVER] game over after %d turns", s.state.Turn)
	s.broadcastLocked(protocol.GameEnded{Scores: s.state.Scores})

	s.phase = phaseLobby
	s.state.Reset()
	s.inputs = make(map[uint8]protocol.ClientMessage)
	s.replayLog = nil
	s.nextPlayerID = 0
	for _, c := range s.conns {
		c.player = -1
	}
}

func sortedPlayerIDs(players map[uint8]protocol.Player) []uint8 {
	ids := make([]uint8, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortedDestroyed(destroyed map[uint8]bool) []uint8 {
	ids := make([]uint8, 0, len(destroyed))
	for id := range destroyed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortedBombIDs(bombs map[uint32]protocol.Bomb) []uint32 {
	ids := make([]uint32, 0, len(bombs))
	for id := range bombs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortPositions(positions []protocol.Position) {
	slices.SortFunc(positions, func(a, b protocol.Position) int {
		if a.X != b.X {
			return int(a.X) - int(b.X)
		}
		return int(a.Y) - int(b.Y)
	})
}
