package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
)

// writer builds one encoded message in a contiguous buffer. All integers
// are big-endian; containers are prefixed by their length field.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) str(s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("string of %d bytes exceeds wire limit %d", len(s), MaxStringLen)
	}
	w.u8(uint8(len(s)))
	w.buf.WriteString(s)
	return nil
}

func (w *writer) position(p Position) {
	w.u16(p.X)
	w.u16(p.Y)
}

func (w *writer) player(p Player) error {
	if err := w.str(p.Name); err != nil {
		return err
	}
	return w.str(p.Address)
}

func (w *writer) bomb(b Bomb) {
	w.position(b.Position)
	w.u16(b.Timer)
}

func (w *writer) players(m map[uint8]Player) error {
	w.u32(uint32(len(m)))
	for _, id := range sortedIDs(m) {
		w.u8(id)
		if err := w.player(m[id]); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) scores(m map[uint8]uint32) {
	w.u32(uint32(len(m)))
	for _, id := range sortedIDs(m) {
		w.u8(id)
		w.u32(m[id])
	}
}

func (w *writer) event(e Event) {
	switch e := e.(type) {
	case BombPlaced:
		w.u8(tagBombPlaced)
		w.u32(e.BombID)
		w.position(e.Position)
	case BombExploded:
		w.u8(tagBombExploded)
		w.u32(e.BombID)
		w.u32(uint32(len(e.RobotsDestroyed)))
		for _, id := range e.RobotsDestroyed {
			w.u8(id)
		}
		w.u32(uint32(len(e.BlocksDestroyed)))
		for _, p := range e.BlocksDestroyed {
			w.position(p)
		}
	case PlayerMoved:
		w.u8(tagPlayerMoved)
		w.u8(e.PlayerID)
		w.position(e.Position)
	case BlockPlaced:
		w.u8(tagBlockPlaced)
		w.position(e.Position)
	}
}

// sortedIDs returns the map's keys in ascending order. Maps are always
// serialized in key order so that identical state produces identical bytes.
func sortedIDs[V any](m map[uint8]V) []uint8 {
	ids := make([]uint8, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EncodeClientMessage serializes a client→server message.
func EncodeClientMessage(m ClientMessage) ([]byte, error) {
	var w writer
	switch m := m.(type) {
	case Join:
		w.u8(tagJoin)
		if err := w.str(m.Name); err != nil {
			return nil, err
		}
	case PlaceBomb:
		w.u8(tagPlaceBomb)
	case PlaceBlock:
		w.u8(tagPlaceBlock)
	case Move:
		w.u8(tagMove)
		w.u8(uint8(m.Direction))
	}
	return w.buf.Bytes(), nil
}

// EncodeInputMessage serializes a GUI→client message. The input family
// shares its tags with the client→server PlaceBomb/PlaceBlock/Move codes.
func EncodeInputMessage(m InputMessage) []byte {
	var w writer
	switch m := m.(type) {
	case PlaceBomb:
		w.u8(tagPlaceBomb)
	case PlaceBlock:
		w.u8(tagPlaceBlock)
	case Move:
		w.u8(tagMove)
		w.u8(uint8(m.Direction))
	}
	return w.buf.Bytes()
}

// EncodeServerMessage serializes a server→client message.
func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	var w writer
	switch m := m.(type) {
	case Hello:
		w.u8(tagHello)
		if err := w.str(m.ServerName); err != nil {
			return nil, err
		}
		w.u8(m.PlayersCount)
		w.u16(m.SizeX)
		w.u16(m.SizeY)
		w.u16(m.GameLength)
		w.u16(m.ExplosionRadius)
		w.u16(m.BombTimer)
	case AcceptedPlayer:
		w.u8(tagAcceptedPlayer)
		w.u8(m.PlayerID)
		if err := w.player(m.Player); err != nil {
			return nil, err
		}
	case GameStarted:
		w.u8(tagGameStarted)
		if err := w.players(m.Players); err != nil {
			return nil, err
		}
	case Turn:
		w.u8(tagTurn)
		w.u16(m.Turn)
		w.u32(uint32(len(m.Events)))
		for _, e := range m.Events {
			w.event(e)
		}
	case GameEnded:
		w.u8(tagGameEnded)
		w.scores(m.Scores)
	}
	return w.buf.Bytes(), nil
}

// EncodeDrawMessage serializes a client→GUI message into one datagram.
func EncodeDrawMessage(m DrawMessage) ([]byte, error) {
	var w writer
	switch m := m.(type) {
	case Lobby:
		w.u8(tagLobby)
		if err := w.str(m.ServerName); err != nil {
			return nil, err
		}
		w.u8(m.PlayersCount)
		w.u16(m.SizeX)
		w.u16(m.SizeY)
		w.u16(m.GameLength)
		w.u16(m.ExplosionRadius)
		w.u16(m.BombTimer)
		if err := w.players(m.Players); err != nil {
			return nil, err
		}
	case Game:
		w.u8(tagGame)
		if err := w.str(m.ServerName); err != nil {
			return nil, err
		}
		w.u16(m.SizeX)
		w.u16(m.SizeY)
		w.u16(m.GameLength)
		w.u16(m.Turn)
		if err := w.players(m.Players); err != nil {
			return nil, err
		}
		w.u32(uint32(len(m.PlayerPositions)))
		for _, id := range sortedIDs(m.PlayerPositions) {
			w.u8(id)
			w.position(m.PlayerPositions[id])
		}
		w.u32(uint32(len(m.Blocks)))
		for _, p := range m.Blocks {
			w.position(p)
		}
		w.u32(uint32(len(m.Bombs)))
		for _, b := range m.Bombs {
			w.bomb(b)
		}
		w.u32(uint32(len(m.Explosions)))
		for _, p := range m.Explosions {
			w.position(p)
		}
		w.scores(m.Scores)
	}
	return w.buf.Bytes(), nil
}
