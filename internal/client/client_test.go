package client

import (
	"reflect"
	"testing"

	"github.com/amalg/go-robots/internal/protocol"
)

// testClient captures both outbound streams instead of touching sockets.
type testClient struct {
	*Client
	toServer []protocol.ClientMessage
	draws    []protocol.DrawMessage
}

func newTestClient(name string) *testClient {
	tc := &testClient{}
	tc.Client = newClient(Config{
		ServerEndpoint: "localhost:2000",
		GUIEndpoint:    "localhost:2001",
		PlayerName:     name,
		Port:           2002,
	})
	tc.sendServer = func(m protocol.ClientMessage) { tc.toServer = append(tc.toServer, m) }
	tc.sendDraw = func(m protocol.DrawMessage) { tc.draws = append(tc.draws, m) }
	return tc
}

func testHello() protocol.Hello {
	return protocol.Hello{
		ServerName:      "srv",
		PlayersCount:    2,
		SizeX:           10,
		SizeY:           10,
		GameLength:      50,
		ExplosionRadius: 2,
		BombTimer:       3,
	}
}

func TestSplitEndpoint(t *testing.T) {
	cases := []struct {
		in, host, port string
	}{
		{"example.org:1234", "example.org", "1234"},
		{"127.0.0.1:80", "127.0.0.1", "80"},
		{"[::1]:9999", "::1", "9999"},
		{"2001:db8::7:443", "2001:db8::7", "443"},
	}
	for _, c := range cases {
		host, port, err := splitEndpoint(c.in)
		if err != nil {
			t.Errorf("split %q: %v", c.in, err)
			continue
		}
		if host != c.host || port != c.port {
			t.Errorf("split %q = (%q, %q), want (%q, %q)", c.in, host, port, c.host, c.port)
		}
	}
	for _, bad := range []string{"", "nohost", "onlyhost:", ":1234"} {
		if _, _, err := splitEndpoint(bad); err == nil {
			t.Errorf("split %q should fail", bad)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{
		ServerEndpoint: "srv:1",
		GUIEndpoint:    "gui:2",
		PlayerName:     "p",
		Port:           3,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	cfg.PlayerName = string(make([]byte, 256))
	if err := cfg.Validate(); err == nil {
		t.Error("oversize player name accepted")
	}
}

func TestLobbyInputsCollapseIntoOneJoin(t *testing.T) {
	tc := newTestClient("alice")
	tc.handleServerMessage(testHello())

	tc.handleInput(protocol.Move{Direction: protocol.DirLeft})
	tc.handleInput(protocol.PlaceBomb{})
	tc.handleInput(protocol.PlaceBlock{})

	want := []protocol.ClientMessage{protocol.Join{Name: "alice"}}
	if !reflect.DeepEqual(tc.toServer, want) {
		t.Errorf("outbound = %#v, want a single Join", tc.toServer)
	}

	// A fresh Hello opens a new epoch and a new Join.
	tc.handleServerMessage(testHello())
	tc.handleInput(protocol.PlaceBomb{})
	if len(tc.toServer) != 2 {
		t.Errorf("outbound after second Hello = %#v, want two Joins", tc.toServer)
	}
}

func TestHelloDrawsLobbyAndResets(t *testing.T) {
	tc := newTestClient("alice")
	tc.mirror.Blocks[protocol.Position{X: 1, Y: 1}] = true
	tc.mirror.Scores[0] = 5

	tc.handleServerMessage(testHello())

	if len(tc.draws) != 1 {
		t.Fatalf("got %d draws, want 1", len(tc.draws))
	}
	lobby, ok := tc.draws[0].(protocol.Lobby)
	if !ok {
		t.Fatalf("draw is %T, want Lobby", tc.draws[0])
	}
	if lobby.ServerName != "srv" || lobby.BombTimer != 3 || len(lobby.Players) != 0 {
		t.Errorf("unexpected lobby draw: %+v", lobby)
	}
	if len(tc.mirror.Blocks) != 0 || len(tc.mirror.Scores) != 0 {
		t.Error("Hello did not reset the mirror")
	}
}

func TestGameStartedEntersGameWhenAccepted(t *testing.T) {
	tc := newTestClient("alice")
	tc.handleServerMessage(testHello())
	tc.handleInput(protocol.PlaceBomb{})

	players := map[uint8]protocol.Player{
		0: {Name: "alice", Address: "[::1]:1"},
		1: {Name: "bob", Address: "[::1]:2"},
	}
	tc.handleServerMessage(protocol.AcceptedPlayer{PlayerID: 0, Player: players[0]})
	tc.handleServerMessage(protocol.AcceptedPlayer{PlayerID: 1, Player: players[1]})
	tc.handleServerMessage(protocol.GameStarted{Players: players})

	if tc.state != stateInGame {
		t.Fatalf("state = %d, want in-game", tc.state)
	}
	last := tc.draws[len(tc.draws)-1]
	draw, ok := last.(protocol.Game)
	if !ok {
		t.Fatalf("last draw is %T, want Game", last)
	}
	if draw.Turn != 0 || len(draw.Players) != 2 {
		t.Errorf("unexpected initial game draw: %+v", draw)
	}
	if draw.Scores[0] != 0 || draw.Scores[1] != 0 {
		t.Errorf("initial scores = %v, want zeros", draw.Scores)
	}

	// In game, inputs forward one-to-one.
	tc.toServer = nil
	tc.handleInput(protocol.Move{Direction: protocol.DirRight})
	tc.handleInput(protocol.PlaceBlock{})
	want := []protocol.ClientMessage{
		protocol.Move{Direction: protocol.DirRight},
		protocol.PlaceBlock{},
	}
	if !reflect.DeepEqual(tc.toServer, want) {
		t.Errorf("forwarded = %#v, want %#v", tc.toServer, want)
	}
}

func TestObserverWhenNotAccepted(t *testing.T) {
	tc := newTestClient("carol")
	tc.handleServerMessage(testHello())

	players := map[uint8]protocol.Player{
		0: {Name: "alice", Address: "[::1]:1"},
		1: {Name: "bob", Address: "[::1]:2"},
	}
	tc.handleServerMessage(protocol.AcceptedPlayer{PlayerID: 0, Player: players[0]})
	tc.handleServerMessage(protocol.AcceptedPlayer{PlayerID: 1, Player: players[1]})
	tc.handleServerMessage(protocol.GameStarted{Players: players})

	if tc.state != stateObserve {
		t.Fatalf("state = %d, want observe", tc.state)
	}
	tc.toServer = nil
	tc.handleInput(protocol.PlaceBomb{})
	tc.handleInput(protocol.Move{Direction: protocol.DirUp})
	if len(tc.toServer) != 0 {
		t.Errorf("observer sent %#v", tc.toServer)
	}
}

func TestTurnWithoutGameStartedMeansObserve(t *testing.T) {
	tc := newTestClient("late")
	tc.handleServerMessage(testHello())
	tc.handleServerMessage(protocol.Turn{Turn: 7})

	if tc.state != stateObserve {
		t.Fatalf("state = %d, want observe", tc.state)
	}
	if draw, ok := tc.draws[len(tc.draws)-1].(protocol.Game); !ok || draw.Turn != 7 {
		t.Errorf("last draw = %#v, want Game at turn 7", tc.draws[len(tc.draws)-1])
	}
}

func startedGame(t *testing.T, names ...string) *testClient {
	t.Helper()
	tc := newTestClient(names[0])
	tc.handleServerMessage(testHello())
	players := make(map[uint8]protocol.Player)
	for i, name := range names {
		players[uint8(i)] = protocol.Player{Name: name, Address: "[::1]:1"}
		tc.handleServerMessage(protocol.AcceptedPlayer{PlayerID: uint8(i), Player: players[uint8(i)]})
	}
	tc.handleServerMessage(protocol.GameStarted{Players: players})
	tc.draws = nil
	return tc
}

func TestTurnMirroring(t *testing.T) {
	tc := startedGame(t, "alice", "bob")

	tc.handleServerMessage(protocol.Turn{Turn: 1, Events: []protocol.Event{
		protocol.PlayerMoved{PlayerID: 0, Position: protocol.Position{X: 2, Y: 2}},
		protocol.PlayerMoved{PlayerID: 1, Position: protocol.Position{X: 5, Y: 5}},
		protocol.BombPlaced{BombID: 0, Position: protocol.Position{X: 2, Y: 2}},
		protocol.BlockPlaced{Position: protocol.Position{X: 7, Y: 7}},
	}})

	draw := tc.draws[len(tc.draws)-1].(protocol.Game)
	if draw.Turn != 1 {
		t.Fatalf("draw turn = %d, want 1", draw.Turn)
	}
	// The end-of-turn decrement covers the just-placed bomb too.
	wantBombs := []protocol.Bomb{{Position: protocol.Position{X: 2, Y: 2}, Timer: 2}}
	if !reflect.DeepEqual(draw.Bombs, wantBombs) {
		t.Errorf("bombs = %#v, want %#v", draw.Bombs, wantBombs)
	}
	if !reflect.DeepEqual(draw.Blocks, []protocol.Position{{X: 7, Y: 7}}) {
		t.Errorf("blocks = %#v", draw.Blocks)
	}
	if draw.PlayerPositions[0] != (protocol.Position{X: 2, Y: 2}) {
		t.Errorf("player 0 at %v", draw.PlayerPositions[0])
	}

	// A quiet turn just burns bomb timers down.
	tc.handleServerMessage(protocol.Turn{Turn: 2})
	draw = tc.draws[len(tc.draws)-1].(protocol.Game)
	if draw.Bombs[0].Timer != 1 {
		t.Errorf("bomb timer = %d, want 1", draw.Bombs[0].Timer)
	}

	// The explosion removes the bomb and the block, kills both robots,
	// and the same turn's respawns put them back on the grid.
	tc.handleServerMessage(protocol.Turn{Turn: 3, Events: []protocol.Event{
		protocol.BombExploded{
			BombID:          0,
			RobotsDestroyed: []uint8{0, 1},
			BlocksDestroyed: []protocol.Position{{X: 7, Y: 7}},
		},
		protocol.PlayerMoved{PlayerID: 0, Position: protocol.Position{X: 1, Y: 1}},
		protocol.PlayerMoved{PlayerID: 1, Position: protocol.Position{X: 8, Y: 8}},
	}})

	draw = tc.draws[len(tc.draws)-1].(protocol.Game)
	if len(draw.Bombs) != 0 {
		t.Errorf("exploded bomb still drawn: %#v", draw.Bombs)
	}
	if len(draw.Blocks) != 0 {
		t.Errorf("destroyed block still drawn: %#v", draw.Blocks)
	}
	if !reflect.DeepEqual(draw.Explosions, []protocol.Position{{X: 2, Y: 2}}) {
		t.Errorf("explosions = %#v, want the bomb position", draw.Explosions)
	}
	if draw.Scores[0] != 1 || draw.Scores[1] != 1 {
		t.Errorf("scores = %v, want 1 each", draw.Scores)
	}
	if draw.PlayerPositions[0] != (protocol.Position{X: 1, Y: 1}) ||
		draw.PlayerPositions[1] != (protocol.Position{X: 8, Y: 8}) {
		t.Errorf("respawns not applied: %v", draw.PlayerPositions)
	}
}

func TestScoreSinglePointFromTwoBombs(t *testing.T) {
	tc := startedGame(t, "alice", "bob")

	tc.handleServerMessage(protocol.Turn{Turn: 1, Events: []protocol.Event{
		protocol.BombPlaced{BombID: 0, Position: protocol.Position{X: 4, Y: 4}},
		protocol.BombPlaced{BombID: 1, Position: protocol.Position{X: 4, Y: 5}},
	}})
	tc.handleServerMessage(protocol.Turn{Turn: 2, Events: []protocol.Event{
		protocol.BombExploded{BombID: 0, RobotsDestroyed: []uint8{1}},
		protocol.BombExploded{BombID: 1, RobotsDestroyed: []uint8{1}},
		protocol.PlayerMoved{PlayerID: 1, Position: protocol.Position{X: 0, Y: 0}},
	}})

	draw := tc.draws[len(tc.draws)-1].(protocol.Game)
	if draw.Scores[1] != 1 {
		t.Errorf("score = %d, want exactly 1 for a double kill", draw.Scores[1])
	}
	if len(draw.Explosions) != 2 {
		t.Errorf("explosions = %#v, want both bomb positions", draw.Explosions)
	}
}

func TestUnknownBombExplodedIsTolerated(t *testing.T) {
	tc := startedGame(t, "alice", "bob")

	tc.handleServerMessage(protocol.Turn{Turn: 1, Events: []protocol.Event{
		protocol.BlockPlaced{Position: protocol.Position{X: 3, Y: 3}},
	}})
	tc.handleServerMessage(protocol.Turn{Turn: 2, Events: []protocol.Event{
		protocol.BombExploded{
			BombID:          99,
			RobotsDestroyed: []uint8{0},
			BlocksDestroyed: []protocol.Position{{X: 3, Y: 3}},
		},
		protocol.PlayerMoved{PlayerID: 0, Position: protocol.Position{X: 6, Y: 6}},
	}})

	draw := tc.draws[len(tc.draws)-1].(protocol.Game)
	if len(draw.Explosions) != 0 {
		t.Errorf("explosions = %#v, want none for an unknown bomb", draw.Explosions)
	}
	if draw.Scores[0] != 1 {
		t.Errorf("score = %d, want 1: destruction effects still apply", draw.Scores[0])
	}
	if len(draw.Blocks) != 0 {
		t.Errorf("blocks = %#v, want destroyed", draw.Blocks)
	}
}

func TestGameEndedReturnsToLobby(t *testing.T) {
	tc := startedGame(t, "alice", "bob")

	tc.handleServerMessage(protocol.GameEnded{Scores: map[uint8]uint32{0: 1, 1: 2}})

	if tc.state != stateLobby {
		t.Fatalf("state = %d, want lobby", tc.state)
	}
	if _, ok := tc.draws[len(tc.draws)-1].(protocol.Lobby); !ok {
		t.Errorf("last draw is %T, want Lobby", tc.draws[len(tc.draws)-1])
	}
	if len(tc.mirror.Players) != 0 || len(tc.mirror.Scores) != 0 {
		t.Error("mirror not reset after GameEnded")
	}

	// Eligible to join the next game.
	tc.toServer = nil
	tc.handleInput(protocol.PlaceBomb{})
	if !reflect.DeepEqual(tc.toServer, []protocol.ClientMessage{protocol.Join{Name: "alice"}}) {
		t.Errorf("outbound = %#v, want a Join for the next game", tc.toServer)
	}
}

func TestDrawSequenceThroughGameStart(t *testing.T) {
	tc := newTestClient("alice")
	players := map[uint8]protocol.Player{
		0: {Name: "alice", Address: "[::1]:1"},
		1: {Name: "bob", Address: "[::1]:2"},
	}

	tc.handleServerMessage(testHello())
	tc.handleServerMessage(protocol.AcceptedPlayer{PlayerID: 0, Player: players[0]})
	tc.handleServerMessage(protocol.AcceptedPlayer{PlayerID: 1, Player: players[1]})
	tc.handleServerMessage(protocol.GameStarted{Players: players})
	tc.handleServerMessage(protocol.Turn{Turn: 0, Events: []protocol.Event{
		protocol.PlayerMoved{PlayerID: 0, Position: protocol.Position{X: 1, Y: 1}},
		protocol.PlayerMoved{PlayerID: 1, Position: protocol.Position{X: 2, Y: 2}},
	}})

	var kinds []string
	for _, d := range tc.draws {
		switch d.(type) {
		case protocol.Lobby:
			kinds = append(kinds, "Lobby")
		case protocol.Game:
			kinds = append(kinds, "Game")
		}
	}
	want := []string{"Lobby", "Lobby", "Lobby", "Game", "Game"}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("draw sequence = %v, want %v", kinds, want)
	}
	if game := tc.draws[4].(protocol.Game); game.Turn != 0 || len(game.PlayerPositions) != 2 {
		t.Errorf("turn 0 draw = %+v", game)
	}
}
