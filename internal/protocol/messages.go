package protocol

// The four message families and the event union are modelled as sealed
// interfaces: one unexported marker method per family, dispatched by
// type switch.

// ClientMessage is a message sent from the client to the server over TCP.
type ClientMessage interface{ isClientMessage() }

// InputMessage is a message sent from the GUI to the client over UDP.
// PlaceBomb, PlaceBlock and Move belong to both the client→server and
// the GUI→client families and carry the same tag in each.
type InputMessage interface{ isInputMessage() }

// ServerMessage is a message sent from the server to the client over TCP.
type ServerMessage interface{ isServerMessage() }

// DrawMessage is a message sent from the client to the GUI over UDP.
type DrawMessage interface{ isDrawMessage() }

// Event is a single game event nested inside a Turn message.
type Event interface{ isEvent() }

// --- Client → Server ---

// Join asks the server to promote this connection to a player.
type Join struct {
	Name string
}

// PlaceBomb drops a bomb at the player's current cell.
type PlaceBomb struct{}

// PlaceBlock raises a block at the player's current cell.
type PlaceBlock struct{}

// Move steps the player one cell in the given direction.
type Move struct {
	Direction Direction
}

func (Join) isClientMessage()       {}
func (PlaceBomb) isClientMessage()  {}
func (PlaceBlock) isClientMessage() {}
func (Move) isClientMessage()       {}

func (PlaceBomb) isInputMessage()  {}
func (PlaceBlock) isInputMessage() {}
func (Move) isInputMessage()       {}

// --- Server → Client ---

// Hello describes the server's immutable world parameters. It is the
// first message on every connection.
type Hello struct {
	ServerName      string
	PlayersCount    uint8
	SizeX           uint16
	SizeY           uint16
	GameLength      uint16
	ExplosionRadius uint16
	BombTimer       uint16
}

// AcceptedPlayer announces a newly promoted player to everyone.
type AcceptedPlayer struct {
	PlayerID uint8
	Player   Player
}

// GameStarted carries the final roster when the lobby fills up.
type GameStarted struct {
	Players map[uint8]Player
}

// Turn carries every event of one simulation turn.
type Turn struct {
	Turn   uint16
	Events []Event
}

// GameEnded carries the final scores and sends everyone back to the lobby.
type GameEnded struct {
	Scores map[uint8]uint32
}

func (Hello) isServerMessage()          {}
func (AcceptedPlayer) isServerMessage() {}
func (GameStarted) isServerMessage()    {}
func (Turn) isServerMessage()           {}
func (GameEnded) isServerMessage()      {}

// --- Events ---

// BombPlaced records a new bomb with its assigned id.
type BombPlaced struct {
	BombID   uint32
	Position Position
}

// BombExploded records one bomb going off, with the robots and blocks
// caught in its footprint. Both lists are sorted on the wire.
type BombExploded struct {
	BombID          uint32
	RobotsDestroyed []uint8
	BlocksDestroyed []Position
}

// PlayerMoved records a robot's new position, whether from walking or
// from a respawn.
type PlayerMoved struct {
	PlayerID uint8
	Position Position
}

// BlockPlaced records a new block.
type BlockPlaced struct {
	Position Position
}

func (BombPlaced) isEvent()   {}
func (BombExploded) isEvent() {}
func (PlayerMoved) isEvent()  {}
func (BlockPlaced) isEvent()  {}

// --- Client → GUI ---

// Lobby tells the GUI to draw the waiting room: the Hello parameters
// plus everyone accepted so far.
type Lobby struct {
	ServerName      string
	PlayersCount    uint8
	SizeX           uint16
	SizeY           uint16
	GameLength      uint16
	ExplosionRadius uint16
	BombTimer       uint16
	Players         map[uint8]Player
}

// Game tells the GUI to draw one turn of a running game.
type Game struct {
	ServerName      string
	SizeX           uint16
	SizeY           uint16
	GameLength      uint16
	Turn            uint16
	Players         map[uint8]Player
	PlayerPositions map[uint8]Position
	Blocks          []Position
	Bombs           []Bomb
	Explosions      []Position
	Scores          map[uint8]uint32
}

func (Lobby) isDrawMessage() {}
func (Game) isDrawMessage()  {}
