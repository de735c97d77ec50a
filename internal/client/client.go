package client

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/amalg/go-robots/internal/game"
	"github.com/amalg/go-robots/internal/protocol"
)

// Config holds the operator parameters for one client run.
type Config struct {
	ServerEndpoint string
	GUIEndpoint    string
	PlayerName     string
	Port           uint16
}

// Validate rejects configurations the protocol cannot represent.
func (c Config) Validate() error {
	if len(c.PlayerName) > protocol.MaxStringLen {
		return fmt.Errorf("player name of %d bytes exceeds %d", len(c.PlayerName), protocol.MaxStringLen)
	}
	if _, _, err := splitEndpoint(c.ServerEndpoint); err != nil {
		return fmt.Errorf("server endpoint: %w", err)
	}
	if _, _, err := splitEndpoint(c.GUIEndpoint); err != nil {
		return fmt.Errorf("gui endpoint: %w", err)
	}
	return nil
}

// splitEndpoint splits host:port on the last colon, so bracketed and bare
// IPv6 addresses both work, and strips any brackets from the host.
func splitEndpoint(s string) (host, port string, err error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("endpoint %q is not host:port", s)
	}
	host, port = s[:i], s[i+1:]
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return "", "", fmt.Errorf("endpoint %q has an empty host", s)
	}
	return host, port, nil
}

type state int

const (
	stateLobby state = iota
	stateInGame
	stateObserve
)

// Client proxies between the authoritative server (TCP) and the local GUI
// (UDP). It mirrors just enough game state to produce draw messages, and
// fans the two inbound streams into the two outbound ones while keeping
// per-peer FIFO order. All mutable state lives behind one mutex; handlers
// finish their mutations before anything else can observe them.
type Client struct {
	cfg        Config
	serverConn net.Conn
	udp        *net.UDPConn
	guiAddr    *net.UDPAddr

	errOnce sync.Once
	errCh   chan error

	mu       sync.Mutex
	state    state
	hello    protocol.Hello
	mirror   *game.State
	joined   bool // Join already sent this lobby epoch
	accepted bool // an AcceptedPlayer named us since the last Hello

	// Outbound seams; New wires them to the sockets.
	sendServer func(protocol.ClientMessage)
	sendDraw   func(protocol.DrawMessage)

	outCond   *sync.Cond
	outQueue  [][]byte
	outClosed bool
}

// New resolves both endpoints, binds the local UDP socket and connects to
// the server. The pumps start in Run.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	guiHost, guiPort, _ := splitEndpoint(cfg.GUIEndpoint)
	guiAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(guiHost, guiPort))
	if err != nil {
		return nil, fmt.Errorf("resolve gui endpoint %q: %w", cfg.GUIEndpoint, err)
	}

	udp, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(cfg.Port)})
	if err != nil {
		return nil, fmt.Errorf("bind udp port %d: %w", cfg.Port, err)
	}

	srvHost, srvPort, _ := splitEndpoint(cfg.ServerEndpoint)
	serverConn, err := net.Dial("tcp", net.JoinHostPort(srvHost, srvPort))
	if err != nil {
		udp.Close()
		return nil, fmt.Errorf("connect to server %q: %w", cfg.ServerEndpoint, err)
	}
	if tcp, ok := serverConn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	log.Printf("[CLIENT] connected to %s, gui at %s, udp on %s",
		serverConn.RemoteAddr(), guiAddr, udp.LocalAddr())

	c := newClient(cfg)
	c.serverConn = serverConn
	c.udp = udp
	c.guiAddr = guiAddr
	c.sendServer = c.enqueueServer
	c.sendDraw = c.writeDraw
	return c, nil
}

// newClient builds the state machine without sockets; the callers wire the
// outbound seams.
func newClient(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		errCh:  make(chan error, 1),
		state:  stateLobby,
		mirror: game.NewState(),
	}
	c.outCond = sync.NewCond(&c.mu)
	return c
}

// Run pumps both directions until the first fatal error, which it returns.
func (c *Client) Run() error {
	go c.serverWriteLoop()
	go c.serverReadLoop()
	go c.guiReadLoop()

	err := <-c.errCh
	c.Close()
	return err
}

// Close tears down both sockets and releases the write pump.
func (c *Client) Close() {
	c.mu.Lock()
	c.outClosed = true
	c.outCond.Signal()
	c.mu.Unlock()
	if c.serverConn != nil {
		c.serverConn.Close()
	}
	if c.udp != nil {
		c.udp.Close()
	}
}

func (c *Client) fatal(err error) {
	c.errOnce.Do(func() { c.errCh <- err })
}

// serverReadLoop decodes the server's TCP stream. Any error here — I/O or
// protocol — is fatal for the whole client.
func (c *Client) serverReadLoop() {
	d := protocol.NewReader(c.serverConn)
	for {
		msg, err := d.ReadServerMessage()
		if err != nil {
			c.fatal(fmt.Errorf("server connection: %w", err))
			return
		}
		c.handleServerMessage(msg)
	}
}

// guiReadLoop receives GUI datagrams. A malformed datagram is logged and
// dropped; the loop keeps receiving.
func (c *Client) guiReadLoop() {
	buf := make([]byte, 65536)
	for {
		n, _, err := c.udp.ReadFromUDP(buf)
		if err != nil {
			c.fatal(fmt.Errorf("gui socket: %w", err))
			return
		}
		msg, err := protocol.DecodeInputMessage(buf[:n])
		if err != nil {
			if errors.Is(err, protocol.ErrInvalidMessage) {
				log.Printf("[CLIENT] dropping bad gui datagram: %v", err)
				continue
			}
			c.fatal(err)
			return
		}
		c.handleInput(msg)
	}
}

// enqueueServer encodes one client message onto the unbounded outbound
// FIFO drained by serverWriteLoop.
func (c *Client) enqueueServer(msg protocol.ClientMessage) {
	frame, err := protocol.EncodeClientMessage(msg)
	if err != nil {
		c.fatal(err)
		return
	}
	c.outQueue = append(c.outQueue, frame)
	c.outCond.Signal()
}

func (c *Client) serverWriteLoop() {
	for {
		c.mu.Lock()
		for len(c.outQueue) == 0 && !c.outClosed {
			c.outCond.Wait()
		}
		if c.outClosed {
			c.mu.Unlock()
			return
		}
		frames := c.outQueue
		c.outQueue = nil
		c.mu.Unlock()

		for _, frame := range frames {
			if _, err := c.serverConn.Write(frame); err != nil {
				c.fatal(fmt.Errorf("send to server: %w", err))
				return
			}
		}
	}
}

// writeDraw sends one draw message as a single datagram to the GUI.
func (c *Client) writeDraw(msg protocol.DrawMessage) {
	frame, err := protocol.EncodeDrawMessage(msg)
	if err != nil {
		c.fatal(err)
		return
	}
	if _, err := c.udp.WriteToUDP(frame, c.guiAddr); err != nil {
		c.fatal(fmt.Errorf("send to gui: %w", err))
	}
}

// handleInput consumes one GUI input according to the client state: in
// the lobby any input collapses into a single Join, in game inputs map
// one-to-one onto client messages, and an observer's inputs are dropped.
func (c *Client) handleInput(msg protocol.InputMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateLobby:
		if !c.joined {
			c.joined = true
			c.sendServer(protocol.Join{Name: c.cfg.PlayerName})
		}
	case stateInGame:
		c.sendServer(msg.(protocol.ClientMessage))
	case stateObserve:
		// Observers have nothing to say.
	}
}

// handleServerMessage applies one authoritative message to the mirror and
// pushes the matching draw message.
func (c *Client) handleServerMessage(msg protocol.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg := msg.(type) {
	case protocol.Hello:
		c.hello = msg
		c.mirror.Reset()
		c.state = stateLobby
		c.joined = false
		c.accepted = false
		c.sendDraw(c.lobbyDrawLocked())

	case protocol.AcceptedPlayer:
		c.mirror.Players[msg.PlayerID] = msg.Player
		if msg.Player.Name == c.cfg.PlayerName {
			c.accepted = true
		}
		c.sendDraw(c.lobbyDrawLocked())

	case protocol.GameStarted:
		c.mirror.Players = msg.Players
		for id := range msg.Players {
			c.mirror.Scores[id] = 0
		}
		if c.accepted {
			c.state = stateInGame
		} else {
			c.state = stateObserve
		}
		c.sendDraw(c.gameDrawLocked(0, nil))

	case protocol.Turn:
		if c.state == stateLobby {
			// A turn with no preceding GameStarted: the game was already
			// running when we connected. Watch, do not play.
			c.state = stateObserve
		}
		c.applyTurnLocked(msg)

	case protocol.GameEnded:
		c.mirror.Reset()
		c.state = stateLobby
		c.joined = false
		c.accepted = false
		c.sendDraw(c.lobbyDrawLocked())
	}
}

// applyTurnLocked replays one turn's events against the mirror. The
// server is authoritative: a BombExploded for an unknown bomb still
// applies its destruction effects, there is just no position to flash.
func (c *Client) applyTurnLocked(turn protocol.Turn) {
	var explosions []protocol.Position
	destroyedRobots := make(map[uint8]bool)
	destroyedBlocks := make(map[protocol.Position]bool)

	for _, event := range turn.Events {
		switch event := event.(type) {
		case protocol.BombPlaced:
			c.mirror.Bombs[event.BombID] = protocol.Bomb{
				Position: event.Position,
				Timer:    c.hello.BombTimer,
			}
		case protocol.BombExploded:
			if bomb, known := c.mirror.Bombs[event.BombID]; known {
				explosions = append(explosions, bomb.Position)
				delete(c.mirror.Bombs, event.BombID)
			}
			for _, id := range event.RobotsDestroyed {
				destroyedRobots[id] = true
				delete(c.mirror.PlayerToPosition, id)
			}
			for _, pos := range event.BlocksDestroyed {
				destroyedBlocks[pos] = true
			}
		case protocol.PlayerMoved:
			c.mirror.PlayerToPosition[event.PlayerID] = event.Position
		case protocol.BlockPlaced:
			c.mirror.Blocks[event.Position] = true
		}
	}

	// One point per destroyed robot, however many bombs got it.
	for id := range destroyedRobots {
		c.mirror.Scores[id]++
	}
	// Surviving bombs burn down one turn; the display floors at zero and
	// waits for the server's explosion event.
	for id, bomb := range c.mirror.Bombs {
		if bomb.Timer > 0 {
			bomb.Timer--
			c.mirror.Bombs[id] = bomb
		}
	}
	for pos := range destroyedBlocks {
		delete(c.mirror.Blocks, pos)
	}

	c.mirror.Turn = turn.Turn
	c.sendDraw(c.gameDrawLocked(turn.Turn, explosions))
}
