package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/amalg/go-robots/internal/game"
	"github.com/amalg/go-robots/internal/protocol"
)

// maxConnections is the hard cap on concurrent TCP connections; sockets
// accepted over the cap are closed immediately.
const maxConnections = 25

type phase int

const (
	phaseLobby phase = iota
	phaseGame
)

// Server owns the listening endpoint, the accepted connections, the
// authoritative game state and the turn clock. All state behind mu is
// mutated only with the lock held, so a handler never observes another
// handler's half-applied turn.
type Server struct {
	cfg        Config
	helloFrame []byte
	listener   net.Listener
	done       chan struct{}

	mu           sync.Mutex
	rng          *game.Rand
	state        *game.State
	phase        phase
	conns        map[int]*conn
	nextConnID   int
	nextPlayerID uint8
	inputs       map[uint8]protocol.ClientMessage
	replayLog    [][]byte
}

// New creates a server from a validated configuration.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	helloFrame, err := protocol.EncodeServerMessage(cfg.hello())
	if err != nil {
		return nil, fmt.Errorf("encode hello: %w", err)
	}
	return &Server{
		cfg:        cfg,
		helloFrame: helloFrame,
		done:       make(chan struct{}),
		rng:        game.NewRand(cfg.Seed),
		state:      game.NewState(),
		phase:      phaseLobby,
		conns:      make(map[int]*conn),
		inputs:     make(map[uint8]protocol.ClientMessage),
	}, nil
}

// Start binds the dual-stack TCP listener and begins accepting. It blocks
// until the listener fails or Stop is called.
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}
	log.Printf("[SERVER] %s listening on %s (seed %d)", s.cfg.ServerName, s.listener.Addr(), s.cfg.Seed)

	for {
		sock, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.handleNewConnection(sock)
	}
}

// Stop shuts the server down; open connections are closed.
func (s *Server) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[int]*conn)
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

// Hello returns the immutable world parameters this server greets every
// connection with.
func (s *Server) Hello() protocol.Hello {
	return s.cfg.hello()
}

// PlayersJoined reports the current lobby occupancy, for the discovery
// announcer.
func (s *Server) PlayersJoined() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Players)
}

func (s *Server) handleNewConnection(sock net.Conn) {
	if tcp, ok := sock.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	c := s.register(sock, formatAddress(sock.RemoteAddr()))
	if c == nil {
		log.Printf("[SERVER] connection limit reached, closing %s", sock.RemoteAddr())
		sock.Close()
		return
	}
	log.Printf("[SERVER] connection %d accepted from %s", c.id, c.addr)

	go c.writeLoop(func() { s.dropConn(c.id) })
	go s.readLoop(c)
}

// register books a new connection and queues its catch-up stream: Hello,
// then the whole replay log, so a late peer reconstructs the authoritative
// timeline before joining the live broadcast. Returns nil over the cap.
func (s *Server) register(sock net.Conn, addr string) *conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conns) >= maxConnections {
		return nil
	}
	c := newConn(s.nextConnID, sock, addr)
	s.nextConnID++
	s.conns[c.id] = c

	c.enqueue(s.helloFrame)
	for _, frame := range s.replayLog {
		c.enqueue(frame)
	}
	return c
}

func (s *Server) readLoop(c *conn) {
	d := protocol.NewReader(c.sock)
	for {
		msg, err := d.ReadClientMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrInvalidMessage) {
				log.Printf("[SERVER] connection %d sent garbage: %v", c.id, err)
			} else {
				log.Printf("[SERVER] connection %d read: %v", c.id, err)
			}
			s.dropConn(c.id)
			return
		}
		s.handleMessage(c, msg)
	}
}

// handleMessage consumes one decoded client message. Unpromoted peers may
// only Join, and only while the lobby is open; promoted peers get a
// one-slot input buffer where newer actions overwrite older ones until
// the turn clock drains it.
func (s *Server) handleMessage(c *conn, msg protocol.ClientMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, open := s.conns[c.id]; !open {
		return
	}

	if c.player < 0 {
		join, ok := msg.(protocol.Join)
		if !ok || s.phase != phaseLobby {
			return
		}
		s.promoteLocked(c, join)
		return
	}

	s.inputs[uint8(c.player)] = msg
}

func (s *Server) promoteLocked(c *conn, join protocol.Join) {
	id := s.nextPlayerID
	s.nextPlayerID++
	player := protocol.Player{Name: join.Name, Address: c.addr}
	s.state.Players[id] = player
	c.player = int(id)
	log.Printf("[SERVER] player %d joined: %q from %s", id, player.Name, player.Address)

	s.broadcastAndLogLocked(protocol.AcceptedPlayer{PlayerID: id, Player: player})

	if len(s.state.Players) == int(s.cfg.PlayersCount) {
		s.startGameLocked()
	}
}

// dropConn removes one connection. If it belonged to a player the robot
// stays in the world, driven by the respawn/no-input path.
func (s *Server) dropConn(id int) {
	s.mu.Lock()
	c, ok := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()
	if ok {
		log.Printf("[SERVER] connection %d dropped", id)
		c.close()
	}
}

// broadcastLocked fans one message to every open connection. The frame is
// encoded once; per-connection order is FIFO, cross-connection order is
// unspecified.
func (s *Server) broadcastLocked(msg protocol.ServerMessage) []byte {
	frame, err := protocol.EncodeServerMessage(msg)
	if err != nil {
		log.Printf("[SERVER] encode broadcast: %v", err)
		return nil
	}
	for _, c := range s.conns {
		c.enqueue(frame)
	}
	return frame
}

// broadcastAndLogLocked additionally appends the frame to the replay log
// consumed by late joiners.
func (s *Server) broadcastAndLogLocked(msg protocol.ServerMessage) {
	if frame := s.broadcastLocked(msg); frame != nil {
		s.replayLog = append(s.replayLog, frame)
	}
}

func formatAddress(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprintf("[%s]:%d", tcp.IP.String(), tcp.Port)
	}
	return addr.String()
}
