package ui

import (
	"net"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amalg/go-robots/internal/protocol"
)

// --- Messages ---

type drawMsg struct{ draw protocol.DrawMessage }
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// --- Model ---

// Model is the GUI's bubbletea model. It owns the UDP socket the client
// sends draw messages to, renders whatever the latest one says, and turns
// key presses into input datagrams aimed at the client. It holds no game
// logic of its own: the draw stream is the whole truth.
type Model struct {
	conn       *net.UDPConn
	clientAddr *net.UDPAddr

	draw     protocol.DrawMessage
	err      error
	quitting bool
}

// NewModel creates a model reading draws from conn and sending inputs to
// clientAddr.
func NewModel(conn *net.UDPConn, clientAddr *net.UDPAddr) Model {
	return Model{conn: conn, clientAddr: clientAddr}
}

func (m Model) Init() tea.Cmd {
	return waitForDraw(m.conn)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case errMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	case drawMsg:
		m.draw = msg.draw
		return m, waitForDraw(m.conn)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "w":
			m.sendInput(protocol.Move{Direction: protocol.DirUp})
		case "down", "s":
			m.sendInput(protocol.Move{Direction: protocol.DirDown})
		case "left", "a":
			m.sendInput(protocol.Move{Direction: protocol.DirLeft})
		case "right", "d":
			m.sendInput(protocol.Move{Direction: protocol.DirRight})
		case " ":
			m.sendInput(protocol.PlaceBomb{})
		case "b":
			m.sendInput(protocol.PlaceBlock{})
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		if m.err != nil {
			return errorStyle.Render("Error: "+m.err.Error()) + "\n"
		}
		return "Goodbye!\n"
	}

	switch draw := m.draw.(type) {
	case protocol.Lobby:
		return RenderLobby(draw) + "\n"
	case protocol.Game:
		board := RenderBoard(draw)
		hud := RenderHUD(draw)
		return lipgloss.JoinHorizontal(lipgloss.Top, board, "  ", hud) + "\n"
	default:
		return waitingStyle.Render("Waiting for the client...") + "\n"
	}
}

// sendInput fires one input datagram at the client. While the client sits
// in its lobby it turns any of these into a Join, so pressing anything is
// how a player enters the game.
func (m Model) sendInput(msg protocol.InputMessage) {
	m.conn.WriteToUDP(protocol.EncodeInputMessage(msg), m.clientAddr)
}

// waitForDraw blocks on the next decodable draw datagram.
func waitForDraw(conn *net.UDPConn) tea.Cmd {
	return func() tea.Msg {
		buf := make([]byte, 65536)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				return errMsg{err: err}
			}
			draw, err := protocol.DecodeDrawMessage(buf[:n])
			if err != nil {
				// Stray or malformed datagram; keep listening.
				continue
			}
			return drawMsg{draw: draw}
		}
	}
}
