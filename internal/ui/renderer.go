package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amalg/go-robots/internal/protocol"
)

// Color palette
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff8844")).Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(1, 3)

	rosterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ccccdd"))
	waitingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666688")).Italic(true)

	blockStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B6914")).Foreground(lipgloss.Color("#A0772B"))
	emptyStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).Foreground(lipgloss.Color("#1a1a2e"))
	bombStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).Foreground(lipgloss.Color("#ff4444")).Bold(true)
	explosionStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#ff6600")).Foreground(lipgloss.Color("#ffcc00")).Bold(true)

	robotColors = []lipgloss.Color{
		lipgloss.Color("#00ff88"),
		lipgloss.Color("#4488ff"),
		lipgloss.Color("#ff44ff"),
		lipgloss.Color("#ffff44"),
	}

	hudBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444466")).Padding(0, 1)
	lobbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#44aaff")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
)

// RenderLobby draws the waiting room: world parameters plus the roster of
// accepted players.
func RenderLobby(lobby protocol.Lobby) string {
	var lines []string
	lines = append(lines,
		titleStyle.Render("🤖 "+lobby.ServerName),
		"",
		lobbyStyle.Render(fmt.Sprintf("⏳ LOBBY — %d/%d players", len(lobby.Players), lobby.PlayersCount)),
		rosterStyle.Render(fmt.Sprintf("   %d×%d grid, %d turns, radius %d, bomb timer %d",
			lobby.SizeX, lobby.SizeY, lobby.GameLength, lobby.ExplosionRadius, lobby.BombTimer)),
		"")

	for _, id := range sortedIDs(lobby.Players) {
		p := lobby.Players[id]
		color := robotColors[int(id)%len(robotColors)]
		name := lipgloss.NewStyle().Foreground(color).Render(p.Name)
		lines = append(lines, fmt.Sprintf("  %d. %s  %s", id, name, rosterStyle.Render(p.Address)))
	}

	lines = append(lines, "", helpStyle.Render("Press any move key to join  •  Q quit"))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// RenderBoard draws the grid. y grows upward, so the top row is y =
// size_y - 1. Robots cover explosions cover bombs cover blocks.
func RenderBoard(game protocol.Game) string {
	robots := make(map[protocol.Position]uint8)
	for _, id := range sortedIDs(game.Players) {
		if pos, ok := game.PlayerPositions[id]; ok {
			robots[pos] = id
		}
	}
	explosions := make(map[protocol.Position]bool)
	for _, pos := range game.Explosions {
		explosions[pos] = true
	}
	bombs := make(map[protocol.Position]bool)
	for _, b := range game.Bombs {
		bombs[b.Position] = true
	}
	blocks := make(map[protocol.Position]bool)
	for _, pos := range game.Blocks {
		blocks[pos] = true
	}

	var rows []string
	for y := int(game.SizeY) - 1; y >= 0; y-- {
		var cells []string
		for x := 0; x < int(game.SizeX); x++ {
			pos := protocol.Position{X: uint16(x), Y: uint16(y)}
			cells = append(cells, renderCell(pos, robots, explosions, bombs, blocks))
		}
		rows = append(rows, strings.Join(cells, ""))
	}
	return strings.Join(rows, "\n")
}

func renderCell(pos protocol.Position, robots map[protocol.Position]uint8,
	explosions, bombs, blocks map[protocol.Position]bool) string {

	if id, ok := robots[pos]; ok {
		color := robotColors[int(id)%len(robotColors)]
		return lipgloss.NewStyle().Background(lipgloss.Color("#1a1a2e")).Bold(true).
			Foreground(color).Render(fmt.Sprintf("P%d", id))
	}
	if explosions[pos] {
		return explosionStyle.Render("░░")
	}
	if bombs[pos] {
		return bombStyle.Render("()")
	}
	if blocks[pos] {
		return blockStyle.Render("▒▒")
	}
	return emptyStyle.Render("  ")
}

// RenderHUD draws the turn counter and the scoreboard.
func RenderHUD(game protocol.Game) string {
	var parts []string
	parts = append(parts,
		titleStyle.Render("🤖 "+game.ServerName),
		"",
		fmt.Sprintf("Turn %d/%d", game.Turn, game.GameLength),
		"",
		rosterStyle.Render("Scores:"))

	for _, id := range sortedIDs(game.Players) {
		p := game.Players[id]
		color := robotColors[int(id)%len(robotColors)]
		name := lipgloss.NewStyle().Foreground(color).Render(p.Name)
		parts = append(parts, fmt.Sprintf("  %s %d", name, game.Scores[id]))
	}

	parts = append(parts, "", helpStyle.Render("WASD/Arrows: Move | Space: Bomb | B: Block | Q: Quit"))
	return hudBorderStyle.Render(strings.Join(parts, "\n"))
}

func sortedIDs(players map[uint8]protocol.Player) []uint8 {
	ids := make([]uint8, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
