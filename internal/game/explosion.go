package game

import "github.com/amalg/go-robots/internal/protocol"

// ExplosionRange computes a bomb's footprint: four axial rays from the
// bomb's cell, each extending up to radius cells. Every ray includes the
// bomb's own cell, stops at the grid boundary, and stops one cell past
// the first block it meets — the block's cell is part of the footprint,
// cells beyond it are not.
func ExplosionRange(bomb protocol.Position, radius, sizeX, sizeY uint16, blocks map[protocol.Position]bool) map[protocol.Position]bool {
	footprint := make(map[protocol.Position]bool)

	rays := []struct{ dx, dy int }{
		{0, 1}, {0, -1}, {1, 0}, {-1, 0},
	}
	for _, ray := range rays {
		for i := 0; i <= int(radius); i++ {
			x := int(bomb.X) + ray.dx*i
			y := int(bomb.Y) + ray.dy*i
			if x < 0 || y < 0 || x >= int(sizeX) || y >= int(sizeY) {
				break
			}
			pos := protocol.Position{X: uint16(x), Y: uint16(y)}
			footprint[pos] = true
			if blocks[pos] {
				break
			}
		}
	}
	return footprint
}
