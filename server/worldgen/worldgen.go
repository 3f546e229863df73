// Package worldgen assembles a full world: a maze of super-cells (package
// maze) each filled in with a border, exits and a carved road graph
// (package cellgen), stitched into one natural-map grid with energy
// sources scattered along its walls.
package worldgen

import (
	"math/rand/v2"

	"github.com/tierbots/server/worldconst"
	"github.com/tierbots/server/worldgen/cellgen"
	"github.com/tierbots/server/worldgen/maze"
)

// Point is an (x, y) world-tile coordinate.
type Point struct{ X, Y int }

// razeProbability is the fraction of interior maze walls cleared before
// cells are carved, turning the perfect maze into a braided one with loops.
const razeProbability = 0.4

// buildCells runs Eller's maze over a cellWidth x cellHeight grid of
// super-cells and carves every cell, coordinating exits across shared
// borders so a cell's east exit lines up with its neighbor's west exit and
// likewise north/south, exactly where the maze says there is no wall
// between them.
func buildCells(r *rand.Rand, cellWidth, cellHeight int) map[Point]cellgen.Cell {
	m := maze.Generate(r, cellWidth, cellHeight)
	maze.Raze(r, m, razeProbability)

	cells := make(map[Point]cellgen.Cell, cellWidth*cellHeight)
	bottomExits := make([][]cellgen.Exit, cellWidth)

	for y := 0; y < cellHeight; y++ {
		var rightExit []cellgen.Exit
		for x := 0; x < cellWidth; x++ {
			right := m.HasWallEast(x, y)
			bottom := m.HasWallSouth(x, y)

			exits := append([]cellgen.Exit{}, rightExit...)
			exits = append(exits, bottomExits[x]...)

			sides := make([]worldconst.Direction, 0, 2)
			if !right {
				sides = append(sides, worldconst.East)
			}
			if !bottom {
				sides = append(sides, worldconst.South)
			}
			exits = append(exits, cellgen.MakeRandomExits(r, worldconst.Cell, sides)...)

			rightExit = nil
			for _, e := range exits {
				if e.Side == worldconst.East {
					rightExit = append(rightExit, cellgen.Exit{Side: worldconst.West, A: e.A, B: e.B})
				}
			}
			var nextBottom []cellgen.Exit
			for _, e := range exits {
				if e.Side == worldconst.South {
					nextBottom = append(nextBottom, cellgen.Exit{Side: worldconst.North, A: e.A, B: e.B})
				}
			}
			bottomExits[x] = nextBottom

			cell, _ := cellgen.MakeCell(r, worldconst.Cell, exits, nil)
			cells[Point{x, y}] = cell
		}
	}
	return cells
}

// groundNeighbor reports whether any of (x,y)'s up-to-8 neighbors (clipped
// to the cell) is ground.
func groundNeighbor(cell cellgen.Cell, x, y int) bool {
	size := len(cell)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= size || ny >= size {
				continue
			}
			if cell[nx][ny] == worldconst.Ground {
				return true
			}
		}
	}
	return false
}

// setupSources scatters energy sources on wall tiles adjacent to ground,
// a handful per cell, clear of the world's outer border.
func setupSources(r *rand.Rand, cells map[Point]cellgen.Cell, cellWidth, cellHeight int) []Point {
	const offset = worldconst.SourceMinBorderOffset
	var result []Point

	for cy := 0; cy < cellHeight; cy++ {
		for cx := 0; cx < cellWidth; cx++ {
			cell := cells[Point{cx, cy}]
			size := len(cell)

			var candidates []Point
			for x := offset; x < size-offset; x++ {
				for y := offset; y < size-offset; y++ {
					if cell[x][y] != worldconst.NaturalWall {
						continue
					}
					if !groundNeighbor(cell, x, y) {
						continue
					}
					candidates = append(candidates, Point{x, y})
				}
			}
			if len(candidates) == 0 {
				continue
			}

			want := worldconst.SourcesPerCellMin + r.IntN(worldconst.SourcesPerCellMax-worldconst.SourcesPerCellMin)
			count := min(want, len(candidates))
			if count <= 0 {
				continue
			}
			perm := r.Perm(len(candidates))
			for _, idx := range perm[:count] {
				p := candidates[idx]
				result = append(result, Point{
					X: cx*worldconst.Cell + p.X,
					Y: cy*worldconst.Cell + p.Y,
				})
			}
		}
	}
	return result
}

// glueTogether stitches every cell into one natural-map grid.
func glueTogether(cells map[Point]cellgen.Cell, cellWidth, cellHeight int) [][]worldconst.NaturalType {
	out := make([][]worldconst.NaturalType, cellWidth*worldconst.Cell)
	for i := range out {
		out[i] = make([]worldconst.NaturalType, cellHeight*worldconst.Cell)
	}
	for xy, cell := range cells {
		ox, oy := xy.X*worldconst.Cell, xy.Y*worldconst.Cell
		for i := 0; i < worldconst.Cell; i++ {
			for j := 0; j < worldconst.Cell; j++ {
				out[ox+i][oy+j] = cell[i][j]
			}
		}
	}
	return out
}

// Generate builds a complete natural-map grid, cellWidth x cellHeight
// super-cells on a side, and the list of energy source tiles scattered
// across it.
func Generate(r *rand.Rand, cellWidth, cellHeight int) ([][]worldconst.NaturalType, []Point) {
	cells := buildCells(r, cellWidth, cellHeight)
	sources := setupSources(r, cells, cellWidth, cellHeight)
	grid := glueTogether(cells, cellWidth, cellHeight)
	return grid, sources
}
