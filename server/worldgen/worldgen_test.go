package worldgen

import (
	"math/rand/v2"
	"testing"

	"github.com/tierbots/server/worldconst"
)

func TestGenerateProducesFullSizedGrid(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	const cw, ch = 2, 2
	grid, sources := Generate(r, cw, ch)

	wantSize := cw * worldconst.Cell
	if len(grid) != wantSize {
		t.Fatalf("grid width = %d, want %d", len(grid), wantSize)
	}
	for _, col := range grid {
		if len(col) != ch*worldconst.Cell {
			t.Fatalf("grid height = %d, want %d", len(col), ch*worldconst.Cell)
		}
	}

	for _, s := range sources {
		if s.X < 0 || s.X >= wantSize || s.Y < 0 || s.Y >= ch*worldconst.Cell {
			t.Fatalf("source %+v out of world bounds", s)
		}
		if grid[s.X][s.Y] != worldconst.NaturalWall {
			t.Fatalf("source %+v is not on a wall tile", s)
		}
	}
}

func TestBuildCellsExitsLineUpAcrossBorders(t *testing.T) {
	r := rand.New(rand.NewPCG(2, 2))
	const cw, ch = 2, 2
	cells := buildCells(r, cw, ch)

	left := cells[Point{0, 0}]
	right := cells[Point{1, 0}]
	size := worldconst.Cell
	for y := 0; y < size; y++ {
		leftGround := left[size-1][y] == worldconst.Ground
		rightGround := right[0][y] == worldconst.Ground
		if leftGround != rightGround {
			t.Fatalf("east/west border mismatch at y=%d: left=%v right=%v", y, leftGround, rightGround)
		}
	}

	top := cells[Point{0, 0}]
	bottom := cells[Point{0, 1}]
	for x := 0; x < size; x++ {
		topGround := top[x][size-1] == worldconst.Ground
		bottomGround := bottom[x][0] == worldconst.Ground
		if topGround != bottomGround {
			t.Fatalf("south/north border mismatch at x=%d: top=%v bottom=%v", x, topGround, bottomGround)
		}
	}
}
