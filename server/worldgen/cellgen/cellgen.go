// Package cellgen generates the contents of a single super-cell: the border
// wall, the exits the maze topology demands, a road graph connecting those
// exits, and the carving of that graph into the cell's natural-map grid.
package cellgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dijkstra"

	"github.com/tierbots/server/worldconst"
)

// Cell is a square grid of natural-map tiles, indexed cell[x][y].
type Cell [][]worldconst.NaturalType

// NewCell allocates a Cell fully filled with natural wall.
func NewCell(size int) Cell {
	c := make(Cell, size)
	for x := range c {
		c[x] = make([]worldconst.NaturalType, size)
		for y := range c[x] {
			c[x][y] = worldconst.NaturalWall
		}
	}
	return c
}

func (c Cell) size() int { return len(c) }

func buildWall(c Cell) {
	n := c.size()
	for x := 0; x < n; x++ {
		c[x][0] = worldconst.NaturalWall
		c[x][n-1] = worldconst.NaturalWall
	}
	for y := 0; y < n; y++ {
		c[0][y] = worldconst.NaturalWall
		c[n-1][y] = worldconst.NaturalWall
	}
}

// Exit is a run of ground tiles cut through one side of a cell's border
// wall, between tile index A (inclusive) and B (exclusive).
type Exit struct {
	Side worldconst.Direction
	A, B int
}

func rangeIntersect(a1, b1, a2, b2 int) (a, b int, ok bool) {
	a = max(a1, a2)
	b = min(b1, b2)
	if a >= b {
		return 0, 0, false
	}
	return a, b, true
}

func ensureRange(value, a, b int) int {
	if value < a {
		return a
	}
	if value >= b {
		return b - 1
	}
	return value
}

// randInt returns a uniform random int in [lo, hi], inclusive of both ends.
func randInt(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

var allSides = []worldconst.Direction{worldconst.North, worldconst.East, worldconst.South, worldconst.West}

// MakeRandomExits picks a random set of border exits, one batch per side in
// onlySides (or all four sides if onlySides is nil), each a random-width run
// clear of the cell's corners. A candidate whose range does not intersect
// the buildable span is dropped rather than carved.
func MakeRandomExits(r *rand.Rand, size int, onlySides []worldconst.Direction) []Exit {
	sch := onlySides
	if sch == nil {
		sch = allSides
	}

	var out []Exit
	n := randInt(r, len(sch), len(sch)*3)
	for i := 0; i < n; i++ {
		var side worldconst.Direction
		if i < len(sch) {
			side = sch[i]
		} else {
			side = sch[r.IntN(len(sch))]
		}
		leng := randInt(r, 3, size)
		mid := randInt(r, worldconst.CornerWall, size-worldconst.CornerWall-1)
		mid -= leng / 2
		a, b, ok := rangeIntersect(mid, mid+leng, worldconst.CornerWall, size-worldconst.CornerWall)
		if !ok {
			continue
		}
		out = append(out, Exit{Side: side, A: a, B: b})
	}
	return out
}

// ApplyExits carves each exit's run of ground tiles into the cell's border.
func ApplyExits(c Cell, exits []Exit) {
	n := c.size()
	for _, e := range exits {
		switch e.Side {
		case worldconst.North:
			for x := e.A; x < e.B; x++ {
				c[x][0] = worldconst.Ground
			}
		case worldconst.East:
			for y := e.A; y < e.B; y++ {
				c[n-1][y] = worldconst.Ground
			}
		case worldconst.South:
			for x := e.A; x < e.B; x++ {
				c[x][n-1] = worldconst.Ground
			}
		case worldconst.West:
			for y := e.A; y < e.B; y++ {
				c[0][y] = worldconst.Ground
			}
		}
	}
}

// findExits scans one border row/column and returns the [a,b) runs of
// ground tiles in it: the gaps between stretches of wall.
func findExits(row []worldconst.NaturalType) [][2]int {
	n := len(row)
	var changes []int
	for i := 0; i < n-1; i++ {
		if (row[i] == worldconst.NaturalWall) != (row[i+1] == worldconst.NaturalWall) {
			changes = append(changes, i)
		}
	}

	var runs [][2]int
	open, hasOpen := 0, false
	if row[0] == worldconst.Ground {
		open, hasOpen = 0, true
	}
	for _, i := range changes {
		if !hasOpen {
			open, hasOpen = i+1, true
		} else {
			runs = append(runs, [2]int{open, i + 1})
			hasOpen = false
		}
	}
	if hasOpen {
		runs = append(runs, [2]int{open, n})
	}
	return runs
}

func pointDist(ax, ay, bx, by int) float64 {
	dx, dy := float64(bx-ax), float64(by-ay)
	return math.Sqrt(dx*dx + dy*dy)
}

// Point is one node of a cell's road graph: a fixed exit point (Fixed) or an
// interior point free to be nudged and merged while the graph is built.
// Size governs how wide a path is carved around it.
type Point struct {
	X, Y  int
	Fixed bool
	Size  int
	Neigh map[int]struct{}
}

func newPoint(x, y int) *Point {
	return &Point{X: x, Y: y, Neigh: make(map[int]struct{})}
}

func connect(points []*Point, a, b int) {
	points[a].Neigh[b] = struct{}{}
	points[b].Neigh[a] = struct{}{}
}

func disconnect(points []*Point, a, b int) {
	delete(points[a].Neigh, b)
	delete(points[b].Neigh, a)
}

func edgeID(i int) string { return strconv.Itoa(i) }

// distScale converts a Euclidean point distance into the integer weight
// lvlath's graph requires, keeping three decimal digits of precision -
// ample for comparing path lengths within a single cell.
const distScale = 1000

func buildGraph(points []*Point, weighted bool) *core.Graph {
	var g *core.Graph
	if weighted {
		g = core.NewGraph(core.WithWeighted())
	} else {
		g = core.NewGraph()
	}
	for i := range points {
		_ = g.AddVertex(edgeID(i))
	}
	seen := make(map[[2]int]bool)
	for i, p := range points {
		for j := range p.Neigh {
			key := [2]int{min(i, j), max(i, j)}
			if seen[key] {
				continue
			}
			seen[key] = true
			var w int64
			if weighted {
				w = int64(math.Round(pointDist(p.X, p.Y, points[j].X, points[j].Y) * distScale))
				if w <= 0 {
					w = 1
				}
			}
			if _, err := g.AddEdge(edgeID(i), edgeID(j), w); err != nil {
				panic(fmt.Sprintf("cellgen: buildGraph AddEdge(%d,%d): %v", i, j, err))
			}
		}
	}
	return g
}

// detectGroups partitions points into their connected components using
// lvlath's BFS, replacing a hand-rolled flood fill with the library's
// traversal over an unweighted view of the current adjacency.
func detectGroups(points []*Point) []map[int]bool {
	g := buildGraph(points, false)
	visited := make([]bool, len(points))
	var groups []map[int]bool
	for i := range points {
		if visited[i] {
			continue
		}
		res, err := bfs.BFS(g, edgeID(i))
		if err != nil {
			panic(fmt.Sprintf("cellgen: detectGroups BFS(%d): %v", i, err))
		}
		group := make(map[int]bool, len(res.Order))
		for _, id := range res.Order {
			idx, _ := strconv.Atoi(id)
			group[idx] = true
			visited[idx] = true
		}
		groups = append(groups, group)
	}
	return groups
}

// pathDistance returns the shortest path distance between two points over
// the current road graph, using lvlath's Dijkstra over weights scaled from
// Euclidean distance.
func pathDistance(points []*Point, a, b int) float64 {
	g := buildGraph(points, true)
	dist, _, err := dijkstra.Dijkstra(g, dijkstra.Source(edgeID(a)))
	if err != nil {
		panic(fmt.Sprintf("cellgen: pathDistance dijkstra: %v", err))
	}
	d, ok := dist[edgeID(b)]
	if !ok {
		return math.Inf(1)
	}
	return float64(d) / distScale
}

func findClosestGroup(myGroup int, groups []map[int]bool, points []*Point) (aidx, bidx, gid int, found bool) {
	minDist := math.Inf(1)
	found = false
	for i, gr := range groups {
		if i == myGroup {
			continue
		}
		for a := range groups[myGroup] {
			for b := range gr {
				d := pointDist(points[a].X, points[a].Y, points[b].X, points[b].Y)
				if d < minDist {
					minDist, aidx, bidx, gid, found = d, a, b, i, true
				}
			}
		}
	}
	return
}

func makeSidePoint(side worldconst.Direction, x, size int) (int, int) {
	switch side {
	case worldconst.North:
		return x, 0
	case worldconst.East:
		return size - 1, x
	case worldconst.South:
		return x, size - 1
	default: // West
		return 0, x
	}
}

// splitChord inserts a midpoint between a and b, replacing their direct
// edge with two shorter ones. It returns the midpoint's index and the
// (possibly reallocated) points slice, which the caller must keep using.
func splitChord(points []*Point, a, b int) (int, []*Point) {
	pa, pb := points[a], points[b]
	mx, my := (pa.X+pb.X)/2, (pa.Y+pb.Y)/2
	points = append(points, newPoint(mx, my))
	mid := len(points) - 1
	disconnect(points, a, b)
	connect(points, a, mid)
	connect(points, b, mid)
	return mid, points
}

// BuildRoadGraph scans c's four borders for exits and grows a connected
// graph of road points spanning them: fixed points anchored on every exit,
// random interior points, nearest-neighbor wiring, connected-component
// merging, a handful of long-range shortcuts and finally long chords split
// and jittered so roads don't run dead straight.
func BuildRoadGraph(r *rand.Rand, c Cell) []*Point {
	size := c.size()

	north := make([]worldconst.NaturalType, size)
	east := make([]worldconst.NaturalType, size)
	south := make([]worldconst.NaturalType, size)
	west := make([]worldconst.NaturalType, size)
	for i := 0; i < size; i++ {
		north[i] = c[i][0]
		east[i] = c[size-1][i]
		south[i] = c[i][size-1]
		west[i] = c[0][i]
	}

	var exits []Exit
	for _, run := range findExits(north) {
		exits = append(exits, Exit{worldconst.North, run[0], run[1]})
	}
	for _, run := range findExits(east) {
		exits = append(exits, Exit{worldconst.East, run[0], run[1]})
	}
	for _, run := range findExits(south) {
		exits = append(exits, Exit{worldconst.South, run[0], run[1]})
	}
	for _, run := range findExits(west) {
		exits = append(exits, Exit{worldconst.West, run[0], run[1]})
	}

	var points []*Point
	add := func(x, y int, fixed bool, size int) int {
		p := newPoint(x, y)
		p.Fixed = fixed
		p.Size = size
		points = append(points, p)
		return len(points) - 1
	}

	// Fixed points along every exit.
	for _, e := range exits {
		var base, end, sz int
		if e.B-e.A < 10 {
			base, end, sz = (e.B+e.A)/2, e.B, (e.B-e.A)/2
		} else {
			base, end, sz = e.A+2, e.B-2, 3
		}
		for i := base; i < end; i += 5 {
			px, py := makeSidePoint(e.Side, i, size)
			add(px, py, true, sz)
		}
	}

	// Random interior points, not fixed.
	notFixed := make(map[int]bool)
	for i, n := 0, randInt(r, 8, 30); i < n; i++ {
		x := randInt(r, worldconst.CornerWall, size-worldconst.CornerWall-1)
		y := randInt(r, worldconst.CornerWall, size-worldconst.CornerWall-1)
		notFixed[add(x, y, false, 0)] = true
	}

	// Connect every point to its closest non-fixed point.
	for aidx, p := range points {
		best, bestDist := -1, math.Inf(1)
		for bidx, q := range points {
			if bidx == aidx || q.Fixed {
				continue
			}
			d := pointDist(p.X, p.Y, q.X, q.Y)
			if d < bestDist {
				best, bestDist = bidx, d
			}
		}
		if best >= 0 {
			connect(points, aidx, best)
		}
	}

	// Merge all connected components down to one.
	groups := detectGroups(points)
	for i, g := range groups {
		filtered := make(map[int]bool)
		for idx := range g {
			if notFixed[idx] {
				filtered[idx] = true
			}
		}
		groups[i] = filtered
	}
	for len(groups) > 1 {
		aidx, bidx, gid, found := findClosestGroup(0, groups, points)
		if !found {
			break
		}
		connect(points, aidx, bidx)
		for idx := range groups[gid] {
			groups[0][idx] = true
		}
		groups = append(groups[:gid], groups[gid+1:]...)
	}

	// Connect a handful of far-apart interior points directly, favoring
	// the pairs whose current path is the longest detour relative to a
	// straight line; stop early once no pair's path is longer than its
	// straight line.
	notFixedIDs := make([]int, 0, len(notFixed))
	for idx := range notFixed {
		notFixedIDs = append(notFixedIDs, idx)
	}
	for i, n := 0, randInt(r, 0, 8); i < n; i++ {
		var join [2]int
		maxRate := math.Inf(-1)
		found := false
		for ai := 0; ai < len(notFixedIDs); ai++ {
			for bi := ai + 1; bi < len(notFixedIDs); bi++ {
				a, b := notFixedIDs[ai], notFixedIDs[bi]
				direct := pointDist(points[a].X, points[a].Y, points[b].X, points[b].Y)
				path := pathDistance(points, a, b)
				rate := path - direct
				if rate > maxRate {
					maxRate, join, found = rate, [2]int{a, b}, true
				}
			}
		}
		if !found || maxRate <= 0 {
			break
		}
		connect(points, join[0], join[1])
	}

	// Random interior points size up with their final degree; fixed
	// points keep the size assigned at exit-carving time.
	for _, p := range points {
		if p.Fixed {
			continue
		}
		l := len(p.Neigh)
		p.Size = randInt(r, max(1, l/2), max(2, l))
	}

	// Split long chords in two and jitter the midpoint so roads curve.
	// New points may be appended mid-loop (as the original's list-based
	// version also does), so the loop bound is re-read every iteration.
	worked := make(map[[2]int]bool)
	for aidx := 0; aidx < len(points); aidx++ {
		neigh := make([]int, 0, len(points[aidx].Neigh))
		for bidx := range points[aidx].Neigh {
			neigh = append(neigh, bidx)
		}
		for _, bidx := range neigh {
			key := [2]int{min(aidx, bidx), max(aidx, bidx)}
			if worked[key] {
				continue
			}
			worked[key] = true
			ap, bp := points[aidx], points[bidx]
			dist := pointDist(ap.X, ap.Y, bp.X, bp.Y)
			if dist < float64(size)/6 {
				continue
			}
			mid, newPoints := splitChord(points, aidx, bidx)
			points = newPoints
			mp := points[mid]
			k := int(math.Round(dist / 2.5))
			mp.X = ensureRange(mp.X+randInt(r, -k, k), worldconst.CornerWall, size-worldconst.CornerWall-1)
			mp.Y = ensureRange(mp.Y+randInt(r, -k, k), worldconst.CornerWall, size-worldconst.CornerWall-1)
			mp.Size = (ap.Size + bp.Size) / 2
		}
	}

	return points
}

// RemoveCircle clears a disc of ground tiles centered on (cx, cy).
func RemoveCircle(c Cell, cx, cy, radius int) {
	n := c.size()
	radius2 := radius * radius
	xa, xb, ok := rangeIntersect(1, n-1, cx-radius, cx+radius+1)
	if !ok {
		return
	}
	ya, yb, ok := rangeIntersect(1, n-1, cy-radius, cy+radius+1)
	if !ok {
		return
	}
	for x := xa; x < xb; x++ {
		for y := ya; y < yb; y++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > radius2 {
				continue
			}
			c[x][y] = worldconst.Ground
		}
	}
}

// removeWallsAlongPath carves a road of tapering width between two points.
func removeWallsAlongPath(c Cell, ax, ay, bx, by, aDiam, bDiam int) {
	RemoveCircle(c, ax, ay, aDiam)
	RemoveCircle(c, bx, by, bDiam)
	d := pointDist(ax, ay, bx, by)
	if d == 0 {
		return
	}
	dx, dy := (float64(bx-ax))/d, (float64(by-ay))/d
	dd := (float64(bDiam-aDiam)) / d
	for i := 0.0; i < d; i++ {
		x := int(math.Round(i*dx)) + ax
		y := int(math.Round(i*dy)) + ay
		diam := int(math.Round(i*dd)) + aDiam
		RemoveCircle(c, x, y, diam)
	}
}

// RemoveWallsAllGraph carves every edge of a road graph into the cell.
func RemoveWallsAllGraph(c Cell, points []*Point) {
	worked := make(map[[2]int]bool)
	for aidx, p := range points {
		for bidx := range p.Neigh {
			key := [2]int{min(aidx, bidx), max(aidx, bidx)}
			if worked[key] {
				continue
			}
			worked[key] = true
			q := points[bidx]
			removeWallsAlongPath(c, p.X, p.Y, q.X, q.Y, p.Size, q.Size)
		}
	}
}

// MakeCell generates one complete super-cell: a border wall, the given
// exits (or a random set restricted to onlySides if exits is nil), and a
// carved road graph connecting them.
func MakeCell(r *rand.Rand, size int, exits []Exit, onlySides []worldconst.Direction) (Cell, []*Point) {
	c := NewCell(size)
	buildWall(c)
	if exits == nil {
		exits = MakeRandomExits(r, size, onlySides)
	}
	ApplyExits(c, exits)
	points := BuildRoadGraph(r, c)
	RemoveWallsAllGraph(c, points)
	return c, points
}
