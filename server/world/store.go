// Package world holds the tick-indexed state store: the glued natural-map
// grid, the ground index, the two decay arrays it indexes into, the entity
// table and its position index, and the player table. All reads/writes are
// plain method calls against in-memory arrays; nothing here blocks or
// retries, matching the single-threaded-per-tick model the server runs
// under.
package world

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tierbots/server/decay"
	"github.com/tierbots/server/world/npy"
	"github.com/tierbots/server/worldconst"
	"github.com/tierbots/server/worldgen"
)

const (
	fileNaturalMap  = "naturalmap.npy"
	fileGroundIndex = "gindex.npy"
	fileWallRoad    = "wallroad.npy"
	fileDrops       = "drops.npy"
	fileData        = "data.pickle"
)

// Entity is one record in the state store's entity table: a source, bot,
// construction site, spawner, extension or radar. Type-specific fields
// (energy, owner, hp and so on) live in Props.
type Entity struct {
	Type  worldconst.EntityType `yaml:"type"`
	X     int                   `yaml:"x"`
	Y     int                   `yaml:"y"`
	Props map[string]any        `yaml:"props,omitempty"`
}

func (e Entity) clone() Entity {
	props := make(map[string]any, len(e.Props))
	for k, v := range e.Props {
		props[k] = v
	}
	return Entity{Type: e.Type, X: e.X, Y: e.Y, Props: props}
}

// PlayerSlot is one entry of the fixed-length player table.
type PlayerSlot struct {
	Active     bool      `yaml:"active"`
	Name       string    `yaml:"name,omitempty"`
	Credential uuid.UUID `yaml:"credential,omitempty"`
	MapOffsetX int       `yaml:"map_offset_x,omitempty"`
	MapOffsetY int       `yaml:"map_offset_y,omitempty"`
}

// Store is the full in-RAM world state: grid arrays, decay arrays, entity
// table and player table. It is not internally synchronized; see Lock.
type Store struct {
	dir string

	Width, Height int // in world tiles
	MaxPlayers    int

	naturalMap  [][]worldconst.NaturalType // [x][y]
	groundIndex [][]uint32                 // [x][y], 0 = not ground
	groundCount int                        // G; arrays below have length G+1

	wallRoadZero []uint32
	dropZero     []uint32

	time uint32

	entities map[uint32]*Entity
	posIndex map[[2]int]uint32

	players []PlayerSlot

	rng *mrand.Rand

	mu sync.Mutex
}

// Lock and Unlock let an embedding server serialize state-store access from
// its own goroutines; the store does not call them itself.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// Time returns the current tick counter.
func (s *Store) Time() uint32 { return s.time }

// Advance moves the tick counter forward by one; the caller applies any
// per-tick mutations before or after as it sees fit.
func (s *Store) Advance() { s.time++ }

func newRuntimeRand() *mrand.Rand {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("world: seeding runtime rand: %v", err))
	}
	return mrand.New(mrand.NewPCG(
		binary.LittleEndian.Uint64(seed[0:8]),
		binary.LittleEndian.Uint64(seed[8:16]),
	))
}

func buildGroundIndex(nm [][]worldconst.NaturalType) ([][]uint32, int) {
	w := len(nm)
	h := 0
	if w > 0 {
		h = len(nm[0])
	}
	idx := make([][]uint32, w)
	for x := range idx {
		idx[x] = make([]uint32, h)
	}
	next := uint32(1)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			if nm[x][y] == worldconst.Ground {
				idx[x][y] = next
				next++
			}
		}
	}
	return idx, int(next)
}

// CreateNew generates a brand-new world of cellWidth x cellHeight
// super-cells under dir (which must not exist or must be empty), places an
// energy-source entity at every generated source position, and saves it.
// r drives world generation and is kept as the store's id-allocation
// source, so a seeded r makes the resulting save byte-for-byte
// reproducible.
func CreateNew(dir string, r *mrand.Rand, cellWidth, cellHeight int) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("world: reading %q: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("world: creating %q: %w", dir, err)
		}
	} else if len(entries) > 0 {
		return nil, fmt.Errorf("world: create-new directory %q must be empty", dir)
	}

	grid, sources := worldgen.Generate(r, cellWidth, cellHeight)
	gindex, gLen := buildGroundIndex(grid)

	s := &Store{
		dir:          dir,
		Width:        cellWidth * worldconst.Cell,
		Height:       cellHeight * worldconst.Cell,
		naturalMap:   grid,
		groundIndex:  gindex,
		groundCount:  gLen - 1,
		wallRoadZero: make([]uint32, gLen),
		dropZero:     make([]uint32, gLen),
		entities:     make(map[uint32]*Entity),
		posIndex:     make(map[[2]int]uint32),
		rng:          r,
	}
	s.MaxPlayers = max(1, len(sources)/4)
	s.players = make([]PlayerSlot, s.MaxPlayers)

	for _, src := range sources {
		id := s.allocateEntityID()
		s.entities[id] = &Entity{
			Type:  worldconst.EntitySource,
			X:     src.X,
			Y:     src.Y,
			// fill_tick 0 means already full: the capability layer derives
			// energy from this tick via decay.ByFillTime rather than
			// storing the value directly.
			Props: map[string]any{"fill_tick": uint32(0)},
		}
	}
	s.buildPositionIndex()

	if err := s.Save(); err != nil {
		return nil, fmt.Errorf("world: saving newly created world: %w", err)
	}
	return s, nil
}

func (s *Store) buildPositionIndex() {
	s.posIndex = make(map[[2]int]uint32, len(s.entities))
	for id, e := range s.entities {
		s.posIndex[[2]int{e.X, e.Y}] = id
	}
}

func (s *Store) allocateEntityID() uint32 {
	for {
		k := s.rng.Uint32()
		if _, exists := s.entities[k]; !exists {
			return k
		}
	}
}

func (s *Store) checkXY(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.Width && y < s.Height
}

// PlaceNewEntity allocates a fresh entity and places it at (x,y). Fails
// (returns ok=false) if the coordinate is out of range or already
// occupied.
func (s *Store) PlaceNewEntity(entityType worldconst.EntityType, x, y int, props map[string]any) (id uint32, ok bool) {
	if !s.checkXY(x, y) {
		return 0, false
	}
	key := [2]int{x, y}
	if _, occupied := s.posIndex[key]; occupied {
		return 0, false
	}
	id = s.allocateEntityID()
	s.entities[id] = &Entity{Type: entityType, X: x, Y: y, Props: props}
	s.posIndex[key] = id
	return id, true
}

// AllEntities returns a defensive copy of every entity in the table,
// keyed by id. Used by the capability layer to enumerate a viewer's bots,
// buildings and nearby entities; not meant for hot per-tick loops.
func (s *Store) AllEntities() map[uint32]Entity {
	out := make(map[uint32]Entity, len(s.entities))
	for id, e := range s.entities {
		out[id] = e.clone()
	}
	return out
}

// GetEntity returns the id of the entity at (x,y), if any.
func (s *Store) GetEntity(x, y int) (uint32, bool) {
	id, ok := s.posIndex[[2]int{x, y}]
	return id, ok
}

// GetEntityByID returns a defensive copy of the entity record; the caller
// cannot mutate store state through it.
func (s *Store) GetEntityByID(id uint32) (Entity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// ChangeEntityProp writes a type-specific property. id must name an
// existing entity; key must not be "x" or "y" - attempting to move an
// entity through this call is a contract violation, not an expected
// failure.
func (s *Store) ChangeEntityProp(id uint32, key string, value any) error {
	if key == "x" || key == "y" {
		panic("world: ChangeEntityProp cannot change position, use MoveEntity")
	}
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("world: unknown entity id %d", id)
	}
	if e.Props == nil {
		e.Props = make(map[string]any)
	}
	e.Props[key] = value
	return nil
}

// MoveEntity moves id one step in dir. Fails if the destination is out of
// range or already occupied; does not check for walls, which is the game
// layer's responsibility.
func (s *Store) MoveEntity(id uint32, dir worldconst.Direction) bool {
	e, ok := s.entities[id]
	if !ok {
		panic(fmt.Sprintf("world: unknown entity id %d", id))
	}
	dx, dy := dir.Offset()
	nx, ny := e.X+dx, e.Y+dy
	if !s.checkXY(nx, ny) {
		return false
	}
	key := [2]int{nx, ny}
	if _, occupied := s.posIndex[key]; occupied {
		return false
	}
	delete(s.posIndex, [2]int{e.X, e.Y})
	e.X, e.Y = nx, ny
	s.posIndex[key] = id
	return true
}

// RemoveEntity deletes id from both the entity table and the position
// index.
func (s *Store) RemoveEntity(id uint32) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("world: unknown entity id %d", id)
	}
	delete(s.posIndex, [2]int{e.X, e.Y})
	delete(s.entities, id)
	return nil
}

// GetNatural returns the natural-map value at (x,y) and, for a decaying
// artificial wall or road, its current HP. Out-of-range coordinates read
// as an impassable natural wall. A wall/road found already expired is
// demoted to ground in place before returning.
func (s *Store) GetNatural(x, y int) (worldconst.NaturalType, *int) {
	if !s.checkXY(x, y) {
		return worldconst.NaturalWall, nil
	}
	v := s.naturalMap[x][y]
	if v != worldconst.ArtificialWall && v != worldconst.Road {
		return v, nil
	}
	g := s.groundIndex[x][y]
	zero := s.wallRoadZero[g]
	if s.time >= zero {
		s.naturalMap[x][y] = worldconst.Ground
		return worldconst.Ground, nil
	}
	rate := worldconst.RoadDecay
	if v == worldconst.ArtificialWall {
		rate = worldconst.WallDecay
	}
	hp := decay.ByZeroTime(s.time, zero, rate)
	return v, &hp
}

// ChangeNaturalHP applies a signed HP delta to the artificial wall or road
// at (x,y), demoting it to ground if it drops to zero or below. Fails on
// any square that isn't currently a wall or road.
func (s *Store) ChangeNaturalHP(x, y int, delta int) bool {
	if !s.checkXY(x, y) {
		return false
	}
	v := s.naturalMap[x][y]
	if v != worldconst.ArtificialWall && v != worldconst.Road {
		return false
	}
	g := s.groundIndex[x][y]
	rate := worldconst.RoadDecay
	if v == worldconst.ArtificialWall {
		rate = worldconst.WallDecay
	}
	newZero := decay.ZeroTimeByChange(s.time, s.wallRoadZero[g], rate, delta)
	s.wallRoadZero[g] = newZero
	if newZero <= s.time {
		s.naturalMap[x][y] = worldconst.Ground
	}
	return true
}

// SetNaturalType replaces the square at (x,y) with a freshly built
// artificial wall or road at the given starting HP. Fails on natural wall,
// out-of-range coordinates, or a non-positive hp.
func (s *Store) SetNaturalType(x, y int, t worldconst.NaturalType, hp int) bool {
	if t != worldconst.ArtificialWall && t != worldconst.Road {
		return false
	}
	if hp <= 0 || !s.checkXY(x, y) {
		return false
	}
	if s.naturalMap[x][y] == worldconst.NaturalWall {
		return false
	}
	rate := worldconst.RoadDecay
	if t == worldconst.ArtificialWall {
		rate = worldconst.WallDecay
	}
	s.naturalMap[x][y] = t
	g := s.groundIndex[x][y]
	s.wallRoadZero[g] = decay.ZeroTimeByChange(s.time, s.time, rate, hp)
	return true
}

// GetEnergyDrop returns the energy remaining in the drop at (x,y), or nil
// if there is none.
func (s *Store) GetEnergyDrop(x, y int) *int {
	if !s.checkXY(x, y) {
		return nil
	}
	g := s.groundIndex[x][y]
	val := decay.ByZeroTime(s.time, s.dropZero[g], worldconst.DropDecay)
	if val <= 0 {
		return nil
	}
	return &val
}

// ChangeEnergyDrop adjusts the energy drop at (x,y) by delta, implicitly
// creating one if delta is positive and none exists, or exhausting one
// that decays to zero.
func (s *Store) ChangeEnergyDrop(x, y int, delta int) {
	if !s.checkXY(x, y) {
		return
	}
	g := s.groundIndex[x][y]
	s.dropZero[g] = decay.ZeroTimeByChange(s.time, s.dropZero[g], worldconst.DropDecay, delta)
}

// ActivatePlayer completes the original place_new_player_base stub: it
// scans the player table for the first empty slot (or slotHint if it is
// free), stamps name and a fresh credential, and assigns a map offset by
// tiling maxplayers slots across the world in row-major order, the same
// way source placement tiles cells.
func (s *Store) ActivatePlayer(slotHint int, name string) (slot int, ok bool) {
	if slotHint >= 0 && slotHint < len(s.players) && !s.players[slotHint].Active {
		slot = slotHint
	} else {
		slot = -1
		for i, p := range s.players {
			if !p.Active {
				slot = i
				break
			}
		}
		if slot < 0 {
			return 0, false
		}
	}

	stride := 0
	if len(s.players) > 0 {
		stride = s.Width * s.Height / len(s.players)
	}
	offset := slot * stride
	var ox, oy int
	if s.Width > 0 {
		ox, oy = offset%s.Width, offset/s.Width
	}

	s.players[slot] = PlayerSlot{
		Active:     true,
		Name:       name,
		Credential: uuid.New(),
		MapOffsetX: ox,
		MapOffsetY: oy,
	}
	return slot, true
}

type persistedData struct {
	Width      int               `yaml:"width"`
	Height     int               `yaml:"height"`
	MaxPlayers int               `yaml:"maxplayers"`
	Entities   map[uint32]Entity `yaml:"entities"`
	Players    []PlayerSlot      `yaml:"players"`
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("world: creating %q: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return fmt.Errorf("world: writing %q: %w", path, err)
	}
	return nil
}

func flattenUint8(nm [][]worldconst.NaturalType) [][]uint8 {
	out := make([][]uint8, len(nm))
	for x, col := range nm {
		row := make([]uint8, len(col))
		for y, v := range col {
			row[y] = uint8(v)
		}
		out[x] = row
	}
	return out
}

// remainingTicks converts an array of absolute expiration ticks into
// durations remaining as of now, so nothing timestamp-shaped ever reaches
// disk; see Load for the inverse step.
func remainingTicks(zero []uint32, now uint32) []uint32 {
	out := make([]uint32, len(zero))
	for i, z := range zero {
		if z > now {
			out[i] = z - now
		}
	}
	return out
}

// Save writes the grid arrays (natural map, ground index, wall/road and
// drop decay) and the structured blob (size, max players, entities, player
// table) to dir. Decay arrays are converted to durations-remaining before
// writing, so those files never contain an absolute tick value tied to this
// process's tick origin. Entity properties are written as they are, so a
// tick-valued property (such as a bot's lifetime_zero or a source's
// fill_tick) is saved as an absolute tick.
func (s *Store) Save() error {
	if err := writeFile(filepath.Join(s.dir, fileNaturalMap), func(f *os.File) error {
		return npy.WriteUint8Grid(f, flattenUint8(s.naturalMap))
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(s.dir, fileGroundIndex), func(f *os.File) error {
		return npy.WriteUint32Grid(f, s.groundIndex)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(s.dir, fileWallRoad), func(f *os.File) error {
		return npy.WriteUint32Array(f, remainingTicks(s.wallRoadZero, s.time))
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(s.dir, fileDrops), func(f *os.File) error {
		return npy.WriteUint32Array(f, remainingTicks(s.dropZero, s.time))
	}); err != nil {
		return err
	}

	entities := make(map[uint32]Entity, len(s.entities))
	for id, e := range s.entities {
		entities[id] = *e
	}
	data := persistedData{
		Width:      s.Width,
		Height:     s.Height,
		MaxPlayers: s.MaxPlayers,
		Entities:   entities,
		Players:    s.players,
	}
	return writeFile(filepath.Join(s.dir, fileData), func(f *os.File) error {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(data)
	})
}

// Load reads a world previously written by Save. The tick counter always
// restarts at 0; the decay arrays were saved as durations-remaining, so
// setting the new origin to 0 reconstitutes the same absolute zero ticks
// (0 + remaining). Tick-valued entity properties are loaded unchanged and
// are read against the restarted counter.
func Load(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("world: %q is not a directory", dir)
	}

	naturalMap, err := readFile(filepath.Join(dir, fileNaturalMap), npy.ReadUint8Grid)
	if err != nil {
		return nil, err
	}
	groundIndex, err := readFile(filepath.Join(dir, fileGroundIndex), npy.ReadUint32Grid)
	if err != nil {
		return nil, err
	}
	wallRoadZero, err := readFile(filepath.Join(dir, fileWallRoad), npy.ReadUint32Array)
	if err != nil {
		return nil, err
	}
	dropZero, err := readFile(filepath.Join(dir, fileDrops), npy.ReadUint32Array)
	if err != nil {
		return nil, err
	}

	var data persistedData
	df, err := os.Open(filepath.Join(dir, fileData))
	if err != nil {
		return nil, fmt.Errorf("world: opening %q: %w", fileData, err)
	}
	defer df.Close()
	if err := yaml.NewDecoder(df).Decode(&data); err != nil {
		return nil, fmt.Errorf("world: decoding %q: %w", fileData, err)
	}

	grid := make([][]worldconst.NaturalType, len(naturalMap))
	for x, col := range naturalMap {
		row := make([]worldconst.NaturalType, len(col))
		for y, v := range col {
			row[y] = worldconst.NaturalType(v)
		}
		grid[x] = row
	}

	s := &Store{
		dir:          dir,
		Width:        data.Width,
		Height:       data.Height,
		MaxPlayers:   data.MaxPlayers,
		naturalMap:   grid,
		groundIndex:  groundIndex,
		groundCount:  len(wallRoadZero) - 1,
		wallRoadZero: wallRoadZero,
		dropZero:     dropZero,
		time:         0,
		players:      data.Players,
		rng:          newRuntimeRand(),
	}
	s.entities = make(map[uint32]*Entity, len(data.Entities))
	for id, e := range data.Entities {
		e := e
		s.entities[id] = &e
	}
	s.buildPositionIndex()
	return s, nil
}

func readFile[T any](path string, read func(*os.File) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("world: opening %q: %w", path, err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("world: reading %q: %w", path, err)
	}
	return v, nil
}

