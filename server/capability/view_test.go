package capability

import (
	"math/rand/v2"
	"testing"

	"github.com/tierbots/server/world"
	"github.com/tierbots/server/worldconst"
)

func newTestWorld(t *testing.T) *world.Store {
	t.Helper()
	dir := t.TempDir()
	r := rand.New(rand.NewPCG(1, 2))
	s, err := world.CreateNew(dir, r, 2, 2)
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	return s
}

// freeGround finds a ground tile with no entity on it whose four orthogonal
// neighbors are also unoccupied ground, so a spawner placed there can build
// onto open space. It fails the test if there is no such tile.
func freeGround(t *testing.T, s *world.Store) (int, int) {
	t.Helper()
	for x := 1; x < s.Width-1; x++ {
		for y := 1; y < s.Height-1; y++ {
			kind, _ := s.GetNatural(x, y)
			if kind != worldconst.Ground {
				continue
			}
			if _, occupied := s.GetEntity(x, y); occupied {
				continue
			}
			allGround := true
			for _, dir := range []worldconst.Direction{worldconst.North, worldconst.South, worldconst.East, worldconst.West} {
				dx, dy := dir.Offset()
				nkind, _ := s.GetNatural(x+dx, y+dy)
				if nkind != worldconst.Ground {
					allGround = false
					break
				}
				if _, occ := s.GetEntity(x+dx, y+dy); occ {
					allGround = false
					break
				}
			}
			if allGround {
				return x, y
			}
		}
	}
	t.Fatal("no suitable free ground tile found")
	return 0, 0
}

func placeBot(t *testing.T, s *world.Store, x, y int, owner string, parts []worldconst.BotPart) uint32 {
	t.Helper()
	hp := PartConfig(parts).MaxHP()
	id, ok := s.PlaceNewEntity(worldconst.EntityBot, x, y, map[string]any{
		"owner":         owner,
		"parts":         parts,
		"hp":            hp,
		"energy":        0,
		"lifetime_zero": s.Time() + worldconst.BotLifetime,
	})
	if !ok {
		t.Fatalf("placeBot: PlaceNewEntity failed at (%d,%d)", x, y)
	}
	return id
}

func mustBot(t *testing.T, store *world.Store, id uint32) MyBot {
	t.Helper()
	v, ok := View(store, id)
	if !ok {
		t.Fatalf("View(%d): not found", id)
	}
	bot, ok := v.(MyBot)
	if !ok {
		t.Fatalf("View(%d) = %T, want MyBot", id, v)
	}
	return bot
}

func TestBotViewStatsMatchParts(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	parts := []worldconst.BotPart{worldconst.PartWorker, worldconst.PartMovement, worldconst.PartMelee}
	id := placeBot(t, s, x, y, "alice", parts)
	bot := mustBot(t, s, id)

	if got, want := bot.MaxHP(), PartConfig(parts).MaxHP(); got != want {
		t.Fatalf("MaxHP = %d, want %d", got, want)
	}
	if got, want := bot.HP(), bot.MaxHP(); got != want {
		t.Fatalf("fresh bot HP = %d, want %d (full)", got, want)
	}
	if bot.PlayerName() != "alice" {
		t.Fatalf("PlayerName = %q, want alice", bot.PlayerName())
	}
	if bot.Lifetime() <= 0 {
		t.Fatalf("fresh bot Lifetime = %d, want positive", bot.Lifetime())
	}
}

func TestBotViewMove(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id := placeBot(t, s, x, y, "alice", []worldconst.BotPart{worldconst.PartMovement})
	bot := mustBot(t, s, id)

	moved := false
	for _, dir := range []worldconst.Direction{worldconst.North, worldconst.South, worldconst.East, worldconst.West} {
		if bot.Move(dir) {
			moved = true
			break
		}
	}
	if !moved {
		t.Fatal("bot could not move in any direction from an all-ground tile")
	}
	if bot.X() == x && bot.Y() == y {
		t.Fatal("Move reported success but position unchanged")
	}
}

func TestBotViewGatherAndPut(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id := placeBot(t, s, x, y, "alice", []worldconst.BotPart{worldconst.PartWorker})
	bot := mustBot(t, s, id)

	dx, dy := worldconst.North.Offset()
	s.ChangeEnergyDrop(x+dx, y+dy, 5)

	if !bot.Gather(worldconst.North) {
		t.Fatal("Gather failed on a tile with a drop")
	}
	if bot.Energy() != 5 {
		t.Fatalf("Energy after Gather = %d, want 5", bot.Energy())
	}
	if d := s.GetEnergyDrop(x+dx, y+dy); d != nil {
		t.Fatalf("drop should be consumed, got %v", *d)
	}

	if !bot.Put(worldconst.South) {
		t.Fatal("Put failed with energy on hand")
	}
	if bot.Energy() != 0 {
		t.Fatalf("Energy after Put = %d, want 0", bot.Energy())
	}
	sx, sy := worldconst.South.Offset()
	if d := s.GetEnergyDrop(x+sx, y+sy); d == nil || *d != 5 {
		t.Fatalf("dropped energy = %v, want 5", d)
	}
}

func TestBotViewPlaceAndBuild(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id := placeBot(t, s, x, y, "alice", []worldconst.BotPart{worldconst.PartWorker})
	bot := mustBot(t, s, id)
	s.ChangeEntityProp(id, "energy", 1000)

	if !bot.PlaceBuilding(worldconst.North, worldconst.ConstructionWall) {
		t.Fatal("PlaceBuilding failed on a free tile")
	}
	if !bot.Build(worldconst.North) {
		t.Fatal("Build failed against a fresh construction site")
	}

	dx, dy := worldconst.North.Offset()
	siteID, ok := s.GetEntity(x+dx, y+dy)
	if !ok {
		t.Fatal("construction site missing after Build")
	}
	site, ok := View(s, siteID)
	if !ok {
		t.Fatal("View of construction site failed")
	}
	mcs, ok := site.(MyConstructionSite)
	if !ok {
		t.Fatalf("construction site view = %T, want MyConstructionSite", site)
	}
	if mcs.BuildPoints() <= 0 {
		t.Fatal("Build did not add any build points")
	}
}

func TestBotViewSlay(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id := placeBot(t, s, x, y, "alice", []worldconst.BotPart{worldconst.PartMelee})
	bot := mustBot(t, s, id)

	dx, dy := worldconst.East.Offset()
	placeBot(t, s, x+dx, y+dy, "bob", []worldconst.BotPart{worldconst.PartTough})

	if !bot.Slay(worldconst.East) {
		t.Fatal("Slay failed against an adjacent enemy bot")
	}
}

func TestBotViewShootAndHeal(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id := placeBot(t, s, x, y, "alice", []worldconst.BotPart{worldconst.PartRanged, worldconst.PartHeal})
	bot := mustBot(t, s, id)

	dx, dy := worldconst.East.Offset()
	targetID := placeBot(t, s, x+dx, y+dy, "bob", []worldconst.BotPart{worldconst.PartTough})

	if !bot.Shoot(dx, dy) {
		t.Fatal("Shoot failed against an adjacent entity")
	}
	target, ok := s.GetEntityByID(targetID)
	if !ok {
		t.Fatal("target missing after Shoot")
	}
	if target.Props["hp"].(int) >= PartConfig([]worldconst.BotPart{worldconst.PartTough}).MaxHP() {
		t.Fatal("Shoot did not reduce target hp")
	}

	if !bot.Heal(worldconst.East) {
		t.Fatal("Heal failed against an adjacent damaged bot")
	}
}

func TestSpawnerBuildsBotWithLifetime(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id, ok := s.PlaceNewEntity(worldconst.EntitySpawner, x, y, map[string]any{
		"owner":  "alice",
		"max_hp": 100,
		"hp":     100,
		"energy": 1000,
	})
	if !ok {
		t.Fatal("could not place spawner")
	}
	v, ok := View(s, id)
	if !ok {
		t.Fatal("View(spawner) failed")
	}
	spawner, ok := v.(SpawnerBuilding)
	if !ok {
		t.Fatalf("spawner view = %T, want SpawnerBuilding", v)
	}

	parts := []worldconst.BotPart{worldconst.PartWorker}
	botID, ok := spawner.BuildBot(parts)
	if !ok {
		t.Fatal("BuildBot failed with enough energy and free ground around it")
	}
	bot := mustBot(t, s, botID)
	if bot.Lifetime() <= 0 {
		t.Fatalf("newly built bot Lifetime = %d, want positive", bot.Lifetime())
	}
	if bot.PlayerName() != "alice" {
		t.Fatalf("built bot owner = %q, want alice", bot.PlayerName())
	}
	if spawner.Energy() != 1000-PartConfig(parts).MaxHP() {
		t.Fatalf("spawner energy after build = %d, want %d", spawner.Energy(), 1000-PartConfig(parts).MaxHP())
	}
}

func TestWorldViewListsOwnBotsAndBuildings(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	placeBot(t, s, x, y, "alice", []worldconst.BotPart{worldconst.PartWorker})

	dx, dy := worldconst.East.Offset()
	s.PlaceNewEntity(worldconst.EntitySpawner, x+dx, y+dy, map[string]any{
		"owner": "alice", "max_hp": 50, "hp": 50,
	})

	wv := NewWorldView(s, "alice")
	if len(wv.MyBots()) != 1 {
		t.Fatalf("MyBots() = %d, want 1", len(wv.MyBots()))
	}
	if len(wv.MyBuildings()) != 1 {
		t.Fatalf("MyBuildings() = %d, want 1", len(wv.MyBuildings()))
	}
	if wv.Time() != s.Time() {
		t.Fatalf("Time() = %d, want %d", wv.Time(), s.Time())
	}
}

func TestWatcherEnemyScans(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id := placeBot(t, s, x, y, "alice", []worldconst.BotPart{worldconst.PartWorker})
	bot := mustBot(t, s, id)

	dx, dy := worldconst.East.Offset()
	placeBot(t, s, x+dx, y+dy, "bob", []worldconst.BotPart{worldconst.PartTough})

	enemies := bot.EnemyBotsAround(3)
	if len(enemies) != 1 {
		t.Fatalf("EnemyBotsAround(3) = %d, want 1", len(enemies))
	}
	if enemies[0].PlayerName() != "bob" {
		t.Fatalf("enemy owner = %q, want bob", enemies[0].PlayerName())
	}

	if len(bot.EnemyBotsAround(0)) != 0 {
		t.Fatal("EnemyBotsAround(0) should not reach a bot one tile away")
	}
}

func TestBuildingViewOfflineDecay(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id, ok := s.PlaceNewEntity(worldconst.EntityExtension, x, y, map[string]any{
		"owner":        "alice",
		"max_hp":       100,
		"hp":           100,
		"offline_zero": s.Time() + worldconst.OfflineBuildingLifetime,
	})
	if !ok {
		t.Fatal("could not place extension")
	}
	v, ok := View(s, id)
	if !ok {
		t.Fatal("View failed")
	}
	building, ok := v.(ExtensionBuilding)
	if !ok {
		t.Fatalf("view = %T, want ExtensionBuilding", v)
	}
	if building.HP() != 100 {
		t.Fatalf("HP before any elapsed ticks = %d, want 100", building.HP())
	}

	for i := 0; i < worldconst.OfflineBuildingLifetime/2; i++ {
		s.Advance()
	}
	if building.HP() >= 100 {
		t.Fatalf("HP after half the offline lifetime = %d, want decayed", building.HP())
	}
}

func TestEnergySourceView(t *testing.T) {
	s := newTestWorld(t)
	var sourceID uint32
	for id, e := range s.AllEntities() {
		if e.Type == worldconst.EntitySource {
			sourceID = id
			break
		}
	}
	if sourceID == 0 {
		t.Fatal("no energy source placed by CreateNew")
	}
	v, ok := View(s, sourceID)
	if !ok {
		t.Fatal("View(source) failed")
	}
	source, ok := v.(EnergySource)
	if !ok {
		t.Fatalf("view = %T, want EnergySource", v)
	}
	if source.MaxEnergy() != worldconst.SourceMaxEnergy {
		t.Fatalf("MaxEnergy = %d, want %d", source.MaxEnergy(), worldconst.SourceMaxEnergy)
	}
	if source.Energy() != worldconst.SourceMaxEnergy {
		t.Fatalf("fresh source Energy = %d, want %d", source.Energy(), worldconst.SourceMaxEnergy)
	}
}

func TestBotViewGatherFromSourceDrainsAndRegrows(t *testing.T) {
	s := newTestWorld(t)
	var sourceID uint32
	var sx, sy int
	for id, e := range s.AllEntities() {
		if e.Type == worldconst.EntitySource {
			sourceID, sx, sy = id, e.X, e.Y
			break
		}
	}
	if sourceID == 0 {
		t.Fatal("no energy source placed by CreateNew")
	}

	var bx, by int
	found := false
	for _, dir := range []worldconst.Direction{worldconst.North, worldconst.South, worldconst.East, worldconst.West} {
		dx, dy := dir.Offset()
		kind, _ := s.GetNatural(sx+dx, sy+dy)
		if kind == worldconst.Ground {
			if _, occ := s.GetEntity(sx+dx, sy+dy); !occ {
				bx, by = sx+dx, sy+dy
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatal("no free ground tile adjacent to the energy source")
	}

	id := placeBot(t, s, bx, by, "alice", []worldconst.BotPart{worldconst.PartWorker, worldconst.PartStorage})
	bot := mustBot(t, s, id)

	dir := worldconst.Direction(0)
	for _, d := range []worldconst.Direction{worldconst.North, worldconst.South, worldconst.East, worldconst.West} {
		ddx, ddy := d.Offset()
		if bx+ddx == sx && by+ddy == sy {
			dir = d
			break
		}
	}
	if dir == 0 {
		t.Fatal("could not find the direction back to the source")
	}

	if !bot.Gather(dir) {
		t.Fatal("Gather failed against an adjacent energy source")
	}
	gained := bot.Energy()
	if gained <= 0 {
		t.Fatal("Gather should have added energy to the bot")
	}

	v, ok := View(s, sourceID)
	if !ok {
		t.Fatal("View(source) failed")
	}
	source := v.(EnergySource)
	if source.Energy() != worldconst.SourceMaxEnergy-gained {
		t.Fatalf("source Energy after drain = %d, want %d", source.Energy(), worldconst.SourceMaxEnergy-gained)
	}

	regrowTicks := int(float64(gained) / worldconst.SourceGrowth)
	for i := 0; i < regrowTicks; i++ {
		s.Advance()
	}
	if source.Energy() != worldconst.SourceMaxEnergy {
		t.Fatalf("source Energy after regrowth = %d, want fully regrown %d", source.Energy(), worldconst.SourceMaxEnergy)
	}
}

func TestBuildingViewMaxEnergyIsDistinctFromMaxHP(t *testing.T) {
	s := newTestWorld(t)
	x, y := freeGround(t, s)
	id, ok := s.PlaceNewEntity(worldconst.EntitySpawner, x, y, map[string]any{
		"owner":      "alice",
		"max_hp":     100,
		"hp":         100,
		"max_energy": 500,
		"energy":     500,
	})
	if !ok {
		t.Fatal("could not place spawner")
	}
	v, ok := View(s, id)
	if !ok {
		t.Fatal("View(spawner) failed")
	}
	spawner := v.(SpawnerBuilding)
	if spawner.MaxEnergy() != 500 {
		t.Fatalf("MaxEnergy = %d, want 500 (distinct from max_hp 100)", spawner.MaxEnergy())
	}
	if spawner.MaxHP() != 100 {
		t.Fatalf("MaxHP = %d, want 100", spawner.MaxHP())
	}
}
