package capability

import (
	"github.com/tierbots/server/decay"
	"github.com/tierbots/server/world"
	"github.com/tierbots/server/worldconst"
)

// Entity property keys. Props is an untyped bag (see world.Entity), so the
// capability layer and the code that places entities via
// Store.PlaceNewEntity must agree on these by convention.
const (
	propOwner        = "owner"         // string, bots and buildings
	propParts        = "parts"         // []worldconst.BotPart, bots
	propHP           = "hp"            // int, bots and buildings
	propMaxHP        = "max_hp"        // int, buildings (bots compute from parts)
	propEnergy       = "energy"        // int, bots/spawners/extensions
	propMaxEnergy    = "max_energy"    // int, spawners/extensions (sources use propFillZero instead)
	propFillZero     = "fill_tick"     // uint32 absolute tick, sources (reaches full energy there)
	propStamina      = "stamina"       // int, bots
	propLifetimeZero = "lifetime_zero" // uint32 absolute tick, bots
	propOfflineZero  = "offline_zero"  // uint32 absolute tick, buildings with an offline owner
	propBType        = "btype"         // worldconst.ConstructionType, construction sites/buildings
	propBuildPoints  = "buildpoints"   // int, construction sites
	propCost         = "cost"          // int, construction sites
	propBusyUntil    = "busy_until"    // uint32 absolute tick, spawners
	propOperator     = "operator"      // uint32 entity id, buildings with an operator
)

func propInt(props map[string]any, key string) int {
	v, _ := props[key].(int)
	return v
}

func propUint32(props map[string]any, key string) uint32 {
	v, _ := props[key].(uint32)
	return v
}

func propString(props map[string]any, key string) string {
	v, _ := props[key].(string)
	return v
}

func propBotParts(props map[string]any) []worldconst.BotPart {
	v, _ := props[propParts].([]worldconst.BotPart)
	return v
}

// view is the shared base every capability adapter embeds: a store and the
// id of the entity it reads from on every call. It holds no cached state,
// so it is always current as of the moment a method is invoked.
type view struct {
	store *world.Store
	id    uint32
}

func (v view) entity() world.Entity {
	e, _ := v.store.GetEntityByID(v.id)
	return e
}

func (v view) X() int { return v.entity().X }
func (v view) Y() int { return v.entity().Y }

// botView backs Bot, EnemyBot and MyBot: which interface a caller holds it
// through decides which operations are exercised, not which concrete type
// is returned. It embeds watcherView (rather than view directly) so it
// also satisfies MyBot's Watcher requirement.
type botView struct{ watcherView }

func (v botView) PartConfig() []worldconst.BotPart { return propBotParts(v.entity().Props) }
func (v botView) HP() int                          { return propInt(v.entity().Props, propHP) }
func (v botView) MaxHP() int                        { return PartConfig(v.PartConfig()).MaxHP() }
func (v botView) PlayerName() string                { return propString(v.entity().Props, propOwner) }
func (v botView) Energy() int                       { return propInt(v.entity().Props, propEnergy) }
func (v botView) MaxEnergy() int {
	return PartConfig(v.PartConfig()).MaxEnergy(v.HP())
}
func (v botView) Stamina() int { return propInt(v.entity().Props, propStamina) }
func (v botView) MaxStamina() int {
	return PartConfig(v.PartConfig()).MaxStamina(v.HP())
}
func (v botView) Lifetime() int {
	return decay.ByZeroTime(v.store.Time(), propUint32(v.entity().Props, propLifetimeZero), 1)
}

func (v botView) Move(dir worldconst.Direction) bool {
	return v.store.MoveEntity(v.id, dir)
}

func (v botView) Suicide() {
	_ = v.store.RemoveEntity(v.id)
}

func (v botView) Gather(dir worldconst.Direction) bool {
	dx, dy := dir.Offset()
	x, y := v.X()+dx, v.Y()+dy

	if id, ok := v.store.GetEntity(x, y); ok {
		if e, ok := v.store.GetEntityByID(id); ok && e.Type == worldconst.EntitySource {
			return v.gatherFromSource(id, e)
		}
	}

	drop := v.store.GetEnergyDrop(x, y)
	if drop == nil || *drop <= 0 {
		return false
	}
	v.store.ChangeEnergyDrop(x, y, -*drop)
	_ = v.store.ChangeEntityProp(v.id, propEnergy, min(v.MaxEnergy(), v.Energy()+*drop))
	return true
}

// gatherFromSource drains a source entity the way draining a wall or road
// damages its hp: the source's current energy is max-minus-the-deficit, and
// the deficit itself decays to zero (fully regrown) exactly like an hp
// value, so depleting it by amount is an ordinary ZeroTimeByChange call
// against fill_tick, the same zero-tick it already grows toward.
func (v botView) gatherFromSource(id uint32, source world.Entity) bool {
	fillZero := propUint32(source.Props, propFillZero)
	available := decay.ByFillTime(v.store.Time(), fillZero, worldconst.SourceGrowth, worldconst.SourceMaxEnergy)
	amount := min(available, v.MaxEnergy()-v.Energy())
	if amount <= 0 {
		return false
	}
	newFillZero := decay.ZeroTimeByChange(v.store.Time(), fillZero, worldconst.SourceGrowth, amount)
	_ = v.store.ChangeEntityProp(id, propFillZero, newFillZero)
	_ = v.store.ChangeEntityProp(v.id, propEnergy, v.Energy()+amount)
	return true
}

func (v botView) Put(dir worldconst.Direction) bool {
	have := v.Energy()
	if have <= 0 {
		return false
	}
	dx, dy := dir.Offset()
	x, y := v.X()+dx, v.Y()+dy
	v.store.ChangeEnergyDrop(x, y, have)
	_ = v.store.ChangeEntityProp(v.id, propEnergy, 0)
	return true
}

func (v botView) PlaceBuilding(dir worldconst.Direction, buildingType worldconst.ConstructionType) bool {
	dx, dy := dir.Offset()
	x, y := v.X()+dx, v.Y()+dy
	_, ok := v.store.PlaceNewEntity(worldconst.EntityConstructionSite, x, y, map[string]any{
		propOwner:       v.PlayerName(),
		propBType:       buildingType,
		propHP:          0,
		propBuildPoints: 0,
		propCost:        constructionCost(buildingType),
	})
	return ok
}

func constructionCost(t worldconst.ConstructionType) int {
	switch t {
	case worldconst.ConstructionWall:
		return worldconst.CornerWall * 10
	default:
		return worldconst.CornerWall * 20
	}
}

func (v botView) Build(dir worldconst.Direction) bool {
	dx, dy := dir.Offset()
	x, y := v.X()+dx, v.Y()+dy
	id, ok := v.store.GetEntity(x, y)
	if !ok {
		return false
	}
	site, ok := v.store.GetEntityByID(id)
	if !ok || site.Type != worldconst.EntityConstructionSite {
		return false
	}
	spent := min(v.Energy(), propInt(site.Props, propCost)-propInt(site.Props, propBuildPoints))
	if spent <= 0 {
		return false
	}
	_ = v.store.ChangeEntityProp(v.id, propEnergy, v.Energy()-spent)
	_ = v.store.ChangeEntityProp(id, propBuildPoints, propInt(site.Props, propBuildPoints)+spent)
	return true
}

func (v botView) Slay(dir worldconst.Direction) bool {
	dx, dy := dir.Offset()
	x, y := v.X()+dx, v.Y()+dy
	kind, hp := v.store.GetNatural(x, y)
	if kind == worldconst.ArtificialWall || kind == worldconst.Road {
		return v.store.ChangeNaturalHP(x, y, -PartConfig(v.PartConfig()).MeleeAttack(v.HP()))
	}
	id, ok := v.store.GetEntity(x, y)
	if !ok {
		_ = hp
		return false
	}
	target, ok := v.store.GetEntityByID(id)
	if !ok {
		return false
	}
	return v.damageEntity(id, target, PartConfig(v.PartConfig()).MeleeAttack(v.HP()))
}

func (v botView) damageEntity(id uint32, target world.Entity, amount int) bool {
	newHP := propInt(target.Props, propHP) - amount
	if newHP <= 0 {
		_ = v.store.RemoveEntity(id)
		return true
	}
	return v.store.ChangeEntityProp(id, propHP, newHP) == nil
}

func (v botView) Shoot(dx, dy int) bool {
	x, y := v.X()+dx, v.Y()+dy
	id, ok := v.store.GetEntity(x, y)
	if !ok {
		return false
	}
	target, ok := v.store.GetEntityByID(id)
	if !ok {
		return false
	}
	return v.damageEntity(id, target, PartConfig(v.PartConfig()).RangedAttack(v.HP()))
}

func (v botView) Heal(dir worldconst.Direction) bool {
	dx, dy := dir.Offset()
	x, y := v.X()+dx, v.Y()+dy
	id, ok := v.store.GetEntity(x, y)
	if !ok {
		return false
	}
	target, ok := v.store.GetEntityByID(id)
	if !ok {
		return false
	}
	effect := PartConfig(v.PartConfig()).HealEffect(v.HP())
	maxHP := propInt(target.Props, propMaxHP)
	if target.Type == worldconst.EntityBot {
		maxHP = PartConfig(propBotParts(target.Props)).MaxHP()
	}
	newHP := min(maxHP, propInt(target.Props, propHP)+effect)
	return v.store.ChangeEntityProp(id, propHP, newHP) == nil
}

// watcherView backs Watcher: the natural-map/energy-drop/entity scans that
// every bot and building with line of sight performs.
type watcherView struct{ view }

func (v watcherView) NaturalMap() [][]worldconst.NaturalType {
	out := make([][]worldconst.NaturalType, v.store.Width)
	for x := 0; x < v.store.Width; x++ {
		out[x] = make([]worldconst.NaturalType, v.store.Height)
		for y := 0; y < v.store.Height; y++ {
			kind, _ := v.store.GetNatural(x, y)
			out[x][y] = kind
		}
	}
	return out
}

func (v watcherView) NaturalMapHP() [][]int {
	out := make([][]int, v.store.Width)
	for x := 0; x < v.store.Width; x++ {
		out[x] = make([]int, v.store.Height)
		for y := 0; y < v.store.Height; y++ {
			_, hp := v.store.GetNatural(x, y)
			if hp != nil {
				out[x][y] = *hp
			}
		}
	}
	return out
}

func inRadius(cx, cy, x, y, radius int) bool {
	dx, dy := x-cx, y-cy
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx <= radius && dy <= radius
}

func (v watcherView) EnergyDropsAround(radius int) []EnergyDrop {
	cx, cy := v.X(), v.Y()
	var out []EnergyDrop
	lo := func(n int) int {
		if n < 0 {
			return 0
		}
		return n
	}
	for x := lo(cx - radius); x <= cx+radius && x < v.store.Width; x++ {
		for y := lo(cy - radius); y <= cy+radius && y < v.store.Height; y++ {
			if d := v.store.GetEnergyDrop(x, y); d != nil {
				out = append(out, energyDropView{store: v.store, x: x, y: y})
			}
		}
	}
	return out
}

func (v watcherView) NaturalObjectsAround(radius int) []NaturalObject {
	cx, cy := v.X(), v.Y()
	var out []NaturalObject
	lo := func(n int) int {
		if n < 0 {
			return 0
		}
		return n
	}
	for x := lo(cx - radius); x <= cx+radius && x < v.store.Width; x++ {
		for y := lo(cy - radius); y <= cy+radius && y < v.store.Height; y++ {
			kind, _ := v.store.GetNatural(x, y)
			out = append(out, NaturalObject{X: x, Y: y, Type: kind})
		}
	}
	return out
}

func (v watcherView) EnemyBotsAround(radius int) []EnemyBot {
	cx, cy := v.X(), v.Y()
	self := propString(v.entity().Props, propOwner)
	var out []EnemyBot
	for id, e := range v.store.AllEntities() {
		if e.Type != worldconst.EntityBot || !inRadius(cx, cy, e.X, e.Y, radius) {
			continue
		}
		if owner := propString(e.Props, propOwner); owner == "" || owner == self {
			continue
		}
		out = append(out, botView{watcherView{view{v.store, id}}})
	}
	return out
}

func (v watcherView) EnemyBuildingsAround(radius int) []EnemyStructure {
	cx, cy := v.X(), v.Y()
	self := propString(v.entity().Props, propOwner)
	var out []EnemyStructure
	for id, e := range v.store.AllEntities() {
		if e.Type != worldconst.EntityConstructionSite && !isBuildingEntity(e.Type) {
			continue
		}
		if !inRadius(cx, cy, e.X, e.Y, radius) {
			continue
		}
		if owner := propString(e.Props, propOwner); owner == "" || owner == self {
			continue
		}
		out = append(out, buildingView{watcherView{view{v.store, id}}})
	}
	return out
}

func isBuildingEntity(t worldconst.EntityType) bool {
	switch t {
	case worldconst.EntitySpawner, worldconst.EntityExtension, worldconst.EntityRadar:
		return true
	}
	return false
}

// energyDropView backs EnergyDrop: a fixed (x, y) location, not an entity.
type energyDropView struct {
	store *world.Store
	x, y  int
}

func (v energyDropView) X() int { return v.x }
func (v energyDropView) Y() int { return v.y }
func (v energyDropView) Energy() int {
	d := v.store.GetEnergyDrop(v.x, v.y)
	if d == nil {
		return 0
	}
	return *d
}

// sourceView backs EnergySource. Its energy is never stored directly:
// fill_tick names the tick at which it would next be back at full strength,
// and Energy derives the current value from that on every read, the same
// zero-tick trick the ground index uses for decaying walls and roads.
type sourceView struct{ view }

func (v sourceView) Energy() int {
	fillZero := propUint32(v.entity().Props, propFillZero)
	return decay.ByFillTime(v.store.Time(), fillZero, worldconst.SourceGrowth, worldconst.SourceMaxEnergy)
}
func (v sourceView) MaxEnergy() int { return worldconst.SourceMaxEnergy }

// buildingView backs Building, EnemyBuilding, EnemyConstructionSite,
// MyConstructionSite, MyBuilding, SpawnerBuilding, ExtensionBuilding,
// MyBuildingWithOperator and Radar - which capability is exposed is again
// a matter of which interface the caller holds, not the concrete type. It
// embeds watcherView so it also satisfies MyBuilding's Watcher requirement.
type buildingView struct{ watcherView }

// HP returns the building's stored hp, or its decayed value if the owner
// has gone offline: offline_zero marks the tick at which an abandoned
// building would fade to nothing over worldconst.OfflineBuildingLifetime
// ticks, same shape as a wall or road decaying toward ground.
func (v buildingView) HP() int {
	props := v.entity().Props
	hp := propInt(props, propHP)
	zero := propUint32(props, propOfflineZero)
	if zero == 0 {
		return hp
	}
	maxHP := propInt(props, propMaxHP)
	if maxHP <= 0 {
		return hp
	}
	rate := float64(maxHP) / float64(worldconst.OfflineBuildingLifetime)
	if decayed := decay.ByZeroTime(v.store.Time(), zero, rate); decayed < hp {
		return decayed
	}
	return hp
}
func (v buildingView) MaxHP() int { return propInt(v.entity().Props, propMaxHP) }
func (v buildingView) PlayerName() string {
	return propString(v.entity().Props, propOwner)
}
func (v buildingView) BuildingType() worldconst.ConstructionType {
	t, _ := v.entity().Props[propBType].(worldconst.ConstructionType)
	return t
}
func (v buildingView) BuildPoints() int { return propInt(v.entity().Props, propBuildPoints) }
func (v buildingView) Cost() int        { return propInt(v.entity().Props, propCost) }
func (v buildingView) Energy() int      { return propInt(v.entity().Props, propEnergy) }
func (v buildingView) MaxEnergy() int   { return propInt(v.entity().Props, propMaxEnergy) }
func (v buildingView) BusyUntil() int {
	return decay.ByZeroTime(v.store.Time(), propUint32(v.entity().Props, propBusyUntil), 1)
}

func (v buildingView) BuildBot(parts []worldconst.BotPart) (uint32, bool) {
	cost := PartConfig(parts).MaxHP()
	if v.Energy() < cost {
		return 0, false
	}
	for _, dir := range []worldconst.Direction{
		worldconst.North, worldconst.East, worldconst.South, worldconst.West,
	} {
		dx, dy := dir.Offset()
		x, y := v.X()+dx, v.Y()+dy
		kind, _ := v.store.GetNatural(x, y)
		if kind != worldconst.Ground {
			continue
		}
		if _, occupied := v.store.GetEntity(x, y); occupied {
			continue
		}
		id, ok := v.store.PlaceNewEntity(worldconst.EntityBot, x, y, map[string]any{
			propOwner:        v.PlayerName(),
			propParts:        parts,
			propHP:           PartConfig(parts).MaxHP(),
			propEnergy:       0,
			propLifetimeZero: v.store.Time() + worldconst.BotLifetime,
		})
		if !ok {
			continue
		}
		_ = v.store.ChangeEntityProp(v.id, propEnergy, v.Energy()-cost)
		return id, true
	}
	return 0, false
}

func (v buildingView) OperatorBot() (MyBot, bool) {
	id := propUint32(v.entity().Props, propOperator)
	if id == 0 {
		return nil, false
	}
	if _, ok := v.store.GetEntityByID(id); !ok {
		return nil, false
	}
	return botView{watcherView{view{v.store, id}}}, true
}

// worldView backs World, the viewer's top-level handle.
type worldView struct {
	store      *world.Store
	playerName string
}

// NewWorldView builds the World capability for the player named
// playerName, reading from store.
func NewWorldView(store *world.Store, playerName string) World {
	return worldView{store: store, playerName: playerName}
}

func (v worldView) Time() uint32 { return v.store.Time() }

func (v worldView) MyBots() []MyBot {
	var out []MyBot
	for id, e := range v.store.AllEntities() {
		if e.Type == worldconst.EntityBot && propString(e.Props, propOwner) == v.playerName {
			out = append(out, botView{watcherView{view{v.store, id}}})
		}
	}
	return out
}

func (v worldView) MyBuildings() []MyBuilding {
	var out []MyBuilding
	for id, e := range v.store.AllEntities() {
		if !isBuildingEntity(e.Type) {
			continue
		}
		if propString(e.Props, propOwner) == v.playerName {
			out = append(out, buildingView{watcherView{view{v.store, id}}})
		}
	}
	return out
}

// View resolves id to whichever capability its entity type backs: an
// EnergySource for a source, a MyBot/EnemyBot-capable Bot for a bot, or a
// MyConstructionSite/MyBuilding-capable Building for anything else in the
// entity table. ok is false if id does not resolve to a known entity.
func View(store *world.Store, id uint32) (any, bool) {
	e, ok := store.GetEntityByID(id)
	if !ok {
		return nil, false
	}
	switch e.Type {
	case worldconst.EntitySource:
		return sourceView{view{store, id}}, true
	case worldconst.EntityBot:
		return botView{watcherView{view{store, id}}}, true
	default:
		return buildingView{watcherView{view{store, id}}}, true
	}
}
