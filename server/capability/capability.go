// Package capability is the client-facing API surface: a lattice of small
// interfaces (Positionable, Healthable, Bot, Building, Watcher, and so on)
// that the game layer composes to describe what a piece of world state can
// do. None of these hold storage of their own - every implementation here
// is a thin adapter reading a *world.Store at call time, so the interfaces
// stay contracts rather than a second copy of the state.
package capability

import "github.com/tierbots/server/worldconst"

// Positionable is anything with an absolute (x, y) position, relative to
// the world's origin.
type Positionable interface {
	X() int
	Y() int
}

// Healthable is anything with hit points.
type Healthable interface {
	HP() int
	MaxHP() int
}

// EnergyStorage is anything that holds energy up to a maximum.
type EnergyStorage interface {
	Energy() int
	MaxEnergy() int
}

// EnergyDrop is a pile of energy lying on the ground.
type EnergyDrop interface {
	Positionable
	Energy() int
}

// EnergySource is a naturally occurring, regenerating energy well.
type EnergySource interface {
	Positionable
	EnergyStorage
}

// Bot is a mobile unit, built from a fixed set of parts.
type Bot interface {
	Positionable
	Healthable
	PartConfig() []worldconst.BotPart
}

// Building is a stationary, player-owned structure. Its hp slowly fades
// while its owner is offline.
type Building interface {
	Positionable
	Healthable
}

// Enemy is anything owned by a player other than the viewer.
type Enemy interface {
	PlayerName() string
}

// EnemyBot is a bot belonging to another player.
type EnemyBot interface {
	Bot
	Enemy
}

// EnemyConstructionSite is a construction site belonging to another player.
type EnemyConstructionSite interface {
	Building
	Enemy
}

// EnemyBuilding is a completed building belonging to another player.
type EnemyBuilding interface {
	Building
	Enemy
	BuildingType() worldconst.ConstructionType
}

// EnemyStructure is the common surface of EnemyConstructionSite and
// EnemyBuilding, returned by Watcher.EnemyBuildingsAround where either may
// appear. Both come back as the same adapter, which always has
// BuildingType(), so a type assertion for it does not tell them apart.
type EnemyStructure interface {
	Building
	Enemy
}

// MyConstructionSite is one of the viewer's own buildings still under
// construction.
type MyConstructionSite interface {
	Building
	BuildingType() worldconst.ConstructionType
	BuildPoints() int
	Cost() int
}

// NaturalObject is one tile of the natural map, reported by
// Watcher.NaturalObjectsAround.
type NaturalObject struct {
	X, Y int
	Type worldconst.NaturalType
}

// Watcher is anything with a view into the surrounding world: the raw
// natural-map grid plus nearby drops, natural objects, and enemies, each
// scoped to a radius around the watcher's own position. NaturalMap and
// NaturalMapHP cover the whole world grid; they are not limited to a view
// radius.
type Watcher interface {
	NaturalMap() [][]worldconst.NaturalType
	NaturalMapHP() [][]int
	EnergyDropsAround(radius int) []EnergyDrop
	NaturalObjectsAround(radius int) []NaturalObject
	EnemyBotsAround(radius int) []EnemyBot
	EnemyBuildingsAround(radius int) []EnemyStructure
}

// MyBot is one of the viewer's own bots: a watching, energy-holding,
// mobile, actionable unit.
type MyBot interface {
	Bot
	Watcher
	EnergyStorage

	// Lifetime decreases every tick; the bot dies when it reaches zero.
	Lifetime() int
	Stamina() int
	MaxStamina() int

	Move(dir worldconst.Direction) bool
	Suicide()
	Gather(dir worldconst.Direction) bool
	Put(dir worldconst.Direction) bool
	PlaceBuilding(dir worldconst.Direction, buildingType worldconst.ConstructionType) bool
	Build(dir worldconst.Direction) bool
	Slay(dir worldconst.Direction) bool
	Shoot(dx, dy int) bool
	Heal(dir worldconst.Direction) bool
}

// MyBuilding is one of the viewer's own completed buildings.
type MyBuilding interface {
	Building
	Watcher
}

// SpawnerBuilding spawns new bots, optionally drawing on nearby
// ExtensionBuilding energy reserves.
type SpawnerBuilding interface {
	MyBuilding
	EnergyStorage

	BusyUntil() int
	BuildBot(parts []worldconst.BotPart) (id uint32, ok bool)
}

// ExtensionBuilding is an energy reservoir a nearby SpawnerBuilding can draw
// from to build more capable bots.
type ExtensionBuilding interface {
	MyBuilding
	EnergyStorage
}

// MyBuildingWithOperator is a building that requires a bot stationed inside
// it to function.
type MyBuildingWithOperator interface {
	MyBuilding
	OperatorBot() (MyBot, bool)
}

// Radar is a long-range, wall-penetrating Watcher that requires an operator
// bot.
type Radar interface {
	MyBuildingWithOperator
}

// World is the viewer's top-level handle: the tick counter and the
// viewer's own bots and buildings.
type World interface {
	Time() uint32
	MyBots() []MyBot
	MyBuildings() []MyBuilding
}
