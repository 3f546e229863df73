package capability

import "github.com/tierbots/server/worldconst"

// PartConfig is a bot's fixed list of parts, set at build time and never
// changed afterward.
type PartConfig []worldconst.BotPart

// MaxHP, MaxEnergy, MaxStamina, MeleeAttack, RangedAttack and HealEffect
// are the full bot-part stat accumulator from the original client API
// documentation: each scans pc in order, summing contributions, with the
// energy/stamina/attack/heal figures additionally capped by how many parts'
// worth of cumulative hp the bot has left (a damaged bot's non-hp stats
// degrade as the parts at the end of its list are the ones "destroyed"
// first). The arithmetic itself lives in worldconst, shared with the state
// store's entity construction path; these are just capability-typed entry
// points so game-layer code never has to import worldconst directly for a
// bot's derived stats.
func (pc PartConfig) MaxHP() int { return worldconst.MaxHP(pc) }

func (pc PartConfig) MaxEnergy(hp int) int { return worldconst.MaxEnergy(pc, hp) }

func (pc PartConfig) MaxStamina(hp int) int { return worldconst.MaxStamina(pc, hp) }

func (pc PartConfig) MeleeAttack(hp int) int { return worldconst.MeleeAttack(pc, hp) }

func (pc PartConfig) RangedAttack(hp int) int { return worldconst.RangedAttack(pc, hp) }

func (pc PartConfig) HealEffect(hp int) int { return worldconst.HealEffect(pc, hp) }
