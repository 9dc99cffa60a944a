package engine

import (
	"time"

	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/world"
)

// xpToNext is the threshold to reach the next level from the agent's current
// one. Derived, never stored.
func xpToNext(ag *world.Agent) int {
	return rules.XPToLevel(ag.Level)
}

// grantXP adds xp and resolves any level-ups in a loop, so one large grant
// can cross several thresholds in a single call. Each level grants a skill
// point, raises max hp, fully heals, and emits a level-up event. Returns the
// number of levels gained and the emitted events.
func (e *Engine) grantXP(ag *world.Agent, amount int, now time.Time) (int, []*world.Event) {
	ag.XP += amount
	levels := 0
	var events []*world.Event
	for ag.XP >= rules.XPToLevel(ag.Level) {
		ag.XP -= rules.XPToLevel(ag.Level)
		ag.Level++
		ag.SkillPoints++
		ag.MaxHP += e.cfg.MaxHPPerLevel
		ag.HP = ag.MaxHP
		levels++
		events = append(events, &world.Event{
			Kind:    world.EventLevelUp,
			Actor:   ag.Name,
			Payload: map[string]any{"level": ag.Level},
			At:      now,
		})
	}
	return levels, events
}
