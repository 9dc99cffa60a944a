package engine

import (
	"context"

	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

// Skill-use gates and effects.
const (
	healBaseAmount   = 10
	powerStrikeMight = 3
	powerStrikeMult  = 2
	scoutPerception  = 2
	scoutRangeMult   = 2
)

// LevelUpResult reports the new skill level and remaining points.
type LevelUpResult struct {
	Skill       string `json:"skill"`
	Level       int    `json:"level"`
	SkillPoints int    `json:"skill_points"`
	Attack      int    `json:"attack"`
	Defense     int    `json:"defense"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"max_hp"`
}

// LevelUpSkill spends one unspent skill point on a named skill. Might and
// fortitude apply immediate stat side effects; the fortitude heal is
// deliberately not capped against the pre-raise max (the new max absorbs it).
func (e *Engine) LevelUpSkill(ctx context.Context, sessionID, skill string) (*LevelUpResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, "", false)
	if err != nil {
		return nil, err
	}
	if ag.Skills.Level(skill) < 0 {
		return nil, reject(CodeBadSkill, "unknown skill %q", skill)
	}
	if ag.SkillPoints <= 0 {
		return nil, reject(CodeNoPoints, "no unspent skill points")
	}

	ag.SkillPoints--
	ag.Skills.Raise(skill)
	switch skill {
	case world.SkillMight:
		ag.Attack += 2
	case world.SkillFortitude:
		ag.Defense++
		ag.MaxHP += 10
		ag.HP += 10
	}
	now := e.Now()
	ag.LastAction = now

	ch := &store.Change{
		UpdateAgents: []*world.Agent{ag},
		Events: []*world.Event{{
			Kind:  world.EventSkillUse,
			Actor: ag.Name,
			Payload: map[string]any{
				"skill": skill,
				"mode":  "train",
				"level": ag.Skills.Level(skill),
			},
			At: now,
		}},
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &LevelUpResult{
		Skill:       skill,
		Level:       ag.Skills.Level(skill),
		SkillPoints: ag.SkillPoints,
		Attack:      ag.Attack,
		Defense:     ag.Defense,
		HP:          ag.HP,
		MaxHP:       ag.MaxHP,
	}, nil
}

// UseSkillResult is the union payload for the three active skills; unused
// fields stay zero for a given skill.
type UseSkillResult struct {
	Skill  string        `json:"skill"`
	Healed int           `json:"healed,omitempty"`
	HP     int           `json:"hp,omitempty"`
	Strike *AttackResult `json:"strike,omitempty"`
	Seen   []ScoutSight  `json:"seen,omitempty"`
}

// ScoutSight is one agent spotted by the scout skill.
type ScoutSight struct {
	Name     string `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Level    int    `json:"level"`
	Distance int    `json:"distance"`
}

// UseSkill dispatches the shared use_skill cooldown across the active
// skills. An unknown name or an unmet gate rejects without consuming the
// cooldown; only a successful use charges it.
func (e *Engine) UseSkill(ctx context.Context, sessionID, skill, direction string) (*UseSkillResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, actionUseSkill, false)
	if err != nil {
		return nil, err
	}

	switch skill {
	case "heal":
		return e.useHeal(ctx, ag)
	case "power_strike":
		return e.usePowerStrike(ctx, ag, direction)
	case "scout":
		return e.useScout(ctx, ag)
	}
	return nil, reject(CodeBadSkill, "unknown skill %q", skill)
}

// useHeal converts one biomass into hp, scaled by fortitude.
func (e *Engine) useHeal(ctx context.Context, ag *world.Agent) (*UseSkillResult, error) {
	if ag.Inventory["biomass"] < 1 {
		return nil, reject(CodeNoResource, "heal requires 1 biomass")
	}

	heal := healBaseAmount + ag.Skills.Fortitude*5
	healed := heal
	if ag.HP+heal > ag.MaxHP {
		healed = ag.MaxHP - ag.HP
	}
	ag.HP += healed
	ag.Inventory["biomass"]--

	now := e.Now()
	e.startCooldown(ag, actionUseSkill, e.cfg.SkillCooldown)
	ag.LastAction = now

	ch := &store.Change{
		UpdateAgents: []*world.Agent{ag},
		Events: []*world.Event{{
			Kind:  world.EventSkillUse,
			Actor: ag.Name,
			Payload: map[string]any{
				"skill":  "heal",
				"healed": healed,
				"hp":     ag.HP,
			},
			At: now,
		}},
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &UseSkillResult{Skill: "heal", Healed: healed, HP: ag.HP}, nil
}

// usePowerStrike is an attack at double damage, gated on might. Kills pay a
// doubled kill bonus; the safe-haven rule applies exactly as for attack.
func (e *Engine) usePowerStrike(ctx context.Context, ag *world.Agent, direction string) (*UseSkillResult, error) {
	if ag.Skills.Might < powerStrikeMight {
		return nil, reject(CodeSkillLocked, "power_strike requires might %d", powerStrikeMight)
	}
	strike, err := e.strike(ctx, ag, direction, powerStrikeMult, "power_strike")
	if err != nil {
		return nil, err
	}
	return &UseSkillResult{Skill: "power_strike", Strike: strike}, nil
}

// useScout lists agents within double vision range without revealing
// terrain. Gated on perception.
func (e *Engine) useScout(ctx context.Context, ag *world.Agent) (*UseSkillResult, error) {
	if ag.Skills.Perception < scoutPerception {
		return nil, reject(CodeSkillLocked, "scout requires perception %d", scoutPerception)
	}

	agents, err := e.store.Agents(ctx)
	if err != nil {
		return nil, err
	}
	reach := scoutRangeMult * rules.VisionRange(ag.Skills.Perception)
	seen := []ScoutSight{}
	for _, other := range agents {
		if other.ID == ag.ID || !other.Alive {
			continue
		}
		d := world.ChebyshevDist(ag.X, ag.Y, other.X, other.Y)
		if d <= reach {
			seen = append(seen, ScoutSight{
				Name: other.Name, X: other.X, Y: other.Y, Level: other.Level, Distance: d,
			})
		}
	}

	now := e.Now()
	e.startCooldown(ag, actionUseSkill, e.cfg.SkillCooldown)
	ag.LastAction = now

	ch := &store.Change{
		UpdateAgents: []*world.Agent{ag},
		Events: []*world.Event{{
			Kind:  world.EventSkillUse,
			Actor: ag.Name,
			Payload: map[string]any{
				"skill": "scout",
				"seen":  len(seen),
			},
			At: now,
		}},
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &UseSkillResult{Skill: "scout", Seen: seen}, nil
}
