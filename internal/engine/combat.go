package engine

import (
	"context"

	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

// AttackResult reports the outcome of a strike.
type AttackResult struct {
	Target   string `json:"target"`
	Damage   int    `json:"damage"`
	TargetHP int    `json:"target_hp"`
	Killed   bool   `json:"killed"`
	XPGained int    `json:"xp_gained"`
	LevelUps int    `json:"level_ups"`
}

// Attack strikes the adjacent cell in the given direction. Combat is
// disabled bidirectionally by safe-haven membership: if either combatant
// stands inside the haven the attack is rejected, regardless of who started
// it.
func (e *Engine) Attack(ctx context.Context, sessionID, direction string) (*AttackResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, actionAttack, false)
	if err != nil {
		return nil, err
	}
	return e.strike(ctx, ag, direction, 1, "")
}

// strike is the shared melee resolution for Attack and power_strike.
// multiplier scales damage (and the kill XP bonus); skill tags the emitted
// events when the strike came from a skill use.
func (e *Engine) strike(ctx context.Context, ag *world.Agent, direction string, multiplier int, skill string) (*AttackResult, error) {
	dx, dy, ok := world.DirectionDelta(direction)
	if !ok {
		return nil, reject(CodeBadDirection, "unknown direction %q", direction)
	}
	tx, ty := ag.X+dx, ag.Y+dy
	target, err := e.store.AliveAgentAt(ctx, tx, ty)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, reject(CodeNoTarget, "no target at (%d,%d)", tx, ty)
	}
	if e.grid.InHaven(ag.X, ag.Y) || e.grid.InHaven(target.X, target.Y) {
		return nil, reject(CodeSafeHaven, "combat is disabled in the safe haven")
	}

	now := e.Now()
	damage := multiplier * rules.Damage(e.rng, ag.Attack, ag.Skills.Might, target.Defense, target.Skills.Fortitude)
	target.HP -= damage

	action := actionAttack
	if skill != "" {
		action = actionUseSkill
	}
	base := e.cfg.AttackCooldown
	if skill != "" {
		base = e.cfg.SkillCooldown
	}
	setCooldown(&ag.Cooldowns, action, now.Add(rules.Cooldown(base, ag.Skills.Agility)))
	ag.LastAction = now

	xpGained := e.cfg.HitXP
	var events []*world.Event
	killed := target.HP <= 0
	if killed {
		target.HP = 0
		target.Alive = false
		target.Deaths++
		respawnAt := now.Add(e.cfg.RespawnDelay)
		target.RespawnAt = &respawnAt
		ag.Kills++
		xpGained += multiplier * e.cfg.KillXP

		payload := map[string]any{"damage": damage, "respawn_at": respawnAt}
		if skill != "" {
			payload["skill"] = skill
		}
		events = append(events, &world.Event{
			Kind:    world.EventKill,
			Actor:   ag.Name,
			Target:  target.Name,
			Payload: payload,
			At:      now,
		})
	} else {
		kind := world.EventAttack
		payload := map[string]any{"damage": damage, "target_hp": target.HP}
		if skill != "" {
			kind = world.EventSkillUse
			payload["skill"] = skill
		}
		events = append(events, &world.Event{
			Kind:    kind,
			Actor:   ag.Name,
			Target:  target.Name,
			Payload: payload,
			At:      now,
		})
	}

	levels, levelEvents := e.grantXP(ag, xpGained, now)
	events = append(events, levelEvents...)

	// Attacker and victim are persisted in the same unit of work; a crash
	// can never record the damage without the kill bookkeeping.
	ch := &store.Change{
		UpdateAgents: []*world.Agent{ag, target},
		Events:       events,
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &AttackResult{
		Target:   target.Name,
		Damage:   damage,
		TargetHP: target.HP,
		Killed:   killed,
		XPGained: xpGained,
		LevelUps: levels,
	}, nil
}
