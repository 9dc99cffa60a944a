package engine

import (
	"context"
	"testing"
	"time"

	"github.com/gridfall/server/internal/world"
)

func TestAttackHit(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Rex")
	register(t, e, "s2", "Zed")
	place(t, st, "Rex", 10, 10)
	place(t, st, "Zed", 11, 10)

	res, err := e.Attack(ctx, "s1", "east")
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	// Zero stats on both sides: 5 + variance in [-2,1].
	if res.Damage < 3 || res.Damage > 6 {
		t.Fatalf("damage %d outside [3,6]", res.Damage)
	}
	if res.Killed {
		t.Fatal("full-hp target reported killed")
	}
	if res.XPGained != e.cfg.HitXP {
		t.Fatalf("hit xp %d, want %d", res.XPGained, e.cfg.HitXP)
	}

	zed := agentByName(t, st, "Zed")
	if zed.HP != startHP-res.Damage {
		t.Fatalf("target hp %d, want %d", zed.HP, startHP-res.Damage)
	}
	events, _ := st.RecentEvents(ctx, world.EventAttack, 1)
	if len(events) != 1 || events[0].Actor != "Rex" || events[0].Target != "Zed" {
		t.Fatalf("bad attack event: %+v", events)
	}
}

func TestAttackNoTarget(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Rex")
	place(t, st, "Rex", 10, 10)

	_, err := e.Attack(ctx, "s1", "north")
	wantCode(t, err, CodeNoTarget)

	_, err = e.Attack(ctx, "s1", "sideways")
	wantCode(t, err, CodeBadDirection)
}

func TestAttackSafeHaven(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Rex")
	register(t, e, "s2", "Zed")

	// Both inside.
	place(t, st, "Rex", 25, 25)
	place(t, st, "Zed", 26, 25)
	_, err := e.Attack(ctx, "s1", "east")
	wantCode(t, err, CodeSafeHaven)

	// Attacker just outside, target on the haven edge: still rejected.
	place(t, st, "Rex", 20, 25)
	place(t, st, "Zed", 21, 25)
	_, err = e.Attack(ctx, "s1", "east")
	wantCode(t, err, CodeSafeHaven)

	// Target inside, attacker on the edge: rejected in that direction too.
	place(t, st, "Rex", 21, 25)
	place(t, st, "Zed", 22, 25)
	_, err = e.Attack(ctx, "s1", "east")
	wantCode(t, err, CodeSafeHaven)
}

func TestAttackKill(t *testing.T) {
	e, st, clock := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Rex")
	register(t, e, "s2", "Zed")
	place(t, st, "Rex", 10, 10)
	place(t, st, "Zed", 11, 10)
	mutate(t, st, "Zed", func(ag *world.Agent) { ag.HP = 1 })

	res, err := e.Attack(ctx, "s1", "east")
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if !res.Killed || res.TargetHP != 0 {
		t.Fatalf("expected kill, got %+v", res)
	}
	if res.XPGained != e.cfg.HitXP+e.cfg.KillXP {
		t.Fatalf("kill xp %d, want %d", res.XPGained, e.cfg.HitXP+e.cfg.KillXP)
	}

	zed := agentByName(t, st, "Zed")
	if zed.Alive || zed.HP != 0 || zed.Deaths != 1 {
		t.Fatalf("bad victim state: %+v", zed)
	}
	wantRespawn := clock.Now().Add(e.cfg.RespawnDelay)
	if zed.RespawnAt == nil || !zed.RespawnAt.Equal(wantRespawn) {
		t.Fatalf("respawn at %v, want %v", zed.RespawnAt, wantRespawn)
	}
	rex := agentByName(t, st, "Rex")
	if rex.Kills != 1 || rex.XP != e.cfg.HitXP+e.cfg.KillXP {
		t.Fatalf("bad attacker state: kills=%d xp=%d", rex.Kills, rex.XP)
	}
	events, _ := st.RecentEvents(ctx, world.EventKill, 1)
	if len(events) != 1 || events[0].Target != "Zed" {
		t.Fatalf("bad kill event: %+v", events)
	}
	// Dead agents cannot be struck again.
	clock.Advance(2 * time.Second)
	_, err = e.Attack(ctx, "s1", "east")
	wantCode(t, err, CodeNoTarget)
}

func TestAttackLevelUp(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Rex")
	register(t, e, "s2", "Zed")
	place(t, st, "Rex", 10, 10)
	place(t, st, "Zed", 11, 10)
	mutate(t, st, "Rex", func(ag *world.Agent) { ag.XP = 99 })
	mutate(t, st, "Zed", func(ag *world.Agent) { ag.HP = 1 })

	res, err := e.Attack(ctx, "s1", "east")
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if res.LevelUps != 1 {
		t.Fatalf("level ups %d, want 1", res.LevelUps)
	}
	rex := agentByName(t, st, "Rex")
	if rex.Level != 2 || rex.XP != 99+55-100 {
		t.Fatalf("level %d xp %d after level-up", rex.Level, rex.XP)
	}
	if rex.SkillPoints != 1 || rex.MaxHP != startHP+e.cfg.MaxHPPerLevel || rex.HP != rex.MaxHP {
		t.Fatalf("level-up rewards not applied: %+v", rex)
	}
	events, _ := st.RecentEvents(ctx, world.EventLevelUp, 1)
	if len(events) != 1 {
		t.Fatalf("got %d level_up events, want 1", len(events))
	}
}

func TestGrantXPMultipleThresholds(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ag := &world.Agent{Name: "Rex", Level: 1, MaxHP: startHP, HP: 20}

	levels, events := e.grantXP(ag, 400, clock.Now())
	// 400 crosses 100 (level 2) and 150 (level 3); 225 is out of reach.
	if levels != 2 || ag.Level != 3 || ag.XP != 150 {
		t.Fatalf("levels=%d level=%d xp=%d", levels, ag.Level, ag.XP)
	}
	if ag.SkillPoints != 2 || ag.MaxHP != startHP+2*e.cfg.MaxHPPerLevel || ag.HP != ag.MaxHP {
		t.Fatalf("rewards not stacked: %+v", ag)
	}
	if len(events) != 2 || events[1].Payload["level"] != 3 {
		t.Fatalf("bad level events: %+v", events)
	}
}
