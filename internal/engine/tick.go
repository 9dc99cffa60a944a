package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

// Tick runs one maintenance round: due respawns, safe-haven regeneration,
// resource top-up and inactivity eviction, committed as one unit of work,
// then a world snapshot for subscribers. Per-agent failures are logged and
// skipped; a tick never aborts the loop.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++
	now := e.Now()

	agents, err := e.store.Agents(ctx)
	if err != nil {
		e.log.Error("tick: load agents", zap.Error(err))
		return
	}

	ch := &store.Change{}
	changed := map[int64]*world.Agent{}
	touch := func(ag *world.Agent) { changed[ag.ID] = ag }

	// Cells claimed earlier in this same tick. The store only sees the new
	// placements at the final apply, so occupancy checks must veto them here.
	claimed := map[[2]int]bool{}

	// Respawns.
	for _, ag := range agents {
		if ag.Alive || ag.RespawnAt == nil || ag.RespawnAt.After(now) {
			continue
		}
		x, y, ok := e.grid.RandomOpenCell(e.rng, 0, func(x, y int) bool {
			return claimed[[2]int{x, y}] || e.cellOccupied(ctx, x, y)
		})
		if !ok {
			// Grid is packed; the agent waits for a later tick.
			e.log.Warn("tick: no respawn cell found", zap.String("agent", ag.Name))
			continue
		}
		claimed[[2]int{x, y}] = true
		ag.X, ag.Y = x, y
		ag.HP = ag.MaxHP
		ag.Alive = true
		ag.RespawnAt = nil
		touch(ag)
		ch.Events = append(ch.Events, &world.Event{
			Kind:  world.EventRespawn,
			Actor: ag.Name,
			Payload: map[string]any{
				"x": x,
				"y": y,
			},
			At: now,
		})
	}

	// Safe-haven regeneration. Silent: no event per heal.
	for _, ag := range agents {
		if !ag.Alive || ag.HP >= ag.MaxHP || !e.grid.InHaven(ag.X, ag.Y) {
			continue
		}
		ag.HP += e.cfg.PassiveHeal
		if ag.HP > ag.MaxHP {
			ag.HP = ag.MaxHP
		}
		touch(ag)
	}

	if err := e.topUpResources(ctx, ch, claimed); err != nil {
		e.log.Error("tick: resource top-up", zap.Error(err))
	}

	// Inactivity eviction: the agent stays in the world, the session unbinds.
	for _, ag := range agents {
		if ag.SessionID == "" || now.Sub(ag.LastAction) < e.cfg.InactivityTimeout {
			continue
		}
		ag.SessionID = ""
		touch(ag)
		ch.Events = append(ch.Events, &world.Event{
			Kind:    world.EventDisconnect,
			Actor:   ag.Name,
			Payload: map[string]any{"reason": "inactivity"},
			At:      now,
		})
	}

	for _, ag := range changed {
		ch.UpdateAgents = append(ch.UpdateAgents, ag)
	}
	if !ch.Empty() {
		if err := e.apply(ctx, ch); err != nil {
			e.log.Error("tick: apply", zap.Error(err))
			return
		}
	}

	snap, err := e.buildSnapshot(ctx)
	if err != nil {
		e.log.Error("tick: snapshot", zap.Error(err))
		return
	}
	e.publishSnapshot(snap)
}
