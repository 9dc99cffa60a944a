package engine

import (
	"context"

	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

// GatherResult reports what a gather yielded.
type GatherResult struct {
	Kind     string `json:"kind"`
	Yield    int    `json:"yield"`
	XPGained int    `json:"xp_gained"`
	LevelUps int    `json:"level_ups"`
}

// Gather consumes the resource on the agent's current cell. Resources are
// single-use: the whole stack is taken and the resource leaves the world
// atomically with the inventory credit.
func (e *Engine) Gather(ctx context.Context, sessionID string) (*GatherResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, actionGather, false)
	if err != nil {
		return nil, err
	}
	res, err := e.store.ResourceAt(ctx, ag.X, ag.Y)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, reject(CodeNoResource, "no resource here")
	}

	now := e.Now()
	bonus := rules.GatherBonus(ag.Skills.Harvesting)
	yield := res.Amount * bonus
	xp := 0
	if info := e.tables.Get(res.Kind); info != nil {
		xp = info.GatherXP * bonus
	}

	if ag.Inventory == nil {
		ag.Inventory = map[string]int{}
	}
	ag.Inventory[res.Kind] += yield
	e.startCooldown(ag, actionGather, e.cfg.GatherCooldown)
	ag.LastAction = now

	events := []*world.Event{{
		Kind:  world.EventGather,
		Actor: ag.Name,
		Payload: map[string]any{
			"kind":  res.Kind,
			"yield": yield,
			"xp":    xp,
		},
		At: now,
	}}
	levels, levelEvents := e.grantXP(ag, xp, now)
	events = append(events, levelEvents...)

	ch := &store.Change{
		UpdateAgents:      []*world.Agent{ag},
		DeleteResourceIDs: []int64{res.ID},
		Events:            events,
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &GatherResult{Kind: res.Kind, Yield: yield, XPGained: xp, LevelUps: levels}, nil
}
