package engine

import (
	"context"

	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/terrain"
	"github.com/gridfall/server/internal/world"
)

// MoveResult reports the agent's position after a successful step.
type MoveResult struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Terrain string `json:"terrain"`
	InHaven bool   `json:"in_haven"`
}

// Move steps the agent one cell in a compass direction. Stepping onto water
// doubles this move's cooldown charge, modeling slowed movement out of the
// tile.
func (e *Engine) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dx, dy, ok := world.DirectionDelta(direction)
	if !ok {
		return nil, reject(CodeBadDirection, "unknown direction %q", direction)
	}
	ag, err := e.agentBySession(ctx, sessionID, actionMove, false)
	if err != nil {
		return nil, err
	}

	nx, ny := ag.X+dx, ag.Y+dy
	if !e.grid.IsPassable(nx, ny) {
		return nil, reject(CodeBlocked, "destination (%d,%d) is blocked", nx, ny)
	}
	if occupant, err := e.store.AliveAgentAt(ctx, nx, ny); err != nil {
		return nil, err
	} else if occupant != nil {
		return nil, reject(CodeOccupied, "destination occupied by %s", occupant.Name)
	}

	now := e.Now()
	from := [2]int{ag.X, ag.Y}
	ag.X, ag.Y = nx, ny
	ag.LastAction = now

	base := e.cfg.MoveCooldown
	dest := e.grid.KindAt(nx, ny)
	if dest == terrain.Water {
		base *= 2
	}
	setCooldown(&ag.Cooldowns, actionMove, now.Add(rules.Cooldown(base, ag.Skills.Agility)))

	ch := &store.Change{
		UpdateAgents: []*world.Agent{ag},
		Events: []*world.Event{{
			Kind:  world.EventMove,
			Actor: ag.Name,
			Payload: map[string]any{
				"from": []int{from[0], from[1]},
				"to":   []int{nx, ny},
			},
			At: now,
		}},
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &MoveResult{
		X:       nx,
		Y:       ny,
		Terrain: dest.String(),
		InHaven: e.grid.InHaven(nx, ny),
	}, nil
}
