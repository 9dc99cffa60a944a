package engine

import (
	"context"
	"math"
	"time"

	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/world"
)

// NearbyAgent is another agent visible in a viewport.
type NearbyAgent struct {
	Name  string `json:"name"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Level int    `json:"level"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"max_hp"`
}

// LookResult is the agent's viewport: a square of radius VisionRange clipped
// to the grid, plus the entities inside it.
type LookResult struct {
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Vision    int            `json:"vision"`
	InHaven   bool           `json:"in_haven"`
	View      []string       `json:"view"` // rows, top to bottom
	Agents    []NearbyAgent  `json:"agents"`
	Resources []ResourceView `json:"resources"`
}

// Look renders the world around the agent. Read-only: no cooldown, no
// mutation.
func (e *Engine) Look(ctx context.Context, sessionID string) (*LookResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, "", false)
	if err != nil {
		return nil, err
	}

	vision := rules.VisionRange(ag.Skills.Perception)
	minX, maxX := ag.X-vision, ag.X+vision
	minY, maxY := ag.Y-vision, ag.Y+vision
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > e.grid.Width()-1 {
		maxX = e.grid.Width() - 1
	}
	if maxY > e.grid.Height()-1 {
		maxY = e.grid.Height() - 1
	}

	rows := make([][]byte, maxY-minY+1)
	for y := minY; y <= maxY; y++ {
		row := make([]byte, maxX-minX+1)
		for x := minX; x <= maxX; x++ {
			row[x-minX] = e.grid.KindAt(x, y).Symbol()[0]
		}
		rows[y-minY] = row
	}

	result := &LookResult{
		X:         ag.X,
		Y:         ag.Y,
		Vision:    vision,
		InHaven:   e.grid.InHaven(ag.X, ag.Y),
		Agents:    []NearbyAgent{},
		Resources: []ResourceView{},
	}

	resources, err := e.store.Resources(ctx)
	if err != nil {
		return nil, err
	}
	for _, res := range resources {
		if res.X < minX || res.X > maxX || res.Y < minY || res.Y > maxY {
			continue
		}
		if info := e.tables.Get(res.Kind); info != nil && info.Symbol != "" {
			rows[res.Y-minY][res.X-minX] = info.Symbol[0]
		}
		result.Resources = append(result.Resources, ResourceView{
			ID: res.ID, Kind: res.Kind, X: res.X, Y: res.Y, Amount: res.Amount,
		})
	}

	agents, err := e.store.Agents(ctx)
	if err != nil {
		return nil, err
	}
	for _, other := range agents {
		if !other.Alive || other.ID == ag.ID {
			continue
		}
		if other.X < minX || other.X > maxX || other.Y < minY || other.Y > maxY {
			continue
		}
		rows[other.Y-minY][other.X-minX] = 'A'
		result.Agents = append(result.Agents, NearbyAgent{
			Name: other.Name, X: other.X, Y: other.Y,
			Level: other.Level, HP: other.HP, MaxHP: other.MaxHP,
		})
	}
	rows[ag.Y-minY][ag.X-minX] = '@'

	for _, row := range rows {
		result.View = append(result.View, string(row))
	}
	return result, nil
}

// StatusResult is the agent's full self-inspection, allowed while dead.
type StatusResult struct {
	Agent     AgentView      `json:"agent"`
	Inventory map[string]int `json:"inventory"`
	Cooldowns map[string]int `json:"cooldowns"` // whole seconds remaining, rounded up
	RespawnIn int            `json:"respawn_in,omitempty"`
}

// Status reports stats, inventory, cooldown remainders and respawn timing.
func (e *Engine) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, "", true)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	cds := map[string]int{}
	for _, action := range []string{actionMove, actionAttack, actionGather, actionCommunicate, actionUseSkill} {
		if ready := cooldownFor(&ag.Cooldowns, action); ready.After(now) {
			cds[action] = ceilSeconds(ready.Sub(now))
		}
	}

	result := &StatusResult{
		Agent:     e.agentView(ag),
		Inventory: ag.Inventory,
		Cooldowns: cds,
	}
	if !ag.Alive && ag.RespawnAt != nil && ag.RespawnAt.After(now) {
		result.RespawnIn = ceilSeconds(ag.RespawnAt.Sub(now))
	}
	return result, nil
}

// Events is the public log read: most-recent-first, optionally filtered by
// kind.
func (e *Engine) Events(ctx context.Context, kind string, limit int) ([]*world.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	return e.store.RecentEvents(ctx, kind, limit)
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
