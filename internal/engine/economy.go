package engine

import (
	"context"

	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

// rollResource draws a kind and placement for one new resource. Placement
// retries are bounded; a miss returns nil and the tick simply spawns fewer
// resources this round. pending vetoes cells already claimed earlier in the
// same tick (respawned agents and prior rolls).
func (e *Engine) rollResource(ctx context.Context, pending map[[2]int]bool) *world.Resource {
	info := e.tables.PickKind(e.rng)
	x, y, ok := e.grid.RandomOpenCell(e.rng, e.cfg.ResourceSpawnAttempts, func(x, y int) bool {
		if pending[[2]int{x, y}] {
			return true
		}
		return e.cellOccupied(ctx, x, y)
	})
	if !ok {
		return nil
	}
	pending[[2]int{x, y}] = true
	return &world.Resource{
		Kind:      info.Kind,
		X:         x,
		Y:         y,
		Amount:    e.tables.RollAmount(e.rng, info),
		SpawnedAt: e.Now(),
	}
}

// topUpResources keeps the resource population between the floor and the
// ceiling: below the floor a whole burst spawns at once, otherwise a single
// resource trickles in per tick until the ceiling is reached. pending carries
// cells already claimed by this tick's respawns and accumulates each roll's
// placement.
func (e *Engine) topUpResources(ctx context.Context, ch *store.Change, pending map[[2]int]bool) error {
	count, err := e.store.CountResources(ctx)
	if err != nil {
		return err
	}

	want := 0
	switch {
	case count < e.cfg.ResourceMin:
		want = e.cfg.ResourceBurst
	case count < e.cfg.ResourceMax:
		want = 1
	}
	if room := e.cfg.ResourceMax - count; want > room {
		want = room
	}

	for i := 0; i < want; i++ {
		res := e.rollResource(ctx, pending)
		if res == nil {
			continue
		}
		ch.CreateResources = append(ch.CreateResources, res)
		ch.Events = append(ch.Events, &world.Event{
			Kind: world.EventResourceSpawn,
			Payload: map[string]any{
				"kind":   res.Kind,
				"x":      res.X,
				"y":      res.Y,
				"amount": res.Amount,
			},
			At: res.SpawnedAt,
		})
	}
	return nil
}
