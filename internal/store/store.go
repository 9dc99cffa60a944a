// Package store defines the entity store consumed by the engine, plus the
// in-memory implementation. The postgres implementation lives in
// internal/persist.
package store

import (
	"context"

	"github.com/gridfall/server/internal/world"
)

// Change is one unit of work: every mutation an action or tick step produces,
// applied atomically together with the events it emitted. An acknowledged
// action is durable once Apply returns nil.
type Change struct {
	CreateAgents      []*world.Agent // IDs assigned during apply
	UpdateAgents      []*world.Agent
	CreateResources   []*world.Resource // IDs assigned during apply
	DeleteResourceIDs []int64
	Events            []*world.Event // IDs assigned during apply
}

// Empty reports whether the change carries no writes.
func (c *Change) Empty() bool {
	return len(c.CreateAgents) == 0 && len(c.UpdateAgents) == 0 &&
		len(c.CreateResources) == 0 && len(c.DeleteResourceIDs) == 0 &&
		len(c.Events) == 0
}

// Store is the persistence surface the engine runs against. Lookups return
// (nil, nil) when the entity does not exist. Reads hand out private copies;
// mutations become visible only through Apply.
type Store interface {
	Apply(ctx context.Context, ch *Change) error

	AgentByID(ctx context.Context, id int64) (*world.Agent, error)
	AgentByName(ctx context.Context, name string) (*world.Agent, error)
	AgentBySession(ctx context.Context, sessionID string) (*world.Agent, error)
	// AliveAgentAt returns the alive agent occupying the cell, if any.
	AliveAgentAt(ctx context.Context, x, y int) (*world.Agent, error)
	Agents(ctx context.Context) ([]*world.Agent, error)
	CountAgents(ctx context.Context) (int, error)

	ResourceAt(ctx context.Context, x, y int) (*world.Resource, error)
	Resources(ctx context.Context) ([]*world.Resource, error)
	CountResources(ctx context.Context) (int, error)

	// RecentEvents returns events most-recent-first, optionally filtered by
	// kind (empty = all), capped at limit.
	RecentEvents(ctx context.Context, kind string, limit int) ([]*world.Event, error)
}
