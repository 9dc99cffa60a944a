package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/gridfall/server/internal/world"
)

// Memory is the in-process Store implementation. It backs the test suite and
// the "memory" database driver for running a throwaway server without
// postgres. All state is lost on shutdown.
type Memory struct {
	mu sync.Mutex

	nextAgentID    int64
	nextResourceID int64
	nextEventID    int64

	agents    map[int64]*world.Agent
	resources map[int64]*world.Resource
	events    []*world.Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:    make(map[int64]*world.Agent),
		resources: make(map[int64]*world.Resource),
	}
}

func (m *Memory) Apply(_ context.Context, ch *Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range ch.CreateAgents {
		m.nextAgentID++
		a.ID = m.nextAgentID
		m.agents[a.ID] = a.Clone()
	}
	for _, a := range ch.UpdateAgents {
		if _, ok := m.agents[a.ID]; !ok {
			return fmt.Errorf("memory store: update of unknown agent %d", a.ID)
		}
		m.agents[a.ID] = a.Clone()
	}
	for _, r := range ch.CreateResources {
		m.nextResourceID++
		r.ID = m.nextResourceID
		m.resources[r.ID] = r.Clone()
	}
	for _, id := range ch.DeleteResourceIDs {
		delete(m.resources, id)
	}
	for _, ev := range ch.Events {
		m.nextEventID++
		ev.ID = m.nextEventID
		m.events = append(m.events, cloneEvent(ev))
	}
	return nil
}

func (m *Memory) AgentByID(_ context.Context, id int64) (*world.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[id]; ok {
		return a.Clone(), nil
	}
	return nil, nil
}

func (m *Memory) AgentByName(_ context.Context, name string) (*world.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.Name == name {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) AgentBySession(_ context.Context, sessionID string) (*world.Agent, error) {
	if sessionID == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.SessionID == sessionID {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) AliveAgentAt(_ context.Context, x, y int) (*world.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.Alive && a.X == x && a.Y == y {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) Agents(_ context.Context) ([]*world.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*world.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (m *Memory) CountAgents(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents), nil
}

func (m *Memory) ResourceAt(_ context.Context, x, y int) (*world.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.X == x && r.Y == y {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) Resources(_ context.Context) ([]*world.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*world.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *Memory) CountResources(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources), nil
}

func (m *Memory) RecentEvents(_ context.Context, kind string, limit int) ([]*world.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*world.Event, 0, limit)
	// Appends are in timestamp order, so a reverse walk yields newest first.
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if kind != "" && ev.Kind != kind {
			continue
		}
		out = append(out, cloneEvent(ev))
	}
	return out, nil
}

func cloneEvent(ev *world.Event) *world.Event {
	c := *ev
	if ev.Payload != nil {
		c.Payload = make(map[string]any, len(ev.Payload))
		for k, v := range ev.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}
