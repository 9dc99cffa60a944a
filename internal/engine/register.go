package engine

import (
	"context"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,20}$`)

// RegisterResult reports the agent bound to the session and whether the call
// reattached to an existing agent instead of creating one.
type RegisterResult struct {
	Agent       AgentView `json:"agent"`
	Reconnected bool      `json:"reconnected"`
}

// Register creates or reclaims an agent for a session.
//
// Idempotent per session: a session that already owns an agent gets it back.
// A taken name requires a matching secret (when one is set) and a free
// session slot; an unclaimed existing agent is rebound as an implicit
// reconnect. A free name creates a fresh agent at a validated spawn cell.
func (e *Engine) Register(ctx context.Context, sessionID, name, secret string) (*RegisterResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !namePattern.MatchString(name) {
		return nil, reject(CodeBadName, "name must be 2-20 chars: letters, digits, _ or -")
	}

	if owned, err := e.store.AgentBySession(ctx, sessionID); err != nil {
		return nil, err
	} else if owned != nil {
		return &RegisterResult{Agent: e.agentView(owned), Reconnected: true}, nil
	}

	existing, err := e.store.AgentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return e.rebind(ctx, existing, sessionID, secret)
	}

	count, err := e.store.CountAgents(ctx)
	if err != nil {
		return nil, err
	}
	if count >= e.cfg.MaxAgents {
		return nil, reject(CodeCapacity, "world is at agent capacity (%d)", e.cfg.MaxAgents)
	}

	x, y, ok := e.grid.RandomOpenCell(e.rng, 0, func(cx, cy int) bool {
		return e.cellOccupied(ctx, cx, cy)
	})
	if !ok {
		return nil, reject(CodeCapacity, "no free spawn cell available")
	}

	now := e.Now()
	ag := &world.Agent{
		Name:       name,
		SessionID:  sessionID,
		X:          x,
		Y:          y,
		HP:         startHP,
		MaxHP:      startHP,
		Level:      1,
		Alive:      true,
		Inventory:  map[string]int{},
		CreatedAt:  now,
		LastAction: now,
	}
	if secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		ag.SecretHash = string(hash)
	}

	ch := &store.Change{
		CreateAgents: []*world.Agent{ag},
		Events: []*world.Event{{
			Kind:    world.EventRegistration,
			Actor:   name,
			Payload: map[string]any{"x": x, "y": y},
			At:      now,
		}},
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &RegisterResult{Agent: e.agentView(ag)}, nil
}

// Reconnect rebinds a session to an existing agent by name.
func (e *Engine) Reconnect(ctx context.Context, sessionID, name, secret string) (*RegisterResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.store.AgentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if ag == nil {
		return nil, reject(CodeNotFound, "no agent named %q", name)
	}
	return e.rebind(ctx, ag, sessionID, secret)
}

// rebind attaches a session to an existing agent after credential and
// liveness checks. Secret check comes first so a wrong secret never leaks
// whether the agent is currently claimed.
func (e *Engine) rebind(ctx context.Context, ag *world.Agent, sessionID, secret string) (*RegisterResult, error) {
	if ag.SecretHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(ag.SecretHash), []byte(secret)) != nil {
			return nil, reject(CodeBadSecret, "name %q requires the correct secret", ag.Name)
		}
	}
	if ag.SessionID != "" && ag.SessionID != sessionID {
		return nil, reject(CodeSessionBound, "agent %q is in use by another session", ag.Name)
	}

	ag.SessionID = sessionID
	ag.LastAction = e.Now()
	if err := e.apply(ctx, &store.Change{UpdateAgents: []*world.Agent{ag}}); err != nil {
		return nil, err
	}
	return &RegisterResult{Agent: e.agentView(ag), Reconnected: true}, nil
}

// Rename changes the display name. Cosmetic only: no cooldown, no event.
func (e *Engine) Rename(ctx context.Context, sessionID, newName string) (*AgentView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !namePattern.MatchString(newName) {
		return nil, reject(CodeBadName, "name must be 2-20 chars: letters, digits, _ or -")
	}
	ag, err := e.agentBySession(ctx, sessionID, "", false)
	if err != nil {
		return nil, err
	}
	if other, err := e.store.AgentByName(ctx, newName); err != nil {
		return nil, err
	} else if other != nil && other.ID != ag.ID {
		return nil, reject(CodeNameInUse, "name %q is taken", newName)
	}

	ag.Name = newName
	ag.LastAction = e.Now()
	if err := e.apply(ctx, &store.Change{UpdateAgents: []*world.Agent{ag}}); err != nil {
		return nil, err
	}
	view := e.agentView(ag)
	return &view, nil
}

// Logout voluntarily unbinds the session. The agent record survives and can
// be reclaimed by register or reconnect.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, "", true)
	if err != nil {
		return err
	}
	ag.SessionID = ""
	ch := &store.Change{
		UpdateAgents: []*world.Agent{ag},
		Events: []*world.Event{{
			Kind:    world.EventDisconnect,
			Actor:   ag.Name,
			Payload: map[string]any{"reason": "logout"},
			At:      e.Now(),
		}},
	}
	return e.apply(ctx, ch)
}
