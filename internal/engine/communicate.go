package engine

import (
	"context"
	"time"

	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

const maxMessageLen = 200

// CommunicateResult tells the sender who was in range to receive the
// broadcast. The message itself is only readable by recipients afterwards.
type CommunicateResult struct {
	Recipients []string `json:"recipients"`
}

// Message is one delivered communication, newest first.
type Message struct {
	From string    `json:"from"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Communicate broadcasts a message to every other alive agent within the
// sender's vision range (Chebyshev distance). The delivery list is frozen
// into the emitted event; later reads resolve against it.
func (e *Engine) Communicate(ctx context.Context, sessionID, message string) (*CommunicateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if message == "" {
		return nil, reject(CodeBadMessage, "message is empty")
	}
	if len(message) > maxMessageLen {
		return nil, reject(CodeBadMessage, "message exceeds %d characters", maxMessageLen)
	}
	ag, err := e.agentBySession(ctx, sessionID, actionCommunicate, false)
	if err != nil {
		return nil, err
	}

	agents, err := e.store.Agents(ctx)
	if err != nil {
		return nil, err
	}
	vision := rules.VisionRange(ag.Skills.Perception)
	recipients := []string{}
	for _, other := range agents {
		if other.ID == ag.ID || !other.Alive {
			continue
		}
		if world.ChebyshevDist(ag.X, ag.Y, other.X, other.Y) <= vision {
			recipients = append(recipients, other.Name)
		}
	}

	now := e.Now()
	e.startCooldown(ag, actionCommunicate, e.cfg.CommunicateCooldown)
	ag.LastAction = now

	ch := &store.Change{
		UpdateAgents: []*world.Agent{ag},
		Events: []*world.Event{{
			Kind:  world.EventCommunication,
			Actor: ag.Name,
			Payload: map[string]any{
				"message":    message,
				"recipients": recipients,
			},
			At: now,
		}},
	}
	if err := e.apply(ctx, ch); err != nil {
		return nil, err
	}
	return &CommunicateResult{Recipients: recipients}, nil
}

// Messages returns recent communications visible to this agent: ones that
// listed it as a recipient plus its own sends. Allowed while dead.
func (e *Engine) Messages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ag, err := e.agentBySession(ctx, sessionID, "", true)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	// Over-fetch: most communication events will not involve this agent. The
	// window is a hard bound, not a guarantee: messages buried deeper than
	// limit*10 recent communications are out of reach, which is fine for a
	// chat-log read where only the recent past matters.
	events, err := e.store.RecentEvents(ctx, world.EventCommunication, limit*10)
	if err != nil {
		return nil, err
	}
	out := []Message{}
	for _, ev := range events {
		if len(out) >= limit {
			break
		}
		if ev.Actor != ag.Name && !listsRecipient(ev.Payload, ag.Name) {
			continue
		}
		text, _ := ev.Payload["message"].(string)
		out = append(out, Message{From: ev.Actor, Text: text, At: ev.At})
	}
	return out, nil
}

func listsRecipient(payload map[string]any, name string) bool {
	switch recipients := payload["recipients"].(type) {
	case []string:
		for _, r := range recipients {
			if r == name {
				return true
			}
		}
	case []any: // payloads round-tripped through JSONB decode as []any
		for _, r := range recipients {
			if s, ok := r.(string); ok && s == name {
				return true
			}
		}
	}
	return false
}
