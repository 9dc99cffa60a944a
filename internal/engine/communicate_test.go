package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gridfall/server/internal/world"
)

func TestCommunicateRange(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Ada")
	register(t, e, "s2", "Bea")
	register(t, e, "s3", "Cid")
	place(t, st, "Ada", 10, 10)
	place(t, st, "Bea", 14, 14) // Chebyshev 4, inside vision 5
	place(t, st, "Cid", 16, 10) // Chebyshev 6, outside

	res, err := e.Communicate(ctx, "s1", "rally at the haven")
	if err != nil {
		t.Fatalf("communicate: %v", err)
	}
	if len(res.Recipients) != 1 || res.Recipients[0] != "Bea" {
		t.Fatalf("recipients %v, want [Bea]", res.Recipients)
	}

	events, _ := st.RecentEvents(ctx, world.EventCommunication, 1)
	if len(events) != 1 || events[0].Payload["message"] != "rally at the haven" {
		t.Fatalf("bad communication event: %+v", events)
	}
}

func TestCommunicateValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Ada")

	_, err := e.Communicate(ctx, "s1", "")
	wantCode(t, err, CodeBadMessage)

	_, err = e.Communicate(ctx, "s1", strings.Repeat("x", maxMessageLen+1))
	wantCode(t, err, CodeBadMessage)

	// Validation failures must not charge the cooldown.
	if _, err := e.Communicate(ctx, "s1", "ok"); err != nil {
		t.Fatalf("communicate after rejections: %v", err)
	}
}

func TestMessages(t *testing.T) {
	e, st, clock := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Ada")
	register(t, e, "s2", "Bea")
	register(t, e, "s3", "Cid")
	place(t, st, "Ada", 10, 10)
	place(t, st, "Bea", 12, 10)
	place(t, st, "Cid", 40, 40)

	if _, err := e.Communicate(ctx, "s1", "first"); err != nil {
		t.Fatalf("say: %v", err)
	}
	clock.Advance(2 * time.Second)
	if _, err := e.Communicate(ctx, "s1", "second"); err != nil {
		t.Fatalf("say: %v", err)
	}

	// Recipient sees both, newest first.
	msgs, err := e.Messages(ctx, "s2", 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "second" || msgs[1].Text != "first" {
		t.Fatalf("recipient messages %+v", msgs)
	}
	if msgs[0].From != "Ada" {
		t.Fatalf("from %q", msgs[0].From)
	}

	// Out-of-range agent saw nothing.
	msgs, err = e.Messages(ctx, "s3", 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("out-of-range agent got %+v", msgs)
	}

	// The sender reads back its own sends.
	msgs, _ = e.Messages(ctx, "s1", 1)
	if len(msgs) != 1 || msgs[0].Text != "second" {
		t.Fatalf("sender messages %+v", msgs)
	}
}
