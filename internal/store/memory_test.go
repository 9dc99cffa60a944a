package store

import (
	"context"
	"testing"
	"time"

	"github.com/gridfall/server/internal/world"
)

func TestApplyAssignsIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := &world.Agent{Name: "Rex", Alive: true, X: 5, Y: 5, HP: 50, MaxHP: 50}
	r := &world.Resource{Kind: "ore", X: 7, Y: 7, Amount: 2}
	ev := &world.Event{Kind: world.EventRegistration, Actor: "Rex", At: time.Now()}

	err := m.Apply(ctx, &Change{
		CreateAgents:    []*world.Agent{a},
		CreateResources: []*world.Resource{r},
		Events:          []*world.Event{ev},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if a.ID == 0 || r.ID == 0 || ev.ID == 0 {
		t.Fatalf("ids not assigned: agent=%d resource=%d event=%d", a.ID, r.ID, ev.ID)
	}

	got, err := m.AgentByName(ctx, "Rex")
	if err != nil || got == nil {
		t.Fatalf("agent lookup: %v %v", got, err)
	}
	if got.ID != a.ID {
		t.Fatalf("lookup id %d != created %d", got.ID, a.ID)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := &world.Agent{Name: "Rex", Alive: true, HP: 50, MaxHP: 50, Inventory: map[string]int{}}
	if err := m.Apply(ctx, &Change{CreateAgents: []*world.Agent{a}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, _ := m.AgentByID(ctx, a.ID)
	got.HP = 1
	got.Inventory["ore"] = 99

	again, _ := m.AgentByID(ctx, a.ID)
	if again.HP != 50 || again.Inventory["ore"] != 0 {
		t.Fatal("mutation through a read copy leaked into the store")
	}
}

func TestLookupsFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	alive := &world.Agent{Name: "A", SessionID: "s1", Alive: true, X: 3, Y: 4}
	dead := &world.Agent{Name: "B", Alive: false, X: 3, Y: 4}
	if err := m.Apply(ctx, &Change{CreateAgents: []*world.Agent{alive, dead}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, _ := m.AliveAgentAt(ctx, 3, 4)
	if got == nil || got.Name != "A" {
		t.Fatalf("AliveAgentAt returned %+v, want agent A", got)
	}
	if got, _ := m.AliveAgentAt(ctx, 9, 9); got != nil {
		t.Fatal("empty cell reported occupied")
	}
	if got, _ := m.AgentBySession(ctx, "s1"); got == nil || got.Name != "A" {
		t.Fatal("session lookup failed")
	}
	if got, _ := m.AgentBySession(ctx, ""); got != nil {
		t.Fatal("empty session matched an agent")
	}
	if got, _ := m.AgentByName(ctx, "missing"); got != nil {
		t.Fatal("missing name returned an agent")
	}
}

func TestResourceLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	r := &world.Resource{Kind: "energy", X: 2, Y: 2, Amount: 1}
	if err := m.Apply(ctx, &Change{CreateResources: []*world.Resource{r}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n, _ := m.CountResources(ctx); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if err := m.Apply(ctx, &Change{DeleteResourceIDs: []int64{r.ID}}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := m.ResourceAt(ctx, 2, 2); got != nil {
		t.Fatal("deleted resource still present")
	}
}

func TestRecentEventsOrderAndFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()
	var evs []*world.Event
	for i := 0; i < 5; i++ {
		kind := world.EventMove
		if i%2 == 0 {
			kind = world.EventCommunication
		}
		evs = append(evs, &world.Event{Kind: kind, Actor: "A", At: base.Add(time.Duration(i) * time.Second)})
	}
	if err := m.Apply(ctx, &Change{Events: evs}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	all, _ := m.RecentEvents(ctx, "", 10)
	if len(all) != 5 {
		t.Fatalf("got %d events, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].At.After(all[i-1].At) {
			t.Fatal("events not newest-first")
		}
	}

	comms, _ := m.RecentEvents(ctx, world.EventCommunication, 10)
	if len(comms) != 3 {
		t.Fatalf("filtered count = %d, want 3", len(comms))
	}

	capped, _ := m.RecentEvents(ctx, "", 2)
	if len(capped) != 2 {
		t.Fatalf("limit ignored: got %d", len(capped))
	}
}

func TestUpdateUnknownAgent(t *testing.T) {
	m := NewMemory()
	err := m.Apply(context.Background(), &Change{
		UpdateAgents: []*world.Agent{{ID: 42, Name: "ghost"}},
	})
	if err == nil {
		t.Fatal("update of unknown agent accepted")
	}
}
