package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gridfall/server/internal/config"
	"github.com/gridfall/server/internal/data"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/terrain"
	"github.com/gridfall/server/internal/world"
)

// fakeClock makes cooldowns and timers deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testConfig() config.GameConfig {
	return config.Defaults().Game
}

// newTestEngine builds an engine over an all-open grid, the in-memory store,
// a fixed-seed rng and a fake clock.
func newTestEngine(t *testing.T) (*Engine, *store.Memory, *fakeClock) {
	t.Helper()
	return newTestEngineWith(t, testConfig(), nil)
}

func newTestEngineWith(t *testing.T, cfg config.GameConfig, grid *terrain.Grid) (*Engine, *store.Memory, *fakeClock) {
	t.Helper()
	if grid == nil {
		var err error
		grid, err = terrain.NewOpen(GridWidth, GridHeight, Haven)
		if err != nil {
			t.Fatalf("grid: %v", err)
		}
	}
	tables, err := data.LoadResources("")
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	st := store.NewMemory()
	e := New(cfg, grid, st, tables, zap.NewNop(), rand.New(rand.NewSource(1)))
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	e.Now = clock.Now
	return e, st, clock
}

// register creates an agent and fails the test on rejection.
func register(t *testing.T, e *Engine, session, name string) *RegisterResult {
	t.Helper()
	res, err := e.Register(context.Background(), session, name, "")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return res
}

// place teleports an agent through the store, bypassing movement rules, so
// tests can build exact board positions.
func place(t *testing.T, st store.Store, name string, x, y int) {
	t.Helper()
	mutate(t, st, name, func(ag *world.Agent) {
		ag.X, ag.Y = x, y
	})
}

// mutate edits an agent record directly through the store.
func mutate(t *testing.T, st store.Store, name string, fn func(*world.Agent)) {
	t.Helper()
	ctx := context.Background()
	ag, err := st.AgentByName(ctx, name)
	if err != nil || ag == nil {
		t.Fatalf("load %s: %v", name, err)
	}
	fn(ag)
	if err := st.Apply(ctx, &store.Change{UpdateAgents: []*world.Agent{ag}}); err != nil {
		t.Fatalf("apply %s: %v", name, err)
	}
}

func agentByName(t *testing.T, st store.Store, name string) *world.Agent {
	t.Helper()
	ag, err := st.AgentByName(context.Background(), name)
	if err != nil || ag == nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return ag
}

// wantCode asserts that err is a game rejection with the given code.
func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var gerr *GameError
	if !errors.As(err, &gerr) {
		t.Fatalf("got %v, want rejection %s", err, code)
	}
	if gerr.Code != code {
		t.Fatalf("got code %s (%s), want %s", gerr.Code, gerr.Message, code)
	}
}

func TestCheckCooldownRounding(t *testing.T) {
	e, st, clock := newTestEngine(t)
	ctx := context.Background()
	register(t, e, "s1", "Ada")
	place(t, st, "Ada", 3, 3)

	if _, err := e.Move(ctx, "s1", "east"); err != nil {
		t.Fatalf("move: %v", err)
	}
	_, err := e.Move(ctx, "s1", "east")
	wantCode(t, err, CodeCooldown)

	// 500ms cooldown elapses exactly; the retry must pass.
	clock.Advance(500 * time.Millisecond)
	if _, err := e.Move(ctx, "s1", "east"); err != nil {
		t.Fatalf("move after cooldown: %v", err)
	}
}

func TestAgentBySessionPipeline(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Move(ctx, "ghost", "north")
	wantCode(t, err, CodeNotFound)

	register(t, e, "s1", "Ada")
	mutate(t, st, "Ada", func(ag *world.Agent) { ag.Alive = false })

	_, err = e.Move(ctx, "s1", "north")
	wantCode(t, err, CodeDead)

	// Dead agents may still inspect themselves.
	if _, err := e.Status(ctx, "s1"); err != nil {
		t.Fatalf("status while dead: %v", err)
	}
}
