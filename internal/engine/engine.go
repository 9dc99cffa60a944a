// Package engine is the authoritative game simulation: it validates and
// executes agent commands against the entity store, enforces cooldowns and
// zone rules, runs the periodic maintenance tick, and emits the event stream.
//
// All command resolutions and the tick share one mutex, so every mutation
// observes a consistent world. Persistence is applied as a single unit of
// work per action before the success result is returned.
package engine

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridfall/server/internal/config"
	"github.com/gridfall/server/internal/data"
	"github.com/gridfall/server/internal/rules"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/terrain"
	"github.com/gridfall/server/internal/world"
)

// Persisted layout constants. These are part of the stored world, not
// configuration: changing them invalidates every persisted position.
const (
	GridWidth  = 50
	GridHeight = 50
)

// Haven is the safe-haven rectangle: combat is rejected inside it and agents
// standing there heal passively each tick.
var Haven = terrain.Rect{X1: 21, Y1: 21, X2: 29, Y2: 29}

// Baseline stats for a freshly registered agent.
const (
	startHP = 50
)

// Action names used for cooldown bookkeeping and error messages.
const (
	actionMove        = "move"
	actionAttack      = "attack"
	actionGather      = "gather"
	actionCommunicate = "communicate"
	actionUseSkill    = "use_skill"
)

// Engine owns the world. One instance per process; see package comment for
// the serialization model.
type Engine struct {
	mu     sync.Mutex
	cfg    config.GameConfig
	grid   *terrain.Grid
	store  store.Store
	tables *data.ResourceTable
	log    *zap.Logger
	rng    *rand.Rand

	// Now is the injected clock. Overridden by tests; defaults to time.Now.
	Now func() time.Time

	subs      []Subscriber
	tickCount uint64
}

// New wires an engine over an already-generated grid and an opened store.
func New(cfg config.GameConfig, grid *terrain.Grid, st store.Store, tables *data.ResourceTable, log *zap.Logger, rng *rand.Rand) *Engine {
	return &Engine{
		cfg:    cfg,
		grid:   grid,
		store:  st,
		tables: tables,
		log:    log,
		rng:    rng,
		Now:    time.Now,
	}
}

// Grid exposes the terrain for read-only consumers (transport bootstrap).
func (e *Engine) Grid() *terrain.Grid { return e.grid }

// agentBySession resolves the common precondition pipeline head: the session
// must own an agent, the agent must be alive (unless allowDead), and the
// named action's cooldown must have elapsed (empty action = no cooldown).
func (e *Engine) agentBySession(ctx context.Context, sessionID string, action string, allowDead bool) (*world.Agent, error) {
	ag, err := e.store.AgentBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ag == nil {
		return nil, reject(CodeNotFound, "no agent registered for this session")
	}
	if !ag.Alive && !allowDead {
		return nil, reject(CodeDead, "agent is dead, awaiting respawn")
	}
	if action != "" {
		if gerr := e.checkCooldown(ag, action); gerr != nil {
			return nil, gerr
		}
	}
	return ag, nil
}

// checkCooldown rejects when the action's ready-at timestamp is still in the
// future, reporting the remaining time in whole seconds rounded up.
func (e *Engine) checkCooldown(ag *world.Agent, action string) *GameError {
	ready := cooldownFor(&ag.Cooldowns, action)
	now := e.Now()
	if !ready.After(now) {
		return nil
	}
	secs := int(math.Ceil(ready.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return reject(CodeCooldown, "%s on cooldown (%ds remaining)", action, secs)
}

func cooldownFor(cd *world.Cooldowns, action string) time.Time {
	switch action {
	case actionMove:
		return cd.Move
	case actionAttack:
		return cd.Attack
	case actionGather:
		return cd.Gather
	case actionCommunicate:
		return cd.Communicate
	case actionUseSkill:
		return cd.UseSkill
	}
	return time.Time{}
}

func setCooldown(cd *world.Cooldowns, action string, readyAt time.Time) {
	switch action {
	case actionMove:
		cd.Move = readyAt
	case actionAttack:
		cd.Attack = readyAt
	case actionGather:
		cd.Gather = readyAt
	case actionCommunicate:
		cd.Communicate = readyAt
	case actionUseSkill:
		cd.UseSkill = readyAt
	}
}

// startCooldown charges an action's cooldown, scaled by the agent's agility.
func (e *Engine) startCooldown(ag *world.Agent, action string, base time.Duration) {
	d := rules.Cooldown(base, ag.Skills.Agility)
	setCooldown(&ag.Cooldowns, action, e.Now().Add(d))
}

// apply commits a unit of work and publishes its events to subscribers. The
// store write is durable before any publish happens; publishing is
// best-effort and never fails the action.
func (e *Engine) apply(ctx context.Context, ch *store.Change) error {
	if err := e.store.Apply(ctx, ch); err != nil {
		return err
	}
	e.publishEvents(ch.Events)
	return nil
}

// cellOccupied reports whether a cell holds an alive agent or a resource.
// Used to validate spawn cells.
func (e *Engine) cellOccupied(ctx context.Context, x, y int) bool {
	if ag, err := e.store.AliveAgentAt(ctx, x, y); err != nil || ag != nil {
		return true
	}
	if res, err := e.store.ResourceAt(ctx, x, y); err != nil || res != nil {
		return true
	}
	return false
}
