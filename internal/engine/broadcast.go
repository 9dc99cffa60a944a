package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gridfall/server/internal/terrain"
	"github.com/gridfall/server/internal/world"
)

// Subscriber receives the spectator stream: every appended event plus a full
// snapshot per tick. Implementations must not block; delivery is
// fire-and-forget and a misbehaving subscriber never affects game state.
type Subscriber interface {
	PublishEvent(ev *world.Event)
	PublishSnapshot(snap *Snapshot)
}

// Subscribe registers a spectator sink. Not safe to call concurrently with
// running traffic; wire subscribers at boot.
func (e *Engine) Subscribe(s Subscriber) {
	e.subs = append(e.subs, s)
}

func (e *Engine) publishEvents(events []*world.Event) {
	for _, ev := range events {
		for _, s := range e.subs {
			e.safePublish(func() { s.PublishEvent(ev) })
		}
	}
}

func (e *Engine) publishSnapshot(snap *Snapshot) {
	for _, s := range e.subs {
		e.safePublish(func() { s.PublishSnapshot(snap) })
	}
}

// safePublish isolates subscriber panics from the game loop.
func (e *Engine) safePublish(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("subscriber panic", zap.Any("panic", r))
		}
	}()
	fn()
}

// AgentView is the public projection of an agent for snapshots and queries.
type AgentView struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	X           int          `json:"x"`
	Y           int          `json:"y"`
	HP          int          `json:"hp"`
	MaxHP       int          `json:"max_hp"`
	Attack      int          `json:"attack"`
	Defense     int          `json:"defense"`
	Level       int          `json:"level"`
	XP          int          `json:"xp"`
	XPToNext    int          `json:"xp_to_next"`
	SkillPoints int          `json:"skill_points"`
	Skills      world.Skills `json:"skills"`
	Kills       int          `json:"kills"`
	Deaths      int          `json:"deaths"`
	Alive       bool         `json:"alive"`
	InHaven     bool         `json:"in_haven"`
}

// ResourceView is the public projection of a map resource.
type ResourceView struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Amount int    `json:"amount"`
}

// Snapshot is the authoritative full-state refresh published each tick.
type Snapshot struct {
	Tick      uint64         `json:"tick"`
	At        time.Time      `json:"at"`
	Grid      []string       `json:"grid"` // terrain overlaid with agents and resources
	Haven     terrain.Rect   `json:"haven"`
	Agents    []AgentView    `json:"agents"`
	Resources []ResourceView `json:"resources"`
	Events    []*world.Event `json:"events"` // most recent first
}

func (e *Engine) agentView(ag *world.Agent) AgentView {
	return AgentView{
		ID:          ag.ID,
		Name:        ag.Name,
		X:           ag.X,
		Y:           ag.Y,
		HP:          ag.HP,
		MaxHP:       ag.MaxHP,
		Attack:      ag.Attack,
		Defense:     ag.Defense,
		Level:       ag.Level,
		XP:          ag.XP,
		XPToNext:    xpToNext(ag),
		SkillPoints: ag.SkillPoints,
		Skills:      ag.Skills,
		Kills:       ag.Kills,
		Deaths:      ag.Deaths,
		Alive:       ag.Alive,
		InHaven:     e.grid.InHaven(ag.X, ag.Y),
	}
}

// buildSnapshot renders the full world: the terrain grid with alive agents
// ('A') and resource glyphs overlaid, the roster, resources, and the most
// recent events.
func (e *Engine) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	agents, err := e.store.Agents(ctx)
	if err != nil {
		return nil, err
	}
	resources, err := e.store.Resources(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := e.store.RecentEvents(ctx, "", 20)
	if err != nil {
		return nil, err
	}

	rows := make([][]byte, e.grid.Height())
	for y := 0; y < e.grid.Height(); y++ {
		row := make([]byte, e.grid.Width())
		for x := 0; x < e.grid.Width(); x++ {
			row[x] = e.grid.KindAt(x, y).Symbol()[0]
		}
		rows[y] = row
	}
	for _, res := range resources {
		if info := e.tables.Get(res.Kind); info != nil && info.Symbol != "" {
			rows[res.Y][res.X] = info.Symbol[0]
		}
	}

	snap := &Snapshot{
		Tick:  e.tickCount,
		At:    e.Now(),
		Haven: e.grid.Haven(),
	}
	for _, ag := range agents {
		snap.Agents = append(snap.Agents, e.agentView(ag))
		if ag.Alive {
			rows[ag.Y][ag.X] = 'A'
		}
	}
	for _, res := range resources {
		snap.Resources = append(snap.Resources, ResourceView{
			ID: res.ID, Kind: res.Kind, X: res.X, Y: res.Y, Amount: res.Amount,
		})
	}
	for _, row := range rows {
		snap.Grid = append(snap.Grid, string(row))
	}
	snap.Events = recent
	return snap, nil
}
