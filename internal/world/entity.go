package world

import "time"

// SkillName identifies one of the five trainable skills.
const (
	SkillMight      = "might"
	SkillFortitude  = "fortitude"
	SkillAgility    = "agility"
	SkillPerception = "perception"
	SkillHarvesting = "harvesting"
)

// Skills holds the per-skill levels for an agent. Serialized as one JSONB
// column, so field tags are part of the storage format.
type Skills struct {
	Might      int `json:"might"`
	Fortitude  int `json:"fortitude"`
	Agility    int `json:"agility"`
	Perception int `json:"perception"`
	Harvesting int `json:"harvesting"`
}

// Level returns the level of the named skill, or -1 for an unknown name.
func (s *Skills) Level(name string) int {
	switch name {
	case SkillMight:
		return s.Might
	case SkillFortitude:
		return s.Fortitude
	case SkillAgility:
		return s.Agility
	case SkillPerception:
		return s.Perception
	case SkillHarvesting:
		return s.Harvesting
	}
	return -1
}

// Raise increments the named skill. Returns false for an unknown name.
func (s *Skills) Raise(name string) bool {
	switch name {
	case SkillMight:
		s.Might++
	case SkillFortitude:
		s.Fortitude++
	case SkillAgility:
		s.Agility++
	case SkillPerception:
		s.Perception++
	case SkillHarvesting:
		s.Harvesting++
	default:
		return false
	}
	return true
}

// Cooldowns holds the per-action ready-at timestamps. Each agent×action pair
// is a two-state machine: ready when now >= the stored time, cooling
// otherwise. Serialized as one JSONB column.
type Cooldowns struct {
	Move        time.Time `json:"move"`
	Attack      time.Time `json:"attack"`
	Gather      time.Time `json:"gather"`
	Communicate time.Time `json:"communicate"`
	UseSkill    time.Time `json:"use_skill"`
}

// Agent is the durable record for one player-controlled entity. A dead agent
// keeps its row with Alive=false until the tick respawns it; the record is
// never deleted.
type Agent struct {
	ID          int64
	Name        string
	SessionID   string // "" = no live session bound
	SecretHash  string // bcrypt hash of the optional secret, "" = none
	X, Y        int
	HP          int
	MaxHP       int
	Attack      int
	Defense     int
	Level       int
	XP          int
	SkillPoints int
	Skills      Skills
	Kills       int
	Deaths      int
	Alive       bool
	RespawnAt   *time.Time
	Cooldowns   Cooldowns
	Inventory   map[string]int // resource kind → count
	CreatedAt   time.Time
	LastAction  time.Time
}

// Clone returns a deep copy. Store reads hand out clones so in-flight
// mutations are invisible until applied.
func (a *Agent) Clone() *Agent {
	c := *a
	if a.RespawnAt != nil {
		t := *a.RespawnAt
		c.RespawnAt = &t
	}
	c.Inventory = make(map[string]int, len(a.Inventory))
	for k, v := range a.Inventory {
		c.Inventory[k] = v
	}
	return &c
}

// Resource is a gatherable stack on a single tile. Consumed whole by one
// gather action.
type Resource struct {
	ID        int64
	Kind      string
	X, Y      int
	Amount    int
	SpawnedAt time.Time
}

// Clone returns a copy of the resource record.
func (r *Resource) Clone() *Resource {
	c := *r
	return &c
}

// Event kinds appended to the game log.
const (
	EventRegistration  = "registration"
	EventMove          = "move"
	EventAttack        = "attack"
	EventKill          = "kill"
	EventRespawn       = "respawn"
	EventGather        = "gather"
	EventLevelUp       = "level_up"
	EventCommunication = "communication"
	EventSkillUse      = "skill_use"
	EventResourceSpawn = "resource_spawn"
	EventDisconnect    = "disconnect"
)

// Event is one append-only log entry. Ordering is At order, ties broken by ID
// insertion order.
type Event struct {
	ID      int64
	Kind    string
	Actor   string // agent name, "" for world-originated events
	Target  string // agent name, "" when not applicable
	Payload map[string]any
	At      time.Time
}
