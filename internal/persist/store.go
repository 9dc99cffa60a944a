package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/world"
)

// Store is the postgres-backed entity store. Apply runs each unit of work in
// one transaction, so an action's agent updates, resource changes and events
// commit or vanish together.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

const agentColumns = `id, name, session_id, secret_hash, x, y, hp, max_hp,
	attack, defense, level, xp, skill_points, skills, kills, deaths,
	alive, respawn_at, cooldowns, inventory, created_at, last_action`

func (s *Store) Apply(ctx context.Context, ch *store.Change) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range ch.CreateAgents {
		skills, cooldowns, inventory, err := marshalAgentBlobs(a)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO agents (
				name, session_id, secret_hash, x, y, hp, max_hp,
				attack, defense, level, xp, skill_points, skills,
				kills, deaths, alive, respawn_at, cooldowns, inventory,
				created_at, last_action
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,
				$14,$15,$16,$17,$18,$19,$20,$21
			) RETURNING id`,
			a.Name, a.SessionID, a.SecretHash, a.X, a.Y, a.HP, a.MaxHP,
			a.Attack, a.Defense, a.Level, a.XP, a.SkillPoints, skills,
			a.Kills, a.Deaths, a.Alive, a.RespawnAt, cooldowns, inventory,
			a.CreatedAt, a.LastAction,
		).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("create agent %s: %w", a.Name, err)
		}
	}

	for _, a := range ch.UpdateAgents {
		skills, cooldowns, inventory, err := marshalAgentBlobs(a)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE agents SET
				name = $1, session_id = $2, secret_hash = $3,
				x = $4, y = $5, hp = $6, max_hp = $7,
				attack = $8, defense = $9, level = $10, xp = $11,
				skill_points = $12, skills = $13, kills = $14, deaths = $15,
				alive = $16, respawn_at = $17, cooldowns = $18,
				inventory = $19, last_action = $20
			WHERE id = $21`,
			a.Name, a.SessionID, a.SecretHash,
			a.X, a.Y, a.HP, a.MaxHP,
			a.Attack, a.Defense, a.Level, a.XP,
			a.SkillPoints, skills, a.Kills, a.Deaths,
			a.Alive, a.RespawnAt, cooldowns,
			inventory, a.LastAction,
			a.ID,
		)
		if err != nil {
			return fmt.Errorf("update agent %d: %w", a.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update of unknown agent %d", a.ID)
		}
	}

	for _, r := range ch.CreateResources {
		err := tx.QueryRow(ctx,
			`INSERT INTO resources (kind, x, y, amount, spawned_at)
			 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			r.Kind, r.X, r.Y, r.Amount, r.SpawnedAt,
		).Scan(&r.ID)
		if err != nil {
			return fmt.Errorf("create resource %s at (%d,%d): %w", r.Kind, r.X, r.Y, err)
		}
	}

	for _, id := range ch.DeleteResourceIDs {
		if _, err := tx.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete resource %d: %w", id, err)
		}
	}

	for _, ev := range ch.Events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO events (kind, actor, target, payload, at)
			 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			ev.Kind, ev.Actor, ev.Target, payload, ev.At,
		).Scan(&ev.ID)
		if err != nil {
			return fmt.Errorf("append event %s: %w", ev.Kind, err)
		}
	}

	return tx.Commit(ctx)
}

func marshalAgentBlobs(a *world.Agent) (skills, cooldowns, inventory []byte, err error) {
	if skills, err = json.Marshal(a.Skills); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal skills: %w", err)
	}
	if cooldowns, err = json.Marshal(a.Cooldowns); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal cooldowns: %w", err)
	}
	inv := a.Inventory
	if inv == nil {
		inv = map[string]int{}
	}
	if inventory, err = json.Marshal(inv); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal inventory: %w", err)
	}
	return skills, cooldowns, inventory, nil
}

func scanAgent(row pgx.Row) (*world.Agent, error) {
	a := &world.Agent{}
	var skills, cooldowns, inventory []byte
	err := row.Scan(
		&a.ID, &a.Name, &a.SessionID, &a.SecretHash, &a.X, &a.Y, &a.HP, &a.MaxHP,
		&a.Attack, &a.Defense, &a.Level, &a.XP, &a.SkillPoints, &skills,
		&a.Kills, &a.Deaths, &a.Alive, &a.RespawnAt, &cooldowns, &inventory,
		&a.CreatedAt, &a.LastAction,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(skills, &a.Skills); err != nil {
		return nil, fmt.Errorf("unmarshal skills: %w", err)
	}
	if err := json.Unmarshal(cooldowns, &a.Cooldowns); err != nil {
		return nil, fmt.Errorf("unmarshal cooldowns: %w", err)
	}
	if err := json.Unmarshal(inventory, &a.Inventory); err != nil {
		return nil, fmt.Errorf("unmarshal inventory: %w", err)
	}
	return a, nil
}

func (s *Store) AgentByID(ctx context.Context, id int64) (*world.Agent, error) {
	return scanAgent(s.db.Pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

func (s *Store) AgentByName(ctx context.Context, name string) (*world.Agent, error) {
	return scanAgent(s.db.Pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE name = $1`, name))
}

func (s *Store) AgentBySession(ctx context.Context, sessionID string) (*world.Agent, error) {
	if sessionID == "" {
		return nil, nil
	}
	return scanAgent(s.db.Pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE session_id = $1`, sessionID))
}

func (s *Store) AliveAgentAt(ctx context.Context, x, y int) (*world.Agent, error) {
	return scanAgent(s.db.Pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE alive AND x = $1 AND y = $2`, x, y))
}

func (s *Store) Agents(ctx context.Context) ([]*world.Agent, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*world.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountAgents(ctx context.Context) (int, error) {
	var count int
	err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count)
	return count, err
}

func (s *Store) ResourceAt(ctx context.Context, x, y int) (*world.Resource, error) {
	r := &world.Resource{}
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, kind, x, y, amount, spawned_at FROM resources WHERE x = $1 AND y = $2`,
		x, y,
	).Scan(&r.ID, &r.Kind, &r.X, &r.Y, &r.Amount, &r.SpawnedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) Resources(ctx context.Context) ([]*world.Resource, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, kind, x, y, amount, spawned_at FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*world.Resource
	for rows.Next() {
		r := &world.Resource{}
		if err := rows.Scan(&r.ID, &r.Kind, &r.X, &r.Y, &r.Amount, &r.SpawnedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountResources(ctx context.Context) (int, error) {
	var count int
	err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count)
	return count, err
}

func (s *Store) RecentEvents(ctx context.Context, kind string, limit int) ([]*world.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, kind, actor, target, payload, at FROM events
		 WHERE $1 = '' OR kind = $1
		 ORDER BY id DESC LIMIT $2`, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*world.Event
	for rows.Next() {
		ev := &world.Event{}
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Actor, &ev.Target, &payload, &ev.At); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
