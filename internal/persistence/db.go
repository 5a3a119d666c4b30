// Package persistence provides SQLite-based world state storage.
// Only the population is stored; herd clusters are rebuilt from it on load.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/engine"
	"github.com/talgya/herd-world/internal/herd"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB

	// Highest event sequence number already written this process.
	savedSeq uint64
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		species TEXT NOT NULL,
		dimension TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		target_json TEXT,
		born_tick INTEGER NOT NULL,
		planned_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS census (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		species TEXT NOT NULL,
		dimension TEXT NOT NULL,
		members INTEGER NOT NULL,
		clusters INTEGER NOT NULL,
		noise INTEGER NOT NULL,
		largest INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_census_herd ON census(species, dimension, tick);
	CREATE INDEX IF NOT EXISTS idx_agents_species ON agents(species, dimension);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type agentRow struct {
	ID          uint64         `db:"id"`
	Species     string         `db:"species"`
	Dimension   string         `db:"dimension"`
	X           float64        `db:"x"`
	Y           float64        `db:"y"`
	Z           float64        `db:"z"`
	Target      sql.NullString `db:"target_json"`
	BornTick    uint64         `db:"born_tick"`
	PlannedTick uint64         `db:"planned_tick"`
}

// SaveAgents writes all living agents to the database (full replace).
func (db *DB) SaveAgents(agentList []agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, species, dimension, x, y, z, target_json, born_tick, planned_tick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		if !a.Alive {
			continue
		}
		var target sql.NullString
		if a.Target != nil {
			b, _ := json.Marshal(a.Target)
			target = sql.NullString{String: string(b), Valid: true}
		}

		_, err := stmt.Exec(
			a.ID, a.Species, a.Dimension,
			a.Pos[0], a.Pos[1], a.Pos[2],
			target, a.BornTick, a.PlannedTick,
		)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// LoadAgents reads the stored population. Rows naming a species that no
// longer exists are skipped.
func (db *DB) LoadAgents() ([]*agents.Agent, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}

	out := make([]*agents.Agent, 0, len(rows))
	for _, r := range rows {
		sp, ok := agents.LookupSpecies(r.Species)
		if !ok {
			slog.Warn("skipping agent of unknown species", "id", r.ID, "species", r.Species)
			continue
		}
		a := agents.NewAgent(agents.AgentID(r.ID), sp, r.Dimension, mgl64.Vec3{r.X, r.Y, r.Z}, r.BornTick)
		a.PlannedTick = r.PlannedTick
		if r.Target.Valid {
			var t cube.Pos
			if err := json.Unmarshal([]byte(r.Target.String), &t); err == nil {
				a.Target = &t
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// MaxAgentID returns the highest stored agent ID, or 0 when empty.
func (db *DB) MaxAgentID() (agents.AgentID, error) {
	var id sql.NullInt64
	if err := db.conn.Get(&id, "SELECT MAX(id) FROM agents"); err != nil {
		return 0, err
	}
	return agents.AgentID(id.Int64), nil
}

// SaveEvents appends events not yet written by this process.
func (db *DB) SaveEvents(events []engine.Event) error {
	var fresh []engine.Event
	for _, e := range events {
		if e.Seq > db.savedSeq {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range fresh {
		var meta sql.NullString
		if len(e.Meta) > 0 {
			b, err := json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("encode event meta: %w", err)
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category, meta_json) VALUES (?, ?, ?, ?)",
			e.Tick, e.Description, e.Category, meta,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.savedSeq = fresh[len(fresh)-1].Seq
	return nil
}

type eventRow struct {
	Tick        uint64         `db:"tick"`
	Description string         `db:"description"`
	Category    string         `db:"category"`
	Meta        sql.NullString `db:"meta_json"`
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT tick, description, category, meta_json FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}

	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{Tick: r.Tick, Description: r.Description, Category: r.Category}
		if r.Meta.Valid {
			_ = json.Unmarshal([]byte(r.Meta.String), &e.Meta)
		}
		events = append(events, e)
	}
	return events, nil
}

// CensusRow is one stored herd census sample.
type CensusRow struct {
	RunID     string `db:"run_id" json:"run_id"`
	Tick      uint64 `db:"tick" json:"tick"`
	Species   string `db:"species" json:"species"`
	Dimension string `db:"dimension" json:"dimension"`
	Members   int    `db:"members" json:"members"`
	Clusters  int    `db:"clusters" json:"clusters"`
	Noise     int    `db:"noise" json:"noise"`
	Largest   int    `db:"largest" json:"largest"`
}

// SaveCensus records one sample per herd.
func (db *DB) SaveCensus(runID string, tick uint64, census []herd.Census) error {
	if len(census) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range census {
		_, err := tx.NamedExec(`INSERT INTO census
			(run_id, tick, species, dimension, members, clusters, noise, largest)
			VALUES (:run_id, :tick, :species, :dimension, :members, :clusters, :noise, :largest)`,
			CensusRow{
				RunID:     runID,
				Tick:      tick,
				Species:   c.Key.Species,
				Dimension: c.Key.Dimension,
				Members:   c.Members,
				Clusters:  c.Clusters,
				Noise:     c.Noise,
				Largest:   c.Largest,
			})
		if err != nil {
			return fmt.Errorf("insert census %s: %w", c.Key, err)
		}
	}

	return tx.Commit()
}

// CensusHistory returns up to limit samples, newest first. Empty species or
// dimension match any.
func (db *DB) CensusHistory(species, dimension string, limit int) ([]CensusRow, error) {
	query := `SELECT run_id, tick, species, dimension, members, clusters, noise, largest
		FROM census
		WHERE (? = '' OR species = ?) AND (? = '' OR dimension = ?)
		ORDER BY id DESC LIMIT ?`

	var rows []CensusRow
	err := db.conn.Select(&rows, query, species, species, dimension, dimension, limit)
	return rows, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns "" and no error.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// LastTick returns the stored last tick, or 0 for a fresh database.
func (db *DB) LastTick() (uint64, error) {
	v, err := db.GetMeta("last_tick")
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// SaveWorldState performs a full save of all world state.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	snapshot := sim.AgentsSnapshot()
	tick := sim.CurrentTick()
	slog.Info("saving world state", "agents", len(snapshot), "tick", tick)

	if err := db.SaveAgents(snapshot); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveEvents(sim.RecentEvents(0)); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}
