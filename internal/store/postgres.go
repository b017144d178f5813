// Package store provides storage backends for StreamAgent.
//
// This file implements a PostgreSQL-backed store for memories and cycles.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/StreamAgent/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, ErrDSNNotSet
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		slog.Error("Postgres ping failed", "error", err)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// CreateMemory implements MemoryStore.
func (s *PostgresStore) CreateMemory(ctx context.Context, m models.Memory) error {
	content, err := encodeContent(m.Content)
	if err != nil {
		return err
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, agent_id, room_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
		m.ID, m.UserID, m.AgentID, m.RoomID, content, created.UTC())
	if err != nil {
		slog.Error("PostgresStore CreateMemory failed", "error", err, "id", m.ID)
		return fmt.Errorf("failed to insert memory %s: %w", m.ID, err)
	}
	slog.Debug("PostgresStore CreateMemory succeeded", "id", m.ID, "room", m.RoomID)
	return nil
}

// GetMemories implements MemoryStore.
func (s *PostgresStore) GetMemories(ctx context.Context, f models.MemoryFilter) ([]models.Memory, error) {
	query := `SELECT id, user_id, agent_id, room_id, content, created_at FROM memories WHERE 1=1`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}
	if f.AgentID != "" {
		add(` AND agent_id = $%d`, f.AgentID)
	}
	if f.RoomID != "" {
		add(` AND room_id = $%d`, f.RoomID)
	}
	if f.UserID != "" {
		add(` AND user_id = $%d`, f.UserID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		add(` LIMIT $%d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore GetMemories query failed", "error", err)
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []models.Memory
	for rows.Next() {
		var m models.Memory
		var content string
		if err := rows.Scan(&m.ID, &m.UserID, &m.AgentID, &m.RoomID, &content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		if m.Content, err = decodeContent(content); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory rows: %w", err)
	}
	slog.Debug("PostgresStore GetMemories succeeded", "count", len(out))
	return out, nil
}

// SaveCycle implements CycleStore.
func (s *PostgresStore) SaveCycle(ctx context.Context, c models.CycleRecord) error {
	cols, err := encodeCycle(c)
	if err != nil {
		return err
	}
	var end interface{}
	if c.EndTime != nil {
		end = c.EndTime.UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cycles (id, agent_id, start_time, end_time, status, duration_ms, task_plan, completed, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			duration_ms = EXCLUDED.duration_ms,
			task_plan = EXCLUDED.task_plan,
			completed = EXCLUDED.completed,
			failed = EXCLUDED.failed`,
		c.ID, c.AgentID, c.StartTime.UTC(), end, string(c.Status), nullDuration(c.DurationMs),
		cols.plan, cols.completed, cols.failed)
	if err != nil {
		slog.Error("PostgresStore SaveCycle failed", "error", err, "cycle_id", c.ID)
		return fmt.Errorf("failed to save cycle %s: %w", c.ID, err)
	}
	slog.Debug("PostgresStore SaveCycle succeeded", "cycle_id", c.ID, "status", c.Status)
	return nil
}

// ListCycles implements CycleStore.
func (s *PostgresStore) ListCycles(ctx context.Context, agentID string, limit int) ([]models.CycleRecord, error) {
	query := `SELECT id, agent_id, start_time, end_time, status, duration_ms, task_plan, completed, failed FROM cycles`
	var args []any
	if agentID != "" {
		args = append(args, agentID)
		query += ` WHERE agent_id = $1`
	}
	query += ` ORDER BY start_time DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore ListCycles query failed", "error", err)
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var out []models.CycleRecord
	for rows.Next() {
		var c models.CycleRecord
		var status string
		var end sql.NullTime
		var duration sql.NullInt64
		var cols cycleColumns
		if err := rows.Scan(&c.ID, &c.AgentID, &c.StartTime, &end, &status, &duration, &cols.plan, &cols.completed, &cols.failed); err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}
		c.Status = models.CycleStatus(status)
		if end.Valid {
			t := end.Time
			c.EndTime = &t
		}
		if err := decodeCycle(&c, cols, duration); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycle rows: %w", err)
	}
	reverseCycles(out)
	return out, nil
}

// Close closes the PostgreSQL connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	} else {
		slog.Debug("PostgreSQL database connection closed successfully")
	}
	return err
}
