// Package store provides storage backends for StreamAgent.
//
// This file implements an SQLite-backed store for memories and cycles.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/BTreeMap/StreamAgent/internal/models"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "", "driver", cfg.Driver)

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrDSNNotSet
	}
	driver := cfg.Driver
	switch driver {
	case "", DriverMattn:
		driver = DriverMattn
	case DriverModernc:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}

	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		slog.Debug("SQLite database directory verified/created", "dir", dir)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err, "driver", driver)
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer avoids SQLITE_BUSY between the agents sharing the file
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		slog.Error("SQLite ping failed", "error", err)
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "driver", driver)

	return &SQLiteStore{db: db}, nil
}

// CreateMemory implements MemoryStore.
func (s *SQLiteStore) CreateMemory(ctx context.Context, m models.Memory) error {
	content, err := encodeContent(m.Content)
	if err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO memories (id, user_id, agent_id, room_id, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.AgentID, m.RoomID, content, formatTime(m.CreatedAt))
	if err != nil {
		slog.Error("SQLiteStore CreateMemory failed", "error", err, "id", m.ID)
		return fmt.Errorf("failed to insert memory %s: %w", m.ID, err)
	}
	slog.Debug("SQLiteStore CreateMemory succeeded", "id", m.ID, "room", m.RoomID)
	return nil
}

// GetMemories implements MemoryStore.
func (s *SQLiteStore) GetMemories(ctx context.Context, f models.MemoryFilter) ([]models.Memory, error) {
	query := `SELECT id, user_id, agent_id, room_id, content, created_at FROM memories WHERE 1=1`
	var args []any
	if f.AgentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, f.AgentID)
	}
	if f.RoomID != "" {
		query += ` AND room_id = ?`
		args = append(args, f.RoomID)
	}
	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetMemories query failed", "error", err)
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []models.Memory
	for rows.Next() {
		var m models.Memory
		var content, created string
		if err := rows.Scan(&m.ID, &m.UserID, &m.AgentID, &m.RoomID, &content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		if m.Content, err = decodeContent(content); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse memory created_at: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory rows: %w", err)
	}
	slog.Debug("SQLiteStore GetMemories succeeded", "count", len(out))
	return out, nil
}

// SaveCycle implements CycleStore.
func (s *SQLiteStore) SaveCycle(ctx context.Context, c models.CycleRecord) error {
	cols, err := encodeCycle(c)
	if err != nil {
		return err
	}
	var end string
	if c.EndTime != nil {
		end = formatTime(*c.EndTime)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles (id, agent_id, start_time, end_time, status, duration_ms, task_plan, completed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AgentID, formatTime(c.StartTime), nilIfEmpty(end), string(c.Status), nullDuration(c.DurationMs),
		cols.plan, cols.completed, cols.failed)
	if err != nil {
		slog.Error("SQLiteStore SaveCycle failed", "error", err, "cycle_id", c.ID)
		return fmt.Errorf("failed to save cycle %s: %w", c.ID, err)
	}
	slog.Debug("SQLiteStore SaveCycle succeeded", "cycle_id", c.ID, "status", c.Status)
	return nil
}

// ListCycles implements CycleStore.
func (s *SQLiteStore) ListCycles(ctx context.Context, agentID string, limit int) ([]models.CycleRecord, error) {
	query := `SELECT id, agent_id, start_time, end_time, status, duration_ms, task_plan, completed, failed FROM cycles`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY start_time DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListCycles query failed", "error", err)
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var out []models.CycleRecord
	for rows.Next() {
		var c models.CycleRecord
		var start, status string
		var end sql.NullString
		var duration sql.NullInt64
		var cols cycleColumns
		if err := rows.Scan(&c.ID, &c.AgentID, &start, &end, &status, &duration, &cols.plan, &cols.completed, &cols.failed); err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}
		c.Status = models.CycleStatus(status)
		if c.StartTime, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("parse cycle start_time: %w", err)
		}
		if end.Valid {
			t, err := parseTime(end.String)
			if err != nil {
				return nil, fmt.Errorf("parse cycle end_time: %w", err)
			}
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

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
