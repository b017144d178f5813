// Package store provides storage backends for StreamAgent.
//
// It persists conversational memories, finished task cycles, and the comment
// dedup ledger. Backends: in-memory, SQLite and PostgreSQL.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// ErrDSNNotSet is returned when a database backend is requested without a DSN.
var ErrDSNNotSet = errors.New("database DSN not set")

// MemoryStore keeps durable per-room memories.
type MemoryStore interface {
	// CreateMemory inserts a memory. Inserting an existing id is a no-op.
	CreateMemory(ctx context.Context, m models.Memory) error
	// GetMemories returns matching memories, newest first.
	GetMemories(ctx context.Context, f models.MemoryFilter) ([]models.Memory, error)
}

// CycleStore persists finished task cycles.
type CycleStore interface {
	SaveCycle(ctx context.Context, c models.CycleRecord) error
	// ListCycles returns up to limit most recent cycles in start order.
	// An empty agentID lists every agent; limit <= 0 means no limit.
	ListCycles(ctx context.Context, agentID string, limit int) ([]models.CycleRecord, error)
}

// Store is the full persistence surface used by the agents.
type Store interface {
	MemoryStore
	CycleStore
	DedupRepo
	Close() error
}

// Driver names understood by the SQLite backend.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN    string
	Driver string
	// kind is "sqlite" or "postgres"; set by the DSN options.
	kind string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN selects the SQLite backend with a database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.kind = "sqlite"
	}
}

// WithPostgresDSN selects the PostgreSQL backend.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.kind = "postgres"
	}
}

// WithDriver picks the SQLite driver: "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
func WithDriver(driver string) Option {
	return func(o *Opts) { o.Driver = driver }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for everything else.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(d, "host=") && (strings.Contains(d, "dbname=") || strings.Contains(d, "user=")) {
		return "postgres"
	}
	return "sqlite"
}

// Open returns the backend selected by the options. Without any DSN an
// in-memory store is returned.
func Open(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("store.Open: no DSN provided, using in-memory store")
		return NewInMemoryStore(), nil
	}
	kind := cfg.kind
	if kind == "" {
		kind = DetectDSNType(cfg.DSN)
	}
	if kind == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
