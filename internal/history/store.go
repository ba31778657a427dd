// Package history implements the additive observability ledger (§12.3): a
// modernc.org/sqlite-backed, goose-migrated `events` table recording one row
// per completed download, extraction, and update-check cycle. It is never
// consulted by the coherence engine — a ledger write failure is logged and
// ignored, never surfaced as a core error.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go sqlite driver, registers as "sqlite"

	"github.com/dandels/dmodman-core/internal/modid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const walJournalSizeLimit = 67108864 // 64 MiB

// Event is one row of the ledger.
type Event struct {
	Timestamp int64
	Kind      string
	Identity  modid.FileIdentity
	Detail    string
	Outcome   string
}

// NowUnix is a seam for injecting the clock in tests.
var NowUnix = func() int64 { return time.Now().Unix() }

// Store owns the ledger database connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	insertStmt *sql.Stmt
	recentStmt *sql.Stmt
}

// NewStore opens (creating if absent) the ledger database at dbPath,
// applies pending migrations, and prepares its statements. Use ":memory:"
// in tests.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: opening %s: %w", dbPath, err)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()

		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()

		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareStatements(); err != nil {
		db.Close()

		return nil, fmt.Errorf("history: preparing statements: %w", err)
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("history: setting pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration", slog.String("source", r.Source.Path))
	}

	return nil
}

const (
	sqlInsertEvent = `INSERT INTO events (timestamp, kind, game_domain, mod_id, file_id, detail, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlRecentEvents = `SELECT timestamp, kind, game_domain, mod_id, file_id, detail, outcome
		FROM events ORDER BY timestamp DESC LIMIT ?`
)

func (s *Store) prepareStatements() error {
	var err error

	if s.insertStmt, err = s.db.Prepare(sqlInsertEvent); err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}

	if s.recentStmt, err = s.db.Prepare(sqlRecentEvents); err != nil {
		return fmt.Errorf("preparing recent: %w", err)
	}

	return nil
}

// Record appends one event to the ledger. Per §12.3, failures here are the
// caller's responsibility to log and ignore — Record never wraps itself in
// retry logic, since losing an observability row is never a core failure.
func (s *Store) Record(ctx context.Context, ev Event) error {
	_, err := s.insertStmt.ExecContext(ctx,
		ev.Timestamp, ev.Kind, ev.Identity.GameDomain, ev.Identity.ModID, ev.Identity.FileID, ev.Detail, ev.Outcome,
	)
	if err != nil {
		return fmt.Errorf("history: recording event: %w", err)
	}

	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.recentStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("history: querying recent events: %w", err)
	}
	defer rows.Close()

	var events []Event

	for rows.Next() {
		var ev Event

		if err := rows.Scan(
			&ev.Timestamp, &ev.Kind, &ev.Identity.GameDomain, &ev.Identity.ModID, &ev.Identity.FileID,
			&ev.Detail, &ev.Outcome,
		); err != nil {
			return nil, fmt.Errorf("history: scanning event row: %w", err)
		}

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating event rows: %w", err)
	}

	return events, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: closing database: %w", err)
	}

	return nil
}
