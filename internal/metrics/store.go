package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS request_metrics (
	request_id        TEXT PRIMARY KEY,
	provider          TEXT NOT NULL DEFAULT '',
	model             TEXT NOT NULL DEFAULT '',
	started_at        INTEGER NOT NULL,
	finished_at       INTEGER,
	outcome           TEXT NOT NULL DEFAULT 'started',
	message_count     INTEGER NOT NULL DEFAULT 0,
	tool_use_count    INTEGER NOT NULL DEFAULT 0,
	tool_result_count INTEGER NOT NULL DEFAULT 0,
	request_bytes     INTEGER NOT NULL DEFAULT 0,
	token_estimate    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS model_access (
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	last_accessed INTEGER NOT NULL,
	PRIMARY KEY (provider, model)
);
`

// Store is the sqlite-backed Tracker. One Store serves all requests; the
// database handle manages its own connection pool.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the metrics database at path.
// Use ":memory:" for tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}
	// One writer connection: avoids SQLITE_BUSY under concurrency and
	// keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate metrics db: %w", err)
	}
	log.Debug().Str("path", path).Msg("metrics store ready")
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Start(ctx context.Context, rec *RequestMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_metrics (request_id, provider, model, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING`,
		rec.RequestID, rec.Provider, rec.Model, rec.StartedAt.UnixMilli())
	return err
}

func (s *Store) Annotate(ctx context.Context, rec *RequestMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE request_metrics
		SET provider = ?, model = ?, message_count = ?, tool_use_count = ?,
		    tool_result_count = ?, request_bytes = ?, token_estimate = ?
		WHERE request_id = ?`,
		rec.Provider, rec.Model, rec.MessageCount, rec.ToolUseCount,
		rec.ToolResultCount, rec.RequestSizeBytes, rec.TokenEstimate,
		rec.RequestID)
	return err
}

func (s *Store) Finish(ctx context.Context, requestID, outcome string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE request_metrics SET outcome = ?, finished_at = ?
		WHERE request_id = ?`,
		outcome, time.Now().UnixMilli(), requestID)
	return err
}

func (s *Store) Touch(ctx context.Context, provider, model string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_access (provider, model, last_accessed)
		VALUES (?, ?, ?)
		ON CONFLICT(provider, model) DO UPDATE SET last_accessed = excluded.last_accessed`,
		provider, model, time.Now().UnixMilli())
	return err
}

// Outcome returns the recorded outcome for a request id, for tests and
// the status endpoint.
func (s *Store) Outcome(ctx context.Context, requestID string) (string, error) {
	var outcome string
	err := s.db.QueryRowContext(ctx,
		`SELECT outcome FROM request_metrics WHERE request_id = ?`, requestID).Scan(&outcome)
	return outcome, err
}

// LastAccessed returns the last-accessed marker for a provider/model
// pair, zero time when absent.
func (s *Store) LastAccessed(ctx context.Context, provider, model string) (time.Time, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_accessed FROM model_access WHERE provider = ? AND model = ?`,
		provider, model).Scan(&ms)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
