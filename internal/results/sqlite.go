package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS results_created_at ON results(created_at);
`

// SQLite is a Store backed by a local SQLite file, so results survive restarts.
type SQLite struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, retention time.Duration) (*SQLite, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}

	return &SQLite{db: db, retention: retention, now: time.Now}, nil
}

func (s *SQLite) Save(ctx context.Context, id string, payload json.RawMessage) error {
	if len(payload) == 0 {
		return fmt.Errorf("failed to save result %s: empty payload", id)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		id, []byte(payload), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (json.RawMessage, error) {
	cutoff := s.now().Add(-s.retention).UnixMilli()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM results WHERE id = ? AND created_at >= ?`, id, cutoff,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", id, err)
	}
	return json.RawMessage(payload), nil
}

func (s *SQLite) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep results: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)
