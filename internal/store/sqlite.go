package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/domain-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	pages      INTEGER NOT NULL DEFAULT 0,
	runs       INTEGER NOT NULL DEFAULT 0,
	snapshot   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sessions_domain ON sessions(domain);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, snap *model.SessionSnapshot) error {
	if err := validate(snap); err != nil {
		return err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}

	sum := summarize(snap)
	createdAt, updatedAt := timestamps(sum)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, domain, status, pages, runs, snapshot, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET domain = excluded.domain, status = excluded.status,
		   pages = excluded.pages, runs = excluded.runs, snapshot = excluded.snapshot,
		   updated_at = excluded.updated_at`,
		sum.ID, sum.Domain, string(sum.Status), sum.Pages, sum.Runs, string(body), createdAt, updatedAt,
	)
	return eris.Wrapf(err, "sqlite: save session %s", snap.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.SessionSnapshot, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal session")
	}
	return &snap, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]SessionSummary, error) {
	query := `SELECT id, domain, status, pages, runs, created_at, updated_at FROM sessions WHERE 1=1`
	var args []any

	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY updated_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Domain, &sum.Status, &sum.Pages, &sum.Runs, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete session %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "session %s", id)
	}
	return nil
}

// timestamps fills zero times so ordering by updated_at stays meaningful.
func timestamps(sum SessionSummary) (created, updated time.Time) {
	now := time.Now().UTC()
	created, updated = sum.CreatedAt.UTC(), sum.UpdatedAt.UTC()
	if sum.CreatedAt.IsZero() {
		created = now
	}
	if sum.UpdatedAt.IsZero() {
		updated = now
	}
	return created, updated
}
