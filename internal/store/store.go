// Package store persists session snapshots.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-intel/internal/model"
)

// ErrNotFound is returned when a session id has no stored snapshot.
var ErrNotFound = eris.New("store: not found")

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	Domain string              `json:"domain,omitempty"`
	Status model.SessionStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// SessionSummary is a listing row; the snapshot body is not loaded.
type SessionSummary struct {
	ID        string              `json:"id" yaml:"id"`
	Domain    string              `json:"domain" yaml:"domain"`
	Status    model.SessionStatus `json:"status" yaml:"status"`
	Pages     int                 `json:"pages" yaml:"pages"`
	Runs      int                 `json:"runs" yaml:"runs"`
	CreatedAt time.Time           `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" yaml:"updated_at"`
}

// Store defines the persistence interface for sessions.
type Store interface {
	SaveSession(ctx context.Context, snap *model.SessionSnapshot) error
	GetSession(ctx context.Context, id string) (*model.SessionSnapshot, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend. Supported drivers are "sqlite"
// and "postgres".
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

const defaultListLimit = 100

func summarize(snap *model.SessionSnapshot) SessionSummary {
	return SessionSummary{
		ID:        snap.ID,
		Domain:    snap.Domain,
		Status:    snap.Status,
		Pages:     len(snap.Pages),
		Runs:      len(snap.History),
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
}

func validate(snap *model.SessionSnapshot) error {
	if snap == nil {
		return eris.New("store: nil snapshot")
	}
	if snap.ID == "" {
		return eris.New("store: snapshot id is required")
	}
	return nil
}
