// Package collector defines the contract every page collector implements and
// the shared Base that enforces it around a pluggable Strategy.
package collector

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/model"
)

var (
	// ErrValidation means no valid URL survived input filtering.
	ErrValidation = eris.New("collector: no valid urls")
	// ErrNotInitialized means Execute ran before Initialize.
	ErrNotInitialized = eris.New("collector: not initialized")
	// ErrAlreadyBusy means another Execute on the same instance is in flight.
	ErrAlreadyBusy = eris.New("collector: already busy")
	// ErrCollection means the strategy failed as a whole, not for one page.
	ErrCollection = eris.New("collector: collection failed")
)

// CollectionError carries the strategy failure behind ErrCollection.
type CollectionError struct {
	CollectorID string
	Err         error
}

func (e *CollectionError) Error() string {
	return "collector " + e.CollectorID + ": collection failed: " + e.Err.Error()
}

func (e *CollectionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCollection) match.
func (e *CollectionError) Is(target error) bool { return target == ErrCollection }

// Collector fetches and extracts a batch of URLs.
type Collector interface {
	Info() Info
	// Initialize prepares the instance. Calling it again is a no-op.
	Initialize(ctx context.Context, cc Context) error
	Execute(ctx context.Context, urls []string, opts ExecuteOptions) (*model.ScraperResult, error)
	Cleanup(ctx context.Context) error
	CanHandle(rawURL string) bool
	EstimateTime(urlCount int) time.Duration
	Status() Status
}

// Info identifies a collector instance.
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Strategy    string `json:"strategy" yaml:"strategy"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Status is a point-in-time view of an instance.
type Status struct {
	Ready       bool `json:"ready"`
	Busy        bool `json:"busy"`
	Initialized bool `json:"initialized"`
}

// Context is handed to Initialize by whoever owns the instance.
type Context struct {
	SessionID string
	Domain    string
	Reporter  Reporter
	Logger    *zap.Logger
}

// ExecuteOptions tunes a single Execute call.
type ExecuteOptions struct {
	Extract extract.Options
	// Timeout overrides the collector's configured per-run timeout.
	Timeout time.Duration
}

// DefaultExecuteOptions runs every extractor with the collector's own timeout.
func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{Extract: extract.DefaultOptions()}
}
