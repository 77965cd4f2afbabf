package lifecycle

import (
	"context"
	"errors"

	"github.com/sells-group/domain-intel/internal/collector"
)

// WithLifecycle fetches the instance for id, runs fn with it, and reports
// the outcome back to m. Rejections that say nothing about the instance's
// health (busy, no valid URLs) are passed through unreported.
func WithLifecycle[T any](ctx context.Context, m *Manager, id string, fn func(ctx context.Context, c collector.Collector) (T, error)) (T, error) {
	var zero T
	c, err := m.GetInstance(ctx, id)
	if err != nil {
		return zero, err
	}
	v, err := fn(ctx, c)
	if err != nil {
		if !callerError(err) {
			m.ReportError(id, err)
		}
		return v, err
	}
	m.ReportSuccess(id)
	return v, nil
}

func callerError(err error) bool {
	return errors.Is(err, collector.ErrAlreadyBusy) || errors.Is(err, collector.ErrValidation)
}
