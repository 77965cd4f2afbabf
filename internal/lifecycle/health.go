package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Start launches the periodic idle check. It returns immediately; call
// CleanupAll to stop it.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.done != nil {
		m.mu.Unlock()
		return
	}
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.evictIdle(context.Background())
			}
		}
	}()
}

// evictIdle cleans up and removes instances idle longer than MaxIdle. Busy
// instances are skipped. Status is queried outside m.mu since some
// collectors query a remote process to answer it.
func (m *Manager) evictIdle(ctx context.Context) int {
	now := m.now()

	m.mu.Lock()
	tracked := make(map[string]*instance, len(m.instances))
	for id, inst := range m.instances {
		tracked[id] = inst
	}
	m.mu.Unlock()

	var stale []string
	for id, inst := range tracked {
		if m.idleSince(inst, now) > m.cfg.MaxIdle && !inst.c.Status().Busy {
			stale = append(stale, id)
		}
	}

	evicted := make(map[string]*instance, len(stale))
	m.mu.Lock()
	for _, id := range stale {
		inst := tracked[id]
		// Skip instances replaced or used since the scan.
		if m.instances[id] != inst || m.idleSince(inst, now) <= m.cfg.MaxIdle {
			continue
		}
		evicted[id] = inst
		delete(m.instances, id)
	}
	m.metrics.SetInstances(len(m.instances))
	m.mu.Unlock()

	for id, inst := range evicted {
		inst.mu.Lock()
		if err := inst.c.Cleanup(ctx); err != nil {
			m.log.Warn("cleanup of idle collector failed", zap.String("collector", id), zap.Error(err))
		}
		inst.mu.Unlock()
		m.metrics.IncEviction()
		m.log.Info("evicted idle collector", zap.String("collector", id))
	}
	return len(evicted)
}

// CleanupAll stops the idle check and cleans every remaining instance
// concurrently. All cleanups run even when some fail; the first error is
// returned.
func (m *Manager) CleanupAll(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	done := m.done
	all := m.instances
	m.instances = make(map[string]*instance)
	m.metrics.SetInstances(0)
	m.mu.Unlock()
	if done != nil {
		<-done
	}

	var g errgroup.Group
	for id, inst := range all {
		g.Go(func() error {
			inst.mu.Lock()
			defer inst.mu.Unlock()
			if err := inst.c.Cleanup(ctx); err != nil {
				m.log.Warn("cleanup failed", zap.String("collector", id), zap.Error(err))
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) idleSince(inst *instance, now time.Time) time.Duration {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return now.Sub(inst.lastUsedAt)
}
