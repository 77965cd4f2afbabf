// Package lifecycle owns collector instances between runs: it counts uses
// and errors, refreshes stale instances, and evicts idle ones.
package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/metrics"
)

var (
	// ErrNotRegistered means no instance exists under the requested id.
	ErrNotRegistered = eris.New("lifecycle: collector not registered")
	// ErrAlreadyRegistered means Register was called twice for one id.
	ErrAlreadyRegistered = eris.New("lifecycle: collector already registered")
)

// Health is the error-derived state of an instance.
type Health string

const (
	Healthy   Health = "healthy"
	Unhealthy Health = "unhealthy"
)

// Refresh triggers, also used as metric labels.
const (
	ReasonMaxUses   = "max_uses"
	ReasonMaxErrors = "max_errors"
	ReasonNotReady  = "not_ready"
)

// Config bounds how long an instance lives.
type Config struct {
	MaxUses             int           `yaml:"max_uses" mapstructure:"max_uses"`
	MaxErrors           int           `yaml:"max_errors" mapstructure:"max_errors"`
	MaxIdle             time.Duration `yaml:"max_idle" mapstructure:"max_idle"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" mapstructure:"health_check_interval"`
}

// DefaultConfig refreshes every 50 uses or 3 errors and evicts after 10
// idle minutes.
func DefaultConfig() Config {
	return Config{
		MaxUses:             50,
		MaxErrors:           3,
		MaxIdle:             10 * time.Minute,
		HealthCheckInterval: time.Minute,
	}
}

// InstanceInfo is a read-only view of a registered instance.
type InstanceInfo struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Strategy   string           `json:"strategy"`
	CreatedAt  time.Time        `json:"created_at"`
	LastUsedAt time.Time        `json:"last_used_at"`
	UseCount   int              `json:"use_count"`
	ErrorCount int              `json:"error_count"`
	Health     Health           `json:"health"`
	Status     collector.Status `json:"status"`
}

type instance struct {
	mu sync.Mutex

	c  collector.Collector
	cc collector.Context

	createdAt  time.Time
	lastUsedAt time.Time
	useCount   int
	errorCount int
	health     Health
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records refreshes, evictions and errors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) { mgr.now = now }
}

// Manager tracks collector instances. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time
	log     *zap.Logger

	mu        sync.Mutex
	instances map[string]*instance

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a Manager. Zero config fields fall back to defaults.
func NewManager(cfg Config, opts ...Option) *Manager {
	d := DefaultConfig()
	if cfg.MaxUses <= 0 {
		cfg.MaxUses = d.MaxUses
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = d.MaxErrors
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = d.MaxIdle
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = d.HealthCheckInterval
	}
	m := &Manager{
		cfg:       cfg,
		now:       time.Now,
		log:       zap.L().With(zap.String("component", "lifecycle")),
		instances: make(map[string]*instance),
		stop:      make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Register initializes c and starts tracking it under its id.
func (m *Manager) Register(ctx context.Context, c collector.Collector, cc collector.Context) error {
	id := c.Info().ID
	m.mu.Lock()
	_, exists := m.instances[id]
	m.mu.Unlock()
	if exists {
		return eris.Wrapf(ErrAlreadyRegistered, "lifecycle: %s", id)
	}

	if err := c.Initialize(ctx, cc); err != nil {
		return eris.Wrapf(err, "lifecycle: register %s", id)
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[id]; exists {
		return eris.Wrapf(ErrAlreadyRegistered, "lifecycle: %s", id)
	}
	m.instances[id] = &instance{c: c, cc: cc, createdAt: now, lastUsedAt: now, health: Healthy}
	m.metrics.SetInstances(len(m.instances))
	m.log.Debug("collector registered", zap.String("collector", id))
	return nil
}

// Ensure registers c unless an instance with its id is already tracked.
func (m *Manager) Ensure(ctx context.Context, c collector.Collector, cc collector.Context) error {
	err := m.Register(ctx, c, cc)
	if errors.Is(err, ErrAlreadyRegistered) {
		return nil
	}
	return err
}

// GetInstance returns the instance for id. When it has hit MaxUses or
// MaxErrors, or reports itself not ready, it is cleaned up, initialized
// again and its counters reset before it is returned; that call does not
// count as a use. A busy instance is returned untouched so its own Execute
// rejects the caller.
func (m *Manager) GetInstance(ctx context.Context, id string) (collector.Collector, error) {
	inst, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	status := inst.c.Status()
	if status.Busy {
		return inst.c, nil
	}
	if reason := m.refreshReason(inst, status); reason != "" {
		if err := m.refresh(ctx, id, inst, reason); err != nil {
			return nil, err
		}
		return inst.c, nil
	}

	inst.useCount++
	inst.lastUsedAt = m.now()
	return inst.c, nil
}

func (m *Manager) refreshReason(inst *instance, status collector.Status) string {
	switch {
	case inst.useCount >= m.cfg.MaxUses:
		return ReasonMaxUses
	case inst.errorCount >= m.cfg.MaxErrors:
		return ReasonMaxErrors
	case !status.Ready:
		return ReasonNotReady
	}
	return ""
}

func (m *Manager) refresh(ctx context.Context, id string, inst *instance, reason string) error {
	m.log.Info("refreshing collector",
		zap.String("collector", id),
		zap.String("reason", reason),
		zap.Int("uses", inst.useCount),
		zap.Int("errors", inst.errorCount),
	)
	if err := inst.c.Cleanup(ctx); err != nil {
		m.log.Warn("cleanup during refresh failed", zap.String("collector", id), zap.Error(err))
	}
	if err := inst.c.Initialize(ctx, inst.cc); err != nil {
		return eris.Wrapf(err, "lifecycle: refresh %s", id)
	}
	now := m.now()
	inst.useCount = 0
	inst.errorCount = 0
	inst.health = Healthy
	inst.createdAt = now
	inst.lastUsedAt = now
	m.metrics.IncRefresh(id, reason)
	return nil
}

// ReportError counts a failure. At MaxErrors the instance turns unhealthy
// and the next GetInstance refreshes it.
func (m *Manager) ReportError(id string, err error) {
	inst, lerr := m.lookup(id)
	if lerr != nil {
		return
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.errorCount++
	if inst.errorCount >= m.cfg.MaxErrors {
		inst.health = Unhealthy
	}
	m.metrics.IncError(id)
	m.log.Debug("collector error reported",
		zap.String("collector", id),
		zap.Int("errors", inst.errorCount),
		zap.Error(err),
	)
}

// ReportSuccess clears the error count.
func (m *Manager) ReportSuccess(id string) {
	inst, err := m.lookup(id)
	if err != nil {
		return
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.errorCount = 0
	inst.health = Healthy
}

// Unregister cleans up and forgets id.
func (m *Manager) Unregister(ctx context.Context, id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	delete(m.instances, id)
	m.metrics.SetInstances(len(m.instances))
	m.mu.Unlock()
	if !ok {
		return eris.Wrapf(ErrNotRegistered, "lifecycle: %s", id)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.c.Cleanup(ctx)
}

// Instances lists tracked instances ordered by id.
func (m *Manager) Instances() []InstanceInfo {
	m.mu.Lock()
	all := make([]*instance, 0, len(m.instances))
	for _, inst := range m.instances {
		all = append(all, inst)
	}
	m.mu.Unlock()

	out := make([]InstanceInfo, 0, len(all))
	for _, inst := range all {
		inst.mu.Lock()
		info := inst.c.Info()
		out = append(out, InstanceInfo{
			ID:         info.ID,
			Name:       info.Name,
			Strategy:   info.Strategy,
			CreatedAt:  inst.createdAt,
			LastUsedAt: inst.lastUsedAt,
			UseCount:   inst.useCount,
			ErrorCount: inst.errorCount,
			Health:     inst.health,
			Status:     inst.c.Status(),
		})
		inst.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) lookup(id string) (*instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotRegistered, "lifecycle: %s", id)
	}
	return inst, nil
}
