// Package resilience protects collectors from flaky or hostile hosts with
// retries and per-host circuit breakers.
package resilience

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of one host's breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen rejects a fetch to a host whose breaker is open.
var ErrCircuitOpen = eris.New("resilience: circuit open for host")

// CircuitConfig controls when a breaker opens and how it recovers.
type CircuitConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a trial request.
	ResetTimeout time.Duration
	// ShouldTrip decides which errors count as failures. Defaults to any
	// non-nil error.
	ShouldTrip func(err error) bool
	// OnStateChange observes transitions.
	OnStateChange func(host string, from, to CircuitState)
}

// DefaultCircuitConfig opens after five straight failures for 30s.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

// CircuitBreaker guards calls to a single host.
type CircuitBreaker struct {
	host string
	cfg  CircuitConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for host.
func NewCircuitBreaker(host string, cfg CircuitConfig) *CircuitBreaker {
	d := DefaultCircuitConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = d.ResetTimeout
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{host: host, cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal runs fn through cb and returns its value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

// State reports the current state. An open circuit whose timeout has passed
// reads as half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return nil
	}
	if cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
		cb.transition(CircuitHalfOpen)
		return nil
	}
	return eris.Wrapf(ErrCircuitOpen, "resilience: %s", cb.host)
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cfg.ShouldTrip(err) {
		cb.failures = 0
		if cb.state == CircuitHalfOpen {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	switch {
	case cb.state == CircuitHalfOpen:
		cb.transition(CircuitOpen)
	case cb.state == CircuitClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.host, from, to)
	}
}

// HostBreakers hands out one breaker per host.
type HostBreakers struct {
	cfg CircuitConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewHostBreakers creates an empty registry.
func NewHostBreakers(cfg CircuitConfig) *HostBreakers {
	return &HostBreakers{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// ForURL returns the breaker for rawURL's host, creating it on first use.
func (hb *HostBreakers) ForURL(rawURL string) *CircuitBreaker {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)

	hb.mu.Lock()
	defer hb.mu.Unlock()
	cb, ok := hb.breakers[host]
	if !ok {
		cb = NewCircuitBreaker(host, hb.cfg)
		hb.breakers[host] = cb
	}
	return cb
}

// States snapshots every known host's state.
func (hb *HostBreakers) States() map[string]CircuitState {
	hb.mu.Lock()
	breakers := make(map[string]*CircuitBreaker, len(hb.breakers))
	for h, cb := range hb.breakers {
		breakers[h] = cb
	}
	hb.mu.Unlock()

	out := make(map[string]CircuitState, len(breakers))
	for h, cb := range breakers {
		out[h] = cb.State()
	}
	return out
}
