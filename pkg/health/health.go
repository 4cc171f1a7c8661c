// Package health serves liveness and readiness checks.
//
// Every registered checker runs in its own goroutine. A checker only flips to
// unhealthy after failureThreshold consecutive failures and back after
// successThreshold consecutive successes, so a single slow ping does not
// take the pod out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind tells liveness checks from readiness checks.
type Kind string

const (
	Liveness  Kind = "liveness"
	Readiness Kind = "readiness"
)

// CheckOption tunes a single checker.
type CheckOption func(*checker)

// WithThresholds overrides the default 3 failures / 1 success thresholds.
func WithThresholds(failures, successes int) CheckOption {
	return func(p *checker) {
		p.failureThreshold = max(failures, 1)
		p.successThreshold = max(successes, 1)
	}
}

// checker is one registered check. run is only called from the checker's own
// goroutine; HTTP handlers read healthy and lastErr.
type checker struct {
	kind             Kind
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails     int
	successes int
}

func (p *checker) failure() string {
	if errp := p.lastErr.Load(); errp != nil && *errp != nil {
		return (*errp).Error()
	}
	return "check is unhealthy"
}

func (p *checker) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	was := p.healthy.Load()
	if err != nil {
		p.successes = 0
		p.fails++
		if p.fails >= p.failureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.fails = 0
		p.successes++
		if p.successes >= p.successThreshold {
			p.healthy.Store(true)
		}
	}

	if now := p.healthy.Load(); now != was {
		lg := zctx.From(ctx).With(
			zap.String("check", p.name),
			zap.String("kind", string(p.kind)),
		)
		if now {
			lg.Info("Health check recovered")
		} else {
			lg.Warn("Health check failing", zap.Error(err))
		}
	}
}

// Health holds the registered checkers and the manual readiness switch.
type Health struct {
	ready atomic.Bool

	mu       sync.RWMutex
	checkers []*checker
	cancel   context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a checker of the given kind. Checkers start healthy.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, check CheckFunc, opts ...CheckOption) {
	p := &checker{
		kind:             kind,
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.healthy.Store(true)

	h.mu.Lock()
	h.checkers = append(h.checkers, p)
	h.mu.Unlock()
}

// AddLivenessCheck registers a checker deciding whether the process should be
// restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc, opts ...CheckOption) {
	h.Add(Liveness, name, timeout, check, opts...)
}

// AddReadinessCheck registers a checker deciding whether the process should
// receive traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc, opts ...CheckOption) {
	h.Add(Readiness, name, timeout, check, opts...)
}

// Start runs every registered checker each interval until Stop or ctx is
// done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checkers := slices.Clone(h.checkers)
	h.mu.Unlock()

	for _, p := range checkers {
		go loop(ctx, p, interval)
	}
}

func loop(ctx context.Context, p *checker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Stop halts the checker goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness switch.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the switch is on and every readiness checker passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// failures maps the name of each unhealthy checker of kind to its last error.
func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, p := range h.checkers {
		if p.kind == kind && !p.healthy.Load() {
			out[p.name] = p.failure()
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// writeStatus answers 200 {"status":"ok"} or 503 with the failing checks.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	status := http.StatusOK
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
