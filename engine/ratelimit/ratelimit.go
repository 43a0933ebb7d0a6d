// Package ratelimit bounds the rate at which the refinement engine invokes
// action handlers that call out to a rate-limited external resource (for
// example, a scheduling domain's action handler that calls an external CP
// solver). It wraps a registry.ActionHandler with an AIMD-style adaptive
// token bucket: callers block until capacity is available, and the
// effective budget contracts on observed rate-limit errors and recovers
// gradually on success.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"goa.design/pulse/rmap"

	"github.com/latticeplan/htn/planerrors"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

// ErrRateLimited is the sentinel an action handler's error should wrap (via
// errors.Is) to signal the external resource itself rejected the call for
// being over its rate limit, triggering the limiter's backoff.
var ErrRateLimited = errors.New("ratelimit: external resource reported rate limited")

// CostFunc estimates the token cost of invoking an action, analogous to the
// teacher's per-request token estimate. The default cost is 1 per action
// (a pure request-rate limiter); domains whose actions vary widely in
// external cost can supply their own.
type CostFunc func(actionName string, args []string) int

// AdaptiveLimiter is a process-local (or, with a cluster map, fleet-wide)
// adaptive token bucket limiting action-handler invocations per minute.
type AdaptiveLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter
	cost    CostFunc

	currentOpsPerMin float64
	minOpsPerMin     float64
	maxOpsPerMin     float64
	recoveryRate     float64

	onBackoff func(newOpsPerMin float64)
	onProbe   func(newOpsPerMin float64)
}

// New constructs a process-local AdaptiveLimiter budgeted at initialOpsPerMin
// operations per minute, growing back no higher than maxOpsPerMin after a
// backoff. A nil cost defaults every action to cost 1.
func New(initialOpsPerMin, maxOpsPerMin float64, cost CostFunc) *AdaptiveLimiter {
	if initialOpsPerMin <= 0 {
		initialOpsPerMin = 600
	}
	if maxOpsPerMin <= 0 || maxOpsPerMin < initialOpsPerMin {
		maxOpsPerMin = initialOpsPerMin
	}
	minOpsPerMin := initialOpsPerMin * 0.1
	if minOpsPerMin < 1 {
		minOpsPerMin = 1
	}
	recoveryRate := initialOpsPerMin * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	if cost == nil {
		cost = func(string, []string) int { return 1 }
	}
	return &AdaptiveLimiter{
		limiter:          rate.NewLimiter(rate.Limit(initialOpsPerMin/60.0), int(initialOpsPerMin)),
		cost:             cost,
		currentOpsPerMin: initialOpsPerMin,
		minOpsPerMin:     minOpsPerMin,
		maxOpsPerMin:     maxOpsPerMin,
		recoveryRate:     recoveryRate,
	}
}

// Wrap returns an ActionHandler that blocks on l's token bucket before
// delegating to h, then adjusts l's budget based on whether h returned
// ErrRateLimited.
func (l *AdaptiveLimiter) Wrap(actionName string, h registry.ActionHandler) registry.ActionHandler {
	return func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		if err := l.wait(ctx, actionName, args); err != nil {
			return registry.ActionResult{}, planerrors.Wrap(planerrors.InfrastructureFailure, "ratelimit: wait for capacity", err)
		}
		result, err := h(ctx, s, args)
		l.observe(err)
		return result, err
	}
}

func (l *AdaptiveLimiter) wait(ctx context.Context, actionName string, args []string) error {
	n := l.cost(actionName, args)
	if n < 1 {
		n = 1
	}
	return l.limiter.WaitN(ctx, n)
}

func (l *AdaptiveLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if errors.Is(err, ErrRateLimited) {
		l.backoff()
	}
}

func (l *AdaptiveLimiter) backoff() {
	l.mu.Lock()
	newRate := l.currentOpsPerMin * 0.5
	if newRate < l.minOpsPerMin {
		newRate = l.minOpsPerMin
	}
	if newRate == l.currentOpsPerMin {
		l.mu.Unlock()
		return
	}
	l.currentOpsPerMin = newRate
	l.limiter.SetLimit(rate.Limit(newRate / 60.0))
	l.limiter.SetBurst(int(newRate))
	cb := l.onBackoff
	l.mu.Unlock()
	if cb != nil {
		cb(newRate)
	}
}

func (l *AdaptiveLimiter) probe() {
	l.mu.Lock()
	newRate := l.currentOpsPerMin + l.recoveryRate
	if newRate > l.maxOpsPerMin {
		newRate = l.maxOpsPerMin
	}
	if newRate == l.currentOpsPerMin {
		l.mu.Unlock()
		return
	}
	l.currentOpsPerMin = newRate
	l.limiter.SetLimit(rate.Limit(newRate / 60.0))
	l.limiter.SetBurst(int(newRate))
	cb := l.onProbe
	l.mu.Unlock()
	if cb != nil {
		cb(newRate)
	}
}

// CurrentOpsPerMin returns the limiter's current effective budget, for
// diagnostics and tests.
func (l *AdaptiveLimiter) CurrentOpsPerMin() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentOpsPerMin
}

func (l *AdaptiveLimiter) replace(opsPerMin float64) {
	l.mu.Lock()
	if opsPerMin < l.minOpsPerMin {
		opsPerMin = l.minOpsPerMin
	}
	if opsPerMin > l.maxOpsPerMin {
		opsPerMin = l.maxOpsPerMin
	}
	if opsPerMin == l.currentOpsPerMin {
		l.mu.Unlock()
		return
	}
	l.currentOpsPerMin = opsPerMin
	l.limiter.SetLimit(rate.Limit(opsPerMin / 60.0))
	l.limiter.SetBurst(int(opsPerMin))
	l.mu.Unlock()
}

func (l *AdaptiveLimiter) setClusterCallbacks(onBackoff, onProbe func(newOpsPerMin float64)) {
	l.mu.Lock()
	l.onBackoff = onBackoff
	l.onProbe = onProbe
	l.mu.Unlock()
}

// ClusterMap is the minimal replicated-map contract a fleet-wide limiter
// coordinates budget through; satisfied directly by *rmap.Map.
type ClusterMap interface {
	Get(key string) (string, bool)
	SetIfNotExists(ctx context.Context, key, value string) (bool, error)
	TestAndSet(ctx context.Context, key, test, value string) (string, error)
	Subscribe() <-chan rmap.EventKind
}

// NewClusterAware constructs an AdaptiveLimiter whose effective budget is
// coordinated across a fleet through m (typically a *rmap.Map) under key:
// every node backs off or probes the shared counter rather than its own,
// and watches m for changes made by other nodes. If m is nil or key is
// empty, it behaves exactly like New.
func NewClusterAware(ctx context.Context, m ClusterMap, key string, initialOpsPerMin, maxOpsPerMin float64, cost CostFunc) *AdaptiveLimiter {
	if m == nil || key == "" {
		return New(initialOpsPerMin, maxOpsPerMin, cost)
	}

	if _, ok := m.Get(key); !ok {
		if _, err := m.SetIfNotExists(ctx, key, strconv.Itoa(int(initialOpsPerMin))); err != nil {
			return New(initialOpsPerMin, maxOpsPerMin, cost)
		}
	}

	shared := initialOpsPerMin
	if cur, ok := m.Get(key); ok {
		if v, err := strconv.ParseFloat(cur, 64); err == nil && v > 0 {
			shared = v
		}
	}

	l := New(shared, maxOpsPerMin, cost)
	floor := l.minOpsPerMin
	ceiling := l.maxOpsPerMin
	step := l.recoveryRate

	l.setClusterCallbacks(
		func(float64) { go globalBackoff(context.Background(), m, key, floor) },
		func(float64) { go globalProbe(context.Background(), m, key, step, ceiling) },
	)

	ch := m.Subscribe()
	go func() {
		for range ch {
			cur, ok := m.Get(key)
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(cur, 64)
			if err != nil || v <= 0 {
				continue
			}
			l.replace(v)
		}
	}()

	return l
}

func globalBackoff(ctx context.Context, m ClusterMap, key string, floor float64) {
	casLoop(ctx, m, key, func(cur float64) float64 {
		next := cur * 0.5
		if next < floor {
			next = floor
		}
		return next
	})
}

func globalProbe(ctx context.Context, m ClusterMap, key string, step, ceiling float64) {
	casLoop(ctx, m, key, func(cur float64) float64 {
		if cur >= ceiling {
			return cur
		}
		next := cur + step
		if next > ceiling {
			next = ceiling
		}
		return next
	})
}

// casLoop retries a compare-and-swap update of m[key] up to three times,
// the same bound the teacher's globalBackoff/globalProbe use to avoid an
// unbounded contention loop under concurrent writers.
func casLoop(ctx context.Context, m ClusterMap, key string, next func(cur float64) float64) {
	const maxAttempts = 3
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for i := 0; i < maxAttempts; i++ {
		curStr, ok := m.Get(key)
		if !ok {
			return
		}
		cur, err := strconv.ParseFloat(curStr, 64)
		if err != nil || cur <= 0 {
			return
		}
		updated := next(cur)
		if updated == cur {
			return
		}
		nextStr := strconv.Itoa(int(updated))
		prev, err := m.TestAndSet(ctx, key, curStr, nextStr)
		if err != nil {
			return
		}
		if prev == curStr {
			return
		}
	}
}
