// Package ratelimit implements a fixed-window request counter used to guard
// mutation endpoints, keyed by (prefix, user, operation).
package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var NowFunc = time.Now // mockable

type (
	// Config describes one limiter policy: at most MaxRequests admissions
	// per Window for a given key.
	Config struct {
		MaxRequests int
		Window      time.Duration
		KeyPrefix   string
	}

	// Result is the outcome of a single admission check. Denial is a normal
	// outcome, not an error; an error from a Limiter means the check could
	// not be performed at all and the caller decides fail-open vs fail-closed.
	Result struct {
		Allowed    bool
		Remaining  int
		ResetAt    time.Time
		RetryAfter int // seconds until the window resets; only set when denied
	}

	// Limiter admits or denies an operation for a given user.
	Limiter interface {
		Check(ctx context.Context, userID, operation string, cfg Config) (Result, error)
	}

	entry struct {
		count   int
		resetAt time.Time
	}

	// Store is an in-memory Limiter. It is safe for concurrent use; the
	// whole check runs under one lock so the admission guarantee holds
	// under parallel calls. Counters do not survive a process restart and
	// are per-instance in a multi-instance deployment (use RedisStore there).
	Store struct {
		mu      sync.Mutex
		entries map[string]*entry
	}
)

// Validate reports malformed policies. Policies are validated once at startup;
// Check itself treats its Config as trusted.
func (c Config) Validate() error {
	if c.MaxRequests < 1 {
		return errors.Errorf("ratelimit: maxRequests must be >= 1, got %d", c.MaxRequests)
	}
	if c.Window < time.Millisecond {
		return errors.Errorf("ratelimit: window must be >= 1ms, got %s", c.Window)
	}
	if c.KeyPrefix == "" {
		return errors.New("ratelimit: keyPrefix is required")
	}
	return nil
}

func buildKey(prefix, userID, operation string) string {
	return strings.Join([]string{prefix, userID, operation}, ":")
}

func retryAfterSecs(resetAt, now time.Time) int {
	return int(math.Ceil(resetAt.Sub(now).Seconds()))
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

var _ Limiter = (*Store)(nil)

// Check admits or denies one request for (userID, operation) under cfg.
// An entry is created lazily on first check; a check past the entry's
// resetAt starts a fresh window. The admitting increment only happens when
// count < MaxRequests, so count never exceeds MaxRequests.
func (s *Store) Check(_ context.Context, userID, operation string, cfg Config) (Result, error) {
	key := buildKey(cfg.KeyPrefix, userID, operation)
	now := NowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 0, resetAt: now.Add(cfg.Window)}
		s.entries[key] = e
	}

	if e.count >= cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    e.resetAt,
			RetryAfter: retryAfterSecs(e.resetAt, now),
		}, nil
	}

	e.count++
	return Result{
		Allowed:   true,
		Remaining: cfg.MaxRequests - e.count,
		ResetAt:   e.resetAt,
	}, nil
}

// Cleanup removes all entries whose window has expired.
func (s *Store) Cleanup() {
	now := NowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if now.After(e.resetAt) {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor runs Cleanup on a recurring ticker to bound memory growth.
// It returns immediately; stop it by cancelling the context.
func (s *Store) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
