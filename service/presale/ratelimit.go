package presale

import (
	"sync"
	"time"
)

// RateLimiter tracks purchase requests per buyer address over a rolling time
// window, and additionally guards against concurrent attempts: a new attempt
// for an address is refused while a previous one is unresolved.
//
// It is an explicit component owned by the engine rather than ambient module
// state, so tests construct their own instance with a fake clock and never
// share global maps.
type RateLimiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	requests    map[string][]time.Time
	inFlight    map[string]struct{}

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per address within
// the rolling window.
func NewRateLimiter(window time.Duration, maxRequests int) *RateLimiter {
	return &RateLimiter{
		window:      window,
		maxRequests: maxRequests,
		requests:    make(map[string][]time.Time),
		inFlight:    make(map[string]struct{}),
		now:         time.Now,
	}
}

// Allow records one request for the address if the rolling window has
// capacity, without taking the in-flight guard. Used by surfaces that only
// prepare a transaction and hand it off.
func (rl *RateLimiter) Allow(address string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.recordLocked(address)
}

// Acquire records one request and takes the in-flight guard for the address.
// Callers must Release when the attempt resolves, whatever the outcome.
func (rl *RateLimiter) Acquire(address string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if _, busy := rl.inFlight[address]; busy {
		return &RateLimitError{Address: address, InFlight: true}
	}
	if err := rl.recordLocked(address); err != nil {
		return err
	}
	rl.inFlight[address] = struct{}{}
	return nil
}

// Release clears the in-flight guard for the address.
func (rl *RateLimiter) Release(address string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.inFlight, address)
}

// recordLocked prunes expired timestamps and records a new request.
// Callers must hold rl.mu.
func (rl *RateLimiter) recordLocked(address string) error {
	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.requests[address][:0]
	for _, t := range rl.requests[address] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.maxRequests {
		rl.requests[address] = recent
		oldest := recent[0]
		return &RateLimitError{
			Address:    address,
			RetryAfter: oldest.Add(rl.window).Sub(now),
		}
	}

	rl.requests[address] = append(recent, now)
	return nil
}
