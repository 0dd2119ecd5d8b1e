package security

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces sliding-window tool-call budgets per key. The
// orchestrator consults it twice per call: once keyed by actor and once by
// actor/tool. A limit of 0 means unlimited.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perHour   int
	events    map[string][]time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter with the given per-minute and per-hour
// budgets.
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		events:    make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Allow checks both windows for key and, when admitted, records the event.
// Denied calls are not recorded, so a denied actor does not dig itself
// deeper.
func (r *RateLimiter) Allow(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	kept := r.events[key][:0]
	for _, t := range r.events[key] {
		if now.Sub(t) <= time.Hour {
			kept = append(kept, t)
		}
	}
	r.events[key] = kept

	if r.perHour > 0 && len(kept) >= r.perHour {
		return fmt.Errorf("%w: %s exceeded %d calls per hour", ErrRateLimited, key, r.perHour)
	}
	if r.perMinute > 0 {
		recent := 0
		for _, t := range kept {
			if now.Sub(t) <= time.Minute {
				recent++
			}
		}
		if recent >= r.perMinute {
			return fmt.Errorf("%w: %s exceeded %d calls per minute", ErrRateLimited, key, r.perMinute)
		}
	}

	r.events[key] = append(kept, now)
	return nil
}

// AllowCall applies both the per-actor and per-actor/tool budgets. If the
// per-tool check denies after the actor check admitted, the actor event is
// rolled back so the denied call costs nothing.
func (r *RateLimiter) AllowCall(actor, tool string) error {
	if err := r.Allow(actor); err != nil {
		return err
	}
	if err := r.Allow(actor + "/" + tool); err != nil {
		r.rollback(actor)
		return err
	}
	return nil
}

func (r *RateLimiter) rollback(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.events[key]
	if len(evs) > 0 {
		r.events[key] = evs[:len(evs)-1]
	}
}
