package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Limiter. Counters live in a single map guarded by one
// mutex, so check-and-increment across tiers is atomic for an identity. Use the
// Redis limiter when more than one process serves traffic.
type Memory struct {
	mu       sync.Mutex
	now      func() time.Time
	tiers    []Tier
	counters map[string][]window
}

type window struct {
	count int
	start time.Time
}

// NewMemory creates a Memory limiter enforcing tiers. If now is nil, time.Now
// is used.
func NewMemory(tiers []Tier, now func() time.Time) (*Memory, error) {
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:      now,
		tiers:    append([]Tier(nil), tiers...),
		counters: make(map[string][]window),
	}, nil
}

// Admit implements Limiter. A denied request leaves all counters untouched.
func (m *Memory) Admit(_ context.Context, identity string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.counters[identity]
	next := make([]window, len(m.tiers))
	for i, t := range m.tiers {
		if i < len(current) && !m.expired(current[i], t, now) {
			next[i] = current[i]
		} else {
			next[i] = window{start: now}
		}
	}

	for i, t := range m.tiers {
		if next[i].count >= t.Limit {
			return Decision{
				Allowed:   false,
				Tier:      t,
				Limit:     t.Limit,
				Remaining: 0,
				ResetAt:   next[i].start.Add(t.Window),
			}, nil
		}
	}

	decision := Decision{Allowed: true, Remaining: -1}
	for i, t := range m.tiers {
		next[i].count++
		remaining := t.Limit - next[i].count
		if decision.Remaining < 0 || remaining < decision.Remaining {
			decision.Tier = t
			decision.Limit = t.Limit
			decision.Remaining = remaining
			decision.ResetAt = next[i].start.Add(t.Window)
		}
	}
	m.counters[identity] = next
	return decision, nil
}

func (m *Memory) expired(w window, t Tier, now time.Time) bool {
	return w.start.IsZero() || now.Sub(w.start) >= t.Window
}

// Sweep drops identities whose windows have all rolled over and returns how
// many were removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for identity, windows := range m.counters {
		live := false
		for i, t := range m.tiers {
			if !m.expired(windows[i], t, now) {
				live = true
				break
			}
		}
		if !live {
			delete(m.counters, identity)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked identities.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

var _ Limiter = (*Memory)(nil)
