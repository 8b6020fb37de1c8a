// Package ratelimit provides multi-tier fixed-window admission control keyed by
// client identity.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tier is one (window, ceiling) pair. A request is admitted only if every
// configured tier still has budget in its current window.
type Tier struct {
	Window time.Duration
	Limit  int
}

func (t Tier) String() string {
	return fmt.Sprintf("%d per %s", t.Limit, t.Window)
}

// Decision is the result of an admission check.
//
// On denial Tier/Limit/Remaining/ResetAt describe the first exhausted tier. On
// admission they describe the tier with the fewest remaining requests.
type Decision struct {
	Allowed   bool
	Tier      Tier
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or denies requests for an identity across all tiers at once.
type Limiter interface {
	Admit(ctx context.Context, identity string) (Decision, error)
}

var (
	ErrNoTiers     = errors.New("at least one rate limit tier is required")
	ErrInvalidTier = errors.New("invalid rate limit tier")
)

// DefaultTiers mirrors the production policy: 20 per minute, 20 per hour and
// 200 per day.
func DefaultTiers() []Tier {
	return []Tier{
		{Window: time.Minute, Limit: 20},
		{Window: time.Hour, Limit: 20},
		{Window: 24 * time.Hour, Limit: 200},
	}
}

// ParseTiers parses a comma separated list of "<limit>/<window>" entries,
// e.g. "20/1m,20/1h,200/24h".
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		limitStr, windowStr, ok := strings.Cut(part, "/")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTier, part)
		}
		limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTier, part, err)
		}
		window, err := time.ParseDuration(strings.TrimSpace(windowStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTier, part, err)
		}
		tiers = append(tiers, Tier{Window: window, Limit: limit})
	}
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return ErrNoTiers
	}
	seen := make(map[time.Duration]bool, len(tiers))
	for _, t := range tiers {
		if t.Limit <= 0 || t.Window < time.Second {
			return fmt.Errorf("%w: %s", ErrInvalidTier, t)
		}
		if seen[t.Window] {
			return fmt.Errorf("%w: duplicate window %s", ErrInvalidTier, t.Window)
		}
		seen[t.Window] = true
	}
	return nil
}

// keyPrefix is the base prefix for all persisted limiter keys.
const keyPrefix = "ratelimit:ip"

// FormatKey returns the storage key for identity in the given tier:
// "ratelimit:ip:{<identity>}:<windowSeconds>". The braces are a Redis Cluster
// hash tag, so every tier of one identity maps to the same slot.
func FormatKey(identity string, tier Tier) string {
	return fmt.Sprintf("%s:{%s}:%d", keyPrefix, identity, int64(tier.Window/time.Second))
}
