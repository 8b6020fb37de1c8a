package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript checks every tier first and only increments when all of them have
// budget left. KEYS are the per-tier counters, ARGV holds limit/window(ms) pairs.
//
// Denied:   {0, tierIndex, count, pttl}
// Admitted: {1, count1, pttl1, count2, pttl2, ...}
var admitScript = redis.NewScript(`
local n = #KEYS
for i = 1, n do
  local limit = tonumber(ARGV[(i - 1) * 2 + 1])
  local current = tonumber(redis.call("GET", KEYS[i]) or "0")
  if current >= limit then
    return {0, i, current, redis.call("PTTL", KEYS[i])}
  end
end
local out = {1}
for i = 1, n do
  local window = tonumber(ARGV[(i - 1) * 2 + 2])
  local current = redis.call("INCR", KEYS[i])
  if current == 1 then
    redis.call("PEXPIRE", KEYS[i], window)
  end
  table.insert(out, current)
  table.insert(out, redis.call("PTTL", KEYS[i]))
end
return out
`)

var errUnexpectedReply = errors.New("unexpected redis rate limit response")

// Redis is a Limiter whose counters live in Redis, shared by every process
// pointing at the same server.
type Redis struct {
	client redis.UniversalClient
	tiers  []Tier
	now    func() time.Time
}

// NewRedis creates a Redis limiter. If now is nil, time.Now is used.
func NewRedis(client redis.UniversalClient, tiers []Tier, now func() time.Time) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Redis{
		client: client,
		tiers:  append([]Tier(nil), tiers...),
		now:    now,
	}, nil
}

// Admit implements Limiter.
func (r *Redis) Admit(ctx context.Context, identity string) (Decision, error) {
	keys := make([]string, len(r.tiers))
	args := make([]any, 0, len(r.tiers)*2)
	for i, t := range r.tiers {
		keys[i] = FormatKey(identity, t)
		args = append(args, t.Limit, t.Window.Milliseconds())
	}

	result, err := admitScript.Run(ctx, r.client, keys, args...).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(result) == 0 {
		return Decision{}, errUnexpectedReply
	}

	now := r.now()
	if result[0] == 0 {
		if len(result) < 4 {
			return Decision{}, errUnexpectedReply
		}
		idx := int(result[1]) - 1
		if idx < 0 || idx >= len(r.tiers) {
			return Decision{}, fmt.Errorf("%w: tier index %d", errUnexpectedReply, result[1])
		}
		t := r.tiers[idx]
		return Decision{
			Allowed:   false,
			Tier:      t,
			Limit:     t.Limit,
			Remaining: 0,
			ResetAt:   resetAt(now, result[3], t),
		}, nil
	}

	if len(result) != 1+2*len(r.tiers) {
		return Decision{}, fmt.Errorf("%w: got %d values", errUnexpectedReply, len(result))
	}
	decision := Decision{Allowed: true, Remaining: -1}
	for i, t := range r.tiers {
		count := result[1+2*i]
		remaining := t.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		if decision.Remaining < 0 || remaining < decision.Remaining {
			decision.Tier = t
			decision.Limit = t.Limit
			decision.Remaining = remaining
			decision.ResetAt = resetAt(now, result[2+2*i], t)
		}
	}
	return decision, nil
}

func resetAt(now time.Time, pttl int64, t Tier) time.Time {
	if pttl > 0 {
		return now.Add(time.Duration(pttl) * time.Millisecond)
	}
	return now.Add(t.Window)
}

var _ Limiter = (*Redis)(nil)
