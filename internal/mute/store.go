// Package mute provides Redis-backed mute enforcement so that every stream
// server instance agrees on a viewer's warning count and mute status. State
// is stored per (stream, viewer) pair:
//
//	Key:   mute:<stream>:<viewer>   Value: <reason>   TTL: mute cooldown
//	Key:   warn:<stream>:<viewer>   Value: <count>    TTL: warning window
//
// TTL expiry implements the lazy mute cooldown; no background timer is
// needed and IsMuted can never report an expired mute.
package mute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MutePrefix is the Redis key prefix for active mutes.
	MutePrefix = "mute:"

	// WarnPrefix is the Redis key prefix for warning counters.
	WarnPrefix = "warn:"

	// Cooldown is how long a mute lasts after the third strike.
	Cooldown = 10 * time.Minute

	// WarnWindow is how long a warning counter lives without new
	// violations before it resets to zero.
	WarnWindow = 1 * time.Hour

	// Strikes is the violation count that triggers a mute.
	Strikes = 3
)

// Store manages warning counters and mutes in Redis.
type Store struct {
	rdb             *redis.Client
	violationScript *redis.Script
}

// NewStore creates a mute store using the provided Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{
		rdb:             rdb,
		violationScript: redis.NewScript(recordViolationLua),
	}
}

// IsMuted checks whether a viewer is currently muted on a stream.
// Returns (muted, remainingSeconds, reason, error). Unlike rate limiting,
// muting is a safety control, so Redis errors propagate instead of failing
// open.
func (s *Store) IsMuted(ctx context.Context, streamID, viewerID string) (bool, int, string, error) {
	key := MutePrefix + streamID + ":" + viewerID

	reason, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", fmt.Errorf("mute: get: %w", err)
	}

	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		// The mute exists but the TTL read failed. Report muted with 0
		// remaining rather than swallowing the mute.
		return true, 0, reason, nil
	}

	remaining := 0
	if ttl > 0 {
		remaining = int(ttl.Seconds())
	}
	return true, remaining, reason, nil
}

// RecordViolation atomically increments the viewer's warning counter and,
// on the third strike, installs the mute and clears the counter in one
// round trip, so two edge servers cannot both read count=2 and lose a
// strike. It returns the new violation count; a count >= Strikes means the
// viewer was just muted.
func (s *Store) RecordViolation(ctx context.Context, streamID, viewerID, reason string) (int, error) {
	warnKey := WarnPrefix + streamID + ":" + viewerID
	muteKey := MutePrefix + streamID + ":" + viewerID

	count, err := s.violationScript.Run(ctx, s.rdb,
		[]string{warnKey, muteKey},
		reason,
		int(WarnWindow.Seconds()),
		Strikes,
		int(Cooldown.Seconds()),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("mute: record violation: %w", err)
	}
	return count, nil
}

// Warnings returns the viewer's current warning count (0 if none recorded
// or the window expired).
func (s *Store) Warnings(ctx context.Context, streamID, viewerID string) (int, error) {
	key := WarnPrefix + streamID + ":" + viewerID
	val, err := s.rdb.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mute: warnings: %w", err)
	}
	return val, nil
}

// Clear removes both the mute and the warning counter, used when a session
// restarts or a moderator lifts a mute.
func (s *Store) Clear(ctx context.Context, streamID, viewerID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, MutePrefix+streamID+":"+viewerID)
	pipe.Del(ctx, WarnPrefix+streamID+":"+viewerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mute: clear: %w", err)
	}
	return nil
}

// recordViolationLua increments the warning counter, sets its window TTL on
// first increment, and installs the mute at the strike threshold. The
// counter is deleted when the mute is installed so the viewer starts a
// fresh cycle after the cooldown.
const recordViolationLua = `
local warn_key = KEYS[1]
local mute_key = KEYS[2]
local reason = ARGV[1]
local warn_ttl = tonumber(ARGV[2])
local strikes = tonumber(ARGV[3])
local mute_ttl = tonumber(ARGV[4])

local count = redis.call('INCR', warn_key)
if count == 1 then
    redis.call('EXPIRE', warn_key, warn_ttl)
end

if count >= strikes then
    redis.call('SET', mute_key, reason, 'EX', mute_ttl)
    redis.call('DEL', warn_key)
end

return count
`
