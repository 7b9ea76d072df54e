package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the backend cannot be reached or a call times out.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrProfileMiss is returned by ReadProfile when no usable cache entry exists.
var ErrProfileMiss = errors.New("profile cache miss")

// ErrInvalidRecord is returned when PutSession receives an incomplete record.
var ErrInvalidRecord = errors.New("invalid session record")

const (
	defaultPrefix    = "gs"
	defaultScanCount = 500

	// generationTTL outlives any single miss-load-write-back cycle by a wide
	// margin; an expired generation only ever rejects a write-back.
	generationTTL = 24 * time.Hour
)

// revokeAllScript reads the subject's active-token set and blacklists every
// member inside one script execution, so no token can join the set between the
// read and the blacklist writes. Each blacklist entry lives until the stored
// record's expiry plus grace, capped at the configured maximum.
const revokeAllScript = `
local session_key = KEYS[1]
local tokens_key = KEYS[2]
local profile_key = KEYS[3]
local generation_key = KEYS[4]
local blacklist_prefix = ARGV[1]
local max_ttl = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local grace_ms = tonumber(ARGV[4])
local generation_ttl_ms = tonumber(ARGV[5])

local members = redis.call("SMEMBERS", tokens_key)
for _, digest in ipairs(members) do
  local ttl = max_ttl
  local data = redis.call("HGET", session_key, digest)
  if data then
    local raw = string.match(data, '"expires_at":(%d+)')
    if raw then
      local remaining = tonumber(raw) * 1000 - now_ms + grace_ms
      if remaining < ttl then
        ttl = remaining
      end
    end
  end
  if ttl > 0 then
    redis.call("SET", blacklist_prefix .. digest, "1", "PX", ttl)
  end
end

redis.call("DEL", session_key, tokens_key, profile_key)
redis.call("INCR", generation_key)
redis.call("PEXPIRE", generation_key, generation_ttl_ms)
return #members
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// cacheProfileScript writes a profile snapshot only while the subject's
// invalidation generation still equals the one observed before the profile
// was loaded. A missing generation key reads as "0".
const cacheProfileScript = `
local current = redis.call("GET", KEYS[2])
if not current then
  current = "0"
end
if current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", tonumber(ARGV[3]))
return 1
`

var cacheProfileLua = redis.NewScript(cacheProfileScript)

// Config controls key namespacing and per-call bounds of a [Store].
type Config struct {
	// Prefix namespaces every key, e.g. "gs" yields "gs:session:{subject}".
	Prefix string
	// OpTimeout bounds every backend call. Zero disables the bound.
	OpTimeout time.Duration
	// BlacklistGrace is added to a token's remaining lifetime when computing
	// blacklist TTLs during RevokeAll, covering parser leeway.
	BlacklistGrace time.Duration
	// ScanCount is the SCAN COUNT hint used by Stats and SweepExpired.
	ScanCount int64
}

// Store is the Redis-backed session store. It owns four logical structures:
// the per-subject active-token set, the per-subject session record hash, the
// per-subject profile cache entry and the global blacklist. A per-subject
// invalidation generation is bumped by every profile cache drop so that a
// read-through write-back racing an invalidation is discarded.
//
// Every mutation that touches more than one key is issued as a MULTI/EXEC
// transaction or a Lua script, so concurrent readers never observe a partial
// invalidation.
type Store struct {
	redis          redis.UniversalClient
	prefix         string
	opTimeout      time.Duration
	blacklistGrace time.Duration
	scanCount      int64
}

// NewStore creates a session [Store] backed by the given Redis client.
//
// The client must address a single logical Redis node (standalone, sentinel
// or a failover client). Transactions and scripts here span keys from several
// subjects and the global blacklist, which Redis Cluster rejects with
// CROSSSLOT.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	scanCount := cfg.ScanCount
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &Store{
		redis:          client,
		prefix:         prefix,
		opTimeout:      cfg.OpTimeout,
		blacklistGrace: cfg.BlacklistGrace,
		scanCount:      scanCount,
	}
}

func (s *Store) sessionKey(subjectID string) string {
	return s.prefix + ":session:" + subjectID
}

func (s *Store) tokensKey(subjectID string) string {
	return s.prefix + ":tokens:" + subjectID
}

func (s *Store) profileKey(subjectID string) string {
	return s.prefix + ":profile:" + subjectID
}

func (s *Store) generationKey(subjectID string) string {
	return s.prefix + ":profile_gen:" + subjectID
}

func (s *Store) blacklistPrefix() string {
	return s.prefix + ":blacklist:"
}

func (s *Store) blacklistKey(tokenHash string) string {
	return s.blacklistPrefix() + tokenHash
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

// PutSession writes the session record, adds the token digest to the subject's
// active-token set (refreshing the set TTL) and, when profile is non-nil,
// caches the profile snapshot with its own TTL. All writes commit together.
//
//	Performance: 1 MULTI/EXEC round-trip.
func (s *Store) PutSession(ctx context.Context, rec Record, ttl time.Duration, profile *Profile, profileTTL time.Duration) error {
	if rec.SubjectID == "" || rec.TokenHash == "" || ttl <= 0 {
		return ErrInvalidRecord
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	var profileData []byte
	if profile != nil && profileTTL > 0 {
		profileData, err = encodeProfile(*profile)
		if err != nil {
			return err
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sessionKey := s.sessionKey(rec.SubjectID)
	tokensKey := s.tokensKey(rec.SubjectID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey, rec.TokenHash, data)
		pipe.Expire(ctx, sessionKey, ttl)
		pipe.SAdd(ctx, tokensKey, rec.TokenHash)
		pipe.Expire(ctx, tokensKey, ttl)
		if profileData != nil {
			pipe.Set(ctx, s.profileKey(rec.SubjectID), profileData, profileTTL)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

// IsActive reports whether token may still be honored for subjectID. Both
// lookups are read from one transactional snapshot; a blacklist hit decides
// first, then set membership. Any backend failure is returned as an error and
// callers must treat it as not active.
//
//	Performance: 1 MULTI/EXEC round-trip.
func (s *Store) IsActive(ctx context.Context, subjectID, token string) (bool, error) {
	digest := TokenHash(token)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		blacklisted *redis.IntCmd
		member      *redis.BoolCmd
	)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		blacklisted = pipe.Exists(ctx, s.blacklistKey(digest))
		member = pipe.SIsMember(ctx, s.tokensKey(subjectID), digest)
		return nil
	})
	if err != nil {
		return false, unavailable(err)
	}

	if blacklisted.Val() > 0 {
		return false, nil
	}
	return member.Val(), nil
}

// RevokeOne deletes the token's session record, removes it from the active
// set, blacklists it for ttl and drops the subject's profile cache entry in
// one transaction. The drop bumps the subject's invalidation generation. A non-positive ttl skips the blacklist write (the token has
// already expired). Calling RevokeOne repeatedly is safe.
//
//	Performance: 1 MULTI/EXEC round-trip.
func (s *Store) RevokeOne(ctx context.Context, subjectID, token string, ttl time.Duration) error {
	digest := TokenHash(token)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.sessionKey(subjectID), digest)
		pipe.SRem(ctx, s.tokensKey(subjectID), digest)
		if ttl > 0 {
			pipe.Set(ctx, s.blacklistKey(digest), "1", ttl)
		}
		pipe.Del(ctx, s.profileKey(subjectID))
		pipe.Incr(ctx, s.generationKey(subjectID))
		pipe.Expire(ctx, s.generationKey(subjectID), generationTTL)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

// RevokeAll blacklists every member of the subject's active-token set and
// deletes the session hash, the set and the profile cache entry. maxTTL caps
// each blacklist entry and is used as-is when a member has no readable record.
// It returns the number of tokens that were active.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) RevokeAll(ctx context.Context, subjectID string, maxTTL time.Duration) (int, error) {
	if maxTTL <= 0 {
		return 0, errors.New("revoke all requires a positive blacklist ttl")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.sessionKey(subjectID), s.tokensKey(subjectID), s.profileKey(subjectID), s.generationKey(subjectID)},
		s.blacklistPrefix(),
		maxTTL.Milliseconds(),
		time.Now().UnixMilli(),
		s.blacklistGrace.Milliseconds(),
		generationTTL.Milliseconds(),
	).Int()
	if err != nil {
		return 0, unavailable(err)
	}

	return n, nil
}

// CacheProfile stores a profile snapshot for ttl unconditionally. Read-through
// callers that loaded the profile after a cache miss use [Store.CacheProfileAt].
func (s *Store) CacheProfile(ctx context.Context, profile Profile, ttl time.Duration) error {
	if profile.ID == "" || ttl <= 0 {
		return ErrInvalidRecord
	}
	data, err := encodeProfile(profile)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.profileKey(profile.ID), data, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// ReadProfile returns the cached profile snapshot. A missing or undecodable
// entry yields [ErrProfileMiss]; undecodable entries are removed.
func (s *Store) ReadProfile(ctx context.Context, subjectID string) (Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.profileKey(subjectID)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Profile{}, ErrProfileMiss
		}
		return Profile{}, unavailable(err)
	}

	profile, err := decodeProfile(data)
	if err != nil {
		_ = s.redis.Del(ctx, key).Err()
		return Profile{}, ErrProfileMiss
	}
	return profile, nil
}

// ProfileGeneration returns the subject's current invalidation generation.
// Read it before loading a profile from its source of truth and hand it to
// [Store.CacheProfileAt].
func (s *Store) ProfileGeneration(ctx context.Context, subjectID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	gen, err := s.redis.Get(ctx, s.generationKey(subjectID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	return gen, nil
}

// CacheProfileAt stores a profile snapshot for ttl only if no drop has
// happened since generation was read. It reports whether the snapshot was
// written.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) CacheProfileAt(ctx context.Context, profile Profile, ttl time.Duration, generation int64) (bool, error) {
	if profile.ID == "" || ttl <= 0 {
		return false, ErrInvalidRecord
	}
	data, err := encodeProfile(profile)
	if err != nil {
		return false, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	written, err := cacheProfileLua.Run(
		ctx,
		s.redis,
		[]string{s.profileKey(profile.ID), s.generationKey(profile.ID)},
		strconv.FormatInt(generation, 10),
		data,
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return written == 1, nil
}

// DropProfile deletes the subject's profile cache entry and bumps its
// invalidation generation in one transaction.
//
//	Performance: 1 MULTI/EXEC round-trip.
func (s *Store) DropProfile(ctx context.Context, subjectID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.profileKey(subjectID))
		pipe.Incr(ctx, s.generationKey(subjectID))
		pipe.Expire(ctx, s.generationKey(subjectID), generationTTL)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// ActiveSessions returns the unexpired session records of a subject, oldest first.
// It never mutates Redis state.
func (s *Store) ActiveSessions(ctx context.Context, subjectID string) ([]Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields, err := s.redis.HGetAll(ctx, s.sessionKey(subjectID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	now := time.Now().Unix()
	out := make([]Record, 0, len(fields))
	for _, raw := range fields {
		rec, err := decodeRecord([]byte(raw))
		if err != nil || rec.ExpiresAt <= now {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// SweepExpired scans all session hashes and removes records whose expires-at
// has passed, together with their active-set members. Undecodable records are
// removed too. It returns the number of records removed and is safe to run
// concurrently with every other operation.
//
// This is an admin/maintenance O(n) operation and must not be used in request hot paths.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	pattern := s.sessionKey("*")
	now := time.Now().Unix()

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.scan(ctx, cursor, pattern)
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			n, err := s.sweepKey(ctx, key, now)
			if err != nil {
				return removed, err
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

func (s *Store) sweepKey(ctx context.Context, key string, now int64) (int, error) {
	subjectID := strings.TrimPrefix(key, s.sessionKey(""))

	readCtx, cancel := s.withTimeout(ctx)
	fields, err := s.redis.HGetAll(readCtx, key).Result()
	cancel()
	if err != nil {
		return 0, unavailable(err)
	}

	stale := make([]string, 0)
	for digest, raw := range fields {
		rec, err := decodeRecord([]byte(raw))
		if err != nil || rec.ExpiresAt <= now {
			stale = append(stale, digest)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(stale))
	for i, digest := range stale {
		members[i] = digest
	}

	writeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(writeCtx, func(pipe redis.Pipeliner) error {
		deleted = pipe.HDel(writeCtx, key, stale...)
		pipe.SRem(writeCtx, s.tokensKey(subjectID), members...)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}

	return int(deleted.Val()), nil
}

// Stats returns point-in-time counts of session records, cached profiles and
// blacklisted tokens. Counts are best-effort under concurrent mutation.
//
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var out Stats

	sessions, err := s.countSessionRecords(ctx)
	if err != nil {
		return Stats{}, err
	}
	out.ActiveSessions = sessions

	out.CachedProfiles, err = s.countKeys(ctx, s.profileKey("*"))
	if err != nil {
		return Stats{}, err
	}

	out.BlacklistedTokens, err = s.countKeys(ctx, s.blacklistKey("*"))
	if err != nil {
		return Stats{}, err
	}

	return out, nil
}

func (s *Store) countKeys(ctx context.Context, pattern string) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.scan(ctx, cursor, pattern)
		if err != nil {
			return 0, err
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (s *Store) countSessionRecords(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.scan(ctx, cursor, s.sessionKey("*"))
		if err != nil {
			return 0, err
		}

		if len(keys) > 0 {
			callCtx, cancel := s.withTimeout(ctx)
			pipe := s.redis.Pipeline()
			cmds := make([]*redis.IntCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.HLen(callCtx, key)
			}
			_, err := pipe.Exec(callCtx)
			cancel()
			if err != nil {
				return 0, unavailable(err)
			}
			for _, cmd := range cmds {
				total += int(cmd.Val())
			}
		}

		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (s *Store) scan(ctx context.Context, cursor uint64, pattern string) ([]string, uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, next, err := s.redis.Scan(ctx, cursor, pattern, s.scanCount).Result()
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return keys, next, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}
