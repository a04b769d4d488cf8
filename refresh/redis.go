package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRevoked  int64 = 2
	rotateStatusRotated  int64 = 3
)

// Revoked and expired records stay readable this long past their expiry
// before Redis reclaims the key.
const retentionWindow = 7 * 24 * time.Hour

const rotateScript = `
local revoked = redis.call("HGET", KEYS[1], "revoked")
if not revoked then
  return {0}
end
if revoked == "1" then
  return {2}
end
local expires_at = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
if not expires_at or expires_at <= tonumber(ARGV[1]) then
  return {1}
end
local username = redis.call("HGET", KEYS[1], "username")
redis.call("HSET", KEYS[1], "revoked", "1")
redis.call("HSET", KEYS[2],
  "id", ARGV[2],
  "username", username,
  "issued_at", ARGV[1],
  "expires_at", ARGV[3],
  "revoked", "0")
redis.call("PEXPIRE", KEYS[2], ARGV[4])
return {3, username}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "revoked", "1")
  return 1
end
return 0
`

var revokeLua = redis.NewScript(revokeScript)

// RedisStore is a Redis-backed [Store]. Each record is a hash keyed by the
// opaque token value; rotation runs as a single Lua compare-and-set so that
// concurrent callers racing on one token produce exactly one successor.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a [RedisStore] with the given key namespace prefix
// and token lifetime.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(value string) string {
	return s.prefix + ":rt:" + value
}

func (s *RedisStore) keyTTL() time.Duration {
	return s.ttl + retentionWindow
}

// Create implements [Store].
//
//	Performance: 2 Redis commands (HSET + PEXPIRE) in one transaction.
func (s *RedisStore) Create(ctx context.Context, username string, now time.Time) (*Token, error) {
	value, err := NewTokenValue()
	if err != nil {
		return nil, err
	}

	token := &Token{
		ID:        uuid.NewString(),
		Value:     value,
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	key := s.key(value)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", token.ID,
			"username", token.Username,
			"issued_at", token.IssuedAt.Unix(),
			"expires_at", token.ExpiresAt.Unix(),
			"revoked", "0",
		)
		pipe.PExpire(ctx, key, s.keyTTL())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return token, nil
}

// Rotate implements [Store].
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-set).
//	Security: CAS guarantees a single winner under concurrency; the revoked
//	record stays behind as the replay tripwire.
func (s *RedisStore) Rotate(ctx context.Context, value string, now time.Time) (*Token, error) {
	nextValue, err := NewTokenValue()
	if err != nil {
		return nil, err
	}

	next := &Token{
		ID:        uuid.NewString(),
		Value:     nextValue,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(value), s.key(nextValue)},
		now.Unix(),
		next.ID,
		next.ExpiresAt.Unix(),
		s.keyTTL().Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrTokenNotFound
	case rotateStatusExpired:
		return nil, ErrTokenExpired
	case rotateStatusRevoked:
		return nil, ErrTokenRevoked
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing rotated username", ErrUnavailable)
		}
		switch v := parts[1].(type) {
		case string:
			next.Username = v
		case []byte:
			next.Username = string(v)
		default:
			return nil, fmt.Errorf("%w: invalid rotated username", ErrUnavailable)
		}
		return next, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrUnavailable)
	}
}

// Revoke implements [Store].
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) Revoke(ctx context.Context, value string) error {
	if err := revokeLua.Run(ctx, s.redis, []string{s.key(value)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Valid implements [Store].
//
//	Performance: 1 Redis HGETALL, no mutation.
func (s *RedisStore) Valid(ctx context.Context, value string, now time.Time) (bool, error) {
	token, err := s.Get(ctx, value)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}
	return !token.Revoked && token.ExpiresAt.After(now), nil
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, value string) (*Token, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(value)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrTokenNotFound
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt issued_at", ErrUnavailable)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at", ErrUnavailable)
	}

	return &Token{
		ID:        fields["id"],
		Value:     value,
		Username:  fields["username"],
		IssuedAt:  time.Unix(issuedAt, 0),
		ExpiresAt: time.Unix(expiresAt, 0),
		Revoked:   fields["revoked"] == "1",
	}, nil
}
