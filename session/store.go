package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/phonetica/phonauth/internal"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrTokenConflict is returned when a token is already registered to another
// (user, device) pair.
var ErrTokenConflict = errors.New("session token already registered")

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

const (
	fieldToken  = "tok"
	fieldRecord = "rec"
)

const upsertScript = `
local owner = redis.call("GET", KEYS[2])
if owner and owner ~= KEYS[1] then
  return 0
end

local old = redis.call("HGET", KEYS[1], "tok")
if old and old ~= ARGV[1] then
  local old_index = ARGV[4] .. old
  if redis.call("GET", old_index) == KEYS[1] then
    redis.call("DEL", old_index)
  end
end

redis.call("HSET", KEYS[1], "tok", ARGV[1], "rec", ARGV[2])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
redis.call("SET", KEYS[2], KEYS[1])
redis.call("PEXPIREAT", KEYS[2], ARGV[3])
return 1
`

var upsertLua = redis.NewScript(upsertScript)

const deleteScript = `
local tok = redis.call("HGET", KEYS[1], "tok")
if not tok then
  return 0
end
local index = ARGV[1] .. tok
if redis.call("GET", index) == KEYS[1] then
  redis.call("DEL", index)
end
redis.call("DEL", KEYS[1])
return 1
`

var deleteLua = redis.NewScript(deleteScript)

// Store is a Redis-backed refresh session store with one record per
// (user, device) pair and a token index for FindByToken.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rs"
	}
	return &Store{redis: rdb, prefix: prefix}
}

func (s *Store) recordKey(userID int64, device string) string {
	return s.prefix + ":s:" + strconv.FormatInt(userID, 10) + ":" + internal.DeviceKey(device)
}

func (s *Store) tokenIndexPrefix() string {
	return s.prefix + ":t:"
}

func (s *Store) tokenKey(tokenDigest string) string {
	return s.tokenIndexPrefix() + tokenDigest
}

// Upsert stores rec for (rec.UserID, rec.Device), replacing any previous token
// for that pair. The replaced token stops resolving through FindByToken.
//
//	Performance: 1 Lua script (up to 7 Redis commands).
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	data, err := Encode(&rec)
	if err != nil {
		return err
	}

	digest := internal.TokenKey(rec.Token)
	key := s.recordKey(rec.UserID, rec.Device)

	res, err := upsertLua.Run(
		ctx,
		s.redis,
		[]string{key, s.tokenKey(digest)},
		digest,
		data,
		rec.ExpiresAt.UnixMilli(),
		s.tokenIndexPrefix(),
	).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return ErrTokenConflict
	}
	return nil
}

// Find returns the record for (userID, device).
//
//	Performance: 1 Redis HGET.
func (s *Store) Find(ctx context.Context, userID int64, device string) (*Record, error) {
	data, err := s.redis.HGet(ctx, s.recordKey(userID, device), fieldRecord).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeStored(data)
}

// FindByToken returns the record currently holding token.
//
//	Performance: 1 Redis GET + 1 HMGET.
func (s *Store) FindByToken(ctx context.Context, token string) (*Record, error) {
	digest := internal.TokenKey(token)

	key, err := s.redis.Get(ctx, s.tokenKey(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	vals, err := s.redis.HMGet(ctx, key, fieldToken, fieldRecord).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	tok, _ := vals[0].(string)
	blob, _ := vals[1].(string)
	// The index can briefly outlive a rotation if the record key expired first.
	if tok != digest || blob == "" {
		return nil, ErrNotFound
	}

	rec, err := decodeStored([]byte(blob))
	if err != nil {
		return nil, err
	}
	if rec.Token != token {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record for (userID, device) and its token index. It
// reports whether a record existed.
//
//	Performance: 1 Lua script.
func (s *Store) Delete(ctx context.Context, userID int64, device string) (bool, error) {
	n, err := deleteLua.Run(ctx, s.redis, []string{s.recordKey(userID, device)}, s.tokenIndexPrefix()).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Ping measures a Redis round-trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeStored(data []byte) (*Record, error) {
	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return rec, nil
}
