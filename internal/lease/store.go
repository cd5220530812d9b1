// Package lease implements a generic TTL-keyed lock primitive on top of
// Redis.  A lease is an ownership claim on a key that the store expires
// automatically; a process that crashes mid-flow never leaks a lock
// because no cleanup on our side is required.  Every operation is a
// single round trip and owner checks happen inside Redis via Lua, so
// there is no client-side locking anywhere.
package lease

import (
    "context"
    "time"

    "github.com/redis/go-redis/v9"
)

// acquireScript sets the key if it is free, refreshes the TTL if the
// same owner already holds it, and refuses otherwise.  A second caller
// can therefore never overwrite a live lease silently.
var acquireScript = redis.NewScript(`
    local current = redis.call('GET', KEYS[1])
    if current == false then
        redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
        return 1
    end
    if current == ARGV[1] then
        redis.call('PEXPIRE', KEYS[1], ARGV[2])
        return 1
    end
    return 0
`)

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// extendScript bumps the TTL only when the caller still owns the key.
var extendScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('PEXPIRE', KEYS[1], ARGV[2])
    end
    return 0
`)

// Store is a lease store bound to a Redis client.
type Store struct {
    rdb *redis.Client
}

// NewStore returns a Store using the provided Redis client.
func NewStore(rdb *redis.Client) *Store {
    return &Store{rdb: rdb}
}

// Acquire claims key for owner with the given TTL.  It returns true
// when the owner now holds the lease, which includes re-acquiring a
// lease the same owner already holds (the TTL is refreshed).  It
// returns false when a different owner holds the key.
func (s *Store) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
    res, err := acquireScript.Run(ctx, s.rdb, []string{key}, owner, ttl.Milliseconds()).Int()
    if err != nil {
        return false, err
    }
    return res == 1, nil
}

// Release removes the lease on key when held by owner.  It returns
// false when the key is absent or held by someone else; in neither
// case is another owner's lease touched.
func (s *Store) Release(ctx context.Context, key, owner string) (bool, error) {
    res, err := releaseScript.Run(ctx, s.rdb, []string{key}, owner).Int()
    if err != nil {
        return false, err
    }
    return res == 1, nil
}

// Extend resets the TTL of owner's lease on key.  It returns false
// when the lease no longer exists or belongs to a different owner.
func (s *Store) Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
    res, err := extendScript.Run(ctx, s.rdb, []string{key}, owner, ttl.Milliseconds()).Int()
    if err != nil {
        return false, err
    }
    return res == 1, nil
}

// ListActive scans for live lease keys matching the glob pattern.  The
// result is a point-in-time snapshot: keys can expire between the scan
// and any decision made from it, so callers must treat the listing as
// advisory, never as a conflict check.
func (s *Store) ListActive(ctx context.Context, pattern string) ([]string, error) {
    var keys []string
    iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        return nil, err
    }
    return keys, nil
}

// Owner returns the current holder of key, or "" when the key is free.
func (s *Store) Owner(ctx context.Context, key string) (string, error) {
    v, err := s.rdb.Get(ctx, key).Result()
    if err == redis.Nil {
        return "", nil
    }
    if err != nil {
        return "", err
    }
    return v, nil
}
