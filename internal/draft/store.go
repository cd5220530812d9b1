package draft

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the draft has expired or was
// already consumed.  Callers must treat it as "re-quote from scratch",
// not as a retryable fault.
var ErrNotFound = errors.New("draft not found")

// Store persists drafts as JSON values with a TTL in Redis.
type Store struct {
    rdb *redis.Client
}

// NewStore returns a Store using the provided Redis client.
func NewStore(rdb *redis.Client) *Store {
    return &Store{rdb: rdb}
}

func key(id string) string {
    return "draft:" + id
}

// Create writes the draft under its ID with the given TTL.  A create
// on an existing ID overwrites it; drafts are never merged.
func (s *Store) Create(ctx context.Context, d *Draft, ttl time.Duration) error {
    if err := d.Validate(); err != nil {
        return err
    }
    body, err := json.Marshal(d)
    if err != nil {
        return fmt.Errorf("marshal draft: %w", err)
    }
    return s.rdb.Set(ctx, key(d.ID), body, ttl).Err()
}

// Get loads a draft by ID.  ErrNotFound means the draft is gone
// (expired, confirmed or canceled).
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
    body, err := s.rdb.Get(ctx, key(id)).Bytes()
    if err == redis.Nil {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    var d Draft
    if err := json.Unmarshal(body, &d); err != nil {
        return nil, fmt.Errorf("unmarshal draft %s: %w", id, err)
    }
    return &d, nil
}

// Delete removes the draft.  Deleting an absent draft is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
    return s.rdb.Del(ctx, key(id)).Err()
}

// Extend resets the draft's TTL.  It returns false when the draft no
// longer exists; callers must then restart the reservation instead of
// retrying the extension.
func (s *Store) Extend(ctx context.Context, id string, ttl time.Duration) (bool, error) {
    ok, err := s.rdb.PExpire(ctx, key(id), ttl).Result()
    if err != nil {
        return false, err
    }
    return ok, nil
}
