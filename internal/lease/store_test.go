package lease

import (
    "context"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
    t.Helper()
    rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 9})
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        t.Skip("redis not available")
    }
    t.Cleanup(func() { _ = rdb.Close() })
    return NewStore(rdb)
}

func TestAcquireReleaseExtend(t *testing.T) {
    s := testStore(t)
    ctx := context.Background()
    key := fmt.Sprintf("leasetest:%d", time.Now().UnixNano())

    t.Run("acquire free key", func(t *testing.T) {
        ok, err := s.Acquire(ctx, key, "alice", 5*time.Second)
        require.NoError(t, err)
        assert.True(t, ok)
    })

    t.Run("different owner is refused", func(t *testing.T) {
        ok, err := s.Acquire(ctx, key, "bob", 5*time.Second)
        require.NoError(t, err)
        assert.False(t, ok)
    })

    t.Run("same owner re-acquire is idempotent", func(t *testing.T) {
        ok, err := s.Acquire(ctx, key, "alice", 5*time.Second)
        require.NoError(t, err)
        assert.True(t, ok)
    })

    t.Run("extend by owner", func(t *testing.T) {
        ok, err := s.Extend(ctx, key, "alice", 10*time.Second)
        require.NoError(t, err)
        assert.True(t, ok)
    })

    t.Run("extend by stranger fails", func(t *testing.T) {
        ok, err := s.Extend(ctx, key, "bob", 10*time.Second)
        require.NoError(t, err)
        assert.False(t, ok)
    })

    t.Run("release by stranger is a no-op", func(t *testing.T) {
        ok, err := s.Release(ctx, key, "bob")
        require.NoError(t, err)
        assert.False(t, ok)

        owner, err := s.Owner(ctx, key)
        require.NoError(t, err)
        assert.Equal(t, "alice", owner)
    })

    t.Run("release by owner frees the key", func(t *testing.T) {
        ok, err := s.Release(ctx, key, "alice")
        require.NoError(t, err)
        assert.True(t, ok)

        ok, err = s.Acquire(ctx, key, "bob", time.Second)
        require.NoError(t, err)
        assert.True(t, ok)
        _, _ = s.Release(ctx, key, "bob")
    })
}

func TestLeaseExpires(t *testing.T) {
    s := testStore(t)
    ctx := context.Background()
    key := fmt.Sprintf("leasetest:expire:%d", time.Now().UnixNano())

    ok, err := s.Acquire(ctx, key, "alice", 100*time.Millisecond)
    require.NoError(t, err)
    require.True(t, ok)

    time.Sleep(200 * time.Millisecond)

    ok, err = s.Acquire(ctx, key, "bob", time.Second)
    require.NoError(t, err)
    assert.True(t, ok, "expired lease should be acquirable by a new owner")
    _, _ = s.Release(ctx, key, "bob")
}

// TestNoDoubleLock hammers a single key from many goroutines with
// distinct owners and asserts that exactly one of them wins.
func TestNoDoubleLock(t *testing.T) {
    s := testStore(t)
    ctx := context.Background()
    key := fmt.Sprintf("leasetest:race:%d", time.Now().UnixNano())

    const owners = 32
    var wg sync.WaitGroup
    wins := make(chan string, owners)
    for i := 0; i < owners; i++ {
        wg.Add(1)
        go func(owner string) {
            defer wg.Done()
            ok, err := s.Acquire(ctx, key, owner, 5*time.Second)
            if err == nil && ok {
                wins <- owner
            }
        }(fmt.Sprintf("owner-%d", i))
    }
    wg.Wait()
    close(wins)

    var winners []string
    for w := range wins {
        winners = append(winners, w)
    }
    require.Len(t, winners, 1, "exactly one owner must hold the lease")

    holder, err := s.Owner(ctx, key)
    require.NoError(t, err)
    assert.Equal(t, winners[0], holder)
    _, _ = s.Release(ctx, key, winners[0])
}

func TestListActive(t *testing.T) {
    s := testStore(t)
    ctx := context.Background()
    prefix := fmt.Sprintf("leasetest:list:%d", time.Now().UnixNano())

    for i := 0; i < 3; i++ {
        key := fmt.Sprintf("%s:%d", prefix, i)
        ok, err := s.Acquire(ctx, key, "alice", 5*time.Second)
        require.NoError(t, err)
        require.True(t, ok)
    }

    keys, err := s.ListActive(ctx, prefix+":*")
    require.NoError(t, err)
    assert.Len(t, keys, 3)

    for i := 0; i < 3; i++ {
        _, _ = s.Release(ctx, fmt.Sprintf("%s:%d", prefix, i), "alice")
    }
}
