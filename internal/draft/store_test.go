package draft

import (
    "context"
    "fmt"
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

func TestStoreRoundTrip(t *testing.T) {
    s := testStore(t)
    ctx := context.Background()

    d := validDraft()
    d.ID = fmt.Sprintf("drafttest-%d", time.Now().UnixNano())
    require.NoError(t, s.Create(ctx, d, time.Minute))
    defer s.Delete(ctx, d.ID)

    got, err := s.Get(ctx, d.ID)
    require.NoError(t, err)
    assert.Equal(t, d.SeatIDs, got.SeatIDs)
    assert.Equal(t, d.UnitPrices, got.UnitPrices)
    assert.Equal(t, d.TotalMinor, got.TotalMinor)
    assert.Equal(t, d.OwnerKey, got.OwnerKey)
}

func TestStoreCreateOverwrites(t *testing.T) {
    s := testStore(t)
    ctx := context.Background()

    d := validDraft()
    d.ID = fmt.Sprintf("drafttest-ow-%d", time.Now().UnixNano())
    require.NoError(t, s.Create(ctx, d, time.Minute))
    defer s.Delete(ctx, d.ID)

    d2 := validDraft()
    d2.ID = d.ID
    d2.SeatIDs = []uint64{9}
    d2.UnitPrices = []int64{50000}
    d2.TotalMinor = 50000
    require.NoError(t, s.Create(ctx, d2, time.Minute))

    got, err := s.Get(ctx, d.ID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{9}, got.SeatIDs)
}

func TestStoreInvalidDraftRejected(t *testing.T) {
    s := testStore(t)
    d := validDraft()
    d.TotalMinor = 1
    assert.ErrorIs(t, s.Create(context.Background(), d, time.Minute), ErrInvalid)
}

func TestStoreExtend(t *testing.T) {
    s := testStore(t)
    ctx := context.Background()

    t.Run("extend live draft", func(t *testing.T) {
        d := validDraft()
        d.ID = fmt.Sprintf("drafttest-ext-%d", time.Now().UnixNano())
        require.NoError(t, s.Create(ctx, d, time.Minute))
        defer s.Delete(ctx, d.ID)

        ok, err := s.Extend(ctx, d.ID, 10*time.Minute)
        require.NoError(t, err)
        assert.True(t, ok)
    })

    t.Run("extend missing draft returns false", func(t *testing.T) {
        ok, err := s.Extend(ctx, "drafttest-gone", 10*time.Minute)
        require.NoError(t, err)
        assert.False(t, ok)
    })
}

func TestStoreGetMissing(t *testing.T) {
    s := testStore(t)
    _, err := s.Get(context.Background(), "drafttest-missing")
    assert.ErrorIs(t, err, ErrNotFound)
}
