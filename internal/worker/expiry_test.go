package worker

import (
    "context"
    "errors"
    "io"
    "testing"
    "time"

    "github.com/sirupsen/logrus"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
)

type fakeExpiring struct {
    overdue []model.Booking
    byID    map[string]*repository.BookingWithItems
    limit   int
}

func (f *fakeExpiring) ExpireOverdue(_ context.Context, _ time.Time, limit int) ([]model.Booking, error) {
    f.limit = limit
    return f.overdue, nil
}

func (f *fakeExpiring) GetByID(_ context.Context, id string) (*repository.BookingWithItems, error) {
    bw, ok := f.byID[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return bw, nil
}

type fakeUnlocker struct {
    calls map[string][]uint64
    err   error
}

func (f *fakeUnlocker) UnlockSeats(_ context.Context, _ uint64, owner string, seatIDs []uint64) ([]uint64, error) {
    if f.err != nil {
        return nil, f.err
    }
    if f.calls == nil {
        f.calls = make(map[string][]uint64)
    }
    f.calls[owner] = seatIDs
    return seatIDs, nil
}

type fakeDeleter struct {
    deleted []string
}

func (f *fakeDeleter) Delete(_ context.Context, id string) error {
    f.deleted = append(f.deleted, id)
    return nil
}

func quietLog() *logrus.Logger {
    l := logrus.New()
    l.SetOutput(io.Discard)
    return l
}

func TestSweepCleansUpExpiredBookings(t *testing.T) {
    b := model.Booking{ID: "bk-1", OwnerKey: "user:1", ShowtimeID: 7, Status: model.BookingExpired}
    bookings := &fakeExpiring{
        overdue: []model.Booking{b},
        byID: map[string]*repository.BookingWithItems{
            "bk-1": {
                Booking: b,
                Items: []model.BookingItem{
                    {BookingID: "bk-1", ShowtimeID: 7, SeatID: 11},
                    {BookingID: "bk-1", ShowtimeID: 7, SeatID: 12},
                },
            },
        },
    }
    locks := &fakeUnlocker{}
    drafts := &fakeDeleter{}
    s := NewExpirySweeper(bookings, locks, drafts, quietLog())

    require.NoError(t, s.Sweep(context.Background(), time.Now().UTC()))

    assert.Equal(t, sweepBatchLimit, bookings.limit)
    assert.Equal(t, []uint64{11, 12}, locks.calls["user:1"])
    assert.Equal(t, []string{"bk-1"}, drafts.deleted)
}

func TestSweepNoOverdueBookings(t *testing.T) {
    bookings := &fakeExpiring{byID: map[string]*repository.BookingWithItems{}}
    locks := &fakeUnlocker{}
    drafts := &fakeDeleter{}
    s := NewExpirySweeper(bookings, locks, drafts, quietLog())

    require.NoError(t, s.Sweep(context.Background(), time.Now().UTC()))
    assert.Empty(t, locks.calls)
    assert.Empty(t, drafts.deleted)
}

func TestSweepSurvivesCleanupFailures(t *testing.T) {
    b := model.Booking{ID: "bk-1", OwnerKey: "user:1", ShowtimeID: 7}
    bookings := &fakeExpiring{
        overdue: []model.Booking{b},
        byID: map[string]*repository.BookingWithItems{
            "bk-1": {Booking: b, Items: []model.BookingItem{{SeatID: 11}}},
        },
    }
    locks := &fakeUnlocker{err: errors.New("redis down")}
    drafts := &fakeDeleter{}
    s := NewExpirySweeper(bookings, locks, drafts, quietLog())

    // Lease cleanup failing must not fail the sweep; the durable flip
    // already happened and the leases expire on their own.
    require.NoError(t, s.Sweep(context.Background(), time.Now().UTC()))
    assert.Equal(t, []string{"bk-1"}, drafts.deleted)
}
