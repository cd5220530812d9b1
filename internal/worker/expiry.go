// Package worker runs the background jobs: the periodic sweep that
// expires bookings whose hold window lapsed without payment.
package worker

import (
    "context"
    "time"

    "github.com/hibiken/asynq"
    "github.com/sirupsen/logrus"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
)

// TypeExpireSweep is the asynq task type for the hold-expiry sweep.
const TypeExpireSweep = "booking:expire_sweep"

// sweepBatchLimit caps how many overdue bookings one sweep run flips.
const sweepBatchLimit = 200

// ExpiringBookings is the repository slice the sweeper needs.
type ExpiringBookings interface {
    ExpireOverdue(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
    GetByID(ctx context.Context, id string) (*repository.BookingWithItems, error)
}

// SeatUnlocker frees the seat leases of an expired booking.
type SeatUnlocker interface {
    UnlockSeats(ctx context.Context, showtimeID uint64, owner string, seatIDs []uint64) ([]uint64, error)
}

// DraftDeleter removes the ephemeral draft of an expired booking.
type DraftDeleter interface {
    Delete(ctx context.Context, id string) error
}

// ExpirySweeper flips overdue Pending bookings to Expired and cleans
// up their leases and drafts.  The durable flip is the authoritative
// step; lease and draft cleanup is best effort since both carry their
// own TTLs anyway.
type ExpirySweeper struct {
    bookings ExpiringBookings
    locks    SeatUnlocker
    drafts   DraftDeleter
    log      *logrus.Logger
}

// NewExpirySweeper wires the sweeper.
func NewExpirySweeper(bookings ExpiringBookings, locks SeatUnlocker, drafts DraftDeleter, log *logrus.Logger) *ExpirySweeper {
    return &ExpirySweeper{bookings: bookings, locks: locks, drafts: drafts, log: log}
}

// HandleExpireSweep is the asynq handler for TypeExpireSweep.
func (s *ExpirySweeper) HandleExpireSweep(ctx context.Context, _ *asynq.Task) error {
    return s.Sweep(ctx, time.Now().UTC())
}

// Sweep runs one pass.  Exported separately so it can be invoked
// directly in tests and admin tooling.
func (s *ExpirySweeper) Sweep(ctx context.Context, now time.Time) error {
    expired, err := s.bookings.ExpireOverdue(ctx, now, sweepBatchLimit)
    if err != nil {
        return err
    }
    for _, b := range expired {
        s.cleanup(ctx, b)
    }
    if len(expired) > 0 {
        s.log.WithField("count", len(expired)).Info("expired overdue bookings")
    }
    return nil
}

func (s *ExpirySweeper) cleanup(ctx context.Context, b model.Booking) {
    bw, err := s.bookings.GetByID(ctx, b.ID)
    if err != nil {
        s.log.WithError(err).WithField("booking_id", b.ID).Warn("load expired booking for cleanup failed")
        return
    }
    seatIDs := make([]uint64, 0, len(bw.Items))
    for _, it := range bw.Items {
        seatIDs = append(seatIDs, it.SeatID)
    }
    if _, err := s.locks.UnlockSeats(ctx, b.ShowtimeID, b.OwnerKey, seatIDs); err != nil {
        s.log.WithError(err).WithField("booking_id", b.ID).Warn("unlock seats of expired booking failed")
    }
    if err := s.drafts.Delete(ctx, b.ID); err != nil {
        s.log.WithError(err).WithField("booking_id", b.ID).Warn("delete draft of expired booking failed")
    }
}

// Run starts the asynq server and the scheduler that enqueues the
// sweep every minute.  It blocks; run it in its own goroutine.
func Run(redisOpt asynq.RedisClientOpt, sweeper *ExpirySweeper, log *logrus.Logger) error {
    srv := asynq.NewServer(redisOpt, asynq.Config{
        Concurrency: 4,
        Queues:      map[string]int{"default": 1},
    })

    mux := asynq.NewServeMux()
    mux.HandleFunc(TypeExpireSweep, sweeper.HandleExpireSweep)

    scheduler := asynq.NewScheduler(redisOpt, nil)
    if _, err := scheduler.Register("* * * * *", asynq.NewTask(TypeExpireSweep, nil)); err != nil {
        return err
    }
    go func() {
        if err := scheduler.Run(); err != nil {
            log.WithError(err).Error("expiry scheduler stopped")
        }
    }()

    return srv.Run(mux)
}
