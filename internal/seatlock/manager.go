// Package seatlock is the seat-domain wrapper around the lease store.
// It enforces one owner per (showtime, seat) pair, keeps lock and
// unlock idempotent for the owning caller, and broadcasts seat-status
// changes so other viewers' seat maps refresh live.  The broadcast is
// strictly best effort: the authoritative answer to "who gets the
// seat" lives in the durable booking store, and a failed broadcast
// never fails the lock operation that triggered it.
package seatlock

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/sirupsen/logrus"
)

// keyPrefix namespaces all seat lease keys in the shared store.
const keyPrefix = "seatlock"

// Leaser is the slice of the lease store the manager needs.
type Leaser interface {
    Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
    Release(ctx context.Context, key, owner string) (bool, error)
    Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
    ListActive(ctx context.Context, pattern string) ([]string, error)
}

// SeatEvent is the payload broadcast to a showtime's subscriber group
// after a lock or unlock commits.
type SeatEvent struct {
    Action     string    `json:"action"` // "lock" or "unlock"
    ShowtimeID uint64    `json:"showtime_id"`
    SeatIDs    []uint64  `json:"seat_ids"`
    ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Broadcaster pushes seat events to whoever is watching the showtime.
type Broadcaster interface {
    BroadcastSeatEvent(ctx context.Context, ev SeatEvent) error
}

// Manager coordinates seat leases for showtimes.
type Manager struct {
    leases    Leaser
    broadcast Broadcaster
    log       *logrus.Logger
}

// NewManager returns a Manager.  broadcast may be nil, in which case
// no seat events are emitted.
func NewManager(leases Leaser, broadcast Broadcaster, log *logrus.Logger) *Manager {
    return &Manager{leases: leases, broadcast: broadcast, log: log}
}

// Key returns the lease key for one seat of one showtime.
func Key(showtimeID, seatID uint64) string {
    return fmt.Sprintf("%s:%d:%d", keyPrefix, showtimeID, seatID)
}

// LockSeats attempts to lease every requested seat for owner.  Each
// seat is tried independently: seats already held by a different owner
// are skipped, seats already held by the same owner count as locked
// (their TTL is refreshed).  It returns the subset actually locked and
// the common expiry instant.  Only infrastructure failures are errors.
func (m *Manager) LockSeats(ctx context.Context, showtimeID uint64, owner string, seatIDs []uint64, ttl time.Duration) ([]uint64, time.Time, error) {
    expiresAt := time.Now().UTC().Add(ttl)
    locked := make([]uint64, 0, len(seatIDs))
    for _, sid := range seatIDs {
        ok, err := m.leases.Acquire(ctx, Key(showtimeID, sid), owner, ttl)
        if err != nil {
            return nil, time.Time{}, fmt.Errorf("acquire seat %d: %w", sid, err)
        }
        if ok {
            locked = append(locked, sid)
        }
    }
    if len(locked) > 0 {
        m.emit(ctx, SeatEvent{Action: "lock", ShowtimeID: showtimeID, SeatIDs: locked, ExpiresAt: expiresAt})
    }
    return locked, expiresAt, nil
}

// UnlockSeats releases the caller's leases on the given seats and
// returns the subset actually removed.  Leases held by other owners
// are left untouched.
func (m *Manager) UnlockSeats(ctx context.Context, showtimeID uint64, owner string, seatIDs []uint64) ([]uint64, error) {
    released := make([]uint64, 0, len(seatIDs))
    for _, sid := range seatIDs {
        ok, err := m.leases.Release(ctx, Key(showtimeID, sid), owner)
        if err != nil {
            return nil, fmt.Errorf("release seat %d: %w", sid, err)
        }
        if ok {
            released = append(released, sid)
        }
    }
    if len(released) > 0 {
        m.emit(ctx, SeatEvent{Action: "unlock", ShowtimeID: showtimeID, SeatIDs: released})
    }
    return released, nil
}

// ExtendSeats bumps the TTL of the caller's leases on the given seats.
// Seats the caller does not hold are silently skipped; the returned
// slice lists the seats whose expiry actually moved.
func (m *Manager) ExtendSeats(ctx context.Context, showtimeID uint64, owner string, seatIDs []uint64, ttl time.Duration) ([]uint64, error) {
    extended := make([]uint64, 0, len(seatIDs))
    for _, sid := range seatIDs {
        ok, err := m.leases.Extend(ctx, Key(showtimeID, sid), owner, ttl)
        if err != nil {
            return nil, fmt.Errorf("extend seat %d: %w", sid, err)
        }
        if ok {
            extended = append(extended, sid)
        }
    }
    return extended, nil
}

// ListLocked returns the seat IDs with a live lease for the showtime.
// The listing feeds the greyed-out seats in the UI; it is a best-effort
// snapshot, not the arbiter for booking-time conflicts.
func (m *Manager) ListLocked(ctx context.Context, showtimeID uint64) ([]uint64, error) {
    pattern := fmt.Sprintf("%s:%d:*", keyPrefix, showtimeID)
    keys, err := m.leases.ListActive(ctx, pattern)
    if err != nil {
        return nil, err
    }
    seatIDs := make([]uint64, 0, len(keys))
    for _, k := range keys {
        parts := strings.Split(k, ":")
        if len(parts) != 3 {
            continue
        }
        sid, err := strconv.ParseUint(parts[2], 10, 64)
        if err != nil {
            continue
        }
        seatIDs = append(seatIDs, sid)
    }
    return seatIDs, nil
}

// emit broadcasts the event and downgrades any failure to a warning.
func (m *Manager) emit(ctx context.Context, ev SeatEvent) {
    if m.broadcast == nil {
        return
    }
    if err := m.broadcast.BroadcastSeatEvent(ctx, ev); err != nil {
        m.log.WithFields(logrus.Fields{
            "showtime_id": ev.ShowtimeID,
            "action":      ev.Action,
        }).WithError(err).Warn("seat event broadcast failed")
    }
}
