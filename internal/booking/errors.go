// Package booking implements the reservation orchestrator: the state
// machine that takes a locked seat selection through draft, payment
// and confirmation.  Business rejections are explicit sentinel errors:
// validation errors mean "fix your input", conflict errors mean
// "someone else got there first, pick again".
package booking

import "errors"

// Validation errors: bad input, no state was mutated.
var (
    ErrShowtimeNotFound = errors.New("showtime not found")
    ErrShowtimeStarted  = errors.New("showtime already started")
    ErrNoSeats          = errors.New("seat selection is empty")
    ErrUnknownSeat      = errors.New("unknown seat")
    ErrSeatInactive     = errors.New("seat is not active")
    ErrSeatWrongRoom    = errors.New("seat does not belong to the showtime's room")
)

// Conflict errors: the request was well-formed but lost a race or
// arrived in the wrong state.
var (
    ErrSeatConflict = errors.New("seat already taken by another booking")
    ErrNotPending   = errors.New("booking is not pending")
    ErrExpired      = errors.New("booking hold window has expired")
)

// Not-found errors.
var (
    ErrBookingNotFound = errors.New("booking not found")
)

// ErrNotOwner is returned when a caller operates on a booking whose
// leases belong to a different owner key.
var ErrNotOwner = errors.New("booking belongs to a different owner")
