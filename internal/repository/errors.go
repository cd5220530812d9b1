// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the orchestrator to distinguish between different
// failure scenarios without string matching.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as confirming a booking that is no longer
// pending. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSeatTaken is returned when the conflict-checked insert on
// (showtime_id, seat_id) collides with an existing blocking booking
// item. This is the authoritative anti-double-sell signal: exactly one
// of two racing drafts receives the insert, the other receives this.
var ErrSeatTaken = errors.New("seat already booked")

// isDuplicate reports whether err is a MySQL duplicate-key violation
// (error 1062), the signal the unique constraints emit on conflict.
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
