// Package draft stores ephemeral, not-yet-paid reservations.  A draft
// captures the seat selection and the price snapshot taken at creation
// time; it lives in the shared store under its own TTL and disappears
// on confirm, cancel or natural expiry.  The draft ID doubles as the
// booking ID, so a gateway reference always resolves to both.
package draft

import (
    "errors"
    "time"
)

// ErrInvalid is returned when a draft violates its construction
// invariants (empty selection, mismatched price list, wrong total).
var ErrInvalid = errors.New("invalid draft")

// Draft is the ephemeral record of an unpaid reservation.
type Draft struct {
    ID         string    `json:"id"`
    OwnerKey   string    `json:"owner_key"`         // lease owner (user or guest surrogate)
    UserID     *uint64   `json:"user_id,omitempty"` // nil for anonymous checkout
    ShowtimeID uint64    `json:"showtime_id"`
    SeatIDs    []uint64  `json:"seat_ids"`
    UnitPrices []int64   `json:"unit_prices"` // parallel to SeatIDs, minor units
    TotalMinor int64     `json:"total_minor"`
    Currency   string    `json:"currency"`
    Contact    string    `json:"contact"` // serialized customer contact
    CreatedAt  time.Time `json:"created_at"`
}

// Validate checks the structural invariants: at least one seat, one
// unit price per seat, and a total equal to the sum of unit prices.
func (d *Draft) Validate() error {
    if d.ID == "" || d.OwnerKey == "" || d.ShowtimeID == 0 {
        return ErrInvalid
    }
    if len(d.SeatIDs) == 0 || len(d.SeatIDs) != len(d.UnitPrices) {
        return ErrInvalid
    }
    var sum int64
    for _, p := range d.UnitPrices {
        sum += p
    }
    if sum != d.TotalMinor {
        return ErrInvalid
    }
    return nil
}
