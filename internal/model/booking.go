package model

import "time"

// BookingStatus is the lifecycle state of a booking.  Pending and
// Confirmed are the blocking states: a seat tied to an item in either
// state counts as taken for conflict checks.
type BookingStatus string

const (
    BookingPending   BookingStatus = "PENDING"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCanceled  BookingStatus = "CANCELED"
    BookingExpired   BookingStatus = "EXPIRED"
    BookingRefunding BookingStatus = "REFUNDING"
    BookingRefunded  BookingStatus = "REFUNDED"
)

// Blocking reports whether the status counts as "seat is taken".
func (s BookingStatus) Blocking() bool {
    return s == BookingPending || s == BookingConfirmed
}

// Booking is the durable record of a reservation.  Its ID doubles as
// the draft ID while the booking is still unpaid; the draft in Redis
// and the Pending row here describe the same reservation.
//
// Fields:
//  ID            – opaque identifier (UUID string), shared with the draft.
//  Code          – unique human-readable reference, e.g. "BK-7K2MQ4RA".
//  UserID        – owner account, nil for anonymous checkout.
//  OwnerKey      – lease owner (user or guest surrogate); the key under
//                  which this booking's seat leases were taken.
//  ShowtimeID    – showtime being booked.
//  Status        – lifecycle state.
//  TotalMinor    – total price in minor currency units.
//  Currency      – ISO currency code.
//  Contact       – serialized customer contact (JSON).
//  HoldExpiresAt – end of the hold window for a Pending booking.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Booking struct {
    ID            string        // bookings.id
    Code          string        // bookings.code
    UserID        *uint64       // bookings.user_id (nullable)
    OwnerKey      string        // bookings.owner_key
    ShowtimeID    uint64        // bookings.showtime_id
    Status        BookingStatus // bookings.status
    TotalMinor    int64         // bookings.total_minor
    Currency      string        // bookings.currency
    Contact       string        // bookings.contact
    HoldExpiresAt time.Time     // bookings.hold_expires_at
    CreatedAt     time.Time     // bookings.created_at
    UpdatedAt     time.Time     // bookings.updated_at
}

// BookingItem is one seat within a booking.  Item status mirrors the
// booking status but can diverge per item (e.g. partial refunds).
type BookingItem struct {
    ID         uint64        // booking_items.id
    BookingID  string        // booking_items.booking_id
    ShowtimeID uint64        // booking_items.showtime_id
    SeatID     uint64        // booking_items.seat_id
    SeatLabel  string        // booking_items.seat_label
    SeatType   SeatType      // booking_items.seat_type
    PriceMinor int64         // booking_items.price_minor
    Status     BookingStatus // booking_items.status
}

// Ticket is issued for a booking item when the booking is confirmed.
// Exactly one ticket exists per confirmed item and its code is unique.
type Ticket struct {
    ID            uint64    // tickets.id
    BookingItemID uint64    // tickets.booking_item_id
    Code          string    // tickets.code
    IssuedAt      time.Time // tickets.issued_at
}
