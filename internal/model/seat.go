package model

import "strconv"

// SeatType classifies a seat for pricing purposes.  The set is closed:
// price rules key on it and the resolver switches over it exhaustively.
type SeatType string

const (
    SeatTypeStandard SeatType = "STANDARD"
    SeatTypeVip      SeatType = "VIP"
    SeatTypeCouple   SeatType = "COUPLE"
)

// Valid reports whether t is one of the known seat types.
func (t SeatType) Valid() bool {
    switch t {
    case SeatTypeStandard, SeatTypeVip, SeatTypeCouple:
        return true
    }
    return false
}

// Seat is a physical seat in a room.  Inactive seats exist in the
// layout but can never be locked or booked.
//
// Fields:
//  ID         – primary key identifier.
//  RoomID     – room that contains this seat.
//  RowLabel   – row letter such as "A".
//  SeatNumber – number within the row.
//  Type       – seat type used for price resolution.
//  IsActive   – whether the seat can currently be sold.
type Seat struct {
    ID         uint64   // seats.id
    RoomID     uint64   // seats.room_id
    RowLabel   string   // seats.row_label
    SeatNumber uint32   // seats.seat_number
    Type       SeatType // seats.seat_type
    IsActive   bool     // seats.is_active
}

// Label returns the human-readable seat name, e.g. "A7".
func (s Seat) Label() string {
    return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}
