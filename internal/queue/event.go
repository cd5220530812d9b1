// Package queue defines message payloads exchanged over the message
// broker and the background consumer that processes them.
package queue

// BookingConfirmedEvent is published when a booking is successfully
// confirmed and its tickets are issued.  It carries enough context for
// downstream consumers (notifications, analytics) to act without
// querying the primary database.
type BookingConfirmedEvent struct {
    BookingID   string   `json:"booking_id"`
    BookingCode string   `json:"booking_code"`
    UserID      *uint64  `json:"user_id,omitempty"`
    ShowtimeID  uint64   `json:"showtime_id"`
    CinemaID    uint64   `json:"cinema_id"`
    CinemaName  string   `json:"cinema_name"`
    RoomName    string   `json:"room_name"`
    MovieTitle  string   `json:"movie_title"`
    StartsAt    string   `json:"starts_at"`
    SeatLabels  []string `json:"seats"`
    TicketCodes []string `json:"ticket_codes"`
    TotalMinor  int64    `json:"total_minor"`
    Currency    string   `json:"currency"`
    ConfirmedAt string   `json:"confirmed_at"`
}
