package model

import "time"

// Showtime is a scheduled screening of a movie in a room.  The base
// price is the last resort of the price-rule fallback chain, so a
// showtime always carries one.
//
// Fields:
//  ID             – primary key identifier.
//  MovieID        – movie being screened.
//  RoomID         – room where the screening takes place.
//  StartsAt       – start instant, stored in UTC.
//  BasePriceMinor – flat fallback price in minor currency units.
//  Currency       – ISO currency code, e.g. "VND".
type Showtime struct {
    ID             uint64    // showtimes.id
    MovieID        uint64    // showtimes.movie_id
    RoomID         uint64    // showtimes.room_id
    StartsAt       time.Time // showtimes.starts_at
    BasePriceMinor int64     // showtimes.base_price_minor
    Currency       string    // showtimes.currency
}

// ShowtimeDetail joins a showtime with its room, cinema and movie for
// lookups that need the full context (pricing scope, event payloads,
// validation of seat ownership).
type ShowtimeDetail struct {
    Showtime
    RoomName   string
    CinemaID   uint64
    CinemaName string
    MovieTitle string
}

// HasStarted reports whether the screening has already begun at the
// given instant.  Comparisons are done in UTC like the stored value.
func (s Showtime) HasStarted(now time.Time) bool {
    return !s.StartsAt.After(now.UTC())
}
