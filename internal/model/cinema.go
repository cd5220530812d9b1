package model

import "time"

// Cinema represents a physical cinema location.  Price rules may be
// scoped to a single cinema; rules without a cinema apply globally.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the cinema.
//  City      – city where the cinema is located.
//  CreatedAt – creation timestamp.
type Cinema struct {
    ID        uint64    // cinemas.id
    Name      string    // cinemas.name
    City      string    // cinemas.city
    CreatedAt time.Time // cinemas.created_at
}

// Room is a screening room inside a cinema.  Every showtime is
// scheduled in exactly one room and every seat belongs to exactly
// one room.
//
// Fields:
//  ID       – primary key identifier.
//  CinemaID – cinema that owns this room.
//  Name     – room label (e.g. "Room 3", "IMAX").
type Room struct {
    ID       uint64 // rooms.id
    CinemaID uint64 // rooms.cinema_id
    Name     string // rooms.name
}
