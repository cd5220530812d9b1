package model

import "time"

// Movie is a film that can be scheduled for showtimes.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – display title.
//  DurationMin – running time in minutes.
//  CreatedAt   – creation timestamp.
type Movie struct {
    ID          uint64    // movies.id
    Title       string    // movies.title
    DurationMin uint32    // movies.duration_min
    CreatedAt   time.Time // movies.created_at
}
