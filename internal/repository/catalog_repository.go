// Package repository contains data access for the durable MySQL store.
// This file covers the read-mostly catalog: showtimes with their room,
// cinema and movie context, and seat lookups for validation and seat
// map rendering.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
)

// CatalogRepo reads cinemas, rooms, seats, movies and showtimes.
type CatalogRepo struct {
    db *sql.DB
}

// NewCatalogRepo returns a CatalogRepo bound to the provided database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// ShowtimeByID loads a showtime joined with its room, cinema and movie.
// Returns ErrNotFound when the showtime does not exist.
func (r *CatalogRepo) ShowtimeByID(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
    const q = `SELECT st.id, st.movie_id, st.room_id, st.starts_at, st.base_price_minor, st.currency,
                      r.name, c.id, c.name, m.title
               FROM showtimes st
               JOIN rooms r   ON r.id = st.room_id
               JOIN cinemas c ON c.id = r.cinema_id
               JOIN movies m  ON m.id = st.movie_id
               WHERE st.id = ?`
    var d model.ShowtimeDetail
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &d.ID, &d.MovieID, &d.RoomID, &d.StartsAt, &d.BasePriceMinor, &d.Currency,
        &d.RoomName, &d.CinemaID, &d.CinemaName, &d.MovieTitle,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &d, nil
}

// SeatsByIDs loads the given seats.  The result contains only seats
// that exist; the caller compares lengths to detect unknown IDs.
func (r *CatalogRepo) SeatsByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error) {
    if len(seatIDs) == 0 {
        return nil, nil
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seatIDs)), ",")
    q := fmt.Sprintf(`SELECT id, room_id, row_label, seat_number, seat_type, is_active
                      FROM seats WHERE id IN (%s)`, placeholders)
    args := make([]interface{}, 0, len(seatIDs))
    for _, id := range seatIDs {
        args = append(args, id)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []model.Seat
    for rows.Next() {
        var s model.Seat
        if err := rows.Scan(&s.ID, &s.RoomID, &s.RowLabel, &s.SeatNumber, &s.Type, &s.IsActive); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    return seats, rows.Err()
}

// SeatsByRoom loads every seat of a room ordered by row and number,
// used to render the seat map of a showtime.
func (r *CatalogRepo) SeatsByRoom(ctx context.Context, roomID uint64) ([]model.Seat, error) {
    const q = `SELECT id, room_id, row_label, seat_number, seat_type, is_active
               FROM seats WHERE room_id = ?
               ORDER BY row_label, seat_number`
    rows, err := r.db.QueryContext(ctx, q, roomID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []model.Seat
    for rows.Next() {
        var s model.Seat
        if err := rows.Scan(&s.ID, &s.RoomID, &s.RowLabel, &s.SeatNumber, &s.Type, &s.IsActive); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    return seats, rows.Err()
}
