package repository

import (
    "context"
    "crypto/rand"
    "database/sql"
    "encoding/base32"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
)

// codeEncoding is Crockford-style base32: no padding, no ambiguous
// characters, uppercase.  Used for booking and ticket codes.
var codeEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// BookingRepo manages bookings, booking items and tickets.
//
// The booking_items table carries a generated column `blocking` that is
// 1 while the item status is PENDING or CONFIRMED and NULL otherwise,
// plus UNIQUE KEY (showtime_id, seat_id, blocking).  Inserting a second
// blocking item for the same seat therefore fails with a duplicate-key
// error, which is the single arbiter for who gets a seat when two
// drafts race past the soft lock.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingWithItems aggregates a booking with its items and any issued
// tickets for API responses.
type BookingWithItems struct {
    Booking model.Booking
    Items   []model.BookingItem
    Tickets []model.Ticket
}

// NewBookingCode generates a human-readable booking code and verifies
// it is unused, retrying on the rare collision.
func (r *BookingRepo) NewBookingCode(ctx context.Context) (string, error) {
    for attempt := 0; attempt < 5; attempt++ {
        code, err := randomCode("BK-", 5)
        if err != nil {
            return "", err
        }
        var exists int
        err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE code = ?`, code).Scan(&exists)
        if err != nil {
            return "", err
        }
        if exists == 0 {
            return code, nil
        }
    }
    return "", errors.New("could not generate a unique booking code")
}

// CreateWithItems inserts a Pending booking and its items in one
// transaction.  A duplicate-key violation on the seat uniqueness
// constraint rolls everything back and surfaces as ErrSeatTaken; the
// losing request must not leave any durable trace.
func (r *BookingRepo) CreateWithItems(ctx context.Context, b *model.Booking, items []model.BookingItem) error {
    if len(items) == 0 {
        return errors.New("booking needs at least one item")
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const insBooking = `INSERT INTO bookings
        (id, code, user_id, owner_key, showtime_id, status, total_minor, currency, contact, hold_expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err = tx.ExecContext(ctx, insBooking,
        b.ID, b.Code, b.UserID, b.OwnerKey, b.ShowtimeID, string(b.Status),
        b.TotalMinor, b.Currency, b.Contact, b.HoldExpiresAt.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        if isDuplicate(err) {
            return ErrConflict // duplicate booking id or code
        }
        return err
    }

    insItems := `INSERT INTO booking_items
        (booking_id, showtime_id, seat_id, seat_label, seat_type, price_minor, status) VALUES `
    args := make([]interface{}, 0, len(items)*7)
    for i, it := range items {
        if i > 0 {
            insItems += ","
        }
        insItems += "(?, ?, ?, ?, ?, ?, ?)"
        args = append(args, it.BookingID, it.ShowtimeID, it.SeatID, it.SeatLabel, string(it.SeatType), it.PriceMinor, string(it.Status))
    }
    if _, err = tx.ExecContext(ctx, insItems, args...); err != nil {
        if isDuplicate(err) {
            return ErrSeatTaken
        }
        return err
    }

    if err = tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetByID loads a booking with items and tickets.  Returns ErrNotFound
// when the booking does not exist.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*BookingWithItems, error) {
    const q = `SELECT id, code, user_id, owner_key, showtime_id, status, total_minor, currency, contact,
                      hold_expires_at, created_at, updated_at
               FROM bookings WHERE id = ?`
    var b model.Booking
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &b.ID, &b.Code, &b.UserID, &b.OwnerKey, &b.ShowtimeID, &b.Status, &b.TotalMinor, &b.Currency,
        &b.Contact, &b.HoldExpiresAt, &b.CreatedAt, &b.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    items, err := r.itemsByBooking(ctx, id)
    if err != nil {
        return nil, err
    }
    tickets, err := r.ticketsByBooking(ctx, id)
    if err != nil {
        return nil, err
    }
    return &BookingWithItems{Booking: b, Items: items, Tickets: tickets}, nil
}

func (r *BookingRepo) itemsByBooking(ctx context.Context, bookingID string) ([]model.BookingItem, error) {
    const q = `SELECT id, booking_id, showtime_id, seat_id, seat_label, seat_type, price_minor, status
               FROM booking_items WHERE booking_id = ? ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var items []model.BookingItem
    for rows.Next() {
        var it model.BookingItem
        if err := rows.Scan(&it.ID, &it.BookingID, &it.ShowtimeID, &it.SeatID, &it.SeatLabel, &it.SeatType, &it.PriceMinor, &it.Status); err != nil {
            return nil, err
        }
        items = append(items, it)
    }
    return items, rows.Err()
}

func (r *BookingRepo) ticketsByBooking(ctx context.Context, bookingID string) ([]model.Ticket, error) {
    const q = `SELECT t.id, t.booking_item_id, t.code, t.issued_at
               FROM tickets t
               JOIN booking_items bi ON bi.id = t.booking_item_id
               WHERE bi.booking_id = ? ORDER BY t.id`
    rows, err := r.db.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var tickets []model.Ticket
    for rows.Next() {
        var t model.Ticket
        if err := rows.Scan(&t.ID, &t.BookingItemID, &t.Code, &t.IssuedAt); err != nil {
            return nil, err
        }
        tickets = append(tickets, t)
    }
    return tickets, rows.Err()
}

// Confirm promotes a Pending booking to Confirmed, confirms every
// item and issues one ticket per item inside a single transaction.
// Returns ErrConflict when the booking exists but is not Pending (the
// caller decides whether an already-Confirmed booking is a no-op
// success) and ErrNotFound when it does not exist.
func (r *BookingRepo) Confirm(ctx context.Context, bookingID string) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET status = 'CONFIRMED', updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'PENDING'`,
        bookingID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return r.statusConflict(ctx, tx, bookingID)
    }

    if _, err = tx.ExecContext(ctx,
        `UPDATE booking_items SET status = 'CONFIRMED' WHERE booking_id = ? AND status = 'PENDING'`,
        bookingID); err != nil {
        return err
    }

    // One ticket per item, fresh unique codes, retried per item on the
    // rare code collision.
    rows, err := tx.QueryContext(ctx, `SELECT id FROM booking_items WHERE booking_id = ? ORDER BY id`, bookingID)
    if err != nil {
        return err
    }
    var itemIDs []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            rows.Close()
            return err
        }
        itemIDs = append(itemIDs, id)
    }
    if err := rows.Close(); err != nil {
        return err
    }
    for _, itemID := range itemIDs {
        if err := r.insertTicketTx(ctx, tx, itemID); err != nil {
            return err
        }
    }

    if err = tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

func (r *BookingRepo) insertTicketTx(ctx context.Context, tx *sql.Tx, itemID uint64) error {
    for attempt := 0; attempt < 5; attempt++ {
        code, err := randomCode("TK-", 6)
        if err != nil {
            return err
        }
        _, err = tx.ExecContext(ctx,
            `INSERT INTO tickets (booking_item_id, code, issued_at) VALUES (?, ?, UTC_TIMESTAMP())`,
            itemID, code)
        if err == nil {
            return nil
        }
        if !isDuplicate(err) {
            return err
        }
    }
    return errors.New("could not generate a unique ticket code")
}

// ExtendHold pushes the hold window of a Pending booking to the given
// instant, covering the external payment round trip.  Returns false
// when the booking is no longer Pending.
func (r *BookingRepo) ExtendHold(ctx context.Context, bookingID string, until time.Time) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET hold_expires_at = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'PENDING'`,
        until.UTC().Format("2006-01-02 15:04:05"), bookingID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// Cancel marks a Pending booking and its items Canceled.  Returns
// ErrConflict when the booking is in any other state and ErrNotFound
// when it does not exist.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID string) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET status = 'CANCELED', updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'PENDING'`,
        bookingID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return r.statusConflict(ctx, tx, bookingID)
    }
    if _, err = tx.ExecContext(ctx,
        `UPDATE booking_items SET status = 'CANCELED' WHERE booking_id = ? AND status = 'PENDING'`,
        bookingID); err != nil {
        return err
    }
    if err = tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// MarkRefunding flips an Expired or Canceled booking into Refunding,
// used when a verified payment arrives for a booking that no longer
// exists as a reservation.  The caller (Orchestrator.Confirm) has
// already moved an overdue Pending row into Expired before rejecting,
// so the guard here always finds a terminal row to flip.
func (r *BookingRepo) MarkRefunding(ctx context.Context, bookingID string) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET status = 'REFUNDING', updated_at = UTC_TIMESTAMP() WHERE id = ? AND status IN ('EXPIRED', 'CANCELED')`,
        bookingID)
    return err
}

// Expire marks a single Pending booking and its items Expired.  The
// confirm path calls it when it finds the hold window elapsed, so the
// durable row turns terminal immediately instead of waiting for the
// sweep.  Returns ErrConflict when the booking is in any other state
// and ErrNotFound when it does not exist.
func (r *BookingRepo) Expire(ctx context.Context, bookingID string) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET status = 'EXPIRED', updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'PENDING'`,
        bookingID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return r.statusConflict(ctx, tx, bookingID)
    }
    if _, err = tx.ExecContext(ctx,
        `UPDATE booking_items SET status = 'EXPIRED' WHERE booking_id = ? AND status = 'PENDING'`,
        bookingID); err != nil {
        return err
    }
    if err = tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// statusConflict distinguishes "not found" from "wrong state" after a
// guarded UPDATE affected zero rows.
func (r *BookingRepo) statusConflict(ctx context.Context, tx *sql.Tx, bookingID string) error {
    var status string
    err := tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, bookingID).Scan(&status)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    if err != nil {
        return err
    }
    return fmt.Errorf("%w: booking is %s", ErrConflict, status)
}

// ExpireOverdue flips Pending bookings whose hold window elapsed into
// Expired and returns them so leftover seat leases can be released.
func (r *BookingRepo) ExpireOverdue(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
    const q = `SELECT id, showtime_id, hold_expires_at FROM bookings
               WHERE status = 'PENDING' AND hold_expires_at <= ?
               ORDER BY hold_expires_at LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), limit)
    if err != nil {
        return nil, err
    }
    var overdue []model.Booking
    for rows.Next() {
        var b model.Booking
        if err := rows.Scan(&b.ID, &b.ShowtimeID, &b.HoldExpiresAt); err != nil {
            rows.Close()
            return nil, err
        }
        overdue = append(overdue, b)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }

    for i := range overdue {
        tx, err := r.db.BeginTx(ctx, nil)
        if err != nil {
            return nil, err
        }
        res, err := tx.ExecContext(ctx,
            `UPDATE bookings SET status = 'EXPIRED', updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'PENDING'`,
            overdue[i].ID)
        if err != nil {
            _ = tx.Rollback()
            return nil, err
        }
        if n, _ := res.RowsAffected(); n == 0 {
            // Confirmed or canceled since the select; skip it.
            _ = tx.Rollback()
            overdue[i].ID = ""
            continue
        }
        if _, err = tx.ExecContext(ctx,
            `UPDATE booking_items SET status = 'EXPIRED' WHERE booking_id = ? AND status = 'PENDING'`,
            overdue[i].ID); err != nil {
            _ = tx.Rollback()
            return nil, err
        }
        if err = tx.Commit(); err != nil {
            return nil, err
        }
    }

    expired := overdue[:0]
    for _, b := range overdue {
        if b.ID != "" {
            expired = append(expired, b)
        }
    }
    return expired, nil
}

// SeatsBlocked returns the seat IDs of the showtime that are tied to a
// blocking booking item (Pending or Confirmed).
func (r *BookingRepo) SeatsBlocked(ctx context.Context, showtimeID uint64) ([]uint64, error) {
    const q = `SELECT seat_id FROM booking_items
               WHERE showtime_id = ? AND status IN ('PENDING', 'CONFIRMED')`
    rows, err := r.db.QueryContext(ctx, q, showtimeID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seatIDs []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        seatIDs = append(seatIDs, id)
    }
    return seatIDs, rows.Err()
}

// ListByUser returns the user's bookings, most recent first, with
// items and tickets.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingWithItems, error) {
    const q = `SELECT id FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    var ids []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            rows.Close()
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    out := make([]BookingWithItems, 0, len(ids))
    for _, id := range ids {
        b, err := r.GetByID(ctx, id)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    return out, nil
}

// randomCode returns prefix plus n random bytes encoded in the
// unambiguous base32 alphabet.
func randomCode(prefix string, n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return prefix + strings.ToUpper(codeEncoding.EncodeToString(buf)), nil
}
