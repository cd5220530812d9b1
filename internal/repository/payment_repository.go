package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
)

// PaymentRepo manages payments and their append-only event log.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Create inserts a new payment row in Initiated state.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
    const q = `INSERT INTO payments (id, booking_id, amount_minor, currency, status)
               VALUES (?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q, p.ID, p.BookingID, p.AmountMinor, p.Currency, string(p.Status))
    if isDuplicate(err) {
        return ErrConflict
    }
    return err
}

// GetByID loads a payment.  Returns ErrNotFound for unknown IDs; the
// reconciler rejects callbacks that reference payments it never
// initiated.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
    const q = `SELECT id, booking_id, amount_minor, currency, status, provider_ref, created_at, updated_at
               FROM payments WHERE id = ?`
    var (
        p   model.Payment
        ref sql.NullString
    )
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &p.ID, &p.BookingID, &p.AmountMinor, &p.Currency, &p.Status, &ref, &p.CreatedAt, &p.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    p.ProviderRef = ref.String
    return &p, nil
}

// MarkSucceeded transitions the payment to Succeeded if it has not
// reached a terminal state yet.  The boolean reports whether this call
// performed the transition; a duplicate delivery gets false and must
// not re-apply downstream effects.
func (r *PaymentRepo) MarkSucceeded(ctx context.Context, id, providerRef string) (bool, error) {
    const q = `UPDATE payments SET status = 'SUCCEEDED', provider_ref = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND status IN ('INITIATED', 'PENDING')`
    res, err := r.db.ExecContext(ctx, q, providerRef, id)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// MarkFailed transitions the payment to Failed if it is still open.
func (r *PaymentRepo) MarkFailed(ctx context.Context, id, providerRef string) (bool, error) {
    const q = `UPDATE payments SET status = 'FAILED', provider_ref = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND status IN ('INITIATED', 'PENDING')`
    res, err := r.db.ExecContext(ctx, q, providerRef, id)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// MarkRefund moves a succeeded payment into the refund lane: Refunding
// when a late success callback flags it, Refunded once the money went
// back.  Only payments that actually succeeded can enter the lane.
func (r *PaymentRepo) MarkRefund(ctx context.Context, id string, status model.PaymentStatus) error {
    const q = `UPDATE payments SET status = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND status IN ('SUCCEEDED', 'REFUNDING')`
    _, err := r.db.ExecContext(ctx, q, string(status), id)
    return err
}

// AppendEvent records one inbound callback verbatim.  The log is
// append-only; duplicate deliveries append again so the log mirrors
// what was actually received.
func (r *PaymentRepo) AppendEvent(ctx context.Context, ev *model.PaymentEvent) error {
    const q = `INSERT INTO payment_events (payment_id, kind, payload) VALUES (?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q, ev.PaymentID, ev.Kind, ev.Payload)
    return err
}
