package booking

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/draft"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/pricing"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
)

// Catalog is the read-only slice of the durable store the orchestrator
// needs for validation.
type Catalog interface {
    ShowtimeByID(ctx context.Context, id uint64) (*model.ShowtimeDetail, error)
    SeatsByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error)
}

// Bookings is the durable booking sink.  CreateWithItems carries the
// conflict-checked insert that arbitrates racing drafts.
type Bookings interface {
    NewBookingCode(ctx context.Context) (string, error)
    CreateWithItems(ctx context.Context, b *model.Booking, items []model.BookingItem) error
    GetByID(ctx context.Context, id string) (*repository.BookingWithItems, error)
    Confirm(ctx context.Context, id string) error
    Cancel(ctx context.Context, id string) error
    Expire(ctx context.Context, id string) error
    ExtendHold(ctx context.Context, id string, until time.Time) (bool, error)
}

// Drafts is the ephemeral draft store.
type Drafts interface {
    Create(ctx context.Context, d *draft.Draft, ttl time.Duration) error
    Get(ctx context.Context, id string) (*draft.Draft, error)
    Delete(ctx context.Context, id string) error
    Extend(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// Locks is the seat lock manager slice used here.
type Locks interface {
    ExtendSeats(ctx context.Context, showtimeID uint64, owner string, seatIDs []uint64, ttl time.Duration) ([]uint64, error)
    UnlockSeats(ctx context.Context, showtimeID uint64, owner string, seatIDs []uint64) ([]uint64, error)
}

// Quoter prices a seat selection for a showtime.
type Quoter interface {
    QuoteSeats(ctx context.Context, st *model.ShowtimeDetail, seats []model.Seat) ([]pricing.Quote, error)
}

// Payments records payment attempts initiated for bookings.
type Payments interface {
    Create(ctx context.Context, p *model.Payment) error
}

// ConfirmedPublisher emits the booking-confirmed side effect.  It is
// best effort; failures are logged and swallowed.
type ConfirmedPublisher interface {
    PublishBookingConfirmed(ctx context.Context, b *repository.BookingWithItems, st *model.ShowtimeDetail) error
}

// Options tunes the orchestrator's TTL regimes.
type Options struct {
    HoldTTL    time.Duration // initial draft/hold window, e.g. 3m
    PaymentTTL time.Duration // extended window covering the gateway round trip, e.g. 10m
}

// Orchestrator drives the reservation state machine.  It holds no
// in-process mutable reservation state: every decision re-reads the
// lease store, the draft store or the durable store, and correctness
// under concurrent callers comes from those stores' atomic semantics.
type Orchestrator struct {
    catalog   Catalog
    bookings  Bookings
    drafts    Drafts
    locks     Locks
    quoter    Quoter
    payments  Payments
    publisher ConfirmedPublisher
    opts      Options
    log       *logrus.Logger
}

// NewOrchestrator wires the orchestrator.  publisher may be nil.
func NewOrchestrator(catalog Catalog, bookings Bookings, drafts Drafts, locks Locks, quoter Quoter, payments Payments, publisher ConfirmedPublisher, opts Options, log *logrus.Logger) *Orchestrator {
    if opts.HoldTTL <= 0 {
        opts.HoldTTL = 3 * time.Minute
    }
    if opts.PaymentTTL <= 0 {
        opts.PaymentTTL = 10 * time.Minute
    }
    return &Orchestrator{
        catalog: catalog, bookings: bookings, drafts: drafts, locks: locks,
        quoter: quoter, payments: payments, publisher: publisher, opts: opts, log: log,
    }
}

// CreateInput carries everything needed to turn a seat selection into
// a priced draft plus its Pending durable booking.
type CreateInput struct {
    OwnerKey   string
    UserID     *uint64
    ShowtimeID uint64
    SeatIDs    []uint64
    Contact    string
}

// CreateResult is returned to the client after draft creation.
type CreateResult struct {
    Booking *repository.BookingWithItems
    Draft   *draft.Draft
}

// Create validates the selection, prices it, and persists the Pending
// booking plus the ephemeral draft.  The durable insert is the
// authoritative anti-double-sell gate: when two requests race for a
// seat, exactly one insert succeeds and the loser gets ErrSeatConflict
// with no lease or draft state mutated.
func (o *Orchestrator) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
    if len(in.SeatIDs) == 0 {
        return nil, ErrNoSeats
    }
    seatIDs := dedup(in.SeatIDs)

    st, err := o.catalog.ShowtimeByID(ctx, in.ShowtimeID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrShowtimeNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load showtime: %w", err)
    }
    if st.HasStarted(time.Now()) {
        return nil, ErrShowtimeStarted
    }

    seats, err := o.catalog.SeatsByIDs(ctx, seatIDs)
    if err != nil {
        return nil, fmt.Errorf("load seats: %w", err)
    }
    if len(seats) != len(seatIDs) {
        return nil, ErrUnknownSeat
    }
    for _, s := range seats {
        if s.RoomID != st.RoomID {
            return nil, fmt.Errorf("%w: seat %d", ErrSeatWrongRoom, s.ID)
        }
        if !s.IsActive {
            return nil, fmt.Errorf("%w: seat %d", ErrSeatInactive, s.ID)
        }
    }

    quotes, err := o.quoter.QuoteSeats(ctx, st, seats)
    if err != nil {
        return nil, fmt.Errorf("quote seats: %w", err)
    }

    code, err := o.bookings.NewBookingCode(ctx)
    if err != nil {
        return nil, fmt.Errorf("generate booking code: %w", err)
    }

    now := time.Now().UTC()
    b := &model.Booking{
        ID:            uuid.NewString(),
        Code:          code,
        UserID:        in.UserID,
        OwnerKey:      in.OwnerKey,
        ShowtimeID:    st.ID,
        Status:        model.BookingPending,
        Currency:      st.Currency,
        Contact:       in.Contact,
        HoldExpiresAt: now.Add(o.opts.HoldTTL),
    }
    seatByID := make(map[uint64]model.Seat, len(seats))
    for _, s := range seats {
        seatByID[s.ID] = s
    }
    items := make([]model.BookingItem, 0, len(quotes))
    for _, q := range quotes {
        b.TotalMinor += q.PriceMinor
        items = append(items, model.BookingItem{
            BookingID:  b.ID,
            ShowtimeID: st.ID,
            SeatID:     q.SeatID,
            SeatLabel:  seatByID[q.SeatID].Label(),
            SeatType:   q.SeatType,
            PriceMinor: q.PriceMinor,
            Status:     model.BookingPending,
        })
    }

    if err := o.bookings.CreateWithItems(ctx, b, items); err != nil {
        if errors.Is(err, repository.ErrSeatTaken) {
            return nil, ErrSeatConflict
        }
        return nil, fmt.Errorf("persist booking: %w", err)
    }

    d := &draft.Draft{
        ID:         b.ID,
        OwnerKey:   in.OwnerKey,
        UserID:     in.UserID,
        ShowtimeID: st.ID,
        Currency:   st.Currency,
        Contact:    in.Contact,
        CreatedAt:  now,
    }
    for _, q := range quotes {
        d.SeatIDs = append(d.SeatIDs, q.SeatID)
        d.UnitPrices = append(d.UnitPrices, q.PriceMinor)
        d.TotalMinor += q.PriceMinor
    }
    if err := o.drafts.Create(ctx, d, o.opts.HoldTTL); err != nil {
        // The durable row exists but the draft does not; roll the
        // booking back so the seats free up instead of dangling.
        if cancelErr := o.bookings.Cancel(ctx, b.ID); cancelErr != nil {
            o.log.WithError(cancelErr).WithField("booking_id", b.ID).
                Error("rollback after draft create failure also failed")
        }
        return nil, fmt.Errorf("store draft: %w", err)
    }

    stored, err := o.bookings.GetByID(ctx, b.ID)
    if err != nil {
        return nil, fmt.Errorf("reload booking: %w", err)
    }
    return &CreateResult{Booking: stored, Draft: d}, nil
}

// StartPayment moves a Pending booking into its payment window.  The
// seat leases, the draft TTL and the durable hold window are all
// extended to cover the gateway round trip; each extension is best
// effort and a failure is logged, not returned; the confirm step
// detects a lost hold on its own and fails closed.
//
// It returns the created payment record; the handler builds the
// gateway redirect URL from it.
func (o *Orchestrator) StartPayment(ctx context.Context, bookingID, ownerKey string) (*model.Payment, error) {
    bw, err := o.bookings.GetByID(ctx, bookingID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load booking: %w", err)
    }
    if bw.Booking.OwnerKey != ownerKey {
        return nil, ErrNotOwner
    }
    if bw.Booking.Status != model.BookingPending {
        return nil, fmt.Errorf("%w: %s", ErrNotPending, bw.Booking.Status)
    }

    p := &model.Payment{
        ID:          uuid.NewString(),
        BookingID:   bw.Booking.ID,
        AmountMinor: bw.Booking.TotalMinor,
        Currency:    bw.Booking.Currency,
        Status:      model.PaymentInitiated,
    }
    if err := o.payments.Create(ctx, p); err != nil {
        return nil, fmt.Errorf("create payment: %w", err)
    }

    seatIDs := make([]uint64, 0, len(bw.Items))
    for _, it := range bw.Items {
        seatIDs = append(seatIDs, it.SeatID)
    }
    until := time.Now().UTC().Add(o.opts.PaymentTTL)

    if extended, err := o.locks.ExtendSeats(ctx, bw.Booking.ShowtimeID, ownerKey, seatIDs, o.opts.PaymentTTL); err != nil {
        o.log.WithError(err).WithField("booking_id", bookingID).Warn("seat lease extension failed")
    } else if len(extended) != len(seatIDs) {
        o.log.WithFields(logrus.Fields{
            "booking_id": bookingID,
            "requested":  len(seatIDs),
            "extended":   len(extended),
        }).Warn("some seat leases were not extended")
    }

    if ok, err := o.drafts.Extend(ctx, bookingID, o.opts.PaymentTTL); err != nil {
        o.log.WithError(err).WithField("booking_id", bookingID).Warn("draft TTL extension failed")
    } else if !ok {
        o.log.WithField("booking_id", bookingID).Warn("draft gone before payment start")
    }

    if ok, err := o.bookings.ExtendHold(ctx, bookingID, until); err != nil {
        o.log.WithError(err).WithField("booking_id", bookingID).Warn("hold window extension failed")
    } else if !ok {
        o.log.WithField("booking_id", bookingID).Warn("booking no longer pending while starting payment")
    }

    return p, nil
}

// Confirm promotes a Pending booking into a Confirmed one: items
// confirmed, one ticket issued per item, leases released, draft gone.
// Confirming an already-Confirmed booking is a no-op success returning
// the existing booking unchanged; duplicate payment notifications
// must not mint duplicate tickets.  A booking whose hold window has
// elapsed is rejected, never resurrected.
func (o *Orchestrator) Confirm(ctx context.Context, bookingID string) (*repository.BookingWithItems, error) {
    bw, err := o.bookings.GetByID(ctx, bookingID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load booking: %w", err)
    }

    switch bw.Booking.Status {
    case model.BookingConfirmed:
        return bw, nil // idempotent
    case model.BookingPending:
        // fall through
    default:
        return nil, fmt.Errorf("%w: %s", ErrNotPending, bw.Booking.Status)
    }

    if time.Now().UTC().After(bw.Booking.HoldExpiresAt) {
        // Turn the overdue row terminal now rather than waiting for
        // the sweep, so a late success callback finds an Expired
        // booking to flag for refund.
        if err := o.bookings.Expire(ctx, bookingID); err != nil {
            if errors.Is(err, repository.ErrConflict) {
                // Lost a race; a concurrent confirm may have won just
                // inside the window.
                fresh, gerr := o.bookings.GetByID(ctx, bookingID)
                if gerr == nil && fresh.Booking.Status == model.BookingConfirmed {
                    return fresh, nil
                }
            } else {
                o.log.WithError(err).WithField("booking_id", bookingID).Error("expire overdue booking failed")
            }
            return nil, ErrExpired
        }
        o.releaseReservation(ctx, bw)
        return nil, ErrExpired
    }

    if err := o.bookings.Confirm(ctx, bookingID); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            // Lost the race to a concurrent confirm; re-read and treat
            // an already-Confirmed booking as success.
            fresh, gerr := o.bookings.GetByID(ctx, bookingID)
            if gerr == nil && fresh.Booking.Status == model.BookingConfirmed {
                return fresh, nil
            }
            return nil, fmt.Errorf("%w: %v", ErrNotPending, err)
        }
        if errors.Is(err, repository.ErrNotFound) {
            return nil, ErrBookingNotFound
        }
        return nil, fmt.Errorf("confirm booking: %w", err)
    }

    o.releaseReservation(ctx, bw)

    fresh, err := o.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return nil, fmt.Errorf("reload booking: %w", err)
    }

    if o.publisher != nil {
        st, err := o.catalog.ShowtimeByID(ctx, fresh.Booking.ShowtimeID)
        if err != nil {
            o.log.WithError(err).Warn("showtime lookup for confirmed event failed")
        } else if err := o.publisher.PublishBookingConfirmed(ctx, fresh, st); err != nil {
            o.log.WithError(err).WithField("booking_id", bookingID).Warn("booking confirmed event publish failed")
        }
    }

    return fresh, nil
}

// Cancel aborts a Pending booking on behalf of its owner and frees its
// seats.  Canceling a booking in any other state is a conflict.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID, ownerKey string) error {
    bw, err := o.bookings.GetByID(ctx, bookingID)
    if errors.Is(err, repository.ErrNotFound) {
        return ErrBookingNotFound
    }
    if err != nil {
        return fmt.Errorf("load booking: %w", err)
    }
    if bw.Booking.OwnerKey != ownerKey {
        return ErrNotOwner
    }

    if err := o.bookings.Cancel(ctx, bookingID); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return fmt.Errorf("%w: %v", ErrNotPending, err)
        }
        if errors.Is(err, repository.ErrNotFound) {
            return ErrBookingNotFound
        }
        return fmt.Errorf("cancel booking: %w", err)
    }

    o.releaseReservation(ctx, bw)
    return nil
}

// releaseReservation unlocks the booking's seats and deletes its
// draft.  The durable row is the source of truth by now, so failures
// here are logged and swallowed; leftover leases expire on their own.
func (o *Orchestrator) releaseReservation(ctx context.Context, bw *repository.BookingWithItems) {
    seatIDs := make([]uint64, 0, len(bw.Items))
    for _, it := range bw.Items {
        seatIDs = append(seatIDs, it.SeatID)
    }
    if _, err := o.locks.UnlockSeats(ctx, bw.Booking.ShowtimeID, bw.Booking.OwnerKey, seatIDs); err != nil {
        o.log.WithError(err).WithField("booking_id", bw.Booking.ID).Warn("seat unlock failed")
    }
    if err := o.drafts.Delete(ctx, bw.Booking.ID); err != nil {
        o.log.WithError(err).WithField("booking_id", bw.Booking.ID).Warn("draft delete failed")
    }
}

// dedup preserves first-seen order while dropping zero and repeated
// seat IDs.
func dedup(ids []uint64) []uint64 {
    seen := make(map[uint64]struct{}, len(ids))
    out := make([]uint64, 0, len(ids))
    for _, id := range ids {
        if id == 0 {
            continue
        }
        if _, ok := seen[id]; ok {
            continue
        }
        seen[id] = struct{}{}
        out = append(out, id)
    }
    return out
}
