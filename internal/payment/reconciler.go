package payment

import (
    "context"
    "errors"
    "fmt"
    "net/url"
    "strconv"

    "github.com/sirupsen/logrus"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/booking"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
)

// Reconciler errors, surfaced to the callback handlers.
var (
    ErrBadSignature   = errors.New("invalid callback signature")
    ErrUnknownPayment = errors.New("callback references an unknown payment")
    ErrAmountMismatch = errors.New("callback amount does not match the payment")
)

// successCode is the provider's response code for a completed payment.
const successCode = "00"

// Payments is the payment persistence slice the reconciler needs.
type Payments interface {
    GetByID(ctx context.Context, id string) (*model.Payment, error)
    MarkSucceeded(ctx context.Context, id, providerRef string) (bool, error)
    MarkFailed(ctx context.Context, id, providerRef string) (bool, error)
    MarkRefund(ctx context.Context, id string, status model.PaymentStatus) error
    AppendEvent(ctx context.Context, ev *model.PaymentEvent) error
}

// Confirmer promotes a booking after a verified successful payment.
type Confirmer interface {
    Confirm(ctx context.Context, bookingID string) (*repository.BookingWithItems, error)
}

// RefundMarker flags a booking for refund when money arrived for a
// reservation that no longer exists.
type RefundMarker interface {
    MarkRefunding(ctx context.Context, bookingID string) error
}

// Verifier checks callback signatures; satisfied by *Gateway.
type Verifier interface {
    Verify(params url.Values) bool
}

// Outcome summarizes one processed callback for the handler.
type Outcome struct {
    Payment        *model.Payment
    Booking        *repository.BookingWithItems // nil unless confirmed by this or an earlier delivery
    Succeeded      bool
    RequiresRefund bool // success arrived after the booking expired
}

// Reconciler translates gateway callbacks into orchestrator
// transitions.  The user-redirect return and the server-to-server
// notification both funnel into Process, so duplicate and out-of-order
// deliveries are handled in exactly one place: the payment row's
// guarded status transition decides whether any business effect runs,
// and the orchestrator's idempotent Confirm absorbs the rest.
type Reconciler struct {
    gateway  Verifier
    payments Payments
    booker   Confirmer
    refunds  RefundMarker
    log      *logrus.Logger
}

// NewReconciler wires a Reconciler.
func NewReconciler(gateway Verifier, payments Payments, booker Confirmer, refunds RefundMarker, log *logrus.Logger) *Reconciler {
    return &Reconciler{gateway: gateway, payments: payments, booker: booker, refunds: refunds, log: log}
}

// Process handles one inbound callback.  kind labels the channel it
// arrived on ("return" or "ipn") for the audit log only; both channels
// share every other step.
func (r *Reconciler) Process(ctx context.Context, kind string, params url.Values) (*Outcome, error) {
    if !r.gateway.Verify(params) {
        return nil, ErrBadSignature
    }

    paymentID := params.Get("vnp_TxnRef")
    p, err := r.payments.GetByID(ctx, paymentID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrUnknownPayment
    }
    if err != nil {
        return nil, fmt.Errorf("load payment: %w", err)
    }

    // Audit first: every delivery is recorded verbatim, duplicates
    // included.  Appending twice is fine; re-applying the transition
    // below is not.
    ev := &model.PaymentEvent{PaymentID: p.ID, Kind: kind, Payload: params.Encode()}
    if err := r.payments.AppendEvent(ctx, ev); err != nil {
        return nil, fmt.Errorf("append payment event: %w", err)
    }

    wireAmount, err := strconv.ParseInt(params.Get("vnp_Amount"), 10, 64)
    if err != nil || wireAmount != p.AmountMinor*100 {
        return nil, ErrAmountMismatch
    }

    providerRef := params.Get("vnp_TransactionNo")
    code := params.Get("vnp_ResponseCode")

    if code != successCode {
        return r.processFailure(ctx, p, providerRef, code)
    }
    return r.processSuccess(ctx, p, providerRef)
}

func (r *Reconciler) processSuccess(ctx context.Context, p *model.Payment, providerRef string) (*Outcome, error) {
    transitioned, err := r.payments.MarkSucceeded(ctx, p.ID, providerRef)
    if err != nil {
        return nil, fmt.Errorf("mark payment succeeded: %w", err)
    }
    if !transitioned {
        // Duplicate delivery: the first one already ran the business
        // effect (or the payment terminally failed before success
        // arrived, which is a provider inconsistency we only log).
        if p.Status != model.PaymentSucceeded {
            r.log.WithFields(logrus.Fields{
                "payment_id": p.ID,
                "status":     p.Status,
            }).Warn("success callback for a payment in a terminal non-success state")
            return &Outcome{Payment: p}, nil
        }
        bw, err := r.booker.Confirm(ctx, p.BookingID)
        if err != nil {
            // Already handled by the first delivery; nothing to redo.
            r.log.WithError(err).WithField("booking_id", p.BookingID).
                Debug("confirm on duplicate delivery rejected")
            return &Outcome{Payment: p, Succeeded: true}, nil
        }
        return &Outcome{Payment: p, Booking: bw, Succeeded: true}, nil
    }

    bw, err := r.booker.Confirm(ctx, p.BookingID)
    if err != nil {
        switch {
        case isTerminalRejection(err):
            // Money arrived but the reservation is gone (expired or
            // canceled).  Never resurrect it; flag for refund instead.
            r.log.WithError(err).WithFields(logrus.Fields{
                "payment_id": p.ID,
                "booking_id": p.BookingID,
            }).Warn("verified payment for an unconfirmable booking")
            if rerr := r.refunds.MarkRefunding(ctx, p.BookingID); rerr != nil {
                r.log.WithError(rerr).WithField("booking_id", p.BookingID).Error("mark refunding failed")
            }
            if rerr := r.payments.MarkRefund(ctx, p.ID, model.PaymentRefunding); rerr != nil {
                r.log.WithError(rerr).WithField("payment_id", p.ID).Error("mark payment refunding failed")
            }
            return &Outcome{Payment: p, Succeeded: true, RequiresRefund: true}, nil
        default:
            return nil, fmt.Errorf("confirm booking: %w", err)
        }
    }
    return &Outcome{Payment: p, Booking: bw, Succeeded: true}, nil
}

func (r *Reconciler) processFailure(ctx context.Context, p *model.Payment, providerRef, code string) (*Outcome, error) {
    transitioned, err := r.payments.MarkFailed(ctx, p.ID, providerRef)
    if err != nil {
        return nil, fmt.Errorf("mark payment failed: %w", err)
    }
    if transitioned {
        r.log.WithFields(logrus.Fields{
            "payment_id":    p.ID,
            "response_code": code,
        }).Info("payment failed")
    }
    // Confirm is never called on failure; leases and draft simply
    // expire on their own TTLs.
    return &Outcome{Payment: p}, nil
}

// isTerminalRejection reports whether a confirm rejection means the
// booking can never be confirmed anymore.
func isTerminalRejection(err error) bool {
    return errors.Is(err, booking.ErrExpired) ||
        errors.Is(err, booking.ErrNotPending) ||
        errors.Is(err, booking.ErrBookingNotFound)
}
