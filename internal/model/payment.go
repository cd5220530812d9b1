package model

import "time"

// PaymentStatus is the lifecycle state of a payment attempt.
type PaymentStatus string

const (
    PaymentInitiated         PaymentStatus = "INITIATED"
    PaymentPending           PaymentStatus = "PENDING"
    PaymentSucceeded         PaymentStatus = "SUCCEEDED"
    PaymentFailed            PaymentStatus = "FAILED"
    PaymentCanceled          PaymentStatus = "CANCELED"
    PaymentRefunding         PaymentStatus = "REFUNDING"
    PaymentRefunded          PaymentStatus = "REFUNDED"
    PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// Payment tracks a single payment attempt against a booking.  The
// booking may still be a draft (unconfirmed Pending row) when gateway
// callbacks arrive, so BookingID is treated as an opaque reference.
//
// Fields:
//  ID          – primary key (UUID string), used as the gateway reference.
//  BookingID   – booking/draft this payment pays for.
//  AmountMinor – expected amount in minor currency units.
//  Currency    – ISO currency code.
//  Status      – lifecycle state.
//  ProviderRef – transaction reference assigned by the gateway, if any.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Payment struct {
    ID          string        // payments.id
    BookingID   string        // payments.booking_id
    AmountMinor int64         // payments.amount_minor
    Currency    string        // payments.currency
    Status      PaymentStatus // payments.status
    ProviderRef string        // payments.provider_ref
    CreatedAt   time.Time     // payments.created_at
    UpdatedAt   time.Time     // payments.updated_at
}

// PaymentEvent is one row of the append-only audit log.  Every inbound
// callback is recorded verbatim, including duplicates; replays append
// again rather than being dropped, so the log reflects actual delivery.
type PaymentEvent struct {
    ID        uint64    // payment_events.id
    PaymentID string    // payment_events.payment_id
    Kind      string    // payment_events.kind (e.g. "return", "ipn")
    Payload   string    // payment_events.payload (raw query string)
    CreatedAt time.Time // payment_events.created_at
}
