package handler

import (
    "encoding/json"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/booking"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/config"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/seatlock"
)

// ReservationHandler drives the customer reservation flow: locking
// seats while picking, creating the priced draft booking, starting the
// payment and cancelling.  All state decisions live in the seat lock
// manager and the orchestrator; this layer only translates HTTP.
type ReservationHandler struct {
    Cfg      config.Config
    Locks    *seatlock.Manager
    Orch     *booking.Orchestrator
    Bookings *repository.BookingRepo
    Catalog  *repository.CatalogRepo
    Redirect RedirectBuilder
}

// RedirectBuilder builds the hosted-checkout URL for a payment;
// satisfied by *payment.Gateway.
type RedirectBuilder interface {
    BuildRedirectURL(reference string, amountMinor int64, currency, description, clientIP string, now time.Time) string
}

func NewReservationHandler(cfg config.Config, locks *seatlock.Manager, orch *booking.Orchestrator, bookings *repository.BookingRepo, catalog *repository.CatalogRepo, redirect RedirectBuilder) *ReservationHandler {
    if locks == nil || orch == nil || bookings == nil || catalog == nil || redirect == nil {
        panic("nil dependency passed to NewReservationHandler")
    }
    return &ReservationHandler{Cfg: cfg, Locks: locks, Orch: orch, Bookings: bookings, Catalog: catalog, Redirect: redirect}
}

// LockSeats handles POST /v1/showtimes/:id/locks.  It tries to lease
// every requested seat for the caller's owner key.  Seats already held
// by someone else are reported back as unavailable; the caller decides
// whether a partial result is good enough or releases and picks again.
func (h *ReservationHandler) LockSeats(c echo.Context) error {
    ownerKey, err := getOwnerKey(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing identity"})
    }
    showtimeID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    var body struct {
        SeatIDs []uint64 `json:"seat_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    seatIDs := dedupIDs(body.SeatIDs)
    if len(seatIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
    }
    ctx := c.Request().Context()

    st, err := h.Catalog.ShowtimeByID(ctx, showtimeID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if st.HasStarted(time.Now()) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "showtime already started"})
    }

    locked, expiresAt, err := h.Locks.LockSeats(ctx, showtimeID, ownerKey, seatIDs, h.Cfg.LockTTL)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock seats"})
    }
    unavailable := diffIDs(seatIDs, locked)
    status := http.StatusCreated
    if len(locked) == 0 {
        status = http.StatusConflict
    }
    return c.JSON(status, echo.Map{
        "locked":      locked,
        "unavailable": unavailable,
        "expires_at":  expiresAt.Format(time.RFC3339),
    })
}

// UnlockSeats handles DELETE /v1/showtimes/:id/locks.  It releases the
// caller's leases on the listed seats; other owners' leases are never
// touched.
func (h *ReservationHandler) UnlockSeats(c echo.Context) error {
    ownerKey, err := getOwnerKey(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing identity"})
    }
    showtimeID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    var body struct {
        SeatIDs []uint64 `json:"seat_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    seatIDs := dedupIDs(body.SeatIDs)
    if len(seatIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
    }
    released, err := h.Locks.UnlockSeats(c.Request().Context(), showtimeID, ownerKey, seatIDs)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
    }
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// CreateBooking handles POST /v1/bookings.  It turns the caller's seat
// selection into a priced draft plus its Pending durable booking.
func (h *ReservationHandler) CreateBooking(c echo.Context) error {
    ownerKey, err := getOwnerKey(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing identity"})
    }
    var body struct {
        ShowtimeID uint64          `json:"showtime_id"`
        SeatIDs    []uint64        `json:"seat_ids"`
        Contact    json.RawMessage `json:"contact"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.ShowtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
    }

    res, err := h.Orch.Create(c.Request().Context(), booking.CreateInput{
        OwnerKey:   ownerKey,
        UserID:     optionalUserID(c),
        ShowtimeID: body.ShowtimeID,
        SeatIDs:    body.SeatIDs,
        Contact:    string(body.Contact),
    })
    if err != nil {
        return bookingError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "booking":    bookingView(res.Booking),
        "expires_at": res.Booking.Booking.HoldExpiresAt.Format(time.RFC3339),
    })
}

// StartPayment handles POST /v1/bookings/:id/pay.  It extends the hold
// window to cover the gateway round trip and returns the redirect URL
// for the hosted checkout page.
func (h *ReservationHandler) StartPayment(c echo.Context) error {
    ownerKey, err := getOwnerKey(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing identity"})
    }
    bookingID := c.Param("id")
    if bookingID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }

    p, err := h.Orch.StartPayment(c.Request().Context(), bookingID, ownerKey)
    if err != nil {
        return bookingError(c, err)
    }

    bw, err := h.Bookings.GetByID(c.Request().Context(), bookingID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reload booking"})
    }
    redirect := h.Redirect.BuildRedirectURL(
        p.ID, p.AmountMinor, p.Currency,
        "booking "+bw.Booking.Code,
        c.RealIP(), time.Now().UTC(),
    )
    return c.JSON(http.StatusCreated, echo.Map{
        "payment_id":   p.ID,
        "amount_minor": p.AmountMinor,
        "currency":     p.Currency,
        "redirect_url": redirect,
    })
}

// CancelBooking handles DELETE /v1/bookings/:id.
func (h *ReservationHandler) CancelBooking(c echo.Context) error {
    ownerKey, err := getOwnerKey(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing identity"})
    }
    bookingID := c.Param("id")
    if bookingID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    if err := h.Orch.Cancel(c.Request().Context(), bookingID, ownerKey); err != nil {
        return bookingError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// GetBooking handles GET /v1/bookings/:id.  Access requires either the
// booking's owner key or the owning account.
func (h *ReservationHandler) GetBooking(c echo.Context) error {
    bookingID := c.Param("id")
    if bookingID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    bw, err := h.Bookings.GetByID(c.Request().Context(), bookingID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if !h.mayAccess(c, bw) {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusOK, echo.Map{"item": bookingView(bw)})
}

// ListBookings handles GET /v1/bookings.  It lists the authenticated
// user's bookings; guests have no durable history to list.
func (h *ReservationHandler) ListBookings(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
    }
    out := make([]echo.Map, 0, len(items))
    for i := range items {
        out = append(out, bookingView(&items[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *ReservationHandler) mayAccess(c echo.Context, bw *repository.BookingWithItems) bool {
    if key, err := getOwnerKey(c); err == nil && key == bw.Booking.OwnerKey {
        return true
    }
    if uid, err := getUserID(c); err == nil && bw.Booking.UserID != nil && *bw.Booking.UserID == uid {
        return true
    }
    return false
}

// bookingView shapes a booking for JSON responses.
func bookingView(bw *repository.BookingWithItems) echo.Map {
    items := make([]echo.Map, 0, len(bw.Items))
    for _, it := range bw.Items {
        items = append(items, echo.Map{
            "seat_id":     it.SeatID,
            "seat_label":  it.SeatLabel,
            "seat_type":   it.SeatType,
            "price_minor": it.PriceMinor,
            "status":      it.Status,
        })
    }
    tickets := make([]echo.Map, 0, len(bw.Tickets))
    for _, tk := range bw.Tickets {
        tickets = append(tickets, echo.Map{
            "code":      tk.Code,
            "issued_at": tk.IssuedAt.UTC().Format(time.RFC3339),
        })
    }
    return echo.Map{
        "id":              bw.Booking.ID,
        "code":            bw.Booking.Code,
        "showtime_id":     bw.Booking.ShowtimeID,
        "status":          bw.Booking.Status,
        "total_minor":     bw.Booking.TotalMinor,
        "currency":        bw.Booking.Currency,
        "hold_expires_at": bw.Booking.HoldExpiresAt.UTC().Format(time.RFC3339),
        "items":           items,
        "tickets":         tickets,
    }
}

// bookingError maps orchestrator sentinels onto HTTP statuses.
func bookingError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, booking.ErrBookingNotFound),
        errors.Is(err, booking.ErrShowtimeNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrNotOwner):
        return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrSeatConflict),
        errors.Is(err, booking.ErrNotPending),
        errors.Is(err, booking.ErrExpired),
        errors.Is(err, booking.ErrShowtimeStarted):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrNoSeats),
        errors.Is(err, booking.ErrUnknownSeat),
        errors.Is(err, booking.ErrSeatInactive),
        errors.Is(err, booking.ErrSeatWrongRoom):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}

// dedupIDs drops zero and repeated IDs, keeping first-seen order.
func dedupIDs(ids []uint64) []uint64 {
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

// diffIDs returns the members of want missing from got.
func diffIDs(want, got []uint64) []uint64 {
    have := make(map[uint64]struct{}, len(got))
    for _, id := range got {
        have[id] = struct{}{}
    }
    out := make([]uint64, 0)
    for _, id := range want {
        if _, ok := have[id]; !ok {
            out = append(out, id)
        }
    }
    return out
}
