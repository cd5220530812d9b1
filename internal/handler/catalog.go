package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/notify"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/pricing"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/seatlock"
)

// Seat map status values returned to clients.
const (
    seatFree   = "FREE"
    seatHeld   = "HELD"
    seatBooked = "BOOKED"
)

// CatalogHandler serves the public browse endpoints: showtime details
// and the live seat map.  The seat map merges three sources: the seat
// layout from MySQL, booked seats from the durable booking items, and
// held seats from the lease store.  Booked wins over held when both
// claim a seat, since the durable store is the arbiter.
type CatalogHandler struct {
    Catalog  *repository.CatalogRepo
    Bookings *repository.BookingRepo
    Locks    *seatlock.Manager
    Prices   *pricing.Resolver
    Tokens   ChannelTokenGranter // nil when realtime updates are not configured
    Log      *logrus.Logger
}

// ChannelTokenGranter mints read tokens for the realtime seat
// channels; satisfied by *notify.PubNubBroadcaster.
type ChannelTokenGranter interface {
    GrantReadToken(ctx context.Context, clientID string) (string, error)
}

func NewCatalogHandler(catalog *repository.CatalogRepo, bookings *repository.BookingRepo, locks *seatlock.Manager, prices *pricing.Resolver, tokens ChannelTokenGranter, log *logrus.Logger) *CatalogHandler {
    if catalog == nil || bookings == nil || locks == nil || prices == nil {
        panic("nil dependency passed to NewCatalogHandler")
    }
    return &CatalogHandler{Catalog: catalog, Bookings: bookings, Locks: locks, Prices: prices, Tokens: tokens, Log: log}
}

// GetShowtime handles GET /v1/showtimes/:id.  It returns the showtime
// joined with its movie, room and cinema.
func (h *CatalogHandler) GetShowtime(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    st, err := h.Catalog.ShowtimeByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "id":          st.ID,
        "movie_title": st.MovieTitle,
        "cinema_id":   st.CinemaID,
        "cinema_name": st.CinemaName,
        "room_name":   st.RoomName,
        "starts_at":   st.StartsAt.UTC().Format(time.RFC3339),
        "currency":    st.Currency,
        "started":     st.HasStarted(time.Now()),
    })
}

// seatView is one seat in the rendered map.
type seatView struct {
    ID         uint64         `json:"id"`
    Label      string         `json:"label"`
    Type       model.SeatType `json:"type"`
    Status     string         `json:"status"`
    PriceMinor int64          `json:"price_minor"`
    IsActive   bool           `json:"is_active"`
}

// GetShowtimeSeats handles GET /v1/showtimes/:id/seats.  It renders the
// full seat map of the showtime's room with per-seat status and price.
// The held set comes from the lease store and is advisory; a Redis
// outage degrades held seats to FREE rather than failing the request,
// because the booking insert still rejects genuinely taken seats.
func (h *CatalogHandler) GetShowtimeSeats(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    ctx := c.Request().Context()

    st, err := h.Catalog.ShowtimeByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    seats, err := h.Catalog.SeatsByRoom(ctx, st.RoomID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
    }

    booked, err := h.Bookings.SeatsBlocked(ctx, st.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
    }
    bookedSet := make(map[uint64]struct{}, len(booked))
    for _, sid := range booked {
        bookedSet[sid] = struct{}{}
    }

    heldSet := make(map[uint64]struct{})
    if held, err := h.Locks.ListLocked(ctx, st.ID); err != nil {
        h.Log.WithError(err).WithField("showtime_id", st.ID).Warn("seat lease listing failed")
    } else {
        for _, sid := range held {
            heldSet[sid] = struct{}{}
        }
    }

    out := make([]seatView, 0, len(seats))
    for _, s := range seats {
        quote, err := h.Prices.QuoteSeat(ctx, st, s)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to price seats"})
        }
        status := seatFree
        if _, ok := bookedSet[s.ID]; ok {
            status = seatBooked
        } else if _, ok := heldSet[s.ID]; ok {
            status = seatHeld
        }
        out = append(out, seatView{
            ID:         s.ID,
            Label:      s.Label(),
            Type:       s.Type,
            Status:     status,
            PriceMinor: quote.PriceMinor,
            IsActive:   s.IsActive,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{
        "showtime_id": st.ID,
        "currency":    st.Currency,
        "seats":       out,
    })
}

// SeatChannelToken handles GET /v1/showtimes/:id/seats/token.  It
// mints a short-lived read token the client uses to subscribe to the
// showtime's realtime seat channel; the token is scoped to the
// caller's owner key.  Answers 503 when realtime updates are not
// configured, so the client falls back to polling the seat map.
func (h *CatalogHandler) SeatChannelToken(c echo.Context) error {
    ownerKey, err := getOwnerKey(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing identity"})
    }
    showtimeID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    if h.Tokens == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime updates are not available"})
    }
    token, err := h.Tokens.GrantReadToken(c.Request().Context(), ownerKey)
    if err != nil {
        h.Log.WithError(err).WithField("showtime_id", showtimeID).Error("seat channel token grant failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to grant channel token"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "token":   token,
        "channel": notify.SeatChannelName(showtimeID),
    })
}
