// Package router wires HTTP routes to their handlers and middleware.
package router

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/config"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/handler"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/middleware"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
    Auth        *handler.AuthHandler
    Catalog     *handler.CatalogHandler
    Reservation *handler.ReservationHandler
    Payment     *handler.PaymentHandler
}

// Register mounts all routes on the Echo instance.
//
// Route groups and their identity requirements:
//   - /healthz and /v1/auth/* are open.
//   - catalog reads are open; the showtime detail is response-cached.
//   - the reservation flow accepts either a JWT or a guest token; the
//     OwnerKey middleware turns whichever is present into the lease
//     owner key.
//   - the booking list requires a full login since only accounts have
//     durable history.
//   - the payment callbacks are open: the gateway authenticates itself
//     through the HMAC signature, not a session.
func Register(e *echo.Echo, cfg config.Config, h Handlers, rdb *redis.Client) {
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    e.GET("/healthz", handler.Health)

    auth := e.Group("/v1/auth")
    auth.POST("/register", h.Auth.Register)
    auth.POST("/login", h.Auth.Login)

    me := e.Group("/v1")
    me.Use(middleware.JWTAuth(cfg.JWTSecret))
    me.GET("/me", h.Auth.Me)
    me.GET("/bookings", h.Reservation.ListBookings)

    cached := e.Group("/v1")
    cached.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
    cached.GET("/showtimes/:id", h.Catalog.GetShowtime)

    // The seat map is deliberately uncached: held seats change every
    // few seconds.
    e.GET("/v1/showtimes/:id/seats", h.Catalog.GetShowtimeSeats)

    flow := e.Group("/v1")
    flow.Use(middleware.OptionalJWTAuth(cfg.JWTSecret))
    flow.Use(middleware.OwnerKey())
    flow.POST("/showtimes/:id/locks", h.Reservation.LockSeats)
    flow.DELETE("/showtimes/:id/locks", h.Reservation.UnlockSeats)
    flow.GET("/showtimes/:id/seats/token", h.Catalog.SeatChannelToken)
    flow.POST("/bookings", h.Reservation.CreateBooking)
    flow.GET("/bookings/:id", h.Reservation.GetBooking)
    flow.POST("/bookings/:id/pay", h.Reservation.StartPayment)
    flow.DELETE("/bookings/:id", h.Reservation.CancelBooking)

    e.GET("/v1/payments/return", h.Payment.Return)
    e.GET("/v1/payments/ipn", h.Payment.IPN)
}
