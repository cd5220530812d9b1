// Command server runs the seat reservation API, the booking event
// consumer and the hold-expiry worker.
package main

import (
    "github.com/hibiken/asynq"
    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/sirupsen/logrus"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/booking"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/config"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/database"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/draft"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/handler"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/lease"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/notify"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/payment"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/pricing"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/queue"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/router"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/seatlock"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/worker"
)

func main() {
    _ = godotenv.Load()

    log := logrus.New()
    log.SetFormatter(&logrus.JSONFormatter{})

    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.WithError(err).Fatal("mysql connection failed")
    }
    defer db.Close()

    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Fatal("redis connection failed")
    }

    // Repositories over the durable store.
    users := repository.NewUserRepo(db)
    catalog := repository.NewCatalogRepo(db)
    rules := repository.NewPriceRuleRepo(db)
    bookings := repository.NewBookingRepo(db)
    payments := repository.NewPaymentRepo(db)

    // Ephemeral stores and the lock manager.
    leases := lease.NewStore(rdb)
    drafts := draft.NewStore(rdb)

    var (
        broadcaster seatlock.Broadcaster
        tokens      handler.ChannelTokenGranter
    )
    if cfg.PubNub.PublishKey != "" {
        pn, err := notify.NewPubNubBroadcaster(notify.PubNubConfig(cfg.PubNub))
        if err != nil {
            log.WithError(err).Fatal("pubnub setup failed")
        }
        broadcaster = pn
        tokens = pn
    } else {
        log.Warn("seat broadcast disabled: no PubNub keys configured")
    }
    locks := seatlock.NewManager(leases, broadcaster, log)

    prices := pricing.NewResolver(rules)
    publisher := notify.NewRabbitPublisher(cfg.AmqpURL)

    orch := booking.NewOrchestrator(catalog, bookings, drafts, locks, prices, payments, publisher, booking.Options{
        HoldTTL:    cfg.HoldTTL,
        PaymentTTL: cfg.PaymentTTL,
    }, log)

    gateway := payment.NewGateway(payment.GatewayConfig(cfg.Gateway))
    reconciler := payment.NewReconciler(gateway, payments, orch, bookings, log)

    // Background jobs share the Redis instance with the lease store.
    redisOpt := asynq.RedisClientOpt{Addr: rdb.Options().Addr, Password: rdb.Options().Password, DB: rdb.Options().DB}
    sweeper := worker.NewExpirySweeper(bookings, locks, drafts, log)
    go func() {
        if err := worker.Run(redisOpt, sweeper, log); err != nil {
            log.WithError(err).Error("expiry worker stopped")
        }
    }()
    go queue.StartBookingConsumer(cfg.AmqpURL, log)

    e := echo.New()
    e.HideBanner = true
    e.Use(echomw.Recover())
    e.Use(echomw.RequestID())

    router.Register(e, cfg, router.Handlers{
        Auth:        handler.NewAuthHandler(cfg, users),
        Catalog:     handler.NewCatalogHandler(catalog, bookings, locks, prices, tokens, log),
        Reservation: handler.NewReservationHandler(cfg, locks, orch, bookings, catalog, gateway),
        Payment:     handler.NewPaymentHandler(reconciler),
    }, rdb)

    addr := ":" + cfg.Port
    log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
    if err := e.Start(addr); err != nil {
        log.WithError(err).Fatal("server stopped")
    }
}
