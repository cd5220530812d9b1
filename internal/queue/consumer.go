package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// BookingQueueName is the durable queue carrying confirmed-booking
// events.  The publisher declares the same queue, so whichever side
// starts first creates it.
const BookingQueueName = "booking.confirmed"

// StartBookingConsumer connects to the broker, declares the durable
// booking.confirmed queue and consumes it forever.  It runs a
// reconnect loop with exponential backoff; processing errors reject
// the offending message without requeueing so a poison message cannot
// spin the loop.  Intended to run in its own goroutine.
func StartBookingConsumer(url string, log *logrus.Logger) {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.WithError(err).Warnf("booking consumer: dial failed, retrying in %s", backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        if err := consumeLoop(conn, log); err != nil {
            log.WithError(err).Warn("booking consumer: consume loop ended, reconnecting")
            _ = conn.Close()
            time.Sleep(2 * time.Second)
        }
    }
}

func consumeLoop(conn *amqp.Connection, log *logrus.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.WithError(err).Warn("booking consumer: set QoS failed")
    }

    if _, err := ch.QueueDeclare(BookingQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(BookingQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleMessage(d.Body, log); err != nil {
            log.WithError(err).Warn("booking consumer: handle message failed")
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, log *logrus.Logger) error {
    var ev BookingConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    log.WithFields(logrus.Fields{
        "booking_id":   ev.BookingID,
        "booking_code": ev.BookingCode,
        "cinema":       ev.CinemaName,
        "room":         ev.RoomName,
        "movie":        ev.MovieTitle,
        "seats":        strings.Join(ev.SeatLabels, ","),
        "total_minor":  ev.TotalMinor,
        "currency":     ev.Currency,
        "confirmed_at": ev.ConfirmedAt,
    }).Info("booking confirmed")
    return nil
}
