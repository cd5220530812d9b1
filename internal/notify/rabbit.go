package notify

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/queue"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
)

// RabbitPublisher emits confirmed-booking events to the durable
// booking.confirmed queue.  It dials per publish, which keeps the
// publisher stateless and the failure mode simple; confirmation volume
// is low enough that connection reuse is not worth the bookkeeping.
type RabbitPublisher struct {
    url string
}

// NewRabbitPublisher returns a publisher for the given broker URL.
func NewRabbitPublisher(url string) *RabbitPublisher {
    return &RabbitPublisher{url: url}
}

// PublishBookingConfirmed serializes the booking into a
// BookingConfirmedEvent and publishes it persistently.  The queue is
// declared on every publish; the declare is idempotent.
func (p *RabbitPublisher) PublishBookingConfirmed(ctx context.Context, bw *repository.BookingWithItems, st *model.ShowtimeDetail) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial broker: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("open channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(queue.BookingQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("declare queue: %w", err)
    }

    body, err := json.Marshal(buildEvent(bw, st))
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queue.BookingQueueName, false, false, pub); err != nil {
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

func buildEvent(bw *repository.BookingWithItems, st *model.ShowtimeDetail) queue.BookingConfirmedEvent {
    ev := queue.BookingConfirmedEvent{
        BookingID:   bw.Booking.ID,
        BookingCode: bw.Booking.Code,
        UserID:      bw.Booking.UserID,
        ShowtimeID:  bw.Booking.ShowtimeID,
        CinemaID:    st.CinemaID,
        CinemaName:  st.CinemaName,
        RoomName:    st.RoomName,
        MovieTitle:  st.MovieTitle,
        StartsAt:    st.StartsAt.UTC().Format(time.RFC3339),
        TotalMinor:  bw.Booking.TotalMinor,
        Currency:    bw.Booking.Currency,
        ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
    }
    for _, it := range bw.Items {
        ev.SeatLabels = append(ev.SeatLabels, it.SeatLabel)
    }
    for _, tk := range bw.Tickets {
        ev.TicketCodes = append(ev.TicketCodes, tk.Code)
    }
    return ev
}
