// Package notify holds the outbound side channels: real-time seat map
// updates over PubNub and durable booking events over RabbitMQ.  Both
// are best effort from the caller's point of view; the callers log and
// swallow failures.
package notify

import (
    "context"
    "encoding/json"
    "fmt"

    pubnubgo "github.com/pubnub/go/v7"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/seatlock"
)

// PubNubConfig carries the keyset for the realtime channel.
type PubNubConfig struct {
    PublishKey   string
    SubscribeKey string
    SecretKey    string
    UserID       string
}

// SeatChannelName returns the PubNub channel clients subscribe to for
// one showtime's seat map.
func SeatChannelName(showtimeID uint64) string {
    return fmt.Sprintf("showtime-%d", showtimeID)
}

// PubNubBroadcaster publishes seat events to per-showtime channels so
// every open seat map refreshes without polling.
type PubNubBroadcaster struct {
    pn *pubnubgo.PubNub
}

// NewPubNubBroadcaster builds the broadcaster from config.
func NewPubNubBroadcaster(cfg PubNubConfig) (*PubNubBroadcaster, error) {
    if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
        return nil, fmt.Errorf("pubnub: publish and subscribe keys are required")
    }
    pnCfg := pubnubgo.NewConfigWithUserId(pubnubgo.UserId(cfg.UserID))
    pnCfg.PublishKey = cfg.PublishKey
    pnCfg.SubscribeKey = cfg.SubscribeKey
    pnCfg.SecretKey = cfg.SecretKey
    return &PubNubBroadcaster{pn: pubnubgo.NewPubNub(pnCfg)}, nil
}

// BroadcastSeatEvent publishes the event on the showtime's channel.
func (b *PubNubBroadcaster) BroadcastSeatEvent(_ context.Context, ev seatlock.SeatEvent) error {
    payload, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal seat event: %w", err)
    }
    _, _, err = b.pn.Publish().
        Channel(SeatChannelName(ev.ShowtimeID)).
        Message(string(payload)).
        Execute()
    if err != nil {
        return fmt.Errorf("publish seat event: %w", err)
    }
    return nil
}

// GrantReadToken mints a short-lived token that lets a client read the
// per-showtime seat channels and nothing else.
func (b *PubNubBroadcaster) GrantReadToken(ctx context.Context, clientID string) (string, error) {
    permissions := map[string]pubnubgo.ChannelPermissions{
        "^showtime-[0-9]+$": {Read: true},
    }
    token, _, err := b.pn.GrantTokenWithContext(ctx).
        TTL(60).
        AuthorizedUUID(clientID).
        ChannelsPattern(permissions).
        Execute()
    if err != nil {
        return "", fmt.Errorf("grant token: %w", err)
    }
    return token.Data.Token, nil
}
