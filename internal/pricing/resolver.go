// Package pricing resolves per-seat prices from the rule hierarchy:
// cinema-specific rule, then global rule, then the showtime's flat base
// price.  The chain is total: a quote always produces a price, so a
// draft can never end up half-priced.
//
// Day classification uses the day-of-week of the stored UTC start
// instant.  If showings ever span timezones this is not guaranteed to
// match the local calendar at the cinema.
package pricing

import (
    "context"
    "fmt"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
)

// RuleSource looks up the single active price rule for a slice.  A nil
// rule with nil error means no rule exists for that slice.
type RuleSource interface {
    FindActiveRule(ctx context.Context, cinemaID *uint64, day model.DayType, seat model.SeatType) (*model.PriceRule, error)
}

// Quote is the priced result for one seat.
type Quote struct {
    SeatID     uint64
    SeatType   model.SeatType
    PriceMinor int64
}

// Resolver resolves seat prices for a showtime.
type Resolver struct {
    rules RuleSource
}

// NewResolver returns a Resolver backed by the given rule source.
func NewResolver(rules RuleSource) *Resolver {
    return &Resolver{rules: rules}
}

// QuoteSeat prices a single seat for the given showtime.  Lookup
// order: cinema-scoped rule, global rule, showtime base price.
func (r *Resolver) QuoteSeat(ctx context.Context, st *model.ShowtimeDetail, seat model.Seat) (Quote, error) {
    day := model.ClassifyDay(st.StartsAt)

    cinemaID := st.CinemaID
    rule, err := r.rules.FindActiveRule(ctx, &cinemaID, day, seat.Type)
    if err != nil {
        return Quote{}, fmt.Errorf("cinema rule lookup: %w", err)
    }
    if rule == nil {
        rule, err = r.rules.FindActiveRule(ctx, nil, day, seat.Type)
        if err != nil {
            return Quote{}, fmt.Errorf("global rule lookup: %w", err)
        }
    }

    price := st.BasePriceMinor
    if rule != nil {
        price = rule.PriceMinor
    }
    return Quote{SeatID: seat.ID, SeatType: seat.Type, PriceMinor: price}, nil
}

// QuoteSeats prices every seat or fails the whole batch.  Partial
// pricing is never returned: either the result has exactly one quote
// per input seat, in input order, or the error is non-nil.
func (r *Resolver) QuoteSeats(ctx context.Context, st *model.ShowtimeDetail, seats []model.Seat) ([]Quote, error) {
    quotes := make([]Quote, 0, len(seats))
    for _, seat := range seats {
        q, err := r.QuoteSeat(ctx, st, seat)
        if err != nil {
            return nil, fmt.Errorf("quote seat %d: %w", seat.ID, err)
        }
        quotes = append(quotes, q)
    }
    return quotes, nil
}
