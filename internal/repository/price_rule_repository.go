package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
)

// PriceRuleRepo looks up active price rules.  At most one active rule
// exists per (scope, day_type, seat_type) slice; the schema enforces
// this with a unique key over those columns.
type PriceRuleRepo struct {
    db *sql.DB
}

// NewPriceRuleRepo returns a PriceRuleRepo bound to the database.
func NewPriceRuleRepo(db *sql.DB) *PriceRuleRepo { return &PriceRuleRepo{db: db} }

// FindActiveRule returns the active rule for the slice, or nil when no
// rule exists.  cinemaID nil selects the global scope.  This satisfies
// the pricing.RuleSource contract.
func (r *PriceRuleRepo) FindActiveRule(ctx context.Context, cinemaID *uint64, day model.DayType, seat model.SeatType) (*model.PriceRule, error) {
    var (
        row  *sql.Row
        rule model.PriceRule
    )
    if cinemaID != nil {
        const q = `SELECT id, cinema_id, day_type, seat_type, price_minor, active
                   FROM price_rules
                   WHERE cinema_id = ? AND day_type = ? AND seat_type = ? AND active = 1
                   LIMIT 1`
        row = r.db.QueryRowContext(ctx, q, *cinemaID, day, seat)
    } else {
        const q = `SELECT id, cinema_id, day_type, seat_type, price_minor, active
                   FROM price_rules
                   WHERE cinema_id IS NULL AND day_type = ? AND seat_type = ? AND active = 1
                   LIMIT 1`
        row = r.db.QueryRowContext(ctx, q, day, seat)
    }
    err := row.Scan(&rule.ID, &rule.CinemaID, &rule.DayType, &rule.SeatType, &rule.PriceMinor, &rule.Active)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &rule, nil
}
