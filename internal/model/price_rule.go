package model

import "time"

// DayType classifies the calendar day of a showtime's start instant.
// Saturday and Sunday are Weekend, everything else is Weekday.  The
// classification uses the day-of-week of the stored UTC instant; see
// the pricing package for the caveat on multi-timezone deployments.
type DayType string

const (
    DayTypeWeekday DayType = "WEEKDAY"
    DayTypeWeekend DayType = "WEEKEND"
)

// ClassifyDay returns the DayType for the given start instant.
func ClassifyDay(startsAt time.Time) DayType {
    switch startsAt.Weekday() {
    case time.Saturday, time.Sunday:
        return DayTypeWeekend
    }
    return DayTypeWeekday
}

// PriceRule sets the unit price for a (scope, day type, seat type)
// slice.  CinemaID nil means the rule is global.  At most one active
// rule exists per slice; cinema rules shadow the global rule for the
// same (day type, seat type).
//
// Fields:
//  ID         – primary key identifier.
//  CinemaID   – scope; nil for the global rule.
//  DayType    – Weekday or Weekend.
//  SeatType   – seat type the rule prices.
//  PriceMinor – unit price in minor currency units.
//  Active     – whether the rule participates in lookups.
type PriceRule struct {
    ID         uint64   // price_rules.id
    CinemaID   *uint64  // price_rules.cinema_id (nullable)
    DayType    DayType  // price_rules.day_type
    SeatType   SeatType // price_rules.seat_type
    PriceMinor int64    // price_rules.price_minor
    Active     bool     // price_rules.active
}
