/*
Package payroll implements the driver labor-settlement computation engine.

PURPOSE:
  This package contains the domain-pure types and algorithms for turning
  daily work records plus a driver's pay-rate configuration into a fully
  reconciled settlement: per-diems, overtime, weekend/holiday/night premiums
  and the aggregated totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - RateConfig: A driver's active pay rates (base salary, per-diem, hourly premiums)
  - DayRecord:  One worked calendar day with its derived monetary breakdown
  - Date:       A day-granular calendar date (weekday always derived, never stored)
  - DaySource:  Where a day record came from (manual entry vs. tracker report)

DESIGN PRINCIPLES:
  1. Precision:   Uses decimal.Decimal for all money and hours, never float64
  2. Recompute:   Derived monetary fields are never patched in place; every
                  mutation recomputes the full breakdown from its inputs
  3. Purity:      No I/O, no clock, no store access in this package
  4. Explicitness: Holiday declarations travel as values (HolidaySet), not
                  ambient state, so concurrent settlements cannot cross-contaminate

SEE ALSO:
  - calculator.go: ComputeDay and the premium stacking rule
  - classify.go:   Date classification and the holiday set
  - aggregate.go:  Settlement totals reduction
  - errors.go:     Error taxonomy
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Day-granular calendar date
// =============================================================================

// Date is a calendar date at day granularity, always in UTC.
// The weekday is derived from the date on demand and never stored separately,
// so the two can never disagree.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary time to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now().UTC()) }

// ParseDate parses a date in ISO form (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }

func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MustDecimal parses a decimal literal, returning zero for malformed input.
// Intended for constants and tests, not for untrusted data.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// RATE CONFIG - Active pay rates for one driver
// =============================================================================

type DriverID string

// RateConfig holds the pay rates used to value a driver's worked days.
// At most one config per driver is active at a time; saving a new one
// deactivates the prior active row (enforced by the store).
type RateConfig struct {
	DriverID         DriverID
	BaseSalary       decimal.Decimal // monthly
	PerDiemValue     decimal.Decimal // per worked day, not prorated by hours
	OvertimeHourRate decimal.Decimal
	WeekendHourRate  decimal.Decimal
	HolidayHourRate  decimal.Decimal
	Active           bool
}

// Validate checks the rate-field invariant: all rates must be >= 0.
func (c RateConfig) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"base_salary", c.BaseSalary},
		{"per_diem_value", c.PerDiemValue},
		{"overtime_hour_rate", c.OvertimeHourRate},
		{"weekend_hour_rate", c.WeekendHourRate},
		{"holiday_hour_rate", c.HolidayHourRate},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return &ValidationError{Field: f.name, Message: "must not be negative"}
		}
	}
	if c.DriverID == "" {
		return &ValidationError{Field: "driver_id", Message: "is required"}
	}
	return nil
}

// NightHourRate derives the hourly night-premium rate from the monthly base
// salary: (base / 220) * 20%. The 220 divisor is the fixed normal-monthly-hours
// constant; the 20% multiplier is the fixed night-shift differential.
func (c RateConfig) NightHourRate() decimal.Decimal {
	return c.BaseSalary.Div(monthlyBaseHours).Mul(nightDifferential)
}

// =============================================================================
// DAY RECORD - One worked calendar day with its monetary breakdown
// =============================================================================

type DaySource string

const (
	SourceManual  DaySource = "manual"
	SourceTracker DaySource = "tracker"
)

// DayRecord is one calendar date inside a settlement. The hour split and the
// five monetary fields are derived quantities: they are produced by ComputeDay
// and re-derived in full on every mutation. DayTotal is always the arithmetic
// sum of the five monetary components.
type DayRecord struct {
	ID   string
	Date Date

	TotalHours    decimal.Decimal
	NormalHours   decimal.Decimal // min(TotalHours, 8)
	OvertimeHours decimal.Decimal // max(0, TotalHours - 8)
	NightHours    decimal.Decimal
	DistanceKm    decimal.Decimal // informational only

	IsHoliday   bool
	HolidayName string

	Source            DaySource
	TrackerRawPayload []byte // verbatim provisional entry, only when Source == SourceTracker

	PerDiemValue        decimal.Decimal
	OvertimeValue       decimal.Decimal
	WeekendPremiumValue decimal.Decimal
	HolidayPremiumValue decimal.Decimal
	NightPremiumValue   decimal.Decimal
	DayTotal            decimal.Decimal
}

// Weekday is derived from Date (0=Sunday ... 6=Saturday).
func (d DayRecord) Weekday() time.Weekday { return d.Date.Weekday() }

// IsWeekend reports whether the record falls on a Saturday or Sunday.
func (d DayRecord) IsWeekend() bool { return Classify(d.Date).IsWeekend }

// ComponentSum returns the sum of the five monetary components. It must always
// equal DayTotal; the invariant is checked in tests, never "fixed up" at runtime.
func (d DayRecord) ComponentSum() decimal.Decimal {
	return d.PerDiemValue.
		Add(d.OvertimeValue).
		Add(d.WeekendPremiumValue).
		Add(d.HolidayPremiumValue).
		Add(d.NightPremiumValue)
}
