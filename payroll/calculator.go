/*
calculator.go - Daily monetary valuation

PURPOSE:
  Computes the full monetary breakdown of one worked day from the driver's
  rate config, the date classification and the recorded hours. This is the
  single place where day money comes from: ingestion, user edits and the
  holiday overlay all funnel through ComputeDay/Recompute so stored totals
  can never drift from their components.

ALGORITHM (fixed order, each term independently additive):
  1. normalHours  = min(totalHours, 8); overtimeHours = max(0, totalHours - 8)
  2. perDiem      = totalHours > 0 ? config.PerDiemValue : 0
  3. overtime     = overtimeHours * config.OvertimeHourRate
  4. weekend      = weekend && worked ? totalHours * config.WeekendHourRate : 0
  5. holiday      = holiday && worked ? totalHours * config.HolidayHourRate : 0
  6. night        = nightHours * (base/220) * 20%
  7. dayTotal     = sum of 2..6

PREMIUM STACKING:
  Weekend and holiday premiums apply to ALL hours worked that day, on top of
  overtime pay for the same hours, and a holiday on a weekend accrues both.
  The stacking rule is isolated in stackedPremiums so a future correction
  touches exactly one function.

SEE ALSO:
  - overlay.go:   re-runs the computation when holidays change
  - aggregate.go: reduces day records into settlement totals
*/
package payroll

import "github.com/shopspring/decimal"

// Fixed constants of the CLT rate structure.
var (
	normalDayHours    = decimal.NewFromInt(8)   // hours paid at the base rate per day
	monthlyBaseHours  = decimal.NewFromInt(220) // normal monthly hours, base-salary divisor
	nightDifferential = decimal.NewFromFloat(0.20)
	hoursInDay        = decimal.NewFromInt(24)
)

// DayInput is the raw material for one day's valuation.
type DayInput struct {
	Date        Date
	TotalHours  decimal.Decimal
	NightHours  decimal.Decimal
	DistanceKm  decimal.Decimal
	IsHoliday   bool
	HolidayName string
}

// Validate range-checks the numeric fields. Inputs from the extraction
// service are untrusted, so every number is checked before it reaches the
// calculator.
func (in DayInput) Validate() error {
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "is required"}
	}
	if in.TotalHours.IsNegative() {
		return &ValidationError{Field: "total_hours", Message: "must not be negative"}
	}
	if in.TotalHours.GreaterThan(hoursInDay) {
		return &ValidationError{Field: "total_hours", Message: "must not exceed 24"}
	}
	if in.NightHours.IsNegative() {
		return &ValidationError{Field: "night_hours", Message: "must not be negative"}
	}
	if in.NightHours.GreaterThan(in.TotalHours) {
		return &ValidationError{Field: "night_hours", Message: "must not exceed total hours"}
	}
	if in.DistanceKm.IsNegative() {
		return &ValidationError{Field: "distance_km", Message: "must not be negative"}
	}
	return nil
}

// ComputeDay values one worked day. Deterministic: the same inputs always
// produce the same record. Source and tracker payload are attached by the
// caller; only the calendar, hour and monetary fields are filled in here.
func ComputeDay(config RateConfig, in DayInput) (DayRecord, error) {
	if err := in.Validate(); err != nil {
		return DayRecord{}, err
	}

	record := DayRecord{
		Date:        in.Date,
		TotalHours:  in.TotalHours,
		NightHours:  in.NightHours,
		DistanceKm:  in.DistanceKm,
		IsHoliday:   in.IsHoliday,
		HolidayName: in.HolidayName,
	}
	recompute(config, &record)
	return record, nil
}

// Recompute re-derives the hour split and every monetary field of an existing
// record from its stored TotalHours/NightHours/IsHoliday and the config.
// Used for user edits of TotalHours and for the holiday overlay: no partial
// or incremental update is ever permitted.
func Recompute(config RateConfig, record *DayRecord) {
	recompute(config, record)
}

func recompute(config RateConfig, record *DayRecord) {
	worked := record.TotalHours.IsPositive()

	// 1. Hour split.
	record.NormalHours = decimal.Min(record.TotalHours, normalDayHours)
	record.OvertimeHours = decimal.Max(decimal.Zero, record.TotalHours.Sub(normalDayHours))

	// 2. Per-diem is earned for any worked day, never prorated by hours.
	record.PerDiemValue = decimal.Zero
	if worked {
		record.PerDiemValue = config.PerDiemValue
	}

	// 3. Overtime.
	record.OvertimeValue = record.OvertimeHours.Mul(config.OvertimeHourRate)

	// 4-5. Weekend and holiday premiums, fully stacked.
	record.WeekendPremiumValue, record.HolidayPremiumValue = stackedPremiums(
		config, Classify(record.Date), record.IsHoliday, record.TotalHours)

	// 6. Night premium.
	record.NightPremiumValue = record.NightHours.Mul(config.NightHourRate())

	// 7. Total is always the sum of the five components.
	record.DayTotal = record.ComponentSum()
}

// stackedPremiums returns the weekend and holiday premium values for a day.
//
// Both premiums apply to ALL hours worked that day (not just the overtime
// portion), both stack on top of overtime pay for the same hours, and a
// holiday falling on a weekend accrues both simultaneously. Whether this
// compounding is intentional is an open question in the rate rules; the rule
// lives here, and only here, so a correction is a one-function change.
func stackedPremiums(config RateConfig, class DayClass, isHoliday bool, totalHours decimal.Decimal) (weekend, holiday decimal.Decimal) {
	weekend = decimal.Zero
	holiday = decimal.Zero
	if !totalHours.IsPositive() {
		return weekend, holiday
	}
	if class.IsWeekend {
		weekend = totalHours.Mul(config.WeekendHourRate)
	}
	if isHoliday {
		holiday = totalHours.Mul(config.HolidayHourRate)
	}
	return weekend, holiday
}
