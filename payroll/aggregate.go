/*
aggregate.go - Settlement totals reduction

PURPOSE:
  Reduces the full set of day records plus the rate config into settlement
  totals, and derives the settlement's provenance (manual/automatic/hybrid)
  from the day sources.

KEY INSIGHT:
  Totals are VALUES, not stored state. Aggregate is a pure reduction that is
  re-run from the current day set on every mutation (add/remove/edit/holiday
  overlay). Nothing is ever computed incrementally from a stale prior total,
  so totals always match the day set exactly.

DEDUCTIONS:
  Statutory deductions are not modeled. NetTotal = GrossTotal minus an
  explicit, optional list of (label, amount) line items; with no line items
  the two are equal. The extension point is structural, not a silent zero.

SEE ALSO:
  - calculator.go: produces the per-day components summed here
*/
package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// ENTRY TYPE - Settlement provenance
// =============================================================================

type EntryType string

const (
	EntryManual    EntryType = "manual"    // all days entered by hand
	EntryAutomatic EntryType = "automatic" // all days tracker-derived
	EntryHybrid    EntryType = "hybrid"    // both sources present
)

// DeriveEntryType classifies a settlement by the sources of its days.
// An empty day set classifies as manual.
func DeriveEntryType(days []DayRecord) EntryType {
	var hasManual, hasTracker bool
	for _, d := range days {
		switch d.Source {
		case SourceTracker:
			hasTracker = true
		default:
			hasManual = true
		}
	}
	switch {
	case hasManual && hasTracker:
		return EntryHybrid
	case hasTracker:
		return EntryAutomatic
	default:
		return EntryManual
	}
}

// =============================================================================
// DEDUCTIONS - Explicit net-total line items
// =============================================================================

// Deduction is one named amount subtracted from the gross total.
type Deduction struct {
	Label  string
	Amount decimal.Decimal
}

func sumDeductions(deductions []Deduction) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deductions {
		total = total.Add(d.Amount)
	}
	return total
}

// =============================================================================
// SETTLEMENT TOTALS - Pure reduction over the day set
// =============================================================================

// SettlementTotals is the aggregated monetary and hour summary of a
// settlement period.
type SettlementTotals struct {
	TotalPerDiems decimal.Decimal

	TotalOvertimeHours decimal.Decimal
	TotalOvertimeValue decimal.Decimal

	TotalWeekendHours decimal.Decimal // total hours worked on weekend days
	TotalWeekendValue decimal.Decimal

	TotalHolidayHours decimal.Decimal // total hours worked on holidays
	TotalHolidayValue decimal.Decimal

	TotalNightHours decimal.Decimal
	TotalNightValue decimal.Decimal

	TotalDistanceKm decimal.Decimal

	GrossTotal decimal.Decimal // base salary + all value columns
	NetTotal   decimal.Decimal // gross - deductions
}

// Aggregate reduces the day set into settlement totals. Pure: no side
// effects, no store access. Must be re-run whenever the day set changes.
func Aggregate(config RateConfig, days []DayRecord, deductions []Deduction) SettlementTotals {
	totals := SettlementTotals{
		TotalPerDiems:      decimal.Zero,
		TotalOvertimeHours: decimal.Zero,
		TotalOvertimeValue: decimal.Zero,
		TotalWeekendHours:  decimal.Zero,
		TotalWeekendValue:  decimal.Zero,
		TotalHolidayHours:  decimal.Zero,
		TotalHolidayValue:  decimal.Zero,
		TotalNightHours:    decimal.Zero,
		TotalNightValue:    decimal.Zero,
		TotalDistanceKm:    decimal.Zero,
	}

	for _, day := range days {
		totals.TotalPerDiems = totals.TotalPerDiems.Add(day.PerDiemValue)
		totals.TotalOvertimeHours = totals.TotalOvertimeHours.Add(day.OvertimeHours)
		totals.TotalOvertimeValue = totals.TotalOvertimeValue.Add(day.OvertimeValue)
		if day.IsWeekend() {
			totals.TotalWeekendHours = totals.TotalWeekendHours.Add(day.TotalHours)
		}
		totals.TotalWeekendValue = totals.TotalWeekendValue.Add(day.WeekendPremiumValue)
		if day.IsHoliday {
			totals.TotalHolidayHours = totals.TotalHolidayHours.Add(day.TotalHours)
		}
		totals.TotalHolidayValue = totals.TotalHolidayValue.Add(day.HolidayPremiumValue)
		totals.TotalNightHours = totals.TotalNightHours.Add(day.NightHours)
		totals.TotalNightValue = totals.TotalNightValue.Add(day.NightPremiumValue)
		totals.TotalDistanceKm = totals.TotalDistanceKm.Add(day.DistanceKm)
	}

	totals.GrossTotal = config.BaseSalary.
		Add(totals.TotalPerDiems).
		Add(totals.TotalOvertimeValue).
		Add(totals.TotalWeekendValue).
		Add(totals.TotalHolidayValue).
		Add(totals.TotalNightValue)
	totals.NetTotal = totals.GrossTotal.Sub(sumDeductions(deductions))

	return totals
}
