/*
manual.go - Manual day-entry adapter

PURPOSE:
  Builds a single day record from user-authored inputs. The form defaults
  are the adapter's: date defaults to today, worked hours default to 8.
  The holiday flag is resolved against the currently declared holiday list,
  exactly as the tracker adapter does, so both sources produce the same
  record shape.

PRECONDITION:
  An active rate config for the driver. Without one the entry is refused
  with ConfigMissing before any record exists.
*/
package ingest

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frotaops/settlement-engine/payroll"
)

// ManualEntry is one day's worth of user-supplied raw inputs.
type ManualEntry struct {
	Date       payroll.Date
	TotalHours decimal.Decimal
	NightHours decimal.Decimal
	DistanceKm decimal.Decimal
}

// withDefaults fills the form defaults: today's date, an 8-hour day.
func (e ManualEntry) withDefaults() ManualEntry {
	if e.Date.IsZero() {
		e.Date = payroll.Today()
	}
	if e.TotalHours.IsZero() {
		e.TotalHours = decimal.NewFromInt(8)
	}
	return e
}

// ManualAdapter turns manual entries into computed day records.
type ManualAdapter struct {
	configs  payroll.RateConfigStore
	holidays payroll.HolidayStore
}

func NewManualAdapter(configs payroll.RateConfigStore, holidays payroll.HolidayStore) *ManualAdapter {
	return &ManualAdapter{configs: configs, holidays: holidays}
}

// BuildDay resolves the driver's config and the declared holidays, applies
// the form defaults and values the day. Source is manual; no raw payload.
func (a *ManualAdapter) BuildDay(ctx context.Context, driverID payroll.DriverID, entry ManualEntry) (payroll.DayRecord, error) {
	config, err := a.configs.GetActiveConfig(ctx, driverID)
	if err != nil {
		return payroll.DayRecord{}, err
	}
	declared, err := a.holidays.ListHolidays(ctx)
	if err != nil {
		return payroll.DayRecord{}, err
	}
	set := payroll.NewHolidaySet(declared...)

	entry = entry.withDefaults()
	in := payroll.DayInput{
		Date:       entry.Date,
		TotalHours: entry.TotalHours,
		NightHours: entry.NightHours,
		DistanceKm: entry.DistanceKm,
	}
	if holiday, ok := set.Lookup(entry.Date); ok {
		in.IsHoliday = true
		in.HolidayName = holiday.Name
	}

	day, err := payroll.ComputeDay(config, in)
	if err != nil {
		return payroll.DayRecord{}, err
	}
	day.ID = uuid.NewString()
	day.Source = payroll.SourceManual
	return day, nil
}
