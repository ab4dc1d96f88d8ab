/*
overlay.go - Retroactive holiday overlay

PURPOSE:
  Applies user-declared holidays to already-computed day records. Declaring
  a holiday after days were ingested flips the flag on every matching record
  and re-derives its monetary breakdown from the stored hours.

IDEMPOTENCE:
  The overlay never accumulates: each application recomputes the holiday
  premium (and the dependent day total) from scratch via Recompute, so
  declaring the same holiday twice leaves the records exactly as a single
  declaration would. Redeclaring updates the holiday name only.

SEE ALSO:
  - calculator.go: Recompute, the only way monetary fields change
  - classify.go:   HolidaySet
*/
package payroll

// ApplyHoliday marks every record on the declared date as a holiday and
// recomputes its breakdown using the day's already-stored hours.
// Returns the number of affected records. Idempotent per date.
func ApplyHoliday(config RateConfig, days []*DayRecord, holiday Holiday) int {
	affected := 0
	for _, day := range days {
		if !day.Date.Equal(holiday.Date) {
			continue
		}
		day.IsHoliday = true
		day.HolidayName = holiday.Name
		Recompute(config, day)
		affected++
	}
	return affected
}

// RevokeHoliday clears the holiday flag on every record for the date and
// recomputes the affected breakdowns. The inverse of ApplyHoliday.
func RevokeHoliday(config RateConfig, days []*DayRecord, date Date) int {
	affected := 0
	for _, day := range days {
		if !day.Date.Equal(date) || !day.IsHoliday {
			continue
		}
		day.IsHoliday = false
		day.HolidayName = ""
		Recompute(config, day)
		affected++
	}
	return affected
}

// ApplyHolidaySet reconciles a full day set against the declared holidays:
// records on declared dates gain the flag, records whose declaration was
// removed lose it. Everything touched is recomputed.
func ApplyHolidaySet(config RateConfig, days []*DayRecord, set HolidaySet) int {
	affected := 0
	for _, day := range days {
		holiday, declared := set.Lookup(day.Date)
		switch {
		case declared && (!day.IsHoliday || day.HolidayName != holiday.Name):
			day.IsHoliday = true
			day.HolidayName = holiday.Name
			Recompute(config, day)
			affected++
		case !declared && day.IsHoliday:
			day.IsHoliday = false
			day.HolidayName = ""
			Recompute(config, day)
			affected++
		}
	}
	return affected
}
