/*
classify.go - Calendar classification and the holiday set

PURPOSE:
  Classifies a calendar date into weekday/weekend and carries the set of
  user-declared holidays as an explicit value.

KEY INSIGHT:
  Holiday status is NOT derivable from the calendar. Holidays are
  jurisdiction/company-specific facts declared by the user, so they live in
  a HolidaySet value that is passed into the calculator and the overlay,
  never looked up from ambient state.

SEE ALSO:
  - calculator.go: consumes DayClass and the holiday flag
  - overlay.go:    retroactively applies declared holidays to existing days
*/
package payroll

import "time"

// =============================================================================
// DAY CLASSIFICATION - Pure, total function over dates
// =============================================================================

// DayClass is the calendar classification of a single date.
type DayClass struct {
	Weekday   time.Weekday
	IsWeekend bool
}

// Classify returns the weekday and weekend flag for a date.
// Pure and total: there is no failure mode.
func Classify(date Date) DayClass {
	wd := date.Weekday()
	return DayClass{
		Weekday:   wd,
		IsWeekend: wd == time.Sunday || wd == time.Saturday,
	}
}

// =============================================================================
// HOLIDAY SET - User-declared holidays as an explicit value
// =============================================================================

// Holiday is a user-declared holiday.
type Holiday struct {
	ID   string
	Date Date
	Name string
}

// HolidaySet is the collection of declared holidays keyed by date.
// Declaring the same date twice keeps one entry with the latest name.
type HolidaySet struct {
	byDate map[string]Holiday
}

func NewHolidaySet(holidays ...Holiday) HolidaySet {
	set := HolidaySet{byDate: make(map[string]Holiday, len(holidays))}
	for _, h := range holidays {
		set.Add(h)
	}
	return set
}

// Add declares a holiday. Re-declaring an existing date replaces the name.
func (s *HolidaySet) Add(h Holiday) {
	if s.byDate == nil {
		s.byDate = make(map[string]Holiday)
	}
	s.byDate[h.Date.String()] = h
}

// Remove revokes a declared holiday. Removing an undeclared date is a no-op.
func (s *HolidaySet) Remove(date Date) {
	delete(s.byDate, date.String())
}

// Lookup returns the holiday declared for a date, if any.
func (s HolidaySet) Lookup(date Date) (Holiday, bool) {
	h, ok := s.byDate[date.String()]
	return h, ok
}

// Contains reports whether a date is a declared holiday.
func (s HolidaySet) Contains(date Date) bool {
	_, ok := s.byDate[date.String()]
	return ok
}

func (s HolidaySet) Len() int { return len(s.byDate) }
