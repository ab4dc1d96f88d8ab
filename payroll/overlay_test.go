package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frotaops/settlement-engine/payroll"
)

func mustDay(t *testing.T, config payroll.RateConfig, in payroll.DayInput) payroll.DayRecord {
	t.Helper()
	day, err := payroll.ComputeDay(config, in)
	require.NoError(t, err)
	return day
}

func TestApplyHoliday_RecomputesAffectedDay(t *testing.T) {
	// GIVEN: a Sunday already valued at 8 hours without a holiday flag
	// WHEN: the date is declared a holiday after the fact
	// THEN: the stored hours are re-used and the holiday premium appears

	config := standardConfig()
	day := mustDay(t, config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 16),
		TotalHours: hours(8),
	})
	assertMoney(t, "210", day.DayTotal, "pre-holiday total") // 50 + 160

	days := []*payroll.DayRecord{&day}
	affected := payroll.ApplyHoliday(config, days, payroll.Holiday{
		Date: payroll.NewDate(2025, time.March, 16),
		Name: "Páscoa",
	})

	assert.Equal(t, 1, affected)
	assert.True(t, day.IsHoliday)
	assert.Equal(t, "Páscoa", day.HolidayName)
	assertMoney(t, "240", day.HolidayPremiumValue, "holiday premium")
	assertMoney(t, "450", day.DayTotal, "day total")
}

func TestApplyHoliday_Idempotent(t *testing.T) {
	// Declaring the same holiday twice yields the same record state as
	// declaring it once: the premium is recomputed, never accumulated.
	config := standardConfig()
	day := mustDay(t, config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 16),
		TotalHours: hours(8),
	})
	days := []*payroll.DayRecord{&day}
	holiday := payroll.Holiday{Date: payroll.NewDate(2025, time.March, 16), Name: "Páscoa"}

	payroll.ApplyHoliday(config, days, holiday)
	once := day

	payroll.ApplyHoliday(config, days, holiday)
	assert.Equal(t, once, day)
}

func TestApplyHoliday_RedeclareUpdatesNameOnly(t *testing.T) {
	config := standardConfig()
	day := mustDay(t, config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 16),
		TotalHours: hours(8),
	})
	days := []*payroll.DayRecord{&day}
	date := payroll.NewDate(2025, time.March, 16)

	payroll.ApplyHoliday(config, days, payroll.Holiday{Date: date, Name: "Feriado"})
	totalAfterFirst := day.DayTotal

	payroll.ApplyHoliday(config, days, payroll.Holiday{Date: date, Name: "Páscoa"})
	assert.Equal(t, "Páscoa", day.HolidayName)
	assert.True(t, day.DayTotal.Equal(totalAfterFirst))
}

func TestApplyHoliday_UntouchedDatesUnaffected(t *testing.T) {
	config := standardConfig()
	monday := mustDay(t, config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 17),
		TotalHours: hours(8),
	})
	before := monday

	affected := payroll.ApplyHoliday(config, []*payroll.DayRecord{&monday}, payroll.Holiday{
		Date: payroll.NewDate(2025, time.March, 16),
		Name: "Páscoa",
	})

	assert.Equal(t, 0, affected)
	assert.Equal(t, before, monday)
}

func TestRevokeHoliday_RestoresOriginalValuation(t *testing.T) {
	// Revoking a declared holiday must leave the record exactly as it was
	// before the declaration.
	config := standardConfig()
	day := mustDay(t, config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 16),
		TotalHours: hours(8),
	})
	original := day

	days := []*payroll.DayRecord{&day}
	payroll.ApplyHoliday(config, days, payroll.Holiday{Date: day.Date, Name: "Páscoa"})
	require.True(t, day.IsHoliday)

	affected := payroll.RevokeHoliday(config, days, day.Date)
	assert.Equal(t, 1, affected)
	assert.Equal(t, original, day)
}

func TestApplyHolidaySet_ReconcilesFlagsBothWays(t *testing.T) {
	// GIVEN: one day flagged as a holiday whose declaration was removed, and
	//        one unflagged day whose date is now declared
	// WHEN: the full set is reconciled
	// THEN: the first loses the premium and the second gains it

	config := standardConfig()
	stale := mustDay(t, config, payroll.DayInput{
		Date:        payroll.NewDate(2025, time.March, 17),
		TotalHours:  hours(8),
		IsHoliday:   true,
		HolidayName: "Feriado Revogado",
	})
	missing := mustDay(t, config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 18),
		TotalHours: hours(8),
	})

	set := payroll.NewHolidaySet(payroll.Holiday{
		Date: payroll.NewDate(2025, time.March, 18),
		Name: "Aniversário da Cidade",
	})

	affected := payroll.ApplyHolidaySet(config, []*payroll.DayRecord{&stale, &missing}, set)
	assert.Equal(t, 2, affected)

	assert.False(t, stale.IsHoliday)
	assertMoney(t, "0", stale.HolidayPremiumValue, "revoked premium")
	assert.True(t, missing.IsHoliday)
	assertMoney(t, "240", missing.HolidayPremiumValue, "declared premium")
}

func TestHolidaySet_AddRemoveLookup(t *testing.T) {
	set := payroll.NewHolidaySet()
	date := payroll.NewDate(2025, time.December, 25)

	assert.False(t, set.Contains(date))
	set.Add(payroll.Holiday{Date: date, Name: "Natal"})
	assert.True(t, set.Contains(date))

	h, ok := set.Lookup(date)
	require.True(t, ok)
	assert.Equal(t, "Natal", h.Name)

	set.Remove(date)
	assert.False(t, set.Contains(date))
	assert.Equal(t, 0, set.Len())
}
