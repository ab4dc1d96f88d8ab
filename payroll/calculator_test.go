package payroll_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frotaops/settlement-engine/payroll"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// standardConfig mirrors the reference rate sheet used throughout the tests:
// base 2700/month, per-diem 50, overtime 15/h, weekend 20/h, holiday 30/h.
func standardConfig() payroll.RateConfig {
	return payroll.RateConfig{
		DriverID:         "driver-1",
		BaseSalary:       decimal.NewFromInt(2700),
		PerDiemValue:     decimal.NewFromInt(50),
		OvertimeHourRate: decimal.NewFromInt(15),
		WeekendHourRate:  decimal.NewFromInt(20),
		HolidayHourRate:  decimal.NewFromInt(30),
		Active:           true,
	}
}

func hours(h float64) decimal.Decimal { return decimal.NewFromFloat(h) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(payroll.MustDecimal(want)),
		"%s: want %s, got %s", field, want, got)
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassify_WeekdayAndWeekend(t *testing.T) {
	// 2025-03-12 is a Wednesday, 2025-03-15 a Saturday, 2025-03-16 a Sunday.
	wed := payroll.Classify(payroll.NewDate(2025, time.March, 12))
	assert.Equal(t, time.Wednesday, wed.Weekday)
	assert.False(t, wed.IsWeekend)

	sat := payroll.Classify(payroll.NewDate(2025, time.March, 15))
	assert.Equal(t, time.Saturday, sat.Weekday)
	assert.True(t, sat.IsWeekend)

	sun := payroll.Classify(payroll.NewDate(2025, time.March, 16))
	assert.Equal(t, time.Sunday, sun.Weekday)
	assert.True(t, sun.IsWeekend)
}

// =============================================================================
// DAILY VALUATION
// =============================================================================

func TestComputeDay_WeekdayWithOvertime(t *testing.T) {
	// GIVEN: the standard config and a plain Wednesday with 10 worked hours
	// WHEN: the day is valued
	// THEN: 8 normal + 2 overtime hours, per-diem 50, overtime 30, no premiums

	day, err := payroll.ComputeDay(standardConfig(), payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 12),
		TotalHours: hours(10),
	})
	require.NoError(t, err)

	assertMoney(t, "8", day.NormalHours, "normal hours")
	assertMoney(t, "2", day.OvertimeHours, "overtime hours")
	assertMoney(t, "50", day.PerDiemValue, "per-diem")
	assertMoney(t, "30", day.OvertimeValue, "overtime value")
	assertMoney(t, "0", day.WeekendPremiumValue, "weekend premium")
	assertMoney(t, "0", day.HolidayPremiumValue, "holiday premium")
	assertMoney(t, "80", day.DayTotal, "day total")
}

func TestComputeDay_SaturdayUnderEightHours(t *testing.T) {
	// GIVEN: a Saturday with 6 worked hours, not a holiday
	// WHEN: the day is valued
	// THEN: weekend premium covers ALL 6 hours (6 x 20), no overtime

	day, err := payroll.ComputeDay(standardConfig(), payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 15),
		TotalHours: hours(6),
	})
	require.NoError(t, err)

	assertMoney(t, "0", day.OvertimeValue, "overtime value")
	assertMoney(t, "120", day.WeekendPremiumValue, "weekend premium")
	assertMoney(t, "170", day.DayTotal, "day total")
}

func TestComputeDay_HolidayOnSunday_BothPremiumsStack(t *testing.T) {
	// GIVEN: a declared holiday that falls on a Sunday, 8 worked hours
	// WHEN: the day is valued
	// THEN: weekend (8x20) and holiday (8x30) premiums both apply to the
	//       same hours; total = 50 + 160 + 240

	day, err := payroll.ComputeDay(standardConfig(), payroll.DayInput{
		Date:        payroll.NewDate(2025, time.March, 16),
		TotalHours:  hours(8),
		IsHoliday:   true,
		HolidayName: "Feriado Municipal",
	})
	require.NoError(t, err)

	assertMoney(t, "160", day.WeekendPremiumValue, "weekend premium")
	assertMoney(t, "240", day.HolidayPremiumValue, "holiday premium")
	assertMoney(t, "450", day.DayTotal, "day total")
	assert.Equal(t, "Feriado Municipal", day.HolidayName)
}

func TestComputeDay_NightPremium(t *testing.T) {
	// GIVEN: base salary 2200 (so the derived night rate is exactly
	//        2200/220 * 20% = 2/h) and 4 night hours within a 10h day
	// WHEN: the day is valued
	// THEN: night premium = 4 x 2 = 8

	config := standardConfig()
	config.BaseSalary = decimal.NewFromInt(2200)

	day, err := payroll.ComputeDay(config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 12),
		TotalHours: hours(10),
		NightHours: hours(4),
	})
	require.NoError(t, err)

	assertMoney(t, "8", day.NightPremiumValue, "night premium")
	// per-diem 50 + overtime 30 + night 8
	assertMoney(t, "88", day.DayTotal, "day total")
}

func TestComputeDay_ZeroHours_NoPerDiemNoPremiums(t *testing.T) {
	// A day with no recorded work earns nothing, even on a weekend holiday.
	day, err := payroll.ComputeDay(standardConfig(), payroll.DayInput{
		Date:      payroll.NewDate(2025, time.March, 16),
		IsHoliday: true,
	})
	require.NoError(t, err)

	assertMoney(t, "0", day.PerDiemValue, "per-diem")
	assertMoney(t, "0", day.WeekendPremiumValue, "weekend premium")
	assertMoney(t, "0", day.HolidayPremiumValue, "holiday premium")
	assertMoney(t, "0", day.DayTotal, "day total")
}

func TestComputeDay_Deterministic(t *testing.T) {
	// Calling ComputeDay twice with identical inputs yields identical output.
	in := payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 15),
		TotalHours: hours(9.5),
		NightHours: hours(1.5),
		IsHoliday:  true,
	}

	first, err := payroll.ComputeDay(standardConfig(), in)
	require.NoError(t, err)
	second, err := payroll.ComputeDay(standardConfig(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeDay_SumInvariant(t *testing.T) {
	// DayTotal must equal the arithmetic sum of the five components for
	// every combination of weekday/weekend/holiday/overtime/night hours.
	dates := []payroll.Date{
		payroll.NewDate(2025, time.March, 12), // weekday
		payroll.NewDate(2025, time.March, 15), // Saturday
		payroll.NewDate(2025, time.March, 16), // Sunday
	}
	hourCases := []float64{0, 4, 8, 10, 14}

	for _, date := range dates {
		for _, total := range hourCases {
			for _, isHoliday := range []bool{false, true} {
				day, err := payroll.ComputeDay(standardConfig(), payroll.DayInput{
					Date:       date,
					TotalHours: hours(total),
					NightHours: hours(total / 4),
					IsHoliday:  isHoliday,
				})
				require.NoError(t, err)
				assert.True(t, day.DayTotal.Equal(day.ComponentSum()),
					"sum invariant broken for %s total=%v holiday=%v", date, total, isHoliday)
			}
		}
	}
}

func TestComputeDay_RejectsOutOfRangeInputs(t *testing.T) {
	cases := []struct {
		name  string
		input payroll.DayInput
		field string
	}{
		{"negative hours", payroll.DayInput{Date: payroll.NewDate(2025, time.March, 12), TotalHours: hours(-1)}, "total_hours"},
		{"over 24 hours", payroll.DayInput{Date: payroll.NewDate(2025, time.March, 12), TotalHours: hours(25)}, "total_hours"},
		{"night exceeds total", payroll.DayInput{Date: payroll.NewDate(2025, time.March, 12), TotalHours: hours(4), NightHours: hours(6)}, "night_hours"},
		{"negative distance", payroll.DayInput{Date: payroll.NewDate(2025, time.March, 12), DistanceKm: hours(-10)}, "distance_km"},
		{"missing date", payroll.DayInput{TotalHours: hours(8)}, "date"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := payroll.ComputeDay(standardConfig(), tc.input)
			var verr *payroll.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.True(t, payroll.IsClientError(err))
		})
	}
}

// =============================================================================
// EDIT CONTRACT
// =============================================================================

func TestRecompute_EditedHoursRederiveEverything(t *testing.T) {
	// GIVEN: a Saturday record valued at 6 hours
	// WHEN: the user edits total hours to 10
	// THEN: hour split, overtime, weekend premium and total are all
	//       re-derived; nothing is patched incrementally

	config := standardConfig()
	day, err := payroll.ComputeDay(config, payroll.DayInput{
		Date:       payroll.NewDate(2025, time.March, 15),
		TotalHours: hours(6),
	})
	require.NoError(t, err)

	day.TotalHours = hours(10)
	payroll.Recompute(config, &day)

	assertMoney(t, "8", day.NormalHours, "normal hours")
	assertMoney(t, "2", day.OvertimeHours, "overtime hours")
	assertMoney(t, "30", day.OvertimeValue, "overtime value")
	assertMoney(t, "200", day.WeekendPremiumValue, "weekend premium")
	assertMoney(t, "280", day.DayTotal, "day total")
	assert.True(t, day.DayTotal.Equal(day.ComponentSum()))
}

// =============================================================================
// RATE CONFIG VALIDATION
// =============================================================================

func TestRateConfig_Validate(t *testing.T) {
	config := standardConfig()
	require.NoError(t, config.Validate())

	config.WeekendHourRate = decimal.NewFromInt(-1)
	var verr *payroll.ValidationError
	require.ErrorAs(t, config.Validate(), &verr)
	assert.Equal(t, "weekend_hour_rate", verr.Field)

	config = standardConfig()
	config.DriverID = ""
	require.Error(t, config.Validate())
}
