/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

CONVENTIONS:
  - Money and hour quantities travel as decimal STRINGS ("2700", "8.5"),
    never as JSON numbers, so clients cannot silently lose precision.
  - Dates travel in ISO form (2006-01-02).
  - *DTO types are responses; *Request types are client payloads.

VALIDATION:
  Validation is done in handlers and the domain, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go:   Route wiring
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/frotaops/settlement-engine/ingest"
	"github.com/frotaops/settlement-engine/payroll"
	"github.com/frotaops/settlement-engine/settlement"
)

// =============================================================================
// RATE CONFIG
// =============================================================================

// RateConfigDTO represents a driver's active pay rates.
type RateConfigDTO struct {
	DriverID         string `json:"driver_id"`
	BaseSalary       string `json:"base_salary"`
	PerDiemValue     string `json:"per_diem_value"`
	OvertimeHourRate string `json:"overtime_hour_rate"`
	WeekendHourRate  string `json:"weekend_hour_rate"`
	HolidayHourRate  string `json:"holiday_hour_rate"`
	NightHourRate    string `json:"night_hour_rate"` // derived: (base/220)*20%
	Active           bool   `json:"active"`
}

// SaveRateConfigRequest replaces a driver's active config.
type SaveRateConfigRequest struct {
	BaseSalary       string `json:"base_salary"`
	PerDiemValue     string `json:"per_diem_value"`
	OvertimeHourRate string `json:"overtime_hour_rate"`
	WeekendHourRate  string `json:"weekend_hour_rate"`
	HolidayHourRate  string `json:"holiday_hour_rate"`
}

func toRateConfigDTO(c payroll.RateConfig) RateConfigDTO {
	return RateConfigDTO{
		DriverID:         string(c.DriverID),
		BaseSalary:       c.BaseSalary.String(),
		PerDiemValue:     c.PerDiemValue.String(),
		OvertimeHourRate: c.OvertimeHourRate.String(),
		WeekendHourRate:  c.WeekendHourRate.String(),
		HolidayHourRate:  c.HolidayHourRate.String(),
		NightHourRate:    c.NightHourRate().String(),
		Active:           c.Active,
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayDTO struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

type DeclareHolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

func toHolidayDTO(h payroll.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.String(), Name: h.Name}
}

// =============================================================================
// DAY RECORDS
// =============================================================================

// DayRecordDTO is one worked day with its full monetary breakdown. The
// weekday is derived from the date server-side.
type DayRecordDTO struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Weekday string `json:"weekday"`

	TotalHours    string `json:"total_hours"`
	NormalHours   string `json:"normal_hours"`
	OvertimeHours string `json:"overtime_hours"`
	NightHours    string `json:"night_hours"`
	DistanceKm    string `json:"distance_km"`

	IsHoliday   bool   `json:"is_holiday"`
	HolidayName string `json:"holiday_name,omitempty"`
	Source      string `json:"source"`

	PerDiemValue        string `json:"per_diem_value"`
	OvertimeValue       string `json:"overtime_value"`
	WeekendPremiumValue string `json:"weekend_premium_value"`
	HolidayPremiumValue string `json:"holiday_premium_value"`
	NightPremiumValue   string `json:"night_premium_value"`
	DayTotal            string `json:"day_total"`
}

// ManualDayRequest is a user-authored day entry. Omitted date defaults to
// today; omitted hours default to 8.
type ManualDayRequest struct {
	Date       string `json:"date,omitempty"`
	TotalHours string `json:"total_hours,omitempty"`
	NightHours string `json:"night_hours,omitempty"`
	DistanceKm string `json:"distance_km,omitempty"`
}

// EditDayRequest replaces one day's worked hours; the breakdown is
// re-derived server-side.
type EditDayRequest struct {
	TotalHours string `json:"total_hours"`
}

func toDayRecordDTO(d payroll.DayRecord) DayRecordDTO {
	return DayRecordDTO{
		ID:                  d.ID,
		Date:                d.Date.String(),
		Weekday:             d.Weekday().String(),
		TotalHours:          d.TotalHours.String(),
		NormalHours:         d.NormalHours.String(),
		OvertimeHours:       d.OvertimeHours.String(),
		NightHours:          d.NightHours.String(),
		DistanceKm:          d.DistanceKm.String(),
		IsHoliday:           d.IsHoliday,
		HolidayName:         d.HolidayName,
		Source:              string(d.Source),
		PerDiemValue:        d.PerDiemValue.String(),
		OvertimeValue:       d.OvertimeValue.String(),
		WeekendPremiumValue: d.WeekendPremiumValue.String(),
		HolidayPremiumValue: d.HolidayPremiumValue.String(),
		NightPremiumValue:   d.NightPremiumValue.String(),
		DayTotal:            d.DayTotal.String(),
	}
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

type DeductionDTO struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

type TotalsDTO struct {
	TotalPerDiems      string `json:"total_per_diems"`
	TotalOvertimeHours string `json:"total_overtime_hours"`
	TotalOvertimeValue string `json:"total_overtime_value"`
	TotalWeekendHours  string `json:"total_weekend_hours"`
	TotalWeekendValue  string `json:"total_weekend_value"`
	TotalHolidayHours  string `json:"total_holiday_hours"`
	TotalHolidayValue  string `json:"total_holiday_value"`
	TotalNightHours    string `json:"total_night_hours"`
	TotalNightValue    string `json:"total_night_value"`
	TotalDistanceKm    string `json:"total_distance_km"`
	GrossTotal         string `json:"gross_total"`
	NetTotal           string `json:"net_total"`
}

type PaymentDTO struct {
	Date   string `json:"date"`
	Method string `json:"method"`
}

type SettlementDTO struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"`
	DriverID    string         `json:"driver_id"`
	DriverName  string         `json:"driver_name"`
	PeriodStart string         `json:"period_start"`
	PeriodEnd   string         `json:"period_end"`
	BaseSalary  string         `json:"base_salary"`
	EntryType   string         `json:"entry_type"`
	Status      string         `json:"status"`
	Notes       string         `json:"notes,omitempty"`
	Payment     *PaymentDTO    `json:"payment,omitempty"`
	Totals      TotalsDTO      `json:"totals"`
	Deductions  []DeductionDTO `json:"deductions"`
	Days        []DayRecordDTO `json:"days"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

// CreateSettlementRequest opens a settlement, optionally pre-populated with
// manual day entries.
type CreateSettlementRequest struct {
	DriverID    string             `json:"driver_id"`
	DriverName  string             `json:"driver_name"`
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
	Notes       string             `json:"notes,omitempty"`
	Days        []ManualDayRequest `json:"days,omitempty"`
	Deductions  []DeductionDTO     `json:"deductions,omitempty"`
}

// UpdateSettlementRequest edits the header. Nil fields are left untouched.
type UpdateSettlementRequest struct {
	Notes      *string         `json:"notes,omitempty"`
	BaseSalary *string         `json:"base_salary,omitempty"`
	Deductions *[]DeductionDTO `json:"deductions,omitempty"`
}

// TransitionRequest moves a settlement through its lifecycle. Payment is
// required when status is "paid".
type TransitionRequest struct {
	Status  string      `json:"status"`
	Payment *PaymentDTO `json:"payment,omitempty"`
}

func toSettlementDTO(s *settlement.Settlement) SettlementDTO {
	days := make([]DayRecordDTO, len(s.Days))
	for i, d := range s.Days {
		days[i] = toDayRecordDTO(d)
	}
	deductions := make([]DeductionDTO, len(s.Deductions))
	for i, d := range s.Deductions {
		deductions[i] = DeductionDTO{Label: d.Label, Amount: d.Amount.String()}
	}

	dto := SettlementDTO{
		ID:          s.ID,
		Code:        s.Code,
		DriverID:    string(s.DriverID),
		DriverName:  s.DriverName,
		PeriodStart: s.PeriodStart.String(),
		PeriodEnd:   s.PeriodEnd.String(),
		BaseSalary:  s.BaseSalary.String(),
		EntryType:   string(s.EntryType),
		Status:      string(s.Status),
		Notes:       s.Notes,
		Totals:      toTotalsDTO(s.Totals),
		Deductions:  deductions,
		Days:        days,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
	if s.Payment != nil {
		dto.Payment = &PaymentDTO{Date: s.Payment.Date.String(), Method: s.Payment.Method}
	}
	return dto
}

func toTotalsDTO(t payroll.SettlementTotals) TotalsDTO {
	return TotalsDTO{
		TotalPerDiems:      t.TotalPerDiems.String(),
		TotalOvertimeHours: t.TotalOvertimeHours.String(),
		TotalOvertimeValue: t.TotalOvertimeValue.String(),
		TotalWeekendHours:  t.TotalWeekendHours.String(),
		TotalWeekendValue:  t.TotalWeekendValue.String(),
		TotalHolidayHours:  t.TotalHolidayHours.String(),
		TotalHolidayValue:  t.TotalHolidayValue.String(),
		TotalNightHours:    t.TotalNightHours.String(),
		TotalNightValue:    t.TotalNightValue.String(),
		TotalDistanceKm:    t.TotalDistanceKm.String(),
		GrossTotal:         t.GrossTotal.String(),
		NetTotal:           t.NetTotal.String(),
	}
}

func toDeductions(dtos []DeductionDTO) ([]payroll.Deduction, error) {
	if dtos == nil {
		return nil, nil
	}
	out := make([]payroll.Deduction, len(dtos))
	for i, d := range dtos {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, &payroll.ValidationError{Field: "deductions", Message: "amount must be a decimal string"}
		}
		out[i] = payroll.Deduction{Label: d.Label, Amount: amount}
	}
	return out, nil
}

// =============================================================================
// INGESTION
// =============================================================================

// IngestionDTO is a point-in-time view of a document ingestion session.
type IngestionDTO struct {
	ID                  string         `json:"id"`
	DriverID            string         `json:"driver_id"`
	Filename            string         `json:"filename"`
	Stage               string         `json:"stage"`
	CurrentPage         int            `json:"current_page,omitempty"`
	TotalPages          int            `json:"total_pages,omitempty"`
	ExtractionElapsedMs int64          `json:"extraction_elapsed_ms,omitempty"`
	Error               string         `json:"error,omitempty"`
	Days                []DayRecordDTO `json:"days,omitempty"`
}

// ImportDaysRequest commits a finished ingestion session's day set into a
// settlement.
type ImportDaysRequest struct {
	SessionID string `json:"session_id"`
}

func toIngestionDTO(s *ingest.Session) IngestionDTO {
	p := s.Progress()
	dto := IngestionDTO{
		ID:                  s.ID,
		DriverID:            string(s.DriverID),
		Filename:            s.Filename,
		Stage:               string(p.Stage),
		CurrentPage:         p.CurrentPage,
		TotalPages:          p.TotalPages,
		ExtractionElapsedMs: p.ExtractionElapsed.Milliseconds(),
		Error:               p.Error,
	}
	if p.Stage == ingest.StageDone {
		if days, err := s.Result(); err == nil {
			dto.Days = make([]DayRecordDTO, len(days))
			for i, d := range days {
				dto.Days[i] = toDayRecordDTO(d)
			}
		}
	}
	return dto
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
