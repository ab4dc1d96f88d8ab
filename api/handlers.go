/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Rate configs:
    GET    /api/drivers/{id}/config      Get the driver's active config
    PUT    /api/drivers/{id}/config      Replace the driver's active config

  Holidays:
    GET    /api/holidays                 List declared holidays
    POST   /api/holidays                 Declare (overlays open settlements)
    DELETE /api/holidays/{id}            Revoke (overlays open settlements)

  Settlements:
    POST   /api/settlements              Open a settlement
    GET    /api/settlements?driver_id=   List a driver's settlements
    GET    /api/settlements/{id}         Get one settlement with its days
    PUT    /api/settlements/{id}         Edit the header
    DELETE /api/settlements/{id}         Delete (refused once paid)
    POST   /api/settlements/{id}/status  Lifecycle transition
    POST   /api/settlements/{id}/days    Add manual day entries
    PUT    /api/settlements/{id}/days/{dayID}    Edit a day's hours
    DELETE /api/settlements/{id}/days/{dayID}    Remove a day
    POST   /api/settlements/{id}/days/import     Commit an ingestion session

  Ingestion:
    POST   /api/drivers/{id}/documents   Upload a tracker report (multipart)
    GET    /api/ingestions/{id}          Session progress / result
    DELETE /api/ingestions/{id}          Abandon a session

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (missing config, duplicate date, locked settlement,
         invalid status change)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go:    Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/frotaops/settlement-engine/ingest"
	"github.com/frotaops/settlement-engine/payroll"
	"github.com/frotaops/settlement-engine/settlement"
)

// maxUploadBytes caps tracker-report uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Settlements *settlement.Service
	Manual      *ingest.ManualAdapter
	Pipeline    *ingest.Pipeline
	Configs     payroll.RateConfigStore
	Holidays    payroll.HolidayStore
}

func NewHandler(settlements *settlement.Service, manual *ingest.ManualAdapter, pipeline *ingest.Pipeline, configs payroll.RateConfigStore, holidays payroll.HolidayStore) *Handler {
	return &Handler{
		Settlements: settlements,
		Manual:      manual,
		Pipeline:    pipeline,
		Configs:     configs,
		Holidays:    holidays,
	}
}

// =============================================================================
// RATE CONFIG HANDLERS
// =============================================================================

// GetRateConfig returns the driver's active config.
func (h *Handler) GetRateConfig(w http.ResponseWriter, r *http.Request) {
	driverID := payroll.DriverID(chi.URLParam(r, "id"))

	config, err := h.Configs.GetActiveConfig(r.Context(), driverID)
	if err != nil {
		if errors.Is(err, payroll.ErrConfigMissing) {
			writeError(w, http.StatusNotFound, "No active rate config for driver", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load rate config", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateConfigDTO(config))
}

// SaveRateConfig replaces the driver's active config. The prior active one
// is deactivated; already-aggregated settlements are untouched.
func (h *Handler) SaveRateConfig(w http.ResponseWriter, r *http.Request) {
	driverID := payroll.DriverID(chi.URLParam(r, "id"))

	var req SaveRateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	config := payroll.RateConfig{DriverID: driverID, Active: true}
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"base_salary", req.BaseSalary, &config.BaseSalary},
		{"per_diem_value", req.PerDiemValue, &config.PerDiemValue},
		{"overtime_hour_rate", req.OvertimeHourRate, &config.OvertimeHourRate},
		{"weekend_hour_rate", req.WeekendHourRate, &config.WeekendHourRate},
		{"holiday_hour_rate", req.HolidayHourRate, &config.HolidayHourRate},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+f.name+" (use a decimal string)", err)
			return
		}
		*f.dst = value
	}

	if err := h.Configs.SaveConfig(r.Context(), config); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateConfigDTO(config))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all declared holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, holiday := range holidays {
		dtos[i] = toHolidayDTO(holiday)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeclareHoliday declares a holiday and retroactively overlays every open
// settlement containing the date.
func (h *Handler) DeclareHoliday(w http.ResponseWriter, r *http.Request) {
	var req DeclareHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := payroll.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday, err := h.Settlements.DeclareHoliday(r.Context(), payroll.Holiday{Date: date, Name: req.Name})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// RevokeHoliday deletes a declared holiday and clears it from every open
// settlement containing the date.
func (h *Handler) RevokeHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Settlements.RevokeHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// CreateSettlement opens a settlement, optionally pre-populated with manual
// day entries.
func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req CreateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	periodStart, err := payroll.ParseDate(req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start (use YYYY-MM-DD)", err)
		return
	}
	periodEnd, err := payroll.ParseDate(req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end (use YYYY-MM-DD)", err)
		return
	}

	driverID := payroll.DriverID(req.DriverID)
	days := make([]payroll.DayRecord, 0, len(req.Days))
	for _, dayReq := range req.Days {
		entry, err := parseManualEntry(dayReq)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		day, err := h.Manual.BuildDay(r.Context(), driverID, entry)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		days = append(days, day)
	}

	deductions, err := toDeductions(req.Deductions)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	s, err := h.Settlements.Create(r.Context(), settlement.CreateParams{
		DriverID:    driverID,
		DriverName:  req.DriverName,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Notes:       req.Notes,
		Days:        days,
		Deductions:  deductions,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementDTO(s))
}

// GetSettlement returns one settlement with its day set.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settlements.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// ListSettlements returns a driver's settlements.
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	driverID := r.URL.Query().Get("driver_id")
	if driverID == "" {
		writeError(w, http.StatusBadRequest, "driver_id query parameter is required", nil)
		return
	}

	settlements, err := h.Settlements.ListByDriver(r.Context(), payroll.DriverID(driverID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}
	dtos := make([]SettlementDTO, len(settlements))
	for i, s := range settlements {
		dtos[i] = toSettlementDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateSettlement edits the header. Base-salary or deduction changes
// recompute the whole day set.
func (h *Handler) UpdateSettlement(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	update := settlement.HeaderUpdate{Notes: req.Notes}
	if req.BaseSalary != nil {
		base, err := decimal.NewFromString(*req.BaseSalary)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid base_salary (use a decimal string)", err)
			return
		}
		update.BaseSalary = &base
	}
	if req.Deductions != nil {
		deductions, err := toDeductions(*req.Deductions)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		if deductions == nil {
			deductions = []payroll.Deduction{}
		}
		update.Deductions = deductions
	}

	s, err := h.Settlements.UpdateHeader(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// DeleteSettlement removes a settlement. Paid settlements are refused.
func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.Settlements.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionSettlement moves a settlement through its lifecycle.
func (h *Handler) TransitionSettlement(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var payment *settlement.Payment
	if req.Payment != nil {
		date, err := payroll.ParseDate(req.Payment.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment date (use YYYY-MM-DD)", err)
			return
		}
		payment = &settlement.Payment{Date: date, Method: req.Payment.Method}
	}

	s, err := h.Settlements.Transition(r.Context(), chi.URLParam(r, "id"), settlement.Status(req.Status), payment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// =============================================================================
// DAY-RECORD HANDLERS
// =============================================================================

// AddDays appends manual day entries to an open settlement.
func (h *Handler) AddDays(w http.ResponseWriter, r *http.Request) {
	var reqs []ManualDayRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body (expected an array of day entries)", err)
		return
	}

	id := chi.URLParam(r, "id")
	s, err := h.Settlements.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	days := make([]payroll.DayRecord, 0, len(reqs))
	for _, dayReq := range reqs {
		entry, err := parseManualEntry(dayReq)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		day, err := h.Manual.BuildDay(r.Context(), s.DriverID, entry)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		days = append(days, day)
	}

	s, err = h.Settlements.AddDays(r.Context(), id, days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// EditDay replaces one day's worked hours and re-derives its breakdown.
func (h *Handler) EditDay(w http.ResponseWriter, r *http.Request) {
	var req EditDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	totalHours, err := decimal.NewFromString(req.TotalHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_hours (use a decimal string)", err)
		return
	}

	s, err := h.Settlements.EditDayHours(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "dayID"), totalHours)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// RemoveDay deletes one day record from an open settlement.
func (h *Handler) RemoveDay(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settlements.RemoveDay(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "dayID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// ImportDays commits a finished ingestion session's day set into an open
// settlement.
func (h *Handler) ImportDays(w http.ResponseWriter, r *http.Request) {
	var req ImportDaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, ok := h.Pipeline.Get(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "Ingestion session not found", nil)
		return
	}
	days, err := session.Result()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	s, err := h.Settlements.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if s.DriverID != session.DriverID {
		writeError(w, http.StatusConflict, "Ingestion session belongs to a different driver", nil)
		return
	}

	s, err = h.Settlements.AddDays(r.Context(), id, days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	// A committed session has served its purpose; drop it from the registry.
	h.Pipeline.Remove(req.SessionID)
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// =============================================================================
// INGESTION HANDLERS
// =============================================================================

// UploadDocument accepts a tracker report (multipart field "document") and
// starts an ingestion session. Responds immediately with the session; the
// caller polls GET /api/ingestions/{id}.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	driverID := payroll.DriverID(chi.URLParam(r, "id"))

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing document file field", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read upload", err)
		return
	}

	// The pipeline outlives this request; it must not inherit the request's
	// cancellation.
	session, err := h.Pipeline.Start(context.Background(), driverID, header.Filename, data)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toIngestionDTO(session))
}

// GetIngestion returns session progress; once done it includes the
// provisional day set for review.
func (h *Handler) GetIngestion(w http.ResponseWriter, r *http.Request) {
	session, ok := h.Pipeline.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Ingestion session not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toIngestionDTO(session))
}

// AbandonIngestion marks a session dead; a late-arriving extraction result
// will be discarded.
func (h *Handler) AbandonIngestion(w http.ResponseWriter, r *http.Request) {
	session, ok := h.Pipeline.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Ingestion session not found", nil)
		return
	}
	session.Abandon()
	writeJSON(w, http.StatusOK, toIngestionDTO(session))
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseManualEntry(req ManualDayRequest) (ingest.ManualEntry, error) {
	var entry ingest.ManualEntry
	var err error

	if req.Date != "" {
		if entry.Date, err = payroll.ParseDate(req.Date); err != nil {
			return entry, &payroll.ValidationError{Field: "date", Message: "must be in YYYY-MM-DD form"}
		}
	}
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"total_hours", req.TotalHours, &entry.TotalHours},
		{"night_hours", req.NightHours, &entry.NightHours},
		{"distance_km", req.DistanceKm, &entry.DistanceKm},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if *f.dst, err = decimal.NewFromString(f.value); err != nil {
			return entry, &payroll.ValidationError{Field: f.name, Message: "must be a decimal string"}
		}
	}
	return entry, nil
}

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlement.ErrNotFound), errors.Is(err, settlement.ErrDayNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, payroll.ErrConfigMissing):
		writeError(w, http.StatusConflict, "No active rate config for driver", err)
	case errors.Is(err, settlement.ErrDuplicateDate):
		writeError(w, http.StatusConflict, "Duplicate date in settlement", err)
	case errors.Is(err, settlement.ErrSettlementLocked):
		writeError(w, http.StatusConflict, "Settlement is no longer open", err)
	case errors.Is(err, settlement.ErrInvalidStatusChange),
		errors.Is(err, settlement.ErrPaymentDetailsRequired):
		writeError(w, http.StatusConflict, "Invalid status change", err)
	case payroll.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case payroll.IsRetryable(err):
		writeError(w, http.StatusBadGateway, "Extraction service failed, try again", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
