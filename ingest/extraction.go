/*
extraction.go - External document-extraction service client

PURPOSE:
  Defines the contract with the external structured-extraction service (the
  OCR/AI collaborator): one batched request carrying every page image of a
  tracker report, answered with a list of provisional day entries or an
  error with a human-readable reason.

TRUST BOUNDARY:
  The service is untrusted. Every numeric field of every provisional entry
  is range/sign validated before it reaches the calculator; the verbatim
  entry is retained on the day record for traceability.

SEE ALSO:
  - document.go: the pipeline issuing the batched call
  - payroll/calculator.go: DayInput.Validate, the range checks
*/
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/frotaops/settlement-engine/payroll"
)

// =============================================================================
// CONTRACT
// =============================================================================

// ProvisionalEntry is one per-day row as returned by the extraction service,
// kept in its wire shape. Retained verbatim as the day's raw payload.
type ProvisionalEntry struct {
	Date          string  `json:"date"` // ISO 2006-01-02
	Weekday       int     `json:"weekday"`
	TotalHours    float64 `json:"totalHours"`
	NormalHours   float64 `json:"normalHours"`
	OvertimeHours float64 `json:"overtimeHours"`
	DistanceKm    float64 `json:"distanceKm"`
	MovingHours   float64 `json:"movingHours"`
	IdlingHours   float64 `json:"idlingHours"`
	NightHours    float64 `json:"nightHours"`
}

// ExtractionRequest is the single batched request: every page image of the
// document, in order, plus a filename hint.
type ExtractionRequest struct {
	Filename string      `json:"filename"`
	Pages    []PageImage `json:"pages"`
}

// ExtractionClient is the consumed extraction service. Implementations must
// honor ctx cancellation; the call itself may run for an open-ended duration.
type ExtractionClient interface {
	Extract(ctx context.Context, req ExtractionRequest) ([]ProvisionalEntry, error)
}

// ToDayInput validates the untrusted entry and converts it into calculator
// input, resolving the holiday flag against the currently declared set.
// The weekday field from the service is ignored: the weekday is always
// derived from the date.
func (e ProvisionalEntry) ToDayInput(holidays payroll.HolidaySet) (payroll.DayInput, error) {
	date, err := payroll.ParseDate(e.Date)
	if err != nil {
		return payroll.DayInput{}, &payroll.ValidationError{Field: "date", Message: fmt.Sprintf("unparseable: %q", e.Date)}
	}

	in := payroll.DayInput{
		Date:       date,
		TotalHours: decimal.NewFromFloat(e.TotalHours),
		NightHours: decimal.NewFromFloat(e.NightHours),
		DistanceKm: decimal.NewFromFloat(e.DistanceKm),
	}
	if holiday, ok := holidays.Lookup(date); ok {
		in.IsHoliday = true
		in.HolidayName = holiday.Name
	}
	if err := in.Validate(); err != nil {
		return payroll.DayInput{}, err
	}
	return in, nil
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// HTTPExtractionClient talks JSON to the extraction service. No client-side
// timeout is set: the service gives no progress signal and may legitimately
// run long, so the only bound is the caller's context.
type HTTPExtractionClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPExtractionClient(baseURL string) *HTTPExtractionClient {
	return &HTTPExtractionClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

type extractionResponse struct {
	Entries []ProvisionalEntry `json:"entries"`
	Error   string             `json:"error,omitempty"`
}

func (c *HTTPExtractionClient) Extract(ctx context.Context, req ExtractionRequest) ([]ProvisionalEntry, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/extract-days", bytes.NewReader(body))
	if err != nil {
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: err.Error()}
	}

	var decoded extractionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: "malformed response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		reason := decoded.Error
		if reason == "" {
			reason = fmt.Sprintf("service returned status %d", resp.StatusCode)
		}
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: reason}
	}
	return decoded.Entries, nil
}
