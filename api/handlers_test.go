package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frotaops/settlement-engine/api"
	"github.com/frotaops/settlement-engine/ingest"
	"github.com/frotaops/settlement-engine/settlement"
	"github.com/frotaops/settlement-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeExtractionClient struct {
	entries []ingest.ProvisionalEntry
	err     error
}

func (f *fakeExtractionClient) Extract(ctx context.Context, req ingest.ExtractionRequest) ([]ingest.ProvisionalEntry, error) {
	return f.entries, f.err
}

type testServer struct {
	router *chi.Mux
	store  *memory.Store
}

func newTestServer(t *testing.T, client ingest.ExtractionClient) *testServer {
	t.Helper()
	if client == nil {
		client = &fakeExtractionClient{}
	}
	store := memory.New()
	service := settlement.NewService(store, store, store, nil)
	manual := ingest.NewManualAdapter(store, store)
	pipeline := ingest.NewPipeline(client, store, store, nil)
	handler := api.NewHandler(service, manual, pipeline, store, store)
	return &testServer{router: api.NewRouter(handler), store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (ts *testServer) saveConfig(t *testing.T, driverID string) {
	t.Helper()
	rec := ts.do(t, http.MethodPut, "/api/drivers/"+driverID+"/config", api.SaveRateConfigRequest{
		BaseSalary:       "2700",
		PerDiemValue:     "50",
		OvertimeHourRate: "15",
		WeekendHourRate:  "20",
		HolidayHourRate:  "30",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (ts *testServer) createSettlement(t *testing.T, days []api.ManualDayRequest) api.SettlementDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/settlements", api.CreateSettlementRequest{
		DriverID:    "driver-1",
		DriverName:  "João Silva",
		PeriodStart: "2025-03-01",
		PeriodEnd:   "2025-03-31",
		Days:        days,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.SettlementDTO](t, rec)
}

// =============================================================================
// RATE CONFIG
// =============================================================================

func TestRateConfig_PutThenGet(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.saveConfig(t, "driver-1")

	rec := ts.do(t, http.MethodGet, "/api/drivers/driver-1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decode[api.RateConfigDTO](t, rec)
	assert.Equal(t, "2700", dto.BaseSalary)
	assert.Equal(t, "50", dto.PerDiemValue)
	assert.True(t, dto.Active)
	assert.NotEmpty(t, dto.NightHourRate)
}

func TestRateConfig_MissingIs404(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/drivers/ghost/config", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateConfig_RejectsNonDecimalBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPut, "/api/drivers/driver-1/config", api.SaveRateConfigRequest{
		BaseSalary: "two thousand",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func TestSettlement_CreateAggregatesDays(t *testing.T) {
	// GIVEN: a configured driver
	// WHEN: a settlement is created with a 10h weekday and a 6h Saturday
	// THEN: gross = 2700 base + 80 + 170 = 2950

	ts := newTestServer(t, nil)
	ts.saveConfig(t, "driver-1")

	dto := ts.createSettlement(t, []api.ManualDayRequest{
		{Date: "2025-03-12", TotalHours: "10"},
		{Date: "2025-03-15", TotalHours: "6"},
	})

	assert.Equal(t, "CLT-032025-JOAO", dto.Code)
	assert.Equal(t, "open", dto.Status)
	assert.Equal(t, "manual", dto.EntryType)
	assert.Equal(t, "2950", dto.Totals.GrossTotal)
	assert.Equal(t, "2950", dto.Totals.NetTotal)
	require.Len(t, dto.Days, 2)
	assert.Equal(t, "80", dto.Days[0].DayTotal)
	assert.Equal(t, "Wednesday", dto.Days[0].Weekday)
	assert.Equal(t, "170", dto.Days[1].DayTotal)
}

func TestSettlement_CreateWithoutConfigIs409(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/settlements", api.CreateSettlementRequest{
		DriverID:    "driver-1",
		DriverName:  "João Silva",
		PeriodStart: "2025-03-01",
		PeriodEnd:   "2025-03-31",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[api.ErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "rate config")
}

func TestSettlement_DayMutations(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.saveConfig(t, "driver-1")
	created := ts.createSettlement(t, []api.ManualDayRequest{{Date: "2025-03-12", TotalHours: "10"}})

	// Duplicate date is refused.
	rec := ts.do(t, http.MethodPost, "/api/settlements/"+created.ID+"/days",
		[]api.ManualDayRequest{{Date: "2025-03-12", TotalHours: "8"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Adding a fresh date re-aggregates.
	rec = ts.do(t, http.MethodPost, "/api/settlements/"+created.ID+"/days",
		[]api.ManualDayRequest{{Date: "2025-03-15", TotalHours: "6"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[api.SettlementDTO](t, rec)
	assert.Equal(t, "2950", dto.Totals.GrossTotal)

	// Editing hours re-derives the day's whole breakdown.
	dayID := dto.Days[0].ID
	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/settlements/%s/days/%s", created.ID, dayID),
		api.EditDayRequest{TotalHours: "8"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto = decode[api.SettlementDTO](t, rec)
	assert.Equal(t, "2920", dto.Totals.GrossTotal) // overtime 30 dropped

	// Removing the Saturday drops its 170.
	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/settlements/%s/days/%s", created.ID, dto.Days[1].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto = decode[api.SettlementDTO](t, rec)
	assert.Equal(t, "2750", dto.Totals.GrossTotal)
	assert.Len(t, dto.Days, 1)
}

func TestSettlement_Lifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.saveConfig(t, "driver-1")
	created := ts.createSettlement(t, []api.ManualDayRequest{{Date: "2025-03-12", TotalHours: "8"}})
	statusURL := "/api/settlements/" + created.ID + "/status"

	// Paid straight from open is not allowed.
	rec := ts.do(t, http.MethodPost, statusURL, api.TransitionRequest{Status: "paid"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, statusURL, api.TransitionRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Day records are frozen once approved.
	rec = ts.do(t, http.MethodPost, "/api/settlements/"+created.ID+"/days",
		[]api.ManualDayRequest{{Date: "2025-03-13", TotalHours: "8"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Paid needs payment details.
	rec = ts.do(t, http.MethodPost, statusURL, api.TransitionRequest{Status: "paid"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, statusURL, api.TransitionRequest{
		Status:  "paid",
		Payment: &api.PaymentDTO{Date: "2025-04-05", Method: "pix"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[api.SettlementDTO](t, rec)
	require.NotNil(t, dto.Payment)
	assert.Equal(t, "pix", dto.Payment.Method)

	// Paid settlements cannot be deleted.
	rec = ts.do(t, http.MethodDelete, "/api/settlements/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettlement_HeaderUpdateRecomputesGross(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.saveConfig(t, "driver-1")
	created := ts.createSettlement(t, []api.ManualDayRequest{{Date: "2025-03-12", TotalHours: "8"}})

	base := "3000"
	rec := ts.do(t, http.MethodPut, "/api/settlements/"+created.ID, api.UpdateSettlementRequest{
		BaseSalary: &base,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[api.SettlementDTO](t, rec)
	assert.Equal(t, "3000", dto.BaseSalary)
	assert.Equal(t, "3050", dto.Totals.GrossTotal)
}

func TestSettlement_DeductionsReduceNet(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.saveConfig(t, "driver-1")
	created := ts.createSettlement(t, []api.ManualDayRequest{{Date: "2025-03-12", TotalHours: "8"}})

	deductions := []api.DeductionDTO{{Label: "INSS", Amount: "206.25"}}
	rec := ts.do(t, http.MethodPut, "/api/settlements/"+created.ID, api.UpdateSettlementRequest{
		Deductions: &deductions,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[api.SettlementDTO](t, rec)
	assert.Equal(t, "2750", dto.Totals.GrossTotal)
	assert.Equal(t, "2543.75", dto.Totals.NetTotal)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHoliday_DeclareOverlaysOpenSettlement(t *testing.T) {
	// GIVEN: an open settlement containing Sunday March 16 (8h, total 210)
	// WHEN: that date is declared a holiday
	// THEN: the settlement's day re-values to 450 (weekend + holiday stack)

	ts := newTestServer(t, nil)
	ts.saveConfig(t, "driver-1")
	created := ts.createSettlement(t, []api.ManualDayRequest{{Date: "2025-03-16", TotalHours: "8"}})
	assert.Equal(t, "210", created.Days[0].DayTotal)

	rec := ts.do(t, http.MethodPost, "/api/holidays", api.DeclareHolidayRequest{
		Date: "2025-03-16",
		Name: "Páscoa",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	holiday := decode[api.HolidayDTO](t, rec)

	rec = ts.do(t, http.MethodGet, "/api/settlements/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[api.SettlementDTO](t, rec)
	assert.True(t, dto.Days[0].IsHoliday)
	assert.Equal(t, "450", dto.Days[0].DayTotal)

	// Revoking restores the pre-holiday valuation.
	rec = ts.do(t, http.MethodDelete, "/api/holidays/"+holiday.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/settlements/"+created.ID, nil)
	dto = decode[api.SettlementDTO](t, rec)
	assert.False(t, dto.Days[0].IsHoliday)
	assert.Equal(t, "210", dto.Days[0].DayTotal)
}

func TestHoliday_DeclareRequiresName(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/holidays", api.DeclareHolidayRequest{Date: "2025-03-16"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// INGESTION
// =============================================================================

func TestIngestion_UploadPollImport(t *testing.T) {
	client := &fakeExtractionClient{entries: []ingest.ProvisionalEntry{
		{Date: "2025-03-12", TotalHours: 10, DistanceKm: 420},
	}}
	ts := newTestServer(t, client)
	ts.saveConfig(t, "driver-1")
	created := ts.createSettlement(t, nil)

	// Upload a one-page image report.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", "relatorio.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n-fake-page-bitmap"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/drivers/driver-1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	session := decode[api.IngestionDTO](t, rec)
	require.NotEmpty(t, session.ID)

	// Poll until the session is terminal.
	var polled api.IngestionDTO
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = ts.do(t, http.MethodGet, "/api/ingestions/"+session.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		polled = decode[api.IngestionDTO](t, rec)
		if polled.Stage == string(ingest.StageDone) || strings.HasPrefix(polled.Stage, "fail") {
			break
		}
		require.True(t, time.Now().Before(deadline), "ingestion never finished")
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, string(ingest.StageDone), polled.Stage)
	require.Len(t, polled.Days, 1)
	assert.Equal(t, "tracker", polled.Days[0].Source)

	// Commit the provisional day set into the settlement.
	rec = ts.do(t, http.MethodPost, "/api/settlements/"+created.ID+"/days/import",
		api.ImportDaysRequest{SessionID: session.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[api.SettlementDTO](t, rec)
	assert.Equal(t, "automatic", dto.EntryType)
	assert.Equal(t, "2780", dto.Totals.GrossTotal)
	assert.Equal(t, "420", dto.Totals.TotalDistanceKm)

	// The committed session is dropped from the registry.
	rec = ts.do(t, http.MethodGet, "/api/ingestions/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestion_AbandonIsTerminal(t *testing.T) {
	// A blocking client keeps the session in flight long enough to abandon.
	block := make(chan struct{})
	defer close(block)
	client := &blockingClient{block: block}
	ts := newTestServer(t, client)
	ts.saveConfig(t, "driver-1")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", "relatorio.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n-fake-page-bitmap"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/drivers/driver-1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	session := decode[api.IngestionDTO](t, rec)

	rec = ts.do(t, http.MethodDelete, "/api/ingestions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[api.IngestionDTO](t, rec)
	assert.Equal(t, string(ingest.StageAbandoned), dto.Stage)
}

type blockingClient struct {
	block chan struct{}
}

func (b *blockingClient) Extract(ctx context.Context, req ingest.ExtractionRequest) ([]ingest.ProvisionalEntry, error) {
	<-b.block
	return nil, nil
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
