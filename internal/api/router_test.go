package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"formcoach/internal/analysis"
	"formcoach/internal/service"
	"formcoach/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeForm struct {
	balanceQuery  service.BalanceQuery
	analysisQuery service.AnalysisQuery
	predictReq    analysis.PredictionRequest
	taperReq      analysis.TaperRequest
	recoveryReq   analysis.RecoveryRequest
	scenarioDays  int
	scenarioPlan  analysis.TSSPlan
	activityID    int64
	err           error
}

func (f *fakeForm) TrainingStressBalance(ctx context.Context, q service.BalanceQuery) (*analysis.TrainingStressBalanceResult, error) {
	f.balanceQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.TrainingStressBalanceResult{
		Current: analysis.LoadPoint{Date: "2024-03-07", CTL: 55.2, ATL: 60.1, TSB: -4.9},
		Zone:    analysis.ZoneMaintenance,
	}, nil
}

func (f *fakeForm) AnalyzeForm(ctx context.Context, q service.AnalysisQuery) (*analysis.FormAnalysis, error) {
	f.analysisQuery = q
	return &analysis.FormAnalysis{Warnings: []string{}}, f.err
}

func (f *fakeForm) PredictForm(ctx context.Context, req analysis.PredictionRequest) (*analysis.Prediction, error) {
	f.predictReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Prediction{TargetDate: req.TargetDate, DaysAhead: 3}, nil
}

func (f *fakeForm) PlanTaper(ctx context.Context, req analysis.TaperRequest) (*analysis.TaperPlan, error) {
	f.taperReq = req
	return &analysis.TaperPlan{RaceDate: req.RaceDate}, f.err
}

func (f *fakeForm) EstimateRecovery(ctx context.Context, req analysis.RecoveryRequest) (*analysis.RecoveryEstimate, error) {
	f.recoveryReq = req
	return &analysis.RecoveryEstimate{Days: 3, Reached: true}, f.err
}

func (f *fakeForm) Simulate(ctx context.Context, days int, plan analysis.TSSPlan) ([]analysis.ScenarioDay, error) {
	f.scenarioDays, f.scenarioPlan = days, plan
	return make([]analysis.ScenarioDay, days), f.err
}

func (f *fakeForm) ActivityStress(ctx context.Context, id int64) (*analysis.ActivityStress, error) {
	f.activityID = id
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.ActivityStress{ActivityID: id, TSS: 70, Method: analysis.MethodDurationEstimate}, nil
}

func (f *fakeForm) Status(ctx context.Context) (*service.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	finished := time.Date(2024, 3, 6, 6, 1, 0, 0, time.UTC)
	return &service.Status{
		Activities: 3,
		LastSync:   &store.SyncRun{ID: "run-9", FinishedAt: &finished, Stored: 3},
	}, nil
}

type fakeSyncer struct {
	since time.Time
}

func (f *fakeSyncer) Sync(ctx context.Context, since time.Time) (*service.SyncResult, error) {
	f.since = since
	return &service.SyncResult{
		RunID:             "run-1",
		ActivitiesFetched: 4,
		ActivitiesStored:  4,
		Errors:            []error{errors.New("page 2: timeout")},
	}, nil
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp Response
	if w.Code != http.StatusNotFound {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decoding body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	r := SetupRouter(&fakeForm{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("GET /health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("response has no request id")
	}
}

func TestRequestIDPropagates(t *testing.T) {
	r := SetupRouter(&fakeForm{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	form := &fakeForm{}
	r := SetupRouter(form, nil, nil)

	w, resp := do(t, r, http.MethodGet, "/api/v1/form/balance?days=30&includeSeries=true&ctlDays=28", "")
	if w.Code != http.StatusOK || resp.Code != 0 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	want := service.BalanceQuery{Days: 30, IncludeSeries: true, CTLDays: 28}
	if form.balanceQuery != want {
		t.Errorf("query = %+v, want %+v", form.balanceQuery, want)
	}
	if !strings.Contains(w.Body.String(), `"tsb":-4.9`) {
		t.Errorf("body missing current TSB: %s", w.Body.String())
	}

	w, _ = do(t, r, http.MethodGet, "/api/v1/form/balance?days=lots", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric days status = %d, want 400", w.Code)
	}
}

func TestAnalysisEndpointQuery(t *testing.T) {
	form := &fakeForm{}
	r := SetupRouter(form, nil, nil)

	w, _ := do(t, r, http.MethodGet, "/api/v1/form/analysis?predictDays=7&plannedTSS=55.5&includeCorrelation=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	q := form.analysisQuery
	if q.PredictDays != 7 || !q.WithCorrelation || q.PlannedTSS == nil || *q.PlannedTSS != 55.5 {
		t.Errorf("query = %+v", q)
	}
}

func TestPredictEndpoint(t *testing.T) {
	form := &fakeForm{}
	r := SetupRouter(form, nil, nil)

	w, resp := do(t, r, http.MethodPost, "/api/v1/form/predict", `{"targetDate":"2024-03-10","plannedTSS":[50,60],"recoveryDays":[1]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp.Message != "success" {
		t.Errorf("message = %q", resp.Message)
	}
	got := form.predictReq
	if got.TargetDate != "2024-03-10" || !got.PlannedTSS.IsDaily() || len(got.RecoveryDays) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestPredictEndpointBadPlan(t *testing.T) {
	r := SetupRouter(&fakeForm{}, nil, nil)
	w, resp := do(t, r, http.MethodPost, "/api/v1/form/predict", `{"targetDate":"2024-03-10","plannedTSS":"lots"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp.Param != "plannedTSS" {
		t.Errorf("param = %q, want plannedTSS", resp.Param)
	}
}

func TestValidationErrorsMapTo400(t *testing.T) {
	form := &fakeForm{err: &analysis.ValidationError{Param: "targetDate", Value: "2024-01-01", Expected: "a future date"}}
	r := SetupRouter(form, nil, nil)

	w, resp := do(t, r, http.MethodPost, "/api/v1/form/predict", `{"targetDate":"2024-01-01","plannedTSS":50}`)
	if w.Code != http.StatusBadRequest || resp.Param != "targetDate" {
		t.Errorf("status = %d, param = %q", w.Code, resp.Param)
	}
}

func TestInternalErrorsMapTo500(t *testing.T) {
	form := &fakeForm{err: errors.New("database is locked")}
	r := SetupRouter(form, nil, nil)

	w, resp := do(t, r, http.MethodGet, "/api/v1/form/balance", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(resp.Message, "locked") {
		t.Errorf("internal detail leaked: %q", resp.Message)
	}
}

func TestTaperRecoveryScenarioEndpoints(t *testing.T) {
	form := &fakeForm{}
	r := SetupRouter(form, nil, nil)

	w, _ := do(t, r, http.MethodPost, "/api/v1/form/taper", `{"raceDate":"2024-04-01","taperDays":10,"strategy":"step","volumeReduction":40}`)
	if w.Code != http.StatusOK {
		t.Fatalf("taper status = %d, body = %s", w.Code, w.Body.String())
	}
	if form.taperReq.Strategy != analysis.TaperStep || form.taperReq.DurationDays != 10 || *form.taperReq.VolumeReduction != 40 {
		t.Errorf("taper request = %+v", form.taperReq)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/form/recovery", `{"targetZone":"fresh","rest":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("recovery status = %d", w.Code)
	}
	if form.recoveryReq.TargetZone != analysis.ZoneFresh || !form.recoveryReq.Rest {
		t.Errorf("recovery request = %+v", form.recoveryReq)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/form/scenario", `{"days":5,"plannedTSS":80}`)
	if w.Code != http.StatusOK {
		t.Fatalf("scenario status = %d", w.Code)
	}
	if form.scenarioDays != 5 || form.scenarioPlan.IsDaily() {
		t.Errorf("scenario = %d days, plan %+v", form.scenarioDays, form.scenarioPlan)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/form/scenario", `{"days":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestSyncEndpoint(t *testing.T) {
	r := SetupRouter(&fakeForm{}, nil, nil)
	if w, _ := do(t, r, http.MethodPost, "/api/v1/sync", ""); w.Code != http.StatusNotFound {
		t.Errorf("sync without syncer status = %d, want 404", w.Code)
	}

	syncer := &fakeSyncer{}
	r = SetupRouter(&fakeForm{}, syncer, nil)
	w, _ := do(t, r, http.MethodPost, "/api/v1/sync?since=2024-01-01", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !syncer.since.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since = %v", syncer.since)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"runId":"run-1"`) || !strings.Contains(body, "page 2: timeout") {
		t.Errorf("body = %s", body)
	}

	w, resp := do(t, r, http.MethodPost, "/api/v1/sync?since=yesterday", "")
	if w.Code != http.StatusBadRequest || resp.Param != "since" {
		t.Errorf("bad since: status = %d, param = %q", w.Code, resp.Param)
	}
}

func TestStatusEndpoint(t *testing.T) {
	r := SetupRouter(&fakeForm{}, nil, nil)
	w, _ := do(t, r, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"activities":3`) || !strings.Contains(body, `"id":"run-9"`) {
		t.Errorf("body = %s", body)
	}

	r = SetupRouter(&fakeForm{err: errors.New("disk gone")}, nil, nil)
	if w, _ := do(t, r, http.MethodGet, "/api/v1/status", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("failing status = %d, want 500", w.Code)
	}
}

func TestActivityStressEndpoint(t *testing.T) {
	form := &fakeForm{}
	r := SetupRouter(form, nil, nil)

	w, _ := do(t, r, http.MethodGet, "/api/v1/activities/17/stress", "")
	if w.Code != http.StatusOK || form.activityID != 17 {
		t.Fatalf("status = %d, id = %d", w.Code, form.activityID)
	}
	if !strings.Contains(w.Body.String(), `"method":"duration_estimate"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	w, resp := do(t, r, http.MethodGet, "/api/v1/activities/latest/stress", "")
	if w.Code != http.StatusBadRequest || resp.Param != "id" {
		t.Errorf("non-numeric id: status = %d, param = %q", w.Code, resp.Param)
	}
}
