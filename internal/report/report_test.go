package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"formcoach/internal/analysis"
	"formcoach/internal/service"
	"formcoach/internal/store"
)

func TestBalance(t *testing.T) {
	series := []analysis.LoadPoint{
		{Date: "2024-03-01", TSS: 70, CTL: 1.7, ATL: 10, TSB: -8.3},
		{Date: "2024-03-02", TSS: 0, CTL: 1.6, ATL: 8.6, TSB: -7},
		{Date: "2024-03-03", TSS: 70, CTL: 3.3, ATL: 17.4, TSB: -14.1},
	}
	res := analysis.BuildBalanceResult(series, nil, nil, true)

	out := Balance(&res)
	for _, want := range []string{"Training Stress Balance", "2024-03-03", "-14.1", "CTL / ATL / TSB", "Last 3 days"} {
		if !strings.Contains(out, want) {
			t.Errorf("Balance() output missing %q:\n%s", want, out)
		}
	}
}

func TestBalanceEmpty(t *testing.T) {
	res := analysis.BuildBalanceResult(nil, nil, nil, true)
	out := Balance(&res)
	if !strings.Contains(out, "No training data") {
		t.Errorf("empty balance should carry the no-data recommendation:\n%s", out)
	}
	if strings.Contains(out, "CTL / ATL / TSB") {
		t.Error("chart rendered without a series")
	}
}

func TestBalanceWeeks(t *testing.T) {
	points := []analysis.LoadPoint{
		{Date: "2024-03-03", TSS: 70, CTL: 1.7, ATL: 10, TSB: -8.3},
		{Date: "2024-03-04", TSS: 50, CTL: 2.8, ATL: 15.9, TSB: -13.1},
	}
	days := []analysis.DailyStress{
		{Date: "2024-03-03", TotalTSS: 70, ActivityCount: 1, Activities: []analysis.ActivitySummary{{Method: analysis.MethodHRTrimp}}},
		{Date: "2024-03-04", TotalTSS: 50, ActivityCount: 1, Activities: []analysis.ActivitySummary{{Method: analysis.MethodDurationEstimate}}},
	}
	res := analysis.BuildBalanceResult(points, days, nil, false)

	out := Balance(&res)
	for _, want := range []string{"Weekly load", "2024-02-26", "2024-03-04", "2 (1 HR, 1 estimated)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Balance() output missing %q:\n%s", want, out)
		}
	}
}

func TestAnalysisCorrelationLabel(t *testing.T) {
	r := -0.42
	fa := analysis.FormAnalysis{Correlation: &r}
	out := Analysis(&fa)
	if !strings.Contains(out, "TSS vs TSB change") || !strings.Contains(out, "-0.42") {
		t.Errorf("Analysis() output:\n%s", out)
	}
	if strings.Contains(out, "CTL/TSB") {
		t.Errorf("correlation mislabelled:\n%s", out)
	}
}

func TestAnalysisNotEnoughHistory(t *testing.T) {
	fa := analysis.BuildFormAnalysis(nil, nil, nil, false)
	out := Analysis(&fa)
	if !strings.Contains(out, "Not enough history") {
		t.Errorf("Analysis() output:\n%s", out)
	}
}

func TestTaper(t *testing.T) {
	p, err := analysis.NewPredictor(nil)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := p.GenerateTaperPlan(analysis.TaperRequest{
		RaceDate: "2099-01-20",
		Today:    mustDate(t, "2099-01-01"),
		Strategy: analysis.TaperStep,
		Current:  analysis.State{CTL: 60, ATL: 65, TSB: -5},
	})
	if err != nil {
		t.Fatalf("GenerateTaperPlan() error = %v", err)
	}
	out := Taper(plan)
	for _, want := range []string{"race 2099-01-20", "step taper", plan.Schedule[0].Date, plan.Schedule[len(plan.Schedule)-1].Date} {
		if !strings.Contains(out, want) {
			t.Errorf("Taper() output missing %q", want)
		}
	}
}

func TestScenario(t *testing.T) {
	days, err := analysis.SimulateScenario(analysis.State{CTL: 60, ATL: 60}, 7, analysis.ConstantTSS(100), analysis.DefaultLoadConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	out := Scenario(days)
	if !strings.Contains(out, "-20.2") {
		t.Errorf("Scenario() missing final TSB:\n%s", out)
	}
	if got := Scenario(nil); !strings.Contains(got, "Empty scenario") {
		t.Errorf("Scenario(nil) = %q", got)
	}
}

func TestSyncPartial(t *testing.T) {
	res := &service.SyncResult{
		RunID:             "run-1",
		ActivitiesFetched: 100,
		ActivitiesStored:  100,
		Errors:            []error{errors.New("fetching page 2: API error 500")},
	}
	out := Sync(res)
	if !strings.Contains(out, "partial data kept") || !strings.Contains(out, "API error 500") {
		t.Errorf("Sync() output:\n%s", out)
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := analysis.ParseDate("date", s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestStatus(t *testing.T) {
	started := time.Date(2024, 3, 6, 6, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	latest := time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)
	out := Status(&service.Status{
		Activities:    3,
		FirstActivity: "2024-03-01",
		LastActivity:  &latest,
		LastSync:      &store.SyncRun{ID: "run-9", StartedAt: started, FinishedAt: &finished, Fetched: 4, Stored: 3, Error: "page 2: timeout"},
		LoadHistory:   store.LoadSpan{First: "2024-03-01", Last: "2024-03-07", Days: 7},
		LoadModel:     "hr=50/190/0 load=42/7",
	})
	for _, want := range []string{"run-9", "3 of 4", "page 2: timeout", "7 days (2024-03-01 to 2024-03-07)", "2024-03-05 07:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("status report missing %q:\n%s", want, out)
		}
	}

	if out := Status(&service.Status{}); !strings.Contains(out, "Never synced") {
		t.Errorf("empty status report:\n%s", out)
	}
}
