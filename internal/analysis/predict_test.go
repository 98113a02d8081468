package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

var testToday = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestPredictor(t *testing.T) *Predictor {
	t.Helper()
	p, err := NewPredictor(nil)
	if err != nil {
		t.Fatalf("NewPredictor() error = %v", err)
	}
	return p
}

func TestTSSPlanNormalize(t *testing.T) {
	tests := []struct {
		name string
		plan TSSPlan
		days int
		want []float64
	}{
		{"constant", ConstantTSS(50), 3, []float64{50, 50, 50}},
		{"daily exact", DailyTSS([]float64{10, 20, 30}), 3, []float64{10, 20, 30}},
		{"daily short repeats last", DailyTSS([]float64{10, 20}), 4, []float64{10, 20, 20, 20}},
		{"daily long truncated", DailyTSS([]float64{10, 20, 30}), 2, []float64{10, 20}},
		{"empty daily", DailyTSS(nil), 2, []float64{0, 0}},
		{"zero value", TSSPlan{}, 2, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.Normalize(tt.days); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%d) = %v, want %v", tt.days, got, tt.want)
			}
		})
	}
}

func TestTSSPlanJSON(t *testing.T) {
	var req struct {
		Plan TSSPlan `json:"plannedTSS"`
	}
	if err := json.Unmarshal([]byte(`{"plannedTSS": 80}`), &req); err != nil {
		t.Fatalf("unmarshal scalar: %v", err)
	}
	if got := req.Plan.Normalize(2); !reflect.DeepEqual(got, []float64{80, 80}) {
		t.Errorf("scalar plan = %v", got)
	}

	if err := json.Unmarshal([]byte(`{"plannedTSS": [100, 0, 60]}`), &req); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if !req.Plan.IsDaily() {
		t.Error("array plan should be daily")
	}

	if err := json.Unmarshal([]byte(`{"plannedTSS": "lots"}`), &req); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("string plan error = %v, want ErrInvalidInput", err)
	}

	out, err := json.Marshal(DailyTSS([]float64{1, 2}))
	if err != nil || string(out) != "[1,2]" {
		t.Errorf("Marshal = %s, %v", out, err)
	}
}

func TestSimulateScenario(t *testing.T) {
	days, err := SimulateScenario(State{CTL: 60, ATL: 60}, 7, ConstantTSS(100), DefaultLoadConfig(), nil)
	if err != nil {
		t.Fatalf("SimulateScenario() error = %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("len = %d, want 7", len(days))
	}
	prevCTL, prevATL := 60.0, 60.0
	for _, d := range days {
		if d.CTL <= prevCTL || d.ATL <= prevATL {
			t.Errorf("day %d: CTL %v ATL %v should both rise", d.Day, d.CTL, d.ATL)
		}
		if d.ATL-prevATL <= d.CTL-prevCTL {
			t.Errorf("day %d: ATL should rise faster than CTL", d.Day)
		}
		prevCTL, prevATL = d.CTL, d.ATL
	}
	last := days[6]
	if last.TSB >= 0 {
		t.Errorf("day 7 TSB = %v, want negative", last.TSB)
	}
	if math.Abs(last.CTL-66.2) > 0.05 || math.Abs(last.ATL-86.4) > 0.05 || math.Abs(last.TSB+20.2) > 0.05 {
		t.Errorf("day 7 = %+v, want CTL 66.2 ATL 86.4 TSB -20.2", last)
	}
	if last.Zone != ZoneFatigued {
		t.Errorf("day 7 zone = %v, want %v", last.Zone, ZoneFatigued)
	}
}

func TestSimulateScenarioValidation(t *testing.T) {
	tests := []struct {
		name      string
		days      int
		plan      TSSPlan
		wantParam string
	}{
		{"zero days", 0, ConstantTSS(50), "days"},
		{"too long", MaxProjectionDays + 1, ConstantTSS(50), "days"},
		{"negative constant", 5, ConstantTSS(-1), "plannedTSS"},
		{"negative daily", 5, DailyTSS([]float64{10, -5}), "plannedTSS[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SimulateScenario(State{}, tt.days, tt.plan, DefaultLoadConfig(), nil)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Param != tt.wantParam {
				t.Errorf("error = %v, want ValidationError on %s", err, tt.wantParam)
			}
		})
	}
}

func TestPredictFutureForm(t *testing.T) {
	p := newTestPredictor(t)

	pred, err := p.PredictFutureForm(PredictionRequest{
		Today:      testToday,
		TargetDate: "2024-03-08",
		PlannedTSS: ConstantTSS(100),
		Current:    State{CTL: 60, ATL: 60, TSB: 0},
		Trajectory: true,
	})
	if err != nil {
		t.Fatalf("PredictFutureForm() error = %v", err)
	}
	if pred.DaysAhead != 7 {
		t.Errorf("DaysAhead = %d, want 7", pred.DaysAhead)
	}
	if math.Abs(pred.PredictedTSB+20.2) > 0.05 {
		t.Errorf("PredictedTSB = %v, want -20.2", pred.PredictedTSB)
	}
	if len(pred.Trajectory) != 7 || pred.Trajectory[6].Date != "2024-03-08" {
		t.Errorf("trajectory = %+v", pred.Trajectory)
	}
	if pred.Decay.CTLChange <= 0 || pred.Decay.ATLChange <= pred.Decay.CTLChange {
		t.Errorf("decay = %+v", pred.Decay)
	}
	if len(pred.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
}

func TestPredictFutureFormConfidence(t *testing.T) {
	p := newTestPredictor(t)
	current := State{CTL: 50, ATL: 45, TSB: 5}

	predict := func(target string, plan TSSPlan) float64 {
		t.Helper()
		pred, err := p.PredictFutureForm(PredictionRequest{
			Today:      testToday,
			TargetDate: target,
			PlannedTSS: plan,
			Current:    current,
		})
		if err != nil {
			t.Fatalf("PredictFutureForm(%s) error = %v", target, err)
		}
		return pred.Confidence
	}

	week := predict("2024-03-08", ConstantTSS(60))
	twoMonths := predict("2024-04-30", ConstantTSS(60))
	if week <= twoMonths {
		t.Errorf("confidence at 7 days (%v) should exceed 60 days (%v)", week, twoMonths)
	}
	// 100 * 0.95^7
	if math.Abs(week-69.8) > 0.11 {
		t.Errorf("7-day confidence = %v, want 69.8", week)
	}

	steady := predict("2024-03-03", ConstantTSS(100))
	erratic := predict("2024-03-03", DailyTSS([]float64{0, 200}))
	if erratic >= steady {
		t.Errorf("erratic plan confidence %v should be below steady %v", erratic, steady)
	}
	// cv = 1, penalty capped at 0.3
	if math.Abs(erratic-63.2) > 0.11 {
		t.Errorf("erratic confidence = %v, want 63.2", erratic)
	}
}

func TestPredictFutureFormRecoveryDays(t *testing.T) {
	p := newTestPredictor(t)
	pred, err := p.PredictFutureForm(PredictionRequest{
		Today:        testToday,
		TargetDate:   "2024-03-05",
		PlannedTSS:   ConstantTSS(80),
		RecoveryDays: []int{1, 3},
		Current:      State{CTL: 50, ATL: 50},
	})
	if err != nil {
		t.Fatalf("PredictFutureForm() error = %v", err)
	}
	want := []float64{80, 0, 80, 0}
	if !reflect.DeepEqual(pred.Assumptions.DailyPlannedTSS, want) {
		t.Errorf("planned = %v, want %v", pred.Assumptions.DailyPlannedTSS, want)
	}
}

func TestPredictFutureFormValidation(t *testing.T) {
	p := newTestPredictor(t)

	tests := []struct {
		name      string
		req       PredictionRequest
		wantParam string
	}{
		{
			name:      "past target",
			req:       PredictionRequest{TargetDate: "2024-02-20"},
			wantParam: "targetDate",
		},
		{
			name:      "target today",
			req:       PredictionRequest{TargetDate: "2024-03-01"},
			wantParam: "targetDate",
		},
		{
			name:      "malformed target",
			req:       PredictionRequest{TargetDate: "next week"},
			wantParam: "targetDate",
		},
		{
			name:      "recovery day out of range",
			req:       PredictionRequest{TargetDate: "2024-03-04", RecoveryDays: []int{3}},
			wantParam: "recoveryDays",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Today = testToday
			_, err := p.PredictFutureForm(tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", verr.Param, tt.wantParam)
			}
		})
	}
}

func TestPredictorUsesInjectedClassifier(t *testing.T) {
	c, err := NewZoneClassifier(map[FormZone]ZoneRange{
		ZoneProductiveTraining: Bounded(-20, 2),
		ZoneMaintenance:        Bounded(2, 10),
	})
	if err != nil {
		t.Fatalf("NewZoneClassifier() error = %v", err)
	}
	p, err := NewPredictor(c)
	if err != nil {
		t.Fatalf("NewPredictor() error = %v", err)
	}
	pred, err := p.PredictFutureForm(PredictionRequest{
		Today:      testToday,
		TargetDate: "2024-03-02",
		PlannedTSS: ConstantTSS(60),
		Current:    State{CTL: 60, ATL: 60},
	})
	if err != nil {
		t.Fatalf("PredictFutureForm() error = %v", err)
	}
	if pred.PredictedZone != ZoneProductiveTraining {
		t.Errorf("PredictedZone = %v, want %v under custom thresholds", pred.PredictedZone, ZoneProductiveTraining)
	}
}

func TestNewPredictorRejectsBadTimeConstants(t *testing.T) {
	if _, err := NewPredictor(nil, WithLoadConfig(LoadConfig{ATLDays: -3})); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}
