package analysis

import (
	"errors"
	"strings"
	"testing"
)

func taperRequest(strategy TaperStrategy, days int) TaperRequest {
	return TaperRequest{
		Today:        testToday,
		RaceDate:     "2024-03-15",
		DurationDays: days,
		Strategy:     strategy,
		Current:      State{CTL: 60, ATL: 65, TSB: -5},
	}
}

func TestTaperStrategyShapes(t *testing.T) {
	p := newTestPredictor(t)

	linear, err := p.GenerateTaperPlan(taperRequest(TaperLinear, 7))
	if err != nil {
		t.Fatalf("linear: %v", err)
	}
	if len(linear.Schedule) != 7 {
		t.Fatalf("linear schedule length = %d, want 7", len(linear.Schedule))
	}
	if linear.Schedule[0].PlannedTSS <= linear.Schedule[6].PlannedTSS {
		t.Errorf("linear: day 0 (%v) should exceed day 6 (%v)", linear.Schedule[0].PlannedTSS, linear.Schedule[6].PlannedTSS)
	}

	exp, err := p.GenerateTaperPlan(taperRequest(TaperExponential, 7))
	if err != nil {
		t.Fatalf("exponential: %v", err)
	}
	s := exp.Schedule
	early := s[0].PlannedTSS - s[3].PlannedTSS
	late := s[3].PlannedTSS - s[6].PlannedTSS
	if early <= late {
		t.Errorf("exponential: early drop %v should exceed late drop %v", early, late)
	}

	step, err := p.GenerateTaperPlan(taperRequest(TaperStep, 7))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	distinct := map[float64]bool{}
	for _, d := range step.Schedule {
		distinct[d.PlannedTSS] = true
	}
	if len(distinct) >= len(step.Schedule) {
		t.Errorf("step: %d distinct levels across %d days", len(distinct), len(step.Schedule))
	}
}

func TestTaperLevels(t *testing.T) {
	linear := taperLevels(TaperLinear, 4, 100, 60)
	want := []float64{90, 80, 70, 60}
	for i := range want {
		if linear[i] != want[i] {
			t.Errorf("linear[%d] = %v, want %v", i, linear[i], want[i])
		}
	}

	step := taperLevels(TaperStep, 6, 90, 60)
	wantStep := []float64{80, 80, 70, 70, 60, 60}
	for i := range wantStep {
		if step[i] != wantStep[i] {
			t.Errorf("step[%d] = %v, want %v", i, step[i], wantStep[i])
		}
	}

	exp := taperLevels(TaperExponential, 10, 100, 50)
	if last := exp[9]; last < 50 || last > 50+0.05*50+1e-9 {
		t.Errorf("exponential final day = %v, want within 5%% of floor", last)
	}
}

func TestGenerateTaperPlanDates(t *testing.T) {
	p := newTestPredictor(t)
	plan, err := p.GenerateTaperPlan(taperRequest(TaperLinear, 7))
	if err != nil {
		t.Fatalf("GenerateTaperPlan() error = %v", err)
	}
	if plan.TaperStartDate != "2024-03-08" {
		t.Errorf("TaperStartDate = %s, want 2024-03-08", plan.TaperStartDate)
	}
	if plan.Schedule[0].Date != "2024-03-08" || plan.Schedule[6].Date != "2024-03-14" {
		t.Errorf("schedule spans %s..%s", plan.Schedule[0].Date, plan.Schedule[6].Date)
	}
	if plan.PreTaperDays != 6 {
		t.Errorf("PreTaperDays = %d, want 6", plan.PreTaperDays)
	}
	if plan.Strategy.PeakTSS != 60 || plan.Strategy.FloorTSS != 30 || plan.Strategy.VolumeReduction != 50 {
		t.Errorf("strategy = %+v", plan.Strategy)
	}
	last := plan.Schedule[6]
	if plan.TargetState.PredictedTSB != last.PredictedTSB {
		t.Errorf("target state TSB %v should equal final schedule day %v", plan.TargetState.PredictedTSB, last.PredictedTSB)
	}
	if last.ReductionPct != 50 {
		t.Errorf("final day reduction = %v, want 50", last.ReductionPct)
	}
	if plan.TargetState.PredictedTSB <= plan.CurrentState.TSB {
		t.Errorf("taper should raise TSB: %v -> %v", plan.CurrentState.TSB, plan.TargetState.PredictedTSB)
	}
}

func TestGenerateTaperPlanDefaults(t *testing.T) {
	p := newTestPredictor(t)
	plan, err := p.GenerateTaperPlan(TaperRequest{
		Today:    testToday,
		RaceDate: "2024-04-01",
		Current:  State{CTL: 70, ATL: 70},
	})
	if err != nil {
		t.Fatalf("GenerateTaperPlan() error = %v", err)
	}
	if plan.TaperDurationDays != DefaultTaperDays || len(plan.Schedule) != DefaultTaperDays {
		t.Errorf("duration = %d, want %d", plan.TaperDurationDays, DefaultTaperDays)
	}
	if plan.Strategy.Name != TaperLinear {
		t.Errorf("strategy = %v, want linear", plan.Strategy.Name)
	}
	if plan.TargetState.TargetTSB != DefaultTargetTSB {
		t.Errorf("target TSB = %v, want %v", plan.TargetState.TargetTSB, DefaultTargetTSB)
	}
	if len(plan.CriticalWorkouts) != 0 {
		t.Errorf("CriticalWorkouts = %v, want none without maintainIntensity", plan.CriticalWorkouts)
	}
}

func TestGenerateTaperPlanWarnings(t *testing.T) {
	p := newTestPredictor(t)

	plan, err := p.GenerateTaperPlan(TaperRequest{
		Today:        testToday,
		RaceDate:     "2024-03-05",
		DurationDays: 14,
		Current:      State{CTL: 20, ATL: 45, TSB: -25},
	})
	if err != nil {
		t.Fatalf("GenerateTaperPlan() error = %v", err)
	}
	if plan.TaperDurationDays != 3 {
		t.Errorf("shortened duration = %d, want 3", plan.TaperDurationDays)
	}

	want := []string{"shortened", "may not clear", "fitness is low", "already -25.0"}
	joined := strings.Join(plan.Warnings, "\n")
	for _, w := range want {
		if !strings.Contains(joined, w) {
			t.Errorf("warnings missing %q:\n%s", w, joined)
		}
	}
}

func TestGenerateTaperPlanMaintainIntensity(t *testing.T) {
	p := newTestPredictor(t)
	req := taperRequest(TaperLinear, 10)
	req.MaintainIntensity = true

	plan, err := p.GenerateTaperPlan(req)
	if err != nil {
		t.Fatalf("GenerateTaperPlan() error = %v", err)
	}
	if len(plan.CriticalWorkouts) == 0 {
		t.Error("CriticalWorkouts is empty with maintainIntensity")
	}
}

func TestGenerateTaperPlanValidation(t *testing.T) {
	p := newTestPredictor(t)
	tooMuch := 95.0

	tests := []struct {
		name      string
		mutate    func(*TaperRequest)
		wantParam string
	}{
		{"race in past", func(r *TaperRequest) { r.RaceDate = "2024-02-01" }, "raceDate"},
		{"race tomorrow", func(r *TaperRequest) { r.RaceDate = "2024-03-02" }, "raceDate"},
		{"bad date", func(r *TaperRequest) { r.RaceDate = "15/03/2024" }, "raceDate"},
		{"duration too long", func(r *TaperRequest) { r.DurationDays = 43 }, "taperDays"},
		{"negative duration", func(r *TaperRequest) { r.DurationDays = -1 }, "taperDays"},
		{"reduction too large", func(r *TaperRequest) { r.VolumeReduction = &tooMuch }, "volumeReduction"},
		{"unknown strategy", func(r *TaperRequest) { r.Strategy = "cliff" }, "strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := taperRequest(TaperLinear, 7)
			tt.mutate(&req)
			_, err := p.GenerateTaperPlan(req)
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
