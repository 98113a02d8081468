package analysis

import (
	"errors"
	"math"
	"testing"
	"time"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestDefaultStressConfig(t *testing.T) {
	cfg := DefaultStressConfig()

	if cfg.RestingHR != 50 {
		t.Errorf("DefaultStressConfig().RestingHR = %v, want 50", cfg.RestingHR)
	}
	if cfg.MaxHR != 185 {
		t.Errorf("DefaultStressConfig().MaxHR = %v, want 185", cfg.MaxHR)
	}
	if thr, explicit := cfg.thresholdHR(); thr != 166.5 || explicit {
		t.Errorf("thresholdHR() = %v, %v, want 166.5, false", thr, explicit)
	}
}

func TestScoreActivity(t *testing.T) {
	start := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		activity       Activity
		cfg            StressConfig
		wantTSS        float64
		delta          float64
		wantMethod     StressMethod
		wantConfidence Confidence
	}{
		{
			name: "HR path with estimated threshold",
			activity: Activity{
				Type:            "Run",
				DurationSeconds: 3600,
				AverageHR:       floatPtr(150),
			},
			cfg: DefaultStressConfig(),
			// IF = (150-50)/(166.5-50) = 0.858
			// TSS = 1h * 0.858^2 * 100
			wantTSS:        73.7,
			delta:          0.05,
			wantMethod:     MethodHRTrimp,
			wantConfidence: ConfidenceMedium,
		},
		{
			name: "HR path with explicit threshold",
			activity: Activity{
				Type:            "Run",
				DurationSeconds: 3600,
				AverageHR:       floatPtr(150),
			},
			cfg:            StressConfig{RestingHR: 50, MaxHR: 185, ThresholdHR: 160},
			wantTSS:        82.6,
			delta:          0.05,
			wantMethod:     MethodHRTrimp,
			wantConfidence: ConfidenceHigh,
		},
		{
			name: "implausibly low HR still scored with low confidence",
			activity: Activity{
				Type:            "Walk",
				DurationSeconds: 3600,
				AverageHR:       floatPtr(35),
			},
			cfg:            StressConfig{RestingHR: 30, MaxHR: 185},
			wantTSS:        0.1,
			delta:          0.05,
			wantMethod:     MethodHRTrimp,
			wantConfidence: ConfidenceLow,
		},
		{
			name: "HR below resting falls back to duration",
			activity: Activity{
				Type:            "Run",
				DurationSeconds: 3600,
				AverageHR:       floatPtr(45),
			},
			cfg:            DefaultStressConfig(),
			wantTSS:        70,
			delta:          0.05,
			wantMethod:     MethodDurationEstimate,
			wantConfidence: ConfidenceLow,
		},
		{
			name: "HR far above max falls back to duration",
			activity: Activity{
				Type:            "Run",
				DurationSeconds: 1800,
				AverageHR:       floatPtr(250),
			},
			cfg:            DefaultStressConfig(),
			wantTSS:        35,
			delta:          0.05,
			wantMethod:     MethodDurationEstimate,
			wantConfidence: ConfidenceLow,
		},
		{
			name: "no HR ride",
			activity: Activity{
				Type:            "Ride",
				DurationSeconds: 7200,
			},
			cfg:            DefaultStressConfig(),
			wantTSS:        120,
			delta:          0.05,
			wantMethod:     MethodDurationEstimate,
			wantConfidence: ConfidenceLow,
		},
		{
			name: "unknown type uses default rate",
			activity: Activity{
				Type:            "Kayaking",
				DurationSeconds: 3600,
			},
			cfg:            DefaultStressConfig(),
			wantTSS:        50,
			delta:          0.05,
			wantMethod:     MethodDurationEstimate,
			wantConfidence: ConfidenceLow,
		},
		{
			name: "zero duration",
			activity: Activity{
				Type:      "Run",
				AverageHR: floatPtr(150),
			},
			cfg:            DefaultStressConfig(),
			wantTSS:        0,
			delta:          0,
			wantMethod:     MethodDurationEstimate,
			wantConfidence: ConfidenceLow,
		},
		{
			name: "resting at or above threshold",
			activity: Activity{
				Type:            "Run",
				DurationSeconds: 3600,
				AverageHR:       floatPtr(150),
			},
			cfg:            StressConfig{RestingHR: 120, MaxHR: 185, ThresholdHR: 110},
			wantTSS:        0,
			delta:          0,
			wantMethod:     MethodHRTrimp,
			wantConfidence: ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.activity.ID = 42
			tt.activity.StartTime = start
			got := ScoreActivity(tt.activity, tt.cfg)
			if math.Abs(got.TSS-tt.wantTSS) > tt.delta {
				t.Errorf("TSS = %v, want %v (±%v)", got.TSS, tt.wantTSS, tt.delta)
			}
			if got.Method != tt.wantMethod {
				t.Errorf("Method = %v, want %v", got.Method, tt.wantMethod)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.ActivityID != 42 || !got.StartTime.Equal(start) {
				t.Errorf("identity not carried over: id=%d start=%v", got.ActivityID, got.StartTime)
			}
		})
	}
}

func TestScoreActivityIntensityFactorRounded(t *testing.T) {
	got := ScoreActivity(Activity{Type: "Run", DurationSeconds: 3600, AverageHR: floatPtr(150)}, DefaultStressConfig())
	if got.IntensityFactor != 0.86 {
		t.Errorf("IntensityFactor = %v, want 0.86", got.IntensityFactor)
	}
}

func TestNormalizeActivityType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Run", "running"},
		{"TrailRun", "trail_running"},
		{"VirtualRide", "virtual_ride"},
		{"Weight Training", "weight_training"},
		{"WeightTraining", "strength"},
		{" Swim ", "swimming"},
		{"Kayaking", "kayaking"},
	}
	for _, tt := range tests {
		if got := NormalizeActivityType(tt.in); got != tt.want {
			t.Errorf("NormalizeActivityType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEstimateDurationTSS(t *testing.T) {
	got, err := EstimateDurationTSS("Hike", 5400)
	if err != nil {
		t.Fatalf("EstimateDurationTSS() error = %v", err)
	}
	if math.Abs(got-60) > 0.01 {
		t.Errorf("EstimateDurationTSS(Hike, 90min) = %v, want 60", got)
	}

	_, err = EstimateDurationTSS("Run", 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("EstimateDurationTSS(0) error = %v, want ErrInvalidInput", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Param != "durationSeconds" {
		t.Errorf("error = %#v, want ValidationError on durationSeconds", err)
	}
}

func TestScoreActivities(t *testing.T) {
	activities := []Activity{
		{ID: 1, Type: "Run", DurationSeconds: 3600},
		{ID: 2, Type: "Ride", DurationSeconds: 3600, AverageHR: floatPtr(140)},
	}
	got := ScoreActivities(activities, DefaultStressConfig())
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ActivityID != 1 || got[1].ActivityID != 2 {
		t.Errorf("order not preserved: %d, %d", got[0].ActivityID, got[1].ActivityID)
	}
	if got[1].Method != MethodHRTrimp {
		t.Errorf("second activity method = %v, want %v", got[1].Method, MethodHRTrimp)
	}
}
