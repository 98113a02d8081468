package analysis

import (
	"math"
	"strings"
	"time"
)

// StressMethod identifies how a TSS value was derived
type StressMethod string

const (
	MethodHRTrimp          StressMethod = "hr_trimp"
	MethodDurationEstimate StressMethod = "duration_estimate"
)

// Confidence tags the reliability of a derived score
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Physiological band outside of which an average HR is treated as suspect
const (
	MinPlausibleHR = 40
	MaxPlausibleHR = 220
	// avgHR above maxHR * this factor is not used for the HR path
	maxHROvershoot = 1.15
)

// Activity is one training session as delivered by the activity fetcher
type Activity struct {
	ID              int64     `json:"activityId"`
	Type            string    `json:"activityType"`
	StartTime       time.Time `json:"startTime"`
	DurationSeconds int       `json:"durationSeconds"`
	AverageHR       *float64  `json:"averageHR,omitempty"`
	MaxHR           *float64  `json:"maxHR,omitempty"`
}

// StressConfig holds athlete heart-rate settings used for scoring.
// ThresholdHR of 0 means "estimate from MaxHR".
type StressConfig struct {
	RestingHR   float64 `json:"restingHR"`
	MaxHR       float64 `json:"maxHR"`
	ThresholdHR float64 `json:"thresholdHR,omitempty"`
}

// DefaultStressConfig returns sensible defaults if not configured
func DefaultStressConfig() StressConfig {
	return StressConfig{
		RestingHR: 50,
		MaxHR:     185,
	}
}

// thresholdHR returns the threshold HR and whether it was supplied explicitly
func (c StressConfig) thresholdHR() (float64, bool) {
	if c.ThresholdHR > 0 {
		return c.ThresholdHR, true
	}
	return 0.9 * c.MaxHR, false
}

// ActivityStress is the TSS derived from a single activity
type ActivityStress struct {
	ActivityID      int64        `json:"activityId"`
	ActivityType    string       `json:"activityType"`
	StartTime       time.Time    `json:"startTime"`
	DurationSeconds int          `json:"durationSeconds"`
	TSS             float64      `json:"tss"`
	Method          StressMethod `json:"method"`
	Confidence      Confidence   `json:"confidence"`
	AvgHR           *float64     `json:"avgHR,omitempty"`
	MaxHR           *float64     `json:"maxHR,omitempty"`
	ThresholdHR     float64      `json:"thresholdHR,omitempty"`
	RestingHR       float64      `json:"restingHR,omitempty"`
	IntensityFactor float64      `json:"intensityFactor,omitempty"`
}

// durationRates is TSS per hour by normalized activity type
var durationRates = map[string]float64{
	"running":       70,
	"trail_running": 75,
	"cycling":       60,
	"virtual_ride":  65,
	"swimming":      60,
	"rowing":        65,
	"hiking":        40,
	"walking":       30,
	"strength":      40,
	"yoga":          20,
}

// defaultDurationRate applies to activity types with no entry in durationRates
const defaultDurationRate = 50

var activityTypeAliases = map[string]string{
	"run":               "running",
	"running":           "running",
	"treadmill":         "running",
	"trailrun":          "trail_running",
	"trail_run":         "trail_running",
	"trail_running":     "trail_running",
	"ride":              "cycling",
	"cycling":           "cycling",
	"road_biking":       "cycling",
	"mountainbikeride":  "cycling",
	"virtualride":       "virtual_ride",
	"virtual_ride":      "virtual_ride",
	"indoor_cycling":    "virtual_ride",
	"swim":              "swimming",
	"swimming":          "swimming",
	"lap_swimming":      "swimming",
	"rowing":            "rowing",
	"hike":              "hiking",
	"hiking":            "hiking",
	"walk":              "walking",
	"walking":           "walking",
	"weighttraining":    "strength",
	"strength":          "strength",
	"strength_training": "strength",
	"yoga":              "yoga",
}

// NormalizeActivityType maps provider type names onto the rate table keys
func NormalizeActivityType(activityType string) string {
	key := strings.ToLower(strings.TrimSpace(activityType))
	key = strings.ReplaceAll(key, " ", "_")
	if alias, ok := activityTypeAliases[key]; ok {
		return alias
	}
	return key
}

// DurationRate returns the TSS-per-hour estimate for an activity type
func DurationRate(activityType string) float64 {
	if rate, ok := durationRates[NormalizeActivityType(activityType)]; ok {
		return rate
	}
	return defaultDurationRate
}

// EstimateDurationTSS is the duration-only scoring path. Unlike ScoreActivity
// it rejects non-positive durations.
func EstimateDurationTSS(activityType string, durationSeconds int) (float64, error) {
	if durationSeconds <= 0 {
		return 0, invalid("durationSeconds", durationSeconds, "a positive number of seconds")
	}
	hours := float64(durationSeconds) / 3600.0
	return hours * DurationRate(activityType), nil
}

// ScoreActivity converts an activity into a Training Stress Score.
// Degenerate input yields TSS 0 instead of an error; callers inspect
// Method and Confidence to judge quality.
func ScoreActivity(a Activity, cfg StressConfig) ActivityStress {
	result := ActivityStress{
		ActivityID:      a.ID,
		ActivityType:    a.Type,
		StartTime:       a.StartTime,
		DurationSeconds: a.DurationSeconds,
		AvgHR:           a.AverageHR,
		MaxHR:           a.MaxHR,
		RestingHR:       cfg.RestingHR,
	}

	if a.DurationSeconds <= 0 {
		result.Method = MethodDurationEstimate
		result.Confidence = ConfidenceLow
		return result
	}
	hours := float64(a.DurationSeconds) / 3600.0

	threshold, explicit := cfg.thresholdHR()
	result.ThresholdHR = threshold

	if hrUsable(a.AverageHR, cfg) {
		avgHR := *a.AverageHR
		result.Method = MethodHRTrimp

		if cfg.RestingHR >= threshold {
			result.Confidence = ConfidenceLow
			return result
		}

		intensity := (avgHR - cfg.RestingHR) / (threshold - cfg.RestingHR)
		if intensity < 0 {
			intensity = 0
		}
		result.IntensityFactor = math.Round(intensity*100) / 100
		result.TSS = round1(hours * intensity * intensity * 100)

		switch {
		case avgHR < MinPlausibleHR || avgHR > MaxPlausibleHR:
			result.Confidence = ConfidenceLow
		case explicit:
			result.Confidence = ConfidenceHigh
		default:
			result.Confidence = ConfidenceMedium
		}
		return result
	}

	result.Method = MethodDurationEstimate
	result.Confidence = ConfidenceLow
	result.TSS = round1(hours * DurationRate(a.Type))
	return result
}

// hrUsable reports whether the average HR can drive the HR-based path
func hrUsable(avgHR *float64, cfg StressConfig) bool {
	if avgHR == nil || *avgHR <= 0 {
		return false
	}
	if *avgHR <= cfg.RestingHR {
		return false
	}
	if cfg.MaxHR > 0 && *avgHR > cfg.MaxHR*maxHROvershoot {
		return false
	}
	return true
}

// ScoreActivities scores each activity with the same configuration
func ScoreActivities(activities []Activity, cfg StressConfig) []ActivityStress {
	stresses := make([]ActivityStress, 0, len(activities))
	for _, a := range activities {
		stresses = append(stresses, ScoreActivity(a, cfg))
	}
	return stresses
}
