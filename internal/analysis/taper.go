package analysis

import (
	"fmt"
	"math"
	"time"
)

// TaperStrategy selects the shape of the pre-race load reduction
type TaperStrategy string

const (
	TaperLinear      TaperStrategy = "linear"
	TaperExponential TaperStrategy = "exponential"
	TaperStep        TaperStrategy = "step"
)

// Taper defaults
const (
	DefaultTaperDays       = 14
	DefaultTargetTSB       = 17.0
	DefaultVolumeReduction = 50.0
	MaxTaperDays           = 42
	MaxVolumeReduction     = 90.0

	minEffectiveTaperDays = 5
	lowFitnessCTL         = 30.0
	deepFatigueTSB        = -20.0
	targetTolerance       = 5.0
	exponentialResidual   = 0.05 // share of the reduction left on the final day
	stepPlateaus          = 3
)

var strategyDescriptions = map[TaperStrategy]string{
	TaperLinear:      "Load falls by the same amount every day until the floor is reached on the eve of the race",
	TaperExponential: "Most of the reduction happens early; the last days change little",
	TaperStep:        "Load drops in three plateaus, holding each level for a third of the taper",
}

// Valid reports whether s names a known strategy
func (s TaperStrategy) Valid() bool {
	_, ok := strategyDescriptions[s]
	return ok
}

// TaperRequest describes a taper to plan. Zero or nil fields take the
// package defaults.
type TaperRequest struct {
	Today             time.Time     `json:"-"`
	RaceDate          string        `json:"raceDate"`
	DurationDays      int           `json:"taperDays,omitempty"`
	TargetTSB         *float64      `json:"targetTSB,omitempty"`
	Strategy          TaperStrategy `json:"strategy,omitempty"`
	VolumeReduction   *float64      `json:"volumeReduction,omitempty"` // percent
	MaintainIntensity bool          `json:"maintainIntensity,omitempty"`
	PeakTSS           float64       `json:"peakTSS,omitempty"` // defaults to current CTL
	Current           State         `json:"current"`
}

// TaperStrategyInfo describes the strategy a plan was built with
type TaperStrategyInfo struct {
	Name            TaperStrategy `json:"name"`
	Description     string        `json:"description"`
	VolumeReduction float64       `json:"volumeReduction"`
	PeakTSS         float64       `json:"peakTSS"`
	FloorTSS        float64       `json:"floorTSS"`
}

// TaperDay is one day of the schedule
type TaperDay struct {
	Day           int      `json:"day"`
	Date          string   `json:"date"`
	PlannedTSS    float64  `json:"plannedTSS"`
	ReductionPct  float64  `json:"reductionPct"`
	PredictedCTL  float64  `json:"predictedCTL"`
	PredictedATL  float64  `json:"predictedATL"`
	PredictedTSB  float64  `json:"predictedTSB"`
	PredictedZone FormZone `json:"predictedZone"`
	Notes         string   `json:"notes,omitempty"`
}

// TaperTarget is the projected race-morning state against the target TSB
type TaperTarget struct {
	TargetTSB          float64  `json:"targetTSB"`
	PredictedTSB       float64  `json:"predictedTSB"`
	PredictedCTL       float64  `json:"predictedCTL"`
	PredictedATL       float64  `json:"predictedATL"`
	PredictedZone      FormZone `json:"predictedZone"`
	FitnessRetainedPct float64  `json:"fitnessRetainedPct"`
	TargetReached      bool     `json:"targetReached"`
}

// TaperPlan is a day-by-day taper ending the day before the race
type TaperPlan struct {
	RaceDate          string            `json:"raceDate"`
	TaperStartDate    string            `json:"taperStartDate"`
	TaperDurationDays int               `json:"taperDurationDays"`
	PreTaperDays      int               `json:"preTaperDays"`
	Strategy          TaperStrategyInfo `json:"strategy"`
	CurrentState      State             `json:"currentState"`
	TargetState       TaperTarget       `json:"targetState"`
	Schedule          []TaperDay        `json:"schedule"`
	CriticalWorkouts  []string          `json:"criticalWorkouts,omitempty"`
	Warnings          []string          `json:"warnings"`
	Recommendations   []string          `json:"recommendations"`
}

// GenerateTaperPlan builds a taper schedule and runs it through the load
// filter. Days between today and the taper start are simulated at peak load.
// If the race is too close for the requested duration the taper is shortened.
func (p *Predictor) GenerateTaperPlan(req TaperRequest) (*TaperPlan, error) {
	today := req.Today
	if today.IsZero() {
		today = time.Now()
	}
	race, err := ParseDate("raceDate", req.RaceDate)
	if err != nil {
		return nil, err
	}
	daysToRace := daysBetween(today, race)
	if daysToRace < 2 {
		return nil, invalid("raceDate", req.RaceDate, "a date at least 2 days after "+FormatDate(today))
	}
	if daysToRace > MaxProjectionDays {
		return nil, invalid("raceDate", req.RaceDate, fmt.Sprintf("a date at most %d days ahead", MaxProjectionDays))
	}

	duration := req.DurationDays
	if duration == 0 {
		duration = DefaultTaperDays
	}
	if duration < 1 || duration > MaxTaperDays {
		return nil, invalid("taperDays", duration, fmt.Sprintf("a duration between 1 and %d days", MaxTaperDays))
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = TaperLinear
	}
	if !strategy.Valid() {
		return nil, invalid("strategy", string(strategy), "one of linear, exponential, step")
	}
	reduction := DefaultVolumeReduction
	if req.VolumeReduction != nil {
		reduction = *req.VolumeReduction
	}
	if reduction < 0 || reduction > MaxVolumeReduction {
		return nil, invalid("volumeReduction", reduction, fmt.Sprintf("a percentage between 0 and %.0f", MaxVolumeReduction))
	}
	targetTSB := DefaultTargetTSB
	if req.TargetTSB != nil {
		targetTSB = *req.TargetTSB
	}
	if req.PeakTSS < 0 {
		return nil, invalid("peakTSS", req.PeakTSS, "a non-negative TSS")
	}

	var warnings []string
	n := duration
	if n > daysToRace-1 {
		n = daysToRace - 1
		warnings = append(warnings, fmt.Sprintf("Race is %d days away; taper shortened from %d to %d days", daysToRace, duration, n))
	}
	if n < minEffectiveTaperDays {
		warnings = append(warnings, fmt.Sprintf("A %d-day taper may not clear enough fatigue; 7-14 days is typical", n))
	}
	if req.Current.CTL < lowFitnessCTL {
		warnings = append(warnings, fmt.Sprintf("Starting fitness is low (CTL %.1f); a long taper will cost a large share of it", req.Current.CTL))
	}
	if req.Current.TSB < deepFatigueTSB {
		warnings = append(warnings, fmt.Sprintf("Starting TSB is already %.1f; recover before the taper or it may not be enough", req.Current.TSB))
	}

	peak := req.PeakTSS
	if peak == 0 {
		peak = req.Current.CTL
	}
	floor := peak * (1 - reduction/100)
	levels := taperLevels(strategy, n, peak, floor)

	preTaper := daysToRace - 1 - n
	planned := make([]float64, 0, preTaper+n)
	for i := 0; i < preTaper; i++ {
		planned = append(planned, peak)
	}
	planned = append(planned, levels...)

	trajectory := simulate(req.Current, planned, today, p.load, p.classifier)
	taperStart := race.AddDate(0, 0, -n)

	plan := &TaperPlan{
		RaceDate:          FormatDate(race),
		TaperStartDate:    FormatDate(taperStart),
		TaperDurationDays: n,
		PreTaperDays:      preTaper,
		Strategy: TaperStrategyInfo{
			Name:            strategy,
			Description:     strategyDescriptions[strategy],
			VolumeReduction: round1(reduction),
			PeakTSS:         round1(peak),
			FloorTSS:        round1(floor),
		},
		CurrentState: State{
			CTL: round1(req.Current.CTL),
			ATL: round1(req.Current.ATL),
			TSB: round1(req.Current.TSB),
		},
		Schedule: make([]TaperDay, 0, n),
	}

	intensityDays := map[int]bool{}
	if req.MaintainIntensity {
		for i := 1; i < n-2; i += 3 {
			intensityDays[i] = true
		}
	}

	for i := 0; i < n; i++ {
		sim := trajectory[preTaper+i]
		day := TaperDay{
			Day:           i + 1,
			Date:          sim.Date,
			PlannedTSS:    sim.TSS,
			PredictedCTL:  sim.CTL,
			PredictedATL:  sim.ATL,
			PredictedTSB:  sim.TSB,
			PredictedZone: sim.Zone,
			Notes:         taperNote(strategy, i, n, levels, intensityDays[i]),
		}
		if peak > 0 {
			day.ReductionPct = round1((peak - levels[i]) / peak * 100)
		}
		plan.Schedule = append(plan.Schedule, day)
		if intensityDays[i] {
			plan.CriticalWorkouts = append(plan.CriticalWorkouts,
				fmt.Sprintf("%s: race-pace session at reduced volume (e.g. 3 x 5 min)", day.Date))
		}
	}
	if req.MaintainIntensity {
		plan.CriticalWorkouts = append(plan.CriticalWorkouts,
			fmt.Sprintf("%s: openers, 4 x 30 s at race pace with full recovery", FormatDate(race.AddDate(0, 0, -2))))
	}

	end := trajectory[len(trajectory)-1]
	plan.TargetState = TaperTarget{
		TargetTSB:     round1(targetTSB),
		PredictedTSB:  end.TSB,
		PredictedCTL:  end.CTL,
		PredictedATL:  end.ATL,
		PredictedZone: end.Zone,
		TargetReached: math.Abs(end.TSB-targetTSB) <= targetTolerance,
	}
	if req.Current.CTL > 0 {
		plan.TargetState.FitnessRetainedPct = round1(end.CTL / req.Current.CTL * 100)
	}
	if !plan.TargetState.TargetReached {
		warnings = append(warnings, fmt.Sprintf("Predicted race-day TSB %.1f misses the target of %.1f", end.TSB, targetTSB))
	}
	if warnings == nil {
		warnings = []string{}
	}
	plan.Warnings = warnings
	plan.Recommendations = taperRecommendations(plan, req.MaintainIntensity)

	p.logger.Debug("taper planned",
		"race", plan.RaceDate,
		"strategy", strategy,
		"days", n,
		"race_tsb", end.TSB,
		"target_reached", plan.TargetState.TargetReached)

	return plan, nil
}

// taperLevels returns the planned TSS for each of the n taper days
func taperLevels(strategy TaperStrategy, n int, peak, floor float64) []float64 {
	levels := make([]float64, n)
	drop := peak - floor
	switch strategy {
	case TaperExponential:
		r := math.Pow(exponentialResidual, 1/float64(n))
		for i := range levels {
			levels[i] = floor + drop*math.Pow(r, float64(i+1))
		}
	case TaperStep:
		plateaus := stepPlateaus
		if n < plateaus {
			plateaus = n
		}
		for i := range levels {
			k := i * plateaus / n
			levels[i] = peak - drop*float64(k+1)/float64(plateaus)
		}
	default:
		for i := range levels {
			levels[i] = peak - drop*float64(i+1)/float64(n)
		}
	}
	return levels
}

func taperNote(strategy TaperStrategy, i, n int, levels []float64, intensity bool) string {
	switch {
	case i == n-1:
		return "Day before race: rest or a short shakeout"
	case intensity:
		return "Keep a short race-pace session; cut the volume, not the intensity"
	case i == 0:
		return "Taper begins"
	case strategy == TaperStep && round1(levels[i]) != round1(levels[i-1]):
		return "Load steps down"
	}
	return ""
}

func taperRecommendations(plan *TaperPlan, maintainIntensity bool) []string {
	var recs []string
	t := plan.TargetState
	switch {
	case t.PredictedTSB < t.TargetTSB-targetTolerance:
		recs = append(recs, "Race-day form is below target: lengthen the taper or increase the volume reduction")
	case t.PredictedTSB > t.TargetTSB+targetTolerance:
		recs = append(recs, "Race-day form is above target: shorten the taper or reduce the volume cut to keep more fitness")
	default:
		recs = append(recs, "Taper lands close to the target TSB; follow the schedule")
	}
	if t.PredictedZone == ZoneOptimalRace {
		recs = append(recs, "Projected to arrive in optimal race form")
	}
	if maintainIntensity {
		recs = append(recs, "Keep two or three short race-pace efforts per week while volume drops")
	} else {
		recs = append(recs, "Include strides or short pickups so you stay sharp while intensity drops")
	}
	recs = append(recs, "Prioritise sleep and carbohydrate intake in the final 3 days")
	return recs
}
