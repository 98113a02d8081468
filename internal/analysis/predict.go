package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Limits on forward projection horizons
const (
	MaxProjectionDays  = 365
	confidenceDecay    = 0.95
	maxVariancePenalty = 0.3
)

// TSSPlan is either a constant daily TSS or an explicit per-day series.
// The zero value plans zero stress every day.
type TSSPlan struct {
	constant *float64
	daily    []float64
}

// ConstantTSS plans the same stress for every day
func ConstantTSS(v float64) TSSPlan {
	return TSSPlan{constant: &v}
}

// DailyTSS plans an explicit stress per day, starting tomorrow
func DailyTSS(values []float64) TSSPlan {
	cp := make([]float64, len(values))
	copy(cp, values)
	return TSSPlan{daily: cp}
}

// IsDaily reports whether the plan carries an explicit per-day series
func (p TSSPlan) IsDaily() bool {
	return p.constant == nil && p.daily != nil
}

// Normalize expands the plan into exactly days values. A daily series
// shorter than the horizon repeats its last value.
func (p TSSPlan) Normalize(days int) []float64 {
	if days <= 0 {
		return nil
	}
	out := make([]float64, days)
	switch {
	case p.constant != nil:
		for i := range out {
			out[i] = *p.constant
		}
	case len(p.daily) > 0:
		for i := range out {
			if i < len(p.daily) {
				out[i] = p.daily[i]
			} else {
				out[i] = p.daily[len(p.daily)-1]
			}
		}
	}
	return out
}

func (p TSSPlan) validate() error {
	if p.constant != nil && *p.constant < 0 {
		return invalid("plannedTSS", *p.constant, "a non-negative TSS")
	}
	for i, v := range p.daily {
		if v < 0 {
			return invalid(fmt.Sprintf("plannedTSS[%d]", i), v, "a non-negative TSS")
		}
	}
	return nil
}

// MarshalJSON encodes the plan as a number or an array
func (p TSSPlan) MarshalJSON() ([]byte, error) {
	if p.constant != nil {
		return json.Marshal(*p.constant)
	}
	if p.daily == nil {
		return []byte("0"), nil
	}
	return json.Marshal(p.daily)
}

// UnmarshalJSON accepts either a number or an array of numbers
func (p *TSSPlan) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*p = ConstantTSS(scalar)
		return nil
	}
	var daily []float64
	if err := json.Unmarshal(data, &daily); err != nil {
		return invalid("plannedTSS", string(data), "a number or an array of numbers")
	}
	*p = DailyTSS(daily)
	return nil
}

// State is a (CTL, ATL, TSB) triple at a point in time
type State struct {
	CTL float64 `json:"ctl"`
	ATL float64 `json:"atl"`
	TSB float64 `json:"tsb"`
}

// StateOf builds a State from a load point
func StateOf(p LoadPoint) State {
	return State{CTL: p.CTL, ATL: p.ATL, TSB: p.TSB}
}

// ScenarioDay is one simulated day
type ScenarioDay struct {
	Day  int      `json:"day"` // 1-based offset from the start state
	Date string   `json:"date,omitempty"`
	TSS  float64  `json:"tss"`
	CTL  float64  `json:"ctl"`
	ATL  float64  `json:"atl"`
	TSB  float64  `json:"tsb"`
	Zone FormZone `json:"zone"`
}

// SimulateScenario projects the load filter forward from current for days
// under plan, classifying each day. It has no side effects.
func SimulateScenario(current State, days int, plan TSSPlan, cfg LoadConfig, classifier *ZoneClassifier) ([]ScenarioDay, error) {
	if days < 1 || days > MaxProjectionDays {
		return nil, invalid("days", days, fmt.Sprintf("a horizon between 1 and %d days", MaxProjectionDays))
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	if classifier == nil {
		classifier = DefaultZoneClassifier()
	}
	return simulate(current, plan.Normalize(days), time.Time{}, cfg, classifier), nil
}

// simulate assumes cfg is normalized. A zero start leaves dates empty;
// otherwise day i is dated start + i.
func simulate(current State, tss []float64, start time.Time, cfg LoadConfig, classifier *ZoneClassifier) []ScenarioDay {
	out := make([]ScenarioDay, 0, len(tss))
	ctl, atl := current.CTL, current.ATL
	for i, load := range tss {
		ctl, atl = StepLoad(ctl, atl, load, cfg)
		p := newLoadPoint("", load, ctl, atl)
		day := ScenarioDay{
			Day:  i + 1,
			TSS:  p.TSS,
			CTL:  p.CTL,
			ATL:  p.ATL,
			TSB:  p.TSB,
			Zone: classifier.Zone(p.TSB, p.CTL),
		}
		if !start.IsZero() {
			day.Date = FormatDate(start.AddDate(0, 0, i+1))
		}
		out = append(out, day)
	}
	return out
}

// Predictor projects form forward. Its classifier is injected so custom
// thresholds propagate to every projection.
type Predictor struct {
	classifier *ZoneClassifier
	load       LoadConfig
	logger     *slog.Logger
}

// NewPredictor creates a predictor; a nil classifier uses the defaults
func NewPredictor(classifier *ZoneClassifier, opts ...Option) (*Predictor, error) {
	if classifier == nil {
		classifier = DefaultZoneClassifier()
	}
	o := buildOptions(opts)
	load, err := o.load.normalized()
	if err != nil {
		return nil, err
	}
	return &Predictor{classifier: classifier, load: load, logger: o.logger}, nil
}

// Simulate is SimulateScenario with the predictor's configuration
func (p *Predictor) Simulate(current State, days int, plan TSSPlan) ([]ScenarioDay, error) {
	return SimulateScenario(current, days, plan, p.load, p.classifier)
}

// PredictionRequest describes a forward projection to a target date
type PredictionRequest struct {
	Today        time.Time `json:"-"`
	TargetDate   string    `json:"targetDate"`
	PlannedTSS   TSSPlan   `json:"plannedTSS"`
	RecoveryDays []int     `json:"recoveryDays,omitempty"` // 0-based offsets forced to TSS 0
	Current      State     `json:"current"`
	Trajectory   bool      `json:"includeTrajectory,omitempty"`
}

// PredictionAssumptions records the inputs a prediction was made under
type PredictionAssumptions struct {
	DailyPlannedTSS []float64 `json:"dailyPlannedTSS"`
	RecoveryDays    []int     `json:"recoveryDays,omitempty"`
	CurrentCTL      float64   `json:"currentCTL"`
	CurrentATL      float64   `json:"currentATL"`
	CurrentTSB      float64   `json:"currentTSB"`
}

// PredictionDecay summarises how fitness and fatigue move over the horizon
type PredictionDecay struct {
	CTLChange          float64 `json:"ctlChange"`
	ATLChange          float64 `json:"atlChange"`
	TSBChange          float64 `json:"tsbChange"`
	FitnessRetainedPct float64 `json:"fitnessRetainedPct"`
	FatigueClearedPct  float64 `json:"fatigueClearedPct"`
}

// Prediction is the projected state on a target date
type Prediction struct {
	TargetDate      string                `json:"targetDate"`
	DaysAhead       int                   `json:"daysAhead"`
	PredictedTSB    float64               `json:"predictedTSB"`
	PredictedCTL    float64               `json:"predictedCTL"`
	PredictedATL    float64               `json:"predictedATL"`
	PredictedZone   FormZone              `json:"predictedZone"`
	ZoneInfo        ZoneInfo              `json:"zoneInfo"`
	Confidence      float64               `json:"confidence"`
	Assumptions     PredictionAssumptions `json:"assumptions"`
	Decay           PredictionDecay       `json:"decay"`
	Trajectory      []ScenarioDay         `json:"trajectory,omitempty"`
	Recommendations []string              `json:"recommendations"`
}

// PredictFutureForm projects the current state to req.TargetDate. The target
// must be strictly after today. Feasibility of the plan is the caller's
// concern; nothing is clamped.
func (p *Predictor) PredictFutureForm(req PredictionRequest) (*Prediction, error) {
	today := req.Today
	if today.IsZero() {
		today = time.Now()
	}
	target, err := ParseDate("targetDate", req.TargetDate)
	if err != nil {
		return nil, err
	}
	days := daysBetween(today, target)
	if days < 1 {
		return nil, invalid("targetDate", req.TargetDate, "a date after "+FormatDate(today)+" (YYYY-MM-DD)")
	}
	if days > MaxProjectionDays {
		return nil, invalid("targetDate", req.TargetDate, fmt.Sprintf("a date at most %d days ahead", MaxProjectionDays))
	}
	if err := req.PlannedTSS.validate(); err != nil {
		return nil, err
	}

	planned := req.PlannedTSS.Normalize(days)
	for _, idx := range req.RecoveryDays {
		if idx < 0 || idx >= days {
			return nil, invalid("recoveryDays", idx, fmt.Sprintf("day offsets between 0 and %d", days-1))
		}
		planned[idx] = 0
	}

	trajectory := simulate(req.Current, planned, today, p.load, p.classifier)
	end := trajectory[len(trajectory)-1]
	cls := p.classifier.Classify(end.TSB, end.CTL)

	pred := &Prediction{
		TargetDate:    FormatDate(target),
		DaysAhead:     days,
		PredictedTSB:  end.TSB,
		PredictedCTL:  end.CTL,
		PredictedATL:  end.ATL,
		PredictedZone: cls.Zone,
		ZoneInfo:      cls.Info,
		Confidence:    predictionConfidence(days, planned),
		Assumptions: PredictionAssumptions{
			DailyPlannedTSS: planned,
			RecoveryDays:    req.RecoveryDays,
			CurrentCTL:      round1(req.Current.CTL),
			CurrentATL:      round1(req.Current.ATL),
			CurrentTSB:      round1(req.Current.TSB),
		},
		Decay: decayFigures(req.Current, end),
	}
	if req.Trajectory {
		pred.Trajectory = trajectory
	}
	pred.Recommendations = p.predictionRecommendations(pred)

	p.logger.Debug("form predicted",
		"target", pred.TargetDate,
		"days", days,
		"tsb", pred.PredictedTSB,
		"zone", pred.PredictedZone,
		"confidence", pred.Confidence)

	return pred, nil
}

// predictionConfidence decays 5% per day of horizon and is further reduced
// for erratic plans
func predictionConfidence(days int, planned []float64) float64 {
	confidence := 100 * math.Pow(confidenceDecay, float64(days))
	penalty := math.Min(maxVariancePenalty, coefficientOfVariation(planned)/2)
	confidence *= 1 - penalty
	return round1(math.Max(0, math.Min(100, confidence)))
}

func decayFigures(start State, end ScenarioDay) PredictionDecay {
	d := PredictionDecay{
		CTLChange: round1(end.CTL - start.CTL),
		ATLChange: round1(end.ATL - start.ATL),
		TSBChange: round1(end.TSB - start.TSB),
	}
	if start.CTL > 0 {
		d.FitnessRetainedPct = round1(end.CTL / start.CTL * 100)
	}
	if start.ATL > 0 {
		d.FatigueClearedPct = round1(math.Max(0, (start.ATL-end.ATL)/start.ATL*100))
	}
	return d
}

func (p *Predictor) predictionRecommendations(pred *Prediction) []string {
	var recs []string
	switch pred.PredictedZone {
	case ZoneOptimalRace:
		recs = append(recs, fmt.Sprintf("Projected to be in optimal race form on %s", pred.TargetDate))
	case ZoneFresh:
		recs = append(recs, "Projected TSB is high; add some load to avoid losing fitness before the target date")
	case ZoneOverreached:
		recs = append(recs, "Plan leads to overreaching; schedule recovery days or reduce daily TSS")
	case ZoneFatigued:
		recs = append(recs, "Plan leaves significant fatigue on the target date; reduce load in the final week")
	case ZoneProductiveTraining:
		recs = append(recs, "Plan keeps you in a productive training state; not suited to racing on the target date")
	case ZoneMaintenance:
		recs = append(recs, "Plan keeps fitness and fatigue balanced; taper further if the target date is a race")
	}
	if pred.Decay.FitnessRetainedPct > 0 && pred.Decay.FitnessRetainedPct < 85 {
		recs = append(recs, fmt.Sprintf("Fitness drops to %.0f%% of current CTL over this horizon", pred.Decay.FitnessRetainedPct))
	}
	if pred.Confidence < 50 {
		recs = append(recs, "Long projection horizon: treat this prediction as indicative only")
	}
	return recs
}
