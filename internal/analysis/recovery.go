package analysis

import (
	"fmt"
	"math"
	"time"
)

// Recovery defaults
const (
	DefaultRecoveryMaxDays = 60
	activeRecoveryShare    = 0.3
	minActiveRecoveryTSS   = 10.0
)

// RecoveryMode distinguishes complete rest from light active recovery
type RecoveryMode string

const (
	RecoveryRest   RecoveryMode = "complete_rest"
	RecoveryActive RecoveryMode = "active_recovery"
)

// RecoveryRequest asks how long it takes to recover into a target zone
type RecoveryRequest struct {
	Current           State    `json:"current"`
	TargetZone        FormZone `json:"targetZone,omitempty"` // defaults to maintenance
	Rest              bool     `json:"rest"`
	ActiveRecoveryTSS float64  `json:"activeRecoveryTSS,omitempty"`
	MaxDays           int      `json:"maxDays,omitempty"`
}

// RecoveryEstimate is the outcome of a recovery simulation
type RecoveryEstimate struct {
	Days            int           `json:"days"`
	Reached         bool          `json:"reached"`
	Mode            RecoveryMode  `json:"mode"`
	DailyTSS        float64       `json:"dailyTSS"`
	TargetZone      FormZone      `json:"targetZone"`
	TargetRange     ZoneRange     `json:"targetRange"`
	ProjectedState  State         `json:"projectedState"`
	ProjectedZone   FormZone      `json:"projectedZone"`
	Trajectory      []ScenarioDay `json:"trajectory"`
	Recommendations []string      `json:"recommendations"`
}

// EstimateRecoveryTime simulates rest or light load until TSB reaches the
// target zone or a fresher one. Complete rest is simulated at TSS 0.
func (p *Predictor) EstimateRecoveryTime(req RecoveryRequest) (*RecoveryEstimate, error) {
	target := req.TargetZone
	if target == "" {
		target = ZoneMaintenance
	}
	if !target.Valid() {
		return nil, invalid("targetZone", string(target), "one of overreached, fatigued, productive_training, maintenance, optimal_race, fresh")
	}
	maxDays := req.MaxDays
	if maxDays == 0 {
		maxDays = DefaultRecoveryMaxDays
	}
	if maxDays < 1 || maxDays > MaxProjectionDays {
		return nil, invalid("maxDays", maxDays, fmt.Sprintf("a horizon between 1 and %d days", MaxProjectionDays))
	}
	if req.ActiveRecoveryTSS < 0 {
		return nil, invalid("activeRecoveryTSS", req.ActiveRecoveryTSS, "a non-negative TSS")
	}

	est := &RecoveryEstimate{
		Mode:        RecoveryRest,
		TargetZone:  target,
		TargetRange: p.classifier.ScaledRange(target, req.Current.CTL),
		Trajectory:  []ScenarioDay{},
	}
	if !req.Rest {
		est.Mode = RecoveryActive
		est.DailyTSS = req.ActiveRecoveryTSS
		if est.DailyTSS == 0 {
			est.DailyTSS = math.Max(minActiveRecoveryTSS, req.Current.CTL*activeRecoveryShare)
		}
		est.DailyTSS = round1(est.DailyTSS)
	}

	start := newLoadPoint("", 0, req.Current.CTL, req.Current.ATL)
	est.ProjectedState = StateOf(start)
	est.ProjectedZone = p.classifier.Zone(start.TSB, start.CTL)
	if est.ProjectedZone.Rank() >= target.Rank() {
		est.Reached = true
		est.Recommendations = []string{fmt.Sprintf("Already in or above %s; no recovery period needed", p.classifier.Info(target).Label)}
		return est, nil
	}

	trajectory := simulate(req.Current, ConstantTSS(est.DailyTSS).Normalize(maxDays), time.Time{}, p.load, p.classifier)
	est.Days = maxDays
	for _, day := range trajectory {
		est.Trajectory = append(est.Trajectory, day)
		if day.Zone.Rank() >= target.Rank() {
			est.Days = day.Day
			est.Reached = true
			break
		}
	}
	last := est.Trajectory[len(est.Trajectory)-1]
	est.ProjectedState = State{CTL: last.CTL, ATL: last.ATL, TSB: last.TSB}
	est.ProjectedZone = last.Zone
	est.Recommendations = recoveryRecommendations(est, p.classifier.Info(target).Label)

	p.logger.Debug("recovery estimated",
		"mode", est.Mode,
		"target", target,
		"days", est.Days,
		"reached", est.Reached)

	return est, nil
}

func recoveryRecommendations(est *RecoveryEstimate, label string) []string {
	if !est.Reached {
		recs := []string{fmt.Sprintf("%s is not reached within %d days at %.0f TSS/day", label, est.Days, est.DailyTSS)}
		if est.Mode == RecoveryActive {
			recs = append(recs, "Lower the daily load or take complete rest days")
		}
		return recs
	}
	recs := []string{fmt.Sprintf("Expect to reach %s in %d days", label, est.Days)}
	if est.Mode == RecoveryActive {
		recs = append(recs, fmt.Sprintf("Keep sessions very easy, around %.0f TSS per day", est.DailyTSS))
	} else {
		recs = append(recs, "Complete rest recovers fastest; light mobility work is fine")
	}
	if est.Days > 7 {
		recs = append(recs, "Recovery longer than a week: review sleep, nutrition and recent load increases")
	}
	return recs
}
