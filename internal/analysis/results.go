package analysis

import "fmt"

const noDataRecommendation = "No training data: sync activities to start building a load history"

// Summary aggregates the window a balance result was computed over
type Summary struct {
	Days                int     `json:"days"`
	TotalTSS            float64 `json:"totalTSS"`
	AverageDailyTSS     float64 `json:"averageDailyTSS"`
	ActivityCount       int     `json:"activityCount"`
	HRBasedActivities   int     `json:"hrBasedActivities"`
	EstimatedActivities int     `json:"estimatedActivities"`
	// Active days split by how their stress was scored. A day counts as
	// HR-based only when every activity on it was.
	HRBasedDays   int          `json:"hrBasedDays"`
	EstimatedDays int          `json:"estimatedDays"`
	RampRate      float64      `json:"rampRate"` // CTL change over the last 7 days
	PeakCTL       float64      `json:"peakCTL"`
	Weeks         []WeeklyLoad `json:"weeks,omitempty"`
}

// TrainingStressBalanceResult is the current load state with optional history
type TrainingStressBalanceResult struct {
	Current         LoadPoint   `json:"current"`
	Zone            FormZone    `json:"zone"`
	ZoneInfo        ZoneInfo    `json:"zoneInfo"`
	Description     string      `json:"description"`
	Series          []LoadPoint `json:"series,omitempty"`
	Summary         Summary     `json:"summary"`
	Recommendations []string    `json:"recommendations"`
}

// BuildBalanceResult assembles a balance result from a computed load series
// and the daily stress it was computed from. The series is only attached
// when includeSeries is set.
func BuildBalanceResult(points []LoadPoint, days []DailyStress, c *ZoneClassifier, includeSeries bool) TrainingStressBalanceResult {
	if c == nil {
		c = DefaultZoneClassifier()
	}
	current := CurrentLoad(points)
	cls := c.Classify(current.TSB, current.CTL)
	res := TrainingStressBalanceResult{
		Current:     current,
		Zone:        cls.Zone,
		ZoneInfo:    cls.Info,
		Description: FormDescription(current.TSB),
	}
	if len(points) == 0 {
		res.Recommendations = []string{noDataRecommendation}
		return res
	}
	if includeSeries {
		res.Series = points
	}

	var total float64
	for _, p := range points {
		total += p.TSS
	}
	res.Summary = Summary{
		Days:            len(points),
		TotalTSS:        round1(total),
		AverageDailyTSS: round1(total / float64(len(points))),
		RampRate:        RampRate(points, 7),
		PeakCTL:         PeakCTL(points),
		Weeks:           AggregateWeekly(days),
	}
	for _, d := range days {
		if d.ActivityCount == 0 {
			continue
		}
		res.Summary.ActivityCount += d.ActivityCount
		estimated := len(d.Activities) == 0
		for _, a := range d.Activities {
			if a.Method == MethodHRTrimp {
				res.Summary.HRBasedActivities++
			} else {
				res.Summary.EstimatedActivities++
				estimated = true
			}
		}
		if estimated {
			res.Summary.EstimatedDays++
		} else {
			res.Summary.HRBasedDays++
		}
	}
	res.Recommendations = balanceRecommendations(res, c)
	return res
}

func balanceRecommendations(res TrainingStressBalanceResult, c *ZoneClassifier) []string {
	recs := []string{res.ZoneInfo.Description}
	switch {
	case c.IsOverreached(res.Current.TSB):
		recs = append(recs, "Take 2-3 days of complete rest before any further hard sessions")
	case c.IsExcessivelyFresh(res.Current.TSB):
		recs = append(recs, "Form is very high; fitness will erode without a return to regular training")
	}
	if res.Summary.RampRate > 8 {
		recs = append(recs, fmt.Sprintf("CTL rose %.1f in a week; ramps above 5-8 per week raise injury risk", res.Summary.RampRate))
	}
	if res.Summary.ActivityCount > 0 && res.Summary.EstimatedActivities*2 > res.Summary.ActivityCount {
		recs = append(recs, "Most activities lack heart-rate data; stress values are duration estimates")
	}
	return recs
}

// FormAnalysis combines the current snapshot with trends and an optional
// forward prediction
type FormAnalysis struct {
	Current         FormSnapshot     `json:"current"`
	Trends          MultiPeriodTrend `json:"trends"`
	Acceleration    Acceleration     `json:"acceleration"`
	Prediction      *Prediction      `json:"prediction,omitempty"`
	Correlation     *float64         `json:"correlation,omitempty"`
	Recommendations []string         `json:"recommendations"`
	Warnings        []string         `json:"warnings"`
}

// BuildFormAnalysis runs the trend analyzer over the snapshots. Prediction
// may be nil. Correlation is attached when withCorrelation is set and there
// is enough history.
func BuildFormAnalysis(snapshots []FormSnapshot, analyzer *TrendAnalyzer, prediction *Prediction, withCorrelation bool) FormAnalysis {
	if analyzer == nil {
		analyzer = NewTrendAnalyzer(nil)
	}
	fa := FormAnalysis{
		Trends:     analyzer.AnalyzeMultiPeriod(snapshots),
		Prediction: prediction,
		Warnings:   []string{},
	}
	if len(snapshots) == 0 {
		cls := analyzer.classifier.Classify(0, 0)
		fa.Current = FormSnapshot{Zone: cls.Zone, ZoneInfo: cls.Info}
		fa.Acceleration = analyzer.DetectAcceleration(nil)
		fa.Recommendations = []string{noDataRecommendation}
		return fa
	}

	fa.Current = snapshots[len(snapshots)-1]
	fa.Acceleration = analyzer.DetectAcceleration(tail(snapshots, 14))
	if withCorrelation && len(snapshots) >= 3 {
		r := analyzer.Correlate(snapshots)
		fa.Correlation = &r
	}

	fa.Recommendations = append(fa.Recommendations, fa.Current.ZoneInfo.Description)
	if len(fa.Current.ZoneInfo.Workouts) > 0 {
		fa.Recommendations = append(fa.Recommendations, "Suggested session: "+fa.Current.ZoneInfo.Workouts[0])
	}
	week := fa.Trends.Week
	switch {
	case week.Direction == TrendDeclining && fa.Current.Zone.Rank() <= ZoneProductiveTraining.Rank():
		fa.Recommendations = append(fa.Recommendations, "Form has been falling all week; plan a recovery day soon")
	case week.Direction == TrendImproving && fa.Current.Zone == ZoneFresh:
		fa.Recommendations = append(fa.Recommendations, "Form keeps rising; resume structured training to hold fitness")
	}

	if analyzer.classifier.IsOverreached(fa.Current.TSB) {
		fa.Warnings = append(fa.Warnings, fmt.Sprintf("TSB %.1f is below -30: overreaching risk", fa.Current.TSB))
	}
	if fa.Acceleration.Accelerating && fa.Acceleration.SecondHalfSlope < 0 {
		fa.Warnings = append(fa.Warnings, fa.Acceleration.Interpretation)
	}
	for _, zc := range week.ZoneChanges {
		if zc.Transition.Critical {
			fa.Warnings = append(fa.Warnings, zc.Transition.Message)
		}
	}
	if week.Volatility > 10 {
		fa.Warnings = append(fa.Warnings, fmt.Sprintf("TSB volatility of %.1f over the last week suggests erratic loading", week.Volatility))
	}
	return fa
}
