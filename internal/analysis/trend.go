package analysis

import (
	"fmt"
	"log/slog"
	"math"
)

// TrendDirection is the sign of the TSB slope beyond the stability band
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// Velocity classes on |slope| in TSB points per day
type Velocity string

const (
	VelocityRapid    Velocity = "rapid"
	VelocityModerate Velocity = "moderate"
	VelocitySlow     Velocity = "slow"
	VelocityStable   Velocity = "stable"
)

const (
	directionThreshold = 0.2 // TSB/day
	reversalNoiseFloor = 2.0 // TSB points
	accelerationRatio  = 0.2 // relative slope increase
	accelerationFloor  = 0.1 // absolute slope change, TSB/day
)

// ZoneChange records an adjacent pair of snapshots with different zones
type ZoneChange struct {
	Date       string         `json:"date"`
	From       FormZone       `json:"from"`
	To         FormZone       `json:"to"`
	Transition ZoneTransition `json:"transition"`
}

// Reversal is a local TSB extremum whose flip exceeds the noise floor
type Reversal struct {
	Date      string  `json:"date"`
	Type      string  `json:"type"` // peak | trough
	TSB       float64 `json:"tsb"`
	Magnitude float64 `json:"magnitude"`
}

// Trend summarises TSB behaviour over a window of snapshots
type Trend struct {
	Period      string         `json:"period"`
	StartDate   string         `json:"startDate,omitempty"`
	EndDate     string         `json:"endDate,omitempty"`
	Days        int            `json:"days"`
	Direction   TrendDirection `json:"direction"`
	Slope       float64        `json:"slope"` // TSB per day
	Velocity    Velocity       `json:"velocity"`
	Average     float64        `json:"average"`
	Min         float64        `json:"min"`
	Max         float64        `json:"max"`
	Volatility  float64        `json:"volatility"`
	ZoneChanges []ZoneChange   `json:"zoneChanges"`
	Reversals   []Reversal     `json:"reversals"`
}

// MultiPeriodTrend holds trends over trailing 7, 14 and 30 day windows
type MultiPeriodTrend struct {
	Week      Trend `json:"week"`
	Fortnight Trend `json:"fortnight"`
	Month     Trend `json:"month"`
}

// Acceleration compares the slope of the first and second half of a window
type Acceleration struct {
	Accelerating    bool    `json:"accelerating"`
	Rate            float64 `json:"rate"`
	FirstHalfSlope  float64 `json:"firstHalfSlope"`
	SecondHalfSlope float64 `json:"secondHalfSlope"`
	Interpretation  string  `json:"interpretation"`
}

// TrendAnalyzer derives trends from classified snapshots. The classifier is
// injected so custom thresholds apply to zone-change reporting.
type TrendAnalyzer struct {
	classifier *ZoneClassifier
	logger     *slog.Logger
}

// NewTrendAnalyzer creates an analyzer; a nil classifier uses the defaults
func NewTrendAnalyzer(classifier *ZoneClassifier, opts ...Option) *TrendAnalyzer {
	if classifier == nil {
		classifier = DefaultZoneClassifier()
	}
	o := buildOptions(opts)
	return &TrendAnalyzer{classifier: classifier, logger: o.logger}
}

// Analyze computes slope, velocity, volatility, zone changes and reversals
// over the whole window
func (a *TrendAnalyzer) Analyze(snapshots []FormSnapshot) Trend {
	return a.analyze(fmt.Sprintf("%dd", len(snapshots)), snapshots)
}

func (a *TrendAnalyzer) analyze(period string, snapshots []FormSnapshot) Trend {
	trend := Trend{
		Period:      period,
		Days:        len(snapshots),
		Direction:   TrendStable,
		Velocity:    VelocityStable,
		ZoneChanges: []ZoneChange{},
		Reversals:   []Reversal{},
	}
	if len(snapshots) == 0 {
		return trend
	}

	trend.StartDate = snapshots[0].Date
	trend.EndDate = snapshots[len(snapshots)-1].Date

	tsb := tsbValues(snapshots)
	slope := linearSlope(tsb)
	lo, hi := minMax(tsb)

	trend.Slope = math.Round(slope*100) / 100
	trend.Direction = directionFor(slope)
	trend.Velocity = velocityFor(slope)
	trend.Average = round1(mean(tsb))
	trend.Min = lo
	trend.Max = hi
	trend.Volatility = round1(stdDev(tsb))

	for i := 1; i < len(snapshots); i++ {
		prev, cur := snapshots[i-1], snapshots[i]
		if prev.Zone != cur.Zone {
			trend.ZoneChanges = append(trend.ZoneChanges, ZoneChange{
				Date:       cur.Date,
				From:       prev.Zone,
				To:         cur.Zone,
				Transition: a.classifier.TransitionInfo(prev.Zone, cur.Zone),
			})
		}
	}
	trend.Reversals = findReversals(snapshots)

	a.logger.Debug("trend analyzed",
		"period", period,
		"days", trend.Days,
		"slope", trend.Slope,
		"zone_changes", len(trend.ZoneChanges),
		"reversals", len(trend.Reversals))

	return trend
}

// AnalyzeMultiPeriod runs Analyze over trailing 7/14/30 day windows
func (a *TrendAnalyzer) AnalyzeMultiPeriod(snapshots []FormSnapshot) MultiPeriodTrend {
	return MultiPeriodTrend{
		Week:      a.analyze("7d", tail(snapshots, 7)),
		Fortnight: a.analyze("14d", tail(snapshots, 14)),
		Month:     a.analyze("30d", tail(snapshots, 30)),
	}
}

// DetectAcceleration flags a trend whose second-half slope is materially
// steeper than its first-half slope
func (a *TrendAnalyzer) DetectAcceleration(snapshots []FormSnapshot) Acceleration {
	if len(snapshots) < 4 {
		return Acceleration{Interpretation: "Not enough data to assess acceleration"}
	}

	tsb := tsbValues(snapshots)
	half := len(tsb) / 2
	first := linearSlope(tsb[:half])
	second := linearSlope(tsb[half:])

	acc := Acceleration{
		FirstHalfSlope:  math.Round(first*100) / 100,
		SecondHalfSlope: math.Round(second*100) / 100,
		Rate:            math.Round((second-first)*100) / 100,
	}

	growing := math.Abs(second) > math.Abs(first)*(1+accelerationRatio)
	acc.Accelerating = growing && math.Abs(second-first) > accelerationFloor

	switch {
	case acc.Accelerating && second > 0:
		acc.Interpretation = fmt.Sprintf("Form is improving faster: %+.2f TSB/day now vs %+.2f earlier", second, first)
	case acc.Accelerating && second < 0:
		acc.Interpretation = fmt.Sprintf("Fatigue is building faster: %+.2f TSB/day now vs %+.2f earlier", second, first)
	case math.Abs(second) < math.Abs(first)*(1-accelerationRatio):
		acc.Interpretation = "Trend is slowing down"
	default:
		acc.Interpretation = "Trend is holding a steady pace"
	}
	return acc
}

// Correlate returns the Pearson correlation between daily TSS and the
// following day's TSB change. Negative values mean load is driving form down.
func (a *TrendAnalyzer) Correlate(snapshots []FormSnapshot) float64 {
	if len(snapshots) < 3 {
		return 0
	}
	load := make([]float64, 0, len(snapshots)-1)
	change := make([]float64, 0, len(snapshots)-1)
	for i := 0; i < len(snapshots)-1; i++ {
		load = append(load, snapshots[i].TSS)
		change = append(change, snapshots[i+1].TSB-snapshots[i].TSB)
	}
	return math.Round(pearson(load, change)*100) / 100
}

func directionFor(slope float64) TrendDirection {
	switch {
	case slope > directionThreshold:
		return TrendImproving
	case slope < -directionThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func velocityFor(slope float64) Velocity {
	s := math.Abs(slope)
	switch {
	case s >= 2.0:
		return VelocityRapid
	case s >= 0.5:
		return VelocityModerate
	case s >= 0.2:
		return VelocitySlow
	default:
		return VelocityStable
	}
}

// findReversals returns local extrema where the day-over-day delta flips
// sign and the flip (|prev delta| + |next delta|) exceeds the noise floor.
// Flat days carry the last nonzero delta forward, so an extremum held over
// a plateau is reported on its final day.
func findReversals(snapshots []FormSnapshot) []Reversal {
	reversals := []Reversal{}
	var before float64
	for i := 1; i < len(snapshots)-1; i++ {
		if d := snapshots[i].TSB - snapshots[i-1].TSB; d != 0 {
			before = d
		}
		after := snapshots[i+1].TSB - snapshots[i].TSB

		var kind string
		switch {
		case before > 0 && after < 0:
			kind = "peak"
		case before < 0 && after > 0:
			kind = "trough"
		default:
			continue
		}

		magnitude := math.Abs(before) + math.Abs(after)
		if magnitude <= reversalNoiseFloor {
			continue
		}
		reversals = append(reversals, Reversal{
			Date:      snapshots[i].Date,
			Type:      kind,
			TSB:       snapshots[i].TSB,
			Magnitude: round1(magnitude),
		})
	}
	return reversals
}

func tsbValues(snapshots []FormSnapshot) []float64 {
	values := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = s.TSB
	}
	return values
}

func tail(snapshots []FormSnapshot, n int) []FormSnapshot {
	if len(snapshots) <= n {
		return snapshots
	}
	return snapshots[len(snapshots)-n:]
}
