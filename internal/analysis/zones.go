package analysis

import (
	"fmt"
	"math"
)

// FormZone is a qualitative bucket of TSB, ordered by increasing TSB
type FormZone string

const (
	ZoneOverreached        FormZone = "overreached"
	ZoneFatigued           FormZone = "fatigued"
	ZoneProductiveTraining FormZone = "productive_training"
	ZoneMaintenance        FormZone = "maintenance"
	ZoneOptimalRace        FormZone = "optimal_race"
	ZoneFresh              FormZone = "fresh"
)

// zoneOrder lists zones from lowest to highest TSB
var zoneOrder = []FormZone{
	ZoneOverreached,
	ZoneFatigued,
	ZoneProductiveTraining,
	ZoneMaintenance,
	ZoneOptimalRace,
	ZoneFresh,
}

// Zones returns every zone in increasing TSB order
func Zones() []FormZone {
	out := make([]FormZone, len(zoneOrder))
	copy(out, zoneOrder)
	return out
}

// Rank returns the zone's position in the TSB ordering, or -1 if unknown
func (z FormZone) Rank() int {
	for i, o := range zoneOrder {
		if o == z {
			return i
		}
	}
	return -1
}

// Valid reports whether z is one of the known zones
func (z FormZone) Valid() bool {
	return z.Rank() >= 0
}

// ZoneRange is a TSB interval (min, max]. A nil bound is unbounded.
type ZoneRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Bounded builds a range from two finite bounds
func Bounded(min, max float64) ZoneRange {
	return ZoneRange{Min: &min, Max: &max}
}

// Contains reports whether tsb lies in (Min, Max]
func (r ZoneRange) Contains(tsb float64) bool {
	if r.Min != nil && tsb <= *r.Min {
		return false
	}
	if r.Max != nil && tsb > *r.Max {
		return false
	}
	return true
}

func (r ZoneRange) scaled(factor float64) ZoneRange {
	var out ZoneRange
	if r.Min != nil {
		v := round1(*r.Min * factor)
		out.Min = &v
	}
	if r.Max != nil {
		v := round1(*r.Max * factor)
		out.Max = &v
	}
	return out
}

func (r ZoneRange) String() string {
	lo, hi := "-inf", "+inf"
	if r.Min != nil {
		lo = fmt.Sprintf("%.1f", *r.Min)
	}
	if r.Max != nil {
		hi = fmt.Sprintf("%.1f", *r.Max)
	}
	return "(" + lo + ", " + hi + "]"
}

func ptr(v float64) *float64 { return &v }

// baseRanges are the unscaled zone boundaries. Every range is (min, max]:
// TSB exactly on a boundary belongs to the lower zone, so TSB=25 is
// optimal_race and TSB=-30 is overreached.
var baseRanges = map[FormZone]ZoneRange{
	ZoneOverreached:        {Max: ptr(-30)},
	ZoneFatigued:           {Min: ptr(-30), Max: ptr(-20)},
	ZoneProductiveTraining: {Min: ptr(-20), Max: ptr(-5)},
	ZoneMaintenance:        {Min: ptr(-5), Max: ptr(10)},
	ZoneOptimalRace:        {Min: ptr(10), Max: ptr(25)},
	ZoneFresh:              {Min: ptr(25)},
}

// ctlBracket maps a CTL ceiling to the zone scale factor
type ctlBracket struct {
	max       float64
	inclusive bool
	factor    float64
}

// Low-fitness athletes get narrower zones, high-fitness athletes wider ones
var ctlBrackets = []ctlBracket{
	{max: 40, factor: 0.8},
	{max: 80, inclusive: true, factor: 1.0},
	{max: math.Inf(1), inclusive: true, factor: 1.2},
}

// AdjustmentFactor returns the zone scale factor for a CTL value
func AdjustmentFactor(ctl float64) float64 {
	for _, b := range ctlBrackets {
		if ctl < b.max || (b.inclusive && ctl == b.max) {
			return b.factor
		}
	}
	return 1.0
}

// ZoneInfo is the static description and guidance for a zone
type ZoneInfo struct {
	Zone                 FormZone  `json:"zone"`
	Label                string    `json:"label"`
	Range                ZoneRange `json:"range"`
	InjuryRisk           string    `json:"injuryRisk"`
	PerformancePotential string    `json:"performancePotential"`
	RecommendedIntensity string    `json:"recommendedIntensity"`
	Description          string    `json:"description"`
	Workouts             []string  `json:"workouts"`
}

var zoneGuidance = map[FormZone]ZoneInfo{
	ZoneOverreached: {
		Label:                "Overreached",
		InjuryRisk:           "very high",
		PerformancePotential: "very low",
		RecommendedIntensity: "rest or very easy",
		Description:          "Accumulated fatigue far exceeds fitness. Illness and injury risk are elevated.",
		Workouts: []string{
			"Complete rest day",
			"20-30 min very easy walk or spin",
			"Mobility and stretching session",
		},
	},
	ZoneFatigued: {
		Label:                "Fatigued",
		InjuryRisk:           "high",
		PerformancePotential: "low",
		RecommendedIntensity: "easy",
		Description:          "Heavy recent load. Fitness is being built but recovery is overdue.",
		Workouts: []string{
			"Easy aerobic session below 70% max HR",
			"Recovery run or ride, 30-45 min",
			"Rest day if sleep or HRV is poor",
		},
	},
	ZoneProductiveTraining: {
		Label:                "Productive Training",
		InjuryRisk:           "moderate",
		PerformancePotential: "moderate",
		RecommendedIntensity: "moderate to hard",
		Description:          "Optimal training stress for building fitness.",
		Workouts: []string{
			"Threshold intervals (e.g. 3 x 10 min)",
			"Tempo session, 20-40 min",
			"Long aerobic session",
		},
	},
	ZoneMaintenance: {
		Label:                "Maintenance",
		InjuryRisk:           "low",
		PerformancePotential: "good",
		RecommendedIntensity: "any",
		Description:          "Fitness and fatigue are balanced. Good for quality work or a build block.",
		Workouts: []string{
			"VO2max intervals (e.g. 5 x 4 min)",
			"Race-pace session",
			"Steady endurance session",
		},
	},
	ZoneOptimalRace: {
		Label:                "Optimal Race Form",
		InjuryRisk:           "low",
		PerformancePotential: "peak",
		RecommendedIntensity: "race or short sharp efforts",
		Description:          "Fresh with fitness intact. The window for racing or testing.",
		Workouts: []string{
			"Race or time trial",
			"Short openers (e.g. 4 x 30 s at race pace)",
			"Easy session with strides",
		},
	},
	ZoneFresh: {
		Label:                "Very Fresh",
		InjuryRisk:           "low",
		PerformancePotential: "declining",
		RecommendedIntensity: "resume structured training",
		Description:          "Very little recent load. Fitness is starting to erode.",
		Workouts: []string{
			"Resume a progressive training block",
			"Endurance session with some tempo",
			"Skills or technique work",
		},
	},
}

// Classification is the result of classifying a (TSB, CTL) pair
type Classification struct {
	Zone   FormZone  `json:"zone"`
	Info   ZoneInfo  `json:"zoneInfo"`
	Factor float64   `json:"adjustmentFactor"`
	Range  ZoneRange `json:"range"`
}

// ZoneClassifier maps TSB onto form zones with CTL-adaptive thresholds.
// It is immutable after construction and safe for concurrent use.
type ZoneClassifier struct {
	ranges map[FormZone]ZoneRange
}

// NewZoneClassifier creates a classifier. Overrides replace the base range of
// the named zones before CTL scaling is applied.
func NewZoneClassifier(overrides map[FormZone]ZoneRange) (*ZoneClassifier, error) {
	ranges := make(map[FormZone]ZoneRange, len(baseRanges))
	for z, r := range baseRanges {
		ranges[z] = r
	}
	for z, r := range overrides {
		if !z.Valid() {
			return nil, invalid("zone", string(z), "one of overreached, fatigued, productive_training, maintenance, optimal_race, fresh")
		}
		if r.Min != nil && r.Max != nil && *r.Min >= *r.Max {
			return nil, invalid(string(z)+".min", *r.Min, fmt.Sprintf("a value below max %.1f", *r.Max))
		}
		ranges[z] = r
	}
	return &ZoneClassifier{ranges: ranges}, nil
}

// DefaultZoneClassifier returns a classifier with the base thresholds
func DefaultZoneClassifier() *ZoneClassifier {
	c, _ := NewZoneClassifier(nil)
	return c
}

// Range returns the unscaled range for a zone
func (c *ZoneClassifier) Range(zone FormZone) ZoneRange {
	return c.ranges[zone]
}

// ScaledRange returns the zone's range adjusted for the given CTL
func (c *ZoneClassifier) ScaledRange(zone FormZone, ctl float64) ZoneRange {
	return c.ranges[zone].scaled(AdjustmentFactor(ctl))
}

// Info returns the static guidance for a zone with its unscaled range
func (c *ZoneClassifier) Info(zone FormZone) ZoneInfo {
	info := zoneGuidance[zone]
	info.Zone = zone
	info.Range = c.ranges[zone]
	return info
}

// Classify locates tsb in the CTL-scaled zone partition
func (c *ZoneClassifier) Classify(tsb, ctl float64) Classification {
	factor := AdjustmentFactor(ctl)
	zone := c.locate(tsb, factor)
	info := c.Info(zone)
	scaled := c.ranges[zone].scaled(factor)
	info.Range = scaled
	return Classification{
		Zone:   zone,
		Info:   info,
		Factor: factor,
		Range:  scaled,
	}
}

// Zone is shorthand for Classify(tsb, ctl).Zone
func (c *ZoneClassifier) Zone(tsb, ctl float64) FormZone {
	return c.locate(tsb, AdjustmentFactor(ctl))
}

func (c *ZoneClassifier) locate(tsb, factor float64) FormZone {
	for _, z := range zoneOrder {
		if c.ranges[z].scaled(factor).Contains(tsb) {
			return z
		}
	}
	// Overrides may leave holes; fall back to the first zone whose upper bound covers tsb
	for _, z := range zoneOrder {
		r := c.ranges[z].scaled(factor)
		if r.Max == nil || tsb <= *r.Max {
			return z
		}
	}
	return zoneOrder[len(zoneOrder)-1]
}

// IsOptimalForRace reports whether the pair classifies as optimal_race
func (c *ZoneClassifier) IsOptimalForRace(tsb, ctl float64) bool {
	return c.Zone(tsb, ctl) == ZoneOptimalRace
}

// IsOverreached uses the unscaled reference boundary
func (c *ZoneClassifier) IsOverreached(tsb float64) bool {
	return tsb < -30
}

// IsExcessivelyFresh reports TSB more than 10 points above the fresh zone floor
func (c *ZoneClassifier) IsExcessivelyFresh(tsb float64) bool {
	floor := 25.0
	if r := c.ranges[ZoneFresh]; r.Min != nil {
		floor = *r.Min
	}
	return tsb > floor+10
}

// EstimateDaysToTargetZone simulates forward at a constant daily TSS and
// returns the first day the state classifies into target. The bool is false
// when maxDays pass without reaching it.
func (c *ZoneClassifier) EstimateDaysToTargetZone(ctl, atl float64, target FormZone, dailyTSS float64, maxDays int, cfg LoadConfig) (int, bool) {
	cfg, err := cfg.normalized()
	if err != nil {
		return 0, false
	}
	if c.Zone(round1(ctl-atl), ctl) == target {
		return 0, true
	}
	for day := 1; day <= maxDays; day++ {
		ctl, atl = StepLoad(ctl, atl, dailyTSS, cfg)
		p := newLoadPoint("", dailyTSS, ctl, atl)
		if c.Zone(p.TSB, p.CTL) == target {
			return day, true
		}
	}
	return maxDays, false
}

// TransitionDirection describes a zone change relative to race form
type TransitionDirection string

const (
	TransitionImproving TransitionDirection = "improving"
	TransitionDeclining TransitionDirection = "declining"
	TransitionNeutral   TransitionDirection = "neutral"
)

// ZoneTransition classifies a from -> to zone change
type ZoneTransition struct {
	From      FormZone            `json:"from"`
	To        FormZone            `json:"to"`
	Direction TransitionDirection `json:"direction"`
	Magnitude string              `json:"magnitude"` // minor | major
	Critical  bool                `json:"critical"`
	Message   string              `json:"message"`
}

// TransitionInfo classifies a zone change. Improving means moving closer to
// optimal_race; two or more zones apart is a major change.
func (c *ZoneClassifier) TransitionInfo(from, to FormZone) ZoneTransition {
	t := ZoneTransition{From: from, To: to, Magnitude: "minor"}

	target := ZoneOptimalRace.Rank()
	before := absInt(from.Rank() - target)
	after := absInt(to.Rank() - target)
	switch {
	case after < before:
		t.Direction = TransitionImproving
	case after > before:
		t.Direction = TransitionDeclining
	default:
		t.Direction = TransitionNeutral
	}

	if absInt(to.Rank()-from.Rank()) >= 2 {
		t.Magnitude = "major"
	}
	t.Critical = to == ZoneOverreached

	t.Message = fmt.Sprintf("%s -> %s (%s, %s)", zoneGuidance[from].Label, zoneGuidance[to].Label, t.Direction, t.Magnitude)
	if t.Critical {
		t.Message = "CRITICAL: " + t.Message + " - reduce load immediately"
	}
	return t
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// FormSnapshot is a LoadPoint enriched with its zone and day-over-day deltas
type FormSnapshot struct {
	LoadPoint
	Zone        FormZone `json:"zone"`
	ZoneInfo    ZoneInfo `json:"zoneInfo"`
	CTLDelta    float64  `json:"ctlDelta"`
	ATLDelta    float64  `json:"atlDelta"`
	TSBDelta    float64  `json:"tsbDelta"`
	ZoneChanged bool     `json:"zoneChanged"`
}

// Snapshots classifies every point in a load series
func (c *ZoneClassifier) Snapshots(points []LoadPoint) []FormSnapshot {
	snapshots := make([]FormSnapshot, 0, len(points))
	for i, p := range points {
		cls := c.Classify(p.TSB, p.CTL)
		s := FormSnapshot{
			LoadPoint: p,
			Zone:      cls.Zone,
			ZoneInfo:  cls.Info,
		}
		if i > 0 {
			prev := snapshots[i-1]
			s.CTLDelta = round1(p.CTL - prev.CTL)
			s.ATLDelta = round1(p.ATL - prev.ATL)
			s.TSBDelta = round1(p.TSB - prev.TSB)
			s.ZoneChanged = s.Zone != prev.Zone
		}
		snapshots = append(snapshots, s)
	}
	return snapshots
}
