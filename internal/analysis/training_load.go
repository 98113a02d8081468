package analysis

// Time constants for the fitness and fatigue filters
const (
	DefaultCTLDays = 42.0
	DefaultATLDays = 7.0
)

// LoadConfig sets the filter time constants. Zero values mean the defaults.
type LoadConfig struct {
	CTLDays float64 `json:"ctlDays,omitempty"`
	ATLDays float64 `json:"atlDays,omitempty"`
}

// DefaultLoadConfig returns the standard 42/7 day filter
func DefaultLoadConfig() LoadConfig {
	return LoadConfig{CTLDays: DefaultCTLDays, ATLDays: DefaultATLDays}
}

func (c LoadConfig) normalized() (LoadConfig, error) {
	if c.CTLDays == 0 {
		c.CTLDays = DefaultCTLDays
	}
	if c.ATLDays == 0 {
		c.ATLDays = DefaultATLDays
	}
	if c.CTLDays < 1 {
		return c, invalid("ctlDays", c.CTLDays, "a time constant of at least 1 day")
	}
	if c.ATLDays < 1 {
		return c, invalid("atlDays", c.ATLDays, "a time constant of at least 1 day")
	}
	return c, nil
}

// Seed is the carry-in state the filter starts from (zero = cold start)
type Seed struct {
	CTL float64 `json:"ctl"`
	ATL float64 `json:"atl"`
}

// LoadPoint represents CTL/ATL/TSB for a day
type LoadPoint struct {
	Date string  `json:"date"`
	TSS  float64 `json:"tss"`
	CTL  float64 `json:"ctl"` // Chronic Training Load - "Fitness"
	ATL  float64 `json:"atl"` // Acute Training Load - "Fatigue"
	TSB  float64 `json:"tsb"` // Training Stress Balance (CTL - ATL) - "Form"
}

// StepLoad advances CTL and ATL by one calendar day of stress
func StepLoad(ctl, atl, tss float64, cfg LoadConfig) (float64, float64) {
	ctl = ctl + (tss-ctl)/cfg.CTLDays
	atl = atl + (tss-atl)/cfg.ATLDays
	return ctl, atl
}

// newLoadPoint surfaces rounded values; TSB is computed from the rounded
// CTL and ATL so that TSB == round1(CTL - ATL) holds on every point.
func newLoadPoint(date string, tss, ctl, atl float64) LoadPoint {
	rc, ra := round1(ctl), round1(atl)
	return LoadPoint{
		Date: date,
		TSS:  round1(tss),
		CTL:  rc,
		ATL:  ra,
		TSB:  round1(rc - ra),
	}
}

// CalculateLoad runs the recursive filter over a gap-free daily series in
// date order. Each output point depends on the full history before it, so
// resuming requires the previous unrounded state as seed.
func CalculateLoad(days []DailyStress, seed Seed, cfg LoadConfig) ([]LoadPoint, error) {
	points, _, err := CalculateLoadState(days, seed, cfg)
	return points, err
}

// CalculateLoadState is CalculateLoad that also returns the unrounded filter
// state after each day. states[i] seeds a computation resuming after points[i].
func CalculateLoadState(days []DailyStress, seed Seed, cfg LoadConfig) ([]LoadPoint, []Seed, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, nil, err
	}
	if len(days) == 0 {
		return nil, nil, nil
	}
	if !IsGapFree(days) {
		return nil, nil, ErrSeriesGap
	}

	points := make([]LoadPoint, 0, len(days))
	states := make([]Seed, 0, len(days))
	ctl, atl := seed.CTL, seed.ATL
	for _, d := range days {
		ctl, atl = StepLoad(ctl, atl, d.TotalTSS, cfg)
		points = append(points, newLoadPoint(d.Date, d.TotalTSS, ctl, atl))
		states = append(states, Seed{CTL: ctl, ATL: atl})
	}
	return points, states, nil
}

// CurrentLoad returns the most recent point, or the zero value for no history
func CurrentLoad(points []LoadPoint) LoadPoint {
	if len(points) == 0 {
		return LoadPoint{}
	}
	return points[len(points)-1]
}

// PeakCTL returns the highest CTL in the series
func PeakCTL(points []LoadPoint) float64 {
	var peak float64
	for _, p := range points {
		if p.CTL > peak {
			peak = p.CTL
		}
	}
	return peak
}

// RampRate returns the CTL change over the trailing window of days
func RampRate(points []LoadPoint, days int) float64 {
	if len(points) < 2 || days <= 0 {
		return 0
	}
	from := len(points) - 1 - days
	if from < 0 {
		from = 0
	}
	return round1(points[len(points)-1].CTL - points[from].CTL)
}

// FormDescription returns a human-readable description of TSB
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "Very fresh (possibly detrained)"
	case tsb > 10:
		return "Fresh and ready to race"
	case tsb > -5:
		return "Neutral - good for training"
	case tsb > -20:
		return "Tired but building fitness"
	case tsb > -30:
		return "Fatigued - ease off"
	default:
		return "Very fatigued - rest needed"
	}
}
