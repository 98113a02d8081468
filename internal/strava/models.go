package strava

import "time"

// Activity is the summary representation returned by /athlete/activities
type Activity struct {
	ID               int64     `json:"id"`
	Athlete          Athlete   `json:"athlete"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	SportType        string    `json:"sport_type"`
	StartDate        time.Time `json:"start_date"`
	StartDateLocal   time.Time `json:"start_date_local"`
	Timezone         string    `json:"timezone"`
	Distance         float64   `json:"distance"`          // meters
	MovingTime       int       `json:"moving_time"`       // seconds
	ElapsedTime      int       `json:"elapsed_time"`      // seconds
	AverageHeartrate float64   `json:"average_heartrate"` // bpm, 0 when absent
	MaxHeartrate     float64   `json:"max_heartrate"`     // bpm, 0 when absent
	HasHeartrate     bool      `json:"has_heartrate"`
}

// Athlete represents a Strava athlete (minimal info in activity response)
type Athlete struct {
	ID int64 `json:"id"`
}

// ActivityType prefers the finer-grained sport_type when present
func (a Activity) ActivityType() string {
	if a.SportType != "" {
		return a.SportType
	}
	return a.Type
}

// HeartRate returns the average and max HR, or nil where the activity
// carries no heart-rate data
func (a Activity) HeartRate() (avg, max *float64) {
	if !a.HasHeartrate {
		return nil, nil
	}
	if a.AverageHeartrate > 0 {
		v := a.AverageHeartrate
		avg = &v
	}
	if a.MaxHeartrate > 0 {
		v := a.MaxHeartrate
		max = &v
	}
	return avg, max
}
