package store

import "time"

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64     `db:"athlete_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Activity represents a Strava activity summary
type Activity struct {
	ID               int64     `db:"id"`
	AthleteID        int64     `db:"athlete_id"`
	Name             string    `db:"name"`
	Type             string    `db:"type"`
	StartDate        time.Time `db:"start_date"`
	StartDateLocal   time.Time `db:"start_date_local"`
	Timezone         string    `db:"timezone"`
	Distance         float64   `db:"distance"`          // meters
	MovingTime       int       `db:"moving_time"`       // seconds
	ElapsedTime      int       `db:"elapsed_time"`      // seconds
	AverageHeartrate *float64  `db:"average_heartrate"` // nullable
	MaxHeartrate     *float64  `db:"max_heartrate"`     // nullable
	HasHeartrate     bool      `db:"has_heartrate"`
}

// LoadSnapshot is a persisted daily load point
type LoadSnapshot struct {
	Date   string  `db:"date"` // YYYY-MM-DD
	TSS    float64 `db:"tss"`
	CTL    float64 `db:"ctl"`
	ATL    float64 `db:"atl"`
	TSB    float64 `db:"tsb"`
	RawCTL float64 `db:"raw_ctl"`
	RawATL float64 `db:"raw_atl"`
}

// SyncRun records one sync attempt
type SyncRun struct {
	ID         string     `db:"id" json:"id"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	Fetched    int        `db:"fetched" json:"fetched"`
	Stored     int        `db:"stored" json:"stored"`
	Error      string     `db:"error" json:"error,omitempty"`
}
