package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"formcoach/internal/analysis"
)

// EnvConfigPath overrides the config file location
const EnvConfigPath = "FORMCOACH_CONFIG"

// Config represents the application configuration
type Config struct {
	Strava  StravaConfig  `json:"strava"`
	Athlete AthleteConfig `json:"athlete"`
	Model   ModelConfig   `json:"model"`
	Zones   ZonesConfig   `json:"zones"`
	Taper   TaperConfig   `json:"taper"`
	Server  ServerConfig  `json:"server"`
	Log     LogConfig     `json:"log"`
	DataDir string        `json:"data_dir"`
}

// StravaConfig holds Strava API credentials. RefreshToken seeds the token
// store on first sync; afterwards the stored token is used.
type StravaConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// AthleteConfig holds athlete-specific settings
type AthleteConfig struct {
	RestingHR   float64 `json:"resting_hr"`
	MaxHR       float64 `json:"max_hr"`
	ThresholdHR float64 `json:"threshold_hr"`
}

// ModelConfig holds the load filter time constants in days
type ModelConfig struct {
	CTLDays float64 `json:"ctl_days"`
	ATLDays float64 `json:"atl_days"`
}

// ZoneBounds is an optional TSB range override
type ZoneBounds struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// ZonesConfig replaces the base range of individual form zones
type ZonesConfig struct {
	Overrides map[string]ZoneBounds `json:"overrides,omitempty"`
}

// TaperConfig holds taper planning defaults
type TaperConfig struct {
	DurationDays      int     `json:"duration_days"`
	TargetTSB         float64 `json:"target_tsb"`
	Strategy          string  `json:"strategy"`
	VolumeReduction   float64 `json:"volume_reduction"`
	MaintainIntensity bool    `json:"maintain_intensity"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string `json:"addr"`
	SyncSchedule string `json:"sync_schedule"` // cron spec, empty disables scheduled sync
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level string `json:"level"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Athlete: AthleteConfig{
			RestingHR:   50,
			MaxHR:       185,
			ThresholdHR: 165,
		},
		Model: ModelConfig{
			CTLDays: analysis.DefaultCTLDays,
			ATLDays: analysis.DefaultATLDays,
		},
		Taper: TaperConfig{
			DurationDays:    analysis.DefaultTaperDays,
			TargetTSB:       analysis.DefaultTargetTSB,
			Strategy:        string(analysis.TaperLinear),
			VolumeReduction: analysis.DefaultVolumeReduction,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			SyncSchedule: "@every 6h",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from ~/.formcoach/config.json
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills zero values from DefaultConfig
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Athlete.RestingHR == 0 {
		c.Athlete.RestingHR = defaults.Athlete.RestingHR
	}
	if c.Athlete.MaxHR == 0 {
		c.Athlete.MaxHR = defaults.Athlete.MaxHR
	}
	if c.Model.CTLDays == 0 {
		c.Model.CTLDays = defaults.Model.CTLDays
	}
	if c.Model.ATLDays == 0 {
		c.Model.ATLDays = defaults.Model.ATLDays
	}
	if c.Taper.DurationDays == 0 {
		c.Taper.DurationDays = defaults.Taper.DurationDays
	}
	if c.Taper.TargetTSB == 0 {
		c.Taper.TargetTSB = defaults.Taper.TargetTSB
	}
	if c.Taper.Strategy == "" {
		c.Taper.Strategy = defaults.Taper.Strategy
	}
	if c.Taper.VolumeReduction == 0 {
		c.Taper.VolumeReduction = defaults.Taper.VolumeReduction
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// Save writes the configuration to the config path
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists.
// It reports whether a file was written.
func CreateExample() (bool, error) {
	path, err := Path()
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err == nil {
		return false, nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
		RefreshToken: "YOUR_REFRESH_TOKEN",
	}

	if err := Save(&example); err != nil {
		return false, err
	}
	return true, nil
}

// Validate checks model settings. Strava credentials are checked
// separately by ValidateStrava since only sync needs them.
func (c *Config) Validate() error {
	if c.Athlete.ThresholdHR > 0 && c.Athlete.MaxHR > 0 && c.Athlete.ThresholdHR >= c.Athlete.MaxHR {
		return fmt.Errorf("athlete.threshold_hr (%v) must be less than athlete.max_hr (%v)", c.Athlete.ThresholdHR, c.Athlete.MaxHR)
	}
	if c.Athlete.ThresholdHR > 0 && c.Athlete.RestingHR >= c.Athlete.ThresholdHR {
		return fmt.Errorf("athlete.resting_hr (%v) must be less than athlete.threshold_hr (%v)", c.Athlete.RestingHR, c.Athlete.ThresholdHR)
	}
	if c.Model.ATLDays < 1 {
		return fmt.Errorf("model.atl_days must be at least 1, got %v", c.Model.ATLDays)
	}
	if c.Model.CTLDays <= c.Model.ATLDays {
		return fmt.Errorf("model.ctl_days (%v) must be greater than model.atl_days (%v)", c.Model.CTLDays, c.Model.ATLDays)
	}
	if !analysis.TaperStrategy(c.Taper.Strategy).Valid() {
		return fmt.Errorf("taper.strategy must be \"linear\", \"exponential\" or \"step\", got %q", c.Taper.Strategy)
	}
	if c.Taper.VolumeReduction < 0 || c.Taper.VolumeReduction > analysis.MaxVolumeReduction {
		return fmt.Errorf("taper.volume_reduction must be between 0 and %v, got %v", analysis.MaxVolumeReduction, c.Taper.VolumeReduction)
	}
	if c.Taper.DurationDays < 1 || c.Taper.DurationDays > analysis.MaxTaperDays {
		return fmt.Errorf("taper.duration_days must be between 1 and %d, got %d", analysis.MaxTaperDays, c.Taper.DurationDays)
	}
	if _, err := c.ZoneClassifier(); err != nil {
		return fmt.Errorf("zones.overrides: %w", err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ValidateStrava checks the Strava credentials required for sync
func (c *Config) ValidateStrava() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	return nil
}

// StressConfig returns the athlete settings used for stress scoring
func (c *Config) StressConfig() analysis.StressConfig {
	return analysis.StressConfig{
		RestingHR:   c.Athlete.RestingHR,
		MaxHR:       c.Athlete.MaxHR,
		ThresholdHR: c.Athlete.ThresholdHR,
	}
}

// LoadConfig returns the load filter time constants
func (c *Config) LoadConfig() analysis.LoadConfig {
	return analysis.LoadConfig{CTLDays: c.Model.CTLDays, ATLDays: c.Model.ATLDays}
}

// ZoneClassifier builds a classifier with the configured overrides
func (c *Config) ZoneClassifier() (*analysis.ZoneClassifier, error) {
	if len(c.Zones.Overrides) == 0 {
		return analysis.DefaultZoneClassifier(), nil
	}
	overrides := make(map[analysis.FormZone]analysis.ZoneRange, len(c.Zones.Overrides))
	for name, b := range c.Zones.Overrides {
		overrides[analysis.FormZone(name)] = analysis.ZoneRange{Min: b.Min, Max: b.Max}
	}
	return analysis.NewZoneClassifier(overrides)
}

// ParseLevel maps a log level name onto a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", name)
	}
	return level, nil
}

// DBPath returns the sqlite database location
func (c *Config) DBPath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		var err error
		if dir, err = GetConfigDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "formcoach.db"), nil
}

// Path returns the config file location, honouring FORMCOACH_CONFIG
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".formcoach"), nil
}
