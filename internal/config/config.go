package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment override, e.g.
// PDXEVENTS_LISTEN or PDXEVENTS_DATABASE_PATH.
const envPrefix = "PDXEVENTS_"

// BasicAuthConfig holds HTTP Basic Auth credentials for the admin API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// RecurrenceConfig tunes how recurring events are resolved and persisted.
type RecurrenceConfig struct {
	// SearchMonths bounds the month-by-month search for monthly patterns.
	SearchMonths int `yaml:"search_months" json:"search_months"`

	// PersistFifth allows "fifth-<weekday>" patterns to be stored on events.
	// When false such submissions are rejected.
	PersistFifth bool `yaml:"persist_fifth" json:"persist_fifth"`
}

// FeedConfig describes the published iCalendar feed.
type FeedConfig struct {
	Name      string `yaml:"name" json:"name"`
	ProductID string `yaml:"product_id" json:"product_id"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which "today" is evaluated and event
	// start times are interpreted.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DatabasePath is the SQLite file holding events. ":memory:" is allowed.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// RolloverCron is a standard 5-field cron spec for moving recurring
	// events whose start date has passed onto their next occurrence.
	RolloverCron string `yaml:"rollover_cron" json:"rollover_cron"`

	// HorizonDays is the default occurrence window for listings and feeds.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// MaxOccurrencesPerEvent caps series expansion per event.
	MaxOccurrencesPerEvent int `yaml:"max_occurrences_per_event" json:"max_occurrences_per_event"`

	Recurrence RecurrenceConfig `yaml:"recurrence" json:"recurrence"`
	Feed       FeedConfig       `yaml:"feed" json:"feed"`

	// BasicAuth, if non-nil, protects the write endpoints.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "America/Los_Angeles"
	defaultDatabasePath  = "./var/pdxevents.db"
	defaultRolloverCron  = "5 0 * * *"
	defaultHorizonDays   = 60
	defaultMaxOccurrence = 500
	defaultSearchMonths  = 12
	defaultFeedName      = "Portland.Events"
	defaultProductID     = "-//Portland.Events//pdxevents//EN"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 defaultListen,
		Timezone:               defaultTimezone,
		LogLevel:               "info",
		DatabasePath:           defaultDatabasePath,
		RolloverCron:           defaultRolloverCron,
		HorizonDays:            defaultHorizonDays,
		MaxOccurrencesPerEvent: defaultMaxOccurrence,
		Recurrence: RecurrenceConfig{
			SearchMonths: defaultSearchMonths,
			PersistFifth: false,
		},
		Feed: FeedConfig{
			Name:      defaultFeedName,
			ProductID: defaultProductID,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}
	if c.RolloverCron == "" {
		c.RolloverCron = defaultRolloverCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.MaxOccurrencesPerEvent <= 0 {
		c.MaxOccurrencesPerEvent = defaultMaxOccurrence
	}
	if c.Recurrence.SearchMonths <= 0 {
		c.Recurrence.SearchMonths = defaultSearchMonths
	}
	if c.Feed.Name == "" {
		c.Feed.Name = defaultFeedName
	}
	if c.Feed.ProductID == "" {
		c.Feed.ProductID = defaultProductID
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RolloverCron); err != nil {
		return fmt.Errorf("rollover_cron %q: %w", c.RolloverCron, err)
	}
	if c.Recurrence.SearchMonths > 120 {
		return fmt.Errorf("recurrence.search_months %d exceeds 120", c.Recurrence.SearchMonths)
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path and applies environment
// overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - If the file exists, it is unmarshalled and normalized.
//   - A .env file next to the working directory, if present, is loaded
//     before PDXEVENTS_* variables are applied.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, cfg.Validate()
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// ApplyEnv overrides fields from PDXEVENTS_* variables looked up through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("LISTEN", &c.Listen)
	str("TIMEZONE", &c.Timezone)
	str("LOG_LEVEL", &c.LogLevel)
	str("DATABASE_PATH", &c.DatabasePath)
	str("ROLLOVER_CRON", &c.RolloverCron)
	if err := num("HORIZON_DAYS", &c.HorizonDays); err != nil {
		return err
	}
	if err := num("SEARCH_MONTHS", &c.Recurrence.SearchMonths); err != nil {
		return err
	}
	if v, ok := lookup(envPrefix + "PERSIST_FIFTH"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sPERSIST_FIFTH: %w", envPrefix, err)
		}
		c.Recurrence.PersistFifth = b
	}

	user, okUser := lookup(envPrefix + "ADMIN_USER")
	pass, okPass := lookup(envPrefix + "ADMIN_PASSWORD")
	if okUser && okPass && user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
	return nil
}

// Save writes the given configuration to the specified path atomically via a
// temp file + rename, with 0600 permissions on the result.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pdxevents-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
