package tracker

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/duescan/duescan/classify"
	"github.com/duescan/duescan/extract"
	"github.com/duescan/duescan/guard"
)

// Config configures the tracker service. Loaded from YAML with env
// overrides for secrets; see Load.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`

	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// Auth is the dashboard/API basic-auth pair. The password is compared
	// via bcrypt; it never appears in responses or logs.
	Auth struct {
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"auth"`

	// Secret seals stored LMS credentials. Required when credentials are
	// used.
	Secret string `yaml:"secret"`

	// Scoring tunes the classifier without a rebuild.
	Scoring struct {
		Weights   classify.Weights `yaml:"weights"`
		Threshold float64          `yaml:"threshold"`
	} `yaml:"scoring"`

	// Extract tunes the candidate extraction tiers, including per-template
	// container selectors for LMS markup the built-ins miss.
	Extract ExtractConfig `yaml:"extract"`

	// Timezone resolves wall-clock deadlines, e.g. "Europe/Paris".
	// Default: local time.
	Timezone string `yaml:"timezone"`

	Scheduler SchedulerConfig `yaml:"scheduler"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	RateLimit guard.RateLimitConfig `yaml:"rate_limit"`
}

// ExtractConfig mirrors extract.Options as YAML. Zero values fall back to
// the extractor's own defaults.
type ExtractConfig struct {
	// MinCandidates is the per-tier viability threshold.
	MinCandidates int `yaml:"min_candidates"`
	// MinTextLen and MaxTextLen bound text-scan block sizes, in bytes.
	MinTextLen int `yaml:"min_text_len"`
	MaxTextLen int `yaml:"max_text_len"`
	// Selectors are extra container selectors tried before the built-ins.
	Selectors []string `yaml:"selectors"`
}

func (c ExtractConfig) options() extract.Options {
	return extract.Options{
		MinCandidates: c.MinCandidates,
		MinTextLen:    c.MinTextLen,
		MaxTextLen:    c.MaxTextLen,
		Selectors:     c.Selectors,
	}
}

// SchedulerConfig tunes the scan and reminder loops.
type SchedulerConfig struct {
	// CheckInterval is how often to poll for due courses. Default: 1 minute.
	CheckInterval time.Duration `yaml:"check_interval"`
	// SweepInterval is how often to sweep for reminder-worthy deadlines.
	// Default: 1 hour.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// MaxFailCount parks a course after this many consecutive scan
	// failures. Default: 10.
	MaxFailCount int `yaml:"max_fail_count"`
	// AdvanceDays are the day marks reminders fire at. Default: 7, 3, 1.
	AdvanceDays []int `yaml:"advance_days"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "data/duescan.db"
	}
	if c.Addr == "" {
		c.Addr = ":8086"
	}
	if c.Scoring.Weights == (classify.Weights{}) {
		c.Scoring.Weights = classify.DefaultWeights()
	}
	if c.Scoring.Threshold <= 0 {
		c.Scoring.Threshold = classify.DefaultThreshold
	}
	if c.Scheduler.CheckInterval <= 0 {
		c.Scheduler.CheckInterval = time.Minute
	}
	if c.Scheduler.SweepInterval <= 0 {
		c.Scheduler.SweepInterval = time.Hour
	}
	if c.Scheduler.MaxFailCount <= 0 {
		c.Scheduler.MaxFailCount = 10
	}
	if len(c.Scheduler.AdvanceDays) == 0 {
		c.Scheduler.AdvanceDays = []int{7, 3, 1}
	}
}

// Load reads the YAML config file if path is non-empty, then applies env
// overrides and defaults. Secrets prefer the environment so config files
// can be committed.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("tracker: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("tracker: parse config: %w", err)
		}
	}

	if v := os.Getenv("DUESCAN_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DUESCAN_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DUESCAN_SECRET"); v != "" {
		cfg.Secret = v
	}
	if v := os.Getenv("DUESCAN_AUTH_USER"); v != "" {
		cfg.Auth.User = v
	}
	if v := os.Getenv("DUESCAN_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}

	cfg.defaults()
	return &cfg, nil
}

// Location resolves the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
