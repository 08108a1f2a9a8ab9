package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the settings for the availability monitor and its collaborators
type Config struct {
	PollInterval      time.Duration
	SuppressionWindow time.Duration
	BatchSize         int
	BatchDelay        time.Duration
	RateLimitCoolDown time.Duration
	GroupCoolDown     time.Duration
	GroupMaxRetries   int
	AvailableStatuses []string
	ExternalBaseURL   string
	RecGovBaseURL     string
	DatabaseURL       string
	Port              string
	MailjetPublicKey  string
	MailjetPrivateKey string
	EmailSender       string
	EmailName         string
}

const (
	defaultPollInterval      = 60 * time.Second
	defaultSuppressionWindow = 10 * time.Minute
	defaultBatchSize         = 10
	defaultBatchDelay        = 2000 * time.Millisecond
	defaultRateLimitCoolDown = 120 * time.Second
	defaultGroupCoolDown     = 10 * time.Minute
	defaultGroupMaxRetries   = 3
	defaultExternalBaseURL   = "http://localhost:3000"
	defaultRecGovBaseURL     = "https://www.recreation.gov"
	defaultPort              = "8080"
	defaultEmailSender       = "alerts@localhost"
	defaultEmailName         = "Campsite Alerts"
)

var defaultAvailableStatuses = []string{"Available", "Open"}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		PollInterval:      defaultPollInterval,
		SuppressionWindow: defaultSuppressionWindow,
		BatchSize:         defaultBatchSize,
		BatchDelay:        defaultBatchDelay,
		RateLimitCoolDown: defaultRateLimitCoolDown,
		GroupCoolDown:     defaultGroupCoolDown,
		GroupMaxRetries:   defaultGroupMaxRetries,
		AvailableStatuses: append([]string(nil), defaultAvailableStatuses...),
		ExternalBaseURL:   defaultExternalBaseURL,
		RecGovBaseURL:     defaultRecGovBaseURL,
		Port:              defaultPort,
		EmailSender:       defaultEmailSender,
		EmailName:         defaultEmailName,
	}
}

// fileConfig mirrors the optional TOML file. Zero values leave defaults alone.
type fileConfig struct {
	MonitorIntervalSeconds     int      `toml:"monitor_interval_seconds"`
	NotifySuppressionMinutes   int      `toml:"notify_suppression_minutes"`
	BatchSize                  int      `toml:"batch_size"`
	BatchDelayMS               int      `toml:"batch_delay_ms"`
	RateLimitPauseSeconds      int      `toml:"rate_limit_pause_seconds"`
	GroupRateLimitPauseSeconds int      `toml:"group_rate_limit_pause_seconds"`
	GroupMaxRetries            int      `toml:"group_max_retries"`
	AvailableStatuses          []string `toml:"available_statuses"`
	ExternalBaseURL            string   `toml:"external_base_url"`
	RecGovBaseURL              string   `toml:"recgov_base_url"`
	DatabaseURL                string   `toml:"database_url"`
	Port                       string   `toml:"port"`
	EmailSender                string   `toml:"email_sender"`
	EmailName                  string   `toml:"email_name"`
}

// Load builds a Config from defaults, the optional TOML file at path and
// finally the environment. An empty path skips the file; a missing file is
// an error only when a path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := cfg.applyFile(strings.TrimSpace(path)); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if raw.MonitorIntervalSeconds > 0 {
		c.PollInterval = time.Duration(raw.MonitorIntervalSeconds) * time.Second
	}
	if raw.NotifySuppressionMinutes > 0 {
		c.SuppressionWindow = time.Duration(raw.NotifySuppressionMinutes) * time.Minute
	}
	if raw.BatchSize > 0 {
		c.BatchSize = raw.BatchSize
	}
	if raw.BatchDelayMS > 0 {
		c.BatchDelay = time.Duration(raw.BatchDelayMS) * time.Millisecond
	}
	if raw.RateLimitPauseSeconds > 0 {
		c.RateLimitCoolDown = time.Duration(raw.RateLimitPauseSeconds) * time.Second
	}
	if raw.GroupRateLimitPauseSeconds > 0 {
		c.GroupCoolDown = time.Duration(raw.GroupRateLimitPauseSeconds) * time.Second
	}
	if raw.GroupMaxRetries > 0 {
		c.GroupMaxRetries = raw.GroupMaxRetries
	}
	if statuses := cleanList(raw.AvailableStatuses); len(statuses) > 0 {
		c.AvailableStatuses = statuses
	}
	setString(&c.ExternalBaseURL, raw.ExternalBaseURL)
	setString(&c.RecGovBaseURL, raw.RecGovBaseURL)
	setString(&c.DatabaseURL, raw.DatabaseURL)
	setString(&c.Port, raw.Port)
	setString(&c.EmailSender, raw.EmailSender)
	setString(&c.EmailName, raw.EmailName)

	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	durations := []struct {
		key  string
		unit time.Duration
		dst  *time.Duration
	}{
		{"MONITOR_INTERVAL_SECONDS", time.Second, &c.PollInterval},
		{"NOTIFY_SUPPRESSION_MINUTES", time.Minute, &c.SuppressionWindow},
		{"MONITOR_BATCH_DELAY_MS", time.Millisecond, &c.BatchDelay},
		{"RATE_LIMIT_PAUSE_SECONDS", time.Second, &c.RateLimitCoolDown},
		{"GROUP_RATE_LIMIT_PAUSE_SECONDS", time.Second, &c.GroupCoolDown},
	}
	for _, d := range durations {
		n, ok, err := envInt(getenv, d.key)
		if err != nil {
			return err
		}
		if ok {
			*d.dst = time.Duration(n) * d.unit
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MONITOR_BATCH_SIZE", &c.BatchSize},
		{"GROUP_MAX_RETRIES", &c.GroupMaxRetries},
	}
	for _, i := range ints {
		n, ok, err := envInt(getenv, i.key)
		if err != nil {
			return err
		}
		if ok {
			*i.dst = n
		}
	}

	if v := getenv("AVAILABLE_CAMPSITE_STATUSES"); strings.TrimSpace(v) != "" {
		if statuses := cleanList(strings.Split(v, ",")); len(statuses) > 0 {
			c.AvailableStatuses = statuses
		}
	}

	setString(&c.ExternalBaseURL, getenv("EXTERNAL_BASE_URL"))
	setString(&c.RecGovBaseURL, getenv("RECGOV_BASE_URL"))
	setString(&c.DatabaseURL, getenv("DATABASE_URL"))
	setString(&c.Port, getenv("PORT"))
	setString(&c.MailjetPublicKey, getenv("MAILJET_PUBLIC_KEY"))
	setString(&c.MailjetPrivateKey, getenv("MAILJET_PRIVATE_KEY"))
	setString(&c.EmailSender, getenv("EMAIL_SENDER"))
	setString(&c.EmailName, getenv("EMAIL_NAME"))

	c.ExternalBaseURL = strings.TrimRight(c.ExternalBaseURL, "/")
	c.RecGovBaseURL = strings.TrimRight(c.RecGovBaseURL, "/")

	return nil
}

// MailConfigured reports whether both mail API secrets are present
func (c Config) MailConfigured() bool {
	return c.MailjetPublicKey != "" && c.MailjetPrivateKey != ""
}

// envInt reads a positive integer. ok is false when the variable is unset.
func envInt(getenv func(string) string, key string) (n int, ok bool, err error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n <= 0 {
		return 0, false, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return n, true, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
