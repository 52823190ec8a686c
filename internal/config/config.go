package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval       = "1h"
	DefaultPhabricatorURL = "https://phabricator.wikimedia.org/"
	DefaultGerritURL      = "https://gerrit.wikimedia.org/r/"
	DefaultSMTPHost       = "localhost"
	DefaultSMTPPort       = 25
)

// Config represents the application configuration
type Config struct {
	Emails   []string `yaml:"emails" env:"TRACKER_EMAILS" envSeparator:","`
	Debug    bool     `yaml:"debug" env:"TRACKER_DEBUG"`
	Interval string   `yaml:"interval" env:"TRACKER_INTERVAL"`

	Phabricator struct {
		BaseURL string `yaml:"base_url" env:"PHABRICATOR_BASE_URL"`
		User    string `yaml:"user" env:"PHABRICATOR_USER"`
		APIKey  string `yaml:"api_key" env:"PHABRICATOR_API_KEY"`
		PHID    string `yaml:"phid" env:"PHABRICATOR_PHID"`
	} `yaml:"phabricator"`
	Gerrit struct {
		BaseURL   string `yaml:"base_url" env:"GERRIT_BASE_URL"`
		User      string `yaml:"user" env:"GERRIT_USER"`
		AccountID int    `yaml:"account_id" env:"GERRIT_ACCOUNT_ID"`
	} `yaml:"gerrit"`
	Notifiers struct {
		SMTP struct {
			Host     string `yaml:"host" env:"SMTP_HOST"`
			Port     int    `yaml:"port" env:"SMTP_PORT"`
			User     string `yaml:"user" env:"SMTP_USER"`
			Password string `yaml:"password" env:"SMTP_PASSWORD"`
		} `yaml:"smtp"`
		Teams struct {
			WebhookURL string `yaml:"webhook_url" env:"TEAMS_WEBHOOK_URL"`
		} `yaml:"teams"`
	} `yaml:"notifiers"`
	Log struct {
		File       string `yaml:"file" env:"LOG_FILE"`
		Level      string `yaml:"level" env:"LOG_LEVEL"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Stdout     bool   `yaml:"stdout"`
	} `yaml:"log"`
}

// Load reads the configuration file, applies environment overrides and
// fills defaults. A missing file is not an error; everything can come from
// the environment and flags.
func Load(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("Configuration file not found, using environment and defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("error reading configuration file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing YAML: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	config.applyDefaults()
	config.trimCredentials()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Interval == "" {
		c.Interval = DefaultInterval
	}
	if c.Phabricator.BaseURL == "" {
		c.Phabricator.BaseURL = DefaultPhabricatorURL
	}
	if c.Gerrit.BaseURL == "" {
		c.Gerrit.BaseURL = DefaultGerritURL
	}
	if c.Notifiers.SMTP.Host == "" {
		c.Notifiers.SMTP.Host = DefaultSMTPHost
	}
	if c.Notifiers.SMTP.Port == 0 {
		c.Notifiers.SMTP.Port = DefaultSMTPPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// trimCredentials strips stray whitespace pasted into identities and keys
func (c *Config) trimCredentials() {
	trim := func(name string, s *string) {
		if t := strings.TrimSpace(*s); t != *s {
			*s = t
			slog.Debug("Trimmed spaces from config value", "field", name)
		}
	}
	trim("phabricator.user", &c.Phabricator.User)
	trim("phabricator.api_key", &c.Phabricator.APIKey)
	trim("phabricator.phid", &c.Phabricator.PHID)
	trim("gerrit.user", &c.Gerrit.User)
	for i := range c.Emails {
		trim("emails", &c.Emails[i])
	}
}

// ValidatePhabricator checks the fields a Phabricator run needs
func (c *Config) ValidatePhabricator() error {
	var missing []string
	if c.Phabricator.User == "" {
		missing = append(missing, "phabricator user")
	}
	if c.Phabricator.APIKey == "" {
		missing = append(missing, "phabricator api key")
	}
	return c.validate(missing)
}

// ValidateGerrit checks the fields a Gerrit run needs
func (c *Config) ValidateGerrit() error {
	var missing []string
	if c.Gerrit.User == "" {
		missing = append(missing, "gerrit user")
	}
	if c.Gerrit.AccountID == 0 {
		missing = append(missing, "gerrit account id")
	}
	return c.validate(missing)
}

func (c *Config) validate(missing []string) error {
	if len(c.Emails) == 0 && !c.Debug {
		missing = append(missing, "recipient email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
