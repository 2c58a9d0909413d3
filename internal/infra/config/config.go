// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mostafaalagamy/playd/internal/domain/segment"
)

// Config represents the application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Playback PlaybackConfig `yaml:"playback"`
	Autoplay AutoplayConfig `yaml:"autoplay"`
	Segments SegmentsConfig `yaml:"segments"`
}

// LoggingConfig represents logger configuration.
type LoggingConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File   string `yaml:"file"`
}

// PlaybackConfig represents playback behavior configuration.
type PlaybackConfig struct {
	Repeat        string `yaml:"repeat" default:"off" validate:"oneof=off all one"`
	ButtonHideSec int    `yaml:"button_hide_sec" default:"5" validate:"gte=1,lte=60"`
}

// AutoplayConfig represents follow-up continuation configuration.
// Enabled is a pointer so an explicit false survives defaulting.
type AutoplayConfig struct {
	Enabled            *bool          `yaml:"enabled" default:"true"`
	SkipLongItems      bool           `yaml:"skip_long_items"`
	DurationCeilingSec int            `yaml:"duration_ceiling_sec" default:"360" validate:"gte=0"`
	Resolver           ResolverConfig `yaml:"resolver"`
}

// IsEnabled reports whether autoplay is enabled (true when unset).
func (a AutoplayConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// ResolverConfig represents the follow-up resolver configuration.
// Settings are resolver-specific and decoded by the resolver factory.
type ResolverConfig struct {
	Type     string         `yaml:"type" default:"spotify"`
	Settings map[string]any `yaml:"settings"`
}

// SegmentsConfig represents segment tracking and skipping configuration.
// The boolean toggles are pointers so an explicit false survives defaulting.
type SegmentsConfig struct {
	Enabled       *bool                           `yaml:"enabled" default:"true"`
	SkipEnabled   *bool                           `yaml:"skip_enabled" default:"true"`
	Notifications *bool                           `yaml:"notifications" default:"true"`
	BaseURL       string                          `yaml:"base_url"`
	Categories    map[string]CategoryPolicyConfig `yaml:"categories" validate:"dive"`
}

// IsEnabled reports whether segment tracking is enabled (true when unset).
func (s SegmentsConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// IsSkipEnabled reports whether the skip capability is enabled.
func (s SegmentsConfig) IsSkipEnabled() bool {
	return s.SkipEnabled == nil || *s.SkipEnabled
}

// NotificationsEnabled reports whether skips surface a message.
func (s SegmentsConfig) NotificationsEnabled() bool {
	return s.Notifications == nil || *s.Notifications
}

// CategoryPolicyConfig represents one category's skip policy.
type CategoryPolicyConfig struct {
	Policy string `yaml:"policy" default:"ignore" validate:"omitempty,oneof=auto manual ignore"`
	Label  string `yaml:"label"`
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	override := func(env, key string) {
		if v := os.Getenv(env); v != "" {
			if c.Autoplay.Resolver.Settings == nil {
				c.Autoplay.Resolver.Settings = make(map[string]any)
			}
			c.Autoplay.Resolver.Settings[key] = v
		}
	}
	override("SPOTIFY_CLIENT_ID", "client_id")
	override("SPOTIFY_CLIENT_SECRET", "client_secret")
	override("SPOTIFY_REFRESH_TOKEN", "refresh_token")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for name := range c.Segments.Categories {
		if _, ok := segment.ParseCategory(name); !ok {
			return errors.Newf("unknown segment category %q", name)
		}
	}

	return nil
}

// CategoryPolicy returns the configured policy name and display-name
// override for a category. Unconfigured categories are ignored.
func (c *Config) CategoryPolicy(cat segment.Category) (policy, label string) {
	entry, ok := c.Segments.Categories[cat.String()]
	if !ok {
		return "ignore", ""
	}
	if entry.Policy == "" {
		return "ignore", entry.Label
	}
	return entry.Policy, entry.Label
}
