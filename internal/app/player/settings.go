package player

import (
	"time"

	"github.com/mostafaalagamy/playd/internal/app/skip"
	"github.com/mostafaalagamy/playd/internal/domain/segment"
	"github.com/mostafaalagamy/playd/internal/infra/config"
)

// AutoplaySettings adapts the config's autoplay section to
// autoplay.Settings.
type AutoplaySettings struct {
	cfg *config.Config
}

// NewAutoplaySettings creates the adapter.
func NewAutoplaySettings(cfg *config.Config) *AutoplaySettings {
	return &AutoplaySettings{cfg: cfg}
}

func (s *AutoplaySettings) AutoplayEnabled() bool {
	return s.cfg.Autoplay.IsEnabled()
}

func (s *AutoplaySettings) SkipLongItems() bool {
	return s.cfg.Autoplay.SkipLongItems
}

func (s *AutoplaySettings) DurationCeiling() time.Duration {
	return time.Duration(s.cfg.Autoplay.DurationCeilingSec) * time.Second
}

// SkipSettings adapts the config's segments section to skip.Settings.
type SkipSettings struct {
	cfg *config.Config
}

// NewSkipSettings creates the adapter.
func NewSkipSettings(cfg *config.Config) *SkipSettings {
	return &SkipSettings{cfg: cfg}
}

func (s *SkipSettings) Enabled() bool {
	return s.cfg.Segments.IsEnabled()
}

func (s *SkipSettings) SkipEnabled() bool {
	return s.cfg.Segments.IsSkipEnabled()
}

func (s *SkipSettings) PolicyFor(c segment.Category) skip.Policy {
	name, _ := s.cfg.CategoryPolicy(c)
	policy, ok := skip.ParsePolicy(name)
	if !ok {
		return skip.PolicyIgnore
	}
	return policy
}

func (s *SkipSettings) NotificationsEnabled() bool {
	return s.cfg.Segments.NotificationsEnabled()
}

func (s *SkipSettings) CategoryLabel(c segment.Category) string {
	_, label := s.cfg.CategoryPolicy(c)
	return label
}

func (s *SkipSettings) ButtonHideDelay() time.Duration {
	return time.Duration(s.cfg.Playback.ButtonHideSec) * time.Second
}
