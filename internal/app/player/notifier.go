package player

import (
	zlog "github.com/rs/zerolog/log"
)

// LogNotifier surfaces notifications through the structured log. It stands
// in for a toast sink when the daemon runs headless.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(message string) {
	zlog.Info().Msgf("notice: %s", message)
}
