package app

import "github.com/rs/zerolog/log"

// LogNotifier routes user-facing notifications to the structured log.
// Used when no UI layer has installed its own notifier.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Info logs an informational notification.
func (n *LogNotifier) Info(message string) {
	log.Info().Msg(message)
}

// Warn logs a warning notification.
func (n *LogNotifier) Warn(message string) {
	log.Warn().Msg(message)
}
