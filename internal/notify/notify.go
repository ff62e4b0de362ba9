// Package notify provides notifier implementations for routed event
// records. The engine only depends on the Notifier interface; delivery
// transports plug in here.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sfpslog/sfpslog-go/internal/engine"
)

// LogNotifier writes each routed record to the structured log. It is the
// default sink when no delivery transport is configured and doubles as a
// dry-run mode for new registries.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier returns a notifier that logs deliveries.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements engine.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, batch []engine.Notification) error {
	for _, item := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec := item.Record
		n.log.Info().
			Str("event_id", rec.ID).
			Str("category", rec.Category).
			Str("tenant", rec.TenantID).
			Str("server", rec.ServerID).
			Str("destination", item.Destination).
			Str("title", rec.Title).
			Str("message", rec.Message).
			Msg("event delivered")
	}
	return nil
}
