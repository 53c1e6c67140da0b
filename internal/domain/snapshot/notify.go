package snapshot

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/joabeoliveira/ocupacao/internal/platform/events"
)

// Invalidator drops cached aggregates after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Notifier announces committed snapshot writes. Failures are logged and
// never surface to the caller: the data is already committed.
type Notifier struct {
	publisher events.Publisher
	cache     Invalidator
	logger    zerolog.Logger
}

func NewNotifier(publisher events.Publisher, cache Invalidator, logger zerolog.Logger) *Notifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Notifier{publisher: publisher, cache: cache, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, evt events.SnapshotEvent) {
	if n == nil {
		return
	}
	if n.cache != nil {
		if err := n.cache.Invalidate(ctx); err != nil {
			n.logger.Warn().Err(err).Str("event", evt.Type).Msg("response cache invalidation failed")
		}
	}
	if err := n.publisher.Publish(ctx, evt); err != nil {
		n.logger.Warn().Err(err).
			Str("event", evt.Type).
			Str("reference_date", evt.ReferenceDate).
			Msg("snapshot event not published")
	}
}
