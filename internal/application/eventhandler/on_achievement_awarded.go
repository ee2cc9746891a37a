// Package eventhandler contains domain event handlers. Handlers are
// the reactive side of the engine: they respond to published events
// with side effects such as cache invalidation, without ever feeding
// errors back into the award path.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT AWARDED HANDLER
// Reacts to a successful award by dropping the user's cached earned
// listing, so the read endpoint reflects the new award before the
// cache TTL would have expired it.
// ═══════════════════════════════════════════════════════════════════════════

// EarnedCacheInvalidator drops cached earned listings for a user.
type EarnedCacheInvalidator interface {
	InvalidateEarned(ctx context.Context, userID string) error
}

// OnAchievementAwardedHandler processes achievement awarded events.
type OnAchievementAwardedHandler struct {
	invalidator EarnedCacheInvalidator
	logger      *slog.Logger
	timeout     time.Duration
}

// NewOnAchievementAwardedHandler creates a new handler.
func NewOnAchievementAwardedHandler(invalidator EarnedCacheInvalidator, logger *slog.Logger) *OnAchievementAwardedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnAchievementAwardedHandler{
		invalidator: invalidator,
		logger:      logger.With("handler", "on_achievement_awarded"),
		timeout:     5 * time.Second,
	}
}

// Handle processes an achievement awarded event.
// Implements the shared.EventHandler signature.
func (h *OnAchievementAwardedHandler) Handle(event shared.Event) error {
	awardEvent, ok := event.(shared.AchievementAwardedEvent)
	if !ok {
		h.logger.Warn("received non-AchievementAwardedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.invalidator.InvalidateEarned(ctx, awardEvent.UserID); err != nil {
		// The cached listing self-heals when its TTL expires, so a
		// failed invalidation is logged and swallowed.
		h.logger.Warn("failed to invalidate earned cache",
			"user_id", awardEvent.UserID,
			"achievement_id", awardEvent.AchievementID,
			"error", err,
		)
		return nil
	}

	h.logger.Info("earned cache invalidated",
		"user_id", awardEvent.UserID,
		"achievement_id", awardEvent.AchievementID,
	)

	return nil
}
