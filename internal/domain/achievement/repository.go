package achievement

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract for the engine. The
// implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository reads the achievement catalog and the per-user
// earned set. The catalog is expected to be small and boundedly sized,
// so it is always loaded in full rather than paged.
type CatalogRepository interface {
	// ListAchievements returns the full catalog with criteria parsed.
	ListAchievements(ctx context.Context) ([]Achievement, error)

	// ListEarnedIDs returns the achievement ids already earned by the
	// user. An empty slice means every catalog row is a candidate.
	ListEarnedIDs(ctx context.Context, userID string) ([]string, error)

	// ListEarned returns the user's earned achievements joined with
	// their catalog rows, newest first. Serves the read-only listing
	// endpoint, not the evaluation path.
	ListEarned(ctx context.Context, userID string) ([]EarnedAchievement, error)
}

// AwardRepository performs the engine's single write kind: an
// insert-if-absent into user_achievements.
type AwardRepository interface {
	// Insert attempts to create the row. A uniqueness-constraint
	// violation on (user_id, achievement_id) is surfaced as
	// shared.ErrAlreadyEarned, distinguishable from transient store
	// errors via errors.Is.
	Insert(ctx context.Context, award UserAchievement) error
}
