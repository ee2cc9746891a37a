package achievement

import (
	"time"
)

// Achievement is one row of the admin-authored catalog. The criteria
// document is parsed once at load time; rows whose criteria failed to
// parse keep the error so the evaluator can skip them with a
// diagnostic instead of re-deriving the failure every run.
type Achievement struct {
	// ID is the catalog identifier (UUID).
	ID string

	// Name is the display name shown to learners.
	Name string

	// Description explains how the achievement is earned.
	Description string

	// Criteria is the parsed declarative condition. Nil when parsing
	// failed; see CriteriaErr.
	Criteria Criteria

	// CriteriaErr records the load-time parse error, if any.
	CriteriaErr error

	// CreatedAt / UpdatedAt - catalog row timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Evaluable reports whether the achievement can be evaluated from a
// single trigger event. Deferred kinds and rows with broken criteria
// are loaded but never evaluated here.
func (a *Achievement) Evaluable() bool {
	return a.CriteriaErr == nil && a.Criteria != nil && !a.Criteria.Deferred()
}

// UserAchievement is the durable record of one earned achievement.
// The (UserID, AchievementID) pair is unique and immutable: created at
// most once, never updated or deleted by this engine. That uniqueness
// constraint is the engine's sole concurrency-safety mechanism.
type UserAchievement struct {
	UserID        string
	AchievementID string
	EarnedAt      time.Time
}

// EarnedAchievement is the read model for the per-user listing: an
// earned record joined with its catalog row.
type EarnedAchievement struct {
	AchievementID string    `json:"achievement_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	EarnedAt      time.Time `json:"earned_at"`
}

// AwardOutcome describes the result of an idempotent award write.
type AwardOutcome int

const (
	// OutcomeNone is the zero value, returned alongside a non-nil
	// error when the write did not resolve either way.
	OutcomeNone AwardOutcome = iota

	// OutcomeAwarded - a new user_achievements row was created.
	OutcomeAwarded

	// OutcomeAlreadyEarned - the row already existed; the concurrent or
	// repeated attempt is benign and no state changed.
	OutcomeAlreadyEarned

	// OutcomeDryRun - the write was suppressed by the award-writes
	// feature flag; the candidate qualified but nothing was persisted.
	OutcomeDryRun
)

// String returns a readable outcome name.
func (o AwardOutcome) String() string {
	switch o {
	case OutcomeAwarded:
		return "awarded"
	case OutcomeAlreadyEarned:
		return "already_earned"
	case OutcomeDryRun:
		return "dry_run"
	default:
		return "none"
	}
}
