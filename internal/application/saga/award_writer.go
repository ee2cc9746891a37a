package saga

import (
	"context"
	"errors"
	"time"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/config"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD WRITER
// The engine's single write path. Idempotency comes entirely from the
// store's uniqueness constraint on (user_id, achievement_id): two
// concurrent evaluation runs racing to award the same achievement both
// attempt the insert, exactly one succeeds, the other observes the
// violation and no-ops. No application-level lock is taken or needed.
// ══════════════════════════════════════════════════════════════════════════════

// AwardWriter durably and idempotently records new awards.
type AwardWriter struct {
	awardRepo achievement.AwardRepository
	flags     *config.FeatureFlags
	log       *logger.Logger
}

// NewAwardWriter creates a new award writer. A nil flags value leaves
// award writes unconditionally enabled.
func NewAwardWriter(awardRepo achievement.AwardRepository, flags *config.FeatureFlags, log *logger.Logger) *AwardWriter {
	if log == nil {
		log = logger.Default()
	}
	return &AwardWriter{
		awardRepo: awardRepo,
		flags:     flags,
		log:       log.With(logger.Component("award_writer")),
	}
}

// Award attempts to record the achievement for the user. A uniqueness
// violation is the benign AlreadyEarned outcome, not an error; anything
// else is a transient store error the caller isolates to this candidate.
// When the award-writes feature flag is off the insert is skipped and
// the dry-run outcome reported instead.
func (w *AwardWriter) Award(ctx context.Context, userID, achievementID string) (achievement.AwardOutcome, error) {
	if w.flags != nil && !w.flags.IsEnabled(config.FeatureAwardWrites, config.FeatureContext{UserID: userID}) {
		w.log.Info("award write suppressed; dry run",
			logger.UserID(userID),
			logger.AchievementID(achievementID),
		)
		return achievement.OutcomeDryRun, nil
	}

	award := achievement.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		EarnedAt:      time.Now().UTC(),
	}

	err := w.awardRepo.Insert(ctx, award)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			w.log.Debug("award already earned; duplicate attempt is benign",
				logger.UserID(userID),
				logger.AchievementID(achievementID),
			)
			return achievement.OutcomeAlreadyEarned, nil
		}
		// The outcome carries no meaning when err is non-nil.
		return achievement.OutcomeNone, err
	}

	w.log.Info("achievement awarded",
		logger.UserID(userID),
		logger.AchievementID(achievementID),
	)
	return achievement.OutcomeAwarded, nil
}
