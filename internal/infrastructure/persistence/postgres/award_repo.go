package postgres

import (
	"context"
	"fmt"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AwardRepository implements achievement.AwardRepository for PostgreSQL.
type AwardRepository struct {
	conn *Connection
}

// NewAwardRepository creates a new AwardRepository.
func NewAwardRepository(conn *Connection) *AwardRepository {
	return &AwardRepository{conn: conn}
}

// Insert creates a user_achievements row. The primary key on
// (user_id, achievement_id) arbitrates concurrent inserts: the loser
// gets a uniqueness violation, which is surfaced as
// shared.ErrAlreadyEarned rather than a failure.
func (r *AwardRepository) Insert(ctx context.Context, award achievement.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.conn.Exec(ctx, query,
		award.UserID,
		award.AchievementID,
		award.EarnedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyEarned
		}
		return fmt.Errorf("failed to insert user achievement: %w", err)
	}

	return nil
}
