// Package postgres implements the PostgreSQL persistence layer for the
// achievement engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements achievement.CatalogRepository for PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// ListAchievements returns the full catalog with criteria parsed.
// Rows whose criteria documents fail to parse are still returned, with
// the parse error recorded on the row, so a single malformed definition
// cannot hide the rest of the catalog.
func (r *CatalogRepository) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	query := `
		SELECT id, name, description, criteria, created_at, updated_at
		FROM achievements
		ORDER BY created_at ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	return r.scanAchievements(rows)
}

// ListEarnedIDs returns the achievement ids already earned by the user.
func (r *CatalogRepository) ListEarnedIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT achievement_id
		FROM user_achievements
		WHERE user_id = $1
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned achievement ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan earned achievement id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListEarned returns the user's earned achievements joined with their
// catalog rows, newest first.
func (r *CatalogRepository) ListEarned(ctx context.Context, userID string) ([]achievement.EarnedAchievement, error) {
	query := `
		SELECT ua.achievement_id, a.name, a.description, ua.earned_at
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.earned_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned achievements: %w", err)
	}
	defer rows.Close()

	var earned []achievement.EarnedAchievement
	for rows.Next() {
		var e achievement.EarnedAchievement
		err := rows.Scan(&e.AchievementID, &e.Name, &e.Description, &e.EarnedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earned achievement: %w", err)
		}
		earned = append(earned, e)
	}

	return earned, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// scanAchievements scans catalog rows, parsing each criteria document.
func (r *CatalogRepository) scanAchievements(rows pgx.Rows) ([]achievement.Achievement, error) {
	var achievements []achievement.Achievement

	for rows.Next() {
		var a achievement.Achievement
		var criteriaJSON []byte

		err := rows.Scan(
			&a.ID,
			&a.Name,
			&a.Description,
			&criteriaJSON,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}

		a.Criteria, a.CriteriaErr = achievement.ParseCriteria(criteriaJSON)

		achievements = append(achievements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return achievements, nil
}
