package postgres

import (
	"context"
	"fmt"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/course"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements course.ProgressRepository for PostgreSQL.
// Every method reads committed state directly; there is deliberately no
// caching in front of these queries.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ListModuleLessonIDs returns the lesson ids belonging to a module.
func (r *ProgressRepository) ListModuleLessonIDs(ctx context.Context, moduleID string) ([]string, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM modules WHERE id = $1)",
		moduleID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check module existence: %w", err)
	}
	if !exists {
		return nil, shared.ErrModuleNotFound
	}

	query := `
		SELECT id
		FROM lessons
		WHERE module_id = $1
		ORDER BY position ASC
	`

	rows, err := r.conn.Query(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query module lessons: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan lesson id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListCompletedLessonIDs returns the ids of lessons the user has completed.
func (r *ProgressRepository) ListCompletedLessonIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT lesson_id
		FROM lesson_progress
		WHERE user_id = $1 AND status = $2
	`

	rows, err := r.conn.Query(ctx, query, userID, string(course.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query completed lessons: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completed lesson id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetQuizModuleID resolves the module owning a quiz via its lesson.
func (r *ProgressRepository) GetQuizModuleID(ctx context.Context, quizID string) (string, error) {
	query := `
		SELECT l.module_id
		FROM quizzes q
		JOIN lessons l ON l.id = q.lesson_id
		WHERE q.id = $1
	`

	var moduleID string
	err := r.conn.QueryRow(ctx, query, quizID).Scan(&moduleID)
	if IsNoRows(err) {
		return "", shared.ErrQuizNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve quiz module: %w", err)
	}

	return moduleID, nil
}
