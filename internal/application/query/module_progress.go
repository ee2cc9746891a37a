// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/course"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MODULE PROGRESS AGGREGATOR
// Pure read-side computations over lesson/module/quiz progress state.
// Every call recomputes from current durable state - never from a
// cached count - because concurrent lesson completions can land between
// the write that triggered evaluation and the evaluation itself.
// Recomputation is what keeps module-completion checks correct despite
// races; no snapshot isolation is assumed across the two reads.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressAggregator answers aggregate questions about a user's course
// progress for the criteria evaluator.
type ProgressAggregator struct {
	progressRepo course.ProgressRepository
}

// NewProgressAggregator creates a new aggregator.
func NewProgressAggregator(progressRepo course.ProgressRepository) *ProgressAggregator {
	return &ProgressAggregator{progressRepo: progressRepo}
}

// IsModuleFullyCompleted reports whether the user has completed every
// lesson of the module. A module with zero lessons is never complete.
// A dangling module reference (module deleted since the criteria was
// authored) yields false without an error.
func (a *ProgressAggregator) IsModuleFullyCompleted(ctx context.Context, userID, moduleID string) (bool, error) {
	lessonIDs, err := a.progressRepo.ListModuleLessonIDs(ctx, moduleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if len(lessonIDs) == 0 {
		return false, nil
	}

	completedIDs, err := a.progressRepo.ListCompletedLessonIDs(ctx, userID)
	if err != nil {
		return false, err
	}

	completed := make(map[string]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = struct{}{}
	}

	for _, id := range lessonIDs {
		if _, ok := completed[id]; !ok {
			return false, nil
		}
	}

	return true, nil
}

// QuizModuleID resolves the module owning a quiz. A dangling quiz
// reference yields ("", nil): the caller treats it as "no owning
// module", which makes module-scoped criteria evaluate to false.
func (a *ProgressAggregator) QuizModuleID(ctx context.Context, quizID string) (string, error) {
	moduleID, err := a.progressRepo.GetQuizModuleID(ctx, quizID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return moduleID, nil
}
