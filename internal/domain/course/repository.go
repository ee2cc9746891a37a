package course

import (
	"context"
)

// ProgressRepository reads course structure and per-user progress.
// Every method reads current durable state; nothing here is cached,
// because module-completion checks must see concurrent completions
// committed between the triggering write and the evaluation read.
type ProgressRepository interface {
	// ListModuleLessonIDs returns the lesson ids belonging to a module.
	// Returns shared.ErrModuleNotFound when the module does not exist.
	ListModuleLessonIDs(ctx context.Context, moduleID string) ([]string, error)

	// ListCompletedLessonIDs returns the ids of lessons the user has
	// completed (status = completed).
	ListCompletedLessonIDs(ctx context.Context, userID string) ([]string, error)

	// GetQuizModuleID resolves the module owning a quiz (via its
	// lesson). Returns shared.ErrQuizNotFound when the quiz or its
	// lesson no longer exists.
	GetQuizModuleID(ctx context.Context, quizID string) (string, error)
}
