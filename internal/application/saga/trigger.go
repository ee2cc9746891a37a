// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"time"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// TriggerContext describes what the user just did. It is assembled by
// the lesson-completion and quiz-submission collaborators immediately
// after their own writes commit - evaluation never runs against
// uncommitted state.
type TriggerContext struct {
	// UserID - the learner the trigger concerns. Required.
	UserID string

	// LessonID - set by lesson-completion triggers.
	LessonID string

	// ModuleID - the module owning the lesson or quiz, when known.
	ModuleID string

	// QuizID - set by quiz-submission triggers.
	QuizID string

	// QuizScore - the triggering submission's score. Nil when the
	// trigger is not a quiz submission.
	QuizScore *int

	// QuizPassed - whether the triggering submission passed.
	QuizPassed *bool

	// OccurredAt - when the triggering event happened.
	OccurredAt time.Time
}

// Validate checks that the context is usable.
func (t TriggerContext) Validate() error {
	if t.UserID == "" {
		return shared.WrapError("trigger", "Validate", shared.ErrEmptyValue,
			"user ID is required", nil)
	}
	return nil
}

// LessonCompleted builds a trigger for a committed lesson completion.
func LessonCompleted(userID, lessonID, moduleID string) TriggerContext {
	return TriggerContext{
		UserID:     userID,
		LessonID:   lessonID,
		ModuleID:   moduleID,
		OccurredAt: time.Now().UTC(),
	}
}

// QuizSubmitted builds a trigger for a committed quiz result.
func QuizSubmitted(userID, quizID, moduleID string, score int, passed bool) TriggerContext {
	return TriggerContext{
		UserID:     userID,
		QuizID:     quizID,
		ModuleID:   moduleID,
		QuizScore:  &score,
		QuizPassed: &passed,
		OccurredAt: time.Now().UTC(),
	}
}
