// Package course contains the read-only course-content domain the
// engine evaluates against: modules, lessons, per-user lesson progress,
// quizzes and quiz results. All of it is mutated by out-of-scope
// collaborators (admin CRUD, lesson completion, quiz submission); this
// engine only reads it.
package course

import (
	"time"
)

// ProgressStatus is the lifecycle state of a lesson for one user.
type ProgressStatus string

const (
	// StatusNotStarted - no progress recorded.
	StatusNotStarted ProgressStatus = "not_started"

	// StatusCompleted - the lesson has been completed.
	StatusCompleted ProgressStatus = "completed"
)

// Module groups an ordered set of lessons. Modules with zero lessons
// exist (freshly authored ones) and are never considered complete.
type Module struct {
	ID       string
	Title    string
	Position int
}

// Lesson belongs to exactly one module.
type Lesson struct {
	ID       string
	ModuleID string
	Title    string
	Position int
}

// LessonProgress is one user's durable state for one lesson.
type LessonProgress struct {
	UserID      string
	LessonID    string
	Status      ProgressStatus
	CompletedAt *time.Time
}

// Completed reports whether the lesson counts toward module completion.
func (p LessonProgress) Completed() bool {
	return p.Status == StatusCompleted
}

// Quiz is attached to a lesson; PassThreshold is the minimal passing
// score authored by the admin.
type Quiz struct {
	ID            string
	LessonID      string
	Title         string
	PassThreshold int
}

// QuizResult is one submission. Multiple results per (user, quiz) may
// exist; per-event evaluation only ever sees the triggering one.
type QuizResult struct {
	ID        string
	UserID    string
	QuizID    string
	Score     int
	Passed    bool
	CreatedAt time.Time
}
