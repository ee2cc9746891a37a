// Package achievement contains the achievement catalog domain: the
// declarative criteria attached to achievements, the earned-award
// record, and the repository contracts the engine reads and writes
// through.
package achievement

import (
	"encoding/json"
	"fmt"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// Criteria are authored by admins as JSON and stored in the achievements
// table. They are parsed and validated exactly once, when the catalog
// loads. A closed set of kinds keeps evaluation dispatch exhaustive;
// rows with unknown or malformed criteria stay in the catalog flagged
// with their parse error so one bad row never aborts the others.
// ══════════════════════════════════════════════════════════════════════════════

// Kind identifies a criteria variant.
type Kind string

const (
	// KindCompleteLesson fires when the user completes a lesson,
	// optionally scoped to a specific lesson.
	KindCompleteLesson Kind = "complete_lesson"

	// KindCompleteModule fires when every lesson of a module is
	// completed, optionally scoped to a specific module.
	KindCompleteModule Kind = "complete_module"

	// KindQuizScore fires when a quiz submission meets a score
	// threshold, optionally scoped to a specific quiz.
	KindQuizScore Kind = "quiz_score"

	// KindModuleScore fires when a quiz belonging to a specific module
	// is submitted with a score meeting the threshold.
	KindModuleScore Kind = "module_score"

	// KindModuleAverage requires a time-windowed aggregate and is not
	// evaluable from a single trigger event.
	KindModuleAverage Kind = "module_average"

	// KindLessonsPerDay requires a daily aggregate and is not evaluable
	// from a single trigger event.
	KindLessonsPerDay Kind = "lessons_per_day"

	// KindStreak requires a login-streak aggregate and is not evaluable
	// from a single trigger event.
	KindStreak Kind = "streak"
)

// Criteria is the closed sum of criteria variants.
type Criteria interface {
	// Kind returns the discriminator.
	Kind() Kind

	// Validate checks structural invariants of the variant.
	Validate() error

	// Deferred reports whether the variant needs a periodic aggregator
	// instead of per-event evaluation.
	Deferred() bool
}

// CompleteLesson fires on lesson completion.
type CompleteLesson struct {
	// LessonRef scopes the criteria to one lesson. Empty means any
	// lesson qualifies.
	LessonRef string `json:"lesson_ref,omitempty"`
}

func (c CompleteLesson) Kind() Kind      { return KindCompleteLesson }
func (c CompleteLesson) Validate() error { return nil }
func (c CompleteLesson) Deferred() bool  { return false }

// CompleteModule fires when a module is fully completed.
type CompleteModule struct {
	// ModuleRef scopes the criteria to one module. Empty means any
	// module qualifies.
	ModuleRef string `json:"module_ref,omitempty"`
}

func (c CompleteModule) Kind() Kind      { return KindCompleteModule }
func (c CompleteModule) Validate() error { return nil }
func (c CompleteModule) Deferred() bool  { return false }

// QuizScore fires when a quiz score meets the threshold.
type QuizScore struct {
	// Threshold is the minimal qualifying score (inclusive).
	Threshold int `json:"threshold"`

	// QuizRef scopes the criteria to one quiz. Empty means any quiz.
	QuizRef string `json:"quiz_ref,omitempty"`
}

func (c QuizScore) Kind() Kind { return KindQuizScore }

func (c QuizScore) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidInput,
			fmt.Sprintf("quiz_score threshold %d out of range [0,100]", c.Threshold), nil)
	}
	return nil
}

func (c QuizScore) Deferred() bool { return false }

// ModuleScore fires when a quiz owned by ModuleRef scores at least
// Threshold.
type ModuleScore struct {
	// ModuleRef is the module whose quizzes qualify. Required.
	ModuleRef string `json:"module_ref"`

	// Threshold is the minimal qualifying score (inclusive).
	Threshold int `json:"threshold"`
}

func (c ModuleScore) Kind() Kind { return KindModuleScore }

func (c ModuleScore) Validate() error {
	if c.ModuleRef == "" {
		return shared.WrapError("achievement", "ParseCriteria", shared.ErrEmptyValue,
			"module_score requires module_ref", nil)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidInput,
			fmt.Sprintf("module_score threshold %d out of range [0,100]", c.Threshold), nil)
	}
	return nil
}

func (c ModuleScore) Deferred() bool { return false }

// ModuleAverage is recognized but deferred to a periodic aggregator.
type ModuleAverage struct {
	Threshold int `json:"threshold"`
}

func (c ModuleAverage) Kind() Kind { return KindModuleAverage }

func (c ModuleAverage) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidInput,
			fmt.Sprintf("module_average threshold %d out of range [0,100]", c.Threshold), nil)
	}
	return nil
}

func (c ModuleAverage) Deferred() bool { return true }

// LessonsPerDay is recognized but deferred to a periodic aggregator.
type LessonsPerDay struct {
	Count int `json:"count"`
}

func (c LessonsPerDay) Kind() Kind { return KindLessonsPerDay }

func (c LessonsPerDay) Validate() error {
	if c.Count <= 0 {
		return shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidInput,
			"lessons_per_day count must be positive", nil)
	}
	return nil
}

func (c LessonsPerDay) Deferred() bool { return true }

// Streak is recognized but deferred to a periodic aggregator.
type Streak struct {
	Days int `json:"days"`
}

func (c Streak) Kind() Kind { return KindStreak }

func (c Streak) Validate() error {
	if c.Days <= 0 {
		return shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidInput,
			"streak days must be positive", nil)
	}
	return nil
}

func (c Streak) Deferred() bool { return true }

// ══════════════════════════════════════════════════════════════════════════════
// PARSING
// ══════════════════════════════════════════════════════════════════════════════

// criteriaEnvelope carries the discriminator; the remaining fields are
// decoded per variant.
type criteriaEnvelope struct {
	Type Kind `json:"type"`
}

// ParseCriteria decodes and validates a stored criteria document.
// Unknown kinds return shared.ErrUnknownCriteria; structurally invalid
// documents return shared.ErrMalformedCriteria (both satisfy
// errors.Is against the shared base kinds).
func ParseCriteria(raw []byte) (Criteria, error) {
	if len(raw) == 0 {
		return nil, shared.WrapError("achievement", "ParseCriteria", shared.ErrEmptyValue,
			"empty criteria document", nil)
	}

	var envelope criteriaEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidFormat,
			"criteria is not a JSON object", err)
	}

	var (
		criteria Criteria
		err      error
	)

	switch envelope.Type {
	case KindCompleteLesson:
		criteria, err = decodeVariant[CompleteLesson](raw)
	case KindCompleteModule:
		criteria, err = decodeVariant[CompleteModule](raw)
	case KindQuizScore:
		criteria, err = decodeVariant[QuizScore](raw)
	case KindModuleScore:
		criteria, err = decodeVariant[ModuleScore](raw)
	case KindModuleAverage:
		criteria, err = decodeVariant[ModuleAverage](raw)
	case KindLessonsPerDay:
		criteria, err = decodeVariant[LessonsPerDay](raw)
	case KindStreak:
		criteria, err = decodeVariant[Streak](raw)
	case "":
		return nil, shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidFormat,
			"criteria missing type field", nil)
	default:
		return nil, shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidInput,
			fmt.Sprintf("unknown criteria kind %q", envelope.Type), nil)
	}
	if err != nil {
		return nil, err
	}

	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	return criteria, nil
}

// decodeVariant unmarshals the full document into a concrete variant.
func decodeVariant[T Criteria](raw []byte) (Criteria, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidFormat,
			fmt.Sprintf("malformed %s criteria", v.Kind()), err)
	}
	return v, nil
}

// EncodeCriteria serializes a criteria variant back to its stored JSON
// form, including the type discriminator. Used by seeders and tests.
func EncodeCriteria(c Criteria) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	// Re-open the object to splice in the discriminator.
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	m["type"] = string(c.Kind())
	return json.Marshal(m)
}
