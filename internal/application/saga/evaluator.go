package saga

import (
	"context"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA EVALUATOR
// Interprets one achievement's declarative criteria against a trigger
// context plus aggregator results. Pure with respect to its own state;
// the only side effects are read calls into the aggregator.
// ══════════════════════════════════════════════════════════════════════════════

// Aggregator is the read-side the evaluator consults for multi-entity
// conditions. Implemented by query.ProgressAggregator.
type Aggregator interface {
	// IsModuleFullyCompleted recomputes module completion from durable state.
	IsModuleFullyCompleted(ctx context.Context, userID, moduleID string) (bool, error)

	// QuizModuleID resolves the module owning a quiz ("" when dangling).
	QuizModuleID(ctx context.Context, quizID string) (string, error)
}

// EvalResult is the outcome of evaluating one candidate.
type EvalResult int

const (
	// EvalNotSatisfied - the criteria did not match this trigger.
	EvalNotSatisfied EvalResult = iota

	// EvalSatisfied - the criteria matched; the candidate qualifies.
	EvalSatisfied

	// EvalSkipped - the criteria cannot be evaluated per event
	// (deferred kind, unknown kind, malformed document). Skipped
	// candidates are never awarded and never abort the run.
	EvalSkipped
)

// String returns a readable result name.
func (r EvalResult) String() string {
	switch r {
	case EvalSatisfied:
		return "satisfied"
	case EvalNotSatisfied:
		return "not_satisfied"
	case EvalSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// CriteriaEvaluator dispatches on the criteria variant.
type CriteriaEvaluator struct {
	aggregator Aggregator
	log        *logger.Logger
}

// NewCriteriaEvaluator creates a new evaluator.
func NewCriteriaEvaluator(aggregator Aggregator, log *logger.Logger) *CriteriaEvaluator {
	if log == nil {
		log = logger.Default()
	}
	return &CriteriaEvaluator{
		aggregator: aggregator,
		log:        log.With(logger.Component("criteria_evaluator")),
	}
}

// Evaluate decides whether one achievement's criteria is satisfied by
// the trigger. Store errors bubble up so the caller can isolate the
// candidate; everything non-evaluable maps to EvalSkipped.
func (e *CriteriaEvaluator) Evaluate(ctx context.Context, a achievement.Achievement, trigger TriggerContext) (EvalResult, error) {
	if a.CriteriaErr != nil || a.Criteria == nil {
		e.log.Warn("skipping achievement with unparseable criteria",
			logger.AchievementID(a.ID),
			logger.Err(a.CriteriaErr),
		)
		return EvalSkipped, nil
	}

	if a.Criteria.Deferred() {
		e.log.Warn("skipping deferred criteria kind; requires periodic aggregator",
			logger.AchievementID(a.ID),
			logger.CriteriaKind(string(a.Criteria.Kind())),
		)
		return EvalSkipped, nil
	}

	switch c := a.Criteria.(type) {
	case achievement.CompleteLesson:
		return e.evaluateCompleteLesson(c, trigger), nil

	case achievement.CompleteModule:
		return e.evaluateCompleteModule(ctx, c, trigger)

	case achievement.QuizScore:
		return e.evaluateQuizScore(c, trigger), nil

	case achievement.ModuleScore:
		return e.evaluateModuleScore(ctx, c, trigger)

	default:
		// Parsing produces only the variants above; anything else means
		// a new kind was added without evaluator support.
		e.log.Warn("skipping unsupported criteria kind",
			logger.AchievementID(a.ID),
			logger.CriteriaKind(string(a.Criteria.Kind())),
		)
		return EvalSkipped, nil
	}
}

// evaluateCompleteLesson: the trigger must carry a lesson, and the
// criteria either names that lesson or any lesson.
func (e *CriteriaEvaluator) evaluateCompleteLesson(c achievement.CompleteLesson, trigger TriggerContext) EvalResult {
	if trigger.LessonID == "" {
		return EvalNotSatisfied
	}
	if c.LessonRef != "" && c.LessonRef != trigger.LessonID {
		return EvalNotSatisfied
	}
	return EvalSatisfied
}

// evaluateCompleteModule: the trigger must carry a module, the criteria
// must match it, and every lesson of the module must be completed per a
// fresh aggregate read.
func (e *CriteriaEvaluator) evaluateCompleteModule(ctx context.Context, c achievement.CompleteModule, trigger TriggerContext) (EvalResult, error) {
	if trigger.ModuleID == "" {
		return EvalNotSatisfied, nil
	}
	if c.ModuleRef != "" && c.ModuleRef != trigger.ModuleID {
		return EvalNotSatisfied, nil
	}

	complete, err := e.aggregator.IsModuleFullyCompleted(ctx, trigger.UserID, trigger.ModuleID)
	if err != nil {
		return EvalNotSatisfied, err
	}
	if !complete {
		return EvalNotSatisfied, nil
	}
	return EvalSatisfied, nil
}

// evaluateQuizScore: the triggering submission's score must meet the
// threshold, on the matching quiz when the criteria is scoped.
func (e *CriteriaEvaluator) evaluateQuizScore(c achievement.QuizScore, trigger TriggerContext) EvalResult {
	if trigger.QuizID == "" || trigger.QuizScore == nil {
		return EvalNotSatisfied
	}
	if c.QuizRef != "" && c.QuizRef != trigger.QuizID {
		return EvalNotSatisfied
	}
	if *trigger.QuizScore < c.Threshold {
		return EvalNotSatisfied
	}
	return EvalSatisfied
}

// evaluateModuleScore: the triggering quiz must belong to the criteria's
// module and its score must meet the threshold. The owning module is
// resolved from durable state; a dangling quiz reference resolves to ""
// and the criteria evaluates to false.
func (e *CriteriaEvaluator) evaluateModuleScore(ctx context.Context, c achievement.ModuleScore, trigger TriggerContext) (EvalResult, error) {
	if trigger.QuizID == "" || trigger.ModuleID == "" || trigger.QuizScore == nil {
		return EvalNotSatisfied, nil
	}

	owningModule, err := e.aggregator.QuizModuleID(ctx, trigger.QuizID)
	if err != nil {
		return EvalNotSatisfied, err
	}
	if owningModule == "" || owningModule != c.ModuleRef {
		return EvalNotSatisfied, nil
	}
	if *trigger.QuizScore < c.Threshold {
		return EvalNotSatisfied, nil
	}
	return EvalSatisfied, nil
}
