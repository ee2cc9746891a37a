package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD FLOW SAGA
// One trigger produces one independent evaluation run.
// Flow: Load Catalog & Earned Set → Compute Candidates → Evaluate Each
// Candidate (isolated) → Award Qualifying → Publish Awarded Events
//
// Partial-failure isolation is the core contract: a store error,
// malformed criteria, or panic while evaluating one candidate never
// prevents evaluation of the remaining candidates in the same run. A
// missed award from a transient failure is naturally corrected the next
// time any trigger re-runs evaluation for that user.
// ══════════════════════════════════════════════════════════════════════════════

// AwardFlowStep represents a step in the award flow.
type AwardFlowStep string

const (
	StepValidateTrigger AwardFlowStep = "validate_trigger"
	StepLoadCandidates  AwardFlowStep = "load_candidates"
	StepEvaluate        AwardFlowStep = "evaluate"
	StepAward           AwardFlowStep = "award"
	StepPublishEvents   AwardFlowStep = "publish_events"
	StepComplete        AwardFlowStep = "complete"
)

// AwardFlowResult summarizes one evaluation run.
type AwardFlowResult struct {
	// RunID identifies the run in logs and events.
	RunID string

	// UserID - the user the run evaluated.
	UserID string

	// Candidates - number of unearned achievements considered.
	Candidates int

	// Awarded - achievements newly granted by this run.
	Awarded []achievement.Achievement

	// AlreadyEarned - qualifying candidates another run got to first.
	AlreadyEarned int

	// Skipped - candidates with deferred/unknown/malformed criteria.
	Skipped int

	// Failed - candidates aborted by an isolated failure.
	Failed int

	// ProcessedAt - when the run completed.
	ProcessedAt time.Time
}

// HasAwards returns true if any achievements were granted.
func (r *AwardFlowResult) HasAwards() bool {
	return len(r.Awarded) > 0
}

// AwardFlowConfig contains configuration for the award flow saga.
type AwardFlowConfig struct {
	// MaxAwardsPerRun caps grants in a single run to contain a
	// misconfigured catalog.
	MaxAwardsPerRun int
}

// DefaultAwardFlowConfig returns default configuration.
func DefaultAwardFlowConfig() AwardFlowConfig {
	return AwardFlowConfig{
		MaxAwardsPerRun: 10,
	}
}

// AwardFlowSaga orchestrates the complete evaluate-and-award process
// for one trigger.
type AwardFlowSaga struct {
	catalogRepo achievement.CatalogRepository
	evaluator   *CriteriaEvaluator
	writer      *AwardWriter
	eventBus    shared.EventPublisher
	log         *logger.Logger

	maxAwardsPerRun int
}

// NewAwardFlowSaga creates a new award flow saga with all dependencies.
// The event bus may be nil; publishing is best-effort either way.
func NewAwardFlowSaga(
	catalogRepo achievement.CatalogRepository,
	evaluator *CriteriaEvaluator,
	writer *AwardWriter,
	eventBus shared.EventPublisher,
	log *logger.Logger,
	config AwardFlowConfig,
) *AwardFlowSaga {
	if log == nil {
		log = logger.Default()
	}
	if config.MaxAwardsPerRun <= 0 {
		config.MaxAwardsPerRun = DefaultAwardFlowConfig().MaxAwardsPerRun
	}
	return &AwardFlowSaga{
		catalogRepo:     catalogRepo,
		evaluator:       evaluator,
		writer:          writer,
		eventBus:        eventBus,
		log:             log.With(logger.Component("award_flow")),
		maxAwardsPerRun: config.MaxAwardsPerRun,
	}
}

// Execute runs one complete evaluation run for the trigger. The
// returned error concerns only run-level failures (invalid trigger,
// catalog unavailable); per-candidate failures are absorbed, logged,
// and counted in the result.
func (s *AwardFlowSaga) Execute(ctx context.Context, trigger TriggerContext) (*AwardFlowResult, error) {
	runID := uuid.NewString()
	log := s.log.With(logger.RunID(runID), logger.UserID(trigger.UserID))

	if err := trigger.Validate(); err != nil {
		return nil, s.failRun(runID, trigger.UserID, StepValidateTrigger, err)
	}

	// Step 1: Load candidates (catalog minus earned set).
	candidates, err := s.loadCandidates(ctx, trigger.UserID)
	if err != nil {
		return nil, s.failRun(runID, trigger.UserID, StepLoadCandidates, err)
	}

	result := &AwardFlowResult{
		RunID:      runID,
		UserID:     trigger.UserID,
		Candidates: len(candidates),
	}

	// Nothing left to earn - short-circuit with no further work.
	if len(candidates) == 0 {
		result.ProcessedAt = time.Now().UTC()
		s.publishRunCompleted(result)
		return result, nil
	}

	// Step 2 & 3: Evaluate each candidate in isolation and award the
	// qualifying ones immediately, so one bad candidate cannot hold
	// back the rest.
	for _, candidate := range candidates {
		if len(result.Awarded) >= s.maxAwardsPerRun {
			log.Warn("award cap reached; remaining candidates deferred to next run",
				logger.Int("cap", s.maxAwardsPerRun),
			)
			break
		}
		s.processCandidate(ctx, candidate, trigger, result, log)
	}

	result.ProcessedAt = time.Now().UTC()

	// Step 4: run-level event. Best-effort, like award events.
	s.publishRunCompleted(result)

	log.Info("evaluation run completed",
		logger.Int("candidates", result.Candidates),
		logger.Int("awarded", len(result.Awarded)),
		logger.Int("already_earned", result.AlreadyEarned),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed),
	)

	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Steps
// ─────────────────────────────────────────────────────────────────────────────

// loadCandidates fetches the full catalog and the user's earned set and
// returns catalog minus earned. The catalog is small and boundedly
// sized, so loading it in full is safe.
func (s *AwardFlowSaga) loadCandidates(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	catalog, err := s.catalogRepo.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	earnedIDs, err := s.catalogRepo.ListEarnedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load earned set: %w", err)
	}

	earned := make(map[string]struct{}, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = struct{}{}
	}

	candidates := make([]achievement.Achievement, 0, len(catalog))
	for _, a := range catalog {
		if _, ok := earned[a.ID]; !ok {
			candidates = append(candidates, a)
		}
	}

	return candidates, nil
}

// processCandidate evaluates and (when qualifying) awards one
// candidate. All failures - including panics from malformed catalog
// data - stay inside this call.
func (s *AwardFlowSaga) processCandidate(
	ctx context.Context,
	candidate achievement.Achievement,
	trigger TriggerContext,
	result *AwardFlowResult,
	log *logger.Logger,
) {
	defer func() {
		if r := recover(); r != nil {
			result.Failed++
			log.Error("panic while evaluating candidate; isolated",
				logger.AchievementID(candidate.ID),
				logger.Any("panic", fmt.Sprint(r)),
			)
		}
	}()

	verdict, err := s.evaluator.Evaluate(ctx, candidate, trigger)
	if err != nil {
		result.Failed++
		log.Error("candidate evaluation failed; continuing with remaining candidates",
			logger.AchievementID(candidate.ID),
			logger.Err(err),
		)
		return
	}

	switch verdict {
	case EvalSkipped:
		result.Skipped++
		return
	case EvalNotSatisfied:
		return
	}

	outcome, err := s.writer.Award(ctx, trigger.UserID, candidate.ID)
	if err != nil {
		result.Failed++
		log.Error("award write failed; continuing with remaining candidates",
			logger.AchievementID(candidate.ID),
			logger.Err(err),
		)
		return
	}

	switch outcome {
	case achievement.OutcomeAwarded:
		result.Awarded = append(result.Awarded, candidate)
		s.publishAwarded(trigger.UserID, candidate)
	case achievement.OutcomeAlreadyEarned:
		result.AlreadyEarned++
	case achievement.OutcomeDryRun:
		result.Skipped++
		log.Info("candidate qualified but award writes are disabled",
			logger.AchievementID(candidate.ID),
		)
	}
}

// publishAwarded emits the outbound AwardedEvent for the notifier
// collaborator. Best-effort: the durable fact already exists.
func (s *AwardFlowSaga) publishAwarded(userID string, a achievement.Achievement) {
	if s.eventBus == nil {
		return
	}

	event := shared.NewAchievementAwardedEvent(userID, a.ID, a.Name, a.Description, time.Now().UTC())
	if err := s.eventBus.Publish(event); err != nil {
		s.log.Warn("failed to publish awarded event",
			logger.UserID(userID),
			logger.AchievementID(a.ID),
			logger.Err(err),
		)
	}
}

func (s *AwardFlowSaga) publishRunCompleted(result *AwardFlowResult) {
	if s.eventBus == nil {
		return
	}

	event := shared.NewRunCompletedEvent(
		result.RunID,
		result.UserID,
		result.Candidates,
		len(result.Awarded),
		result.Skipped,
		result.Failed,
	)
	if err := s.eventBus.Publish(event); err != nil {
		s.log.Warn("failed to publish run event", logger.RunID(result.RunID), logger.Err(err))
	}
}

// failRun wraps run-level failures and emits the operational event.
func (s *AwardFlowSaga) failRun(runID, userID string, step AwardFlowStep, err error) error {
	if s.eventBus != nil {
		_ = s.eventBus.Publish(shared.NewRunFailedEvent(runID, userID, err.Error()))
	}
	return &AwardFlowError{
		Step:    step,
		RunID:   runID,
		UserID:  userID,
		Cause:   err,
		Message: fmt.Sprintf("award flow failed at step '%s': %v", step, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AwardFlowError represents a run-level failure of the award flow.
type AwardFlowError struct {
	Step    AwardFlowStep
	RunID   string
	UserID  string
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *AwardFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AwardFlowError) Unwrap() error {
	return e.Cause
}
