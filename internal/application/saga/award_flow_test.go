package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// memoryStore implements the catalog and award repositories on maps.
// Insert takes the same "unique row or benign violation" shape the real
// store enforces with its primary key.
type memoryStore struct {
	mu      sync.Mutex
	catalog []achievement.Achievement
	earned  map[string]map[string]time.Time
}

func newMemoryStore(catalog ...achievement.Achievement) *memoryStore {
	return &memoryStore{
		catalog: catalog,
		earned:  make(map[string]map[string]time.Time),
	}
}

func (s *memoryStore) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]achievement.Achievement, len(s.catalog))
	copy(out, s.catalog)
	return out, nil
}

func (s *memoryStore) ListEarnedIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.earned[userID]))
	for id := range s.earned[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) ListEarned(ctx context.Context, userID string) ([]achievement.EarnedAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]achievement.EarnedAchievement, 0, len(s.earned[userID]))
	for _, a := range s.catalog {
		if earnedAt, ok := s.earned[userID][a.ID]; ok {
			out = append(out, achievement.EarnedAchievement{
				AchievementID: a.ID,
				Name:          a.Name,
				Description:   a.Description,
				EarnedAt:      earnedAt,
			})
		}
	}
	return out, nil
}

func (s *memoryStore) Insert(ctx context.Context, award achievement.UserAchievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.earned[award.UserID]
	if !ok {
		rows = make(map[string]time.Time)
		s.earned[award.UserID] = rows
	}
	if _, exists := rows[award.AchievementID]; exists {
		return shared.ErrAlreadyEarned
	}
	rows[award.AchievementID] = award.EarnedAt
	return nil
}

func (s *memoryStore) earnedCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.earned[userID])
}

// progressState backs the aggregator for end-to-end scenarios.
type progressState struct {
	mu            sync.Mutex
	moduleLessons map[string][]string
	completed     map[string]map[string]bool
	quizModules   map[string]string
}

func newProgressState() *progressState {
	return &progressState{
		moduleLessons: make(map[string][]string),
		completed:     make(map[string]map[string]bool),
		quizModules:   make(map[string]string),
	}
}

func (p *progressState) complete(userID, lessonID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed[userID] == nil {
		p.completed[userID] = make(map[string]bool)
	}
	p.completed[userID][lessonID] = true
}

func (p *progressState) IsModuleFullyCompleted(ctx context.Context, userID, moduleID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lessons, ok := p.moduleLessons[moduleID]
	if !ok || len(lessons) == 0 {
		return false, nil
	}
	for _, l := range lessons {
		if !p.completed[userID][l] {
			return false, nil
		}
	}
	return true, nil
}

func (p *progressState) QuizModuleID(ctx context.Context, quizID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quizModules[quizID], nil
}

func newSaga(store *memoryStore, agg Aggregator) *AwardFlowSaga {
	evaluator := NewCriteriaEvaluator(agg, nil)
	writer := NewAwardWriter(store, nil, nil)
	return NewAwardFlowSaga(store, evaluator, writer, nil, nil, DefaultAwardFlowConfig())
}

func catalogRow(t *testing.T, id, name, rawCriteria string) achievement.Achievement {
	t.Helper()
	a := achievement.Achievement{ID: id, Name: name}
	a.Criteria, a.CriteriaErr = achievement.ParseCriteria([]byte(rawCriteria))
	return a
}

func TestAwardFlow_ThreeLessonModule(t *testing.T) {
	// A "Module Master" achievement for finishing module m1, which has
	// three lessons. The first two completions award nothing; the third
	// one does.
	store := newMemoryStore(
		catalogRow(t, "module-master", "Module Master", `{"type": "complete_module", "module_ref": "m1"}`),
	)
	progress := newProgressState()
	progress.moduleLessons["m1"] = []string{"l1", "l2", "l3"}
	flow := newSaga(store, progress)

	for _, lesson := range []string{"l1", "l2"} {
		progress.complete("u1", lesson)
		result, err := flow.Execute(context.Background(), LessonCompleted("u1", lesson, "m1"))
		require.NoError(t, err)
		assert.Empty(t, result.Awarded, "lesson %s should not complete the module", lesson)
	}

	progress.complete("u1", "l3")
	result, err := flow.Execute(context.Background(), LessonCompleted("u1", "l3", "m1"))
	require.NoError(t, err)
	require.Len(t, result.Awarded, 1)
	assert.Equal(t, "module-master", result.Awarded[0].ID)
	assert.Equal(t, 1, store.earnedCount("u1"))
}

func TestAwardFlow_Idempotence(t *testing.T) {
	store := newMemoryStore(
		catalogRow(t, "first-lesson", "First Lesson", `{"type": "complete_lesson"}`),
	)
	flow := newSaga(store, newProgressState())
	trigger := LessonCompleted("u1", "l1", "m1")

	first, err := flow.Execute(context.Background(), trigger)
	require.NoError(t, err)
	require.Len(t, first.Awarded, 1)

	// Replaying the same trigger finds the achievement in the earned
	// set: zero candidates, zero new rows.
	second, err := flow.Execute(context.Background(), trigger)
	require.NoError(t, err)
	assert.Empty(t, second.Awarded)
	assert.Zero(t, second.Candidates)
	assert.Equal(t, 1, store.earnedCount("u1"))
}

func TestAwardFlow_ConcurrentRunsAwardOnce(t *testing.T) {
	// Two runs for the same user race to award the same achievement.
	// Both load it as a candidate; the store's uniqueness check lets
	// exactly one insert win and the loser observes a benign violation.
	store := newMemoryStore(
		catalogRow(t, "first-lesson", "First Lesson", `{"type": "complete_lesson"}`),
	)
	flow := newSaga(store, newProgressState())
	trigger := LessonCompleted("u1", "l1", "m1")

	const runs = 8
	results := make([]*AwardFlowResult, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = flow.Execute(context.Background(), trigger)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	awarded := 0
	for _, r := range results {
		awarded += len(r.Awarded)
	}
	assert.Equal(t, 1, store.earnedCount("u1"))
	// Every run either awarded, lost the race, or saw no candidate;
	// no run failed.
	for _, r := range results {
		assert.Zero(t, r.Failed)
	}
	assert.LessOrEqual(t, awarded, runs)
	assert.GreaterOrEqual(t, awarded, 1)
}

func TestAwardFlow_UnknownCriteriaSkippedOthersAwarded(t *testing.T) {
	unknown := achievement.Achievement{ID: "mystery", Name: "Mystery"}
	unknown.Criteria, unknown.CriteriaErr = achievement.ParseCriteria([]byte(`{"type": "first_login"}`))
	require.Error(t, unknown.CriteriaErr)

	store := newMemoryStore(
		unknown,
		catalogRow(t, "first-lesson", "First Lesson", `{"type": "complete_lesson"}`),
	)
	flow := newSaga(store, newProgressState())

	result, err := flow.Execute(context.Background(), LessonCompleted("u1", "l1", "m1"))
	require.NoError(t, err)
	require.Len(t, result.Awarded, 1)
	assert.Equal(t, "first-lesson", result.Awarded[0].ID)
	assert.Equal(t, 1, result.Skipped)
}

func TestAwardFlow_DeferredCriteriaSkipped(t *testing.T) {
	store := newMemoryStore(
		catalogRow(t, "streak-7", "Week Streak", `{"type": "streak", "days": 7}`),
		catalogRow(t, "lessons-3", "Busy Day", `{"type": "lessons_per_day", "count": 3}`),
	)
	flow := newSaga(store, newProgressState())

	result, err := flow.Execute(context.Background(), LessonCompleted("u1", "l1", "m1"))
	require.NoError(t, err)
	assert.Empty(t, result.Awarded)
	assert.Equal(t, 2, result.Skipped)
}

// failingAggregator errors for one module to exercise candidate isolation.
type failingAggregator struct {
	failModule string
}

func (f *failingAggregator) IsModuleFullyCompleted(ctx context.Context, userID, moduleID string) (bool, error) {
	if moduleID == f.failModule {
		return false, errors.New("store unavailable")
	}
	return false, nil
}

func (f *failingAggregator) QuizModuleID(ctx context.Context, quizID string) (string, error) {
	return "", nil
}

func TestAwardFlow_CandidateFailureIsolated(t *testing.T) {
	// The module-completion candidate hits a store error; the lesson
	// candidate is still evaluated and awarded.
	store := newMemoryStore(
		catalogRow(t, "module-master", "Module Master", `{"type": "complete_module", "module_ref": "m1"}`),
		catalogRow(t, "first-lesson", "First Lesson", `{"type": "complete_lesson"}`),
	)
	flow := newSaga(store, &failingAggregator{failModule: "m1"})

	result, err := flow.Execute(context.Background(), LessonCompleted("u1", "l1", "m1"))
	require.NoError(t, err)
	require.Len(t, result.Awarded, 1)
	assert.Equal(t, "first-lesson", result.Awarded[0].ID)
	assert.Equal(t, 1, result.Failed)
}

func TestAwardFlow_QuizScoreEndToEnd(t *testing.T) {
	store := newMemoryStore(
		catalogRow(t, "quiz-ace", "Quiz Ace", `{"type": "quiz_score", "threshold": 80}`),
	)
	flow := newSaga(store, newProgressState())

	// 79 does not qualify.
	result, err := flow.Execute(context.Background(), QuizSubmitted("u1", "q1", "m1", 79, false))
	require.NoError(t, err)
	assert.Empty(t, result.Awarded)

	// 85 does.
	result, err = flow.Execute(context.Background(), QuizSubmitted("u1", "q1", "m1", 85, true))
	require.NoError(t, err)
	require.Len(t, result.Awarded, 1)
	assert.Equal(t, "quiz-ace", result.Awarded[0].ID)
}

func TestAwardFlow_AwardCap(t *testing.T) {
	rows := make([]achievement.Achievement, 0, 5)
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		rows = append(rows, catalogRow(t, id, id, `{"type": "complete_lesson"}`))
	}
	store := newMemoryStore(rows...)

	evaluator := NewCriteriaEvaluator(newProgressState(), nil)
	writer := NewAwardWriter(store, nil, nil)
	flow := NewAwardFlowSaga(store, evaluator, writer, nil, nil, AwardFlowConfig{MaxAwardsPerRun: 2})

	result, err := flow.Execute(context.Background(), LessonCompleted("u1", "l1", "m1"))
	require.NoError(t, err)
	assert.Len(t, result.Awarded, 2)

	// The deferred candidates are picked up by the next run.
	result, err = flow.Execute(context.Background(), LessonCompleted("u1", "l2", "m1"))
	require.NoError(t, err)
	assert.Len(t, result.Awarded, 2)
	assert.Equal(t, 4, store.earnedCount("u1"))
}

func TestAwardFlow_InvalidTrigger(t *testing.T) {
	store := newMemoryStore()
	flow := newSaga(store, newProgressState())

	_, err := flow.Execute(context.Background(), TriggerContext{})
	require.Error(t, err)

	var flowErr *AwardFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, StepValidateTrigger, flowErr.Step)
}

func TestAwardFlow_EmptyCandidateSetShortCircuits(t *testing.T) {
	store := newMemoryStore(
		catalogRow(t, "only-one", "Only One", `{"type": "complete_lesson"}`),
	)
	require.NoError(t, store.Insert(context.Background(), achievement.UserAchievement{
		UserID: "u1", AchievementID: "only-one", EarnedAt: time.Now(),
	}))
	flow := newSaga(store, newProgressState())

	result, err := flow.Execute(context.Background(), LessonCompleted("u1", "l1", "m1"))
	require.NoError(t, err)
	assert.Zero(t, result.Candidates)
	assert.Empty(t, result.Awarded)
}
