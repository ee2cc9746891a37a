package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/config"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/command"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/query"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/saga"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
)

// passthroughFlow records the triggers the dispatcher forwarded.
type passthroughFlow struct {
	triggers chan saga.TriggerContext
}

func (f *passthroughFlow) Execute(ctx context.Context, trigger saga.TriggerContext) (*saga.AwardFlowResult, error) {
	f.triggers <- trigger
	return &saga.AwardFlowResult{UserID: trigger.UserID, ProcessedAt: time.Now()}, nil
}

// fixedCatalog serves a canned earned listing.
type fixedCatalog struct {
	earned []achievement.EarnedAchievement
}

func (f *fixedCatalog) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	return nil, nil
}

func (f *fixedCatalog) ListEarnedIDs(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func (f *fixedCatalog) ListEarned(ctx context.Context, userID string) ([]achievement.EarnedAchievement, error) {
	return f.earned, nil
}

func newTestServer(t *testing.T, flow *passthroughFlow, catalog *fixedCatalog) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	deps := Dependencies{}
	if flow != nil {
		deps.Dispatcher = command.NewTriggerDispatcher(flow, nil, command.DefaultDispatcherConfig())
	}
	if catalog != nil {
		deps.GetUserAchievementsHandler = query.NewGetUserAchievementsHandler(catalog)
	}

	return NewServer(cfg, deps)
}

func postJSON(t *testing.T, handler http.Handler, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLessonCompletedTrigger_Accepted(t *testing.T) {
	flow := &passthroughFlow{triggers: make(chan saga.TriggerContext, 1)}
	server := newTestServer(t, flow, nil)

	rec := postJSON(t, server.Handler(), "/api/v1/triggers/lesson-completed",
		`{"user_id": "u1", "lesson_id": "l1", "module_id": "m1"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case trigger := <-flow.triggers:
		assert.Equal(t, "u1", trigger.UserID)
		assert.Equal(t, "l1", trigger.LessonID)
		assert.Equal(t, "m1", trigger.ModuleID)
		assert.Nil(t, trigger.QuizScore)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never reached the flow")
	}
}

func TestQuizSubmittedTrigger_Accepted(t *testing.T) {
	flow := &passthroughFlow{triggers: make(chan saga.TriggerContext, 1)}
	server := newTestServer(t, flow, nil)

	rec := postJSON(t, server.Handler(), "/api/v1/triggers/quiz-submitted",
		`{"user_id": "u1", "quiz_id": "q1", "module_id": "m1", "score": 85, "passed": true}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case trigger := <-flow.triggers:
		assert.Equal(t, "q1", trigger.QuizID)
		require.NotNil(t, trigger.QuizScore)
		assert.Equal(t, 85, *trigger.QuizScore)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never reached the flow")
	}
}

func TestTrigger_InvalidJSONRejected(t *testing.T) {
	flow := &passthroughFlow{triggers: make(chan saga.TriggerContext, 1)}
	server := newTestServer(t, flow, nil)

	rec := postJSON(t, server.Handler(), "/api/v1/triggers/lesson-completed", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrigger_MissingUserRejected(t *testing.T) {
	flow := &passthroughFlow{triggers: make(chan saga.TriggerContext, 1)}
	server := newTestServer(t, flow, nil)

	rec := postJSON(t, server.Handler(), "/api/v1/triggers/lesson-completed",
		`{"lesson_id": "l1", "module_id": "m1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Error)
	assert.Equal(t, "invalid_trigger", response.Error.Code)
}

func TestTrigger_DisabledByFeatureFlag(t *testing.T) {
	t.Setenv("FEATURE_TRIGGER_LESSON_COMPLETED", "false")

	flow := &passthroughFlow{triggers: make(chan saga.TriggerContext, 1)}
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	server := NewServer(cfg, Dependencies{
		Dispatcher: command.NewTriggerDispatcher(flow, nil, command.DefaultDispatcherConfig()),
		Features:   config.LoadFeatureFlags(),
	})

	rec := postJSON(t, server.Handler(), "/api/v1/triggers/lesson-completed",
		`{"user_id": "u1", "lesson_id": "l1", "module_id": "m1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTrigger_AfterShutdownRejected(t *testing.T) {
	flow := &passthroughFlow{triggers: make(chan saga.TriggerContext, 1)}
	server := newTestServer(t, flow, nil)
	require.NoError(t, server.deps.Dispatcher.Close(context.Background()))

	rec := postJSON(t, server.Handler(), "/api/v1/triggers/lesson-completed",
		`{"user_id": "u1", "lesson_id": "l1", "module_id": "m1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetUserAchievements(t *testing.T) {
	catalog := &fixedCatalog{earned: []achievement.EarnedAchievement{
		{AchievementID: "a1", Name: "First Lesson", EarnedAt: time.Now().UTC()},
	}}
	server := newTestServer(t, nil, catalog)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/achievements", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Success bool                            `json:"success"`
		Data    query.GetUserAchievementsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "u1", response.Data.UserID)
	assert.Equal(t, 1, response.Data.Total)
	require.Len(t, response.Data.Achievements, 1)
	assert.Equal(t, "a1", response.Data.Achievements[0].AchievementID)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFailuresEndpoint(t *testing.T) {
	flow := &passthroughFlow{triggers: make(chan saga.TriggerContext, 1)}
	server := newTestServer(t, flow, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/failures", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	// Other clients are unaffected
	assert.True(t, rl.Allow("10.0.0.2"))
}
