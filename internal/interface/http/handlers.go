// Package http implements the REST API for the achievement engine.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/config"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/command"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/query"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/saga"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Achievement Engine API",
		"version":     "v1",
		"description": "Evaluates achievement rules against learner progress and awards idempotently",
		"endpoints": map[string]string{
			"health":           "/health",
			"lesson_completed": "/api/v1/triggers/lesson-completed",
			"quiz_submitted":   "/api/v1/triggers/quiz-submitted",
			"achievements":     "/api/v1/users/{id}/achievements",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	if s.deps.Dispatcher != nil {
		metrics["run_failures"] = s.deps.Dispatcher.Failures().Size()
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRIGGER INTAKE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// lessonCompletedRequest is the body of POST /api/v1/triggers/lesson-completed.
type lessonCompletedRequest struct {
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
	ModuleID string `json:"module_id"`
}

// quizSubmittedRequest is the body of POST /api/v1/triggers/quiz-submitted.
type quizSubmittedRequest struct {
	UserID   string `json:"user_id"`
	QuizID   string `json:"quiz_id"`
	ModuleID string `json:"module_id"`
	Score    int    `json:"score"`
	Passed   bool   `json:"passed"`
}

// triggerAcceptedResponse acknowledges intake. Evaluation happens
// asynchronously; the caller gets no award information here.
type triggerAcceptedResponse struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
}

// handleLessonCompleted handles POST /api/v1/triggers/lesson-completed.
// Responds 202: the trigger is accepted for evaluation, and evaluation
// failures never flow back to the caller.
func (s *Server) handleLessonCompleted(w http.ResponseWriter, r *http.Request) {
	var req lessonCompletedRequest
	if !s.decodeTriggerBody(w, r, &req) {
		return
	}

	if !s.triggerEnabled(config.FeatureTriggerLessonCompleted, req.UserID) {
		writeJSONError(w, http.StatusServiceUnavailable, "trigger_disabled", "Lesson-completed trigger intake is disabled")
		return
	}

	trigger := saga.LessonCompleted(req.UserID, req.LessonID, req.ModuleID)
	s.dispatchTrigger(w, trigger)
}

// handleQuizSubmitted handles POST /api/v1/triggers/quiz-submitted.
func (s *Server) handleQuizSubmitted(w http.ResponseWriter, r *http.Request) {
	var req quizSubmittedRequest
	if !s.decodeTriggerBody(w, r, &req) {
		return
	}

	if !s.triggerEnabled(config.FeatureTriggerQuizSubmitted, req.UserID) {
		writeJSONError(w, http.StatusServiceUnavailable, "trigger_disabled", "Quiz-submitted trigger intake is disabled")
		return
	}

	trigger := saga.QuizSubmitted(req.UserID, req.QuizID, req.ModuleID, req.Score, req.Passed)
	s.dispatchTrigger(w, trigger)
}

// triggerEnabled consults the intake feature flag for the given user.
func (s *Server) triggerEnabled(feature, userID string) bool {
	if s.deps.Features == nil {
		return true
	}
	return s.deps.Features.IsEnabled(feature, config.FeatureContext{UserID: userID})
}

// decodeTriggerBody decodes a trigger request body, writing the error
// response itself on failure.
func (s *Server) decodeTriggerBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if s.deps.Dispatcher == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Trigger dispatcher not configured")
		return false
	}

	body := io.LimitReader(r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return false
	}

	return true
}

// dispatchTrigger hands the trigger to the dispatcher and maps the
// synchronous outcome to a status code.
func (s *Server) dispatchTrigger(w http.ResponseWriter, trigger saga.TriggerContext) {
	err := s.deps.Dispatcher.Dispatch(trigger)
	if err != nil {
		if errors.Is(err, command.ErrDispatcherClosed) {
			writeJSONError(w, http.StatusServiceUnavailable, "shutting_down", "Engine is shutting down")
			return
		}
		if shared.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, "invalid_trigger", err.Error())
			return
		}
		s.logger.Error("trigger dispatch failed", logger.UserID(trigger.UserID), logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to accept trigger")
		return
	}

	writeJSON(w, http.StatusAccepted, triggerAcceptedResponse{
		Status: "accepted",
		UserID: trigger.UserID,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ-SIDE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserAchievements handles GET /api/v1/users/{id}/achievements.
func (s *Server) handleGetUserAchievements(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	if s.deps.GetUserAchievementsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Achievements handler not configured")
		return
	}

	result, err := s.deps.GetUserAchievementsHandler.Handle(r.Context(), query.GetUserAchievementsQuery{
		UserID: userID,
	})
	if err != nil {
		s.logger.Error("failed to get user achievements", logger.Err(err), logger.UserID(userID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get achievements")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetFailures handles GET /api/v1/engine/failures. Exposes the
// dispatcher's recent run failures for operators, since asynchronous
// evaluation errors never surface to trigger callers.
func (s *Server) handleGetFailures(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dispatcher == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Trigger dispatcher not configured")
		return
	}

	failures := s.deps.Dispatcher.Failures().Entries()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failures": failures,
		"total":    len(failures),
	})
}
