package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven side of the engine.
// Each event represents something significant that happened in the domain.
const (
	// Trigger events (inbound, produced by collaborators after their
	// own writes have committed)
	EventLessonCompleted EventType = "trigger.lesson_completed"
	EventQuizSubmitted   EventType = "trigger.quiz_submitted"

	// Award events (outbound, consumed by the notifier collaborator)
	EventAchievementAwarded EventType = "award.achievement_awarded"

	// Run events (operational visibility into evaluation runs)
	EventRunCompleted EventType = "run.completed"
	EventRunFailed    EventType = "run.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Award Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementAwardedEvent is emitted once per successful award. Delivery
// to subscribers is best-effort: the durable fact of the award already
// lives in the user_achievements table.
type AchievementAwardedEvent struct {
	BaseEvent
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	EarnedAt      time.Time `json:"earned_at"`
}

// Payload implements Event interface.
func (e AchievementAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"name":           e.Name,
		"description":    e.Description,
		"earned_at":      e.EarnedAt,
	}
}

// NewAchievementAwardedEvent creates a new AchievementAwardedEvent.
func NewAchievementAwardedEvent(userID, achievementID, name, description string, earnedAt time.Time) AchievementAwardedEvent {
	return AchievementAwardedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementAwarded, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Name:          name,
		Description:   description,
		EarnedAt:      earnedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Run Events
// ═══════════════════════════════════════════════════════════════════════════

// RunCompletedEvent is emitted after an evaluation run finishes,
// regardless of how many candidates qualified.
type RunCompletedEvent struct {
	BaseEvent
	RunID      string `json:"run_id"`
	UserID     string `json:"user_id"`
	Candidates int    `json:"candidates"`
	Awarded    int    `json:"awarded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// Payload implements Event interface.
func (e RunCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"run_id":     e.RunID,
		"user_id":    e.UserID,
		"candidates": e.Candidates,
		"awarded":    e.Awarded,
		"skipped":    e.Skipped,
		"failed":     e.Failed,
	}
}

// NewRunCompletedEvent creates a new RunCompletedEvent.
func NewRunCompletedEvent(runID, userID string, candidates, awarded, skipped, failed int) RunCompletedEvent {
	return RunCompletedEvent{
		BaseEvent:  NewBaseEvent(EventRunCompleted, userID),
		RunID:      runID,
		UserID:     userID,
		Candidates: candidates,
		Awarded:    awarded,
		Skipped:    skipped,
		Failed:     failed,
	}
}

// RunFailedEvent is emitted when an evaluation run could not start or
// aborted before candidate evaluation (e.g., the catalog load failed).
// Per-candidate failures do not produce this event; they are isolated
// and counted in RunCompletedEvent.Failed.
type RunFailedEvent struct {
	BaseEvent
	RunID  string `json:"run_id"`
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Payload implements Event interface.
func (e RunFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"run_id":  e.RunID,
		"user_id": e.UserID,
		"reason":  e.Reason,
	}
}

// NewRunFailedEvent creates a new RunFailedEvent.
func NewRunFailedEvent(runID, userID, reason string) RunFailedEvent {
	return RunFailedEvent{
		BaseEvent: NewBaseEvent(EventRunFailed, userID),
		RunID:     runID,
		UserID:    userID,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a single event.
type EventHandler func(event Event) error

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber subscribes handlers to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
