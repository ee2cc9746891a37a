// Package command contains write-side operations (CQRS - Commands)
// invoked by collaborators.
package command

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/saga"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRIGGER DISPATCHER
// Entry point invoked by the lesson-completion and quiz-submission
// collaborators immediately after their own writes commit. Each trigger
// produces one independent evaluation run on a bounded worker pool.
//
// The run's outcome never reaches the caller: marking a lesson complete
// or submitting a quiz must not fail or roll back because of anything
// inside this engine. Failures are still observable to operators - they
// are logged and recorded in a bounded failure log instead of being
// silently swallowed.
// ══════════════════════════════════════════════════════════════════════════════

// AwardFlow is the evaluation run the dispatcher drives. Implemented by
// saga.AwardFlowSaga.
type AwardFlow interface {
	Execute(ctx context.Context, trigger saga.TriggerContext) (*saga.AwardFlowResult, error)
}

// DispatcherConfig contains configuration for the trigger dispatcher.
type DispatcherConfig struct {
	// MaxConcurrentRuns bounds the worker pool.
	MaxConcurrentRuns int

	// RunTimeout caps one evaluation run. Runs are short and
	// non-interactive; this is an upper guard, not a tuning knob.
	RunTimeout time.Duration

	// FailureLogSize is the capacity of the operator-visible failure log.
	FailureLogSize int
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxConcurrentRuns: 10,
		RunTimeout:        30 * time.Second,
		FailureLogSize:    100,
	}
}

// ErrDispatcherClosed is returned for triggers arriving after shutdown began.
var ErrDispatcherClosed = errors.New("trigger dispatcher is closed")

// TriggerDispatcher assembles trigger contexts and drives evaluation
// runs in the background.
type TriggerDispatcher struct {
	flow       AwardFlow
	log        *logger.Logger
	workerPool chan struct{}
	runTimeout time.Duration
	failures   *FailureLog

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewTriggerDispatcher creates a new dispatcher.
func NewTriggerDispatcher(flow AwardFlow, log *logger.Logger, config DispatcherConfig) *TriggerDispatcher {
	if log == nil {
		log = logger.Default()
	}
	if config.MaxConcurrentRuns <= 0 {
		config.MaxConcurrentRuns = DefaultDispatcherConfig().MaxConcurrentRuns
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultDispatcherConfig().RunTimeout
	}

	return &TriggerDispatcher{
		flow:       flow,
		log:        log.With(logger.Component("trigger_dispatcher")),
		workerPool: make(chan struct{}, config.MaxConcurrentRuns),
		runTimeout: config.RunTimeout,
		failures:   NewFailureLog(config.FailureLogSize),
	}
}

// Dispatch submits one background evaluation run for the trigger.
// The only errors returned are synchronous precondition failures
// (invalid trigger, dispatcher closed) so the HTTP layer can reject a
// bad payload; once a run is accepted, nothing it does propagates back.
func (d *TriggerDispatcher) Dispatch(trigger saga.TriggerContext) error {
	if err := trigger.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.workerPool <- struct{}{}
		defer func() { <-d.workerPool }()

		d.runIsolated(trigger)
	}()

	return nil
}

// DispatchAndWait runs the evaluation synchronously. Used by tests and
// maintenance tooling; production collaborators use Dispatch.
func (d *TriggerDispatcher) DispatchAndWait(ctx context.Context, trigger saga.TriggerContext) (*saga.AwardFlowResult, error) {
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	return d.flow.Execute(ctx, trigger)
}

// runIsolated executes one run with its own timeout and panic barrier.
func (d *TriggerDispatcher) runIsolated(trigger saga.TriggerContext) {
	ctx, cancel := context.WithTimeout(context.Background(), d.runTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("evaluation run panic: %v", r)
			d.failures.Record(trigger.UserID, err)
			d.log.Error("evaluation run panicked",
				logger.UserID(trigger.UserID),
				logger.Err(err),
				logger.String("stack", string(debug.Stack())),
			)
		}
	}()

	start := time.Now()
	result, err := d.flow.Execute(ctx, trigger)
	if err != nil {
		d.failures.Record(trigger.UserID, err)
		d.log.Error("evaluation run failed",
			logger.UserID(trigger.UserID),
			logger.Err(err),
			logger.Latency(time.Since(start)),
		)
		return
	}

	if result.HasAwards() {
		d.log.Info("evaluation run granted awards",
			logger.RunID(result.RunID),
			logger.UserID(trigger.UserID),
			logger.Int("awarded", len(result.Awarded)),
			logger.Latency(time.Since(start)),
		)
	}
}

// Close stops accepting triggers and waits for in-flight runs, up to
// the context deadline.
func (d *TriggerDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns the operator-visible failure log.
func (d *TriggerDispatcher) Failures() *FailureLog {
	return d.failures
}

// ══════════════════════════════════════════════════════════════════════════════
// FAILURE LOG
// Bounded record of run failures. Keeps fire-and-forget observable:
// a rejected run disappears from the caller's world but not from the
// operator's.
// ══════════════════════════════════════════════════════════════════════════════

// RunFailure is one recorded run failure.
type RunFailure struct {
	UserID   string    `json:"user_id"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// FailureLog stores recent run failures, oldest evicted first.
type FailureLog struct {
	mu      sync.RWMutex
	entries []RunFailure
	maxSize int
}

// NewFailureLog creates a failure log with the given capacity.
func NewFailureLog(maxSize int) *FailureLog {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &FailureLog{
		entries: make([]RunFailure, 0),
		maxSize: maxSize,
	}
}

// Record appends a failure, evicting the oldest entry at capacity.
func (f *FailureLog) Record(userID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.entries) >= f.maxSize {
		f.entries = f.entries[1:]
	}

	f.entries = append(f.entries, RunFailure{
		UserID:   userID,
		Error:    err.Error(),
		FailedAt: time.Now().UTC(),
	})
}

// Entries returns a copy of all recorded failures.
func (f *FailureLog) Entries() []RunFailure {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]RunFailure, len(f.entries))
	copy(result, f.entries)
	return result
}

// Size returns the number of recorded failures.
func (f *FailureLog) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
