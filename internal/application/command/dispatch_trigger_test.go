package command

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/saga"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// stubFlow counts executions and fails or panics on demand.
type stubFlow struct {
	executions atomic.Int64
	err        error
	panicMsg   string
}

func (s *stubFlow) Execute(ctx context.Context, trigger saga.TriggerContext) (*saga.AwardFlowResult, error) {
	s.executions.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &saga.AwardFlowResult{UserID: trigger.UserID, ProcessedAt: time.Now()}, nil
}

func TestDispatch_RunsInBackground(t *testing.T) {
	flow := &stubFlow{}
	d := NewTriggerDispatcher(flow, nil, DefaultDispatcherConfig())

	err := d.Dispatch(saga.LessonCompleted("u1", "l1", "m1"))
	require.NoError(t, err)

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int64(1), flow.executions.Load())
	assert.Zero(t, d.Failures().Size())
}

func TestDispatch_InvalidTriggerRejectedSynchronously(t *testing.T) {
	flow := &stubFlow{}
	d := NewTriggerDispatcher(flow, nil, DefaultDispatcherConfig())

	err := d.Dispatch(saga.TriggerContext{})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Zero(t, flow.executions.Load())
}

func TestDispatch_RunFailureNeverReachesCaller(t *testing.T) {
	flow := &stubFlow{err: errors.New("catalog unavailable")}
	d := NewTriggerDispatcher(flow, nil, DefaultDispatcherConfig())

	// The dispatch itself succeeds; the failure lands in the log.
	err := d.Dispatch(saga.LessonCompleted("u1", "l1", "m1"))
	require.NoError(t, err)

	require.NoError(t, d.Close(context.Background()))
	entries := d.Failures().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Contains(t, entries[0].Error, "catalog unavailable")
}

func TestDispatch_RunPanicIsContained(t *testing.T) {
	flow := &stubFlow{panicMsg: "malformed catalog row"}
	d := NewTriggerDispatcher(flow, nil, DefaultDispatcherConfig())

	require.NoError(t, d.Dispatch(saga.LessonCompleted("u1", "l1", "m1")))
	require.NoError(t, d.Close(context.Background()))

	entries := d.Failures().Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Error, "panic")
}

func TestDispatch_ClosedDispatcherRejects(t *testing.T) {
	d := NewTriggerDispatcher(&stubFlow{}, nil, DefaultDispatcherConfig())
	require.NoError(t, d.Close(context.Background()))

	err := d.Dispatch(saga.LessonCompleted("u1", "l1", "m1"))
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatchAndWait_ReturnsResult(t *testing.T) {
	flow := &stubFlow{}
	d := NewTriggerDispatcher(flow, nil, DefaultDispatcherConfig())

	result, err := d.DispatchAndWait(context.Background(), saga.QuizSubmitted("u1", "q1", "m1", 90, true))
	require.NoError(t, err)
	assert.Equal(t, "u1", result.UserID)
}

func TestFailureLog_EvictsOldest(t *testing.T) {
	log := NewFailureLog(2)
	log.Record("u1", errors.New("first"))
	log.Record("u2", errors.New("second"))
	log.Record("u3", errors.New("third"))

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[0].UserID)
	assert.Equal(t, "u3", entries[1].UserID)
}
