package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// fakeProgressRepo serves module structure and completion state from maps.
type fakeProgressRepo struct {
	moduleLessons map[string][]string
	completed     map[string][]string
	quizModules   map[string]string
	err           error
}

func (f *fakeProgressRepo) ListModuleLessonIDs(ctx context.Context, moduleID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	lessons, ok := f.moduleLessons[moduleID]
	if !ok {
		return nil, shared.ErrModuleNotFound
	}
	return lessons, nil
}

func (f *fakeProgressRepo) ListCompletedLessonIDs(ctx context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.completed[userID], nil
}

func (f *fakeProgressRepo) GetQuizModuleID(ctx context.Context, quizID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	moduleID, ok := f.quizModules[quizID]
	if !ok {
		return "", shared.ErrQuizNotFound
	}
	return moduleID, nil
}

func TestIsModuleFullyCompleted_AllLessonsDone(t *testing.T) {
	repo := &fakeProgressRepo{
		moduleLessons: map[string][]string{"m1": {"l1", "l2", "l3"}},
		completed:     map[string][]string{"u1": {"l1", "l2", "l3"}},
	}
	agg := NewProgressAggregator(repo)

	complete, err := agg.IsModuleFullyCompleted(context.Background(), "u1", "m1")
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestIsModuleFullyCompleted_ExtraCompletionsStillComplete(t *testing.T) {
	// Completions outside the module do not matter; the check is
	// lessons ⊆ completed, not equality.
	repo := &fakeProgressRepo{
		moduleLessons: map[string][]string{"m1": {"l1", "l2"}},
		completed:     map[string][]string{"u1": {"l1", "l2", "other-module-lesson"}},
	}
	agg := NewProgressAggregator(repo)

	complete, err := agg.IsModuleFullyCompleted(context.Background(), "u1", "m1")
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestIsModuleFullyCompleted_MissingLesson(t *testing.T) {
	repo := &fakeProgressRepo{
		moduleLessons: map[string][]string{"m1": {"l1", "l2", "l3"}},
		completed:     map[string][]string{"u1": {"l1", "l3"}},
	}
	agg := NewProgressAggregator(repo)

	complete, err := agg.IsModuleFullyCompleted(context.Background(), "u1", "m1")
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestIsModuleFullyCompleted_ZeroLessonModule(t *testing.T) {
	// A freshly authored module with no lessons is never complete, even
	// though the subset check would vacuously hold.
	repo := &fakeProgressRepo{
		moduleLessons: map[string][]string{"m1": {}},
		completed:     map[string][]string{"u1": {"l1"}},
	}
	agg := NewProgressAggregator(repo)

	complete, err := agg.IsModuleFullyCompleted(context.Background(), "u1", "m1")
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestIsModuleFullyCompleted_DanglingModule(t *testing.T) {
	repo := &fakeProgressRepo{moduleLessons: map[string][]string{}}
	agg := NewProgressAggregator(repo)

	complete, err := agg.IsModuleFullyCompleted(context.Background(), "u1", "deleted-module")
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestIsModuleFullyCompleted_StoreError(t *testing.T) {
	repo := &fakeProgressRepo{err: errors.New("connection reset")}
	agg := NewProgressAggregator(repo)

	_, err := agg.IsModuleFullyCompleted(context.Background(), "u1", "m1")
	require.Error(t, err)
}

func TestQuizModuleID_Resolves(t *testing.T) {
	repo := &fakeProgressRepo{quizModules: map[string]string{"q1": "m1"}}
	agg := NewProgressAggregator(repo)

	moduleID, err := agg.QuizModuleID(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "m1", moduleID)
}

func TestQuizModuleID_DanglingQuiz(t *testing.T) {
	repo := &fakeProgressRepo{quizModules: map[string]string{}}
	agg := NewProgressAggregator(repo)

	moduleID, err := agg.QuizModuleID(context.Background(), "deleted-quiz")
	require.NoError(t, err)
	assert.Empty(t, moduleID)
}
