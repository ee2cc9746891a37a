package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

type stubCatalog struct {
	earned []achievement.EarnedAchievement
}

func (s *stubCatalog) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	return nil, nil
}

func (s *stubCatalog) ListEarnedIDs(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func (s *stubCatalog) ListEarned(ctx context.Context, userID string) ([]achievement.EarnedAchievement, error) {
	return s.earned, nil
}

func TestGetUserAchievements_Listing(t *testing.T) {
	h := NewGetUserAchievementsHandler(&stubCatalog{earned: []achievement.EarnedAchievement{
		{AchievementID: "a1", Name: "First Lesson", EarnedAt: time.Now()},
		{AchievementID: "a2", Name: "Module Master", EarnedAt: time.Now()},
	}})

	result, err := h.Handle(context.Background(), GetUserAchievementsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", result.UserID)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, result.Achievements, 2)
}

func TestGetUserAchievements_EmptyListingIsNotAnError(t *testing.T) {
	h := NewGetUserAchievementsHandler(&stubCatalog{})

	result, err := h.Handle(context.Background(), GetUserAchievementsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.NotNil(t, result.Achievements)
}

func TestGetUserAchievements_MissingUserID(t *testing.T) {
	h := NewGetUserAchievementsHandler(&stubCatalog{})

	_, err := h.Handle(context.Background(), GetUserAchievementsQuery{})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
