package query

import (
	"context"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER ACHIEVEMENTS QUERY
// Read-only listing of a user's earned achievements for the API.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserAchievementsQuery contains parameters for the listing.
type GetUserAchievementsQuery struct {
	UserID string
}

// GetUserAchievementsResult is the listing response.
type GetUserAchievementsResult struct {
	UserID       string                          `json:"user_id"`
	Achievements []achievement.EarnedAchievement `json:"achievements"`
	Total        int                             `json:"total"`
}

// GetUserAchievementsHandler handles the earned listing query.
type GetUserAchievementsHandler struct {
	catalogRepo achievement.CatalogRepository
}

// NewGetUserAchievementsHandler creates a new handler.
func NewGetUserAchievementsHandler(catalogRepo achievement.CatalogRepository) *GetUserAchievementsHandler {
	return &GetUserAchievementsHandler{catalogRepo: catalogRepo}
}

// Handle executes the query. A user with no awards gets an empty
// listing, not an error.
func (h *GetUserAchievementsHandler) Handle(ctx context.Context, q GetUserAchievementsQuery) (*GetUserAchievementsResult, error) {
	if q.UserID == "" {
		return nil, shared.WrapError("query", "GetUserAchievements", shared.ErrEmptyValue,
			"user id is required", nil)
	}

	earned, err := h.catalogRepo.ListEarned(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	if earned == nil {
		earned = []achievement.EarnedAchievement{}
	}

	return &GetUserAchievementsResult{
		UserID:       q.UserID,
		Achievements: earned,
		Total:        len(earned),
	}, nil
}
