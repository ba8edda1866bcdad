package gamification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/gamification"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissionClaimFlow(t *testing.T) {
	db := testdb.New(t)
	u := model.User{Email: "asha@example.com", Provider: model.ProviderPassword}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&model.Profile{ID: u.ID, FullName: "Asha", Role: model.RoleStudent}).Error)
	missions := []model.Mission{
		{Key: "upload_1", Title: "Upload 1", Action: model.ActivityTypeUpload, Target: 1, CoinReward: 15, XPReward: 50, Active: true},
		{Key: "download_3", Title: "Download 3", Action: model.ActivityTypeDownload, Target: 3, CoinReward: 5, XPReward: 20, Active: true},
	}
	require.NoError(t, db.Create(&missions).Error)
	require.NoError(t, db.Create(&model.Badge{Key: "first_coins", Name: "First coins", Criteria: model.BadgeCriteriaCoins, Threshold: 10}).Error)

	svc := gamification.NewService(db, cache.NewMemoryCache(), nil, nil)
	h := NewGamificationHandler(svc)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", u.ID)
		return c.Next()
	})
	app.Get("/missions", h.GetMissions)
	app.Post("/missions/:id/claim", h.ClaimMission)
	app.Get("/leaderboard", h.GetLeaderboard)
	app.Get("/badges", h.ListBadges)
	app.Get("/badges/mine", h.MyBadges)

	call := func(method, path string) (int, json.RawMessage) {
		resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out.Data
	}

	status, data := call(fiber.MethodGet, "/missions")
	require.Equal(t, fiber.StatusOK, status)
	var assignments []model.MissionAssignment
	require.NoError(t, json.Unmarshal(data, &assignments))
	require.Len(t, assignments, 2)

	byMission := map[uint]uint{}
	for _, a := range assignments {
		byMission[a.MissionID] = a.ID
	}
	uploadAssignment := byMission[missions[0].ID]
	downloadAssignment := byMission[missions[1].ID]

	require.NoError(t, svc.RecordProgress(context.Background(), u.ID, model.ActivityTypeUpload))

	status, data = call(fiber.MethodPost, fmt.Sprintf("/missions/%d/claim", uploadAssignment))
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"coins":15,"xp":50}`, string(data))

	status, _ = call(fiber.MethodPost, fmt.Sprintf("/missions/%d/claim", uploadAssignment))
	assert.Equal(t, fiber.StatusConflict, status)
	status, _ = call(fiber.MethodPost, fmt.Sprintf("/missions/%d/claim", downloadAssignment))
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = call(fiber.MethodPost, "/missions/9999/claim")
	assert.Equal(t, fiber.StatusNotFound, status)

	_, data = call(fiber.MethodGet, "/leaderboard?limit=5")
	var board []gamification.LeaderboardEntry
	require.NoError(t, json.Unmarshal(data, &board))
	require.Len(t, board, 1)
	assert.Equal(t, 15, board[0].Coins)
	assert.Equal(t, 1, board[0].Rank)

	_, err := svc.EvaluateBadges(context.Background(), u.ID)
	require.NoError(t, err)
	_, data = call(fiber.MethodGet, "/badges/mine")
	var mine []model.UserBadge
	require.NoError(t, json.Unmarshal(data, &mine))
	assert.Len(t, mine, 1)

	_, data = call(fiber.MethodGet, "/badges")
	var all []model.Badge
	require.NoError(t, json.Unmarshal(data, &all))
	assert.Len(t, all, 1)
}
