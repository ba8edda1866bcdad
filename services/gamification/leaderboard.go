package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

const (
	LeaderboardTTL    = time.Minute
	leaderboardPrefix = "leaderboard:"
	maxLeaderboard    = 100
)

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	UserID    uint   `json:"user_id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Coins     int    `json:"coins"`
	XP        int    `json:"xp"`
}

// Leaderboard ranks profiles by coins, then XP. Results are cached for a minute.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > maxLeaderboard {
		limit = 10
	}
	key := fmt.Sprintf("%s%d", leaderboardPrefix, limit)

	if s.cache != nil {
		var cached []LeaderboardEntry
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	var profiles []model.Profile
	err := s.db.WithContext(ctx).
		Where("is_banned = ?", false).
		Order("coins DESC, xp DESC, id ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, len(profiles))
	for i, p := range profiles {
		entries[i] = LeaderboardEntry{
			Rank:      i + 1,
			UserID:    p.ID,
			FullName:  p.FullName,
			AvatarURL: p.AvatarURL,
			Coins:     p.Coins,
			XP:        p.XP,
		}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, entries, LeaderboardTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache leaderboard")
		}
	}
	return entries, nil
}

func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, leaderboardPrefix); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate leaderboard")
	}
}
