package gamification

import (
	"context"
	"fmt"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services"
	"github.com/campusflow/campus-flow-api/utils/dberrors"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

func (s *Service) ListBadges(ctx context.Context) ([]model.Badge, error) {
	var badges []model.Badge
	if err := s.db.WithContext(ctx).Order("criteria, threshold").Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return badges, nil
}

func (s *Service) UserBadges(ctx context.Context, userID uint) ([]model.UserBadge, error) {
	var earned []model.UserBadge
	err := s.db.WithContext(ctx).
		Preload("Badge").
		Where("user_id = ?", userID).
		Order("awarded_at").
		Find(&earned).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	return earned, nil
}

// BadgeStats are the measures badge thresholds are checked against
type BadgeStats struct {
	Coins     int
	Uploads   int64 // approved resources
	Downloads int64 // downloads received on own resources
}

func (b BadgeStats) value(c model.BadgeCriteria) int64 {
	switch c {
	case model.BadgeCriteriaCoins:
		return int64(b.Coins)
	case model.BadgeCriteriaUploads:
		return b.Uploads
	case model.BadgeCriteriaDownloads:
		return b.Downloads
	default:
		return 0
	}
}

func (s *Service) stats(ctx context.Context, userID uint) (BadgeStats, error) {
	var st BadgeStats
	db := s.db.WithContext(ctx)

	var profile model.Profile
	if err := db.Select("id", "coins").Where("id = ?", userID).Limit(1).Find(&profile).Error; err != nil {
		return st, fmt.Errorf("failed to load profile: %w", err)
	}
	st.Coins = profile.Coins

	if err := db.Model(&model.Resource{}).
		Where("uploader_id = ? AND status = ?", userID, model.ResourceStatusApproved).
		Count(&st.Uploads).Error; err != nil {
		return st, fmt.Errorf("failed to count uploads: %w", err)
	}

	if err := db.Model(&model.Resource{}).
		Where("uploader_id = ?", userID).
		Select("COALESCE(SUM(downloads), 0)").
		Row().Scan(&st.Downloads); err != nil {
		return st, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return st, nil
}

// EvaluateBadges awards every badge whose threshold the user now meets and
// returns the newly awarded ones. Already held badges are skipped.
func (s *Service) EvaluateBadges(ctx context.Context, userID uint) ([]model.Badge, error) {
	st, err := s.stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []model.Badge
	err = s.db.WithContext(ctx).
		Where("id NOT IN (?)", s.db.Model(&model.UserBadge{}).Select("badge_id").Where("user_id = ?", userID)).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}

	var awarded []model.Badge
	for _, b := range candidates {
		if st.value(b.Criteria) < int64(b.Threshold) {
			continue
		}

		ub := model.UserBadge{UserID: userID, BadgeID: b.ID, AwardedAt: s.now()}
		if err := s.db.WithContext(ctx).Create(&ub).Error; err != nil {
			if dberrors.IsDuplicate(err) {
				continue
			}
			return awarded, fmt.Errorf("failed to award badge %s: %w", b.Key, err)
		}
		awarded = append(awarded, b)
		s.badgeEarned(ctx, userID, b)
	}
	return awarded, nil
}

func (s *Service) badgeEarned(ctx context.Context, userID uint, b model.Badge) {
	title := fmt.Sprintf("Badge earned: %s", b.Name)
	s.publisher.PublishToast(userID, realtime.Toast{Level: realtime.ToastSuccess, Title: title, Message: b.Description})

	if _, err := s.notifications.CreateNotification(ctx, services.CreateNotificationRequest{
		UserID:   userID,
		Type:     model.NotificationTypeBadgeEarned,
		Title:    title,
		Message:  b.Description,
		Metadata: &model.NotificationMetadata{BadgeKey: b.Key},
	}); err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Str("badge", b.Key).Msg("failed to notify badge")
	}
}
