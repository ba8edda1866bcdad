// Package gamification runs daily missions, coin rewards, badges and the leaderboard.
package gamification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/dberrors"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const AssignmentsTable = "mission_assignments"

var (
	ErrAssignmentNotFound  = errors.New("mission assignment not found")
	ErrMissionNotClaimable = errors.New("mission is not completed or has expired")
	ErrAlreadyClaimed      = errors.New("mission reward already claimed")
)

type Service struct {
	db            *gorm.DB
	cache         cache.Cache
	publisher     realtime.Publisher
	notifications *services.NotificationService
	now           func() time.Time
}

// NewService builds the service; c may be nil to disable leaderboard caching
func NewService(db *gorm.DB, c cache.Cache, publisher realtime.Publisher, notifications *services.NotificationService) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	if notifications == nil {
		notifications = services.NewNotificationService(db, publisher)
	}
	return &Service{db: db, cache: c, publisher: publisher, notifications: notifications, now: utcNow}
}

// NextReset is the first UTC midnight strictly after t
func NextReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// EnsureAssignments gives the user today's missions when they have none
// unexpired, and returns the current set. Concurrent callers may race on the
// insert; the unique index turns the loser's rows into ignored duplicates.
func (s *Service) EnsureAssignments(ctx context.Context, userID uint) ([]model.MissionAssignment, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	var current int64
	if err := db.Model(&model.MissionAssignment{}).
		Where("user_id = ? AND reset_at > ?", userID, now).
		Count(&current).Error; err != nil {
		return nil, fmt.Errorf("failed to check assignments: %w", err)
	}

	if current == 0 {
		var missions []model.Mission
		if err := db.Where("active = ?", true).Order("id").Find(&missions).Error; err != nil {
			return nil, fmt.Errorf("failed to load missions: %w", err)
		}

		resetAt := NextReset(now)
		for _, m := range missions {
			a := model.MissionAssignment{UserID: userID, MissionID: m.ID, ResetAt: resetAt}
			if err := db.Create(&a).Error; err != nil {
				if dberrors.IsDuplicate(err) {
					continue
				}
				return nil, fmt.Errorf("failed to assign mission %s: %w", m.Key, err)
			}
		}
	}

	return s.Current(ctx, userID)
}

// Current lists unexpired assignments with their missions
func (s *Service) Current(ctx context.Context, userID uint) ([]model.MissionAssignment, error) {
	var assignments []model.MissionAssignment
	err := s.db.WithContext(ctx).
		Preload("Mission").
		Where("user_id = ? AND reset_at > ?", userID, s.now()).
		Order("mission_id").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	return assignments, nil
}

// RecordProgress bumps every current, unfinished assignment whose mission
// counts this action, marking those that reach their target as completed.
func (s *Service) RecordProgress(ctx context.Context, userID uint, action model.ActivityType) error {
	assignments, err := s.EnsureAssignments(ctx, userID)
	if err != nil {
		return err
	}

	for _, a := range assignments {
		if a.Mission == nil || a.Mission.Action != action || a.Completed {
			continue
		}

		completed, bumped, err := s.bump(ctx, a)
		if err != nil {
			return err
		}
		if !bumped {
			continue
		}

		s.publisher.PublishChange(realtime.ChangeEvent{Table: AssignmentsTable, Type: realtime.EventUpdate, RowID: a.ID, UserID: userID})
		if completed {
			s.missionCompleted(ctx, userID, a.Mission)
		}
	}
	return nil
}

// bump adds one to an unfinished assignment. Completion is decided by the
// same statement from the stored progress, so concurrent bumps cannot leave a
// row at its target without completing it. completed is true only for the
// bump that crossed the target.
func (s *Service) bump(ctx context.Context, a model.MissionAssignment) (completed, bumped bool, err error) {
	var row model.MissionAssignment
	res := s.db.WithContext(ctx).Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "progress"}, {Name: "completed"}}}).
		Where("id = ? AND completed = ?", a.ID, false).
		Updates(map[string]interface{}{
			"progress":  gorm.Expr("progress + ?", 1),
			"completed": gorm.Expr("progress + 1 >= ?", a.Mission.Target),
		})
	if res.Error != nil {
		return false, false, fmt.Errorf("failed to record progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, false, nil
	}
	return row.Completed, true, nil
}

func (s *Service) missionCompleted(ctx context.Context, userID uint, m *model.Mission) {
	title := fmt.Sprintf("Mission complete: %s", m.Title)
	message := fmt.Sprintf("Claim your %d coins and %d XP.", m.CoinReward, m.XPReward)
	s.publisher.PublishToast(userID, realtime.Toast{Level: realtime.ToastSuccess, Title: title, Message: message})

	if _, err := s.notifications.CreateNotification(ctx, services.CreateNotificationRequest{
		UserID:  userID,
		Type:    model.NotificationTypeMissionComplete,
		Title:   title,
		Message: message,
	}); err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Str("mission", m.Key).Msg("failed to notify mission completion")
	}
}

// ClaimResult is what a claim credited
type ClaimResult struct {
	Coins int `json:"coins"`
	XP    int `json:"xp"`
}

// Claim credits the mission reward once. Ownership, expiry, completion and the
// claimed flag are checked by a single conditional update in the same
// transaction as the credit.
func (s *Service) Claim(ctx context.Context, userID, assignmentID uint) (*ClaimResult, error) {
	now := s.now()
	var result ClaimResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.MissionAssignment
		if err := tx.Preload("Mission").
			Where("id = ? AND user_id = ?", assignmentID, userID).
			First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssignmentNotFound
			}
			return fmt.Errorf("failed to load assignment: %w", err)
		}

		if a.Claimed {
			return ErrAlreadyClaimed
		}
		if !a.Completed || !a.ResetAt.After(now) || a.Mission == nil {
			return ErrMissionNotClaimable
		}

		res := tx.Model(&model.MissionAssignment{}).
			Where("id = ? AND claimed = ?", a.ID, false).
			Updates(map[string]interface{}{"claimed": true, "claimed_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to claim mission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		if err := tx.Model(&model.Profile{}).Where("id = ?", userID).
			UpdateColumns(map[string]interface{}{
				"coins": gorm.Expr("coins + ?", a.Mission.CoinReward),
				"xp":    gorm.Expr("xp + ?", a.Mission.XPReward),
			}).Error; err != nil {
			return fmt.Errorf("failed to credit reward: %w", err)
		}

		result = ClaimResult{Coins: a.Mission.CoinReward, XP: a.Mission.XPReward}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Uint("user_id", userID).Uint("assignment_id", assignmentID).Int("coins", result.Coins).Msg("mission claimed")
	s.publisher.PublishChange(realtime.ChangeEvent{Table: AssignmentsTable, Type: realtime.EventUpdate, RowID: assignmentID, UserID: userID})
	s.invalidateLeaderboard(ctx)
	return &result, nil
}

// PurgeExpired deletes assignments whose reset passed more than olderThan ago
func (s *Service) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	res := s.db.WithContext(ctx).Where("reset_at < ?", cutoff).Delete(&model.MissionAssignment{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge assignments: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// timestamps are compared in SQL, so keep them in one zone
func utcNow() time.Time {
	return time.Now().UTC()
}
