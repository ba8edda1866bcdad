package services

import (
	"context"
	"fmt"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"gorm.io/gorm"
)

// ActivityService records resource interactions
type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Record inserts one activity row
func (s *ActivityService) Record(ctx context.Context, userID, resourceID uint, activity model.ActivityType) error {
	return RecordActivity(s.db.WithContext(ctx), userID, resourceID, activity)
}

// RecordActivity inserts an activity row with the given handle, which may be a transaction
func RecordActivity(db *gorm.DB, userID, resourceID uint, activity model.ActivityType) error {
	row := &model.UserActivity{UserID: userID, ResourceID: resourceID, ActivityType: activity}
	if err := db.Create(row).Error; err != nil {
		return fmt.Errorf("failed to record %s activity: %w", activity, err)
	}
	return nil
}

// ActiveUsersSince lists users with any activity after since
func (s *ActivityService) ActiveUsersSince(ctx context.Context, since time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.UserActivity{}).
		Where("created_at >= ?", since).
		Distinct().
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return ids, nil
}

// CountByType counts a user's activity rows per type
func (s *ActivityService) CountByType(ctx context.Context, userID uint) (map[model.ActivityType]int64, error) {
	var rows []struct {
		ActivityType model.ActivityType
		Count        int64
	}
	err := s.db.WithContext(ctx).Model(&model.UserActivity{}).
		Select("activity_type, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("activity_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}

	counts := make(map[model.ActivityType]int64, len(rows))
	for _, r := range rows {
		counts[r.ActivityType] = r.Count
	}
	return counts, nil
}
