package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/catalog"
)

const (
	JobPurgeAssignments = "purge_expired_assignments"
	JobEvaluateBadges   = "evaluate_badges"
	JobCleanupOldData   = "cleanup_old_data"
	JobRepairYears      = "repair_missing_years"
)

type MissionPurger interface {
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type BadgeEvaluator interface {
	EvaluateBadges(ctx context.Context, userID uint) ([]model.Badge, error)
}

type ActivityReader interface {
	ActiveUsersSince(ctx context.Context, since time.Time) ([]uint, error)
}

type NotificationCleaner interface {
	CleanupOldNotifications(ctx context.Context, olderThan time.Duration) (int64, error)
}

type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

type YearRepairer interface {
	RepairMissingYears(ctx context.Context) (*catalog.RepairReport, error)
}

// Deps are the services the standard jobs drive
type Deps struct {
	Missions      MissionPurger
	Badges        BadgeEvaluator
	Activity      ActivityReader
	Notifications NotificationCleaner
	Tokens        TokenCleaner
	Years         YearRepairer
}

const (
	assignmentRetention   = 7 * 24 * time.Hour
	notificationRetention = 30 * 24 * time.Hour
	badgeLookback         = time.Hour
)

func standardJobs(d Deps) []job {
	return []job{
		// midnight, right after missions reset
		{name: JobPurgeAssignments, schedule: "0 0 0 * * *", run: purgeAssignments(d)},
		{name: JobEvaluateBadges, schedule: "0 5 * * * *", run: evaluateBadges(d)},
		{name: JobCleanupOldData, schedule: "0 0 2 * * *", run: cleanupOldData(d)},
		{name: JobRepairYears, schedule: "0 0 3 * * *", run: repairYears(d)},
	}
}

func purgeAssignments(d Deps) JobFunc {
	return func(ctx context.Context) (string, map[string]interface{}, error) {
		n, err := d.Missions.PurgeExpired(ctx, assignmentRetention)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("purged %d expired assignments", n), map[string]interface{}{"deleted": n}, nil
	}
}

// evaluateBadges covers users active in the last hour plus a small overlap
func evaluateBadges(d Deps) JobFunc {
	return func(ctx context.Context) (string, map[string]interface{}, error) {
		since := time.Now().Add(-badgeLookback - 10*time.Minute)
		users, err := d.Activity.ActiveUsersSince(ctx, since)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load active users: %w", err)
		}

		awarded, failed := 0, 0
		for _, id := range users {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			badges, err := d.Badges.EvaluateBadges(ctx, id)
			if err != nil {
				failed++
				continue
			}
			awarded += len(badges)
		}

		meta := map[string]interface{}{"users": len(users), "awarded": awarded, "failed": failed}
		return fmt.Sprintf("evaluated %d users, awarded %d badges", len(users), awarded), meta, nil
	}
}

func cleanupOldData(d Deps) JobFunc {
	return func(ctx context.Context) (string, map[string]interface{}, error) {
		notifications, err := d.Notifications.CleanupOldNotifications(ctx, notificationRetention)
		if err != nil {
			return "", nil, fmt.Errorf("failed to clean notifications: %w", err)
		}
		tokens, err := d.Tokens.CleanupExpiredTokens(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("failed to clean token blacklist: %w", err)
		}
		meta := map[string]interface{}{"notifications": notifications, "tokens": tokens}
		return fmt.Sprintf("removed %d notifications and %d blacklisted tokens", notifications, tokens), meta, nil
	}
}

func repairYears(d Deps) JobFunc {
	return func(ctx context.Context) (string, map[string]interface{}, error) {
		report, err := d.Years.RepairMissingYears(ctx)
		if err != nil {
			return "", nil, err
		}
		meta := map[string]interface{}{
			"courses_missing":  report.CoursesMissing,
			"courses_repaired": report.CoursesRepaired,
			"years_created":    report.YearsCreated,
		}
		return fmt.Sprintf("created %d years for %d courses", report.YearsCreated, len(report.CoursesRepaired)), meta, nil
	}
}
