package gamification

import (
	"context"
	"testing"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB, *time.Time) {
	t.Helper()
	db := testdb.New(t)
	svc := NewService(db, cache.NewMemoryCache(), nil, nil)
	clock := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, db, &clock
}

func seedProfile(t *testing.T, db *gorm.DB, email, name string, coins int) model.Profile {
	t.Helper()
	u := model.User{Email: email, Provider: model.ProviderPassword}
	require.NoError(t, db.Create(&u).Error)
	p := model.Profile{ID: u.ID, FullName: name, Role: model.RoleStudent, Coins: coins}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedMissions(t *testing.T, db *gorm.DB) []model.Mission {
	t.Helper()
	missions := []model.Mission{
		{Key: "download_2", Title: "Download 2", Action: model.ActivityTypeDownload, Target: 2, CoinReward: 5, XPReward: 20, Active: true},
		{Key: "upload_1", Title: "Upload 1", Action: model.ActivityTypeUpload, Target: 1, CoinReward: 15, XPReward: 50, Active: true},
		{Key: "retired", Title: "Old", Action: model.ActivityTypeSave, Target: 1, Active: false},
	}
	require.NoError(t, db.Create(&missions).Error)
	return missions
}

func TestNextReset(t *testing.T) {
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), NextReset(time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), NextReset(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))

	ist := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), NextReset(time.Date(2026, 3, 10, 2, 0, 0, 0, ist)))
}

func TestEnsureAssignmentsIsIdempotent(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	p := seedProfile(t, db, "a@example.com", "Asha", 0)
	seedMissions(t, db)

	first, err := svc.EnsureAssignments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, first, 2, "inactive missions are not assigned")

	second, err := svc.EnsureAssignments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, second, 2)

	var total int64
	require.NoError(t, db.Model(&model.MissionAssignment{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), first[0].ResetAt.UTC())
}

func TestNewDayGetsFreshAssignments(t *testing.T) {
	svc, db, clock := newService(t)
	ctx := context.Background()
	p := seedProfile(t, db, "a@example.com", "Asha", 0)
	seedMissions(t, db)

	_, err := svc.EnsureAssignments(ctx, p.ID)
	require.NoError(t, err)

	*clock = clock.Add(24 * time.Hour)
	current, err := svc.EnsureAssignments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, current, 2)

	var total int64
	require.NoError(t, db.Model(&model.MissionAssignment{}).Count(&total).Error)
	assert.Equal(t, int64(4), total)

	*clock = clock.Add(10 * 24 * time.Hour)
	purged, err := svc.PurgeExpired(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), purged)
}

func TestBumpCompletesFromStoredProgress(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	p := seedProfile(t, db, "a@example.com", "Asha", 0)
	seedMissions(t, db)

	current, err := svc.EnsureAssignments(ctx, p.ID)
	require.NoError(t, err)
	var download model.MissionAssignment
	for _, a := range current {
		if a.Mission.Key == "download_2" {
			download = a
		}
	}
	require.NotZero(t, download.ID)

	// both bumps start from the same read of progress 0, as two concurrent
	// requests would
	completed, bumped, err := svc.bump(ctx, download)
	require.NoError(t, err)
	assert.True(t, bumped)
	assert.False(t, completed)

	completed, bumped, err = svc.bump(ctx, download)
	require.NoError(t, err)
	assert.True(t, bumped)
	assert.True(t, completed, "the bump reaching the target completes the row")

	var stored model.MissionAssignment
	require.NoError(t, db.First(&stored, download.ID).Error)
	assert.Equal(t, 2, stored.Progress)
	assert.True(t, stored.Completed)

	_, bumped, err = svc.bump(ctx, download)
	require.NoError(t, err)
	assert.False(t, bumped, "completed rows are left alone")

	_, err = svc.Claim(ctx, p.ID, download.ID)
	require.NoError(t, err)
}

func TestProgressCompletionAndClaim(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	p := seedProfile(t, db, "a@example.com", "Asha", 3)
	seedMissions(t, db)

	current, err := svc.EnsureAssignments(ctx, p.ID)
	require.NoError(t, err)
	var download model.MissionAssignment
	for _, a := range current {
		if a.Mission.Key == "download_2" {
			download = a
		}
	}
	require.NotZero(t, download.ID)

	require.NoError(t, svc.RecordProgress(ctx, p.ID, model.ActivityTypeDownload))
	_, err = svc.Claim(ctx, p.ID, download.ID)
	assert.ErrorIs(t, err, ErrMissionNotClaimable)

	require.NoError(t, svc.RecordProgress(ctx, p.ID, model.ActivityTypeDownload))
	require.NoError(t, svc.RecordProgress(ctx, p.ID, model.ActivityTypeDownload), "extra progress after completion is ignored")

	var stored model.MissionAssignment
	require.NoError(t, db.First(&stored, download.ID).Error)
	assert.Equal(t, 2, stored.Progress)
	assert.True(t, stored.Completed)

	other := seedProfile(t, db, "b@example.com", "Ravi", 0)
	_, err = svc.Claim(ctx, other.ID, download.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	res, err := svc.Claim(ctx, p.ID, download.ID)
	require.NoError(t, err)
	assert.Equal(t, &ClaimResult{Coins: 5, XP: 20}, res)

	_, err = svc.Claim(ctx, p.ID, download.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	var profile model.Profile
	require.NoError(t, db.First(&profile, p.ID).Error)
	assert.Equal(t, 8, profile.Coins)
	assert.Equal(t, 20, profile.XP)

	var notes int64
	require.NoError(t, db.Model(&model.Notification{}).Where("type = ?", model.NotificationTypeMissionComplete).Count(&notes).Error)
	assert.Equal(t, int64(1), notes)
}

func TestClaimAfterResetIsRejected(t *testing.T) {
	svc, db, clock := newService(t)
	ctx := context.Background()
	p := seedProfile(t, db, "a@example.com", "Asha", 0)
	seedMissions(t, db)

	require.NoError(t, svc.RecordProgress(ctx, p.ID, model.ActivityTypeUpload))
	current, err := svc.Current(ctx, p.ID)
	require.NoError(t, err)
	var upload model.MissionAssignment
	for _, a := range current {
		if a.Mission.Key == "upload_1" {
			upload = a
		}
	}
	require.True(t, upload.Completed)

	*clock = clock.Add(12 * time.Hour)
	_, err = svc.Claim(ctx, p.ID, upload.ID)
	assert.ErrorIs(t, err, ErrMissionNotClaimable)
}

func TestLeaderboardIsCachedAndInvalidatedByClaims(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	a := seedProfile(t, db, "a@example.com", "Asha", 50)
	b := seedProfile(t, db, "b@example.com", "Ravi", 40)
	seedMissions(t, db)

	board, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, a.ID, board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)

	require.NoError(t, db.Model(&model.Profile{}).Where("id = ?", b.ID).Update("coins", 45).Error)
	require.NoError(t, svc.RecordProgress(ctx, b.ID, model.ActivityTypeUpload))

	board, err = svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, board[1].Coins, "served from cache")

	current, err := svc.Current(ctx, b.ID)
	require.NoError(t, err)
	for _, asg := range current {
		if asg.Completed {
			_, err := svc.Claim(ctx, b.ID, asg.ID)
			require.NoError(t, err)
		}
	}

	board, err = svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, b.ID, board[0].UserID)
	assert.Equal(t, 60, board[0].Coins)
}

func TestEvaluateBadges(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	p := seedProfile(t, db, "a@example.com", "Asha", 120)

	college := model.College{Name: "COEP"}
	require.NoError(t, db.Create(&college).Error)
	course := model.Course{CollegeID: college.ID, Name: "IT", Duration: 4}
	require.NoError(t, db.Create(&course).Error)
	resources := []model.Resource{
		{Title: "a", Type: model.ResourceTypeNotes, CollegeID: college.ID, CourseID: course.ID, UploaderID: p.ID, Status: model.ResourceStatusApproved, Downloads: 30},
		{Title: "b", Type: model.ResourceTypeNotes, CollegeID: college.ID, CourseID: course.ID, UploaderID: p.ID, Status: model.ResourceStatusPending, Downloads: 0},
	}
	require.NoError(t, db.Create(&resources).Error)

	badges := []model.Badge{
		{Key: "rich", Name: "Rich", Criteria: model.BadgeCriteriaCoins, Threshold: 100},
		{Key: "first_upload", Name: "First upload", Criteria: model.BadgeCriteriaUploads, Threshold: 1},
		{Key: "prolific", Name: "Prolific", Criteria: model.BadgeCriteriaUploads, Threshold: 10},
		{Key: "popular", Name: "Popular", Criteria: model.BadgeCriteriaDownloads, Threshold: 25},
	}
	require.NoError(t, db.Create(&badges).Error)

	awarded, err := svc.EvaluateBadges(ctx, p.ID)
	require.NoError(t, err)
	var keys []string
	for _, b := range awarded {
		keys = append(keys, b.Key)
	}
	assert.ElementsMatch(t, []string{"rich", "first_upload", "popular"}, keys)

	again, err := svc.EvaluateBadges(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	earned, err := svc.UserBadges(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, earned, 3)
	assert.NotNil(t, earned[0].Badge)
}
