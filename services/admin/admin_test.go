package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/admin"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	adminID, collegeID, courseID uint
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	u := model.User{Email: "s@example.com", Provider: model.ProviderPassword}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&model.Profile{ID: u.ID, FullName: "Student", Role: model.RoleAdmin}).Error)

	college := model.College{Name: "College"}
	require.NoError(t, db.Create(&college).Error)
	course := model.Course{CollegeID: college.ID, Name: "Course", Duration: 4}
	require.NoError(t, db.Create(&course).Error)
	return fixture{adminID: u.ID, collegeID: college.ID, courseID: course.ID}
}

func addResource(t *testing.T, db *gorm.DB, f fixture, status model.ResourceStatus, downloads int) {
	t.Helper()
	r := model.Resource{
		Title:      "Notes",
		Type:       model.ResourceTypeNotes,
		CollegeID:  f.collegeID,
		CourseID:   f.courseID,
		UploaderID: f.adminID,
		Status:     status,
		Downloads:  downloads,
	}
	require.NoError(t, db.Create(&r).Error)
}

func TestComputeCountsEverything(t *testing.T) {
	db := testdb.New(t)
	f := seed(t, db)
	addResource(t, db, f, model.ResourceStatusPending, 0)
	addResource(t, db, f, model.ResourceStatusApproved, 7)
	addResource(t, db, f, model.ResourceStatusApproved, 5)

	stats, err := admin.NewStatsService(db).Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingResources)
	assert.Equal(t, int64(3), stats.TotalResources)
	assert.Equal(t, int64(1), stats.TotalProfiles)
	assert.Equal(t, int64(12), stats.TotalDownloads)
}

func TestComputeOnEmptyDatabase(t *testing.T) {
	db := testdb.New(t)
	stats, err := admin.NewStatsService(db).Compute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDownloads)
	assert.Zero(t, stats.TotalResources)
}

func TestWatcherRecomputesAndToastsOnInsert(t *testing.T) {
	db := testdb.New(t)
	f := seed(t, db)
	hub := realtime.NewHub(zerolog.Nop())

	admins := hub.Subscribe(realtime.ForClient(f.adminID, true), 16)
	defer admins.Close()
	students := hub.Subscribe(realtime.ForClient(999, false), 16)
	defer students.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go admin.NewWatcher(admin.NewStatsService(db), hub, zerolog.Nop()).Run(ctx)

	// wait for the watcher to subscribe
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 3 }, time.Second, 5*time.Millisecond)

	addResource(t, db, f, model.ResourceStatusPending, 0)
	hub.PublishChange(realtime.ChangeEvent{Table: "resources", Type: realtime.EventInsert, RowID: 1})

	var toast *realtime.Toast
	var stats *admin.Stats
	timeout := time.After(2 * time.Second)
	for toast == nil || stats == nil {
		select {
		case msg := <-admins.C:
			switch msg.Kind {
			case realtime.KindToast:
				toast = msg.Toast
			case realtime.KindStats:
				stats = msg.Data.(*admin.Stats)
			}
		case <-timeout:
			t.Fatal("watcher did not publish")
		}
	}
	assert.Equal(t, "New resource uploaded", toast.Title)
	assert.Equal(t, int64(1), stats.PendingResources)

	assert.Empty(t, students.C, "students get neither the toast nor the stats")
}

func TestWatcherToastsEveryInsertOfABurst(t *testing.T) {
	db := testdb.New(t)
	f := seed(t, db)
	hub := realtime.NewHub(zerolog.Nop())

	admins := hub.Subscribe(realtime.ForClient(f.adminID, true), 32)
	defer admins.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go admin.NewWatcher(admin.NewStatsService(db), hub, zerolog.Nop()).Run(ctx)
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	for id := uint(1); id <= 3; id++ {
		hub.PublishChange(realtime.ChangeEvent{Table: "resources", Type: realtime.EventInsert, RowID: id})
	}
	hub.PublishChange(realtime.ChangeEvent{Table: "resources", Type: realtime.EventUpdate, RowID: 1})

	var toasts []string
	timeout := time.After(2 * time.Second)
	for len(toasts) < 3 {
		select {
		case msg := <-admins.C:
			if msg.Kind == realtime.KindToast {
				toasts = append(toasts, msg.Toast.Message)
			}
		case <-timeout:
			t.Fatalf("got %d toasts, want 3", len(toasts))
		}
	}
	assert.ElementsMatch(t, []string{
		"Resource #1 is waiting for review",
		"Resource #2 is waiting for review",
		"Resource #3 is waiting for review",
	}, toasts)

	// the update adds no toast of its own
	time.Sleep(50 * time.Millisecond)
	for len(admins.C) > 0 {
		msg := <-admins.C
		assert.NotEqual(t, realtime.KindToast, msg.Kind)
	}
}

func TestAuditList(t *testing.T) {
	db := testdb.New(t)
	adminID := seed(t, db).adminID
	svc := admin.NewAuditService(db)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, &model.AdminAuditLog{AdminID: adminID, Action: "resource_approve", Target: "resources", TargetID: 1}))
	require.NoError(t, svc.Record(ctx, &model.AdminAuditLog{AdminID: adminID, Action: "user_ban", Target: "profiles", TargetID: 2}))
	require.NoError(t, svc.Record(ctx, &model.AdminAuditLog{AdminID: adminID, Action: "user_unban", Target: "profiles", TargetID: 2}))

	entries, total, err := svc.List(ctx, admin.AuditFilter{Target: "profiles"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "user_unban", entries[0].Action)
	assert.Equal(t, "Student", entries[0].AdminName)

	entries, total, err = svc.List(ctx, admin.AuditFilter{Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 1)

	got, err := svc.Get(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entries[0].Action, got.Action)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, admin.ErrAuditNotFound)
}
