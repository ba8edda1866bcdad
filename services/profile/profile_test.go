package profile_test

import (
	"context"
	"testing"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/onboarding"
	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capture struct {
	changes  []realtime.ChangeEvent
	messages []realtime.Message
}

func (c *capture) PublishChange(ev realtime.ChangeEvent) { c.changes = append(c.changes, ev) }
func (c *capture) PublishToast(uint, realtime.Toast) {}
func (c *capture) Publish(msg realtime.Message) { c.messages = append(c.messages, msg) }

func newUser(t *testing.T, db *gorm.DB, email, name, role string) model.User {
	t.Helper()
	u := model.User{Email: email, Provider: model.ProviderPassword}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&model.Profile{ID: u.ID, FullName: name, Role: role}).Error)
	return u
}

func setup(t *testing.T) (*gorm.DB, *profile.Service, *capture) {
	db := testdb.New(t)
	pub := &capture{}
	return db, profile.NewService(db, auth.NewBlacklistService(db), pub), pub
}

func TestGetOrCreateHealsMissingProfile(t *testing.T) {
	db, svc, _ := setup(t)
	ctx := context.Background()
	u := model.User{Email: "orphan@example.com", Provider: model.ProviderGoogle}
	require.NoError(t, db.Create(&u).Error)

	_, err := svc.Get(ctx, u.ID)
	assert.ErrorIs(t, err, profile.ErrNotFound)

	p, err := svc.GetOrCreate(ctx, u.ID, "  Orphan User ")
	require.NoError(t, err)
	assert.Equal(t, "Orphan User", p.FullName)
	assert.Equal(t, model.RoleStudent, p.Role)
	assert.False(t, p.Onboarded())

	again, err := svc.GetOrCreate(ctx, u.ID, "Other Name")
	require.NoError(t, err)
	assert.Equal(t, "Orphan User", again.FullName)
}

func TestUpdateProfile(t *testing.T) {
	db, svc, pub := setup(t)
	ctx := context.Background()
	u := newUser(t, db, "s@example.com", "Student", model.RoleStudent)

	name := "Renamed Student"
	p, err := svc.Update(ctx, u.ID, profile.UpdateInput{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, p.FullName)
	require.Len(t, pub.changes, 1)
	assert.Equal(t, profile.Table, pub.changes[0].Table)

	bad := "not a url"
	_, err = svc.Update(ctx, u.ID, profile.UpdateInput{AvatarURL: &bad})
	assert.Error(t, err)

	_, err = svc.Update(ctx, 999, profile.UpdateInput{FullName: &name})
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestSaveSelectionWritesProfileAndSemester(t *testing.T) {
	db, svc, _ := setup(t)
	ctx := context.Background()
	u := newUser(t, db, "s@example.com", "Student", model.RoleStudent)

	college := model.College{Name: "Test College"}
	require.NoError(t, db.Create(&college).Error)
	course := model.Course{CollegeID: college.ID, Name: "Computer Engineering", Duration: 4}
	require.NoError(t, db.Create(&course).Error)
	year := model.Year{CourseID: course.ID, YearNumber: 3}
	require.NoError(t, db.Create(&year).Error)

	sel := onboarding.Selection{CollegeID: college.ID, CourseID: course.ID, YearID: year.ID, Semester: 5}
	require.NoError(t, svc.SaveSelection(ctx, u.ID, sel))

	p, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, p.Onboarded())
	assert.Equal(t, course.ID, *p.CourseID)
	assert.Equal(t, year.ID, *p.YearID)

	var user model.User
	require.NoError(t, db.First(&user, u.ID).Error)
	assert.Equal(t, sel.SemesterLabel(), user.Metadata[model.MetadataSemester])

	assert.ErrorIs(t, svc.SaveSelection(ctx, 999, sel), profile.ErrNotFound)
}

func TestBanRevokesSessions(t *testing.T) {
	db, svc, pub := setup(t)
	ctx := context.Background()
	admin := newUser(t, db, "admin@example.com", "Admin", model.RoleAdmin)
	student := newUser(t, db, "s@example.com", "Student", model.RoleStudent)
	actor := profile.AuditContext{AdminID: admin.ID, IPAddress: "10.0.0.1"}

	before, err := auth.NewBlacklistService(db).GetUserTokenVersion(ctx, student.ID)
	require.NoError(t, err)

	p, err := svc.Ban(ctx, actor, student.ID, "spam uploads")
	require.NoError(t, err)
	assert.True(t, p.IsBanned)
	assert.Equal(t, "spam uploads", p.BanReason)

	after, err := auth.NewBlacklistService(db).GetUserTokenVersion(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, realtime.KindSessionTerminated, pub.messages[0].Kind)
	assert.Equal(t, student.ID, pub.messages[0].UserID)

	assert.ErrorIs(t, svc.EnsureActive(ctx, p), profile.ErrBanned)

	var audit model.AdminAuditLog
	require.NoError(t, db.Where("action = ?", "user_ban").First(&audit).Error)
	assert.Equal(t, admin.ID, audit.AdminID)
	assert.Equal(t, student.ID, audit.TargetID)
	assert.Equal(t, "10.0.0.1", audit.IPAddress)

	p, err = svc.Unban(ctx, actor, student.ID)
	require.NoError(t, err)
	assert.False(t, p.IsBanned)
	assert.NoError(t, svc.EnsureActive(ctx, p))

	_, err = svc.Ban(ctx, actor, admin.ID, "self")
	assert.ErrorIs(t, err, profile.ErrSelfAction)
	_, err = svc.Ban(ctx, actor, 999, "ghost")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestSetRoleRequiresSuperadmin(t *testing.T) {
	db, svc, _ := setup(t)
	ctx := context.Background()
	root := newUser(t, db, "root@example.com", "Root", model.RoleSuperAdmin)
	student := newUser(t, db, "s@example.com", "Student", model.RoleStudent)
	actor := profile.AuditContext{AdminID: root.ID}

	_, err := svc.SetRole(ctx, actor, model.RoleAdmin, student.ID, model.RoleAdmin)
	assert.ErrorIs(t, err, profile.ErrForbidden)

	_, err = svc.SetRole(ctx, actor, model.RoleSuperAdmin, student.ID, "wizard")
	assert.ErrorIs(t, err, profile.ErrInvalidRole)

	p, err := svc.SetRole(ctx, actor, model.RoleSuperAdmin, student.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	var count int64
	require.NoError(t, db.Model(&model.AdminAuditLog{}).Where("action = ?", "user_role_change").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListUsers(t *testing.T) {
	db, svc, _ := setup(t)
	ctx := context.Background()
	newUser(t, db, "alice@example.com", "Alice", model.RoleStudent)
	newUser(t, db, "bob@example.com", "Bob", model.RoleAdmin)
	carol := newUser(t, db, "carol@uni.edu", "Carol", model.RoleStudent)
	require.NoError(t, db.Model(&model.Profile{}).Where("id = ?", carol.ID).Update("is_banned", true).Error)

	rows, total, err := svc.ListUsers(ctx, profile.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 3)

	rows, total, err = svc.ListUsers(ctx, profile.ListOptions{Search: "UNI.edu"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "carol@uni.edu", rows[0].Email)

	banned := true
	rows, _, err = svc.ListUsers(ctx, profile.ListOptions{Banned: &banned})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Carol", rows[0].FullName)

	rows, _, err = svc.ListUsers(ctx, profile.ListOptions{Role: model.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bob", rows[0].FullName)
}
