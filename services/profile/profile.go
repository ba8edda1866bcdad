// Package profile manages the public profile that sits beside each auth user.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/onboarding"
	"github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const Table = "profiles"

var (
	ErrNotFound    = errors.New("profile not found")
	ErrBanned      = errors.New("account is banned")
	ErrInvalidRole = errors.New("invalid role")
	ErrSelfAction  = errors.New("admins cannot change their own account")
	ErrForbidden   = errors.New("only superadmins can change roles")
)

type Service struct {
	db        *gorm.DB
	blacklist *auth.BlacklistService
	publisher realtime.Publisher
}

func NewService(db *gorm.DB, blacklist *auth.BlacklistService, publisher realtime.Publisher) *Service {
	if blacklist == nil {
		blacklist = auth.NewBlacklistService(db)
	}
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{db: db, blacklist: blacklist, publisher: publisher}
}

var _ onboarding.ProfileWriter = (*Service)(nil)

// Get loads a profile without creating it
func (s *Service) Get(ctx context.Context, userID uint) (*model.Profile, error) {
	var p model.Profile
	if err := s.db.WithContext(ctx).First(&p, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

// GetOrCreate returns the user's profile, inserting a default row when it is
// missing. fullName is only used for the inserted row.
func (s *Service) GetOrCreate(ctx context.Context, userID uint, fullName string) (*model.Profile, error) {
	p, err := s.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created := model.Profile{ID: userID, FullName: strings.TrimSpace(fullName), Role: model.RoleStudent}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&created).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	logger.Info().Uint("user_id", userID).Msg("created missing profile")
	return s.Get(ctx, userID)
}

// EnsureActive revokes every session of a banned user and reports ErrBanned
func (s *Service) EnsureActive(ctx context.Context, p *model.Profile) error {
	if !p.IsBanned {
		return nil
	}
	if err := s.blacklist.RevokeAllUserTokens(ctx, p.ID); err != nil {
		logger.Warn().Err(err).Uint("user_id", p.ID).Msg("failed to revoke tokens of banned user")
	}
	return ErrBanned
}

// UpdateInput holds the fields a user may change on their own profile
type UpdateInput struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=2,max=255"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,http_url"`
}

func (s *Service) Update(ctx context.Context, userID uint, in UpdateInput) (*model.Profile, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.FullName != nil {
		updates["full_name"] = validation.SanitizeString(*in.FullName)
	}
	if in.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
		s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: realtime.EventUpdate, RowID: userID, UserID: userID})
	}
	return s.Get(ctx, userID)
}

// SaveSelection stores the onboarding result: ids on the profile and the
// semester label in the auth user's metadata.
func (s *Service) SaveSelection(ctx context.Context, userID uint, sel onboarding.Selection) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Profile{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"college_id": sel.CollegeID,
			"course_id":  sel.CourseID,
			"year_id":    sel.YearID,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to save selection: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var user model.User
		if err := tx.Select("id", "metadata").First(&user, userID).Error; err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		meta := user.Metadata
		if meta == nil {
			meta = datatypes.JSONMap{}
		}
		meta[model.MetadataSemester] = sel.SemesterLabel()

		if err := tx.Model(&model.User{}).Where("id = ?", userID).
			UpdateColumn("metadata", meta).Error; err != nil {
			return fmt.Errorf("failed to save semester: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Uint("user_id", userID).Uint("college_id", sel.CollegeID).Int("semester", sel.Semester).Msg("onboarding completed")
	s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: realtime.EventUpdate, RowID: userID, UserID: userID})
	return nil
}

// ListOptions filters the admin user list
type ListOptions struct {
	Search string
	Role   string
	Banned *bool
	Limit  int
	Offset int
}

// UserRow joins a profile with its login email
type UserRow struct {
	model.Profile
	Email string `json:"email"`
}

func (s *Service) ListUsers(ctx context.Context, opts ListOptions) ([]UserRow, int64, error) {
	q := s.db.WithContext(ctx).Table("profiles").
		Joins("JOIN users ON users.id = profiles.id AND users.deleted_at IS NULL")
	if term := strings.ToLower(strings.TrimSpace(opts.Search)); term != "" {
		like := "%" + strings.ReplaceAll(term, "%", "") + "%"
		q = q.Where("LOWER(profiles.full_name) LIKE ? OR LOWER(users.email) LIKE ?", like, like)
	}
	if opts.Role != "" {
		q = q.Where("profiles.role = ?", opts.Role)
	}
	if opts.Banned != nil {
		q = q.Where("profiles.is_banned = ?", *opts.Banned)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows := []UserRow{}
	err := q.Select("profiles.*, users.email AS email").
		Order("profiles.created_at DESC, profiles.id DESC").
		Limit(limit).Offset(opts.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return rows, total, nil
}

// AuditContext carries request details into the audit trail
type AuditContext struct {
	AdminID   uint
	IPAddress string
	UserAgent string
}

// Ban blocks a user, bumps their token version and pushes a
// session_terminated message to any open connection.
func (s *Service) Ban(ctx context.Context, actor AuditContext, userID uint, reason string) (*model.Profile, error) {
	if actor.AdminID == userID {
		return nil, ErrSelfAction
	}
	reason = validation.SanitizeString(reason)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.loadTarget(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Profile{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"is_banned":  true,
			"ban_reason": reason,
		}).Error; err != nil {
			return fmt.Errorf("failed to ban user: %w", err)
		}
		if err := auth.NewBlacklistService(tx).RevokeAllUserTokens(ctx, userID); err != nil {
			return fmt.Errorf("failed to revoke tokens: %w", err)
		}
		return writeAudit(tx, actor, "user_ban", userID,
			map[string]interface{}{"is_banned": target.IsBanned},
			map[string]interface{}{"is_banned": true, "ban_reason": reason},
			"Banned "+target.FullName)
	})
	if err != nil {
		return nil, err
	}

	logger.Warn().Uint("admin_id", actor.AdminID).Uint("user_id", userID).Str("reason", reason).Msg("user banned")
	s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: realtime.EventUpdate, RowID: userID, UserID: userID})
	s.publisher.Publish(realtime.Message{
		Kind:   realtime.KindSessionTerminated,
		UserID: userID,
		Data:   map[string]string{"reason": reason},
	})
	return s.Get(ctx, userID)
}

func (s *Service) Unban(ctx context.Context, actor AuditContext, userID uint) (*model.Profile, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.loadTarget(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Profile{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"is_banned":  false,
			"ban_reason": "",
		}).Error; err != nil {
			return fmt.Errorf("failed to unban user: %w", err)
		}
		return writeAudit(tx, actor, "user_unban", userID,
			map[string]interface{}{"is_banned": target.IsBanned, "ban_reason": target.BanReason},
			map[string]interface{}{"is_banned": false},
			"Unbanned "+target.FullName)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: realtime.EventUpdate, RowID: userID, UserID: userID})
	return s.Get(ctx, userID)
}

// SetRole changes a user's role. Only superadmins may call it.
func (s *Service) SetRole(ctx context.Context, actor AuditContext, actorRole string, userID uint, role string) (*model.Profile, error) {
	if actorRole != model.RoleSuperAdmin {
		return nil, ErrForbidden
	}
	switch role {
	case model.RoleStudent, model.RoleAdmin, model.RoleSuperAdmin:
	default:
		return nil, ErrInvalidRole
	}
	if actor.AdminID == userID {
		return nil, ErrSelfAction
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.loadTarget(tx, userID)
		if err != nil {
			return err
		}
		if target.Role == role {
			return nil
		}
		if err := tx.Model(&model.Profile{}).Where("id = ?", userID).Update("role", role).Error; err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		// tokens carry the role claim
		if err := auth.NewBlacklistService(tx).RevokeAllUserTokens(ctx, userID); err != nil {
			return fmt.Errorf("failed to revoke tokens: %w", err)
		}
		return writeAudit(tx, actor, "user_role_change", userID,
			map[string]interface{}{"role": target.Role},
			map[string]interface{}{"role": role},
			fmt.Sprintf("Changed role of %s to %s", target.FullName, role))
	})
	if err != nil {
		return nil, err
	}
	s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: realtime.EventUpdate, RowID: userID, UserID: userID})
	return s.Get(ctx, userID)
}

func (s *Service) loadTarget(tx *gorm.DB, userID uint) (*model.Profile, error) {
	var p model.Profile
	if err := tx.First(&p, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func writeAudit(tx *gorm.DB, actor AuditContext, action string, targetID uint, oldValue, newValue map[string]interface{}, description string) error {
	oldRaw, _ := json.Marshal(oldValue)
	newRaw, _ := json.Marshal(newValue)
	entry := model.AdminAuditLog{
		AdminID:     actor.AdminID,
		Action:      action,
		Target:      Table,
		TargetID:    targetID,
		OldValue:    oldRaw,
		NewValue:    newRaw,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
		Description: description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
