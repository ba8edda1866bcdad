package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services"
	"github.com/campusflow/campus-flow-api/services/storage"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/campusflow/campus-flow-api/utils/pdfvalidation"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	Table = "resources"

	// ApprovalReward is credited to the uploader when a resource is approved
	ApprovalReward = 10

	// MaxFileSizeMB caps non-PDF uploads
	MaxFileSizeMB = 100
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrForbidden     = errors.New("not allowed to modify this resource")
	ErrNotEditable   = errors.New("only pending resources can be edited")
	ErrNotPending    = errors.New("resource has already been reviewed")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrInvalidUpload = errors.New("invalid upload")
)

// ProgressRecorder is told about actions that count toward missions
type ProgressRecorder interface {
	RecordProgress(ctx context.Context, userID uint, action model.ActivityType) error
}

// Deps are the collaborators of Service; nil optional fields are replaced with no-ops
type Deps struct {
	DB            *gorm.DB
	Source        Source
	Cache         cache.Cache
	Store         storage.ObjectStore
	Publisher     realtime.Publisher
	Notifications *services.NotificationService
	Mailer        services.Mailer
	Progress      ProgressRecorder
	CacheTTL      time.Duration
}

// Service owns the resource lifecycle and the cached list query
type Service struct {
	db            *gorm.DB
	source        Source
	queries       *QueryCache
	store         storage.ObjectStore
	publisher     realtime.Publisher
	notifications *services.NotificationService
	mailer        services.Mailer
	progress      ProgressRecorder
}

func NewService(d Deps) *Service {
	if d.Source == nil {
		d.Source = NewGORMSource(d.DB)
	}
	if d.Store == nil {
		d.Store = storage.Disabled{}
	}
	if d.Publisher == nil {
		d.Publisher = realtime.NopPublisher{}
	}
	if d.Notifications == nil {
		d.Notifications = services.NewNotificationService(d.DB, d.Publisher)
	}
	return &Service{
		db:            d.DB,
		source:        d.Source,
		queries:       NewQueryCache(d.Cache, d.CacheTTL),
		store:         d.Store,
		publisher:     d.Publisher,
		notifications: d.Notifications,
		mailer:        d.Mailer,
		progress:      d.Progress,
	}
}

// Queries exposes the list cache so it can be wired to change events
func (s *Service) Queries() *QueryCache {
	return s.queries
}

// List runs the filter pipeline, serving repeated filters from the cache
func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	gen := s.queries.Generation(ctx)
	if items, ok := s.queries.Get(ctx, gen, f); ok {
		return items, nil
	}

	items, err := Run(ctx, s.source, f)
	if err != nil {
		return nil, err
	}
	s.queries.Set(ctx, gen, f, items)
	return items, nil
}

// Mine lists every resource uploaded by the user, whatever its status
func (s *Service) Mine(ctx context.Context, userID uint, sortBy Sort) ([]Item, error) {
	return s.List(ctx, Filter{UploaderID: model.FlexibleID(userID), Sort: sortBy})
}

// Pending lists resources awaiting moderation, oldest first
func (s *Service) Pending(ctx context.Context) ([]Item, error) {
	var rows []model.Resource
	err := s.db.WithContext(ctx).
		Where("status = ?", model.ResourceStatusPending).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending resources: %w", err)
	}
	return enrich(ctx, s.source, rows)
}

func (s *Service) find(ctx context.Context, id uint) (*model.Resource, error) {
	var r model.Resource
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch resource: %w", err)
	}
	return &r, nil
}

// visible hides unapproved rows from everyone but their uploader and admins
func visible(r *model.Resource, viewerID uint, isAdmin bool) bool {
	return r.Status == model.ResourceStatusApproved || r.UploaderID == viewerID || isAdmin
}

// Get returns one enriched resource
func (s *Service) Get(ctx context.Context, id, viewerID uint, isAdmin bool) (*Item, error) {
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(r, viewerID, isAdmin) {
		return nil, ErrNotFound
	}

	items, err := enrich(ctx, s.source, []model.Resource{*r})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// FileInput is an uploaded file
type FileInput struct {
	Name    string
	Content []byte
}

// UploadInput describes a new resource
type UploadInput struct {
	UploaderID  uint
	Title       string             `validate:"required,min=3,max=255"`
	Description string             `validate:"max=5000"`
	Type        model.ResourceType `validate:"required,resource_type"`
	Subject     string             `validate:"max=255"`
	CollegeID   uint               `validate:"required"`
	CourseID    uint               `validate:"required"`
	YearID      *uint
	ExternalURL string `validate:"omitempty,http_url"`
	File        *FileInput
}

func (in *UploadInput) check() error {
	if err := validation.ValidateStruct(in); err != nil {
		return err
	}
	if in.Type.IsExternal() {
		if in.ExternalURL == "" {
			return fmt.Errorf("%w: %s resources need a url", ErrInvalidUpload, in.Type)
		}
		return nil
	}
	if in.File == nil || len(in.File.Content) == 0 {
		return fmt.Errorf("%w: %s resources need a file", ErrInvalidUpload, in.Type)
	}
	return nil
}

// Upload stores the file (or link) and creates a pending resource
func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.Resource, error) {
	in.Title = validation.SanitizeString(in.Title)
	in.Description = validation.SanitizeString(in.Description)
	in.Subject = validation.SanitizeString(in.Subject)
	if err := in.check(); err != nil {
		return nil, err
	}

	r := &model.Resource{
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Subject:     in.Subject,
		CollegeID:   in.CollegeID,
		CourseID:    in.CourseID,
		YearID:      in.YearID,
		UploaderID:  in.UploaderID,
		Status:      model.ResourceStatusPending,
	}

	if in.Type.IsExternal() {
		r.ExternalURL = in.ExternalURL
	} else {
		if err := s.putFile(ctx, r, in.File); err != nil {
			return nil, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("failed to create resource: %w", err)
		}
		return services.RecordActivity(tx, in.UploaderID, r.ID, model.ActivityTypeUpload)
	})
	if err != nil {
		if r.StorageKey != "" {
			if delErr := s.store.Delete(context.Background(), r.StorageKey); delErr != nil {
				logger.Warn().Err(delErr).Str("key", r.StorageKey).Msg("failed to remove orphaned upload")
			}
		}
		return nil, err
	}

	logger.Info().Uint("resource_id", r.ID).Uint("uploader_id", r.UploaderID).Str("type", string(r.Type)).Msg("resource uploaded")
	s.changed(ctx, r, realtime.EventInsert)
	s.recordProgress(ctx, in.UploaderID, model.ActivityTypeUpload)
	return r, nil
}

func (s *Service) putFile(ctx context.Context, r *model.Resource, file *FileInput) error {
	isPDF := strings.EqualFold(filepath.Ext(file.Name), ".pdf") || pdfvalidation.IsPDF(file.Content)
	if isPDF {
		result, err := pdfvalidation.Validate(file.Content, pdfvalidation.LimitsFor(r.Type))
		if err != nil {
			return err
		}
		if !result.Valid {
			return fmt.Errorf("%w: %s", ErrInvalidUpload, result.Error)
		}
		r.PageCount = result.PageCount
	} else if len(file.Content) > MaxFileSizeMB*1024*1024 {
		return fmt.Errorf("%w: file size exceeds maximum allowed size of %dMB", ErrInvalidUpload, MaxFileSizeMB)
	}

	key := storage.GenerateKey(r.CourseID, file.Name)
	url, err := s.store.Put(ctx, key, file.Content, storage.ContentType(file.Name))
	if err != nil {
		return fmt.Errorf("failed to store file: %w", err)
	}
	r.FileURL = url
	r.StorageKey = key
	r.FileSize = int64(len(file.Content))
	return nil
}

// UpdateInput carries the editable fields; nil fields are left alone
type UpdateInput struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Subject     *string `json:"subject" validate:"omitempty,max=255"`
}

// Update edits a pending resource owned by userID
func (s *Service) Update(ctx context.Context, id, userID uint, in UpdateInput) (*model.Resource, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UploaderID != userID {
		return nil, ErrForbidden
	}
	if r.Status != model.ResourceStatusPending {
		return nil, ErrNotEditable
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = validation.SanitizeString(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = validation.SanitizeString(*in.Description)
	}
	if in.Subject != nil {
		updates["subject"] = validation.SanitizeString(*in.Subject)
	}
	if len(updates) == 0 {
		return r, nil
	}

	if err := s.db.WithContext(ctx).Model(r).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}
	s.changed(ctx, r, realtime.EventUpdate)
	return r, nil
}

// Delete removes a resource and its stored file. Owners and admins only.
func (s *Service) Delete(ctx context.Context, id, userID uint, isAdmin bool) error {
	r, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if r.UploaderID != userID && !isAdmin {
		return ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(&model.Resource{}, r.ID).Error; err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	if r.StorageKey != "" {
		if err := s.store.Delete(ctx, r.StorageKey); err != nil {
			logger.Warn().Err(err).Str("key", r.StorageKey).Msg("failed to delete stored file")
		}
	}
	s.changed(ctx, r, realtime.EventDelete)
	return nil
}

// Download counts a download and returns the URL to fetch. Every call counts,
// including downloads by the uploader.
func (s *Service) Download(ctx context.Context, id, userID uint, isAdmin bool) (string, error) {
	r, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	if !visible(r, userID, isAdmin) {
		return "", ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Resource{}).Where("id = ?", r.ID).
			UpdateColumn("downloads", gorm.Expr("downloads + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to count download: %w", err)
		}
		return services.RecordActivity(tx, userID, r.ID, model.ActivityTypeDownload)
	})
	if err != nil {
		return "", err
	}

	s.changed(ctx, r, realtime.EventUpdate)
	s.recordProgress(ctx, userID, model.ActivityTypeDownload)
	return r.DownloadURL(), nil
}

// Rate stores the user's stars and recomputes the average
func (s *Service) Rate(ctx context.Context, id, userID uint, stars int) (*model.Resource, error) {
	if stars < 1 || stars > 5 {
		return nil, ErrInvalidRating
	}
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.ResourceStatusApproved {
		return nil, ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rating := model.ResourceRating{ResourceID: r.ID, UserID: userID, Stars: stars}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stars", "updated_at"}),
		}).Create(&rating).Error; err != nil {
			return fmt.Errorf("failed to save rating: %w", err)
		}

		var agg struct {
			Average float64
			Count   int
		}
		if err := tx.Model(&model.ResourceRating{}).
			Select("COALESCE(AVG(stars), 0) AS average, COUNT(*) AS count").
			Where("resource_id = ?", r.ID).
			Scan(&agg).Error; err != nil {
			return fmt.Errorf("failed to aggregate ratings: %w", err)
		}

		if err := tx.Model(&model.Resource{}).Where("id = ?", r.ID).
			UpdateColumns(map[string]interface{}{"rating": agg.Average, "rating_count": agg.Count}).Error; err != nil {
			return fmt.Errorf("failed to update rating: %w", err)
		}
		r.Rating, r.RatingCount = agg.Average, agg.Count
		return services.RecordActivity(tx, userID, r.ID, model.ActivityTypeRate)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, r, realtime.EventUpdate)
	s.recordProgress(ctx, userID, model.ActivityTypeRate)
	return r, nil
}

// ModerateInput is an admin decision
type ModerateInput struct {
	Approve  bool
	Comments string
}

// Moderate approves or rejects a pending resource. The status change, the
// uploader's notification, the reward and the audit entry commit together.
func (s *Service) Moderate(ctx context.Context, id, adminID uint, in ModerateInput) (*model.Resource, error) {
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.ResourceStatusPending {
		return nil, ErrNotPending
	}

	status := model.ResourceStatusRejected
	action := "resource_reject"
	notifType := model.NotificationTypeResourceRejected
	title := "Resource rejected"
	message := fmt.Sprintf("Your resource %q was not approved.", r.Title)
	reward := 0
	if in.Approve {
		status = model.ResourceStatusApproved
		action = "resource_approve"
		notifType = model.NotificationTypeResourceApproved
		title = "Resource approved"
		message = fmt.Sprintf("Your resource %q is now live. You earned %d coins!", r.Title, ApprovalReward)
		reward = ApprovalReward
	}
	comments := validation.SanitizeString(in.Comments)
	now := time.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Resource{}).
			Where("id = ? AND status = ?", r.ID, model.ResourceStatusPending).
			Updates(map[string]interface{}{
				"status":         status,
				"admin_comments": comments,
				"reviewed_by":    adminID,
				"reviewed_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}

		if reward > 0 {
			if err := tx.Model(&model.Profile{}).Where("id = ?", r.UploaderID).
				UpdateColumn("coins", gorm.Expr("coins + ?", reward)).Error; err != nil {
				return fmt.Errorf("failed to credit coins: %w", err)
			}
		}

		if _, err := s.notifications.CreateNotificationTx(tx, services.CreateNotificationRequest{
			UserID:     r.UploaderID,
			ResourceID: &r.ID,
			Type:       notifType,
			Title:      title,
			Message:    message,
			Metadata: &model.NotificationMetadata{
				ResourceTitle: r.Title,
				AdminComments: comments,
				CoinsAwarded:  reward,
			},
		}); err != nil {
			return err
		}

		oldValue, _ := json.Marshal(map[string]interface{}{"status": r.Status})
		newValue, _ := json.Marshal(map[string]interface{}{"status": status, "admin_comments": comments})
		audit := model.AdminAuditLog{
			AdminID:     adminID,
			Action:      action,
			Target:      Table,
			TargetID:    r.ID,
			OldValue:    oldValue,
			NewValue:    newValue,
			Description: title,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.Status, r.AdminComments, r.ReviewedBy, r.ReviewedAt = status, comments, &adminID, &now
	logger.Info().Uint("resource_id", r.ID).Uint("admin_id", adminID).Str("status", string(status)).Msg("resource moderated")

	s.changed(ctx, r, realtime.EventUpdate)
	level := realtime.ToastError
	if in.Approve {
		level = realtime.ToastSuccess
	}
	s.publisher.PublishToast(r.UploaderID, realtime.Toast{Level: level, Title: title, Message: message})
	s.sendModerationEmail(ctx, r, in.Approve, comments)
	return r, nil
}

func (s *Service) sendModerationEmail(ctx context.Context, r *model.Resource, approved bool, comments string) {
	if s.mailer == nil {
		return
	}

	var user model.User
	if err := s.db.WithContext(ctx).Select("id", "email").First(&user, r.UploaderID).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", r.UploaderID).Msg("moderation email skipped, uploader not found")
		return
	}
	var profile model.Profile
	s.db.WithContext(ctx).Select("id", "full_name").Where("id = ?", r.UploaderID).Limit(1).Find(&profile)

	if err := s.mailer.SendModerationResult(ctx, user.Email, profile.FullName, r.Title, approved, comments); err != nil &&
		!errors.Is(err, services.ErrEmailNotConfigured) {
		logger.Warn().Err(err).Uint("resource_id", r.ID).Msg("failed to send moderation email")
	}
}

func (s *Service) changed(ctx context.Context, r *model.Resource, t realtime.EventType) {
	s.queries.Invalidate(ctx)
	s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: t, RowID: r.ID, UserID: r.UploaderID})
}

func (s *Service) recordProgress(ctx context.Context, userID uint, action model.ActivityType) {
	if s.progress == nil {
		return
	}
	if err := s.progress.RecordProgress(ctx, userID, action); err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Str("action", string(action)).Msg("failed to record mission progress")
	}
}
