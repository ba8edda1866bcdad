package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/campusflow/campus-flow-api/utils/optimistic"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const NotificationsTable = "notifications"

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService handles user notifications
type NotificationService struct {
	db        *gorm.DB
	publisher realtime.Publisher
	inboxes   sync.Map // user id -> *Inbox
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, publisher realtime.Publisher) *NotificationService {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &NotificationService{db: db, publisher: publisher}
}

// CreateNotificationRequest represents a request to create a notification
type CreateNotificationRequest struct {
	UserID     uint
	ResourceID *uint
	Type       model.NotificationType
	Title      string
	Message    string
	Metadata   *model.NotificationMetadata
}

// ListNotificationsOptions represents options for listing notifications
type ListNotificationsOptions struct {
	UserID     uint
	UnreadOnly bool
	Limit      int
	Offset     int
}

func (s *NotificationService) changed(userID, id uint, t realtime.EventType) {
	s.publisher.PublishChange(realtime.ChangeEvent{Table: NotificationsTable, Type: t, RowID: id, UserID: userID})
}

// CreateNotification creates a new notification for a user
func (s *NotificationService) CreateNotification(ctx context.Context, req CreateNotificationRequest) (*model.Notification, error) {
	return s.createWith(s.db.WithContext(ctx), req)
}

// CreateNotificationTx creates the notification inside an existing transaction.
// The change event is published immediately; callers roll back rarely enough
// that a spurious refetch is harmless.
func (s *NotificationService) CreateNotificationTx(tx *gorm.DB, req CreateNotificationRequest) (*model.Notification, error) {
	return s.createWith(tx, req)
}

func (s *NotificationService) createWith(db *gorm.DB, req CreateNotificationRequest) (*model.Notification, error) {
	notification := &model.Notification{
		UserID:     req.UserID,
		ResourceID: req.ResourceID,
		Type:       req.Type,
		Title:      req.Title,
		Message:    req.Message,
	}

	if req.Metadata != nil {
		metadataJSON, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(metadataJSON)
	}

	if err := db.Create(notification).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	logger.Debug().Uint("notification_id", notification.ID).Uint("user_id", req.UserID).Str("title", req.Title).Msg("notification created")
	s.changed(req.UserID, notification.ID, realtime.EventInsert)
	s.forget(req.UserID)
	return notification, nil
}

// GetNotificationsByUser retrieves notifications for a user, newest first
func (s *NotificationService) GetNotificationsByUser(ctx context.Context, opts ListNotificationsOptions) ([]model.Notification, int64, error) {
	var notifications []model.Notification
	var total int64

	query := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ?", opts.UserID)

	if opts.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	} else {
		query = query.Limit(50)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	if err := query.Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	return notifications, total, nil
}

// SetRead sets the read flag of one notification
func (s *NotificationService) SetRead(ctx context.Context, notificationID, userID uint, read bool) error {
	result := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", read)

	if result.Error != nil {
		return fmt.Errorf("failed to update notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}

	s.changed(userID, notificationID, realtime.EventUpdate)
	return nil
}

// MarkAllAsRead marks all notifications for a user as read
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.changed(userID, 0, realtime.EventUpdate)
	}
	s.forget(userID)
	return result.RowsAffected, nil
}

// DeleteNotification deletes a notification
func (s *NotificationService) DeleteNotification(ctx context.Context, notificationID, userID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&model.Notification{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}

	s.changed(userID, notificationID, realtime.EventDelete)
	s.forget(userID)
	return nil
}

// GetUnreadCount returns the count of unread notifications for a user
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// CleanupOldNotifications removes read notifications older than the given age
func (s *NotificationService) CleanupOldNotifications(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result := s.db.WithContext(ctx).
		Where("created_at < ? AND read = ?", cutoff, true).
		Delete(&model.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup old notifications: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		logger.Info().Int64("deleted", result.RowsAffected).Msg("cleaned up old notifications")
	}
	return result.RowsAffected, nil
}

// Inbox returns the cached read-state view for a user
func (s *NotificationService) Inbox(userID uint) *Inbox {
	v, _ := s.inboxes.LoadOrStore(userID, &Inbox{userID: userID, svc: s})
	return v.(*Inbox)
}

func (s *NotificationService) forget(userID uint) {
	if v, ok := s.inboxes.Load(userID); ok {
		v.(*Inbox).invalidate()
	}
}

// Inbox holds a user's recent notifications and flips read state optimistically
type Inbox struct {
	userID uint
	svc    *NotificationService

	mu     sync.Mutex
	loaded bool
	items  []model.Notification
}

func (b *Inbox) invalidate() {
	b.mu.Lock()
	b.loaded = false
	b.items = nil
	b.mu.Unlock()
}

func (b *Inbox) ensure(ctx context.Context) error {
	b.mu.Lock()
	loaded := b.loaded
	b.mu.Unlock()
	if loaded {
		return nil
	}

	items, _, err := b.svc.GetNotificationsByUser(ctx, ListNotificationsOptions{UserID: b.userID})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.items, b.loaded = items, true
	b.mu.Unlock()
	return nil
}

// Items returns a copy of the cached notifications
func (b *Inbox) Items(ctx context.Context) ([]model.Notification, error) {
	if err := b.ensure(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Notification(nil), b.items...), nil
}

// Unread counts unread entries in the cached view
func (b *Inbox) Unread(ctx context.Context) (int, error) {
	if err := b.ensure(ctx); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, item := range b.items {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

func (b *Inbox) has(id uint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// ToggleRead flips the read flag locally, then writes it. A failed write
// restores the flag and raises an error toast.
func (b *Inbox) ToggleRead(ctx context.Context, notificationID uint) (bool, error) {
	if err := b.ensure(ctx); err != nil {
		return false, err
	}
	if !b.has(notificationID) {
		return false, ErrNotificationNotFound
	}

	var next bool
	err := optimistic.Mutation[*bool]{
		Apply: func() *bool {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i := range b.items {
				if b.items[i].ID == notificationID {
					prev := b.items[i].Read
					b.items[i].Read = !prev
					next = !prev
					return &prev
				}
			}
			return nil
		},
		Commit: func(ctx context.Context) error {
			return b.svc.SetRead(ctx, notificationID, b.userID, next)
		},
		Rollback: func(prev *bool) {
			if prev == nil {
				return
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			for i := range b.items {
				if b.items[i].ID == notificationID {
					b.items[i].Read = *prev
				}
			}
		},
		OnError: func(err error) {
			b.svc.publisher.PublishToast(b.userID, realtime.Toast{
				Level:   realtime.ToastError,
				Title:   "Could not update notification",
				Message: err.Error(),
			})
		},
	}.Run(ctx)
	if err != nil {
		return false, err
	}
	return next, nil
}
