// Package library keeps each user's saved resources.
package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services"
	"github.com/campusflow/campus-flow-api/utils/dberrors"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/campusflow/campus-flow-api/utils/optimistic"
	"gorm.io/gorm"
)

const Table = "saved_resources"

// DefaultIdleTTL is how long an unused saved set stays in memory
const DefaultIdleTTL = 10 * time.Minute

// ProgressRecorder is told when a resource is saved
type ProgressRecorder interface {
	RecordProgress(ctx context.Context, userID uint, action model.ActivityType) error
}

type Service struct {
	db        *gorm.DB
	publisher realtime.Publisher
	progress  ProgressRecorder
	sets      sync.Map // user id -> *SavedSet
	now       func() time.Time
}

func NewService(db *gorm.DB, publisher realtime.Publisher, progress ProgressRecorder) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{db: db, publisher: publisher, progress: progress, now: time.Now}
}

// Set returns the user's saved set, creating it on first use
func (s *Service) Set(userID uint) *SavedSet {
	v, _ := s.sets.LoadOrStore(userID, &SavedSet{userID: userID, svc: s})
	set := v.(*SavedSet)
	set.lastUsed.Store(s.now().UnixNano())
	return set
}

// Forget drops the cached set of a user; the next Set reloads it
func (s *Service) Forget(userID uint) {
	s.sets.Delete(userID)
}

func (s *Service) forgetAll() {
	s.sets.Range(func(k, _ interface{}) bool {
		s.sets.Delete(k)
		return true
	})
}

// EvictIdle drops sets not used within ttl and returns how many went
func (s *Service) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl).UnixNano()
	evicted := 0
	s.sets.Range(func(k, v interface{}) bool {
		if v.(*SavedSet).lastUsed.Load() < cutoff {
			s.sets.Delete(k)
			evicted++
		}
		return true
	})
	return evicted
}

// Watch keeps cached sets in line with writes made elsewhere: a saved_resources
// change from another instance or from SQL drops that user's set, and a deleted
// resource drops every set. Idle sets are evicted on each tick. It returns when
// ctx ends.
func (s *Service) Watch(ctx context.Context, hub *realtime.Hub, idleTTL time.Duration) {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	sub := hub.Subscribe(realtime.ForTables(Table, "resources"), 64)
	defer sub.Close()

	tick := time.NewTicker(idleTTL / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.EvictIdle(idleTTL)
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			if msg.Origin == hub.InstanceID() {
				continue
			}
			switch {
			case msg.Change.Table == Table:
				s.Forget(msg.Change.UserID)
			case msg.Change.Type == realtime.EventDelete:
				s.forgetAll()
			}
		}
	}
}

func (s *Service) isSaved(ctx context.Context, userID, resourceID uint) (bool, error) {
	var row model.SavedResource
	err := s.db.WithContext(ctx).
		Select("id").
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to check saved resource: %w", err)
	}
	return true, nil
}

// List returns the saved rows with their resources, newest first
func (s *Service) List(ctx context.Context, userID uint) ([]model.SavedResource, error) {
	var saved []model.SavedResource
	err := s.db.WithContext(ctx).
		Preload("Resource").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&saved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list saved resources: %w", err)
	}
	return saved, nil
}

func (s *Service) save(ctx context.Context, userID, resourceID uint) error {
	row := model.SavedResource{UserID: userID, ResourceID: resourceID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return services.RecordActivity(tx, userID, resourceID, model.ActivityTypeSave)
	})
	if err != nil {
		if dberrors.IsDuplicate(err) {
			return nil
		}
		return fmt.Errorf("failed to save resource: %w", err)
	}

	s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: realtime.EventInsert, RowID: row.ID, UserID: userID})
	if s.progress != nil {
		if err := s.progress.RecordProgress(ctx, userID, model.ActivityTypeSave); err != nil {
			logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to record save progress")
		}
	}
	return nil
}

func (s *Service) unsave(ctx context.Context, userID, resourceID uint) error {
	var row model.SavedResource
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err == nil {
		err = s.db.WithContext(ctx).Delete(&row).Error
	}
	if err != nil {
		return fmt.Errorf("failed to remove saved resource: %w", err)
	}
	s.publisher.PublishChange(realtime.ChangeEvent{Table: Table, Type: realtime.EventDelete, RowID: row.ID, UserID: userID})
	return nil
}

// SavedSet is the in-memory view of one user's saved resource ids
type SavedSet struct {
	userID   uint
	svc      *Service
	lastUsed atomic.Int64

	mu     sync.RWMutex
	loaded bool
	ids    map[uint]bool
}

// Load reads the saved ids once; later calls are no-ops
func (s *SavedSet) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	var ids []uint
	err := s.svc.db.WithContext(ctx).Model(&model.SavedResource{}).
		Where("user_id = ?", s.userID).
		Pluck("resource_id", &ids).Error
	if err != nil {
		return fmt.Errorf("failed to load saved resources: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.ids = make(map[uint]bool, len(ids))
		for _, id := range ids {
			s.ids[id] = true
		}
		s.loaded = true
	}
	return nil
}

func (s *SavedSet) IsSaved(resourceID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[resourceID]
}

// IDs returns the saved resource ids in no particular order
func (s *SavedSet) IDs() []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// Toggle flips the saved state at once and then writes it. If the write
// fails the previous state comes back and the user gets an error toast.
// The direction comes from the stored row, not the cached view.
func (s *SavedSet) Toggle(ctx context.Context, resourceID uint) (bool, error) {
	if err := s.Load(ctx); err != nil {
		return false, err
	}
	current, err := s.svc.isSaved(ctx, s.userID, resourceID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.setLocked(resourceID, current)
	s.mu.Unlock()

	var nowSaved bool
	err = optimistic.Mutation[bool]{
		Apply: func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			prev := s.ids[resourceID]
			nowSaved = !prev
			s.setLocked(resourceID, nowSaved)
			return prev
		},
		Commit: func(ctx context.Context) error {
			if nowSaved {
				return s.svc.save(ctx, s.userID, resourceID)
			}
			return s.svc.unsave(ctx, s.userID, resourceID)
		},
		Rollback: func(prev bool) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.setLocked(resourceID, prev)
		},
		OnError: func(err error) {
			title := "Failed to save resource"
			if !nowSaved {
				title = "Failed to remove saved resource"
			}
			s.svc.publisher.PublishToast(s.userID, realtime.Toast{Level: realtime.ToastError, Title: title, Message: err.Error()})
		},
	}.Run(ctx)
	if err != nil {
		return !nowSaved, err
	}
	return nowSaved, nil
}

func (s *SavedSet) setLocked(resourceID uint, saved bool) {
	if saved {
		s.ids[resourceID] = true
	} else {
		delete(s.ids, resourceID)
	}
}
