// Package admin serves the moderation dashboard: live aggregate counters and
// the audit trail.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Stats are the four dashboard counters
type Stats struct {
	PendingResources int64     `json:"pending_resources"`
	TotalResources   int64     `json:"total_resources"`
	TotalProfiles    int64     `json:"total_profiles"`
	TotalDownloads   int64     `json:"total_downloads"`
	ComputedAt       time.Time `json:"computed_at"`
}

type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// Compute recounts everything from scratch
func (s *StatsService) Compute(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{ComputedAt: time.Now().UTC()}

	if err := db.Model(&model.Resource{}).Where("status = ?", model.ResourceStatusPending).
		Count(&stats.PendingResources).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending resources: %w", err)
	}
	if err := db.Model(&model.Resource{}).Count(&stats.TotalResources).Error; err != nil {
		return nil, fmt.Errorf("failed to count resources: %w", err)
	}
	if err := db.Model(&model.Profile{}).Count(&stats.TotalProfiles).Error; err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	if err := db.Model(&model.Resource{}).Select("COALESCE(SUM(downloads), 0)").
		Row().Scan(&stats.TotalDownloads); err != nil {
		return nil, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return stats, nil
}

// Watcher recomputes the counters on every resources or profiles change and
// pushes them to admin streams.
// Every instance runs its own watcher, so output stays on the local hub.
type Watcher struct {
	stats  *StatsService
	hub    *realtime.Hub
	logger zerolog.Logger
}

func NewWatcher(stats *StatsService, hub *realtime.Hub, logger zerolog.Logger) *Watcher {
	return &Watcher{stats: stats, hub: hub, logger: logger}
}

// Run blocks until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) {
	sub := w.hub.Subscribe(realtime.ForTables("resources", "profiles"), 128)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			var inserted []uint
			if isResourceInsert(msg) {
				inserted = append(inserted, msg.Change.RowID)
			}
			// a burst of events shares one recount; every insert keeps its toast
		drain:
			for {
				select {
				case next, ok := <-sub.C:
					if !ok {
						return
					}
					if isResourceInsert(next) {
						inserted = append(inserted, next.Change.RowID)
					}
				default:
					break drain
				}
			}
			w.handle(ctx, inserted)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, insertedIDs []uint) {
	for _, id := range insertedIDs {
		w.hub.PublishLocal(realtime.Message{
			Kind:      realtime.KindToast,
			AdminOnly: true,
			Toast: &realtime.Toast{
				Level:   realtime.ToastInfo,
				Title:   "New resource uploaded",
				Message: fmt.Sprintf("Resource #%d is waiting for review", id),
			},
		})
	}

	stats, err := w.stats.Compute(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to recompute admin stats")
		return
	}
	w.hub.PublishLocal(realtime.Message{Kind: realtime.KindStats, AdminOnly: true, Data: stats})
}

func isResourceInsert(m realtime.Message) bool {
	return m.Change != nil && m.Change.Table == "resources" && m.Change.Type == realtime.EventInsert
}
