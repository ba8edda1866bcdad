package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// JobFunc does one unit of scheduled work and returns a short summary
// plus optional metadata stored on the job log.
type JobFunc func(ctx context.Context) (string, map[string]interface{}, error)

type job struct {
	name     string
	schedule string
	timeout  time.Duration
	run      JobFunc
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron   *cron.Cron
	db     *gorm.DB
	jobs   map[string]job
	logger zerolog.Logger
	now    func() time.Time
}

// NewCronManager creates a manager with the standard jobs. Schedules use
// seconds precision and are evaluated in UTC so they line up with mission resets.
func NewCronManager(db *gorm.DB, deps Deps) *CronManager {
	m := &CronManager{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		db:     db,
		jobs:   make(map[string]job),
		logger: logger.Component("cron"),
		now:    time.Now,
	}
	for _, j := range standardJobs(deps) {
		m.jobs[j.name] = j
	}
	return m
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	m.logger.Info().Int("jobs", len(m.jobs)).Msg("starting cron jobs")

	for _, name := range m.JobNames() {
		j := m.jobs[name]
		if _, err := m.cron.AddFunc(j.schedule, func() { _ = m.execute(j) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}

	m.cron.Start()
	return nil
}

// Stop waits for running jobs to finish
func (m *CronManager) Stop() {
	m.logger.Info().Msg("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// JobNames lists registered jobs in a stable order
func (m *CronManager) JobNames() []string {
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow executes a job immediately, outside its schedule
func (m *CronManager) RunNow(name string) error {
	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("unknown cron job %q", name)
	}
	return m.execute(j)
}

func (m *CronManager) execute(j job) error {
	entry := m.logJobStart(j.name)

	timeout := j.timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	message, meta, err := j.run(ctx)
	if err != nil {
		m.logJobError(entry, err)
		return err
	}
	m.logJobComplete(entry, message, meta)
	return nil
}

func (m *CronManager) logJobStart(jobName string) *model.CronJobLog {
	m.logger.Info().Str("job", jobName).Msg("job started")

	entry := &model.CronJobLog{
		JobName:   jobName,
		Status:    model.CronStatusStarted,
		StartedAt: m.now().UTC(),
		Metadata:  []byte("{}"),
	}
	if err := m.db.Create(entry).Error; err != nil {
		m.logger.Warn().Err(err).Str("job", jobName).Msg("failed to write job log")
	}
	return entry
}

func (m *CronManager) logJobComplete(entry *model.CronJobLog, message string, meta map[string]interface{}) {
	m.logger.Info().Str("job", entry.JobName).Str("result", message).Msg("job completed")
	updates := m.finish(entry, model.CronStatusCompleted)
	updates["message"] = message
	if len(meta) > 0 {
		if raw, err := json.Marshal(meta); err == nil {
			updates["metadata"] = string(raw)
		}
	}
	m.update(entry, updates)
}

func (m *CronManager) logJobError(entry *model.CronJobLog, err error) {
	m.logger.Error().Err(err).Str("job", entry.JobName).Msg("job failed")
	updates := m.finish(entry, model.CronStatusFailed)
	updates["error_msg"] = err.Error()
	m.update(entry, updates)
}

func (m *CronManager) finish(entry *model.CronJobLog, status string) map[string]interface{} {
	completed := m.now().UTC()
	return map[string]interface{}{
		"status":       status,
		"completed_at": completed,
		"duration":     completed.Sub(entry.StartedAt).Milliseconds(),
	}
}

func (m *CronManager) update(entry *model.CronJobLog, updates map[string]interface{}) {
	if entry.ID == 0 {
		return
	}
	if err := m.db.Model(&model.CronJobLog{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
		m.logger.Warn().Err(err).Str("job", entry.JobName).Msg("failed to update job log")
	}
}
