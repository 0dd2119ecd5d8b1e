// Package scheduler runs cron jobs against the agent: prompt jobs inject a
// message into the tool loop, skill jobs trigger a oneshot skill.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clawinfra/clawguard/internal/config"
)

// Executor is the slice of the agent the scheduler needs.
type Executor interface {
	HandleMessage(ctx context.Context, actor, message string) (string, error)
}

// SkillTrigger fires oneshot skills.
type SkillTrigger interface {
	Trigger(name string) error
}

// JobStatus is a snapshot of one job's run history.
type JobStatus struct {
	Name       string    `json:"name"`
	Expr       string    `json:"expr"`
	Kind       string    `json:"kind"`
	Enabled    bool      `json:"enabled"`
	NextRunAt  time.Time `json:"next_run_at,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	RunCount   int64     `json:"run_count"`
	ErrorCount int64     `json:"error_count"`
	LastError  string    `json:"last_error,omitempty"`
}

type jobEntry struct {
	cfg        config.JobConfig
	entryID    cron.EntryID
	lastRunAt  time.Time
	runCount   int64
	errorCount int64
	lastError  string
}

// Scheduler owns the cron runner and the job table.
type Scheduler struct {
	cron     *cron.Cron
	executor Executor
	skills   SkillTrigger
	logger   *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	baseCtx context.Context
}

// New builds a scheduler from the configured job list. Invalid jobs are
// logged and skipped rather than failing startup.
func New(jobs []config.JobConfig, executor Executor, skills SkillTrigger, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(),
		executor: executor,
		skills:   skills,
		logger:   logger.With("component", "scheduler"),
		jobs:     make(map[string]*jobEntry),
		baseCtx:  context.Background(),
	}
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			s.logger.Warn("skipping job", "job", job.Name, "error", err)
		}
	}
	return s
}

// Add registers a job. Disabled jobs are tracked but never scheduled.
func (s *Scheduler) Add(job config.JobConfig) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("scheduler: job %q: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("scheduler: duplicate job %q", job.Name)
	}

	entry := &jobEntry{cfg: job}
	if job.Enabled {
		id, err := s.cron.AddFunc(job.Expr, func() { s.run(job.Name) })
		if err != nil {
			return fmt.Errorf("scheduler: job %q: bad expression %q: %w", job.Name, job.Expr, err)
		}
		entry.entryID = id
	}
	s.jobs[job.Name] = entry
	s.logger.Info("job registered", "job", job.Name, "expr", job.Expr, "kind", job.Kind, "enabled", job.Enabled)
	return nil
}

// Remove unschedules and forgets a job.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("scheduler: job %q not found", name)
	}
	if entry.entryID != 0 {
		s.cron.Remove(entry.entryID)
	}
	delete(s.jobs, name)
	s.logger.Info("job removed", "job", name)
	return nil
}

// Run starts the cron runner and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	count := len(s.jobs)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs", count)
	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: job %q not found", name)
	}
	s.run(name)
	return nil
}

// Jobs returns a snapshot of every registered job.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, entry := range s.jobs {
		status := JobStatus{
			Name:       name,
			Expr:       entry.cfg.Expr,
			Kind:       entry.cfg.Kind,
			Enabled:    entry.cfg.Enabled,
			LastRunAt:  entry.lastRunAt,
			RunCount:   entry.runCount,
			ErrorCount: entry.errorCount,
			LastError:  entry.lastError,
		}
		if entry.entryID != 0 {
			status.NextRunAt = s.cron.Entry(entry.entryID).Next
		}
		out = append(out, status)
	}
	return out
}

// run executes one job and records the outcome.
func (s *Scheduler) run(name string) {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	cfg := entry.cfg
	ctx := s.baseCtx
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info("job running", "job", name, "kind", cfg.Kind)

	var err error
	switch cfg.Kind {
	case "prompt":
		_, err = s.executor.HandleMessage(ctx, "scheduler:"+name, cfg.Prompt)
	case "skill":
		err = s.skills.Trigger(cfg.Skill)
	default:
		err = fmt.Errorf("unknown job kind %q", cfg.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.lastRunAt = time.Now()
	entry.runCount++
	if err != nil {
		entry.errorCount++
		entry.lastError = err.Error()
		s.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
		return
	}
	entry.lastError = ""
	s.logger.Info("job completed", "job", name, "duration", time.Since(start))
}
