// Package scheduler runs the recurring crawl, digest, and cleanup jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Handler is one scheduled job body.
type Handler func(ctx context.Context) error

type job struct {
	name     string
	schedule string
	handler  Handler
	entryID  cron.EntryID

	// runMu serializes executions of this job. An overlapping tick is
	// skipped, not queued.
	runMu sync.Mutex

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
	running bool
}

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Running  bool      `json:"running"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	NextRun  time.Time `json:"next_run,omitempty"`
}

// Scheduler wraps a cron runner with named jobs, manual triggers, and
// panic isolation.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	baseCtx context.Context
	running bool
}

// New builds a scheduler whose cron expressions are evaluated in loc.
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Register adds a named job. The schedule accepts standard cron specs and
// the @every form.
func (s *Scheduler) Register(name, schedule string, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	j := &job{name: name, schedule: schedule, handler: handler}
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.execute(j)
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	j.entryID = entryID
	s.jobs[name] = j

	s.logger.Info("job registered",
		zap.String("job", name),
		zap.String("schedule", schedule))
	return nil
}

// Start begins ticking. The context is the base for every job execution;
// canceling it stops in-flight handlers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.baseCtx = ctx
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop halts ticking and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Trigger runs a job immediately in the background. It returns an error
// only when the job name is unknown.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	go s.execute(j)
	return nil
}

// Jobs lists the status of every registered job.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		j.mu.Lock()
		out = append(out, JobStatus{
			Name:     j.name,
			Schedule: j.schedule,
			Running:  j.running,
			LastRun:  j.lastRun,
			LastErr:  j.lastErr,
			NextRun:  entry.Next,
		})
		j.mu.Unlock()
	}
	return out
}

func (s *Scheduler) execute(j *job) {
	if !j.runMu.TryLock() {
		s.logger.Warn("job still running, tick skipped", zap.String("job", j.name))
		return
	}
	defer j.runMu.Unlock()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	j.mu.Lock()
	j.running = true
	j.lastRun = time.Now()
	j.mu.Unlock()

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic: %v", r)
				s.logger.Error("job panicked",
					zap.String("job", j.name),
					zap.Any("panic", r))
			}
		}()
		runErr = j.handler(ctx)
	}()

	j.mu.Lock()
	j.running = false
	j.lastErr = ""
	if runErr != nil {
		j.lastErr = runErr.Error()
	}
	j.mu.Unlock()

	if runErr != nil {
		s.logger.Error("job failed", zap.String("job", j.name), zap.Error(runErr))
		return
	}
	s.logger.Info("job finished", zap.String("job", j.name))
}
