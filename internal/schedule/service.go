// Package schedule runs maintenance actions on cron schedules and records the
// outcome of each run.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stellarlinkco/buildplus/internal/config"
)

// parser accepts five or six field expressions and descriptors such as
// "@daily" or "@every 1h".
var parser = rcron.NewParser(
	rcron.SecondOptional | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor,
)

type Job struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Cron    string   `json:"cron"`
	Action  string   `json:"action"`
	Enabled bool     `json:"enabled"`
	State   JobState `json:"state"`
}

type JobState struct {
	LastRunAt  time.Time `json:"lastRunAt"`
	LastStatus string    `json:"lastStatus,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	Runs       int       `json:"runs"`
}

// Handler performs a job's action and returns a short result for the log.
type Handler func(ctx context.Context, job Job) (string, error)

type Service struct {
	storePath string
	logger    zerolog.Logger

	mu       sync.Mutex
	jobs     []Job
	OnJob    Handler
	cron     *rcron.Cron
	entryMap map[string]rcron.EntryID // job ID -> cron entry ID
	runCtx   context.Context
	cancel   context.CancelFunc
}

func NewService(storePath string, logger zerolog.Logger) *Service {
	return &Service{
		storePath: storePath,
		logger:    logger.With().Str("component", "schedule").Logger(),
		entryMap:  make(map[string]rcron.EntryID),
		runCtx:    context.Background(),
	}
}

// ValidateExpr reports whether expr is a schedule the service can run.
func ValidateExpr(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Load reads persisted jobs. A missing store is not an error.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Sync makes the job list match defs. Jobs are matched by name so their IDs
// and run state survive config edits.
func (s *Service) Sync(defs []config.ScheduleConfig) error {
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("schedule without name")
		}
		if err := ValidateExpr(def.Cron); err != nil {
			return fmt.Errorf("schedule %s: %w", def.Name, err)
		}
		if err := ValidateAction(def.Action); err != nil {
			return fmt.Errorf("schedule %s: %w", def.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]Job, len(s.jobs))
	for _, job := range s.jobs {
		existing[job.Name] = job
	}

	seen := make(map[string]struct{}, len(defs))
	jobs := make([]Job, 0, len(defs))
	for _, def := range defs {
		if _, dup := seen[def.Name]; dup {
			return fmt.Errorf("duplicate schedule name %q", def.Name)
		}
		seen[def.Name] = struct{}{}

		job, ok := existing[def.Name]
		if !ok {
			job = Job{ID: uuid.NewString(), Name: def.Name}
		}
		job.Cron = def.Cron
		job.Action = def.Action
		job.Enabled = !def.Disabled
		jobs = append(jobs, job)
	}

	for id, entryID := range s.entryMap {
		if s.cron != nil {
			s.cron.Remove(entryID)
		}
		delete(s.entryMap, id)
	}
	s.jobs = jobs
	if s.cron != nil {
		for i := range s.jobs {
			if s.jobs[i].Enabled {
				s.registerJob(&s.jobs[i])
			}
		}
	}

	if err := s.save(); err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}

// Start registers the enabled jobs and starts the scheduler. Cancelling ctx
// stops it.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("scheduler already started")
	}
	s.runCtx = runCtx
	s.cancel = cancel
	s.cron = rcron.New(
		rcron.WithParser(parser),
		rcron.WithLogger(cronLogger{s.logger}),
		rcron.WithChain(rcron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	for i := range s.jobs {
		if s.jobs[i].Enabled {
			s.registerJob(&s.jobs[i])
		}
	}
	count := len(s.entryMap)
	c := s.cron
	s.mu.Unlock()

	c.Start()
	s.logger.Info().Int("jobs", count).Msg("scheduler started")

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) registerJob(job *Job) {
	jobCopy := *job
	id, err := s.cron.AddFunc(job.Cron, func() {
		s.mu.Lock()
		ctx := s.runCtx
		s.mu.Unlock()
		s.executeJob(ctx, jobCopy)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job", job.Name).Str("cron", job.Cron).Msg("register job")
		return
	}
	s.entryMap[job.ID] = id
}

// Stop halts the scheduler and waits briefly for running jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	c := s.cron
	s.cancel = nil
	s.cron = nil
	for id := range s.entryMap {
		delete(s.entryMap, id)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("stop timeout waiting for running jobs")
	}
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes the named job immediately and returns its updated state.
func (s *Service) RunNow(ctx context.Context, name string) (Job, error) {
	job, ok := s.find(name)
	if !ok {
		return Job{}, fmt.Errorf("job %s not found", name)
	}
	s.executeJob(ctx, job)
	job, _ = s.find(name)
	if job.State.LastStatus == "error" {
		return job, fmt.Errorf("job %s: %s", name, job.State.LastError)
	}
	return job, nil
}

func (s *Service) executeJob(ctx context.Context, job Job) {
	logger := s.logger.With().Str("job", job.Name).Str("id", job.ID).Logger()
	logger.Info().Str("action", job.Action).Msg("executing job")

	if s.OnJob == nil {
		logger.Warn().Msg("no job handler set")
		return
	}

	result, err := s.OnJob(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != job.ID {
			continue
		}
		state := &s.jobs[i].State
		state.LastRunAt = time.Now()
		state.Runs++
		if err != nil {
			state.LastStatus = "error"
			state.LastError = err.Error()
			logger.Error().Err(err).Msg("job failed")
		} else {
			state.LastStatus = "ok"
			state.LastError = ""
			logger.Info().Str("result", truncate(result, 100)).Msg("job finished")
		}
		break
	}

	if err := s.save(); err != nil {
		logger.Warn().Err(err).Msg("save jobs")
	}
}

func (s *Service) find(name string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Name == name {
			return job, true
		}
	}
	return Job{}, false
}

func (s *Service) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Job, len(s.jobs))
	copy(result, s.jobs)
	return result
}

// NextRun returns when the named job fires next after now, or the zero time
// for an unknown or disabled job.
func (s *Service) NextRun(name string, now time.Time) time.Time {
	job, ok := s.find(name)
	if !ok || !job.Enabled {
		return time.Time{}
	}
	sched, err := parser.Parse(job.Cron)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(now)
}

func (s *Service) EnableJob(name string, enabled bool) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].Name != name {
			continue
		}
		s.jobs[i].Enabled = enabled
		id := s.jobs[i].ID
		if s.cron != nil {
			if enabled {
				if _, ok := s.entryMap[id]; !ok {
					s.registerJob(&s.jobs[i])
				}
			} else if entryID, ok := s.entryMap[id]; ok {
				s.cron.Remove(entryID)
				delete(s.entryMap, id)
			}
		}
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("save jobs: %w", err)
		}
		job := s.jobs[i]
		return &job, nil
	}
	return nil, fmt.Errorf("job %s not found", name)
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.jobs)
}

func (s *Service) save() error {
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// cronLogger routes robfig/cron's logging through zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
