// File: internal/mcp/tasks.go
package mcp

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/orchestrator"
	"github.com/vatsal-bst/bluestacksmcp/internal/reporting"
)

// SessionRunner drives a created session to its terminal state. Satisfied by
// *orchestrator.Engine.
type SessionRunner interface {
	RunSession(ctx context.Context, session *schemas.TaskSession)
}

// Archiver persists finished sessions and serves reports back. Satisfied by
// *store.Archive.
type Archiver interface {
	Save(ctx context.Context, session *schemas.TaskSession, report *schemas.Report) error
	GetReport(ctx context.Context, sessionID string) (*schemas.Report, error)
	GetSession(ctx context.Context, sessionID string) (*schemas.TaskSession, error)
}

// TaskService owns the lifecycle of task sessions: device acquisition, the
// background run, report synthesis and archival.
type TaskService struct {
	log      *zap.Logger
	engine   SessionRunner
	registry *orchestrator.Registry
	archive  Archiver
	device   string

	mu      sync.RWMutex
	jobs    map[string]*TaskJob
	cancels map[string]context.CancelFunc
	// running synchronizes shutdown with in-flight sessions.
	running sync.WaitGroup
}

// NewTaskService assembles the service for a single device.
func NewTaskService(engine SessionRunner, registry *orchestrator.Registry, archive Archiver, device string, logger *zap.Logger) *TaskService {
	return &TaskService{
		log:      logger.Named("task_service"),
		engine:   engine,
		registry: registry,
		archive:  archive,
		device:   device,
		jobs:     make(map[string]*TaskJob),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start begins a task session. The device is claimed synchronously, so a busy
// device is reported before any session exists; the run itself happens in the
// background. Returns the job handle for polling.
func (s *TaskService) Start(goal schemas.Goal) (*TaskJob, error) {
	session, err := orchestrator.NewSession(s.device, goal)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Acquire(s.device, session.ID); err != nil {
		return nil, err
	}

	job := &TaskJob{
		SessionID: session.ID,
		Device:    s.device,
		Goal:      goal.Text,
		Status:    JobRunning,
		StartedAt: session.StartedAt,
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.jobs[session.ID] = job
	s.cancels[session.ID] = cancel
	s.mu.Unlock()

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer cancel()
		s.runToCompletion(runCtx, session)
	}()

	return job, nil
}

// Run executes a task session synchronously and returns the finished report.
func (s *TaskService) Run(ctx context.Context, goal schemas.Goal) (*schemas.Report, error) {
	job, err := s.Start(goal)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// The caller gave up waiting; the session keeps running and the
			// report stays retrievable by ID.
			return nil, ctx.Err()
		case <-ticker.C:
			if current, ok := s.GetJob(job.SessionID); ok && current.Status != JobRunning {
				return s.archive.GetReport(ctx, job.SessionID)
			}
		}
	}
}

func (s *TaskService) runToCompletion(ctx context.Context, session *schemas.TaskSession) {
	defer s.registry.Release(s.device)

	s.engine.RunSession(ctx, session)

	report := reporting.Synthesize(session)

	// The run context may already be canceled (abort); archival gets its own
	// deadline so the trace is not lost.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := JobCompleted
	var saveErr string
	if err := s.archive.Save(saveCtx, session, report); err != nil {
		s.log.Error("failed to archive session",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		status = JobFailed
		saveErr = err.Error()
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if job, ok := s.jobs[session.ID]; ok {
		job.Status = status
		job.Outcome = session.Status
		job.FinishedAt = &now
		job.Error = saveErr
	}
	delete(s.cancels, session.ID)
	s.mu.Unlock()
}

// GetJob returns a snapshot of the job state for a session ID.
func (s *TaskService) GetJob(sessionID string) (TaskJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[sessionID]
	if !ok {
		return TaskJob{}, false
	}
	return *job, true
}

// Abort cancels a running session. The loop observes the cancellation and
// finishes the session as aborted; the report is still synthesized and
// archived. Returns false for unknown or already finished sessions.
func (s *TaskService) Abort(sessionID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[sessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.log.Info("aborting session", zap.String("session_id", sessionID))
	cancel()
	return true
}

// Shutdown aborts in-flight sessions and waits for them to finish archiving,
// up to the context deadline.
func (s *TaskService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
