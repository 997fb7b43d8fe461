package mcp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/orchestrator"
	"github.com/vatsal-bst/bluestacksmcp/internal/store"
)

// stubRunner finishes every session immediately with the configured outcome.
// When block is set, the run waits for the channel (or context cancel) first.
type stubRunner struct {
	outcome schemas.SessionStatus
	reason  string
	block   chan struct{}
}

func (r *stubRunner) RunSession(ctx context.Context, session *schemas.TaskSession) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			session.Transition(schemas.StatusAborted, schemas.ReasonAborted)
			return
		}
	}
	session.AppendStep(
		&schemas.SceneSnapshot{ScreenshotHash: "pre"},
		schemas.ActionSpec{Kind: schemas.ActionTap, X: 1, Y: 1},
		schemas.ActionOutcome{Classification: schemas.OutcomeOK},
		&schemas.SceneSnapshot{ScreenshotHash: "post"},
	)
	session.Transition(r.outcome, r.reason)
}

func newTestTaskService(t *testing.T, runner SessionRunner) *TaskService {
	t.Helper()
	archive, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	return NewTaskService(runner, orchestrator.NewRegistry(), archive, "emulator-5554", zap.NewNop())
}

func waitForJob(t *testing.T, s *TaskService, sessionID string) TaskJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := s.GetJob(sessionID); ok && job.Status != JobRunning {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", sessionID)
	return TaskJob{}
}

func TestTaskServiceStartAndArchive(t *testing.T) {
	s := newTestTaskService(t, &stubRunner{outcome: schemas.StatusSucceeded, reason: "all good"})

	job, err := s.Start(schemas.Goal{Text: "open settings"})
	require.NoError(t, err)
	require.NotEmpty(t, job.SessionID)

	finished := waitForJob(t, s, job.SessionID)
	assert.Equal(t, JobCompleted, finished.Status)
	assert.Equal(t, schemas.StatusSucceeded, finished.Outcome)
	require.NotNil(t, finished.FinishedAt)

	report, err := s.archive.GetReport(context.Background(), job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, job.SessionID, report.SessionID)

	// Device is free again.
	_, err = s.Start(schemas.Goal{Text: "another task"})
	assert.NoError(t, err)
}

func TestTaskServiceDeviceBusy(t *testing.T) {
	release := make(chan struct{})
	s := newTestTaskService(t, &stubRunner{outcome: schemas.StatusSucceeded, block: release})

	first, err := s.Start(schemas.Goal{Text: "long running"})
	require.NoError(t, err)

	_, err = s.Start(schemas.Goal{Text: "second"})
	assert.ErrorIs(t, err, schemas.ErrDeviceBusy)

	close(release)
	waitForJob(t, s, first.SessionID)
}

func TestTaskServiceAbort(t *testing.T) {
	s := newTestTaskService(t, &stubRunner{outcome: schemas.StatusSucceeded, block: make(chan struct{})})

	job, err := s.Start(schemas.Goal{Text: "will be aborted"})
	require.NoError(t, err)

	require.True(t, s.Abort(job.SessionID))

	finished := waitForJob(t, s, job.SessionID)
	assert.Equal(t, schemas.StatusAborted, finished.Outcome)

	// Aborted sessions are archived too.
	session, err := s.archive.GetSession(context.Background(), job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusAborted, session.Status)

	assert.False(t, s.Abort(job.SessionID), "abort of a finished session is refused")
	assert.False(t, s.Abort("unknown"))
}

func TestTaskServiceRunSynchronous(t *testing.T) {
	s := newTestTaskService(t, &stubRunner{outcome: schemas.StatusFailed, reason: schemas.ReasonStalled})

	report, err := s.Run(context.Background(), schemas.Goal{Text: "sync run"})
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusFailed, report.Status)
	require.NotNil(t, report.FailureDetail)
}

func TestTaskServiceRejectsInvalidGoal(t *testing.T) {
	s := newTestTaskService(t, &stubRunner{outcome: schemas.StatusSucceeded})

	_, err := s.Start(schemas.Goal{Text: ""})
	assert.ErrorIs(t, err, schemas.ErrInvalidGoal)

	// The device was never claimed.
	_, err = s.Start(schemas.Goal{Text: "valid"})
	assert.NoError(t, err)
}

func TestTaskServiceShutdownDrains(t *testing.T) {
	s := newTestTaskService(t, &stubRunner{outcome: schemas.StatusSucceeded, block: make(chan struct{})})

	job, err := s.Start(schemas.Goal{Text: "in flight"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	finished, ok := s.GetJob(job.SessionID)
	require.True(t, ok)
	assert.NotEqual(t, JobRunning, finished.Status)
}
