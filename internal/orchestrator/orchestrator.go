// File: internal/orchestrator/orchestrator.go

// Package orchestrator runs the perceive-decide-act-verify loop that turns a
// natural-language goal into a totally ordered trace of device steps.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/config"
)

// Capturer produces one scene snapshot per call. Satisfied by
// *snapshot.Builder.
type Capturer interface {
	Capture(ctx context.Context) (*schemas.SceneSnapshot, error)
}

// ActionPerformer executes one action and classifies the result. Satisfied by
// *executor.Executor.
type ActionPerformer interface {
	Execute(ctx context.Context, spec schemas.ActionSpec) schemas.ActionOutcome
}

// EventSink receives progress notifications as the loop runs. Implementations
// must not block; the loop calls them inline.
type EventSink interface {
	PublishStep(session *schemas.TaskSession, step schemas.StepRecord)
	PublishTerminal(session *schemas.TaskSession)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) PublishStep(*schemas.TaskSession, schemas.StepRecord) {}
func (NopSink) PublishTerminal(*schemas.TaskSession)                 {}

// Engine drives task sessions to a terminal state. One Engine serves one
// device; concurrent Run calls for the same device are refused by the caller
// through the Registry.
type Engine struct {
	capturer Capturer
	actions  ActionPerformer
	reasoner schemas.ReasoningEngine
	cfg      config.EngineConfig
	events   EventSink
	logger   *zap.Logger
}

// NewEngine assembles the loop from its three collaborators.
func NewEngine(capturer Capturer, actions ActionPerformer, reasoner schemas.ReasoningEngine, cfg config.EngineConfig, events EventSink, logger *zap.Logger) *Engine {
	if events == nil {
		events = NopSink{}
	}
	return &Engine{
		capturer: capturer,
		actions:  actions,
		reasoner: reasoner,
		cfg:      cfg,
		events:   events,
		logger:   logger.Named("orchestrator"),
	}
}

// NewSession validates the goal and creates a running session for it. The
// session ID is known to the caller before the loop starts, so async callers
// can hand it out immediately.
func NewSession(device string, goal schemas.Goal) (*schemas.TaskSession, error) {
	if strings.TrimSpace(goal.Text) == "" {
		return nil, fmt.Errorf("%w: goal text must not be empty", schemas.ErrInvalidGoal)
	}
	return &schemas.TaskSession{
		ID:        uuid.NewString(),
		Device:    device,
		Goal:      goal,
		Status:    schemas.StatusRunning,
		StartedAt: time.Now().UTC(),
	}, nil
}

// Run executes one goal to a terminal state and returns the finished session.
// Precondition failures (an empty goal) return an error and no session;
// everything that happens after the session starts is expressed in the
// session's terminal status, never as a Go error.
func (e *Engine) Run(ctx context.Context, device string, goal schemas.Goal) (*schemas.TaskSession, error) {
	session, err := NewSession(device, goal)
	if err != nil {
		return nil, err
	}
	e.RunSession(ctx, session)
	return session, nil
}

// RunSession drives an already created session to a terminal state.
func (e *Engine) RunSession(ctx context.Context, session *schemas.TaskSession) {
	goal := session.Goal
	device := session.Device
	maxSteps := e.maxStepsFor(goal)
	timeBudget := e.timeBudgetFor(goal)
	runCtx, cancel := context.WithTimeout(ctx, timeBudget)
	defer cancel()

	log := e.logger.With(zap.String("session_id", session.ID), zap.String("device", device))
	log.Info("task session started",
		zap.String("goal", goal.Text),
		zap.Int("max_steps", maxSteps),
		zap.Duration("time_budget", timeBudget),
	)

	var (
		stallRun     int
		lastAction   schemas.ActionSpec
		lastPostKey  string
		havePrevStep bool
	)

	for !session.Status.Terminal() {
		if len(session.Steps) >= maxSteps {
			session.Transition(schemas.StatusTimedOut, schemas.ReasonBudgetExhausted)
			break
		}
		if err := runCtx.Err(); err != nil {
			e.finishOnContext(ctx, session, err)
			break
		}

		pre, err := e.captureWithRetry(runCtx)
		if err != nil {
			if runCtx.Err() != nil {
				e.finishOnContext(ctx, session, runCtx.Err())
			} else {
				session.Transition(schemas.StatusFailed, schemas.ReasonCaptureUnavailable)
			}
			break
		}

		decision, err := e.decideWithRetry(runCtx, goal, session.Steps, pre)
		if err != nil {
			if runCtx.Err() != nil {
				e.finishOnContext(ctx, session, runCtx.Err())
			} else {
				session.Transition(schemas.StatusFailed, schemas.ReasonReasoningUnavailable)
			}
			break
		}

		if decision.Done {
			status := schemas.StatusFailed
			if decision.Success {
				status = schemas.StatusSucceeded
			}
			session.Transition(status, decision.Reason)
			break
		}

		if decision.Action == nil || decision.Action.Validate() != nil || decision.Action.IsDone() {
			log.Warn("reasoner produced an unusable decision", zap.Any("decision", decision))
			session.Transition(schemas.StatusFailed, schemas.ReasonReasoningUnavailable)
			break
		}
		action := *decision.Action

		outcome := e.actions.Execute(runCtx, action)

		post, err := e.captureWithRetry(runCtx)
		if err != nil {
			// The action ran but its effect cannot be verified. Record the
			// step without a post snapshot, then end the session.
			session.AppendStep(pre, action, outcome, nil)
			if runCtx.Err() != nil {
				e.finishOnContext(ctx, session, runCtx.Err())
			} else {
				session.Transition(schemas.StatusFailed, schemas.ReasonCaptureUnavailable)
			}
			break
		}

		if outcome.Classification == schemas.OutcomeOK && snapshotsEqual(pre, post) {
			outcome.Classification = schemas.OutcomeNoop
		}

		session.AppendStep(pre, action, outcome, post)
		step := session.Steps[len(session.Steps)-1]
		e.events.PublishStep(session, step)
		log.Debug("step recorded",
			zap.Int("index", step.Index),
			zap.String("kind", string(action.Kind)),
			zap.String("classification", string(outcome.Classification)),
		)

		postKey := stateKey(post)
		if havePrevStep && action.Equal(lastAction) && postKey == lastPostKey {
			stallRun++
		} else {
			stallRun = 1
		}
		lastAction, lastPostKey, havePrevStep = action, postKey, true

		if stallRun >= e.cfg.StallThreshold {
			session.Transition(schemas.StatusFailed, schemas.ReasonStalled)
			break
		}
	}

	e.events.PublishTerminal(session)
	log.Info("task session finished",
		zap.String("status", string(session.Status)),
		zap.String("reason", session.TerminalReason),
		zap.Int("steps", len(session.Steps)),
	)
}

// captureWithRetry attempts one snapshot, retrying transient failures up to
// the configured retry budget. Retries are invisible to the trace.
func (e *Engine) captureWithRetry(ctx context.Context) (*schemas.SceneSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.CaptureRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := e.capturer.Capture(ctx)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		e.logger.Warn("capture attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("%w: retries exhausted: %v", schemas.ErrCaptureFailed, lastErr)
}

// decideWithRetry asks the reasoner for the next move, retrying exactly once
// on failure.
func (e *Engine) decideWithRetry(ctx context.Context, goal schemas.Goal, history []schemas.StepRecord, snap *schemas.SceneSnapshot) (schemas.Decision, error) {
	decision, err := e.reasoner.Decide(ctx, goal, history, snap)
	if err == nil {
		return decision, nil
	}
	if ctx.Err() != nil {
		return schemas.Decision{}, err
	}
	e.logger.Warn("reasoning attempt failed, retrying once", zap.Error(err))
	decision, err = e.reasoner.Decide(ctx, goal, history, snap)
	if err != nil {
		return schemas.Decision{}, fmt.Errorf("%w: %v", schemas.ErrReasoningUnavailable, err)
	}
	return decision, nil
}

// finishOnContext maps a context failure to the right terminal state: the
// budget deadline means timed out, an external cancel means aborted.
func (e *Engine) finishOnContext(parent context.Context, session *schemas.TaskSession, err error) {
	if errors.Is(parent.Err(), context.Canceled) {
		session.Transition(schemas.StatusAborted, schemas.ReasonAborted)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		session.Transition(schemas.StatusTimedOut, schemas.ReasonBudgetExhausted)
		return
	}
	session.Transition(schemas.StatusAborted, schemas.ReasonAborted)
}

// snapshotsEqual reports whether two snapshots show the same scene.
func snapshotsEqual(a, b *schemas.SceneSnapshot) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ScreenshotHash == b.ScreenshotHash && a.SerializeTree() == b.SerializeTree()
}

// stateKey identifies a post-action scene for stall tracking. Only the UI
// tree counts: screenshots carry per-frame noise (clocks, cursor blinks) that
// would mask a genuinely stuck loop.
func stateKey(s *schemas.SceneSnapshot) string {
	if s == nil {
		return ""
	}
	return s.SerializeTree()
}

// maxStepsFor resolves the step budget: caller override, then engine config,
// then the schema default.
func (e *Engine) maxStepsFor(goal schemas.Goal) int {
	if goal.MaxSteps > 0 {
		return goal.MaxSteps
	}
	if e.cfg.MaxSteps > 0 {
		return e.cfg.MaxSteps
	}
	return schemas.DefaultMaxSteps
}

// timeBudgetFor resolves the wall-clock budget the same way.
func (e *Engine) timeBudgetFor(goal schemas.Goal) time.Duration {
	if goal.TimeBudget > 0 {
		return goal.TimeBudget
	}
	if e.cfg.TimeBudget > 0 {
		return e.cfg.TimeBudget
	}
	return schemas.DefaultTimeBudget
}
