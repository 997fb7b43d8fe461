package schemas

import (
	"time"
)

// Goal describes the desired end state of a task in natural language, with
// optional caller overrides for the step and wall-clock budgets.
type Goal struct {
	Text       string        `json:"text"`
	MaxSteps   int           `json:"max_steps,omitempty"`
	TimeBudget time.Duration `json:"time_budget,omitempty"`
	AppPackage string        `json:"app_package,omitempty"`
}

// Default budgets applied when the Goal leaves them zero.
const (
	DefaultMaxSteps   = 40
	DefaultTimeBudget = 5 * time.Minute
)

// EffectiveMaxSteps returns the caller override or the default.
func (g Goal) EffectiveMaxSteps() int {
	if g.MaxSteps > 0 {
		return g.MaxSteps
	}
	return DefaultMaxSteps
}

// EffectiveTimeBudget returns the caller override or the default.
func (g Goal) EffectiveTimeBudget() time.Duration {
	if g.TimeBudget > 0 {
		return g.TimeBudget
	}
	return DefaultTimeBudget
}

// SessionStatus is the lifecycle state of a task session. Every terminal state
// is absorbing.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusSucceeded SessionStatus = "succeeded"
	StatusFailed    SessionStatus = "failed"
	StatusTimedOut  SessionStatus = "timed_out"
	StatusAborted   SessionStatus = "aborted"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusAborted:
		return true
	}
	return false
}

// Terminal reasons set by the orchestrator itself (the reasoning engine
// supplies free-form reasons for its own done directives).
const (
	ReasonStalled              = "stalled"
	ReasonCaptureUnavailable   = "capture_unavailable"
	ReasonReasoningUnavailable = "reasoning_unavailable"
	ReasonBudgetExhausted      = "budget_exhausted"
	ReasonAborted              = "aborted"
)

// StepRecord is one completed perceive-decide-act-verify cycle. Immutable once
// appended to a session. PostSnapshot is nil only when verification capture
// failed terminally on this step.
type StepRecord struct {
	Index        int            `json:"index"`
	PreSnapshot  *SceneSnapshot `json:"pre_snapshot"`
	Action       ActionSpec     `json:"action"`
	Outcome      ActionOutcome  `json:"outcome"`
	PostSnapshot *SceneSnapshot `json:"post_snapshot,omitempty"`
}

// TaskSession is the full trace of one goal execution, from start to terminal
// outcome. The orchestrator owns it exclusively for its lifetime: Steps is
// append-only and totally ordered by Index, and Status transitions exactly
// once out of StatusRunning.
type TaskSession struct {
	ID             string        `json:"id"`
	Device         string        `json:"device"`
	Goal           Goal          `json:"goal"`
	Status         SessionStatus `json:"status"`
	Steps          []StepRecord  `json:"steps"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        time.Time     `json:"ended_at,omitempty"`
	TerminalReason string        `json:"terminal_reason,omitempty"`
}

// AppendStep records one cycle. Appends are refused once the session is
// terminal, preserving the trace of the terminal transition.
func (s *TaskSession) AppendStep(pre *SceneSnapshot, action ActionSpec, outcome ActionOutcome, post *SceneSnapshot) bool {
	if s.Status.Terminal() {
		return false
	}
	s.Steps = append(s.Steps, StepRecord{
		Index:        len(s.Steps),
		PreSnapshot:  pre,
		Action:       action,
		Outcome:      outcome,
		PostSnapshot: post,
	})
	return true
}

// Transition moves the session into a terminal state. It returns false if the
// session is already terminal; the first transition wins and later attempts
// are no-ops.
func (s *TaskSession) Transition(status SessionStatus, reason string) bool {
	if s.Status.Terminal() || !status.Terminal() {
		return false
	}
	s.Status = status
	s.TerminalReason = reason
	s.EndedAt = time.Now().UTC()
	return true
}

// LastSnapshots returns the final two snapshots observed in the trace, oldest
// first. Either return value may be nil for short traces.
func (s *TaskSession) LastSnapshots() (prev, last *SceneSnapshot) {
	var all []*SceneSnapshot
	for _, st := range s.Steps {
		if st.PreSnapshot != nil {
			all = append(all, st.PreSnapshot)
		}
		if st.PostSnapshot != nil {
			all = append(all, st.PostSnapshot)
		}
	}
	switch n := len(all); {
	case n >= 2:
		return all[n-2], all[n-1]
	case n == 1:
		return nil, all[0]
	}
	return nil, nil
}
