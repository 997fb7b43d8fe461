package schemas

import "time"

// StepSummary is the condensed, per-step view included in a report.
type StepSummary struct {
	Index          int          `json:"index"`
	ActionKind     ActionKind   `json:"action_kind"`
	Classification OutcomeClass `json:"classification"`
	ElapsedMs      int64        `json:"elapsed_ms"`
}

// FailureDetail explains a failed or timed-out session: which step went wrong
// and how the screen changed (or refused to change) at the end of the trace.
type FailureDetail struct {
	StepIndex    int    `json:"step_index"`
	Reason       string `json:"reason"`
	SnapshotDiff string `json:"snapshot_diff,omitempty"`
}

// Report is the structured artifact derived from a completed session. It is
// read-only after synthesis and references screenshots by stable identifiers
// rather than embedding image data.
type Report struct {
	SessionID     string         `json:"session_id"`
	Goal          string         `json:"goal"`
	Status        SessionStatus  `json:"status"`
	Summary       string         `json:"summary"`
	StepSummaries []StepSummary  `json:"step_summaries"`
	FailureDetail *FailureDetail `json:"failure_detail,omitempty"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
