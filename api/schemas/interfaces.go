package schemas

import "context"

// DeviceDriver executes single atomic operations against the emulator and
// returns raw results. Implementations own the transport (ADB or otherwise);
// the orchestration core treats captures and results as opaque. Every call
// honors the context deadline.
type DeviceDriver interface {
	// CaptureScreenshot returns the raw PNG bytes of the current screen.
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	// CaptureUITree returns the parsed accessibility hierarchy.
	CaptureUITree(ctx context.Context) (*UINode, error)
	// PerformAction runs one device action and returns the raw transport
	// output. The done directive is never dispatched here.
	PerformAction(ctx context.Context, spec ActionSpec) (string, error)
	// ReadLogs returns up to lines recent log lines, oldest first.
	ReadLogs(ctx context.Context, lines int) ([]string, error)
}

// Decision is the reasoning engine's answer for one cycle: either the next
// action to attempt, or a done directive declaring the task complete or
// impossible.
type Decision struct {
	Action  *ActionSpec `json:"action,omitempty"`
	Done    bool        `json:"done"`
	Success bool        `json:"success,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Thought string      `json:"thought,omitempty"`
}

// ReasoningEngine is the pluggable decision oracle: given the goal, the full
// step history and the current scene, it proposes the next action or declares
// completion. Implementations are assumed slow (seconds) and fallible; the
// orchestrator retries a failed Decide exactly once before giving up.
type ReasoningEngine interface {
	Decide(ctx context.Context, goal Goal, history []StepRecord, snapshot *SceneSnapshot) (Decision, error)
}
