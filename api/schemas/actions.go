package schemas

import (
	"fmt"
	"time"
)

// ActionKind enumerates every atomic operation the device driver can perform,
// plus the "done" directive the reasoning engine uses to terminate a task.
type ActionKind string

const (
	ActionTap       ActionKind = "tap"
	ActionSwipe     ActionKind = "swipe"
	ActionTypeText  ActionKind = "type"
	ActionKey       ActionKind = "key"
	ActionInstall   ActionKind = "install"
	ActionUninstall ActionKind = "uninstall"
	ActionStart     ActionKind = "start"
	ActionWait      ActionKind = "wait"
	ActionDone      ActionKind = "done"
)

// Common Android keycodes used by the convenience tool endpoints.
const (
	KeycodeHome  = 3
	KeycodeBack  = 4
	KeycodeEnter = 66
)

// ActionSpec is a tagged variant over the atomic device operations. Exactly one
// variant is active per instance, selected by Kind; only the fields belonging
// to that variant are meaningful. The struct is comparable on purpose: the
// orchestrator's stall detection relies on == for structural equality.
type ActionSpec struct {
	Kind ActionKind `json:"kind"`

	// tap / swipe coordinates.
	X    int `json:"x,omitempty"`
	Y    int `json:"y,omitempty"`
	EndX int `json:"end_x,omitempty"`
	EndY int `json:"end_y,omitempty"`

	// swipe duration.
	DurationMs int `json:"duration_ms,omitempty"`

	// type.
	Text string `json:"text,omitempty"`

	// key.
	Keycode int `json:"keycode,omitempty"`

	// install.
	Path string `json:"path,omitempty"`

	// uninstall / start.
	Package  string `json:"package,omitempty"`
	Activity string `json:"activity,omitempty"`

	// wait.
	WaitMs int `json:"wait_ms,omitempty"`

	// done.
	Success bool   `json:"success,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Equal reports structural equality between two specs.
func (a ActionSpec) Equal(b ActionSpec) bool { return a == b }

// IsDone reports whether the spec is a terminal directive rather than a device
// action.
func (a ActionSpec) IsDone() bool { return a.Kind == ActionDone }

// Validate checks that the active variant carries the fields it needs.
func (a ActionSpec) Validate() error {
	switch a.Kind {
	case ActionTap:
		if a.X < 0 || a.Y < 0 {
			return fmt.Errorf("tap: coordinates must be non-negative, got (%d,%d)", a.X, a.Y)
		}
	case ActionSwipe:
		if a.DurationMs <= 0 {
			return fmt.Errorf("swipe: duration_ms must be positive, got %d", a.DurationMs)
		}
	case ActionTypeText:
		if a.Text == "" {
			return fmt.Errorf("type: text must not be empty")
		}
	case ActionKey:
		if a.Keycode <= 0 {
			return fmt.Errorf("key: keycode must be positive, got %d", a.Keycode)
		}
	case ActionInstall:
		if a.Path == "" {
			return fmt.Errorf("install: apk path must not be empty")
		}
	case ActionUninstall:
		if a.Package == "" {
			return fmt.Errorf("uninstall: package must not be empty")
		}
	case ActionStart:
		if a.Package == "" {
			return fmt.Errorf("start: package must not be empty")
		}
	case ActionWait:
		if a.WaitMs <= 0 {
			return fmt.Errorf("wait: wait_ms must be positive, got %d", a.WaitMs)
		}
	case ActionDone:
		// Reason may legitimately be empty on success.
	default:
		return fmt.Errorf("unknown action kind: %q", a.Kind)
	}
	return nil
}

// OutcomeClass classifies the driver-level result of executing an action.
type OutcomeClass string

const (
	OutcomeOK          OutcomeClass = "ok"
	OutcomeDeviceError OutcomeClass = "device_error"
	OutcomeTimeout     OutcomeClass = "timeout"
	// OutcomeNoop is assigned by the orchestrator, never by the executor: an
	// action that succeeded at the driver level but produced no observable
	// change between the pre and post snapshots.
	OutcomeNoop OutcomeClass = "noop"
)

// ActionOutcome records what happened when a single ActionSpec was dispatched
// to the device.
type ActionOutcome struct {
	Action         ActionSpec    `json:"action"`
	IssuedAt       time.Time     `json:"issued_at"`
	Elapsed        time.Duration `json:"elapsed"`
	RawResult      string        `json:"raw_result,omitempty"`
	Classification OutcomeClass  `json:"classification"`
	Error          string        `json:"error,omitempty"`
}
