package schemas

import "errors"

// ErrorCode is a machine-readable code carried across the tool surface. Using
// a distinct type keeps handlers from inventing ad-hoc strings.
type ErrorCode string

const (
	ErrCodeCaptureFailed   ErrorCode = "capture_failed"
	ErrCodeDeviceError     ErrorCode = "device_error"
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeReasoningFailed ErrorCode = "reasoning_unavailable"
	ErrCodeDeviceBusy      ErrorCode = "device_busy"
	ErrCodeInvalidGoal     ErrorCode = "invalid_goal"
	ErrCodeSessionNotFound ErrorCode = "session_not_found"
	ErrCodeStalled         ErrorCode = "stalled"
)

// Sentinel errors for the precondition and perception failures the caller is
// allowed to observe. Internal faults are wrapped before they cross the tool
// surface; callers never see a raw driver error.
var (
	// ErrCaptureFailed signals that a screenshot or hierarchy dump could not
	// be retrieved within the capture timeout. Capture is all-or-nothing.
	ErrCaptureFailed = errors.New("scene capture failed")

	// ErrDeviceBusy signals a second task request against a device that
	// already has a running session. Surfaced immediately, no session is
	// created and nothing queues.
	ErrDeviceBusy = errors.New("device busy: a task session is already running")

	// ErrInvalidGoal signals a goal that failed validation before any session
	// was created.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrSessionNotFound signals an unknown session ID on report retrieval.
	ErrSessionNotFound = errors.New("session not found")

	// ErrReasoningUnavailable signals that the decision oracle failed after
	// its single retry.
	ErrReasoningUnavailable = errors.New("reasoning engine unavailable")
)
