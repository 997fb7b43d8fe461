// File: internal/mcp/types.go
package mcp

import (
	"time"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// TaskRequest starts a task session against the configured device.
type TaskRequest struct {
	Goal       string `json:"goal"`
	AppPackage string `json:"app_package,omitempty"`
	// MaxSteps and TimeBudgetSeconds override the engine defaults when
	// positive.
	MaxSteps          int `json:"max_steps,omitempty"`
	TimeBudgetSeconds int `json:"time_budget_seconds,omitempty"`
	// Wait makes the request synchronous: the response carries the finished
	// report instead of a job handle.
	Wait bool `json:"wait,omitempty"`
}

// FeatureRequest starts a feature verification session.
type FeatureRequest struct {
	Feature           string `json:"feature"`
	AppPackage        string `json:"app_package,omitempty"`
	MaxSteps          int    `json:"max_steps,omitempty"`
	TimeBudgetSeconds int    `json:"time_budget_seconds,omitempty"`
	Wait              bool   `json:"wait,omitempty"`
}

// AppRequest names a package for the install/uninstall/start tool endpoints.
type AppRequest struct {
	Path     string `json:"path,omitempty"`
	Package  string `json:"package,omitempty"`
	Activity string `json:"activity,omitempty"`
}

// Job status values for the in-memory task registry.
const (
	JobRunning   = "RUNNING"
	JobCompleted = "COMPLETED"
	JobFailed    = "FAILED"
)

// TaskJob is the externally visible state of an initiated task.
type TaskJob struct {
	SessionID  string                `json:"session_id"`
	Device     string                `json:"device"`
	Goal       string                `json:"goal"`
	Status     string                `json:"status"`
	Outcome    schemas.SessionStatus `json:"outcome,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// APIResponse is the standard envelope for every JSON response.
type APIResponse struct {
	Status string            `json:"status"` // "success", "accepted", "error"
	Data   interface{}       `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
	Code   schemas.ErrorCode `json:"code,omitempty"`
}
