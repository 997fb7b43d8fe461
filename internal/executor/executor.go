// File: internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/config"
	"github.com/vatsal-bst/bluestacksmcp/internal/device"
)

// crashScanLines bounds how much recent logcat output is inspected after an
// action when crash scanning is enabled.
const crashScanLines = 100

// Executor turns action specs into classified outcomes. It never returns an
// error: every failure mode is folded into the outcome classification so the
// orchestration loop has a single shape to reason about.
type Executor struct {
	driver         schemas.DeviceDriver
	actionTimeout  time.Duration
	installTimeout time.Duration
	crashScan      bool
	logger         *zap.Logger
}

// New builds an executor over a device driver.
func New(driver schemas.DeviceDriver, cfg config.Config, logger *zap.Logger) *Executor {
	return &Executor{
		driver:         driver,
		actionTimeout:  cfg.Engine.ActionTimeout,
		installTimeout: cfg.Device.InstallTimeout,
		crashScan:      cfg.Engine.CrashScan,
		logger:         logger.Named("executor"),
	}
}

// Execute performs one action and classifies the result. The outcome records
// the issue time, elapsed duration, raw transport output, and classification.
func (e *Executor) Execute(ctx context.Context, spec schemas.ActionSpec) schemas.ActionOutcome {
	outcome := schemas.ActionOutcome{
		Action:   spec,
		IssuedAt: time.Now().UTC(),
	}

	actx, cancel := context.WithTimeout(ctx, e.timeoutFor(spec))
	defer cancel()

	raw, err := e.driver.PerformAction(actx, spec)
	outcome.Elapsed = time.Since(outcome.IssuedAt)
	outcome.RawResult = raw

	switch {
	case err == nil:
		outcome.Classification = schemas.OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		outcome.Classification = schemas.OutcomeTimeout
		outcome.Error = err.Error()
	default:
		outcome.Classification = schemas.OutcomeDeviceError
		outcome.Error = err.Error()
	}

	if outcome.Classification == schemas.OutcomeOK && e.crashScan {
		e.scanForCrash(ctx, &outcome)
	}

	e.logger.Debug("action executed",
		zap.String("kind", string(spec.Kind)),
		zap.String("classification", string(outcome.Classification)),
		zap.Duration("elapsed", outcome.Elapsed),
	)
	return outcome
}

// scanForCrash inspects recent logcat output for application fault markers.
// A crash after an otherwise clean action downgrades it to a device error.
func (e *Executor) scanForCrash(ctx context.Context, outcome *schemas.ActionOutcome) {
	lines, err := e.driver.ReadLogs(ctx, crashScanLines)
	if err != nil {
		// The action itself succeeded; a log read failure is not evidence
		// of a crash.
		e.logger.Warn("crash scan skipped", zap.Error(err))
		return
	}
	if line, found := device.FindCrashSignature(lines); found {
		outcome.Classification = schemas.OutcomeDeviceError
		outcome.Error = "application fault detected: " + line
	}
}

// timeoutFor picks the per-action deadline. Package installs get their own
// longer budget, and explicit waits get their requested duration plus grace.
func (e *Executor) timeoutFor(spec schemas.ActionSpec) time.Duration {
	switch spec.Kind {
	case schemas.ActionInstall, schemas.ActionUninstall:
		return e.installTimeout
	case schemas.ActionWait:
		return time.Duration(spec.WaitMs)*time.Millisecond + e.actionTimeout
	default:
		return e.actionTimeout
	}
}
