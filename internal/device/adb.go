// File: internal/device/adb.go
package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vatsal-bst/bluestacksmcp/internal/config"
)

// Runner abstracts the ADB binary invocation so the driver can be exercised
// against a fake bridge in tests.
type Runner interface {
	// Run executes one adb command and returns its stdout. A non-zero exit
	// status or transport failure is returned as an error that includes
	// stderr.
	Run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error)
}

// ADB shells out to the platform-tools adb binary. Commands are paced by a
// rate limiter so bursts of synthetic input do not overwhelm the bridge.
type ADB struct {
	path    string
	serial  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewADB builds a runner for the configured binary and device serial.
func NewADB(cfg config.DeviceConfig, logger *zap.Logger) *ADB {
	return &ADB{
		path:    cfg.ADBPath,
		serial:  cfg.Serial,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandsPerSecond), 1),
		logger:  logger.Named("adb"),
	}
}

// Run executes `adb [-s serial] args...` with the given timeout.
func (a *ADB) Run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := args
	if a.serial != "" {
		full = append([]string{"-s", a.serial}, args...)
	}

	cmd := exec.CommandContext(ctx, a.path, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	a.logger.Debug("adb command finished",
		zap.Strings("args", args),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), context.DeadlineExceeded)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("adb %s: %v: %s", strings.Join(args, " "), err, msg)
	}
	return stdout.Bytes(), nil
}
