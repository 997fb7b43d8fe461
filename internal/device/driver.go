// File: internal/device/driver.go
package device

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/config"
)

// remoteDumpPath is where uiautomator writes the hierarchy on the device.
const remoteDumpPath = "/sdcard/window_dump.xml"

// Crash signatures looked for in the logcat stream. A match on any of these
// is treated as an application fault at the driver level.
var crashSignatures = []string{
	"FATAL EXCEPTION",
	"ANR in",
	"Force finishing activity",
}

// Driver implements schemas.DeviceDriver over an ADB connection.
type Driver struct {
	adb    Runner
	cfg    config.DeviceConfig
	logger *zap.Logger
}

// NewDriver wires a driver to a runner (normally *ADB).
func NewDriver(adb Runner, cfg config.DeviceConfig, logger *zap.Logger) *Driver {
	return &Driver{
		adb:    adb,
		cfg:    cfg,
		logger: logger.Named("device"),
	}
}

// CaptureScreenshot returns the raw PNG bytes of the current screen.
func (d *Driver) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	out, err := d.adb.Run(ctx, d.cfg.CommandTimeout, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, fmt.Errorf("screencap: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("screencap: empty image")
	}
	return out, nil
}

// CaptureUITree dumps the accessibility hierarchy and parses it.
func (d *Driver) CaptureUITree(ctx context.Context) (*schemas.UINode, error) {
	if _, err := d.adb.Run(ctx, d.cfg.CommandTimeout, "shell", "uiautomator", "dump", remoteDumpPath); err != nil {
		return nil, fmt.Errorf("uiautomator dump: %w", err)
	}
	raw, err := d.adb.Run(ctx, d.cfg.CommandTimeout, "exec-out", "cat", remoteDumpPath)
	if err != nil {
		return nil, fmt.Errorf("read hierarchy dump: %w", err)
	}
	tree, err := ParseUITree(raw)
	if err != nil {
		return nil, fmt.Errorf("parse hierarchy dump: %w", err)
	}
	return tree, nil
}

// PerformAction dispatches one atomic action. The raw transport output is
// returned for the trace; interpreting success beyond the exit status is the
// executor's concern.
func (d *Driver) PerformAction(ctx context.Context, spec schemas.ActionSpec) (string, error) {
	switch spec.Kind {
	case schemas.ActionTap:
		return d.shell(ctx, "input", "tap", itoa(spec.X), itoa(spec.Y))
	case schemas.ActionSwipe:
		return d.shell(ctx, "input", "swipe",
			itoa(spec.X), itoa(spec.Y), itoa(spec.EndX), itoa(spec.EndY), itoa(spec.DurationMs))
	case schemas.ActionTypeText:
		return d.shell(ctx, "input", "text", escapeInputText(spec.Text))
	case schemas.ActionKey:
		return d.shell(ctx, "input", "keyevent", itoa(spec.Keycode))
	case schemas.ActionInstall:
		out, err := d.adb.Run(ctx, d.cfg.InstallTimeout, "install", "-r", spec.Path)
		return string(out), err
	case schemas.ActionUninstall:
		out, err := d.adb.Run(ctx, d.cfg.InstallTimeout, "uninstall", spec.Package)
		return string(out), err
	case schemas.ActionStart:
		if spec.Activity != "" {
			return d.shell(ctx, "am", "start", "-n", spec.Package+"/"+spec.Activity)
		}
		// Without an explicit activity, let the launcher resolve the default.
		return d.shell(ctx, "monkey", "-p", spec.Package, "-c", "android.intent.category.LAUNCHER", "1")
	case schemas.ActionWait:
		select {
		case <-time.After(time.Duration(spec.WaitMs) * time.Millisecond):
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	case schemas.ActionDone:
		return "", fmt.Errorf("done directive is not a device action")
	default:
		return "", fmt.Errorf("unknown action kind: %q", spec.Kind)
	}
}

// ReadLogs returns up to lines recent logcat lines, oldest first.
func (d *Driver) ReadLogs(ctx context.Context, lines int) ([]string, error) {
	if lines <= 0 {
		lines = d.cfg.LogcatLines
	}
	out, err := d.adb.Run(ctx, d.cfg.CommandTimeout, "logcat", "-d", "-t", itoa(lines))
	if err != nil {
		return nil, fmt.Errorf("logcat: %w", err)
	}
	raw := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	result := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			result = append(result, l)
		}
	}
	return result, nil
}

// ListPackages returns the sorted package names installed on the device.
func (d *Driver) ListPackages(ctx context.Context) ([]string, error) {
	out, err := d.shell(ctx, "pm", "list", "packages")
	if err != nil {
		return nil, fmt.Errorf("pm list packages: %w", err)
	}
	var packages []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if pkg, ok := strings.CutPrefix(line, "package:"); ok && pkg != "" {
			packages = append(packages, pkg)
		}
	}
	sort.Strings(packages)
	return packages, nil
}

func (d *Driver) shell(ctx context.Context, args ...string) (string, error) {
	out, err := d.adb.Run(ctx, d.cfg.CommandTimeout, append([]string{"shell"}, args...)...)
	return string(out), err
}

// FindCrashSignature scans log lines for known application fault markers and
// returns the first offending line.
func FindCrashSignature(lines []string) (string, bool) {
	for _, line := range lines {
		for _, sig := range crashSignatures {
			if strings.Contains(line, sig) {
				return line, true
			}
		}
	}
	return "", false
}

// escapeInputText prepares text for `input text`, which treats spaces as
// argument separators and interprets shell metacharacters.
func escapeInputText(s string) string {
	replacer := strings.NewReplacer(
		" ", "%s",
		"&", "\\&",
		"<", "\\<",
		">", "\\>",
		"|", "\\|",
		";", "\\;",
		"(", "\\(",
		")", "\\)",
		"'", "\\'",
		"\"", "\\\"",
	)
	return replacer.Replace(s)
}

func itoa(n int) string { return strconv.Itoa(n) }
