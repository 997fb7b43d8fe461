// File: internal/reporting/synthesize.go

// Package reporting derives structured QA reports from completed task
// sessions. Synthesis is a pure function of the trace: the same session
// always produces the same report.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// maxDiffLines caps the snapshot diff carried in a failure detail.
const maxDiffLines = 40

// Synthesize builds a report from a terminal session. GeneratedAt aside, the
// output is deterministic for a given trace.
func Synthesize(session *schemas.TaskSession) *schemas.Report {
	report := &schemas.Report{
		SessionID:     session.ID,
		Goal:          session.Goal.Text,
		Status:        session.Status,
		Summary:       summarize(session),
		StepSummaries: summarizeSteps(session.Steps),
		GeneratedAt:   time.Now().UTC(),
	}

	switch session.Status {
	case schemas.StatusFailed, schemas.StatusTimedOut:
		report.FailureDetail = failureDetail(session)
	}
	return report
}

func summarizeSteps(steps []schemas.StepRecord) []schemas.StepSummary {
	out := make([]schemas.StepSummary, 0, len(steps))
	for _, step := range steps {
		out = append(out, schemas.StepSummary{
			Index:          step.Index,
			ActionKind:     step.Action.Kind,
			Classification: step.Outcome.Classification,
			ElapsedMs:      step.Outcome.Elapsed.Milliseconds(),
		})
	}
	return out
}

func summarize(session *schemas.TaskSession) string {
	steps := len(session.Steps)
	elapsed := session.EndedAt.Sub(session.StartedAt).Round(time.Second)

	switch session.Status {
	case schemas.StatusSucceeded:
		return fmt.Sprintf("Goal achieved in %d steps (%s).", steps, elapsed)
	case schemas.StatusTimedOut:
		return fmt.Sprintf("Time budget exhausted after %d steps (%s).", steps, elapsed)
	case schemas.StatusAborted:
		return fmt.Sprintf("Session aborted by the caller after %d steps (%s).", steps, elapsed)
	case schemas.StatusFailed:
		reason := session.TerminalReason
		if reason == "" {
			reason = "unspecified failure"
		}
		return fmt.Sprintf("Task failed after %d steps (%s): %s.", steps, elapsed, strings.TrimSuffix(reason, "."))
	default:
		return fmt.Sprintf("Session ended in state %q after %d steps.", session.Status, steps)
	}
}

// failureDetail points at the step where things went wrong and, when the trace
// holds at least two snapshots, shows how the final screen differed from the
// one before it.
func failureDetail(session *schemas.TaskSession) *schemas.FailureDetail {
	detail := &schemas.FailureDetail{
		StepIndex: offendingStep(session),
		Reason:    session.TerminalReason,
	}
	if prev, last := session.LastSnapshots(); prev != nil && last != nil {
		detail.SnapshotDiff = diffSnapshots(prev, last)
	}
	return detail
}

// offendingStep picks the step a reader should look at first: the last step
// whose outcome was not clean, falling back to the final step.
func offendingStep(session *schemas.TaskSession) int {
	for i := len(session.Steps) - 1; i >= 0; i-- {
		if session.Steps[i].Outcome.Classification != schemas.OutcomeOK {
			return session.Steps[i].Index
		}
	}
	if n := len(session.Steps); n > 0 {
		return session.Steps[n-1].Index
	}
	return 0
}

// diffSnapshots renders a line diff of the visible text between two scenes.
func diffSnapshots(prev, last *schemas.SceneSnapshot) string {
	if prev.TextExtract == last.TextExtract {
		return "(no visible text change between the final two snapshots)"
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(prev.TextExtract, last.TextExtract, true)
	dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	lines := 0
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range strings.Split(strings.Trim(d.Text, "\n"), "\n") {
			if line == "" {
				continue
			}
			if lines >= maxDiffLines {
				b.WriteString("(diff truncated)\n")
				return b.String()
			}
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
			lines++
		}
	}
	return b.String()
}
