// File: internal/reporting/markdown.go
package reporting

import (
	"fmt"
	"io"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// WriteMarkdown renders the report as a human-readable document. Used by the
// one-shot CLI; the HTTP surface serves the structured form instead.
func WriteMarkdown(w io.Writer, report *schemas.Report) error {
	if _, err := fmt.Fprintf(w, "# Task Report\n\n"); err != nil {
		return err
	}
	fmt.Fprintf(w, "**Session:** `%s`\n\n", report.SessionID)
	fmt.Fprintf(w, "**Goal:** %s\n\n", report.Goal)
	fmt.Fprintf(w, "**Status:** %s\n\n", report.Status)
	fmt.Fprintf(w, "%s\n\n", report.Summary)

	if len(report.StepSummaries) > 0 {
		fmt.Fprintf(w, "## Steps\n\n")
		fmt.Fprintf(w, "| # | Action | Outcome | Elapsed |\n")
		fmt.Fprintf(w, "|---|--------|---------|--------:|\n")
		for _, s := range report.StepSummaries {
			fmt.Fprintf(w, "| %d | %s | %s | %dms |\n", s.Index+1, s.ActionKind, s.Classification, s.ElapsedMs)
		}
		fmt.Fprintln(w)
	}

	if report.FailureDetail != nil {
		fmt.Fprintf(w, "## Failure\n\n")
		fmt.Fprintf(w, "Offending step: %d\n\n", report.FailureDetail.StepIndex+1)
		if report.FailureDetail.Reason != "" {
			fmt.Fprintf(w, "Reason: %s\n\n", report.FailureDetail.Reason)
		}
		if report.FailureDetail.SnapshotDiff != "" {
			fmt.Fprintf(w, "Final screen change:\n\n```diff\n%s\n```\n", report.FailureDetail.SnapshotDiff)
		}
	}

	_, err := fmt.Fprintf(w, "_Generated at %s_\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	return err
}
