// File: internal/reasoning/prompts.go
package reasoning

import (
	"fmt"
	"strings"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// Prompt assembly limits. The hierarchy dump can run to hundreds of kilobytes
// on busy screens; the model only needs enough of it to ground its next move.
const (
	maxTreeChars    = 24000
	maxHistorySteps = 12
)

const systemPrompt = `You are a senior mobile QA automation engineer driving an Android emulator one step at a time.

Each turn you receive the task goal, the history of steps taken so far, and the current screen state (visible text plus the accessibility hierarchy). Decide the single next action, or declare the task finished.

Respond with exactly one JSON object, no prose, in this shape:

{
  "thought": "one sentence on what you see and why you chose this action",
  "done": false,
  "action": {
    "kind": "tap|swipe|type|key|install|uninstall|start|wait",
    "x": 0, "y": 0,
    "end_x": 0, "end_y": 0, "duration_ms": 0,
    "text": "",
    "keycode": 0,
    "path": "", "package": "", "activity": "",
    "wait_ms": 0
  }
}

To finish, respond instead with:

{
  "thought": "...",
  "done": true,
  "success": true,
  "reason": "what was achieved, or exactly why the goal is impossible"
}

Rules:
- Coordinates are absolute screen pixels. Tap the center of an element's bounds.
- Clear a text field before typing into it. Never assume fields are empty.
- Scroll to check for content below the fold before concluding an element is absent.
- Save destructive actions (logout, delete, reset) for last.
- If the same action has not changed the screen, try a different approach instead of repeating it.
- Declare done with success=false as soon as the goal is clearly impossible. Do not guess forever.`

// SystemPrompt returns the fixed instruction block sent with every decision
// request.
func SystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt renders the goal, the recent step history and the current
// scene into the per-turn prompt. Output is deterministic for a given input.
func BuildUserPrompt(goal schemas.Goal, history []schemas.StepRecord, snap *schemas.SceneSnapshot) string {
	var b strings.Builder

	b.WriteString("## Goal\n")
	b.WriteString(goal.Text)
	b.WriteString("\n")
	if goal.AppPackage != "" {
		fmt.Fprintf(&b, "\nApp under test: %s\n", goal.AppPackage)
	}

	b.WriteString("\n## Steps so far\n")
	if len(history) == 0 {
		b.WriteString("none\n")
	} else {
		start := 0
		if len(history) > maxHistorySteps {
			start = len(history) - maxHistorySteps
			fmt.Fprintf(&b, "(earlier %d steps omitted)\n", start)
		}
		for _, step := range history[start:] {
			fmt.Fprintf(&b, "%d. %s -> %s\n", step.Index+1, describeAction(step.Action), step.Outcome.Classification)
		}
	}

	b.WriteString("\n## Current screen text\n")
	if snap.TextExtract == "" {
		b.WriteString("(no visible text)\n")
	} else {
		b.WriteString(snap.TextExtract)
		b.WriteString("\n")
	}

	b.WriteString("\n## Accessibility hierarchy\n")
	tree := snap.SerializeTree()
	if len(tree) > maxTreeChars {
		tree = tree[:maxTreeChars] + "\n(truncated)"
	}
	b.WriteString(tree)
	b.WriteString("\n")

	return b.String()
}

func describeAction(a schemas.ActionSpec) string {
	switch a.Kind {
	case schemas.ActionTap:
		return fmt.Sprintf("tap(%d,%d)", a.X, a.Y)
	case schemas.ActionSwipe:
		return fmt.Sprintf("swipe(%d,%d -> %d,%d)", a.X, a.Y, a.EndX, a.EndY)
	case schemas.ActionTypeText:
		return fmt.Sprintf("type(%q)", a.Text)
	case schemas.ActionKey:
		return fmt.Sprintf("key(%d)", a.Keycode)
	case schemas.ActionStart:
		return fmt.Sprintf("start(%s)", a.Package)
	case schemas.ActionInstall:
		return fmt.Sprintf("install(%s)", a.Path)
	case schemas.ActionUninstall:
		return fmt.Sprintf("uninstall(%s)", a.Package)
	case schemas.ActionWait:
		return fmt.Sprintf("wait(%dms)", a.WaitMs)
	default:
		return string(a.Kind)
	}
}
