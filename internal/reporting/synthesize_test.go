package reporting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

func snap(text string) *schemas.SceneSnapshot {
	return &schemas.SceneSnapshot{
		ScreenshotHash: "hash-" + text,
		UITree:         &schemas.UINode{Role: "root", Text: text},
		TextExtract:    text,
	}
}

func finishedSession(status schemas.SessionStatus, reason string, steps ...schemas.StepRecord) *schemas.TaskSession {
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return &schemas.TaskSession{
		ID:             "session-1",
		Device:         "emulator-5554",
		Goal:           schemas.Goal{Text: "open the settings screen"},
		Status:         status,
		Steps:          steps,
		StartedAt:      started,
		EndedAt:        started.Add(42 * time.Second),
		TerminalReason: reason,
	}
}

func step(index int, kind schemas.ActionKind, class schemas.OutcomeClass, pre, post *schemas.SceneSnapshot) schemas.StepRecord {
	return schemas.StepRecord{
		Index:       index,
		PreSnapshot: pre,
		Action:      schemas.ActionSpec{Kind: kind},
		Outcome: schemas.ActionOutcome{
			Action:         schemas.ActionSpec{Kind: kind},
			Classification: class,
			Elapsed:        150 * time.Millisecond,
		},
		PostSnapshot: post,
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	session := finishedSession(schemas.StatusSucceeded, "settings visible",
		step(0, schemas.ActionStart, schemas.OutcomeOK, snap("home"), snap("settings")),
	)

	report := Synthesize(session)

	assert.Equal(t, "session-1", report.SessionID)
	assert.Equal(t, schemas.StatusSucceeded, report.Status)
	assert.Contains(t, report.Summary, "Goal achieved in 1 steps")
	require.Len(t, report.StepSummaries, 1)
	assert.Equal(t, schemas.ActionStart, report.StepSummaries[0].ActionKind)
	assert.Equal(t, int64(150), report.StepSummaries[0].ElapsedMs)
	assert.Nil(t, report.FailureDetail, "successful sessions carry no failure detail")
}

func TestSynthesizeFailureCitesOffendingStep(t *testing.T) {
	session := finishedSession(schemas.StatusFailed, schemas.ReasonStalled,
		step(0, schemas.ActionTap, schemas.OutcomeOK, snap("a"), snap("b")),
		step(1, schemas.ActionTap, schemas.OutcomeNoop, snap("b"), snap("b")),
		step(2, schemas.ActionTap, schemas.OutcomeNoop, snap("b"), snap("b")),
	)

	report := Synthesize(session)

	require.NotNil(t, report.FailureDetail)
	assert.Equal(t, 2, report.FailureDetail.StepIndex)
	assert.Equal(t, schemas.ReasonStalled, report.FailureDetail.Reason)
	assert.Contains(t, report.FailureDetail.SnapshotDiff, "no visible text change")
}

func TestSynthesizeFailureDiff(t *testing.T) {
	session := finishedSession(schemas.StatusFailed, "wrong screen",
		step(0, schemas.ActionTap, schemas.OutcomeDeviceError,
			snap("Login\nUsername\nPassword"), snap("Login\nError: invalid credentials")),
	)

	report := Synthesize(session)

	require.NotNil(t, report.FailureDetail)
	assert.Contains(t, report.FailureDetail.SnapshotDiff, "+")
	assert.Contains(t, report.FailureDetail.SnapshotDiff, "invalid credentials")
}

func TestSynthesizeZeroStepSession(t *testing.T) {
	session := finishedSession(schemas.StatusFailed, schemas.ReasonCaptureUnavailable)

	report := Synthesize(session)

	assert.Empty(t, report.StepSummaries)
	require.NotNil(t, report.FailureDetail)
	assert.Equal(t, 0, report.FailureDetail.StepIndex)
	assert.Empty(t, report.FailureDetail.SnapshotDiff, "no snapshots to diff")
}

func TestSynthesizeDeterministic(t *testing.T) {
	session := finishedSession(schemas.StatusTimedOut, schemas.ReasonBudgetExhausted,
		step(0, schemas.ActionSwipe, schemas.OutcomeOK, snap("a"), snap("b")),
	)

	first := Synthesize(session)
	second := Synthesize(session)

	first.GeneratedAt = second.GeneratedAt
	assert.Equal(t, first, second)
}

func TestWriteMarkdown(t *testing.T) {
	session := finishedSession(schemas.StatusFailed, schemas.ReasonStalled,
		step(0, schemas.ActionTap, schemas.OutcomeNoop, snap("a"), snap("a")),
	)
	report := Synthesize(session)

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, report))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Task Report"))
	assert.Contains(t, out, "open the settings screen")
	assert.Contains(t, out, "| 1 | tap | noop |")
	assert.Contains(t, out, "## Failure")
}
