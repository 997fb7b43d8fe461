package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// fakeCompleter returns a canned response and records the prompts it saw.
type fakeCompleter struct {
	response string
	err      error
	system   string
	user     string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system = systemPrompt
	f.user = userPrompt
	return f.response, f.err
}

func testSnapshot() *schemas.SceneSnapshot {
	return &schemas.SceneSnapshot{
		ScreenshotHash: "abc",
		UITree: &schemas.UINode{
			Role: "android.widget.FrameLayout",
			Children: []*schemas.UINode{
				{Role: "android.widget.Button", Text: "Sign in", Clickable: true},
			},
		},
		TextExtract: "Sign in",
	}
}

func TestDecideParsesAction(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"thought":"tap the sign in button","done":false,"action":{"kind":"tap","x":540,"y":1200}}`,
	}
	engine := NewEngine(completer, zap.NewNop())

	decision, err := engine.Decide(context.Background(), schemas.Goal{Text: "log in"}, nil, testSnapshot())
	require.NoError(t, err)

	assert.False(t, decision.Done)
	require.NotNil(t, decision.Action)
	assert.Equal(t, schemas.ActionTap, decision.Action.Kind)
	assert.Equal(t, 540, decision.Action.X)
	assert.Contains(t, completer.user, "log in")
	assert.Contains(t, completer.user, "Sign in")
}

func TestDecidePropagatesTransportError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	engine := NewEngine(completer, zap.NewNop())

	_, err := engine.Decide(context.Background(), schemas.Goal{Text: "x"}, nil, testSnapshot())
	assert.ErrorContains(t, err, "connection refused")
}

func TestParseDecisionVariants(t *testing.T) {
	t.Run("markdown fenced block", func(t *testing.T) {
		raw := "Here is my decision:\n```json\n{\"done\":true,\"success\":true,\"reason\":\"finished\"}\n```"
		d, err := parseDecision(raw)
		require.NoError(t, err)
		assert.True(t, d.Done)
		assert.True(t, d.Success)
		assert.Equal(t, "finished", d.Reason)
	})

	t.Run("raw json with surrounding prose", func(t *testing.T) {
		raw := `Sure! {"thought":"swipe up","done":false,"action":{"kind":"swipe","x":540,"y":1600,"end_x":540,"end_y":400,"duration_ms":300}} hope that helps`
		d, err := parseDecision(raw)
		require.NoError(t, err)
		require.NotNil(t, d.Action)
		assert.Equal(t, schemas.ActionSwipe, d.Action.Kind)
	})

	t.Run("done expressed as action kind", func(t *testing.T) {
		raw := `{"done":false,"action":{"kind":"done","success":false,"reason":"button does not exist"}}`
		d, err := parseDecision(raw)
		require.NoError(t, err)
		assert.True(t, d.Done)
		assert.False(t, d.Success)
		assert.Equal(t, "button does not exist", d.Reason)
		assert.Nil(t, d.Action)
	})

	t.Run("done decision drops stray action", func(t *testing.T) {
		raw := `{"done":true,"success":true,"reason":"ok","action":{"kind":"tap","x":1,"y":1}}`
		d, err := parseDecision(raw)
		require.NoError(t, err)
		assert.True(t, d.Done)
		assert.Nil(t, d.Action)
	})

	t.Run("invalid action rejected", func(t *testing.T) {
		raw := `{"done":false,"action":{"kind":"type","text":""}}`
		_, err := parseDecision(raw)
		assert.Error(t, err)
	})

	t.Run("missing action rejected", func(t *testing.T) {
		_, err := parseDecision(`{"done":false,"thought":"hmm"}`)
		assert.Error(t, err)
	})

	t.Run("no json at all", func(t *testing.T) {
		_, err := parseDecision("I cannot help with that.")
		assert.Error(t, err)
	})
}

func TestBuildUserPromptHistoryWindow(t *testing.T) {
	var history []schemas.StepRecord
	for i := 0; i < 20; i++ {
		history = append(history, schemas.StepRecord{
			Index:   i,
			Action:  schemas.ActionSpec{Kind: schemas.ActionTap, X: i, Y: i},
			Outcome: schemas.ActionOutcome{Classification: schemas.OutcomeOK},
		})
	}

	prompt := BuildUserPrompt(schemas.Goal{Text: "goal"}, history, testSnapshot())

	assert.Contains(t, prompt, "(earlier 8 steps omitted)")
	assert.NotContains(t, prompt, "1. tap(0,0)")
	assert.Contains(t, prompt, "20. tap(19,19)")
}

func TestBuildUserPromptDeterministic(t *testing.T) {
	goal := schemas.Goal{Text: "goal", AppPackage: "com.example"}
	a := BuildUserPrompt(goal, nil, testSnapshot())
	b := BuildUserPrompt(goal, nil, testSnapshot())
	assert.Equal(t, a, b)
}

func TestBuildUserPromptTruncatesLargeTree(t *testing.T) {
	wide := &schemas.UINode{Role: "root"}
	for i := 0; i < 5000; i++ {
		wide.Children = append(wide.Children, &schemas.UINode{
			Role: "android.widget.TextView",
			Text: "some moderately long label text for padding purposes",
		})
	}
	snap := &schemas.SceneSnapshot{UITree: wide, TextExtract: "x"}

	prompt := BuildUserPrompt(schemas.Goal{Text: "goal"}, nil, snap)
	assert.Contains(t, prompt, "(truncated)")
	assert.Less(t, len(prompt), maxTreeChars+2000)
}
