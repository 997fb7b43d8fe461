// File: internal/reasoning/engine.go

// Package reasoning turns scene snapshots into next-action decisions by
// prompting an LLM and parsing its structured reply.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// Engine implements schemas.ReasoningEngine over a Completer.
type Engine struct {
	client Completer
	logger *zap.Logger
}

// NewEngine wires the decision oracle to an LLM transport.
func NewEngine(client Completer, logger *zap.Logger) *Engine {
	return &Engine{
		client: client,
		logger: logger.Named("reasoning"),
	}
}

// Decide asks the model for the next move given the goal, the history and the
// current scene.
func (e *Engine) Decide(ctx context.Context, goal schemas.Goal, history []schemas.StepRecord, snap *schemas.SceneSnapshot) (schemas.Decision, error) {
	userPrompt := BuildUserPrompt(goal, history, snap)

	raw, err := e.client.Complete(ctx, SystemPrompt(), userPrompt)
	if err != nil {
		return schemas.Decision{}, fmt.Errorf("llm completion: %w", err)
	}

	decision, err := parseDecision(raw)
	if err != nil {
		e.logger.Warn("failed to parse decision",
			zap.String("raw_response", raw),
			zap.Error(err),
		)
		return schemas.Decision{}, err
	}

	e.logger.Debug("decision",
		zap.Bool("done", decision.Done),
		zap.String("thought", decision.Thought),
	)
	return decision, nil
}

var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// decisionPayload mirrors the JSON contract the system prompt demands.
type decisionPayload struct {
	Thought string              `json:"thought"`
	Done    bool                `json:"done"`
	Success bool                `json:"success"`
	Reason  string              `json:"reason"`
	Action  *schemas.ActionSpec `json:"action"`
}

// parseDecision robustly extracts a JSON object from the model's response,
// handling markdown code blocks or raw JSON.
func parseDecision(response string) (schemas.Decision, error) {
	response = strings.TrimSpace(response)
	var jsonStringToParse string

	matches := jsonBlockRegex.FindStringSubmatch(response)
	if len(matches) > 1 {
		jsonStringToParse = strings.TrimSpace(matches[1])
	} else {
		firstBracket := strings.Index(response, "{")
		lastBracket := strings.LastIndex(response, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			jsonStringToParse = response[firstBracket : lastBracket+1]
		} else {
			jsonStringToParse = response
		}
	}

	if jsonStringToParse == "" {
		return schemas.Decision{}, fmt.Errorf("could not find any JSON in the LLM response")
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(jsonStringToParse), &payload); err != nil {
		return schemas.Decision{}, fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}

	decision := schemas.Decision{
		Done:    payload.Done,
		Success: payload.Success,
		Reason:  payload.Reason,
		Thought: payload.Thought,
		Action:  payload.Action,
	}

	if decision.Done {
		decision.Action = nil
		return decision, nil
	}

	if decision.Action == nil {
		return schemas.Decision{}, fmt.Errorf("decision missing required 'action' field after successful JSON parsing")
	}
	// Some models express completion as an action of kind "done" instead of
	// the top-level flag. Normalize it.
	if decision.Action.IsDone() {
		decision.Done = true
		decision.Success = decision.Action.Success
		if decision.Reason == "" {
			decision.Reason = decision.Action.Reason
		}
		decision.Action = nil
		return decision, nil
	}
	if err := decision.Action.Validate(); err != nil {
		return schemas.Decision{}, fmt.Errorf("decision action invalid: %w", err)
	}
	return decision, nil
}
