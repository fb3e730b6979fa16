// Package nlp holds the thin adapters over the external completion service:
// intent classification and parameter extraction. Both degrade gracefully:
// any transport or parsing failure yields a confidence-0.1 stub result
// instead of an error, so the orchestrator can always fall through to its
// local logic.
package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harborline/stockpilot/internal/llm"
	"github.com/harborline/stockpilot/internal/logging"
	"github.com/harborline/stockpilot/internal/registry"
	"github.com/harborline/stockpilot/pkg/types"
)

// FailureConfidence is reported when the remote service cannot produce a
// usable result. Low enough to always lose to the fallback parser.
const FailureConfidence = 0.1

// Classifier labels a command with a canonical action name.
type Classifier struct {
	completer llm.Completer
}

// NewClassifier creates a classifier over a completion client.
func NewClassifier(completer llm.Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Classify determines the intended action for a command. The optional
// context summary from recent turns is embedded verbatim in the prompt.
// Never returns an error: a failed call comes back as a stub with
// FailureConfidence so callers can decide locally.
func (c *Classifier) Classify(ctx context.Context, command, contextSummary string) *types.ClassificationResult {
	systemPrompt := `You are the intent classifier of an inventory management assistant.
Classify the user's command as exactly one of these actions:

` + registry.ClassifierBriefing() + `
Respond with JSON only, no other text:
{"action": "ACTION_NAME", "confidence": 0.95, "reasoning": "short explanation"}

If the command matches no action, use {"action": "QUERY_INVENTORY", "confidence": 0.2, "reasoning": "unrecognized"}.`

	userPrompt := command
	if contextSummary != "" {
		userPrompt = fmt.Sprintf("%s\n\nCommand: %s", contextSummary, command)
	}

	response, err := c.completer.ChatCompletion(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		logging.Warnf("intent classification failed: %v", err)
		return classificationStub(fmt.Sprintf("classifier unavailable: %v", err))
	}

	var result types.ClassificationResult
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &result); err != nil {
		logging.Warnf("failed to parse classification JSON: %v, raw response: %s", err, response)
		return classificationStub("classifier returned malformed output")
	}
	if result.Action == "" {
		return classificationStub("classifier returned no action")
	}

	result.Confidence = clamp01(result.Confidence)
	logging.Debugf("classified %q as %s (confidence %.2f)", command, result.Action, result.Confidence)
	return &result
}

func classificationStub(reasoning string) *types.ClassificationResult {
	return &types.ClassificationResult{
		Action:     "QUERY_INVENTORY",
		Confidence: FailureConfidence,
		Reasoning:  reasoning,
	}
}

// stripCodeFence removes a markdown code fence wrapper, which some models
// insist on emitting around JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
