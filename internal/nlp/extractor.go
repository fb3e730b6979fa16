package nlp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harborline/stockpilot/internal/llm"
	"github.com/harborline/stockpilot/internal/logging"
	"github.com/harborline/stockpilot/internal/registry"
	"github.com/harborline/stockpilot/pkg/types"
)

// Extractor pulls action parameters out of a command.
type Extractor struct {
	completer llm.Completer
}

// NewExtractor creates an extractor over a completion client.
func NewExtractor(completer llm.Completer) *Extractor {
	return &Extractor{completer: completer}
}

// Extract pulls the parameters for a given action from the command. Like
// Classify, it never returns an error; failures come back as a stub result
// with FailureConfidence and every required field reported missing.
func (e *Extractor) Extract(ctx context.Context, command, action, contextSummary string) *types.ExtractionResult {
	briefing := registry.ExtractorBriefing(action)
	if briefing == "" {
		briefing = fmt.Sprintf("Action %s has no documented schema; extract whatever parameters seem relevant.\n", action)
	}

	systemPrompt := `You are the parameter extractor of an inventory management assistant.
Extract the parameters for the action from the user's command.

` + briefing + `
Respond with JSON only, no other text:
{"parameters": {"name": "value"}, "missing_required": ["names of required parameters you could not find"], "confidence": 0.9}

Omit parameters you cannot find. Numbers must be JSON numbers, not strings.`

	userPrompt := command
	if contextSummary != "" {
		userPrompt = fmt.Sprintf("%s\n\nCommand: %s", contextSummary, command)
	}

	response, err := e.completer.ChatCompletion(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		logging.Warnf("parameter extraction failed: %v", err)
		return extractionStub(action)
	}

	var result types.ExtractionResult
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &result); err != nil {
		logging.Warnf("failed to parse extraction JSON: %v, raw response: %s", err, response)
		return extractionStub(action)
	}

	if result.Parameters == nil {
		result.Parameters = make(map[string]interface{})
	}
	if result.MissingRequired == nil {
		result.MissingRequired = missingRequired(action, result.Parameters)
	}
	result.Confidence = clamp01(result.Confidence)

	logging.Debugf("extracted %d parameters for %s (confidence %.2f, missing %v)",
		len(result.Parameters), action, result.Confidence, result.MissingRequired)
	return &result
}

func extractionStub(action string) *types.ExtractionResult {
	return &types.ExtractionResult{
		Parameters:      make(map[string]interface{}),
		MissingRequired: missingRequired(action, nil),
		Confidence:      FailureConfidence,
	}
}

// missingRequired lists the action's required parameters absent from params.
func missingRequired(action string, params map[string]interface{}) []string {
	def, ok := registry.Find(registry.NormalizeActionName(action))
	if !ok {
		return nil
	}

	var missing []string
	for _, name := range def.RequiredParameters() {
		if v, present := params[name]; !present || v == nil || v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
