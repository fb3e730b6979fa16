// Package parser orchestrates command interpretation: classify, fall back,
// extract, resolve context references, normalize, override, and book-keep
// conversation state, one pass per incoming command. The parser holds no
// state of its own; everything lives in the conversation manager, keyed by
// session ID.
package parser

import (
	"context"
	"strings"

	"github.com/harborline/stockpilot/internal/conversation"
	"github.com/harborline/stockpilot/internal/fallback"
	"github.com/harborline/stockpilot/internal/logging"
	"github.com/harborline/stockpilot/internal/nlp"
	"github.com/harborline/stockpilot/internal/registry"
	"github.com/harborline/stockpilot/internal/validate"
	"github.com/harborline/stockpilot/pkg/types"
)

// rephrasePrompt is the clarification attached to results the parser cannot
// stand behind.
const rephrasePrompt = "Sorry, I couldn't work out what you meant. Could you rephrase that?"

// IntentClassifier labels a command with an action.
type IntentClassifier interface {
	Classify(ctx context.Context, command, contextSummary string) *types.ClassificationResult
}

// ParameterExtractor extracts parameters for an action from a command.
type ParameterExtractor interface {
	Extract(ctx context.Context, command, action, contextSummary string) *types.ExtractionResult
}

// Thresholds tunes the confidence-driven decisions. See config for the
// environment variables these come from.
type Thresholds struct {
	// Fallback is consulted when classification confidence is below this.
	Fallback float64
	// Override fires when classification stays below OverrideClassifierMax
	// while extraction reaches OverrideExtractorMin and a search term exists.
	OverrideClassifierMax float64
	OverrideExtractorMin  float64
}

// CommandParser turns free text into a ParsedCommand.
type CommandParser struct {
	classifier IntentClassifier
	extractor  ParameterExtractor
	sessions   *conversation.Manager
	thresholds Thresholds
}

// New creates a parser over its collaborators.
func New(classifier IntentClassifier, extractor ParameterExtractor, sessions *conversation.Manager, thresholds Thresholds) *CommandParser {
	return &CommandParser{
		classifier: classifier,
		extractor:  extractor,
		sessions:   sessions,
		thresholds: thresholds,
	}
}

// parameterAliases maps extracted parameter names onto the canonical schema.
// Applied first-write-wins: an already-canonical field is never overwritten.
var parameterAliases = map[string]string{
	"qty":          "quantity",
	"amount":       "quantity",
	"cost":         "unitCost",
	"price":        "unitCost",
	"supplier":     "preferredSupplierName",
	"supplierName": "preferredSupplierName",
	"loc":          "location",
	"warehouse":    "location",
	"mfg":          "manufacturer",
	"make":         "manufacturer",
	"item":         "partNumber",
	"part":         "partNumber",
	"sku":          "partNumber",
}

// searchTermKeys are the parameter names that count as a search term for the
// override rule.
var searchTermKeys = []string{"search", "query", "searchTerm", "q"}

// Parse interprets one command within a session. It never returns an error
// and never panics out: every failure mode resolves to a valid ParsedCommand,
// in the worst case a terminal low-confidence clarification request.
func (p *CommandParser) Parse(ctx context.Context, sessionID, command string) (result *types.ParsedCommand) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("parser panic recovered: %v", r)
			result = p.lastResort(sessionID, command)
		}
	}()

	result = p.parse(ctx, sessionID, command)
	return result
}

func (p *CommandParser) parse(ctx context.Context, sessionID, command string) *types.ParsedCommand {
	summary := p.sessions.ContextSummary(sessionID)

	// Stage 1: classify.
	classification := p.classifier.Classify(ctx, command, summary)
	debug := types.ParseDebug{Classification: classification}

	action := classification.Action
	confidence := classification.Confidence
	reasoning := classification.Reasoning
	var params map[string]interface{}
	var extraction *types.ExtractionResult

	// Low classifier confidence: consult the deterministic fallback and
	// adopt it outright when it is strictly more confident. The fallback
	// already produced parameters, so extraction is skipped.
	fallbackAdopted := false
	if confidence < p.thresholds.Fallback {
		if fb, ok := fallback.TryParse(command); ok && fb.Confidence > confidence {
			logging.Infof("fallback parse adopted for %q: %s (%.2f over %.2f)",
				command, fb.Action, fb.Confidence, confidence)
			action = fb.Action
			confidence = fb.Confidence
			params = fb.Parameters
			reasoning = "matched a deterministic command pattern"
			fallbackAdopted = true
			debug.FallbackUsed = true
		}
	}

	action = registry.NormalizeActionName(action)

	// Stage 2: extract, unless the fallback already supplied parameters.
	if !fallbackAdopted {
		extraction = p.extractor.Extract(ctx, command, action, summary)
		debug.Extraction = extraction
		params = extraction.Parameters
	}
	if params == nil {
		params = make(map[string]interface{})
	}

	// Contextual references, then canonical parameter names.
	params = p.sessions.ResolveReferences(sessionID, command, params)
	params = normalizeParameterNames(params)

	// Confidence-driven override: rescue a high-confidence extraction from a
	// low-information intent label when a search term is present.
	if !fallbackAdopted &&
		classification.Confidence < p.thresholds.OverrideClassifierMax &&
		extraction != nil && extraction.Confidence >= p.thresholds.OverrideExtractorMin {
		if term, ok := searchTerm(params); ok {
			overridden := "SEARCH_CATALOGUE"
			if signalsStockIntent(command, params) {
				overridden = "SEARCH_STOCK"
			}
			if overridden != action {
				debug.OverrideFired = true
				debug.OverrideReason = "search term " + term + " extracted with high confidence under a low-confidence intent label"
				action = overridden
				confidence = extraction.Confidence
			}
		}
	}

	// Overall confidence: min of the two stages unless a fallback or
	// override path already set it.
	if !fallbackAdopted && !debug.OverrideFired && extraction != nil {
		confidence = min(classification.Confidence, extraction.Confidence)
	}

	// When both stages degraded to stubs there is nothing extracted; carry
	// the raw text as the search term so the result is still actionable.
	degraded := action == "QUERY_INVENTORY" && confidence <= nlp.FailureConfidence && len(params) == 0
	if degraded {
		params["search"] = command
	}

	check := validate.Check(action, params)
	clarification := check.Prompt(action)
	// A degraded result is a guess, never a command to execute; always ask
	// the user to rephrase.
	if degraded && clarification == "" {
		clarification = rephrasePrompt
	}

	cmd := &types.ParsedCommand{
		Action:              action,
		Parameters:          params,
		Confidence:          confidence,
		Reasoning:           reasoning,
		MissingRequired:     check.Missing,
		ClarificationNeeded: clarification,
		Debug:               debug,
	}

	p.recordTurn(sessionID, command, cmd)
	return cmd
}

// recordTurn appends the turn to the session and maintains multi-step and
// pending-clarification state.
func (p *CommandParser) recordTurn(sessionID, command string, cmd *types.ParsedCommand) {
	success := len(cmd.MissingRequired) == 0 && cmd.Confidence >= p.thresholds.Fallback

	if err := p.sessions.AddMessage(sessionID, types.ConversationMessage{
		UserInput:  command,
		Action:     cmd.Action,
		Parameters: cmd.Parameters,
		Success:    success,
	}); err != nil {
		logging.Warnf("failed to record conversation turn: %v", err)
	}

	// Extraction can signal flow progress directly via step counters.
	if cur, curOK := asInt(cmd.Parameters["currentStep"]); curOK {
		if total, totalOK := asInt(cmd.Parameters["totalSteps"]); totalOK && total > 0 {
			state := p.sessions.MultiStepState(sessionID)
			if state == nil || state.PendingAction != cmd.Action {
				state = &types.MultiStepFlowState{
					FlowID:        cmd.Action,
					CollectedData: map[string]interface{}{},
					PendingAction: cmd.Action,
				}
			}
			state.CurrentStep = cur
			state.TotalSteps = total
			for k, v := range cmd.Parameters {
				if k == "currentStep" || k == "totalSteps" {
					continue
				}
				state.CollectedData[k] = v
			}
			if err := p.sessions.SetMultiStepState(sessionID, state); err != nil {
				logging.Warnf("failed to persist multi-step state: %v", err)
			}
			return
		}
	}

	// A clarification seeds a short-lived pending command carrying whatever
	// is already known, so the next utterance can complete it.
	if cmd.ClarificationNeeded != "" && len(cmd.MissingRequired) > 0 {
		if _, err := p.sessions.SetPending(sessionID, types.PendingCommand{
			Action:        cmd.Action,
			Parameters:    cmd.Parameters,
			MissingFields: cmd.MissingRequired,
			Prompt:        cmd.ClarificationNeeded,
		}); err != nil {
			logging.Warnf("failed to seed pending clarification: %v", err)
		}
	}
}

// lastResort is the terminal path: one final fallback attempt, then a
// low-confidence inventory query echoing the raw command. Guards itself so a
// second failure still resolves to the terminal result.
func (p *CommandParser) lastResort(sessionID, command string) (result *types.ParsedCommand) {
	terminal := &types.ParsedCommand{
		Action:              "QUERY_INVENTORY",
		Parameters:          map[string]interface{}{"search": command},
		Confidence:          0.1,
		ClarificationNeeded: rephrasePrompt,
		Debug:               types.ParseDebug{FallbackUsed: true},
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("last-resort parse panic recovered: %v", r)
			result = terminal
		}
	}()

	if fb, ok := fallback.TryParse(command); ok {
		params := normalizeParameterNames(fb.Parameters)
		check := validate.Check(fb.Action, params)
		cmd := &types.ParsedCommand{
			Action:              fb.Action,
			Parameters:          params,
			Confidence:          fb.Confidence,
			Reasoning:           "matched a deterministic command pattern",
			MissingRequired:     check.Missing,
			ClarificationNeeded: check.Prompt(fb.Action),
			Debug:               types.ParseDebug{FallbackUsed: true},
		}
		p.recordTurn(sessionID, command, cmd)
		return cmd
	}

	return terminal
}

// normalizeParameterNames maps alias parameter names onto the canonical
// schema, first-write-wins: when both alias and canonical are present the
// canonical value stays and the alias is dropped.
func normalizeParameterNames(params map[string]interface{}) map[string]interface{} {
	normalized := make(map[string]interface{}, len(params))

	// Canonical names first so aliases can never displace them.
	for k, v := range params {
		if _, isAlias := parameterAliases[k]; !isAlias {
			normalized[k] = v
		}
	}
	for k, v := range params {
		canonical, isAlias := parameterAliases[k]
		if !isAlias {
			continue
		}
		if _, exists := normalized[canonical]; !exists {
			normalized[canonical] = v
		}
	}
	return normalized
}

func searchTerm(params map[string]interface{}) (string, bool) {
	for _, key := range searchTermKeys {
		if v, ok := params[key].(string); ok && v != "" {
			return key, true
		}
	}
	return "", false
}

// signalsStockIntent reports whether the command text or a queryType
// parameter points at held stock rather than the catalogue.
func signalsStockIntent(command string, params map[string]interface{}) bool {
	lower := strings.ToLower(command)
	if strings.Contains(lower, "stock") || strings.Contains(lower, "inventory") || strings.Contains(lower, "on hand") {
		return true
	}
	if qt, ok := params["queryType"].(string); ok {
		qt = strings.ToLower(qt)
		return strings.Contains(qt, "stock") || strings.Contains(qt, "inventory")
	}
	return false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
