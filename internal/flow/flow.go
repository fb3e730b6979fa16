// Package flow implements named multi-step clarification flows: fixed,
// ordered sequences of one-field-at-a-time questions used to complete a
// complex action. Each step is optional or required, carries its own
// validator, and optional steps accept a literal "skip".
package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harborline/stockpilot/pkg/types"
)

// Value kinds determine how a validated raw answer is coerced before it is
// merged into the collected data.
const (
	KindText  = "text"
	KindFloat = "float"
	KindInt   = "int"
)

// Validator checks a raw answer for one step. A nil error means valid.
type Validator func(input string) error

// Step is one question of a flow.
type Step struct {
	Field     string
	Kind      string
	Optional  bool
	Validator Validator
	// Prompt renders the question, given a label for the subject of the flow
	// (usually the part number collected earlier).
	Prompt func(subject string) string
	// SkipText is appended to the prompt for optional steps.
	SkipText string
}

// Flow is a named, ordered sequence of steps.
type Flow struct {
	ID    string
	Steps []Step
}

// StepResult is the outcome of processing one user answer.
type StepResult struct {
	Value   interface{}
	Skipped bool
}

var flows = map[string]*Flow{}

func register(f *Flow) {
	flows[f.ID] = f
}

func init() {
	register(&Flow{
		ID: "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK",
		Steps: []Step{
			{
				Field:    "description",
				Kind:     KindText,
				Optional: true,
				Prompt: func(subject string) string {
					return fmt.Sprintf("What is the description for %s?", subject)
				},
				SkipText: `Say "skip" to leave it blank.`,
			},
			{
				Field:    "manufacturer",
				Kind:     KindText,
				Optional: true,
				Prompt: func(subject string) string {
					return fmt.Sprintf("Who manufactures %s?", subject)
				},
				SkipText: `Say "skip" if unknown.`,
			},
			{
				Field:     "unitCost",
				Kind:      KindFloat,
				Optional:  true,
				Validator: numericOrSkip,
				Prompt: func(subject string) string {
					return fmt.Sprintf("What does one %s cost?", subject)
				},
				SkipText: `Say "skip" to set the cost later.`,
			},
			{
				Field:     "markupPercent",
				Kind:      KindFloat,
				Optional:  true,
				Validator: numericOrSkip,
				Prompt: func(subject string) string {
					return "What markup percentage should apply?"
				},
				SkipText: `Say "skip" to use the default markup.`,
			},
			{
				Field:     "minimumQuantity",
				Kind:      KindInt,
				Optional:  true,
				Validator: wholeNumberOrSkip,
				Prompt: func(subject string) string {
					return fmt.Sprintf("What is the minimum stock level for %s?", subject)
				},
				SkipText: `Say "skip" for no reorder threshold.`,
			},
			{
				Field:    "location",
				Kind:     KindText,
				Optional: false,
				Prompt: func(subject string) string {
					return fmt.Sprintf("Which location should the %s stock go to?", subject)
				},
			},
		},
	})
}

// Get returns a registered flow by ID.
func Get(flowID string) (*Flow, bool) {
	f, ok := flows[strings.ToUpper(strings.TrimSpace(flowID))]
	return f, ok
}

// Start builds fresh state for this flow. Parameters already known from the
// triggering command are seeded into collected data so their steps can be
// answered up front or skipped by the caller.
func (f *Flow) Start(pendingAction string, known map[string]interface{}) *types.MultiStepFlowState {
	collected := make(map[string]interface{}, len(known))
	for k, v := range known {
		collected[k] = v
	}
	return &types.MultiStepFlowState{
		FlowID:        f.ID,
		CurrentStep:   0,
		TotalSteps:    len(f.Steps),
		CollectedData: collected,
		PendingAction: pendingAction,
	}
}

// StepAt returns the step at a zero-based index.
func (f *Flow) StepAt(i int) (*Step, bool) {
	if i < 0 || i >= len(f.Steps) {
		return nil, false
	}
	return &f.Steps[i], true
}

// PromptFor renders the question for the state's current step. The subject
// label is taken from the collected part number when present.
func (f *Flow) PromptFor(state *types.MultiStepFlowState) string {
	step, ok := f.StepAt(state.CurrentStep)
	if !ok {
		return ""
	}

	subject := "this item"
	if pn, ok := state.CollectedData["partNumber"].(string); ok && pn != "" {
		subject = pn
	}

	prompt := step.Prompt(subject)
	if step.Optional && step.SkipText != "" {
		prompt += " " + step.SkipText
	}
	return prompt
}

// ProcessStepInput interprets one user answer for a step. The literal token
// "skip" (or empty input) skips any optional step. Otherwise the step's
// validator runs and, on success, the raw text is coerced to the step's
// kind. A validation error leaves the flow state untouched so the step can
// be retried.
func ProcessStepInput(step *Step, userInput string) (StepResult, error) {
	input := strings.TrimSpace(userInput)

	if isSkipToken(input) {
		if !step.Optional {
			return StepResult{}, fmt.Errorf("%s is required and cannot be skipped", step.Field)
		}
		return StepResult{Value: nil, Skipped: true}, nil
	}

	if step.Validator != nil {
		if err := step.Validator(input); err != nil {
			return StepResult{}, err
		}
	}

	value, err := coerce(step.Kind, input)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Value: value}, nil
}

// Advance merges a step result into the state and moves to the next step.
// Skipped steps advance without recording a value. Returns true once the
// flow is complete.
func (f *Flow) Advance(state *types.MultiStepFlowState, result StepResult) bool {
	step, ok := f.StepAt(state.CurrentStep)
	if ok && !result.Skipped {
		if state.CollectedData == nil {
			state.CollectedData = make(map[string]interface{})
		}
		state.CollectedData[step.Field] = result.Value
	}
	state.CurrentStep++
	return state.CurrentStep >= state.TotalSteps
}

func isSkipToken(input string) bool {
	switch strings.ToLower(input) {
	case "", "skip", "none", "n/a":
		return true
	}
	return false
}

func coerce(kind, input string) (interface{}, error) {
	switch kind {
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimPrefix(input, "$"), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", input)
		}
		return f, nil
	case KindInt:
		n, err := strconv.Atoi(input)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", input)
		}
		return n, nil
	default:
		return input, nil
	}
}

func numericOrSkip(input string) error {
	if _, err := strconv.ParseFloat(strings.TrimPrefix(input, "$"), 64); err != nil {
		return fmt.Errorf("please give a number, or say \"skip\"")
	}
	return nil
}

func wholeNumberOrSkip(input string) error {
	if _, err := strconv.Atoi(input); err != nil {
		return fmt.Errorf("please give a whole number, or say \"skip\"")
	}
	return nil
}
