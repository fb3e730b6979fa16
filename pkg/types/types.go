package types

import "time"

// ClassificationResult is the output of the intent classification stage.
type ClassificationResult struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// ExtractionResult is the output of the parameter extraction stage.
type ExtractionResult struct {
	Parameters      map[string]interface{} `json:"parameters"`
	MissingRequired []string               `json:"missing_required,omitempty"`
	Confidence      float64                `json:"confidence"`
}

// ParseDebug retains both stage results and override bookkeeping so every
// parse decision can be audited and asserted on in tests.
type ParseDebug struct {
	Classification *ClassificationResult `json:"classification,omitempty"`
	Extraction     *ExtractionResult     `json:"extraction,omitempty"`
	FallbackUsed   bool                  `json:"fallback_used"`
	OverrideFired  bool                  `json:"override_fired"`
	OverrideReason string                `json:"override_reason,omitempty"`
}

// ParsedCommand is the single contract the orchestrator hands to callers.
// It is always valid: every failure mode inside the pipeline resolves to a
// low-confidence ParsedCommand rather than an error.
type ParsedCommand struct {
	Action              string                 `json:"action"`
	Parameters          map[string]interface{} `json:"parameters"`
	Confidence          float64                `json:"confidence"`
	Reasoning           string                 `json:"reasoning,omitempty"`
	MissingRequired     []string               `json:"missing_required,omitempty"`
	ClarificationNeeded string                 `json:"clarification_needed,omitempty"`
	Debug               ParseDebug             `json:"debug"`
}

// ConversationMessage is one turn of a conversation. Messages are append-only,
// capped per session, and expire after the configured message TTL.
type ConversationMessage struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	UserInput  string                 `json:"user_input"`
	Action     string                 `json:"action,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Success    bool                   `json:"success"`
}

// ConversationContext is the derived view of a session: shortcuts recomputed
// from the most recent successful message plus any in-flight multi-step state.
type ConversationContext struct {
	LastAction     string              `json:"last_action,omitempty"`
	LastItem       string              `json:"last_item,omitempty"`
	LastLocation   string              `json:"last_location,omitempty"`
	LastQuantity   float64             `json:"last_quantity,omitempty"`
	MultiStepState *MultiStepFlowState `json:"multi_step_state,omitempty"`
}

// MultiStepFlowState tracks a partially collected multi-step clarification
// flow. It lives inside the conversation context and is consumed by the
// executor once CurrentStep reaches TotalSteps.
type MultiStepFlowState struct {
	FlowID        string                 `json:"flow_id"`
	CurrentStep   int                    `json:"current_step"`
	TotalSteps    int                    `json:"total_steps"`
	CollectedData map[string]interface{} `json:"collected_data"`
	PendingAction string                 `json:"pending_action"`
}

// PendingCommand is a lightweight single-field clarification follow-up,
// distinct from a full multi-step flow. It expires quickly: a stale pending
// command is ignored on the next read.
type PendingCommand struct {
	ID            string                 `json:"id"`
	Action        string                 `json:"action"`
	Parameters    map[string]interface{} `json:"parameters"`
	MissingFields []string               `json:"missing_fields"`
	Prompt        string                 `json:"prompt"`
	CreatedAt     time.Time              `json:"created_at"`
	ExpiresAt     time.Time              `json:"expires_at"`
	PendingAction string                 `json:"pending_action,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Options       []string               `json:"options,omitempty"`
}

// ExecutionResult represents the outcome of dispatching a parsed command to
// an action handler.
type ExecutionResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// CommandRequest is a text interaction request.
type CommandRequest struct {
	Text      string `json:"text" binding:"required"`
	SessionID string `json:"session_id"`
}

// CommandResponse is the response for a text interaction.
type CommandResponse struct {
	SessionID string           `json:"session_id"`
	Command   *ParsedCommand   `json:"command"`
	Result    *ExecutionResult `json:"result,omitempty"`
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
}
