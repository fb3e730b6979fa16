// Package handler exposes the command pipeline over HTTP and WebSocket.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/harborline/stockpilot/internal/conversation"
	"github.com/harborline/stockpilot/internal/executor"
	"github.com/harborline/stockpilot/internal/flow"
	"github.com/harborline/stockpilot/internal/logging"
	"github.com/harborline/stockpilot/internal/parser"
	"github.com/harborline/stockpilot/internal/registry"
	"github.com/harborline/stockpilot/internal/validate"
	"github.com/harborline/stockpilot/pkg/types"
)

var cleanupTicker *time.Ticker

// Handler handles HTTP requests.
type Handler struct {
	parser   *parser.CommandParser
	executor *executor.Executor
	sessions *conversation.Manager
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler over the command pipeline.
func NewHandler(p *parser.CommandParser, e *executor.Executor, sessions *conversation.Manager) *Handler {
	return &Handler{
		parser:   p,
		executor: e,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the CORS middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Command handles POST /api/command.
func (h *Handler) Command(c *gin.Context) {
	var req types.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "text is required",
		})
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	c.JSON(http.StatusOK, h.process(c.Request.Context(), req.Text, req.SessionID))
}

// Actions handles GET /api/actions: the action catalogue, grouped by category.
func (h *Handler) Actions(c *gin.Context) {
	grouped := make(map[string][]gin.H)
	for _, def := range registry.All() {
		grouped[def.Category] = append(grouped[def.Category], gin.H{
			"name":        def.Name,
			"description": def.Description,
			"parameters":  def.Parameters,
			"examples":    def.Examples,
		})
	}
	c.JSON(http.StatusOK, gin.H{"actions": grouped})
}

// SessionInfo handles GET /api/session/:id.
func (h *Handler) SessionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.SessionInfo(c.Param("id")))
}

// ClearSession handles DELETE /api/session/:id.
func (h *Handler) ClearSession(c *gin.Context) {
	if err := h.sessions.Clear(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to clear session",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HealthCheck handles health check requests.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Chat handles GET /api/ws: a WebSocket conversation speaking the same
// request/response JSON as POST /api/command.
func (h *Handler) Chat(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	logging.Infof("websocket session %s connected", sessionID)

	for {
		var req types.CommandRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warnf("websocket session %s read error: %v", sessionID, err)
			}
			return
		}
		if req.SessionID != "" {
			sessionID = req.SessionID
		}
		if strings.TrimSpace(req.Text) == "" {
			continue
		}

		resp := h.process(c.Request.Context(), req.Text, sessionID)
		if err := conn.WriteJSON(resp); err != nil {
			logging.Warnf("websocket session %s write error: %v", sessionID, err)
			return
		}
	}
}

// process runs one utterance through the pipeline. An active multi-step flow
// or a live pending clarification captures the input before any fresh parse.
func (h *Handler) process(ctx context.Context, text, sessionID string) *types.CommandResponse {
	if state := h.sessions.MultiStepState(sessionID); state != nil {
		if resp := h.continueFlow(ctx, state, text, sessionID); resp != nil {
			return resp
		}
	}

	if pending := h.sessions.Pending(sessionID); pending != nil {
		return h.completePending(ctx, pending, text, sessionID)
	}

	cmd := h.parser.Parse(ctx, sessionID, text)

	if cmd.ClarificationNeeded != "" {
		return &types.CommandResponse{
			SessionID: sessionID,
			Command:   cmd,
			Result:    &types.ExecutionResult{Success: false, Message: cmd.ClarificationNeeded},
			Success:   true,
		}
	}

	if resp := h.maybeStartFlow(sessionID, cmd); resp != nil {
		return resp
	}

	result := h.executor.Execute(ctx, cmd)
	return &types.CommandResponse{
		SessionID: sessionID,
		Command:   cmd,
		Result:    result,
		Success:   result.Success,
		Error:     result.Error,
	}
}

// maybeStartFlow begins the action's guided flow when one is registered and
// some of its steps are still unanswered. Returns nil when there is nothing
// to collect and execution can proceed directly.
func (h *Handler) maybeStartFlow(sessionID string, cmd *types.ParsedCommand) *types.CommandResponse {
	f, ok := flow.Get(cmd.Action)
	if !ok {
		return nil
	}

	state := f.Start(cmd.Action, cmd.Parameters)
	if skipCollectedSteps(f, state) {
		return nil
	}

	if err := h.sessions.SetMultiStepState(sessionID, state); err != nil {
		logging.Warnf("failed to start flow for session %s: %v", sessionID, err)
	}
	return &types.CommandResponse{
		SessionID: sessionID,
		Command:   cmd,
		Result:    &types.ExecutionResult{Success: false, Message: f.PromptFor(state)},
		Success:   true,
	}
}

// continueFlow feeds one answer into the session's active flow. Returns nil
// when the stored state is unusable, letting a normal parse take over.
func (h *Handler) continueFlow(ctx context.Context, state *types.MultiStepFlowState, text, sessionID string) *types.CommandResponse {
	if isCancel(text) {
		if err := h.sessions.ClearMultiStepState(sessionID); err != nil {
			logging.Warnf("failed to clear flow state: %v", err)
		}
		return &types.CommandResponse{
			SessionID: sessionID,
			Result:    &types.ExecutionResult{Success: true, Message: "Okay, cancelled."},
			Success:   true,
		}
	}

	f, ok := flow.Get(state.FlowID)
	if !ok {
		logging.Warnf("session %s carries state for unknown flow %s, dropping it", sessionID, state.FlowID)
		h.sessions.ClearMultiStepState(sessionID)
		return nil
	}
	step, ok := f.StepAt(state.CurrentStep)
	if !ok {
		h.sessions.ClearMultiStepState(sessionID)
		return nil
	}

	result, err := flow.ProcessStepInput(step, text)
	if err != nil {
		// State untouched, the step is asked again.
		return &types.CommandResponse{
			SessionID: sessionID,
			Result: &types.ExecutionResult{
				Success: false,
				Message: err.Error() + " " + f.PromptFor(state),
			},
			Success: true,
		}
	}

	done := f.Advance(state, result)
	if !done {
		done = skipCollectedSteps(f, state)
	}

	if !done {
		if err := h.sessions.SetMultiStepState(sessionID, state); err != nil {
			logging.Warnf("failed to persist flow state: %v", err)
		}
		return &types.CommandResponse{
			SessionID: sessionID,
			Result:    &types.ExecutionResult{Success: false, Message: f.PromptFor(state)},
			Success:   true,
		}
	}

	if err := h.sessions.ClearMultiStepState(sessionID); err != nil {
		logging.Warnf("failed to clear flow state: %v", err)
	}
	return h.executeCompleted(ctx, sessionID, text, &types.ParsedCommand{
		Action:     state.PendingAction,
		Parameters: state.CollectedData,
		Confidence: 1.0,
		Reasoning:  "completed guided steps",
	})
}

// completePending takes the utterance as the answer to the first missing
// field of a live clarification.
func (h *Handler) completePending(ctx context.Context, pending *types.PendingCommand, text, sessionID string) *types.CommandResponse {
	h.sessions.ConsumePending(sessionID)

	if isCancel(text) {
		return &types.CommandResponse{
			SessionID: sessionID,
			Result:    &types.ExecutionResult{Success: true, Message: "Okay, cancelled."},
			Success:   true,
		}
	}

	params := make(map[string]interface{}, len(pending.Parameters)+1)
	for k, v := range pending.Parameters {
		params[k] = v
	}
	if len(pending.MissingFields) > 0 {
		field := pending.MissingFields[0]
		params[field] = coerceForField(pending.Action, field, text)
	}

	check := validate.Check(pending.Action, params)
	if !check.OK() {
		prompt := check.Prompt(pending.Action)
		if _, err := h.sessions.SetPending(sessionID, types.PendingCommand{
			Action:        pending.Action,
			Parameters:    params,
			MissingFields: check.Missing,
			Prompt:        prompt,
		}); err != nil {
			logging.Warnf("failed to re-seed pending command: %v", err)
		}
		return &types.CommandResponse{
			SessionID: sessionID,
			Result:    &types.ExecutionResult{Success: false, Message: prompt},
			Success:   true,
		}
	}

	cmd := &types.ParsedCommand{
		Action:     pending.Action,
		Parameters: params,
		Confidence: 1.0,
		Reasoning:  "completed after clarification",
	}
	if resp := h.maybeStartFlow(sessionID, cmd); resp != nil {
		return resp
	}
	return h.executeCompleted(ctx, sessionID, text, cmd)
}

// executeCompleted runs a command assembled outside the parser and records
// the turn on the session.
func (h *Handler) executeCompleted(ctx context.Context, sessionID, text string, cmd *types.ParsedCommand) *types.CommandResponse {
	result := h.executor.Execute(ctx, cmd)

	if err := h.sessions.AddMessage(sessionID, types.ConversationMessage{
		UserInput:  text,
		Action:     cmd.Action,
		Parameters: cmd.Parameters,
		Success:    result.Success,
	}); err != nil {
		logging.Warnf("failed to record conversation turn: %v", err)
	}

	return &types.CommandResponse{
		SessionID: sessionID,
		Command:   cmd,
		Result:    result,
		Success:   result.Success,
		Error:     result.Error,
	}
}

// skipCollectedSteps advances past steps whose field is already collected,
// so values supplied in the triggering command are not asked again. Returns
// true when the flow completed by skipping to the end.
func skipCollectedSteps(f *flow.Flow, state *types.MultiStepFlowState) bool {
	for state.CurrentStep < state.TotalSteps {
		step, ok := f.StepAt(state.CurrentStep)
		if !ok {
			return true
		}
		if _, collected := state.CollectedData[step.Field]; !collected {
			return false
		}
		state.CurrentStep++
	}
	return true
}

func isCancel(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "cancel", "never mind", "nevermind", "stop", "forget it":
		return true
	}
	return false
}

// coerceForField converts raw text to the catalogued type of the field.
func coerceForField(action, field, text string) interface{} {
	text = strings.TrimSpace(text)
	def, ok := registry.Find(action)
	if !ok {
		return text
	}
	for _, p := range def.Parameters {
		if p.Name != field {
			continue
		}
		if p.Type == registry.TypeNumber {
			if f, err := strconv.ParseFloat(strings.TrimPrefix(text, "$"), 64); err == nil {
				return f
			}
		}
		break
	}
	return text
}

// StartSessionCleanup starts a background task that periodically evicts
// expired sessions.
func (h *Handler) StartSessionCleanup(interval time.Duration) {
	logging.Infof("starting session cleanup task (interval: %v)", interval)

	cleanupTicker = time.NewTicker(interval)

	go func() {
		for range cleanupTicker.C {
			removed := h.sessions.CleanupExpired()
			if removed > 0 {
				logging.Infof("session cleanup removed %d expired sessions", removed)
			}
		}
	}()
}

// StopSessionCleanup stops the background cleanup task.
func (h *Handler) StopSessionCleanup() {
	if cleanupTicker != nil {
		cleanupTicker.Stop()
		cleanupTicker = nil
	}
}
