package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborline/stockpilot/pkg/types"
)

// Verbs that imply a stock mutation, listed with their inflections. Only
// these exact tokens inherit the last known location; pure queries never get
// a location injected, and near-miss words ("address", "user", "gotcha") do
// not count.
var stockVerbs = map[string]struct{}{
	"add": {}, "adds": {}, "added": {}, "adding": {},
	"put": {}, "puts": {}, "putting": {},
	"receive": {}, "receives": {}, "received": {}, "receiving": {},
	"use": {}, "uses": {}, "used": {}, "using": {},
	"take": {}, "takes": {}, "took": {}, "taking": {},
	"remove": {}, "removes": {}, "removed": {}, "removing": {},
	"got": {},
	"have": {}, "has": {}, "had": {},
	"count": {}, "counts": {}, "counted": {}, "counting": {},
}

// anaphora tokens that refer back to the last mentioned item.
var itemReferences = []string{"more", "same thing", "same"}

// ResolveReferences substitutes anaphoric references in the input with values
// recalled from session context. A substitution only happens when the
// corresponding parameter is absent from the freshly extracted set.
func (m *Manager) ResolveReferences(sessionID, input string, params map[string]interface{}) map[string]interface{} {
	ctx := m.GetContext(sessionID)

	resolved := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		resolved[k] = v
	}

	lower := strings.ToLower(input)

	if ctx.LastItem != "" && resolved["item"] == nil && resolved["partNumber"] == nil {
		if containsPhrase(lower, itemReferences) {
			resolved["item"] = ctx.LastItem
		}
	}

	if ctx.LastLocation != "" && resolved["location"] == nil {
		if hasStockVerb(lower) {
			resolved["location"] = ctx.LastLocation
		}
	}

	return resolved
}

// ContextSummary renders the last three turns plus the current shortcuts as
// plain text. The result is embedded verbatim inside LLM prompts.
func (m *Manager) ContextSummary(sessionID string) string {
	m.mu.Lock()
	session := m.getOrLoadSession(sessionID)
	m.evictExpired(session)
	messages := make([]types.ConversationMessage, len(session.Messages))
	copy(messages, session.Messages)
	ctx := session.Context
	m.mu.Unlock()

	if len(messages) == 0 {
		return ""
	}
	if len(messages) > 3 {
		messages = messages[len(messages)-3:]
	}

	var b strings.Builder
	b.WriteString("Recent commands:\n")
	for _, msg := range messages {
		line := fmt.Sprintf("%q -> %s", msg.UserInput, msg.Action)
		if msg.Parameters != nil {
			if data, err := json.Marshal(msg.Parameters); err == nil {
				line += " " + string(data)
			}
		}
		b.WriteString(line + "\n")
	}

	if ctx.LastItem != "" {
		b.WriteString(fmt.Sprintf("Current item: %s\n", ctx.LastItem))
	}
	if ctx.LastLocation != "" {
		b.WriteString(fmt.Sprintf("Current location: %s\n", ctx.LastLocation))
	}

	return b.String()
}

// SetMultiStepState stores flow state for a session, replacing any previous one.
func (m *Manager) SetMultiStepState(sessionID string, state *types.MultiStepFlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	session.Context.MultiStepState = state
	session.UpdatedAt = time.Now()
	return m.saveSession(session)
}

// MultiStepState returns the in-flight flow state, or nil.
func (m *Manager) MultiStepState(sessionID string) *types.MultiStepFlowState {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	return session.Context.MultiStepState
}

// UpdateMultiStepData merges collected values into the in-flight flow state.
// A no-op when no flow is active.
func (m *Manager) UpdateMultiStepData(sessionID string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	state := session.Context.MultiStepState
	if state == nil {
		return nil
	}
	if state.CollectedData == nil {
		state.CollectedData = make(map[string]interface{}, len(data))
	}
	for k, v := range data {
		state.CollectedData[k] = v
	}
	session.UpdatedAt = time.Now()
	return m.saveSession(session)
}

// ClearMultiStepState abandons the in-flight flow, if any.
func (m *Manager) ClearMultiStepState(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	session.Context.MultiStepState = nil
	session.UpdatedAt = time.Now()
	return m.saveSession(session)
}

// SetPending seeds a single-field pending clarification. ID, CreatedAt and
// ExpiresAt are filled in from the manager's pending TTL.
func (m *Manager) SetPending(sessionID string, pending types.PendingCommand) (*types.PendingCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pending.ID == "" {
		pending.ID = uuid.New().String()
	}
	now := time.Now()
	pending.CreatedAt = now
	pending.ExpiresAt = now.Add(m.pendingTTL)

	session := m.getOrLoadSession(sessionID)
	session.Pending = &pending
	session.UpdatedAt = now
	return &pending, m.saveSession(session)
}

// Pending returns the live pending clarification, or nil when none exists or
// it has expired. Expired entries are dropped on the way out.
func (m *Manager) Pending(sessionID string) *types.PendingCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	if session.Pending == nil {
		return nil
	}
	if time.Now().After(session.Pending.ExpiresAt) {
		session.Pending = nil
		return nil
	}
	return session.Pending
}

// ConsumePending returns and clears the live pending clarification.
func (m *Manager) ConsumePending(sessionID string) *types.PendingCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	pending := session.Pending
	session.Pending = nil
	if pending == nil || time.Now().After(pending.ExpiresAt) {
		return nil
	}
	return pending
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	})
}

// containsPhrase reports whether any needle appears in text on word
// boundaries. "more" must not match inside "Moore's".
func containsPhrase(text string, needles []string) bool {
	joined := " " + strings.Join(tokenize(text), " ") + " "
	for _, needle := range needles {
		if strings.Contains(joined, " "+needle+" ") {
			return true
		}
	}
	return false
}

// hasStockVerb reports whether any token is a stock-mutating verb. Matching
// is on exact tokens so "address" or "user" never count.
func hasStockVerb(text string) bool {
	for _, word := range tokenize(text) {
		if _, ok := stockVerbs[word]; ok {
			return true
		}
	}
	return false
}
