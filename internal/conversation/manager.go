// Package conversation manages per-session dialogue state: recent turns,
// derived context shortcuts, multi-step flow state and pending single-field
// clarifications. All state is keyed by an explicit session ID on an injected
// Manager; nothing in this package is process-global.
package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborline/stockpilot/internal/logging"
	"github.com/harborline/stockpilot/pkg/types"
)

// Session holds everything remembered about one conversation.
type Session struct {
	ID        string                      `json:"id"`
	Messages  []types.ConversationMessage `json:"messages"`
	Context   types.ConversationContext   `json:"context"`
	Pending   *types.PendingCommand       `json:"pending,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Manager manages conversation sessions. Eviction of expired messages is
// amortized: it happens on every write and read touching a session, there is
// no per-message timer.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	storagePath string
	maxMessages int
	messageTTL  time.Duration
	pendingTTL  time.Duration
}

// NewManager creates a new session manager. When storagePath is non-empty,
// sessions are persisted there as one JSON file each and lazily reloaded.
func NewManager(storagePath string, maxMessages int, messageTTL, pendingTTL time.Duration) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		storagePath: storagePath,
		maxMessages: maxMessages,
		messageTTL:  messageTTL,
		pendingTTL:  pendingTTL,
	}

	if storagePath != "" {
		if err := os.MkdirAll(storagePath, 0755); err != nil {
			logging.Warnf("failed to create session storage directory: %v", err)
		}
	}

	return m
}

// AddMessage records one turn: expired messages are evicted first, the new
// message is appended, and the history is truncated to the configured cap.
// For successful messages carrying an action, the context shortcuts are then
// recomputed from that message's parameters, overwriting previous values.
func (m *Manager) AddMessage(sessionID string, msg types.ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	m.evictExpired(session)
	session.Messages = append(session.Messages, msg)
	if m.maxMessages > 0 && len(session.Messages) > m.maxMessages {
		session.Messages = session.Messages[len(session.Messages)-m.maxMessages:]
	}
	session.UpdatedAt = time.Now()

	if msg.Success && msg.Action != "" && msg.Parameters != nil {
		m.recomputeShortcuts(session, msg)
	}

	return m.saveSession(session)
}

// GetContext returns the derived context for a session. Expired messages are
// evicted before the read so stale shortcuts never leak out.
func (m *Manager) GetContext(sessionID string) types.ConversationContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	m.evictExpired(session)
	return session.Context
}

// History returns the live (non-expired) messages of a session, newest last.
func (m *Manager) History(sessionID string) []types.ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrLoadSession(sessionID)
	m.evictExpired(session)

	out := make([]types.ConversationMessage, len(session.Messages))
	copy(out, session.Messages)
	return out
}

// Clear removes a session entirely, including its persisted file.
func (m *Manager) Clear(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)

	if m.storagePath == "" {
		return nil
	}
	path := m.sessionPath(sessionID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// CleanupExpired drops sessions whose last activity is older than the
// message TTL. Called periodically from the server; safe to call any time.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, session := range m.sessions {
		if now.Sub(session.UpdatedAt) > m.messageTTL {
			delete(m.sessions, id)
			removed++
			if m.storagePath != "" {
				if err := os.Remove(m.sessionPath(id)); err != nil && !os.IsNotExist(err) {
					logging.Warnf("failed to remove expired session file %s: %v", id, err)
				}
			}
		}
	}

	if removed > 0 {
		logging.Infof("cleaned up %d expired sessions", removed)
	}
	return removed
}

// SessionInfo returns basic information about a session without creating it.
func (m *Manager) SessionInfo(sessionID string) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return map[string]interface{}{"exists": false}
	}

	return map[string]interface{}{
		"exists":        true,
		"id":            session.ID,
		"message_count": len(session.Messages),
		"created_at":    session.CreatedAt,
		"updated_at":    session.UpdatedAt,
	}
}

// evictExpired removes messages older than the TTL and drops an expired
// pending command. Shortcuts are cleared when the message that produced them
// has expired. Callers must hold the write lock.
func (m *Manager) evictExpired(session *Session) {
	if m.messageTTL > 0 && len(session.Messages) > 0 {
		cutoff := time.Now().Add(-m.messageTTL)
		live := session.Messages[:0]
		for _, msg := range session.Messages {
			if msg.Timestamp.After(cutoff) {
				live = append(live, msg)
			}
		}
		if len(live) != len(session.Messages) {
			session.Messages = live
			m.refreshShortcuts(session)
		}
	}

	if session.Pending != nil && time.Now().After(session.Pending.ExpiresAt) {
		session.Pending = nil
	}
}

// recomputeShortcuts overwrites the derived shortcuts from one successful
// message. Overwrite, not merge: a message that carries no location clears
// lastLocation rather than inheriting an older one.
func (m *Manager) recomputeShortcuts(session *Session, msg types.ConversationMessage) {
	flowState := session.Context.MultiStepState

	session.Context = types.ConversationContext{
		LastAction:     msg.Action,
		MultiStepState: flowState,
	}

	if item := firstString(msg.Parameters, "partNumber", "item"); item != "" {
		session.Context.LastItem = item
	}
	if loc := firstString(msg.Parameters, "location", "toLocation"); loc != "" {
		session.Context.LastLocation = loc
	}
	if qty, ok := asFloat(msg.Parameters["quantity"]); ok {
		session.Context.LastQuantity = qty
	}
}

// refreshShortcuts recomputes shortcuts from the most recent surviving
// successful message, or clears them when none remains.
func (m *Manager) refreshShortcuts(session *Session) {
	for i := len(session.Messages) - 1; i >= 0; i-- {
		msg := session.Messages[i]
		if msg.Success && msg.Action != "" && msg.Parameters != nil {
			m.recomputeShortcuts(session, msg)
			return
		}
	}
	session.Context = types.ConversationContext{MultiStepState: session.Context.MultiStepState}
}

func (m *Manager) getOrLoadSession(sessionID string) *Session {
	session, exists := m.sessions[sessionID]
	if exists {
		return session
	}

	if loaded := m.loadSession(sessionID); loaded != nil {
		m.sessions[sessionID] = loaded
		return loaded
	}

	session = &Session{
		ID:        sessionID,
		Messages:  []types.ConversationMessage{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.sessions[sessionID] = session
	return session
}

func (m *Manager) sessionPath(sessionID string) string {
	return filepath.Join(m.storagePath, fmt.Sprintf("%s.json", sessionID))
}

func (m *Manager) saveSession(session *Session) error {
	if m.storagePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(m.sessionPath(session.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (m *Manager) loadSession(sessionID string) *Session {
	if m.storagePath == "" {
		return nil
	}

	data, err := os.ReadFile(m.sessionPath(sessionID))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warnf("failed to read session file: %v", err)
		}
		return nil
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		logging.Warnf("failed to unmarshal session %s: %v", sessionID, err)
		return nil
	}
	return &session
}

// firstString returns the first present non-empty string value among keys.
func firstString(params map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// asFloat coerces the numeric representations that survive JSON round-trips.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
