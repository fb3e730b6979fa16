package conversation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stockpilot/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), 10, 30*time.Minute, 30*time.Second)
}

func successfulAdd(input, item, location string, qty float64) types.ConversationMessage {
	return types.ConversationMessage{
		UserInput: input,
		Action:    "ADD_STOCK",
		Parameters: map[string]interface{}{
			"partNumber": item,
			"quantity":   qty,
			"location":   location,
		},
		Success: true,
	}
}

func TestAddMessageRecomputesShortcuts(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.AddMessage("s1", successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)))

	ctx := m.GetContext("s1")
	assert.Equal(t, "ADD_STOCK", ctx.LastAction)
	assert.Equal(t, "bearings", ctx.LastItem)
	assert.Equal(t, "warehouse", ctx.LastLocation)
	assert.Equal(t, float64(5), ctx.LastQuantity)

	// Shortcuts are overwritten, not merged: the next successful message has
	// no location, so lastLocation goes away rather than lingering.
	require.NoError(t, m.AddMessage("s1", types.ConversationMessage{
		UserInput:  "counted 7 filters",
		Action:     "COUNT_STOCK",
		Parameters: map[string]interface{}{"partNumber": "filters", "quantity": float64(7)},
		Success:    true,
	}))

	ctx = m.GetContext("s1")
	assert.Equal(t, "COUNT_STOCK", ctx.LastAction)
	assert.Equal(t, "filters", ctx.LastItem)
	assert.Empty(t, ctx.LastLocation)
	assert.Equal(t, float64(7), ctx.LastQuantity)
}

func TestUnsuccessfulMessagesDoNotTouchShortcuts(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.AddMessage("s1", successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)))
	require.NoError(t, m.AddMessage("s1", types.ConversationMessage{
		UserInput: "gibberish",
		Action:    "QUERY_INVENTORY",
		Success:   false,
	}))

	ctx := m.GetContext("s1")
	assert.Equal(t, "bearings", ctx.LastItem)
	assert.Equal(t, "warehouse", ctx.LastLocation)
}

func TestHistoryCap(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 15; i++ {
		require.NoError(t, m.AddMessage("s1", types.ConversationMessage{
			UserInput: fmt.Sprintf("message %d", i),
			Success:   false,
		}))
	}

	history := m.History("s1")
	require.Len(t, history, 10)
	assert.Equal(t, "message 5", history[0].UserInput)
	assert.Equal(t, "message 14", history[9].UserInput)
}

func TestMessageTTLEviction(t *testing.T) {
	m := newTestManager(t)

	old := successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)
	old.Timestamp = time.Now().Add(-31 * time.Minute)
	require.NoError(t, m.AddMessage("s1", old))

	// No explicit clear: the expired message must be excluded from reads and
	// the shortcuts it produced must be gone.
	assert.Empty(t, m.History("s1"))
	ctx := m.GetContext("s1")
	assert.Empty(t, ctx.LastItem)
	assert.Empty(t, ctx.LastLocation)
}

func TestSessionsAreIndependent(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.AddMessage("alice", successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)))
	require.NoError(t, m.AddMessage("bob", successfulAdd("add 2 filters to van 1", "filters", "van 1", 2)))

	assert.Equal(t, "bearings", m.GetContext("alice").LastItem)
	assert.Equal(t, "filters", m.GetContext("bob").LastItem)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, 10, 30*time.Minute, 30*time.Second)
	require.NoError(t, m.AddMessage("s1", successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)))

	reloaded := NewManager(dir, 10, 30*time.Minute, 30*time.Second)
	ctx := reloaded.GetContext("s1")
	assert.Equal(t, "bearings", ctx.LastItem)
	assert.Equal(t, "warehouse", ctx.LastLocation)
	require.Len(t, reloaded.History("s1"), 1)
}

func TestClear(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.AddMessage("s1", successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)))

	require.NoError(t, m.Clear("s1"))
	assert.Empty(t, m.History("s1"))
	assert.Empty(t, m.GetContext("s1").LastItem)
}

func TestCleanupExpired(t *testing.T) {
	m := NewManager(t.TempDir(), 10, 20*time.Millisecond, 30*time.Second)
	require.NoError(t, m.AddMessage("s1", successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, m.CleanupExpired())
	assert.Equal(t, map[string]interface{}{"exists": false}, m.SessionInfo("s1"))
}

func TestSessionInfo(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.AddMessage("s1", successfulAdd("add 5 bearings to warehouse", "bearings", "warehouse", 5)))

	info := m.SessionInfo("s1")
	assert.Equal(t, true, info["exists"])
	assert.Equal(t, "s1", info["id"])
	assert.Equal(t, 1, info["message_count"])
}
