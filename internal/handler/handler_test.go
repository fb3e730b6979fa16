package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stockpilot/internal/conversation"
	"github.com/harborline/stockpilot/internal/executor"
	"github.com/harborline/stockpilot/internal/parser"
	"github.com/harborline/stockpilot/pkg/types"
)

type scriptedClassifier struct {
	result *types.ClassificationResult
}

func (s *scriptedClassifier) Classify(context.Context, string, string) *types.ClassificationResult {
	return s.result
}

type scriptedExtractor struct {
	result *types.ExtractionResult
}

func (s *scriptedExtractor) Extract(context.Context, string, string, string) *types.ExtractionResult {
	return s.result
}

type fixture struct {
	router     *gin.Engine
	handler    *Handler
	classifier *scriptedClassifier
	extractor  *scriptedExtractor
	sessions   *conversation.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	classifier := &scriptedClassifier{}
	extractor := &scriptedExtractor{}
	sessions := conversation.NewManager(t.TempDir(), 10, 30*time.Minute, 30*time.Second)
	p := parser.New(classifier, extractor, sessions, parser.Thresholds{
		Fallback:              0.6,
		OverrideClassifierMax: 0.65,
		OverrideExtractorMin:  0.8,
	})
	e := executor.NewExecutor()
	require.NoError(t, e.Validate())
	h := NewHandler(p, e, sessions)

	router := gin.New()
	router.POST("/api/command", h.Command)
	router.GET("/api/actions", h.Actions)
	router.GET("/api/session/:id", h.SessionInfo)
	router.DELETE("/api/session/:id", h.ClearSession)
	router.GET("/api/health", h.HealthCheck)
	router.GET("/api/ws", h.Chat)

	return &fixture{router: router, handler: h, classifier: classifier, extractor: extractor, sessions: sessions}
}

func (f *fixture) postCommand(t *testing.T, text, sessionID string) *types.CommandResponse {
	t.Helper()
	body, err := json.Marshal(types.CommandRequest{Text: text, SessionID: sessionID})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func TestCommandExecutesCompleteParse(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "ADD_STOCK", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{
			"partNumber": "m10 nuts",
			"quantity":   float64(5),
			"location":   "rack 1 bin6",
		},
		Confidence: 0.9,
	}

	resp := f.postCommand(t, "Add 5 M10 nuts to rack 1 bin6", "")

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.SessionID, "a session id is minted when absent")
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Success)
	assert.Contains(t, resp.Result.Message, "m10 nuts")
	require.NotNil(t, resp.Command)
	assert.Equal(t, "ADD_STOCK", resp.Command.Action)
}

func TestCommandRejectsMissingText(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClarificationThenCompletion(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "ADD_STOCK", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{"partNumber": "m10 nuts", "quantity": float64(5)},
		Confidence: 0.9,
	}

	first := f.postCommand(t, "add 5 m10 nuts", "s-clarify")
	require.NotNil(t, first.Result)
	assert.False(t, first.Result.Success)
	assert.Contains(t, first.Result.Message, "location")

	// The follow-up utterance is taken as the missing location.
	second := f.postCommand(t, "rack 1 bin6", "s-clarify")
	assert.True(t, second.Success)
	require.NotNil(t, second.Result)
	assert.True(t, second.Result.Success)
	assert.Equal(t, "rack 1 bin6", second.Command.Parameters["location"])
	assert.Equal(t, "ADD_STOCK", second.Command.Action)
}

func TestClarificationCancel(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "ADD_STOCK", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{"partNumber": "m10 nuts", "quantity": float64(5)},
		Confidence: 0.9,
	}

	f.postCommand(t, "add 5 m10 nuts", "s-cancel")
	resp := f.postCommand(t, "never mind", "s-cancel")

	assert.True(t, resp.Success)
	assert.Contains(t, resp.Result.Message, "cancelled")
	assert.Nil(t, f.sessions.Pending("s-cancel"))
}

func TestGuidedFlowEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{"partNumber": "BRG-6205", "quantity": float64(10)},
		Confidence: 0.9,
	}

	start := f.postCommand(t, "new part BRG-6205, add 10", "s-flow")
	require.NotNil(t, start.Result)
	assert.False(t, start.Result.Success)
	assert.Contains(t, start.Result.Message, "BRG-6205")
	assert.Contains(t, strings.ToLower(start.Result.Message), "description")

	answers := []string{"Deep groove ball bearing", "skip", "4.50", "skip", "5"}
	for _, answer := range answers {
		resp := f.postCommand(t, answer, "s-flow")
		require.NotNil(t, resp.Result)
		assert.False(t, resp.Result.Success, "flow should still be collecting after %q", answer)
	}

	final := f.postCommand(t, "rack 1 bin6", "s-flow")
	assert.True(t, final.Success)
	require.NotNil(t, final.Result)
	assert.True(t, final.Result.Success)
	require.NotNil(t, final.Command)
	assert.Equal(t, "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", final.Command.Action)
	assert.Equal(t, "BRG-6205", final.Command.Parameters["partNumber"])
	assert.Equal(t, "Deep groove ball bearing", final.Command.Parameters["description"])
	assert.EqualValues(t, 4.50, final.Command.Parameters["unitCost"])
	assert.EqualValues(t, 5, final.Command.Parameters["minimumQuantity"])
	assert.Equal(t, "rack 1 bin6", final.Command.Parameters["location"])
	assert.NotContains(t, final.Command.Parameters, "manufacturer")
	assert.Nil(t, f.sessions.MultiStepState("s-flow"))
}

func TestGuidedFlowRetriesInvalidStepInput(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{"partNumber": "BRG-6205", "quantity": float64(10)},
		Confidence: 0.9,
	}

	f.postCommand(t, "new part BRG-6205, add 10", "s-retry")
	f.postCommand(t, "skip", "s-retry") // description
	f.postCommand(t, "skip", "s-retry") // manufacturer

	// unitCost wants a number; the flow re-asks without advancing.
	bad := f.postCommand(t, "quite cheap", "s-retry")
	require.NotNil(t, bad.Result)
	assert.False(t, bad.Result.Success)

	state := f.sessions.MultiStepState("s-retry")
	require.NotNil(t, state)
	assert.Equal(t, 2, state.CurrentStep)
}

func TestGuidedFlowCancel(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{"partNumber": "BRG-6205", "quantity": float64(10)},
		Confidence: 0.9,
	}

	f.postCommand(t, "new part BRG-6205, add 10", "s-flowcancel")
	resp := f.postCommand(t, "cancel", "s-flowcancel")

	assert.Contains(t, resp.Result.Message, "cancelled")
	assert.Nil(t, f.sessions.MultiStepState("s-flowcancel"))
}

func TestActionsEndpoint(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/actions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Actions map[string][]map[string]interface{} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	names := map[string]bool{}
	for _, defs := range body.Actions {
		for _, def := range defs {
			names[def["name"].(string)] = true
		}
	}
	assert.True(t, names["ADD_STOCK"])
	assert.True(t, names["STOCK_VALUE_REPORT"])
	assert.Contains(t, body.Actions, "stock")
	assert.Contains(t, body.Actions, "reporting")
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "ADD_STOCK", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{
			"partNumber": "bearings", "quantity": float64(5), "location": "rack 2",
		},
		Confidence: 0.9,
	}
	f.postCommand(t, "add 5 bearings to rack 2", "s-info")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session/s-info", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.EqualValues(t, 1, info["message_count"])

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/session/s-info", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.sessions.History("s-info"))
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestWebSocketChat(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = &types.ClassificationResult{Action: "QUERY_INVENTORY", Confidence: 0.9}
	f.extractor.result = &types.ExtractionResult{
		Parameters: map[string]interface{}{"search": "bearings"},
		Confidence: 0.9,
	}

	server := httptest.NewServer(f.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(types.CommandRequest{Text: "how many bearings do we have", SessionID: "s-ws"}))

	var resp types.CommandResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "s-ws", resp.SessionID)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Command)
	assert.Equal(t, "QUERY_INVENTORY", resp.Command.Action)
}
