package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stockpilot/internal/registry"
	"github.com/harborline/stockpilot/pkg/types"
)

func TestHandlerTableCoversEveryAction(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Validate())
	assert.Len(t, e.handlers, len(registry.All()))
}

func TestValidateCatchesOrphanHandler(t *testing.T) {
	e := NewExecutor()
	e.handlers["NOT_A_REAL_ACTION"] = func(context.Context, map[string]interface{}) *types.ExecutionResult {
		return &types.ExecutionResult{Success: true}
	}
	err := e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_A_REAL_ACTION")
}

func TestValidateCatchesMissingHandler(t *testing.T) {
	e := NewExecutor()
	delete(e.handlers, "ADD_STOCK")
	err := e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADD_STOCK")
}

func TestExecuteAddStock(t *testing.T) {
	e := NewExecutor()
	result := e.Execute(context.Background(), &types.ParsedCommand{
		Action: "ADD_STOCK",
		Parameters: map[string]interface{}{
			"partNumber": "m10 nuts",
			"quantity":   float64(5),
			"location":   "rack 1 bin6",
		},
	})
	require.True(t, result.Success)
	assert.Contains(t, result.Message, "m10 nuts")
	assert.Contains(t, result.Message, "rack 1 bin6")
	assert.Equal(t, float64(5), result.Data["quantity"])
}

func TestExecuteNormalizesActionAliases(t *testing.T) {
	e := NewExecutor()
	result := e.Execute(context.Background(), &types.ParsedCommand{
		Action: "receive_stock",
		Parameters: map[string]interface{}{
			"partNumber": "gaskets",
			"quantity":   float64(12),
			"location":   "van 1",
		},
	})
	assert.True(t, result.Success)
}

func TestExecuteUnknownAction(t *testing.T) {
	e := NewExecutor()
	result := e.Execute(context.Background(), &types.ParsedCommand{Action: "LAUNCH_ROCKET"})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "LAUNCH_ROCKET")
}

func TestExecuteRejectsIncompleteParameters(t *testing.T) {
	e := NewExecutor()
	result := e.Execute(context.Background(), &types.ParsedCommand{
		Action:     "ADD_STOCK",
		Parameters: map[string]interface{}{"partNumber": "m10 nuts"},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "quantity")
	assert.Contains(t, result.Error, "location")
}

func TestExecuteCreateJobGeneratesJobNumber(t *testing.T) {
	e := NewExecutor()
	result := e.Execute(context.Background(), &types.ParsedCommand{
		Action:     "CREATE_JOB",
		Parameters: map[string]interface{}{"customerName": "Acme Dairy"},
	})
	require.True(t, result.Success)
	assert.NotEmpty(t, result.Data["jobNumber"])
	assert.NotEmpty(t, result.Data["jobId"])
	assert.Contains(t, result.Message, "Acme Dairy")
}

func TestExecuteReportsNeedNoParameters(t *testing.T) {
	e := NewExecutor()
	for _, action := range []string{"LOW_STOCK_REPORT", "STOCK_VALUE_REPORT"} {
		result := e.Execute(context.Background(), &types.ParsedCommand{
			Action:     action,
			Parameters: map[string]interface{}{},
		})
		assert.True(t, result.Success, action)
	}
}
