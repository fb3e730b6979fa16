// Package executor dispatches parsed commands to per-action handlers. The
// handlers here acknowledge the operation and echo the structured parameters;
// wiring them to a real inventory backend replaces the bodies, not the
// dispatch.
package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/harborline/stockpilot/internal/logging"
	"github.com/harborline/stockpilot/internal/registry"
	"github.com/harborline/stockpilot/internal/validate"
	"github.com/harborline/stockpilot/pkg/types"
)

// ActionHandler is a function that handles a specific action.
type ActionHandler func(ctx context.Context, params map[string]interface{}) *types.ExecutionResult

// Executor routes canonical actions to their handlers.
type Executor struct {
	handlers map[string]ActionHandler
}

// NewExecutor creates an executor with a handler registered for every
// catalogued action.
func NewExecutor() *Executor {
	e := &Executor{handlers: make(map[string]ActionHandler)}

	e.RegisterHandler("ADD_STOCK", e.handleAddStock)
	e.RegisterHandler("USE_STOCK", e.handleUseStock)
	e.RegisterHandler("MOVE_STOCK", e.handleMoveStock)
	e.RegisterHandler("COUNT_STOCK", e.handleCountStock)
	e.RegisterHandler("QUERY_INVENTORY", e.handleQueryInventory)
	e.RegisterHandler("SEARCH_STOCK", e.handleSearchStock)
	e.RegisterHandler("SEARCH_CATALOGUE", e.handleSearchCatalogue)
	e.RegisterHandler("CREATE_CATALOGUE_ITEM", e.handleCreateCatalogueItem)
	e.RegisterHandler("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", e.handleCreateCatalogueItemAndAddStock)
	e.RegisterHandler("ASSIGN_TO_JOB", e.handleAssignToJob)
	e.RegisterHandler("CREATE_JOB", e.handleCreateJob)
	e.RegisterHandler("CREATE_CUSTOMER", e.handleCreateCustomer)
	e.RegisterHandler("LOW_STOCK_REPORT", e.handleLowStockReport)
	e.RegisterHandler("STOCK_VALUE_REPORT", e.handleStockValueReport)

	return e
}

// RegisterHandler registers a handler for a specific action.
func (e *Executor) RegisterHandler(action string, handler ActionHandler) {
	e.handlers[registry.NormalizeActionName(action)] = handler
}

// Validate confirms the handler table and the action catalogue agree: every
// catalogued action has a handler and no handler points at an uncatalogued
// action. Called once at startup.
func (e *Executor) Validate() error {
	var problems []string
	for _, def := range registry.All() {
		if _, ok := e.handlers[def.Name]; !ok {
			problems = append(problems, fmt.Sprintf("no handler for action %s", def.Name))
		}
	}
	for action := range e.handlers {
		if _, ok := registry.Find(action); !ok {
			problems = append(problems, fmt.Sprintf("handler for unknown action %s", action))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("handler table mismatch: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Execute runs the handler for a parsed command. Unknown actions and schema
// violations come back as failed results, never panics.
func (e *Executor) Execute(ctx context.Context, cmd *types.ParsedCommand) *types.ExecutionResult {
	action := registry.NormalizeActionName(cmd.Action)
	logging.Infof("executing %s with %d parameters", action, len(cmd.Parameters))

	handler, exists := e.handlers[action]
	if !exists {
		return &types.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("unknown action: %s", cmd.Action),
		}
	}

	if check := validate.Check(action, cmd.Parameters); !check.OK() {
		return &types.ExecutionResult{
			Success: false,
			Error:   check.Prompt(action),
		}
	}

	return handler(ctx, cmd.Parameters)
}

func (e *Executor) handleAddStock(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Added %v x %v to %v.",
		params["quantity"], params["partNumber"], params["location"])
}

func (e *Executor) handleUseStock(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Recorded %v x %v used from %v.",
		params["quantity"], params["partNumber"], params["location"])
}

func (e *Executor) handleMoveStock(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Moved %v x %v from %v to %v.",
		params["quantity"], params["partNumber"], params["fromLocation"], params["toLocation"])
}

func (e *Executor) handleCountStock(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	if loc, ok := params["location"].(string); ok && loc != "" {
		return acknowledge(params, "Counted %v x %v at %v.",
			params["quantity"], params["partNumber"], loc)
	}
	return acknowledge(params, "Counted %v x %v.", params["quantity"], params["partNumber"])
}

func (e *Executor) handleQueryInventory(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Looking up stock levels for %v.", params["search"])
}

func (e *Executor) handleSearchStock(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Searching held stock for %v.", params["search"])
}

func (e *Executor) handleSearchCatalogue(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Searching the catalogue for %v.", params["search"])
}

func (e *Executor) handleCreateCatalogueItem(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	result := acknowledge(params, "Created catalogue item %v.", params["partNumber"])
	result.Data["itemId"] = uuid.NewString()
	return result
}

func (e *Executor) handleCreateCatalogueItemAndAddStock(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	msg := fmt.Sprintf("Created catalogue item %v and booked in %v", params["partNumber"], params["quantity"])
	if loc, ok := params["location"].(string); ok && loc != "" {
		msg += fmt.Sprintf(" at %v", loc)
	}
	result := acknowledge(params, "%s.", msg)
	result.Data["itemId"] = uuid.NewString()
	return result
}

func (e *Executor) handleAssignToJob(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Assigned %v x %v to job %v.",
		params["quantity"], params["partNumber"], params["jobNumber"])
}

func (e *Executor) handleCreateJob(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	jobNumber, ok := params["jobNumber"].(string)
	if !ok || jobNumber == "" {
		jobNumber = uuid.NewString()[:8]
	}
	result := acknowledge(params, "Created job %v for %v.", jobNumber, params["customerName"])
	result.Data["jobNumber"] = jobNumber
	result.Data["jobId"] = uuid.NewString()
	return result
}

func (e *Executor) handleCreateCustomer(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	result := acknowledge(params, "Created customer %v.", params["customerName"])
	result.Data["customerId"] = uuid.NewString()
	return result
}

func (e *Executor) handleLowStockReport(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Preparing the low stock report.")
}

func (e *Executor) handleStockValueReport(_ context.Context, params map[string]interface{}) *types.ExecutionResult {
	return acknowledge(params, "Preparing the stock value report.")
}

func acknowledge(params map[string]interface{}, format string, args ...interface{}) *types.ExecutionResult {
	data := make(map[string]interface{}, len(params))
	for k, v := range params {
		data[k] = v
	}
	return &types.ExecutionResult{
		Success: true,
		Message: fmt.Sprintf(format, args...),
		Data:    data,
	}
}
