package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFlow(t *testing.T) {
	f, ok := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")
	require.True(t, ok)
	assert.Len(t, f.Steps, 6)

	f, ok = Get("create_catalogue_item_and_add_stock")
	require.True(t, ok, "flow lookup should be case-insensitive")
	assert.Equal(t, "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", f.ID)

	_, ok = Get("NO_SUCH_FLOW")
	assert.False(t, ok)
}

func TestProcessStepInputSkip(t *testing.T) {
	f, _ := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")
	step, _ := f.StepAt(0) // description, optional

	for _, input := range []string{"skip", "SKIP", "", "  ", "none"} {
		result, err := ProcessStepInput(step, input)
		require.NoError(t, err, "input %q", input)
		assert.True(t, result.Skipped)
		assert.Nil(t, result.Value)
	}
}

func TestProcessStepInputRequiredCannotSkip(t *testing.T) {
	f, _ := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")
	step, _ := f.StepAt(5) // location, required

	_, err := ProcessStepInput(step, "skip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location")
}

func TestProcessStepInputCoercion(t *testing.T) {
	f, _ := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")

	t.Run("float for cost", func(t *testing.T) {
		step, _ := f.StepAt(2) // unitCost
		result, err := ProcessStepInput(step, "4.50")
		require.NoError(t, err)
		assert.Equal(t, 4.5, result.Value)

		result, err = ProcessStepInput(step, "$12.99")
		require.NoError(t, err)
		assert.Equal(t, 12.99, result.Value)
	})

	t.Run("int for minimum quantity", func(t *testing.T) {
		step, _ := f.StepAt(4) // minimumQuantity
		result, err := ProcessStepInput(step, "10")
		require.NoError(t, err)
		assert.Equal(t, 10, result.Value)
	})

	t.Run("string otherwise", func(t *testing.T) {
		step, _ := f.StepAt(1) // manufacturer
		result, err := ProcessStepInput(step, "Siemens")
		require.NoError(t, err)
		assert.Equal(t, "Siemens", result.Value)
	})
}

func TestProcessStepInputValidatorFailure(t *testing.T) {
	f, _ := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")
	step, _ := f.StepAt(2) // unitCost

	_, err := ProcessStepInput(step, "cheap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "number")
}

func TestFullFlowWithMixedSkips(t *testing.T) {
	f, ok := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")
	require.True(t, ok)

	state := f.Start("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", map[string]interface{}{
		"partNumber": "BRG-6204",
		"quantity":   float64(10),
	})
	assert.Equal(t, 0, state.CurrentStep)
	assert.Equal(t, 6, state.TotalSteps)

	answers := []string{"Deep groove ball bearing", "skip", "4.50", "skip", "5", "rack 1 bin6"}
	for i, answer := range answers {
		step, ok := f.StepAt(state.CurrentStep)
		require.True(t, ok, "step %d", i)

		result, err := ProcessStepInput(step, answer)
		require.NoError(t, err)

		done := f.Advance(state, result)
		assert.Equal(t, i == len(answers)-1, done, "completion must trigger only at the last step")
	}

	// Exactly the non-skipped fields are merged; skipped fields are absent.
	assert.Equal(t, map[string]interface{}{
		"partNumber":      "BRG-6204",
		"quantity":        float64(10),
		"description":     "Deep groove ball bearing",
		"unitCost":        4.5,
		"minimumQuantity": 5,
		"location":        "rack 1 bin6",
	}, state.CollectedData)
	assert.NotContains(t, state.CollectedData, "manufacturer")
	assert.NotContains(t, state.CollectedData, "markupPercent")
}

func TestValidatorFailureDoesNotAdvance(t *testing.T) {
	f, _ := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")
	state := f.Start("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", map[string]interface{}{"partNumber": "X"})

	// Walk to the unitCost step.
	for state.CurrentStep < 2 {
		step, _ := f.StepAt(state.CurrentStep)
		result, err := ProcessStepInput(step, "skip")
		require.NoError(t, err)
		f.Advance(state, result)
	}

	step, _ := f.StepAt(state.CurrentStep)
	_, err := ProcessStepInput(step, "not a number")
	require.Error(t, err)
	// Caller retries the same step: state was never advanced.
	assert.Equal(t, 2, state.CurrentStep)
	assert.NotContains(t, state.CollectedData, "unitCost")
}

func TestPromptFor(t *testing.T) {
	f, _ := Get("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK")
	state := f.Start("CREATE_CATALOGUE_ITEM_AND_ADD_STOCK", map[string]interface{}{"partNumber": "BRG-6204"})

	prompt := f.PromptFor(state)
	assert.Contains(t, prompt, "BRG-6204")
	assert.Contains(t, prompt, "skip")

	// Required final step carries no skip hint.
	state.CurrentStep = 5
	prompt = f.PromptFor(state)
	assert.Contains(t, prompt, "location")
	assert.NotContains(t, prompt, "skip")

	state.CurrentStep = 99
	assert.Empty(t, f.PromptFor(state))
}
