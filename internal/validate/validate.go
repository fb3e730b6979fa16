// Package validate checks extracted parameters against the registry schema
// before a command is handed to the executor. Validation problems are not
// pipeline failures: they surface as missing fields and clarification
// prompts on the ParsedCommand.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harborline/stockpilot/internal/registry"
)

// Result reports schema validation of one parameter set.
type Result struct {
	Missing []string
	// Problems maps parameter name to a human-readable type complaint.
	Problems map[string]string
}

// OK reports whether the parameters satisfy the action's schema.
func (r Result) OK() bool {
	return len(r.Missing) == 0 && len(r.Problems) == 0
}

// Prompt renders a single clarification question covering what is wrong.
func (r Result) Prompt(action string) string {
	if r.OK() {
		return ""
	}

	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("I still need: %s", strings.Join(r.Missing, ", ")))
	}
	for name, problem := range r.Problems {
		parts = append(parts, fmt.Sprintf("%s %s", name, problem))
	}
	return fmt.Sprintf("To %s, %s.", strings.ToLower(strings.ReplaceAll(action, "_", " ")), strings.Join(parts, "; "))
}

// Check validates params against the schema of a canonical action. Unknown
// actions validate trivially; the executor rejects them later.
func Check(action string, params map[string]interface{}) Result {
	def, ok := registry.Find(action)
	if !ok {
		return Result{}
	}

	result := Result{Problems: map[string]string{}}
	for _, p := range def.Parameters {
		v, present := params[p.Name]
		if !present || v == nil || v == "" {
			if p.Required {
				result.Missing = append(result.Missing, p.Name)
			}
			continue
		}
		if problem := typeProblem(p.Type, v); problem != "" {
			result.Problems[p.Name] = problem
		}
	}

	if len(result.Problems) == 0 {
		result.Problems = nil
	}
	return result
}

func typeProblem(wantType string, v interface{}) string {
	switch wantType {
	case registry.TypeNumber:
		switch n := v.(type) {
		case float64, float32, int, int64, json.Number:
			return ""
		case string:
			return fmt.Sprintf("should be a number, got %q", n)
		default:
			return fmt.Sprintf("should be a number, got %T", v)
		}
	case registry.TypeString:
		if _, ok := v.(string); !ok {
			// Numbers read out loud as identifiers are tolerated; the
			// executor stringifies them.
			switch v.(type) {
			case float64, float32, int, int64, json.Number:
				return ""
			}
			return fmt.Sprintf("should be text, got %T", v)
		}
	case registry.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("should be true or false, got %T", v)
		}
	case registry.TypeArray:
		if _, ok := v.([]interface{}); !ok {
			return fmt.Sprintf("should be a list, got %T", v)
		}
	case registry.TypeObject:
		if _, ok := v.(map[string]interface{}); !ok {
			return fmt.Sprintf("should be an object, got %T", v)
		}
	}
	return ""
}
