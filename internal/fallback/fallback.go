// Package fallback is the deterministic regex safety net for command
// interpretation. It is stateless, makes no network calls, and never fails:
// either a template matches and yields a parse with a fixed confidence, or
// nothing is returned. Kept dependency-free so it stays usable when the LLM
// service is down, erroring, or under-confident.
package fallback

import (
	"regexp"
	"strconv"
	"strings"
)

// Result is a successful fallback parse. Parameter keys are the raw
// pre-normalization names (item, location, quantity); the orchestrator maps
// them onto the canonical schema.
type Result struct {
	Action     string
	Parameters map[string]interface{}
	Confidence float64
}

type template struct {
	re         *regexp.Regexp
	confidence float64
	build      func(m []string) map[string]interface{}
	action     string
}

// Ordered templates, first match wins. Confidence reflects how unambiguous
// the phrasing is: a full move sentence leaves little room for doubt, a bare
// search verb much more.
var templates = []template{
	{
		action:     "MOVE_STOCK",
		confidence: 0.9,
		re:         regexp.MustCompile(`^(?:move|moved|transfer|relocate|shift)\s+(\d+(?:\.\d+)?)\s+(?:x\s+)?(.+?)\s+from\s+(.+?)\s+(?:to|into)\s+(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{
				"quantity":     parseQuantity(m[1]),
				"item":         m[2],
				"fromLocation": trimLocation(m[3]),
				"toLocation":   trimLocation(m[4]),
			}
		},
	},
	{
		action:     "ADD_STOCK",
		confidence: 0.85,
		re:         regexp.MustCompile(`^(?:add|put|receive|received|got)\s+(\d+(?:\.\d+)?)\s+(?:x\s+)?(.+?)\s+(?:to|into|in)\s+(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{
				"quantity": parseQuantity(m[1]),
				"item":     m[2],
				"location": trimLocation(m[3]),
			}
		},
	},
	{
		action:     "USE_STOCK",
		confidence: 0.85,
		re:         regexp.MustCompile(`^(?:use|used|take|took|remove|removed|consume|consumed)\s+(\d+(?:\.\d+)?)\s+(?:x\s+)?(.+?)\s+from\s+(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{
				"quantity": parseQuantity(m[1]),
				"item":     m[2],
				"location": trimLocation(m[3]),
			}
		},
	},
	{
		action:     "COUNT_STOCK",
		confidence: 0.8,
		re:         regexp.MustCompile(`^(?:we have|counted|count)\s+(\d+(?:\.\d+)?)\s+(.+?)\s+(?:in|at)\s+(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{
				"quantity": parseQuantity(m[1]),
				"item":     m[2],
				"location": trimLocation(m[3]),
			}
		},
	},
	{
		action:     "COUNT_STOCK",
		confidence: 0.75,
		re:         regexp.MustCompile(`^(?:we have|counted)\s+(\d+(?:\.\d+)?)\s+(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{
				"quantity": parseQuantity(m[1]),
				"item":     m[2],
			}
		},
	},
	{
		action:     "STOCK_VALUE_REPORT",
		confidence: 0.75,
		re:         regexp.MustCompile(`^(?:what is|what's|how much is)\s+(?:the\s+|our\s+)?(.*?)\s*stock\s+worth$`),
		build: func(m []string) map[string]interface{} {
			if m[1] == "" {
				return map[string]interface{}{}
			}
			return map[string]interface{}{"location": trimLocation(m[1])}
		},
	},
	{
		action:     "QUERY_INVENTORY",
		confidence: 0.8,
		re:         regexp.MustCompile(`^(?:how many|how much)\s+(.+?)(?:\s+(?:do we have|have we got|are there|are left|is left|left))?$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{"search": m[1]}
		},
	},
	{
		action:     "QUERY_INVENTORY",
		confidence: 0.75,
		re:         regexp.MustCompile(`^where\s+(?:is|are)\s+(?:the\s+)?(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{"search": m[1]}
		},
	},
	{
		action:     "SEARCH_STOCK",
		confidence: 0.8,
		re:         regexp.MustCompile(`^(?:search|find)\s+stock\s+(?:for\s+)?(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{"search": m[1]}
		},
	},
	{
		action:     "SEARCH_STOCK",
		confidence: 0.75,
		re:         regexp.MustCompile(`^(?:what|which)\s+(.+?)\s+(?:do we have\s+)?in\s+stock$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{"search": m[1]}
		},
	},
	{
		action:     "SEARCH_CATALOGUE",
		confidence: 0.8,
		re:         regexp.MustCompile(`^(?:search|find)\s+(?:the\s+)?(?:catalogue|catalog)\s+(?:for\s+)?(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{"search": m[1]}
		},
	},
	{
		action:     "LOW_STOCK_REPORT",
		confidence: 0.75,
		re:         regexp.MustCompile(`(?:running low|low stock|needs? reordering|reorder report)`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{}
		},
	},
	{
		action:     "SEARCH_CATALOGUE",
		confidence: 0.75,
		re:         regexp.MustCompile(`^(?:search|find|look)\s+(?:for\s+)?(.+)$`),
		build: func(m []string) map[string]interface{} {
			return map[string]interface{}{"search": m[1]}
		},
	},
}

// TryParse matches the command against the ordered template list. The input
// is lower-cased and stripped of trailing punctuation before matching.
func TryParse(command string) (*Result, bool) {
	input := strings.ToLower(strings.TrimSpace(command))
	input = strings.TrimRight(input, ".!?")
	if input == "" {
		return nil, false
	}

	for _, tpl := range templates {
		m := tpl.re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		return &Result{
			Action:     tpl.action,
			Parameters: tpl.build(m),
			Confidence: tpl.confidence,
		}, true
	}
	return nil, false
}

func parseQuantity(raw string) interface{} {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Digits-only capture groups keep this unreachable; return the raw
		// text rather than drop the parameter.
		return raw
	}
	return f
}

func trimLocation(loc string) string {
	return strings.TrimSpace(strings.TrimPrefix(loc, "the "))
}
