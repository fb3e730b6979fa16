package registry

import (
	"fmt"
	"strings"
)

// ClassifierBriefing renders the action catalog as prompt text for the
// intent classifier: one line per action with keywords and an example.
func ClassifierBriefing() string {
	var b strings.Builder
	for _, def := range All() {
		b.WriteString(fmt.Sprintf("- %s: %s (keywords: %s)",
			def.Name, def.Description, strings.Join(def.Keywords, ", ")))
		if len(def.Examples) > 0 {
			b.WriteString(fmt.Sprintf(" e.g. %q", def.Examples[0]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ExtractorBriefing renders one action's parameter schema as prompt text for
// the parameter extractor. Unknown actions produce an empty briefing.
func ExtractorBriefing(action string) string {
	def, ok := Find(NormalizeActionName(action))
	if !ok {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Action %s: %s\nParameters:\n", def.Name, def.Description))
	for _, p := range def.Parameters {
		required := "optional"
		if p.Required {
			required = "required"
		}
		b.WriteString(fmt.Sprintf("- %s (%s, %s): %s", p.Name, p.Type, required, p.Description))
		if len(p.Examples) > 0 {
			b.WriteString(fmt.Sprintf(" e.g. %q", strings.Join(p.Examples, `", "`)))
		}
		b.WriteString("\n")
	}
	return b.String()
}
