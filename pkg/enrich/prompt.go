package enrich

import (
	"fmt"
	"strings"

	"github.com/jingkaihe/skillsite/pkg/source"
)

// Prompts are built deterministically from unit content only, so a run
// over unchanged sources issues byte-identical requests. Combined with
// temperature 0 this keeps repeated output textually stable, which is
// a cache-friendliness property, not a correctness one.

const systemPrompt = `You write concise catalog copy for a developer tool showcase site.
Respond with a single JSON object only. No markdown fences, no prose
before or after the JSON.`

func pluginPrompt(unit source.Unit) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plugin %q (%s): %s\n\n", unit.Fields.DisplayName, unit.Name, unit.Fields.Tagline)
	b.WriteString("Descriptor:\n")
	b.WriteString(unit.RawContent)
	b.WriteString("\n")

	if len(unit.Fields.SkillNames) > 0 {
		fmt.Fprintf(&b, "Skills provided by this plugin: %s\n\n", strings.Join(unit.Fields.SkillNames, ", "))
	}

	fmt.Fprintf(&b, `Write a JSON object with exactly these keys:
  "summary": one paragraph (max %d characters) describing what the plugin does and who it is for
  "highlights": %d to %d short bullet strings (max %d characters each) of its most useful capabilities
`, MaxSummaryLength, 1, MaxHighlights, MaxHighlightLength)

	return b.String()
}

func skillPrompt(unit source.Unit) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Skill %q of plugin %q: %s\n\n", unit.Name, unit.Plugin, unit.Fields.Description)
	b.WriteString("Skill document:\n")
	b.WriteString(unit.Fields.Body)
	b.WriteString("\n")

	fmt.Fprintf(&b, `Write a JSON object with exactly these keys:
  "summary": one paragraph (max %d characters) describing what the skill does
  "workflow": %d to %d ordered steps, each an object with "name", "description" and optional "detail"
`, MaxSummaryLength, 1, MaxWorkflowSteps)

	return b.String()
}
