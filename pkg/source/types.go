// Package source discovers and parses the author-provided source tree:
// plugin descriptors (plugin.toml), skill documents (SKILL.md with
// YAML frontmatter), and Mermaid diagram sources. Units are read once
// per run, never mutated, and never persisted.
package source

// Kind identifies the type of a source unit.
type Kind string

// Source unit kinds
const (
	KindPlugin  Kind = "plugin"
	KindSkill   Kind = "skill"
	KindDiagram Kind = "diagram"
)

// Unit is one discoverable piece of author-provided content. RawContent
// holds the exact bytes used for hashing and must be the same
// representation on every run.
type Unit struct {
	ID         string // "plugin", "plugin/skill", or "plugin/diagram"
	Kind       Kind
	Plugin     string // owning plugin directory name
	Name       string // short name within the plugin
	RawContent string
	Fields     Fields
}

// Fields holds the parsed, human-curated descriptor data for a unit.
// Empty descriptive fields are gaps for enrichment to fill; non-empty
// ones always win over generated equivalents.
type Fields struct {
	DisplayName string
	Tagline     string
	Description string
	Body        string // skill document body (markdown, frontmatter stripped)
	Summary     string
	Highlights  []string
	Workflow    []WorkflowStep

	// Plugin units carry their skills' names and raw contents, sorted
	// by skill name, for the composite digest and the artifact's skill
	// listing.
	SkillNames []string
	SkillRaw   []string
}

// WorkflowStep is one ordered step of a skill's workflow.
type WorkflowStep struct {
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description"`
	Detail      string `mapstructure:"detail" json:"detail,omitempty"`
}

// Failure records a malformed descriptor that was skipped during
// discovery. Failures never abort the run; the orchestrator folds them
// into the summary.
type Failure struct {
	UnitID string
	Kind   Kind
	Err    error
}
