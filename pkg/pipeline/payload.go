package pipeline

import (
	"github.com/jingkaihe/skillsite/pkg/source"
)

// Artifact payloads are the stable contract consumed by the static
// site build. Identity fields come from the source unit; descriptive
// fields are curated when the author supplied them and generated
// otherwise.

// PluginPayload is the artifact payload for a plugin unit.
type PluginPayload struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Tagline     string   `json:"tagline"`
	Summary     string   `json:"summary"`
	Highlights  []string `json:"highlights"`
	Skills      []string `json:"skills"`
}

// SkillPayload is the artifact payload for a skill unit.
type SkillPayload struct {
	Name        string                `json:"name"`
	Plugin      string                `json:"plugin"`
	Description string                `json:"description"`
	Summary     string                `json:"summary"`
	Workflow    []source.WorkflowStep `json:"workflow"`
}

// DiagramPayload is the artifact payload for a diagram source unit.
type DiagramPayload struct {
	Name   string `json:"name"`
	Plugin string `json:"plugin"`
	Source string `json:"source"`
}

// needsEnrichment reports whether a unit's required descriptive fields
// have curated gaps. Fully curated units never invoke the enrichment
// service, force-regenerated or not.
func needsEnrichment(unit source.Unit) bool {
	switch unit.Kind {
	case source.KindPlugin:
		return unit.Fields.Summary == "" || len(unit.Fields.Highlights) == 0
	case source.KindSkill:
		return unit.Fields.Summary == "" || len(unit.Fields.Workflow) == 0
	default:
		return false
	}
}
