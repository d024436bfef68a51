package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlugin(t *testing.T, root, name, descriptor string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.toml"), []byte(descriptor), 0o644))
	return dir
}

func writeSkill(t *testing.T, pluginDir, name, content string) {
	t.Helper()
	dir := filepath.Join(pluginDir, "skills", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

const reviewDescriptor = `name = "code-review"
display_name = "Code Review"
tagline = "Reviews pull requests"
`

const triageSkill = `---
name: triage
description: Sorts findings by severity
---

# Triage

Walk the diff and rank findings.
`

func TestDiscoverMissingRoot(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope"))
	_, _, err := r.Discover()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading source root")
}

func TestDiscoverPluginWithSkillsAndDiagrams(t *testing.T) {
	root := t.TempDir()
	pluginDir := writePlugin(t, root, "code-review", reviewDescriptor)
	writeSkill(t, pluginDir, "triage", triageSkill)

	diagramsDir := filepath.Join(pluginDir, "diagrams")
	require.NoError(t, os.MkdirAll(diagramsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(diagramsDir, "flow.mmd"), []byte("graph TD; A-->B"), 0o644))

	units, failures, err := NewReader(root).Discover()
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, units, 3)

	// Sorted by ID
	assert.Equal(t, "code-review", units[0].ID)
	assert.Equal(t, "code-review/flow", units[1].ID)
	assert.Equal(t, "code-review/triage", units[2].ID)

	plugin := units[0]
	assert.Equal(t, KindPlugin, plugin.Kind)
	assert.Equal(t, "Code Review", plugin.Fields.DisplayName)
	assert.Equal(t, "Reviews pull requests", plugin.Fields.Tagline)
	assert.Equal(t, reviewDescriptor, plugin.RawContent)
	assert.Equal(t, []string{"triage"}, plugin.Fields.SkillNames)
	assert.Equal(t, []string{triageSkill}, plugin.Fields.SkillRaw)

	diagram := units[1]
	assert.Equal(t, KindDiagram, diagram.Kind)
	assert.Equal(t, "graph TD; A-->B", diagram.RawContent)

	skill := units[2]
	assert.Equal(t, KindSkill, skill.Kind)
	assert.Equal(t, "code-review", skill.Plugin)
	assert.Equal(t, "Sorts findings by severity", skill.Fields.Description)
	assert.Contains(t, skill.Fields.Body, "# Triage")
	assert.NotContains(t, skill.Fields.Body, "description:")
}

func TestDiscoverSkipsNonPluginDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "random-dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hi"), 0o644))

	units, failures, err := NewReader(root).Discover()
	require.NoError(t, err)
	assert.Empty(t, units)
	assert.Empty(t, failures)
}

func TestDiscoverMalformedPluginKeepsSkills(t *testing.T) {
	root := t.TempDir()
	pluginDir := writePlugin(t, root, "broken", "name = [this is not toml")
	writeSkill(t, pluginDir, "triage", triageSkill)

	units, failures, err := NewReader(root).Discover()
	require.NoError(t, err)

	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].UnitID)
	assert.Equal(t, KindPlugin, failures[0].Kind)

	require.Len(t, units, 1)
	assert.Equal(t, "broken/triage", units[0].ID)
}

func TestDiscoverDescriptorValidation(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		wantErr    string
	}{
		{
			name:       "missing name",
			descriptor: "display_name = \"X\"\ntagline = \"y\"\n",
			wantErr:    "name is required",
		},
		{
			name:       "name mismatch",
			descriptor: "name = \"other\"\ndisplay_name = \"X\"\ntagline = \"y\"\n",
			wantErr:    "does not match directory",
		},
		{
			name:       "missing display_name",
			descriptor: "name = \"p\"\ntagline = \"y\"\n",
			wantErr:    "display_name is required",
		},
		{
			name:       "missing tagline",
			descriptor: "name = \"p\"\ndisplay_name = \"X\"\n",
			wantErr:    "tagline is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writePlugin(t, root, "p", tt.descriptor)

			units, failures, err := NewReader(root).Discover()
			require.NoError(t, err)
			assert.Empty(t, units)
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0].Err.Error(), tt.wantErr)
		})
	}
}

func TestDiscoverMalformedSkill(t *testing.T) {
	root := t.TempDir()
	pluginDir := writePlugin(t, root, "code-review", reviewDescriptor)
	writeSkill(t, pluginDir, "no-meta", "# Just markdown, no frontmatter\n")

	units, failures, err := NewReader(root).Discover()
	require.NoError(t, err)

	require.Len(t, failures, 1)
	assert.Equal(t, "code-review/no-meta", failures[0].UnitID)
	assert.Contains(t, failures[0].Err.Error(), "frontmatter")

	// Plugin itself still discovered, with no skills attached
	require.Len(t, units, 1)
	assert.Equal(t, "code-review", units[0].ID)
	assert.Empty(t, units[0].Fields.SkillNames)
}

func TestDiscoverSkillNameMismatch(t *testing.T) {
	root := t.TempDir()
	pluginDir := writePlugin(t, root, "code-review", reviewDescriptor)
	writeSkill(t, pluginDir, "triage", `---
name: other-name
description: mismatched
---
body
`)

	_, failures, err := NewReader(root).Discover()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "does not match directory")
}

func TestDiscoverCuratedFields(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "curated", `name = "curated"
display_name = "Curated"
tagline = "Fully written by hand"

[curated]
summary = "A hand-written summary."
highlights = ["fast", "reliable"]
`)

	units, failures, err := NewReader(root).Discover()
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Len(t, units, 1)

	assert.Equal(t, "A hand-written summary.", units[0].Fields.Summary)
	assert.Equal(t, []string{"fast", "reliable"}, units[0].Fields.Highlights)
}

func TestDiscoverSkillWorkflow(t *testing.T) {
	root := t.TempDir()
	pluginDir := writePlugin(t, root, "code-review", reviewDescriptor)
	writeSkill(t, pluginDir, "triage", `---
name: triage
description: Sorts findings
summary: Curated summary
workflow:
  - name: collect
    description: Gather findings
    detail: Includes linter output
  - name: rank
    description: Order by severity
---

Body text.
`)

	units, failures, err := NewReader(root).Discover()
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Len(t, units, 2)

	skill := units[1]
	assert.Equal(t, "Curated summary", skill.Fields.Summary)
	require.Len(t, skill.Fields.Workflow, 2)
	assert.Equal(t, "collect", skill.Fields.Workflow[0].Name)
	assert.Equal(t, "Includes linter output", skill.Fields.Workflow[0].Detail)
	assert.Equal(t, "rank", skill.Fields.Workflow[1].Name)
	assert.Empty(t, skill.Fields.Workflow[1].Detail)
}

func TestDiscoverIncompleteWorkflowStep(t *testing.T) {
	root := t.TempDir()
	pluginDir := writePlugin(t, root, "code-review", reviewDescriptor)
	writeSkill(t, pluginDir, "triage", `---
name: triage
description: Sorts findings
workflow:
  - name: collect
---
body
`)

	_, failures, err := NewReader(root).Discover()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "workflow step 1")
}

func TestDiscoverCompositeOrderStable(t *testing.T) {
	root := t.TempDir()
	pluginDir := writePlugin(t, root, "code-review", reviewDescriptor)
	writeSkill(t, pluginDir, "zeta", `---
name: zeta
description: Last alphabetically
---
z
`)
	writeSkill(t, pluginDir, "alpha", `---
name: alpha
description: First alphabetically
---
a
`)

	units, _, err := NewReader(root).Discover()
	require.NoError(t, err)

	var plugin Unit
	for _, u := range units {
		if u.Kind == KindPlugin {
			plugin = u
		}
	}
	assert.Equal(t, []string{"alpha", "zeta"}, plugin.Fields.SkillNames)
}
