package source

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const (
	descriptorFileName = "plugin.toml"
	skillFileName      = "SKILL.md"
	skillsSubdir       = "skills"
	diagramsSubdir     = "diagrams"
	diagramExt         = ".mmd"
)

// Reader discovers source units under a root directory.
type Reader struct {
	root string
}

// NewReader creates a reader rooted at the given source directory.
func NewReader(root string) *Reader {
	return &Reader{root: root}
}

// Discover walks the source root and returns all units sorted
// lexicographically by ID, plus per-unit failures for malformed
// descriptors. A missing or unreadable root is the only fatal error.
//
// A directory is a plugin only if it contains plugin.toml. A malformed
// plugin.toml fails the plugin unit but its skills and diagrams are
// still discovered independently.
func (r *Reader) Discover() ([]Unit, []Failure, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading source root %q", r.root)
	}

	var units []Unit
	var failures []Failure

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginName := entry.Name()
		pluginDir := filepath.Join(r.root, pluginName)

		descRaw, err := os.ReadFile(filepath.Join(pluginDir, descriptorFileName))
		if err != nil {
			// Not a plugin directory
			continue
		}

		skills, skillFailures := r.discoverSkills(pluginName, pluginDir)
		units = append(units, skills...)
		failures = append(failures, skillFailures...)

		units = append(units, r.discoverDiagrams(pluginName, pluginDir)...)

		plugin, err := parsePlugin(pluginName, string(descRaw), skills)
		if err != nil {
			failures = append(failures, Failure{UnitID: pluginName, Kind: KindPlugin, Err: err})
			continue
		}
		units = append(units, plugin)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].UnitID < failures[j].UnitID })

	return units, failures, nil
}

func (r *Reader) discoverSkills(pluginName, pluginDir string) ([]Unit, []Failure) {
	skillsDir := filepath.Join(pluginDir, skillsSubdir)
	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		return nil, nil
	}

	var units []Unit
	var failures []Failure

	for _, entry := range entries {
		entryPath := filepath.Join(skillsDir, entry.Name())

		// Stat rather than entry.IsDir so symlinked skill dirs resolve
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(entryPath, skillFileName))
		if err != nil {
			continue
		}

		unitID := pluginName + "/" + entry.Name()
		unit, err := parseSkill(pluginName, entry.Name(), string(raw))
		if err != nil {
			failures = append(failures, Failure{UnitID: unitID, Kind: KindSkill, Err: err})
			continue
		}
		units = append(units, unit)
	}

	return units, failures
}

func (r *Reader) discoverDiagrams(pluginName, pluginDir string) []Unit {
	diagramsDir := filepath.Join(pluginDir, diagramsSubdir)
	entries, err := os.ReadDir(diagramsDir)
	if err != nil {
		return nil
	}

	var units []Unit
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), diagramExt) {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(diagramsDir, entry.Name()))
		if err != nil {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), diagramExt)
		units = append(units, Unit{
			ID:         pluginName + "/" + name,
			Kind:       KindDiagram,
			Plugin:     pluginName,
			Name:       name,
			RawContent: string(raw),
		})
	}

	return units
}

// pluginDescriptor mirrors plugin.toml.
type pluginDescriptor struct {
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
	Tagline     string `toml:"tagline"`
	Curated     struct {
		Summary    string   `toml:"summary"`
		Highlights []string `toml:"highlights"`
	} `toml:"curated"`
}

func parsePlugin(dirName, raw string, skills []Unit) (Unit, error) {
	var desc pluginDescriptor
	if err := toml.Unmarshal([]byte(raw), &desc); err != nil {
		return Unit{}, errors.Wrap(err, "parsing plugin.toml")
	}

	if desc.Name == "" {
		return Unit{}, errors.New("plugin name is required in plugin.toml")
	}
	if desc.Name != dirName {
		return Unit{}, errors.Errorf("plugin name %q does not match directory %q", desc.Name, dirName)
	}
	if desc.DisplayName == "" {
		return Unit{}, errors.New("plugin display_name is required in plugin.toml")
	}
	if desc.Tagline == "" {
		return Unit{}, errors.New("plugin tagline is required in plugin.toml")
	}

	// Skills sorted by name so the composite digest order is reproducible
	sorted := make([]Unit, len(skills))
	copy(sorted, skills)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	skillNames := make([]string, 0, len(sorted))
	skillRaw := make([]string, 0, len(sorted))
	for _, s := range sorted {
		skillNames = append(skillNames, s.Name)
		skillRaw = append(skillRaw, s.RawContent)
	}

	return Unit{
		ID:         dirName,
		Kind:       KindPlugin,
		Plugin:     dirName,
		Name:       dirName,
		RawContent: raw,
		Fields: Fields{
			DisplayName: desc.DisplayName,
			Tagline:     desc.Tagline,
			Summary:     desc.Curated.Summary,
			Highlights:  desc.Curated.Highlights,
			SkillNames:  skillNames,
			SkillRaw:    skillRaw,
		},
	}, nil
}

// skillMetadata mirrors the SKILL.md YAML frontmatter.
type skillMetadata struct {
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Summary     string         `mapstructure:"summary"`
	Workflow    []WorkflowStep `mapstructure:"workflow"`
}

func parseSkill(pluginName, dirName, raw string) (Unit, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert([]byte(raw), &buf, parser.WithContext(pctx)); err != nil {
		return Unit{}, errors.Wrap(err, "parsing SKILL.md")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return Unit{}, errors.New("missing frontmatter in SKILL.md")
	}

	var sm skillMetadata
	if err := mapstructure.Decode(metaData, &sm); err != nil {
		return Unit{}, errors.Wrap(err, "invalid frontmatter in SKILL.md")
	}

	if sm.Name == "" {
		return Unit{}, errors.New("skill name is required in frontmatter")
	}
	if sm.Name != dirName {
		return Unit{}, errors.Errorf("skill name %q does not match directory %q", sm.Name, dirName)
	}
	if sm.Description == "" {
		return Unit{}, errors.New("skill description is required in frontmatter")
	}
	for i, step := range sm.Workflow {
		if step.Name == "" || step.Description == "" {
			return Unit{}, errors.Errorf("workflow step %d requires name and description", i+1)
		}
	}

	return Unit{
		ID:         pluginName + "/" + dirName,
		Kind:       KindSkill,
		Plugin:     pluginName,
		Name:       dirName,
		RawContent: raw,
		Fields: Fields{
			Description: sm.Description,
			Body:        extractBody(raw),
			Summary:     sm.Summary,
			Workflow:    sm.Workflow,
		},
	}, nil
}

// extractBody removes the YAML frontmatter block and returns the
// markdown body.
func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
