// Package artifact owns the generated JSON artifact tree: staleness
// checks against the digest recorded in an existing artifact, and
// atomic writes of regenerated ones. Regeneration decisions are made
// purely on content digests; file timestamps are never consulted.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsite/pkg/source"
)

// Artifact is the persisted record for one source unit. Payload is the
// only stable contract for site consumers; SourceHash and GeneratedAt
// are pipeline bookkeeping exposed for debugging.
type Artifact struct {
	SourceHash  string          `json:"sourceHash"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Payload     json.RawMessage `json:"payload"`
}

var kindSubdirs = map[source.Kind]string{
	source.KindPlugin:  "plugins",
	source.KindSkill:   "skills",
	source.KindDiagram: "diagrams",
}

// Store reads and writes artifacts under a root directory, one file
// per unit.
type Store struct {
	root string

	// Created-directory cache, process-scoped: initialized empty each
	// run, discarded at run end.
	mu      sync.Mutex
	created map[string]struct{}

	now func() time.Time
}

// NewStore creates a store rooted at the given output directory.
func NewStore(root string) *Store {
	return &Store{
		root:    root,
		created: make(map[string]struct{}),
		now:     time.Now,
	}
}

// Path returns the artifact file path for a unit. Paths derive only
// from the unit ID and kind, so a unit always maps to the same file.
func (s *Store) Path(unitID string, kind source.Kind) string {
	subdir, ok := kindSubdirs[kind]
	if !ok {
		subdir = string(kind)
	}
	return filepath.Join(s.root, subdir, filepath.FromSlash(unitID)+".json")
}

// RecordedDigest returns the sourceHash recorded in the unit's existing
// artifact. ok is false when the artifact is absent, unreadable, or
// corrupt; callers treat all three as stale so a damaged cache is
// always recoverable by rewriting it.
func (s *Store) RecordedDigest(unitID string, kind source.Kind) (string, bool) {
	data, err := os.ReadFile(s.Path(unitID, kind))
	if err != nil {
		return "", false
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return "", false
	}
	if a.SourceHash == "" {
		return "", false
	}

	return a.SourceHash, true
}

// IsStale reports whether the unit must be regenerated: true when no
// valid prior artifact exists or its recorded digest differs from
// currentDigest.
func (s *Store) IsStale(unitID string, kind source.Kind, currentDigest string) bool {
	recorded, ok := s.RecordedDigest(unitID, kind)
	if !ok {
		return true
	}
	return recorded != currentDigest
}

// Read loads the unit's artifact. Used by consumers inspecting the
// generated tree; the pipeline itself only reads digests back.
func (s *Store) Read(unitID string, kind source.Kind) (*Artifact, error) {
	data, err := os.ReadFile(s.Path(unitID, kind))
	if err != nil {
		return nil, errors.Wrapf(err, "reading artifact for %q", unitID)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrapf(err, "decoding artifact for %q", unitID)
	}

	return &a, nil
}

// Write serializes {sourceHash, generatedAt, payload} to the unit's
// artifact path. The write is atomic from a reader's perspective: the
// payload lands in a temp file in the target directory and is renamed
// over the final path, so concurrent readers see either the old or the
// new complete artifact.
func (s *Store) Write(unitID string, kind source.Kind, digest string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding payload for %q", unitID)
	}

	a := Artifact{
		SourceHash:  digest,
		GeneratedAt: s.now().UTC().Truncate(time.Second),
		Payload:     payloadJSON,
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding artifact for %q", unitID)
	}
	data = append(data, '\n')

	path := s.Path(unitID, kind)
	dir := filepath.Dir(path)
	if err := s.ensureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp artifact for %q", unitID)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "writing artifact for %q", unitID)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "closing temp artifact for %q", unitID)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "setting artifact permissions for %q", unitID)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "renaming artifact for %q", unitID)
	}

	return nil
}

func (s *Store) ensureDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.created[dir]; ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating artifact directory %q", dir)
	}
	s.created[dir] = struct{}{}
	return nil
}
