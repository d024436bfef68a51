// Package pipeline orchestrates the incremental generation run:
// discover source units, digest them, decide stale versus fresh, fill
// curated gaps through enrichment, and write artifacts. Units are
// isolated from each other's failures, and results are reported in
// deterministic unit-ID order.
package pipeline

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skillsite/pkg/artifact"
	"github.com/jingkaihe/skillsite/pkg/digest"
	"github.com/jingkaihe/skillsite/pkg/enrich"
	"github.com/jingkaihe/skillsite/pkg/logger"
	"github.com/jingkaihe/skillsite/pkg/source"
)

// State is a unit's terminal state for the run.
type State string

// Terminal unit states
const (
	// StateFresh means the recorded digest matched and the artifact was
	// left untouched.
	StateFresh State = "fresh"
	// StateStale is only reported by dry runs: the unit would be
	// regenerated.
	StateStale State = "stale"
	// StateWritten means a new artifact was generated.
	StateWritten State = "written"
	// StateFailed means the unit was skipped after an error; any prior
	// artifact is preserved.
	StateFailed State = "failed"
)

// Enricher fills curated gaps with generated fields. Satisfied by
// *enrich.Adapter.
type Enricher interface {
	EnrichPlugin(ctx context.Context, unit source.Unit) (*enrich.PluginFields, error)
	EnrichSkill(ctx context.Context, unit source.Unit) (*enrich.SkillFields, error)
}

// Options configures a pipeline run.
type Options struct {
	SourceRoot string
	OutputRoot string

	// Force regenerates every unit regardless of recorded digests.
	Force bool

	// DryRun reports the plan without enriching or writing anything.
	DryRun bool

	// Concurrency bounds the worker pool. Values below 2 keep the
	// default sequential execution.
	Concurrency int

	// NewEnricher constructs the enrichment adapter. It is called at
	// most once, and only after the plan shows some unit actually
	// needs enrichment; a constructor error (e.g. missing credential)
	// is therefore fatal before any unit is processed.
	NewEnricher func() (Enricher, error)
}

// UnitResult is the outcome for a single unit.
type UnitResult struct {
	UnitID string
	Kind   source.Kind
	State  State
	Reason string // human-readable, always set for failures
	Err    error
}

// Summary is the deterministic per-run report.
type Summary struct {
	Results   []UnitResult
	Generated int
	Unchanged int
	Failed    int
}

// Err aggregates every failed unit into one error, or nil when the
// run fully succeeded.
func (s *Summary) Err() error {
	var merr *multierror.Error
	for _, r := range s.Results {
		if r.State == StateFailed {
			merr = multierror.Append(merr, errors.Wrap(r.Err, r.UnitID))
		}
	}
	return merr.ErrorOrNil()
}

type planEntry struct {
	unit   source.Unit
	digest string
	stale  bool
	enrich bool
}

// Run executes the pipeline. The returned error is fatal-precondition
// only (missing source root, missing credential when enrichment is
// needed, cancellation); per-unit failures land in the Summary.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	log := logger.G(ctx)

	units, discoveryFailures, err := source.NewReader(opts.SourceRoot).Discover()
	if err != nil {
		return nil, err
	}
	log.WithField("units", len(units)).Debug("discovered source units")

	store := artifact.NewStore(opts.OutputRoot)

	// Plan phase: digest and classify every unit before any side
	// effect, so fatal preconditions abort with the store untouched.
	entries := make([]planEntry, 0, len(units))
	enrichmentNeeded := false
	for _, unit := range units {
		d := unitDigest(unit)
		stale := opts.Force || store.IsStale(unit.ID, unit.Kind, d)
		needs := stale && needsEnrichment(unit)
		enrichmentNeeded = enrichmentNeeded || needs
		entries = append(entries, planEntry{unit: unit, digest: d, stale: stale, enrich: needs})
	}

	if opts.DryRun {
		return planSummary(entries, discoveryFailures), nil
	}

	var enricher Enricher
	if enrichmentNeeded {
		if opts.NewEnricher == nil {
			return nil, errors.New("enrichment required but no enricher configured")
		}
		enricher, err = opts.NewEnricher()
		if err != nil {
			return nil, errors.Wrap(err, "enrichment required")
		}
	}

	results := make([]UnitResult, len(entries))

	if opts.Concurrency > 1 {
		g := new(errgroup.Group)
		g.SetLimit(opts.Concurrency)

		for i, entry := range entries {
			// Cancellation is honored at unit boundaries only
			if err := ctx.Err(); err != nil {
				g.Wait()
				return nil, err
			}
			g.Go(func() error {
				results[i] = processUnit(ctx, entry, store, enricher)
				return nil
			})
		}
		g.Wait()
	} else {
		for i, entry := range entries {
			// Cancellation is honored at unit boundaries only
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = processUnit(ctx, entry, store, enricher)
		}
	}

	return buildSummary(results, discoveryFailures), nil
}

func unitDigest(unit source.Unit) string {
	if unit.Kind == source.KindPlugin && len(unit.Fields.SkillRaw) > 0 {
		parts := make([]string, 0, len(unit.Fields.SkillRaw)+1)
		parts = append(parts, unit.RawContent)
		parts = append(parts, unit.Fields.SkillRaw...)
		return digest.Composite(parts...)
	}
	return digest.Of(unit.RawContent)
}

// processUnit drives one unit from its plan entry to a terminal state.
// Every error is caught here; nothing propagates to siblings.
func processUnit(ctx context.Context, entry planEntry, store *artifact.Store, enricher Enricher) UnitResult {
	unit := entry.unit
	log := logger.G(ctx).WithField("unit", unit.ID)

	if !entry.stale {
		log.Debug("unchanged, skipping")
		return UnitResult{UnitID: unit.ID, Kind: unit.Kind, State: StateFresh}
	}

	payload, err := buildPayload(ctx, entry, enricher)
	if err != nil {
		log.WithError(err).Warn("unit failed")
		return UnitResult{UnitID: unit.ID, Kind: unit.Kind, State: StateFailed, Reason: err.Error(), Err: err}
	}

	if err := store.Write(unit.ID, unit.Kind, entry.digest, payload); err != nil {
		log.WithError(err).Warn("artifact write failed")
		return UnitResult{UnitID: unit.ID, Kind: unit.Kind, State: StateFailed, Reason: err.Error(), Err: err}
	}

	log.WithField("digest", entry.digest).Info("artifact written")
	return UnitResult{UnitID: unit.ID, Kind: unit.Kind, State: StateWritten}
}

func buildPayload(ctx context.Context, entry planEntry, enricher Enricher) (any, error) {
	unit := entry.unit

	switch unit.Kind {
	case source.KindPlugin:
		payload := PluginPayload{
			Name:        unit.Name,
			DisplayName: unit.Fields.DisplayName,
			Tagline:     unit.Fields.Tagline,
			Summary:     unit.Fields.Summary,
			Highlights:  unit.Fields.Highlights,
			Skills:      unit.Fields.SkillNames,
		}
		if entry.enrich {
			generated, err := enricher.EnrichPlugin(enrichContext(ctx), unit)
			if err != nil {
				return nil, err
			}
			// Curated values win field by field; generation fills gaps
			if payload.Summary == "" {
				payload.Summary = generated.Summary
			}
			if len(payload.Highlights) == 0 {
				payload.Highlights = generated.Highlights
			}
		}
		return payload, nil

	case source.KindSkill:
		payload := SkillPayload{
			Name:        unit.Name,
			Plugin:      unit.Plugin,
			Description: unit.Fields.Description,
			Summary:     unit.Fields.Summary,
			Workflow:    unit.Fields.Workflow,
		}
		if entry.enrich {
			generated, err := enricher.EnrichSkill(enrichContext(ctx), unit)
			if err != nil {
				return nil, err
			}
			if payload.Summary == "" {
				payload.Summary = generated.Summary
			}
			if len(payload.Workflow) == 0 {
				payload.Workflow = generated.Workflow
			}
		}
		return payload, nil

	case source.KindDiagram:
		return DiagramPayload{
			Name:   unit.Name,
			Plugin: unit.Plugin,
			Source: unit.RawContent,
		}, nil

	default:
		return nil, errors.Errorf("unknown unit kind %q", unit.Kind)
	}
}

// enrichContext detaches the enrichment call from run cancellation: an
// issued request completes or times out under the adapter's own
// deadline instead of being torn down mid-flight, which would leave
// the unit ambiguously half-enriched.
func enrichContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func planSummary(entries []planEntry, discoveryFailures []source.Failure) *Summary {
	results := make([]UnitResult, 0, len(entries))
	for _, entry := range entries {
		state := StateFresh
		reason := ""
		if entry.stale {
			state = StateStale
			reason = "would regenerate"
			if entry.enrich {
				reason = "would regenerate with enrichment"
			}
		}
		results = append(results, UnitResult{UnitID: entry.unit.ID, Kind: entry.unit.Kind, State: state, Reason: reason})
	}
	return buildSummary(results, discoveryFailures)
}

func buildSummary(results []UnitResult, discoveryFailures []source.Failure) *Summary {
	all := make([]UnitResult, 0, len(results)+len(discoveryFailures))
	all = append(all, results...)
	for _, f := range discoveryFailures {
		all = append(all, UnitResult{
			UnitID: f.UnitID,
			Kind:   f.Kind,
			State:  StateFailed,
			Reason: f.Err.Error(),
			Err:    f.Err,
		})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].UnitID < all[j].UnitID })

	s := &Summary{Results: all}
	for _, r := range all {
		switch r.State {
		case StateWritten, StateStale:
			s.Generated++
		case StateFresh:
			s.Unchanged++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}
