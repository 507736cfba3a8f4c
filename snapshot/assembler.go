// Package snapshot assembles normalized snapshots from raw version
// artifacts. Everything downstream of here assumes valid, de-duplicated,
// id-keyed entity maps.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iriusrisk/iriusrisk-cli-sub001/cache"
	"github.com/iriusrisk/iriusrisk-cli-sub001/client"
	"github.com/iriusrisk/iriusrisk-cli-sub001/diagram"
	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
	modelerrors "github.com/iriusrisk/iriusrisk-cli-sub001/pkg/errors"
)

// Source resolves version identifiers and fetches raw artifacts.
// *client.Client is the production implementation.
type Source interface {
	ResolveVersion(ctx context.Context, nameOrID string) (client.VersionHandle, error)
	FetchArtifacts(ctx context.Context, handle client.VersionHandle) (*client.Artifacts, error)
}

// DiagramParser converts raw diagram markup into graph entities.
type DiagramParser interface {
	Parse(markup []byte) (*diagram.ParseResult, error)
}

// Assembler builds snapshots. It owns no state between invocations unless
// a cache is attached, and then only whole stored-version snapshots.
type Assembler struct {
	source Source
	parser DiagramParser
	cache  *cache.SnapshotCache
	log    zerolog.Logger
}

// NewAssembler creates a snapshot assembler.
func NewAssembler(source Source, parser DiagramParser, logger zerolog.Logger) *Assembler {
	return &Assembler{
		source: source,
		parser: parser,
		log:    logger.With().Str("component", "snapshot-assembler").Logger(),
	}
}

// WithCache attaches a snapshot cache consulted for stored versions.
// Snapshots of the live current state are never cached.
func (a *Assembler) WithCache(c *cache.SnapshotCache) *Assembler {
	a.cache = c
	return a
}

// BuildPair assembles the baseline and target snapshots concurrently, one
// fetch-and-parse pipeline per side. The first failure cancels the other
// in-flight side; a partial pair is never returned. An empty targetRef
// means the live current state.
func (a *Assembler) BuildPair(ctx context.Context, baselineRef, targetRef string) (*model.Snapshot, *model.Snapshot, error) {
	if baselineRef == "" {
		return nil, nil, fmt.Errorf("snapshot: baseline version is required")
	}

	var baseline, target *model.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.Build(gctx, baselineRef)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		baseline = s
		return nil
	})
	g.Go(func() error {
		s, err := a.Build(gctx, targetRef)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		target = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return baseline, target, nil
}

// Build assembles one snapshot. An empty ref addresses the live current
// state and skips version resolution.
func (a *Assembler) Build(ctx context.Context, ref string) (*model.Snapshot, error) {
	handle := client.CurrentVersion
	if ref != "" {
		resolved, err := a.source.ResolveVersion(ctx, ref)
		if err != nil {
			return nil, err
		}
		handle = resolved
	}

	if a.cache != nil && !handle.Current {
		if snap, ok := a.cache.Get(handle.ID); ok {
			a.log.Debug().Str("version", snap.VersionLabel).Msg("snapshot served from cache")
			return snap, nil
		}
	}

	artifacts, err := a.source.FetchArtifacts(ctx, handle)
	if err != nil {
		return nil, err
	}

	snap := model.NewSnapshot(handle.Label())

	parsed, err := a.parser.Parse(artifacts.DiagramMarkup)
	if err != nil {
		return nil, err
	}
	for _, c := range parsed.Components {
		c.Tags = normalizeSet(c.Tags)
		if _, dup := snap.Components[c.ID]; dup {
			return nil, modelerrors.NewDuplicateIDError("component", c.ID)
		}
		snap.Components[c.ID] = c
	}
	for _, d := range parsed.Dataflows {
		d.Tags = normalizeSet(d.Tags)
		if _, dup := snap.Dataflows[d.ID]; dup {
			return nil, modelerrors.NewDuplicateIDError("dataflow", d.ID)
		}
		snap.Dataflows[d.ID] = d
	}
	for _, z := range parsed.TrustZones {
		if _, dup := snap.TrustZones[z.ID]; dup {
			return nil, modelerrors.NewDuplicateIDError("trust zone", z.ID)
		}
		snap.TrustZones[z.ID] = z
	}

	threats, err := parseThreats(artifacts.ThreatsRaw)
	if err != nil {
		return nil, err
	}
	for _, t := range threats {
		if _, dup := snap.Threats[t.ID]; dup {
			return nil, modelerrors.NewDuplicateIDError("threat", t.ID)
		}
		snap.Threats[t.ID] = t
	}

	countermeasures, err := parseCountermeasures(artifacts.CountermeasuresRaw)
	if err != nil {
		return nil, err
	}
	for _, m := range countermeasures {
		if _, dup := snap.Countermeasures[m.ID]; dup {
			return nil, modelerrors.NewDuplicateIDError("countermeasure", m.ID)
		}
		snap.Countermeasures[m.ID] = m
	}

	a.log.Debug().
		Str("version", snap.VersionLabel).
		Int("components", len(snap.Components)).
		Int("dataflows", len(snap.Dataflows)).
		Int("trustZones", len(snap.TrustZones)).
		Int("threats", len(snap.Threats)).
		Int("countermeasures", len(snap.Countermeasures)).
		Msg("snapshot assembled")

	if a.cache != nil && !handle.Current {
		a.cache.Put(handle.ID, snap)
	}

	return snap, nil
}

type rawThreat struct {
	ID          string   `json:"id"`
	ReferenceID string   `json:"referenceId"`
	Name        string   `json:"name"`
	RiskRating  string   `json:"riskRating"`
	Status      string   `json:"status"`
	Components  []string `json:"components"`
}

type threatListing struct {
	Threats []rawThreat `json:"threats"`
}

func parseThreats(raw []byte) ([]model.Threat, error) {
	var listing threatListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, modelerrors.NewParseError("malformed threat list", err)
	}
	threats := make([]model.Threat, 0, len(listing.Threats))
	for i, t := range listing.Threats {
		if t.ID == "" {
			return nil, modelerrors.NewMalformedEntityError("threat",
				fmt.Sprintf("entry %d has no id", i))
		}
		threats = append(threats, model.Threat{
			ID:          t.ID,
			ReferenceID: t.ReferenceID,
			Name:        t.Name,
			RiskRating:  model.RiskRating(strings.ToUpper(t.RiskRating)),
			Status:      t.Status,
			Components:  normalizeSet(t.Components),
		})
	}
	return threats, nil
}

type rawCountermeasure struct {
	ID          string   `json:"id"`
	ReferenceID string   `json:"referenceId"`
	Name        string   `json:"name"`
	State       string   `json:"state"`
	Priority    string   `json:"priority"`
	Threats     []string `json:"threats"`
	Components  []string `json:"components"`
}

type countermeasureListing struct {
	Countermeasures []rawCountermeasure `json:"countermeasures"`
}

func parseCountermeasures(raw []byte) ([]model.Countermeasure, error) {
	var listing countermeasureListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, modelerrors.NewParseError("malformed countermeasure list", err)
	}
	countermeasures := make([]model.Countermeasure, 0, len(listing.Countermeasures))
	for i, m := range listing.Countermeasures {
		if m.ID == "" {
			return nil, modelerrors.NewMalformedEntityError("countermeasure",
				fmt.Sprintf("entry %d has no id", i))
		}
		countermeasures = append(countermeasures, model.Countermeasure{
			ID:          m.ID,
			ReferenceID: m.ReferenceID,
			Name:        m.Name,
			State:       model.CountermeasureState(strings.ToLower(m.State)),
			Priority:    m.Priority,
			Threats:     normalizeSet(m.Threats),
			Components:  normalizeSet(m.Components),
		})
	}
	return countermeasures, nil
}

// normalizeSet sorts and de-duplicates an id or tag set so set equality in
// the diff core is order-insensitive.
func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
