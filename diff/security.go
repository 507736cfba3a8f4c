package diff

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
)

// SeverityIncrease flags a threat present in both snapshots whose risk
// rating went up. Decreases stay visible in the generic modified list but
// are never flagged here.
type SeverityIncrease struct {
	ThreatID    string           `json:"threatId"`
	ReferenceID string           `json:"referenceId,omitempty"`
	ThreatName  string           `json:"threatName"`
	OldSeverity model.RiskRating `json:"oldSeverity"`
	NewSeverity model.RiskRating `json:"newSeverity"`
}

// CriticalRemoval flags a countermeasure that was implemented in the
// baseline and is gone from the target. A removed countermeasure that was
// never implemented is a normal removal, not a critical one.
type CriticalRemoval struct {
	CountermeasureID string           `json:"countermeasureId"`
	ReferenceID      string           `json:"referenceId,omitempty"`
	Name             string           `json:"name"`
	Severity         model.RiskRating `json:"severity"`
	Reason           string           `json:"reason"`
}

// ThreatScopeExpansion flags an existing threat whose blast radius grew:
// the same logical threat (joined by referenceId) affects components in the
// target it did not affect in the baseline.
type ThreatScopeExpansion struct {
	ThreatID       string           `json:"threatId"`
	ReferenceID    string           `json:"referenceId"`
	ThreatName     string           `json:"threatName"`
	ThreatSeverity model.RiskRating `json:"threatSeverity"`
	NewComponents  []string         `json:"newComponents"`
	Reason         string           `json:"reason"`
}

// CountermeasureScopeExpansion is the symmetric derivation for the
// countermeasure-to-component association.
type CountermeasureScopeExpansion struct {
	CountermeasureID string   `json:"countermeasureId"`
	ReferenceID      string   `json:"referenceId"`
	Name             string   `json:"name"`
	NewComponents    []string `json:"newComponents"`
	Reason           string   `json:"reason"`
}

// ThreatsDiff is the generic threat diff plus its domain derivations.
type ThreatsDiff struct {
	Diff[model.Threat]
	SeverityIncreases      []SeverityIncrease     `json:"severityIncreases"`
	AffectingNewComponents []ThreatScopeExpansion `json:"threatsNowAffectingNewComponents"`
}

// CountermeasuresDiff is the generic countermeasure diff plus its domain
// derivations.
type CountermeasuresDiff struct {
	Diff[model.Countermeasure]
	CriticalRemovals []CriticalRemoval              `json:"criticalRemovals"`
	ForNewComponents []CountermeasureScopeExpansion `json:"countermeasuresNowForNewComponents"`
}

// SecurityDiff is the security section of a comparison result.
type SecurityDiff struct {
	Threats         ThreatsDiff         `json:"threats"`
	Countermeasures CountermeasuresDiff `json:"countermeasures"`
}

const (
	reasonImplementedRemoved        = "implemented control removed"
	reasonAffectsAddedComponents    = "scope expanded onto newly added components"
	reasonAffectsExistingComponents = "scope expanded onto existing components"
)

var threatFields = []Field[model.Threat]{
	{Name: "name", Get: func(t model.Threat) any { return t.Name }},
	{Name: "riskRating", Get: func(t model.Threat) any { return t.RiskRating }},
	{Name: "status", Get: func(t model.Threat) any { return t.Status }},
}

var countermeasureFields = []Field[model.Countermeasure]{
	{Name: "name", Get: func(m model.Countermeasure) any { return m.Name }},
	{Name: "state", Get: func(m model.Countermeasure) any { return m.State }},
	{Name: "priority", Get: func(m model.Countermeasure) any { return m.Priority }},
}

// SecurityEngine reconciles threats and countermeasures and layers the
// domain derivations on top. It is pure over its inputs; the logger only
// reports suspicious referenceId collisions.
type SecurityEngine struct {
	log zerolog.Logger
}

// NewSecurityEngine creates a security diff engine.
func NewSecurityEngine(logger zerolog.Logger) *SecurityEngine {
	return &SecurityEngine{log: logger.With().Str("component", "security-diff").Logger()}
}

// Compare diffs the security entities of the two snapshots.
// addedComponents is the added-component id set from the architecture diff
// of the same comparison.
func (e *SecurityEngine) Compare(baseline, target *model.Snapshot, addedComponents map[string]struct{}) SecurityDiff {
	threats := ThreatsDiff{
		Diff:                   Reconcile(baseline.Threats, target.Threats, threatFields),
		SeverityIncreases:      e.severityIncreases(baseline, target),
		AffectingNewComponents: e.threatScopeExpansions(baseline, target, addedComponents),
	}
	countermeasures := CountermeasuresDiff{
		Diff:             Reconcile(baseline.Countermeasures, target.Countermeasures, countermeasureFields),
		ForNewComponents: e.countermeasureScopeExpansions(baseline, target, addedComponents),
	}
	countermeasures.CriticalRemovals = e.criticalRemovals(baseline, countermeasures.Removed)

	return SecurityDiff{Threats: threats, Countermeasures: countermeasures}
}

// severityIncreases walks the threats present in both snapshots by internal
// id and reports every strictly increased risk rating.
func (e *SecurityEngine) severityIncreases(baseline, target *model.Snapshot) []SeverityIncrease {
	increases := make([]SeverityIncrease, 0)
	for id, after := range target.Threats {
		before, ok := baseline.Threats[id]
		if !ok {
			continue
		}
		if after.RiskRating.Above(before.RiskRating) {
			increases = append(increases, SeverityIncrease{
				ThreatID:    id,
				ReferenceID: after.ReferenceID,
				ThreatName:  after.Name,
				OldSeverity: before.RiskRating,
				NewSeverity: after.RiskRating,
			})
		}
	}
	sort.Slice(increases, func(i, j int) bool { return increases[i].ThreatID < increases[j].ThreatID })
	return increases
}

// criticalRemovals filters the removed countermeasures down to the ones
// that were actually implemented in the baseline. Severity derives from the
// most severe baseline threat the countermeasure mitigated.
func (e *SecurityEngine) criticalRemovals(baseline *model.Snapshot, removed []model.Countermeasure) []CriticalRemoval {
	removals := make([]CriticalRemoval, 0)
	for _, m := range removed {
		if m.State != model.StateImplemented {
			continue
		}
		severity := model.RiskLow
		for _, threatID := range m.Threats {
			if t, ok := baseline.Threats[threatID]; ok && t.RiskRating.Above(severity) {
				severity = t.RiskRating
			}
		}
		removals = append(removals, CriticalRemoval{
			CountermeasureID: m.ID,
			ReferenceID:      m.ReferenceID,
			Name:             m.Name,
			Severity:         severity,
			Reason:           reasonImplementedRemoved,
		})
	}
	sort.Slice(removals, func(i, j int) bool { return removals[i].CountermeasureID < removals[j].CountermeasureID })
	return removals
}

// threatScopeExpansions joins the two snapshots' threats by referenceId and
// reports every threat whose component set gained members. Internal ids are
// re-issued across regenerations, so joining by internal id alone would
// misreport a regenerated threat as removed+added.
func (e *SecurityEngine) threatScopeExpansions(baseline, target *model.Snapshot, addedComponents map[string]struct{}) []ThreatScopeExpansion {
	baseByRef := make(map[string]model.Threat, len(baseline.Threats))
	for _, id := range sortedKeys(baseline.Threats) {
		t := baseline.Threats[id]
		if t.ReferenceID == "" {
			continue
		}
		if prev, dup := baseByRef[t.ReferenceID]; dup {
			e.log.Warn().
				Str("referenceId", t.ReferenceID).
				Str("keptThreatId", prev.ID).
				Str("droppedThreatId", t.ID).
				Msg("duplicate threat referenceId in baseline, keeping lowest id")
			continue
		}
		baseByRef[t.ReferenceID] = t
	}

	expansions := make([]ThreatScopeExpansion, 0)
	for _, after := range target.Threats {
		before, ok := baseByRef[after.ReferenceID]
		if after.ReferenceID == "" || !ok {
			continue
		}
		if before.Name != after.Name {
			// referenceId stability across rules-engine regenerations is not
			// guaranteed; a name mismatch may mean an unrelated threat
			// reusing the key. Join anyway, but leave a trace.
			e.log.Warn().
				Str("referenceId", after.ReferenceID).
				Str("baselineName", before.Name).
				Str("targetName", after.Name).
				Msg("referenceId matches but threat names differ")
		}
		newComponents := subtractIDs(after.Components, before.Components)
		if len(newComponents) == 0 {
			continue
		}
		expansions = append(expansions, ThreatScopeExpansion{
			ThreatID:       after.ID,
			ReferenceID:    after.ReferenceID,
			ThreatName:     after.Name,
			ThreatSeverity: after.RiskRating,
			NewComponents:  newComponents,
			Reason:         expansionReason(newComponents, addedComponents),
		})
	}
	sort.Slice(expansions, func(i, j int) bool {
		if expansions[i].ReferenceID != expansions[j].ReferenceID {
			return expansions[i].ReferenceID < expansions[j].ReferenceID
		}
		return expansions[i].ThreatID < expansions[j].ThreatID
	})
	return expansions
}

// countermeasureScopeExpansions is the countermeasure mirror of
// threatScopeExpansions, over the countermeasure-to-component association.
func (e *SecurityEngine) countermeasureScopeExpansions(baseline, target *model.Snapshot, addedComponents map[string]struct{}) []CountermeasureScopeExpansion {
	baseByRef := make(map[string]model.Countermeasure, len(baseline.Countermeasures))
	for _, id := range sortedKeys(baseline.Countermeasures) {
		m := baseline.Countermeasures[id]
		if m.ReferenceID == "" {
			continue
		}
		if prev, dup := baseByRef[m.ReferenceID]; dup {
			e.log.Warn().
				Str("referenceId", m.ReferenceID).
				Str("keptCountermeasureId", prev.ID).
				Str("droppedCountermeasureId", m.ID).
				Msg("duplicate countermeasure referenceId in baseline, keeping lowest id")
			continue
		}
		baseByRef[m.ReferenceID] = m
	}

	expansions := make([]CountermeasureScopeExpansion, 0)
	for _, after := range target.Countermeasures {
		before, ok := baseByRef[after.ReferenceID]
		if after.ReferenceID == "" || !ok {
			continue
		}
		newComponents := subtractIDs(after.Components, before.Components)
		if len(newComponents) == 0 {
			continue
		}
		expansions = append(expansions, CountermeasureScopeExpansion{
			CountermeasureID: after.ID,
			ReferenceID:      after.ReferenceID,
			Name:             after.Name,
			NewComponents:    newComponents,
			Reason:           expansionReason(newComponents, addedComponents),
		})
	}
	sort.Slice(expansions, func(i, j int) bool {
		if expansions[i].ReferenceID != expansions[j].ReferenceID {
			return expansions[i].ReferenceID < expansions[j].ReferenceID
		}
		return expansions[i].CountermeasureID < expansions[j].CountermeasureID
	})
	return expansions
}

// sortedKeys returns the map's keys in ascending order so joins over map
// contents stay deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// subtractIDs returns the members of a not present in b, sorted.
func subtractIDs(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := inB[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func expansionReason(newComponents []string, addedComponents map[string]struct{}) string {
	for _, id := range newComponents {
		if _, ok := addedComponents[id]; ok {
			return reasonAffectsAddedComponents
		}
	}
	return reasonAffectsExistingComponents
}
