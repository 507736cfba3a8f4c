package diff

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
	modelerrors "github.com/iriusrisk/iriusrisk-cli-sub001/pkg/errors"
)

// Comparison modes
const (
	ModeBaselineVsCurrent = "baseline-vs-current"
	ModeBaselineVsTarget  = "baseline-vs-target"
)

// Metadata identifies one comparison run.
type Metadata struct {
	ComparisonID    string    `json:"comparisonId"`
	ComparisonMode  string    `json:"comparisonMode"`
	BaselineVersion string    `json:"baselineVersion"`
	TargetVersion   string    `json:"targetVersion"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// RiskIndicators are the boolean reductions used for automated gating.
// What counts as blocking is the caller's policy, not the comparator's.
type RiskIndicators struct {
	HasCriticalRemovals  bool `json:"hasCriticalRemovals"`
	HasSeverityIncreases bool `json:"hasSeverityIncreases"`
	HasNewComponents     bool `json:"hasNewComponents"`
}

// Summary aggregates change counts and risk indicators.
type Summary struct {
	ArchitectureChanges map[string]Counts `json:"architectureChanges"`
	SecurityChanges     map[string]Counts `json:"securityChanges"`
	RiskIndicators      RiskIndicators    `json:"riskIndicators"`
}

// ComparisonResult is the sole output of a comparison: metadata, the
// architecture and security diffs, and the summary. Created fresh per
// invocation and never mutated afterwards.
type ComparisonResult struct {
	Metadata     Metadata         `json:"metadata"`
	Architecture ArchitectureDiff `json:"architecture"`
	Security     SecurityDiff     `json:"security"`
	Summary      Summary          `json:"summary"`
}

// Comparator is the top-level diff engine. It is a pure function of two
// snapshots: no I/O, no retries, no caching, no partial results.
type Comparator struct {
	log      zerolog.Logger
	security *SecurityEngine
}

// NewComparator creates a comparator.
func NewComparator(logger zerolog.Logger) *Comparator {
	return &Comparator{
		log:      logger.With().Str("component", "comparator").Logger(),
		security: NewSecurityEngine(logger),
	}
}

// Compare produces the structured delta between the baseline and target
// snapshots. The security engine consumes the architecture engine's
// added-component id set to classify scope expansions.
func (c *Comparator) Compare(baseline, target *model.Snapshot) (*ComparisonResult, error) {
	if err := validateSnapshot(baseline); err != nil {
		return nil, err
	}
	if err := validateSnapshot(target); err != nil {
		return nil, err
	}

	architecture := CompareArchitecture(baseline, target)
	security := c.security.Compare(baseline, target, architecture.AddedComponentIDs())

	result := &ComparisonResult{
		Metadata: Metadata{
			ComparisonID:    uuid.New().String(),
			ComparisonMode:  comparisonMode(target),
			BaselineVersion: baseline.VersionLabel,
			TargetVersion:   target.VersionLabel,
			GeneratedAt:     time.Now().UTC(),
		},
		Architecture: architecture,
		Security:     security,
		Summary: Summary{
			ArchitectureChanges: map[string]Counts{
				"components": architecture.Components.Counts(),
				"dataflows":  architecture.Dataflows.Counts(),
				"trustZones": architecture.TrustZones.Counts(),
			},
			SecurityChanges: map[string]Counts{
				"threats":         security.Threats.Counts(),
				"countermeasures": security.Countermeasures.Counts(),
			},
			RiskIndicators: RiskIndicators{
				HasCriticalRemovals:  len(security.Countermeasures.CriticalRemovals) > 0,
				HasSeverityIncreases: len(security.Threats.SeverityIncreases) > 0,
				HasNewComponents:     len(architecture.Components.Added) > 0,
			},
		},
	}

	c.log.Debug().
		Str("comparisonId", result.Metadata.ComparisonID).
		Str("mode", result.Metadata.ComparisonMode).
		Int("componentsAdded", len(architecture.Components.Added)).
		Int("severityIncreases", len(security.Threats.SeverityIncreases)).
		Int("criticalRemovals", len(security.Countermeasures.CriticalRemovals)).
		Msg("comparison complete")

	return result, nil
}

func comparisonMode(target *model.Snapshot) string {
	if target.VersionLabel == model.CurrentVersionLabel {
		return ModeBaselineVsCurrent
	}
	return ModeBaselineVsTarget
}

// validateSnapshot checks the invariants the reconciler assumes: every map
// entry keyed by the entity's own id. Violations surface as internal
// errors, not silent misdiffs.
func validateSnapshot(s *model.Snapshot) error {
	if s == nil {
		return &modelerrors.ModelError{
			Kind:    modelerrors.KindInternal,
			Code:    modelerrors.CodeMalformedEntity,
			Message: "nil snapshot",
		}
	}
	for id, c := range s.Components {
		if id != c.ID {
			return keyMismatch("component", id, c.ID)
		}
	}
	for id, d := range s.Dataflows {
		if id != d.ID {
			return keyMismatch("dataflow", id, d.ID)
		}
	}
	for id, z := range s.TrustZones {
		if id != z.ID {
			return keyMismatch("trust zone", id, z.ID)
		}
	}
	for id, t := range s.Threats {
		if id != t.ID {
			return keyMismatch("threat", id, t.ID)
		}
	}
	for id, m := range s.Countermeasures {
		if id != m.ID {
			return keyMismatch("countermeasure", id, m.ID)
		}
	}
	return nil
}

func keyMismatch(entityType, key, id string) error {
	return &modelerrors.ModelError{
		Kind:    modelerrors.KindInternal,
		Code:    modelerrors.CodeMalformedEntity,
		Message: entityType + " keyed by " + key + " carries id " + id,
	}
}
