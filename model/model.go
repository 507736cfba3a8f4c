// Package model defines the typed entities of a threat-model snapshot.
// Source artifacts are loosely typed; everything is normalized into these
// fixed-shape records at snapshot assembly time so the diff core can assume
// well-typed, id-keyed input.
package model

import "time"

// CurrentVersionLabel is the sentinel label stamped on a snapshot built
// from the live current state rather than a stored version.
const CurrentVersionLabel = "current"

// RiskRating is the ordinal severity of a threat.
type RiskRating string

const (
	RiskLow      RiskRating = "LOW"
	RiskMedium   RiskRating = "MEDIUM"
	RiskHigh     RiskRating = "HIGH"
	RiskCritical RiskRating = "CRITICAL"
)

var riskRank = map[RiskRating]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Rank returns the position of the rating under the total order
// LOW < MEDIUM < HIGH < CRITICAL. Unknown ratings rank below LOW.
func (r RiskRating) Rank() int { return riskRank[r] }

// Above reports whether r is strictly more severe than other.
func (r RiskRating) Above(other RiskRating) bool { return r.Rank() > other.Rank() }

// CountermeasureState is the lifecycle state of a countermeasure.
type CountermeasureState string

const (
	StateRequired    CountermeasureState = "required"
	StateRecommended CountermeasureState = "recommended"
	StateImplemented CountermeasureState = "implemented"
	StateRejected    CountermeasureState = "rejected"
)

// Component is a node in the architecture diagram.
type Component struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Style       string   `json:"style,omitempty"`
	Parent      string   `json:"parent,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

// EntityID returns the component's stable identifier.
func (c Component) EntityID() string { return c.ID }

// Dataflow is a directed connection between two components. It never
// references a trust zone.
type Dataflow struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Source        string   `json:"source"`
	Destination   string   `json:"destination"`
	Bidirectional bool     `json:"bidirectional,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// EntityID returns the dataflow's stable identifier.
func (d Dataflow) EntityID() string { return d.ID }

// TrustZone is a security boundary grouping components.
type TrustZone struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TrustRating int    `json:"trustRating"`
}

// EntityID returns the trust zone's stable identifier.
func (z TrustZone) EntityID() string { return z.ID }

// Threat is a security finding attached to one or more components.
// ID is the internal identifier of this issuance; ReferenceID is the stable
// semantic identifier reused when the rules engine re-issues the same
// logical threat under a new internal id.
type Threat struct {
	ID          string     `json:"id"`
	ReferenceID string     `json:"referenceId"`
	Name        string     `json:"name"`
	RiskRating  RiskRating `json:"riskRating"`
	Status      string     `json:"status,omitempty"`
	Components  []string   `json:"components,omitempty"`
}

// EntityID returns the threat's internal identifier.
func (t Threat) EntityID() string { return t.ID }

// Countermeasure is a control mitigating one or more threats.
type Countermeasure struct {
	ID          string              `json:"id"`
	ReferenceID string              `json:"referenceId"`
	Name        string              `json:"name"`
	State       CountermeasureState `json:"state"`
	Priority    string              `json:"priority,omitempty"`
	Threats     []string            `json:"threats,omitempty"`
	Components  []string            `json:"components,omitempty"`
}

// EntityID returns the countermeasure's internal identifier.
func (m Countermeasure) EntityID() string { return m.ID }

// Snapshot is one fully materialized version of the model: the five entity
// maps plus capture metadata. Built once per comparison, never mutated.
type Snapshot struct {
	Components      map[string]Component      `json:"components"`
	Dataflows       map[string]Dataflow       `json:"dataflows"`
	TrustZones      map[string]TrustZone      `json:"trustZones"`
	Threats         map[string]Threat         `json:"threats"`
	Countermeasures map[string]Countermeasure `json:"countermeasures"`
	VersionLabel    string                    `json:"versionLabel"`
	CapturedAt      time.Time                 `json:"capturedAt"`
}

// NewSnapshot creates an empty snapshot for the given version label.
func NewSnapshot(versionLabel string) *Snapshot {
	return &Snapshot{
		Components:      make(map[string]Component),
		Dataflows:       make(map[string]Dataflow),
		TrustZones:      make(map[string]TrustZone),
		Threats:         make(map[string]Threat),
		Countermeasures: make(map[string]Countermeasure),
		VersionLabel:    versionLabel,
		CapturedAt:      time.Now().UTC(),
	}
}

// ThreatByReference returns the threat carrying the given referenceId, if
// any. Internal ids churn across regenerations; referenceId is the stable
// join key.
func (s *Snapshot) ThreatByReference(refID string) (Threat, bool) {
	for _, t := range s.Threats {
		if t.ReferenceID == refID {
			return t, true
		}
	}
	return Threat{}, false
}

// CountermeasureByReference returns the countermeasure carrying the given
// referenceId, if any.
func (s *Snapshot) CountermeasureByReference(refID string) (Countermeasure, bool) {
	for _, m := range s.Countermeasures {
		if m.ReferenceID == refID {
			return m, true
		}
	}
	return Countermeasure{}, false
}
