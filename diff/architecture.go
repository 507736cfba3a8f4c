package diff

import "github.com/iriusrisk/iriusrisk-cli-sub001/model"

// ArchitectureDiff is the architecture section of a comparison result.
type ArchitectureDiff struct {
	Components Diff[model.Component] `json:"components"`
	Dataflows  Diff[model.Dataflow]  `json:"dataflows"`
	TrustZones Diff[model.TrustZone] `json:"trustZones"`
}

var componentFields = []Field[model.Component]{
	{Name: "name", Get: func(c model.Component) any { return c.Name }},
	{Name: "style", Get: func(c model.Component) any { return c.Style }},
	{Name: "parent", Get: func(c model.Component) any { return c.Parent }},
	{Name: "tags", Get: func(c model.Component) any { return c.Tags }},
}

var dataflowFields = []Field[model.Dataflow]{
	{Name: "name", Get: func(d model.Dataflow) any { return d.Name }},
	{Name: "source", Get: func(d model.Dataflow) any { return d.Source }},
	{Name: "destination", Get: func(d model.Dataflow) any { return d.Destination }},
	{Name: "bidirectional", Get: func(d model.Dataflow) any { return d.Bidirectional }},
	{Name: "tags", Get: func(d model.Dataflow) any { return d.Tags }},
}

var trustZoneFields = []Field[model.TrustZone]{
	{Name: "name", Get: func(z model.TrustZone) any { return z.Name }},
	{Name: "trustRating", Get: func(z model.TrustZone) any { return z.TrustRating }},
}

// CompareArchitecture reconciles components, dataflows and trust zones
// between the two snapshots. Diffing is flat and per-entity-type; the
// component/trust-zone nesting is attribute data (the parent field), never
// walked recursively.
func CompareArchitecture(baseline, target *model.Snapshot) ArchitectureDiff {
	return ArchitectureDiff{
		Components: Reconcile(baseline.Components, target.Components, componentFields),
		Dataflows:  Reconcile(baseline.Dataflows, target.Dataflows, dataflowFields),
		TrustZones: Reconcile(baseline.TrustZones, target.TrustZones, trustZoneFields),
	}
}

// AddedComponentIDs returns the ids of components present only in the
// target. The security engine consumes this to tell scope expansions onto
// brand-new components apart from expansions onto existing ones.
func (a ArchitectureDiff) AddedComponentIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(a.Components.Added))
	for _, c := range a.Components.Added {
		ids[c.ID] = struct{}{}
	}
	return ids
}
