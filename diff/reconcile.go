// Package diff implements the threat-model version comparator: a pure,
// in-memory structured-diff engine over two materialized snapshots.
package diff

import (
	"reflect"
	"sort"
)

// Entity is anything with a stable identifier within one snapshot.
type Entity interface {
	EntityID() string
}

// Field names one comparable attribute of an entity and how to read it.
type Field[T Entity] struct {
	Name string
	Get  func(T) any
}

// FieldChange captures one attribute's before/after values.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Modification is a common entity whose configured fields differ between
// the two snapshots. ChangedFields holds only the fields that differ;
// Before/After carry the full records for callers that need context.
type Modification[T Entity] struct {
	ID            string                 `json:"id"`
	Before        T                      `json:"before"`
	After         T                      `json:"after"`
	ChangedFields map[string]FieldChange `json:"changedFields"`
}

// Diff is the result of reconciling two id-keyed collections. All three
// lists are sorted by id ascending so output is reproducible.
type Diff[T Entity] struct {
	Added    []T               `json:"added"`
	Removed  []T               `json:"removed"`
	Modified []Modification[T] `json:"modified"`
}

// Empty reports whether the diff records no change at all.
func (d Diff[T]) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Counts is the per-entity-type change tally used in result summaries.
type Counts struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// Counts returns the change tally for the diff.
func (d Diff[T]) Counts() Counts {
	return Counts{Added: len(d.Added), Removed: len(d.Removed), Modified: len(d.Modified)}
}

// Reconcile performs identity-keyed set reconciliation between a baseline
// and a target collection. Keys only in target are added, keys only in
// baseline are removed, and common keys are compared field by field: an
// entity with zero field differences is reported nowhere. Input maps are
// assumed valid and de-duplicated; validation happens at snapshot assembly.
func Reconcile[T Entity](baseline, target map[string]T, fields []Field[T]) Diff[T] {
	d := Diff[T]{
		Added:    make([]T, 0),
		Removed:  make([]T, 0),
		Modified: make([]Modification[T], 0),
	}

	for id, after := range target {
		before, ok := baseline[id]
		if !ok {
			d.Added = append(d.Added, after)
			continue
		}
		changed := compareFields(before, after, fields)
		if len(changed) > 0 {
			d.Modified = append(d.Modified, Modification[T]{
				ID:            id,
				Before:        before,
				After:         after,
				ChangedFields: changed,
			})
		}
	}

	for id, before := range baseline {
		if _, ok := target[id]; !ok {
			d.Removed = append(d.Removed, before)
		}
	}

	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i].EntityID() < d.Added[j].EntityID() })
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i].EntityID() < d.Removed[j].EntityID() })
	sort.Slice(d.Modified, func(i, j int) bool { return d.Modified[i].ID < d.Modified[j].ID })

	return d
}

func compareFields[T Entity](before, after T, fields []Field[T]) map[string]FieldChange {
	var changed map[string]FieldChange
	for _, f := range fields {
		oldVal, newVal := f.Get(before), f.Get(after)
		if equalValues(oldVal, newVal) {
			continue
		}
		if changed == nil {
			changed = make(map[string]FieldChange, 1)
		}
		changed[f.Name] = FieldChange{Old: oldVal, New: newVal}
	}
	return changed
}

// equalValues is deep equality with one normalization: a nil collection and
// an empty collection are the same thing as far as the model is concerned.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return emptyCollection(a) && emptyCollection(b)
}

func emptyCollection(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return false
	}
}
