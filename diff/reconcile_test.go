package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
)

func componentMap(components ...model.Component) map[string]model.Component {
	m := make(map[string]model.Component, len(components))
	for _, c := range components {
		m[c.ID] = c
	}
	return m
}

func TestReconcile_AddedAndRemoved(t *testing.T) {
	baseline := componentMap(
		model.Component{ID: "a", Name: "A"},
		model.Component{ID: "b", Name: "B"},
	)
	target := componentMap(
		model.Component{ID: "b", Name: "B"},
		model.Component{ID: "c", Name: "C"},
	)

	d := Reconcile(baseline, target, componentFields)

	require.Len(t, d.Added, 1)
	assert.Equal(t, "c", d.Added[0].ID)
	require.Len(t, d.Removed, 1)
	assert.Equal(t, "a", d.Removed[0].ID)
	assert.Empty(t, d.Modified)
}

func TestReconcile_ModifiedReportsOnlyChangedFields(t *testing.T) {
	baseline := componentMap(model.Component{ID: "a", Name: "A", Style: "server", Parent: "tz1"})
	target := componentMap(model.Component{ID: "a", Name: "A renamed", Style: "server", Parent: "tz2"})

	d := Reconcile(baseline, target, componentFields)

	require.Len(t, d.Modified, 1)
	mod := d.Modified[0]
	assert.Equal(t, "a", mod.ID)
	require.Len(t, mod.ChangedFields, 2)
	assert.Equal(t, FieldChange{Old: "A", New: "A renamed"}, mod.ChangedFields["name"])
	assert.Equal(t, FieldChange{Old: "tz1", New: "tz2"}, mod.ChangedFields["parent"])
	assert.NotContains(t, mod.ChangedFields, "style")
	assert.Equal(t, "A", mod.Before.Name)
	assert.Equal(t, "A renamed", mod.After.Name)
}

func TestReconcile_UnchangedEntityIsSilent(t *testing.T) {
	same := componentMap(model.Component{ID: "a", Name: "A", Tags: []string{"pci"}})

	d := Reconcile(same, componentMap(model.Component{ID: "a", Name: "A", Tags: []string{"pci"}}), componentFields)

	assert.True(t, d.Empty())
}

func TestReconcile_NilAndEmptyTagsAreEqual(t *testing.T) {
	baseline := componentMap(model.Component{ID: "a", Name: "A", Tags: nil})
	target := componentMap(model.Component{ID: "a", Name: "A", Tags: []string{}})

	d := Reconcile(baseline, target, componentFields)

	assert.True(t, d.Empty())
}

func TestReconcile_TagSetChangeDetected(t *testing.T) {
	baseline := componentMap(model.Component{ID: "a", Name: "A", Tags: []string{"internal"}})
	target := componentMap(model.Component{ID: "a", Name: "A", Tags: []string{"internal", "pci"}})

	d := Reconcile(baseline, target, componentFields)

	require.Len(t, d.Modified, 1)
	assert.Contains(t, d.Modified[0].ChangedFields, "tags")
}

func TestReconcile_OutputSortedByID(t *testing.T) {
	baseline := componentMap()
	target := componentMap(
		model.Component{ID: "z"},
		model.Component{ID: "a"},
		model.Component{ID: "m"},
	)

	d := Reconcile(baseline, target, componentFields)

	require.Len(t, d.Added, 3)
	assert.Equal(t, "a", d.Added[0].ID)
	assert.Equal(t, "m", d.Added[1].ID)
	assert.Equal(t, "z", d.Added[2].ID)
}

func TestReconcile_SetSymmetry(t *testing.T) {
	a := componentMap(
		model.Component{ID: "a", Name: "A"},
		model.Component{ID: "b", Name: "B"},
	)
	b := componentMap(
		model.Component{ID: "b", Name: "B"},
		model.Component{ID: "c", Name: "C"},
	)

	forward := Reconcile(a, b, componentFields)
	backward := Reconcile(b, a, componentFields)

	assert.Equal(t, forward.Added, backward.Removed)
	assert.Equal(t, forward.Removed, backward.Added)
}

func TestReconcile_EmptyInputs(t *testing.T) {
	d := Reconcile(componentMap(), componentMap(), componentFields)

	assert.True(t, d.Empty())
	assert.NotNil(t, d.Added)
	assert.NotNil(t, d.Removed)
	assert.NotNil(t, d.Modified)
	assert.Equal(t, Counts{}, d.Counts())
}
