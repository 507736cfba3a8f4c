package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
)

func snapshotWith(label string, mutate func(*model.Snapshot)) *model.Snapshot {
	s := model.NewSnapshot(label)
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestCompareArchitecture_AllThreeEntityTypes(t *testing.T) {
	baseline := snapshotWith("v1", func(s *model.Snapshot) {
		s.Components["web"] = model.Component{ID: "web", Name: "Web"}
		s.Dataflows["f1"] = model.Dataflow{ID: "f1", Name: "login", Source: "web", Destination: "db"}
		s.TrustZones["tz1"] = model.TrustZone{ID: "tz1", Name: "DMZ", TrustRating: 20}
	})
	target := snapshotWith("v2", func(s *model.Snapshot) {
		s.Components["web"] = model.Component{ID: "web", Name: "Web"}
		s.Components["db"] = model.Component{ID: "db", Name: "Database"}
		s.Dataflows["f1"] = model.Dataflow{ID: "f1", Name: "login", Source: "web", Destination: "db", Bidirectional: true}
		s.TrustZones["tz1"] = model.TrustZone{ID: "tz1", Name: "DMZ", TrustRating: 40}
	})

	arch := CompareArchitecture(baseline, target)

	require.Len(t, arch.Components.Added, 1)
	assert.Equal(t, "db", arch.Components.Added[0].ID)

	require.Len(t, arch.Dataflows.Modified, 1)
	assert.Contains(t, arch.Dataflows.Modified[0].ChangedFields, "bidirectional")

	require.Len(t, arch.TrustZones.Modified, 1)
	assert.Equal(t, FieldChange{Old: 20, New: 40}, arch.TrustZones.Modified[0].ChangedFields["trustRating"])
}

func TestCompareArchitecture_ParentChangeIsAttributeData(t *testing.T) {
	baseline := snapshotWith("v1", func(s *model.Snapshot) {
		s.Components["web"] = model.Component{ID: "web", Name: "Web", Parent: "tz1"}
	})
	target := snapshotWith("v2", func(s *model.Snapshot) {
		s.Components["web"] = model.Component{ID: "web", Name: "Web", Parent: "tz2"}
	})

	arch := CompareArchitecture(baseline, target)

	require.Len(t, arch.Components.Modified, 1)
	assert.Equal(t, FieldChange{Old: "tz1", New: "tz2"}, arch.Components.Modified[0].ChangedFields["parent"])
}

func TestAddedComponentIDs(t *testing.T) {
	baseline := snapshotWith("v1", nil)
	target := snapshotWith("v2", func(s *model.Snapshot) {
		s.Components["a"] = model.Component{ID: "a"}
		s.Components["b"] = model.Component{ID: "b"}
	})

	arch := CompareArchitecture(baseline, target)
	ids := arch.AddedComponentIDs()

	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "b")
}
