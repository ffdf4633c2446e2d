package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `{
	"version": "1",
	"types": [
		{"name": "Root", "kind": "class"},
		{"name": "A", "kind": "class", "superclass": "Root", "immediate_members": 3},
		{"name": "B", "kind": "class", "superclass": "A", "resilient_superclass": true,
		 "immediate_members": 1, "members_negative": true},
		{"name": "Box", "kind": "struct", "generic_params": 1, "arg_offset_words": 2},
		{"name": "Direction", "kind": "enum", "extra_data_words": 1}
	]
}`

func TestManifestRoundTrip(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	require.NoError(t, err)
	assert.Equal(t, "1", m.Version)
	require.Len(t, m.Types, 5)

	descs, err := m.BuildDescriptors()
	require.NoError(t, err)
	require.Len(t, descs, 5)

	b := descs["B"]
	require.NotNil(t, b)
	require.NotNil(t, b.Class)
	assert.True(t, b.Class.HasSuperclass)
	assert.Same(t, descs["A"], b.Class.Superclass)
	assert.True(t, b.Class.ResilientSuperclass)

	box := descs["Box"]
	assert.Equal(t, KindStruct, box.Kind)
	assert.Equal(t, 1, box.GenericParams)
	// Understated extra data grows to fit the argument slots.
	assert.Equal(t, 3, box.Pattern.ExtraDataWords)
}

func TestManifestTypesInstantiate(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	require.NoError(t, err)
	descs, err := m.BuildDescriptors()
	require.NoError(t, err)

	r := newTestRuntime(t)

	resp := r.RequestMetadata(StateComplete, descs["B"], nil)
	require.Equal(t, StateComplete, resp.State)
	assert.Equal(t, 3, resp.Metadata.NegativeSizeWords())
	assert.Equal(t, 3, resp.Metadata.PositiveSizeWords())

	super := resp.Metadata.Superclass()
	require.NotNil(t, super)
	assert.Same(t, descs["A"], super.Descriptor())

	box := r.RequestMetadata(StateComplete, descs["Box"], []GenericArg{"Int"})
	require.Equal(t, StateComplete, box.State)
	assert.Equal(t, []GenericArg{"Int"}, box.Metadata.GenericArgs(r))
}

func TestManifestErrors(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name:     "invalid json",
			manifest: `{"types": [}`,
			wantErr:  "unmarshal",
		},
		{
			name:     "unknown kind",
			manifest: `{"types": [{"name": "X", "kind": "actor"}]}`,
			wantErr:  "unknown metadata kind",
		},
		{
			name:     "duplicate type",
			manifest: `{"types": [{"name": "X", "kind": "struct"}, {"name": "X", "kind": "enum"}]}`,
			wantErr:  "duplicate",
		},
		{
			name:     "unknown superclass",
			manifest: `{"types": [{"name": "X", "kind": "class", "superclass": "Ghost"}]}`,
			wantErr:  "unknown superclass",
		},
		{
			name:     "superclass on struct",
			manifest: `{"types": [{"name": "S", "kind": "struct", "superclass": "S"}]}`,
			wantErr:  "declares a superclass",
		},
		{
			name: "generic superclass",
			manifest: `{"types": [
				{"name": "G", "kind": "class", "generic_params": 1},
				{"name": "X", "kind": "class", "superclass": "G"}]}`,
			wantErr: "generic superclass",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tc.manifest))
			if err == nil {
				_, err = m.BuildDescriptors()
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
