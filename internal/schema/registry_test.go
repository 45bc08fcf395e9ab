package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ColumnOrder(t *testing.T) {
	reg := Default()

	tests := []struct {
		table string
		want  []string
	}{
		{TableArtist, []string{"id", "name", "realname", "profile", "data_quality"}},
		{TableLabel, []string{"id", "name", "contact_info", "profile", "parent_id", "parent_name", "data_quality"}},
		{TableMaster, []string{"id", "title", "year", "main_release", "data_quality"}},
		{TableRelease, []string{"id", "title", "released", "country", "notes", "data_quality", "master_id", "is_main_release", "status"}},
		{TableReleaseTrack, []string{"release_id", "sequence", "position", "parent", "title", "duration"}},
		{TableReleaseArtist, []string{"release_id", "artist_id", "artist_name", "extra", "anv", "position", "join_string", "role", "tracks"}},
		{TableReleaseTrackArtist, []string{"release_id", "track_sequence", "artist_id", "artist_name", "extra", "anv", "position", "join_string", "role"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			cols, ok := reg.Columns(tt.table)
			require.True(t, ok)
			assert.Equal(t, tt.want, cols)
			assert.Equal(t, len(tt.want), reg.Width(tt.table))
		})
	}
}

func TestColumns_ReturnsCopy(t *testing.T) {
	reg := Default()
	cols, _ := reg.Columns(TableArtist)
	cols[0] = "mutated"

	again, _ := reg.Columns(TableArtist)
	assert.Equal(t, "id", again[0])
}

func TestTablesFor_PrimaryFirst(t *testing.T) {
	reg := Default()
	for _, group := range []string{"artist", "label", "master", "release"} {
		defs := reg.TablesFor(group)
		require.NotEmpty(t, defs, group)
		assert.True(t, defs[0].Primary, group)
		assert.Equal(t, group, defs[0].Name)
		for _, d := range defs[1:] {
			assert.False(t, d.Primary)
			assert.NotEmpty(t, d.ForeignKey, d.Name)
			assert.Equal(t, d.ForeignKey, d.Fields[0].Name, d.Name)
		}
	}
}

func TestCheck(t *testing.T) {
	reg := Default()

	require.NoError(t, reg.Check(TableArtistURL, []string{"1", "http://x"}))

	err := reg.Check(TableArtistURL, []string{"1"})
	var mm *MismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, 2, mm.Want)
	assert.Equal(t, 1, mm.Got)

	err = reg.Check("nope", []string{"1"})
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, -1, mm.Want)
	assert.Contains(t, err.Error(), "not registered")
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name string
		defs []TableDef
	}{
		{"duplicate table", []TableDef{
			{Name: "a", Fields: []FieldSpec{{Name: "id"}}},
			{Name: "a", Fields: []FieldSpec{{Name: "id"}}},
		}},
		{"no columns", []TableDef{{Name: "a"}}},
		{"duplicate column", []TableDef{{Name: "a", Fields: []FieldSpec{{Name: "id"}, {Name: "id"}}}}},
		{"unknown foreign key", []TableDef{{Name: "a", ForeignKey: "x", Fields: []FieldSpec{{Name: "id"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs...)
			assert.Error(t, err)
		})
	}
}
