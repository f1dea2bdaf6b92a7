package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

func TestDefault(t *testing.T) {
	s := Default()

	require.Equal(t, 2, s.Len())
	title, ok := s.Field(TitleField)
	require.True(t, ok)
	assert.True(t, title.Options.Has(Indexed))
	assert.True(t, title.Options.Has(Stored))

	body, ok := s.Field(BodyField)
	require.True(t, ok)
	assert.True(t, body.Options.Has(Indexed))
	assert.False(t, body.Options.Has(Stored))

	assert.Equal(t, []string{"title", "body"}, s.IndexedFields())
	assert.Equal(t, []string{"title"}, s.StoredFields())

	id, ok := s.IdentityField()
	assert.True(t, ok)
	assert.Equal(t, TitleField, id)
}

func TestBuild_OverridesReplaceDefault(t *testing.T) {
	s, err := Build([]Field{
		{Name: "path", Options: Stored},
		{Name: "content", Options: Indexed, Analyzer: analysis.Stemmed},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	_, hasTitle := s.Field(TitleField)
	assert.False(t, hasTitle)
	assert.Equal(t, []string{"content"}, s.IndexedFields())

	content, _ := s.Field("content")
	assert.Equal(t, KindText, content.Kind)
	assert.Equal(t, analysis.Stemmed, content.Analyzer)

	path, _ := s.Field("path")
	assert.Equal(t, analysis.Default, path.Analyzer)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
	}{
		{"empty name", []Field{{Name: "", Options: Indexed}}},
		{"blank name", []Field{{Name: "   ", Options: Indexed}}},
		{"duplicate", []Field{{Name: "a", Options: Indexed}, {Name: "a", Options: Stored}}},
		{"reserved char", []Field{{Name: "a:b", Options: Indexed}}},
		{"unknown analyzer", []Field{{Name: "a", Options: Indexed, Analyzer: "nope"}}},
		{"bad kind", []Field{{Name: "a", Kind: "int", Options: Indexed}}},
		{"bad options", []Field{{Name: "a", Options: 8}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.fields)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrSchema)
		})
	}
}

func TestValidate(t *testing.T) {
	base := Default()
	assert.NoError(t, base.Validate(Default()))

	other, err := Build([]Field{
		{Name: TitleField, Options: Indexed | Stored},
		{Name: BodyField, Options: Indexed | Stored},
	})
	require.NoError(t, err)

	err = base.Validate(other)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), `field "body" options`)

	reordered, err := Build([]Field{
		{Name: BodyField, Options: Indexed},
		{Name: TitleField, Options: Indexed | Stored},
	})
	require.NoError(t, err)
	assert.False(t, base.Equal(reordered))
}

func TestIdentityField_NoneStored(t *testing.T) {
	s, err := Build([]Field{{Name: "body", Options: Indexed}})
	require.NoError(t, err)

	_, ok := s.IdentityField()
	assert.False(t, ok)
}

func TestJSONRoundTrip(t *testing.T) {
	s, err := Build([]Field{
		{Name: "title", Options: Indexed | Stored},
		{Name: "body", Options: Indexed, Analyzer: analysis.English},
	})
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Schema
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, s.Equal(&decoded))
}

func TestUnmarshalJSON_RejectsEmpty(t *testing.T) {
	var s Schema
	err := json.Unmarshal([]byte(`[]`), &s)
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestOptionsString(t *testing.T) {
	assert.Equal(t, "INDEXED|STORED", (Indexed | Stored).String())
	assert.Equal(t, "NONE", Options(0).String())
}
