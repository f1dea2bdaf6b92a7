// Package schema declares the fields an index is built against. A schema is
// fixed at index creation and persisted with the index; reopening with a
// structurally different schema is a configuration error.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

const (
	TitleField = "title"
	BodyField  = "body"
)

// Kind is the data kind of a field. Only text exists today.
type Kind string

const KindText Kind = "text"

// Options is the capability set of a field.
type Options uint8

const (
	// Indexed fields are searchable.
	Indexed Options = 1 << iota
	// Stored fields are returned verbatim with search results.
	Stored
)

func (o Options) Has(flag Options) bool {
	return o&flag == flag
}

func (o Options) String() string {
	var parts []string
	if o.Has(Indexed) {
		parts = append(parts, "INDEXED")
	}
	if o.Has(Stored) {
		parts = append(parts, "STORED")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Field is one named field declaration. An empty Analyzer means
// analysis.Default.
type Field struct {
	Name     string  `json:"name" yaml:"name"`
	Kind     Kind    `json:"kind" yaml:"kind"`
	Options  Options `json:"options" yaml:"options"`
	Analyzer string  `json:"analyzer,omitempty" yaml:"analyzer,omitempty"`
}

// Schema is an ordered, immutable set of fields.
type Schema struct {
	fields []Field
	byName map[string]int
}

// Default returns the two-field schema: title (indexed, stored) and body
// (indexed).
func Default() *Schema {
	s, _ := Build(nil)
	return s
}

// Build returns a schema holding exactly the given fields. No fields means
// the default schema.
func Build(overrides []Field) (*Schema, error) {
	if len(overrides) == 0 {
		overrides = []Field{
			{Name: TitleField, Kind: KindText, Options: Indexed | Stored, Analyzer: analysis.Default},
			{Name: BodyField, Kind: KindText, Options: Indexed, Analyzer: analysis.Default},
		}
	}
	s := &Schema{
		fields: make([]Field, 0, len(overrides)),
		byName: make(map[string]int, len(overrides)),
	}
	for _, f := range overrides {
		if err := validateField(f); err != nil {
			return nil, err
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, apperrors.New(apperrors.ErrSchema, "build schema", "", fmt.Sprintf("duplicate field %q", f.Name))
		}
		if f.Kind == "" {
			f.Kind = KindText
		}
		if f.Analyzer == "" {
			f.Analyzer = analysis.Default
		}
		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func validateField(f Field) error {
	if strings.TrimSpace(f.Name) == "" {
		return apperrors.New(apperrors.ErrSchema, "build schema", "", "field name must not be empty")
	}
	if strings.ContainsAny(f.Name, ": \t\r\n\"()") {
		return apperrors.New(apperrors.ErrSchema, "build schema", "", fmt.Sprintf("field name %q contains reserved characters", f.Name))
	}
	if f.Kind != "" && f.Kind != KindText {
		return apperrors.New(apperrors.ErrSchema, "build schema", "", fmt.Sprintf("field %q has unsupported kind %q", f.Name, f.Kind))
	}
	if f.Options&^(Indexed|Stored) != 0 {
		return apperrors.New(apperrors.ErrSchema, "build schema", "", fmt.Sprintf("field %q has unknown options %d", f.Name, f.Options))
	}
	if f.Analyzer != "" && !analysis.Known(f.Analyzer) {
		return apperrors.New(apperrors.ErrSchema, "build schema", "", fmt.Sprintf("field %q uses unknown analyzer %q", f.Name, f.Analyzer))
	}
	return nil
}

// Fields returns a copy of the declared fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s *Schema) Len() int {
	return len(s.fields)
}

// IndexedFields returns the names of searchable fields in schema order.
// These are the default fields for unqualified query terms.
func (s *Schema) IndexedFields() []string {
	return s.namesWith(Indexed)
}

// StoredFields returns the names of fields returned with search results.
func (s *Schema) StoredFields() []string {
	return s.namesWith(Stored)
}

// IdentityField is the first stored field. Documents sharing its value
// supersede each other. ok is false when nothing is stored.
func (s *Schema) IdentityField() (name string, ok bool) {
	stored := s.StoredFields()
	if len(stored) == 0 {
		return "", false
	}
	return stored[0], true
}

// Analyzer resolves the analyzer of an indexed field.
func (s *Schema) Analyzer(field string) (*analysis.Analyzer, error) {
	f, ok := s.Field(field)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	return analysis.Get(f.Analyzer)
}

func (s *Schema) namesWith(flag Options) []string {
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		if f.Options.Has(flag) {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks that other is structurally identical to s and returns an
// ErrSchemaMismatch naming the first difference otherwise.
func (s *Schema) Validate(other *Schema) error {
	if diff := s.diff(other); diff != "" {
		return apperrors.New(apperrors.ErrSchemaMismatch, "", "", diff)
	}
	return nil
}

// Equal reports structural equality.
func (s *Schema) Equal(other *Schema) bool {
	return s.diff(other) == ""
}

func (s *Schema) diff(other *Schema) string {
	if other == nil {
		return "no schema to compare"
	}
	if len(s.fields) != len(other.fields) {
		return fmt.Sprintf("index has %d fields, requested %d", len(s.fields), len(other.fields))
	}
	for i, f := range s.fields {
		o := other.fields[i]
		switch {
		case f.Name != o.Name:
			return fmt.Sprintf("field %d is %q in index, %q requested", i, f.Name, o.Name)
		case f.Kind != o.Kind:
			return fmt.Sprintf("field %q kind %s in index, %s requested", f.Name, f.Kind, o.Kind)
		case f.Options != o.Options:
			return fmt.Sprintf("field %q options %s in index, %s requested", f.Name, f.Options, o.Options)
		case f.Analyzer != o.Analyzer:
			return fmt.Sprintf("field %q analyzer %q in index, %q requested", f.Name, f.Analyzer, o.Analyzer)
		}
	}
	return ""
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.fields)
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return apperrors.New(apperrors.ErrSchema, "decode schema", "", "persisted schema has no fields")
	}
	built, err := Build(fields)
	if err != nil {
		return err
	}
	*s = *built
	return nil
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = fmt.Sprintf("%s(%s,%s)", f.Name, f.Options, f.Analyzer)
	}
	return strings.Join(parts, " ")
}
