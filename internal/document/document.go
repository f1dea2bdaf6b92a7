// Package document turns candidate files into index documents.
package document

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

// Document maps field names to values for one indexed unit. It is not
// mutated once built.
type Document map[string]string

// New copies fields into a fresh Document.
func New(fields map[string]string) Document {
	return Document(maps.Clone(fields))
}

func (d Document) Get(field string) (string, bool) {
	v, ok := d[field]
	return v, ok
}

// Conform checks that d supplies every indexed field of s and nothing s
// does not declare. Empty values are valid.
func (d Document) Conform(s *schema.Schema) error {
	var missing []string
	for _, name := range s.IndexedFields() {
		if _, ok := d[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperrors.New(apperrors.ErrIngest, "add", d.describe(s),
			fmt.Sprintf("missing indexed field(s) %s", strings.Join(missing, ", ")))
	}
	for _, name := range slices.Sorted(maps.Keys(d)) {
		if _, ok := s.Field(name); !ok {
			return apperrors.New(apperrors.ErrIngest, "add", d.describe(s),
				fmt.Sprintf("unknown field %q", name))
		}
	}
	return nil
}

// describe names the document in error messages by its identity value.
func (d Document) describe(s *schema.Schema) string {
	if id, ok := s.IdentityField(); ok {
		return d[id]
	}
	return ""
}
