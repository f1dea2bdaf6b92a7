// Package validator checks built documents before they reach the index
// writer and reports per-field problems.
package validator

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/document"
)

const (
	maxIdentityLength = 4096
	// DefaultMaxFieldBytes bounds any single field value.
	DefaultMaxFieldBytes = 64 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, field := range names {
		parts[i] = fmt.Sprintf("%s: %s", field, e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

type Validator struct {
	identityField string
	maxFieldBytes int
}

// New validates documents whose identity lives in identityField. An empty
// identityField skips the identity checks. maxFieldBytes <= 0 means
// DefaultMaxFieldBytes.
func New(identityField string, maxFieldBytes int) *Validator {
	if maxFieldBytes <= 0 {
		maxFieldBytes = DefaultMaxFieldBytes
	}
	return &Validator{identityField: identityField, maxFieldBytes: maxFieldBytes}
}

// Validate returns a *ValidationError describing every problem with doc.
func (v *Validator) Validate(doc document.Document) error {
	errs := make(map[string]string)

	if v.identityField != "" {
		identity, _ := doc.Get(v.identityField)
		switch {
		case strings.TrimSpace(identity) == "":
			errs[v.identityField] = "identity is required"
		case len(identity) > maxIdentityLength:
			errs[v.identityField] = fmt.Sprintf("identity must be at most %d bytes", maxIdentityLength)
		case strings.ContainsRune(identity, 0):
			errs[v.identityField] = "identity must not contain NUL"
		}
	}
	for field, value := range doc {
		if _, bad := errs[field]; bad {
			continue
		}
		if len(value) > v.maxFieldBytes {
			errs[field] = fmt.Sprintf("value must be at most %d bytes", v.maxFieldBytes)
		} else if !utf8.ValidString(value) {
			errs[field] = "value must be valid UTF-8"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
