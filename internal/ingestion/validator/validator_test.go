package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/document"
)

func TestValidate(t *testing.T) {
	v := New("title", 16)

	tests := []struct {
		name   string
		doc    map[string]string
		fields []string
	}{
		{"valid", map[string]string{"title": "/a.txt", "body": "hello"}, nil},
		{"missing identity", map[string]string{"title": "  ", "body": "x"}, []string{"title"}},
		{"nul in identity", map[string]string{"title": "/a\x00b", "body": "x"}, []string{"title"}},
		{"oversized body", map[string]string{"title": "/a.txt", "body": strings.Repeat("x", 17)}, []string{"body"}},
		{"invalid utf8", map[string]string{"title": "/a.txt", "body": "\xff\xfe"}, []string{"body"}},
		{"two problems", map[string]string{"title": "", "body": strings.Repeat("x", 17)}, []string{"title", "body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(document.New(tt.doc))
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.fields))
		})
	}
}

func TestValidate_NoIdentityField(t *testing.T) {
	v := New("", 0)
	assert.NoError(t, v.Validate(document.New(map[string]string{"body": ""})))
}

func TestValidationError_Stable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"z": "late", "a": "early"}}
	assert.Equal(t, "a: early; z: late", err.Error())
}
