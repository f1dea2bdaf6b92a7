package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_MatchesCategoryAndCause(t *testing.T) {
	err := Wrap(ErrIndexOpen, "open", "/tmp/idx", fs.ErrPermission)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexOpen)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrCommit)
	assert.Equal(t, "open /tmp/idx: cannot open index: permission denied", err.Error())
}

func TestAppError_NestedSentinelCause(t *testing.T) {
	mismatch := New(ErrSchemaMismatch, "", "", `field "body" analyzer differs`)
	err := Wrap(ErrIndexOpen, "open", "/idx", mismatch)

	assert.ErrorIs(t, err, ErrIndexOpen)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Equal(t, ErrIndexOpen, Category(err))
}

func TestWrap_NilCause(t *testing.T) {
	assert.NoError(t, Wrap(ErrCommit, "commit", "/idx", nil))
}

func TestCategory_PlainWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrLockContention)
	assert.Equal(t, ErrLockContention, Category(err))
	assert.Nil(t, Category(errors.New("unrelated")))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(ErrQueryParse, "parse", "", "unbalanced quote"), http.StatusBadRequest},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrLockContention, http.StatusConflict},
		{Wrap(ErrSearchExecution, "reload", "/idx", fs.ErrNotExist), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(ErrQueryParse))
	assert.Equal(t, 3, ExitCode(Wrap(ErrIndexOpen, "open", "/idx", ErrLockContention)))
	assert.Equal(t, 4, ExitCode(ErrSchemaMismatch))
	assert.Equal(t, 1, ExitCode(ErrCommit))
}
