package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	authErr := &pq.Error{Code: "28P01", Message: `password authentication failed for user "vecta"`}
	assert.Equal(t,
		`28P01 invalid_password: password authentication failed for user "vecta"`,
		Describe(fmt.Errorf("connect: %w", authErr)))

	assert.Equal(t, "dial tcp: connection refused", Describe(errors.New("dial tcp: connection refused")))
}
