package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain timeout", ErrTimeout, Timeout},
		{"wrapped not found", fmt.Errorf("profile u1: %w", ErrNotFound), NotFound},
		{"double wrapped forbidden", fmt.Errorf("login: %w", fmt.Errorf("status pending: %w", ErrForbidden)), Forbidden},
		{"validation", fmt.Errorf("%w: email taken", ErrValidation), Validation},
		{"upstream", fmt.Errorf("%w: connection refused", ErrUpstream), Upstream},
		{"recovered panic", fmt.Errorf("%w: fetch panicked", ErrUnexpected), Unexpected},
		{"foreign error", errors.New("boom"), Unexpected}, //nolint:goerr113
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "not-found", NotFound.String())
	assert.Equal(t, "unexpected", Kind(99).String())
}
