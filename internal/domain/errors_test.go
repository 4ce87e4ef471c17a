package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"domain error", Errorf(ENOTFOUND, "op", "missing"), ENOTFOUND},
		{"wrapped domain error", fmt.Errorf("outer: %w", Errorf(ETIMEOUT, "op", "slow")), ETIMEOUT},
		{"validation error", NewValidationError("op", "field", "bad"), EINVALID},
		{"plain error", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage_HidesInternalDetails(t *testing.T) {
	assert.Equal(t, "tool \"x\" not found", ErrorMessage(NotFound("op", "tool", "x")))
	assert.NotContains(t, ErrorMessage(Internal(errors.New("pq: broken"), "op", "db failed")), "db failed")
	assert.NotContains(t, ErrorMessage(errors.New("pq: broken")), "pq")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(cause, EUPSTREAM, "tools.get_product", "backend failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "tools.get_product: backend failed", err.Error())
	assert.Equal(t, "tools.get_product", ErrorOp(err))
}

func TestValidationBuilders(t *testing.T) {
	assert.NoError(t, Validation("op", Require(nil, "code", "300938")))

	ve := Require(nil, "code", "")
	ve = AddField(ve, "page", "must not be negative")
	ve = Require(ve, "query", "shoes")

	err := Validation("tools.search_products", ve)

	var got *ValidationError
	assert.ErrorAs(t, err, &got)
	assert.Equal(t, "tools.search_products", got.Op)
	assert.Equal(t, map[string]string{"code": "is required", "page": "must not be negative"}, got.Fields)
	assert.Equal(t, EINVALID, ErrorCode(err))
}
