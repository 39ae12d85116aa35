package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", NotFound("card", "abc123"), ErrNotFound},
		{"validation", ValidationFailed("name", "name is required"), ErrValidation},
		{"validation details", ValidationDetails("validation failed", map[string]string{"email": "is required"}), ErrValidation},
		{"conflict", Conflict("bookmark", "abc123"), ErrConflict},
		{"forbidden", Forbidden("the default group cannot be deleted"), ErrForbidden},
		{"unauthorized", Unauthorized("token expired"), ErrUnauthorized},
		{"operation failed", OperationFailed("bookmark was not removed"), ErrOperationFailed},
	}

	all := []error{ErrNotFound, ErrValidation, ErrConflict, ErrForbidden, ErrUnauthorized, ErrOperationFailed}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, kind := range all {
				assert.Equal(t, kind == tt.kind, errors.Is(tt.err, kind), "errors.Is(%v)", kind)
			}
		})
	}
}

func TestWrappedErrorsKeepTheirKind(t *testing.T) {
	base := NotFound("group", "g1")
	wrapped := fmt.Errorf("deleting group: %w", fmt.Errorf("loading list: %w", base))

	assert.ErrorIs(t, wrapped, ErrNotFound)

	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, "group not found with id g1", appErr.Message)
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "card not found with id c1", NotFound("card", "c1").Error())
	assert.Equal(t, "bookmark conflict with id u1:c1", Conflict("bookmark", "u1:c1").Error())

	v := ValidationFailed("email", "email is required")
	assert.Equal(t, "email is required", v.Error())
	assert.Equal(t, "email", v.Field)

	d := ValidationDetails("validation failed", map[string]string{"tags": "must not exceed 20 characters"})
	assert.Equal(t, "must not exceed 20 characters", d.Details["tags"])
}

func TestIsExpected(t *testing.T) {
	assert.True(t, IsExpected(NotFound("card", "c1")))
	assert.True(t, IsExpected(fmt.Errorf("wrapped: %w", Forbidden("no"))))
	assert.True(t, IsExpected(Unauthorized("no token")))
	assert.False(t, IsExpected(OperationFailed("nothing matched")))
	assert.False(t, IsExpected(errors.New("disk full")))
	assert.False(t, IsExpected(nil))
}
