package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClonedErrorsMatchSentinel(t *testing.T) {
	err := Clone(ErrNodeAlreadyExists, "node a.txt already exists")
	wrapped := fmt.Errorf("add file: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNodeAlreadyExists))
	assert.False(t, errors.Is(wrapped, ErrNodeNotFound))
	assert.Equal(t, "a node with this name already exists", ErrNodeAlreadyExists.Message)
}

func TestForbiddenCarriesMode(t *testing.T) {
	err := Forbidden("w")
	require.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "w", err.Mode)
	assert.Equal(t, http.StatusForbidden, err.Status)
	assert.Empty(t, ErrForbidden.Mode)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	assert.Nil(t, FromError(nil))

	appErr := FromError(errors.New("disk on fire"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: disk on fire", appErr.Error())

	typed := FromError(fmt.Errorf("ctx: %w", ErrVersionNotFound))
	assert.Same(t, ErrVersionNotFound, typed)
}
