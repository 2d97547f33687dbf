package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "already enabled", StatusAlreadyEnabled.String())
	assert.Equal(t, "unknown error", Status(999).String())
}

func TestStatusOk(t *testing.T) {
	require.True(t, StatusOK.Ok())
	require.False(t, StatusAlreadyCreated.Ok())
}

func TestStatusIsError(t *testing.T) {
	var err error = StatusFunctionNotFound
	require.EqualError(t, err, "function not found")
}
