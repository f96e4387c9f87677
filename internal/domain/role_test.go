package domain_test

import (
	"testing"

	"github.com/dkeye/Prompter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := domain.ParseRole(" Controller ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleController, r)

	r, err = domain.ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleNone, r)

	_, err = domain.ParseRole("director")
	require.ErrorIs(t, err, domain.ErrUnknownRole)
}

func TestRole_CanMutate(t *testing.T) {
	assert.True(t, domain.RoleController.CanMutate())
	assert.True(t, domain.RoleAdmin.CanMutate())
	assert.True(t, domain.RoleNone.CanMutate())
	assert.False(t, domain.RoleViewer.CanMutate())
	assert.False(t, domain.RoleDisplay.CanMutate())
	assert.Equal(t, "none", domain.RoleNone.String())
}
