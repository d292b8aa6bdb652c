package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbos-dev/arbos-api/internal/models"
)

func TestPermittedActionsArbitrator(t *testing.T) {
	actions := PermittedActions(models.RoleArbitrator)
	require.True(t, actions.Has(ActionViewAllRequests))
	require.True(t, actions.Has(ActionDecide))
	require.True(t, actions.Has(ActionDraftOrder))
	require.False(t, actions.Has(ActionCreateRequest))
	require.False(t, actions.Has(ActionViewOwnRequests))
}

func TestPermittedActionsParties(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleClaimant, models.RoleRespondent} {
		actions := PermittedActions(role)
		require.True(t, actions.Has(ActionCreateRequest), "role %s", role)
		require.True(t, actions.Has(ActionViewOwnRequests), "role %s", role)
		require.False(t, actions.Has(ActionDecide), "role %s", role)
		require.False(t, actions.Has(ActionViewAllRequests), "role %s", role)
	}
}

func TestPermittedActionsUnknownRoleIsEmpty(t *testing.T) {
	require.Empty(t, PermittedActions(models.UserRole("OBSERVER")))
	require.Empty(t, PermittedActions(models.UserRole("")))
	require.False(t, Allowed(models.UserRole("observer"), ActionCreateRequest))
}
