package policy

import "github.com/arbos-dev/arbos-api/internal/models"

// Action is a capability a role may exercise.
type Action string

const (
	ActionViewAllRequests Action = "VIEW_ALL_REQUESTS"
	ActionViewOwnRequests Action = "VIEW_OWN_REQUESTS"
	ActionCreateRequest   Action = "CREATE_REQUEST"
	ActionDecide          Action = "DECIDE"
	ActionDraftOrder      Action = "DRAFT_ORDER"
	ActionImportTimeline  Action = "IMPORT_TIMELINE"
)

// ActionSet is the set of actions permitted to a role.
type ActionSet map[Action]struct{}

// Has reports whether the set contains the action.
func (s ActionSet) Has(action Action) bool {
	_, ok := s[action]
	return ok
}

// PermittedActions maps a role to its allowed actions. Unknown or empty roles
// get no actions; the caller must reject access. Stateless and recomputed on
// every check.
func PermittedActions(role models.UserRole) ActionSet {
	switch role {
	case models.RoleArbitrator:
		return ActionSet{
			ActionViewAllRequests: {},
			ActionDecide:          {},
			ActionDraftOrder:      {},
			ActionImportTimeline:  {},
		}
	case models.RoleClaimant, models.RoleRespondent:
		return ActionSet{
			ActionViewOwnRequests: {},
			ActionCreateRequest:   {},
		}
	default:
		return ActionSet{}
	}
}

// Allowed is a convenience wrapper combining lookup and membership.
func Allowed(role models.UserRole, action Action) bool {
	return PermittedActions(role).Has(action)
}
