// Package policy computes whether an actor may perform an operation on a
// usage control or one of its routes.  It is a pure decision table: callers
// load the relevant facts (who owns the control, whether it is open,
// whether the driver already has an open control) and the policy answers
// allow or deny with a human-readable reason.  Every mutation handler in
// the usage-control and route endpoints consults this table instead of
// checking role strings inline, so a missing check cannot hide in one
// endpoint.
package policy

import "github.com/iliyamo/fleet-usage-control/internal/model"

// Actor identifies the authenticated caller.
type Actor struct {
	ID   uint64
	Role string
}

// Action enumerates the operations gated by the policy.
type Action string

const (
	CreateControl   Action = "create_control"
	ViewControl     Action = "view_control"
	FinalizeControl Action = "finalize_control"
	CancelControl   Action = "cancel_control"
	CreateRoute     Action = "create_route"
	EditRoute       Action = "edit_route"
	ViewRoute       Action = "view_route"
	DeleteRoute     Action = "delete_route"
	ManageVehicle   Action = "manage_vehicle"
)

// Resource carries the facts about the record being acted on.  For
// CreateControl only DriverHasOpen matters; for vehicle management none of
// the fields are used.  OwnerID is the driver of the control (or of the
// route's parent control) and Open whether that control is still open.
type Resource struct {
	OwnerID       uint64
	Open          bool
	DriverHasOpen bool
}

// Decision is the outcome of a policy check.  Reason is set on denial and
// is safe to surface to the caller.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// CanPerform evaluates the rule for one action.  Rules are evaluated per
// action with no implicit admin bypass: an admin may cancel a control or
// delete any route, but may not finalize another driver's control or open
// one without the motorista role.
func CanPerform(actor Actor, action Action, res Resource) Decision {
	switch action {
	case CreateControl:
		if actor.Role != model.RoleMotorista {
			return deny("only drivers may open a usage control")
		}
		if res.DriverHasOpen {
			return deny("driver already has an open usage control")
		}
		return allow()

	case ViewControl, ViewRoute:
		if actor.ID == res.OwnerID || model.IsStaff(actor.Role) {
			return allow()
		}
		return deny("access restricted to the owning driver or staff")

	case FinalizeControl:
		if actor.ID != res.OwnerID {
			return deny("only the responsible driver may finalize the control")
		}
		if !res.Open {
			return deny("control is already finalized or cancelled")
		}
		return allow()

	case CancelControl:
		if actor.ID != res.OwnerID && actor.Role != model.RoleAdmin {
			return deny("only the responsible driver or an admin may cancel the control")
		}
		if !res.Open {
			return deny("only open controls can be cancelled")
		}
		return allow()

	case CreateRoute, EditRoute:
		if actor.ID != res.OwnerID {
			return deny("only the responsible driver may record routes")
		}
		if !res.Open {
			return deny("routes can only be changed while the control is open")
		}
		return allow()

	case DeleteRoute:
		if actor.Role == model.RoleAdmin {
			return allow()
		}
		if actor.ID != res.OwnerID {
			return deny("only the responsible driver or an admin may delete routes")
		}
		if !res.Open {
			return deny("routes of a closed control can only be deleted by an admin")
		}
		return allow()

	case ManageVehicle:
		if actor.Role != model.RoleAdmin {
			return deny("only administrators may manage vehicles")
		}
		return allow()
	}
	return deny("unknown action")
}
