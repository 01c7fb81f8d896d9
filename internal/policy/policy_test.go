package policy

import (
	"testing"

	"github.com/iliyamo/fleet-usage-control/internal/model"
)

var (
	driver  = Actor{ID: 1, Role: model.RoleMotorista}
	driver2 = Actor{ID: 2, Role: model.RoleMotorista}
	admin   = Actor{ID: 9, Role: model.RoleAdmin}
	gestor  = Actor{ID: 8, Role: model.RoleGestor}
)

func TestCreateControl(t *testing.T) {
	if d := CanPerform(driver, CreateControl, Resource{}); !d.Allowed {
		t.Fatalf("driver without open control should be allowed: %s", d.Reason)
	}
	if d := CanPerform(driver, CreateControl, Resource{DriverHasOpen: true}); d.Allowed {
		t.Fatalf("driver with an open control must be denied")
	}
	if d := CanPerform(admin, CreateControl, Resource{}); d.Allowed {
		t.Fatalf("non-motorista roles must not open controls")
	}
	if d := CanPerform(gestor, CreateControl, Resource{}); d.Allowed {
		t.Fatalf("gestor must not open controls")
	}
}

func TestViewControl(t *testing.T) {
	res := Resource{OwnerID: 1, Open: true}
	if d := CanPerform(driver, ViewControl, res); !d.Allowed {
		t.Fatalf("owner should view own control: %s", d.Reason)
	}
	if d := CanPerform(driver2, ViewControl, res); d.Allowed {
		t.Fatalf("another driver must not view the control")
	}
	for _, staff := range []Actor{admin, gestor, {ID: 7, Role: model.RoleOperador}} {
		if d := CanPerform(staff, ViewControl, res); !d.Allowed {
			t.Fatalf("%s should view any control: %s", staff.Role, d.Reason)
		}
	}
}

// Finalize is driver-only: unlike cancel, not even an admin may finalize
// someone else's control.
func TestFinalizeControl(t *testing.T) {
	res := Resource{OwnerID: 1, Open: true}
	if d := CanPerform(driver, FinalizeControl, res); !d.Allowed {
		t.Fatalf("owner should finalize own open control: %s", d.Reason)
	}
	if d := CanPerform(driver2, FinalizeControl, res); d.Allowed {
		t.Fatalf("another driver must not finalize")
	}
	if d := CanPerform(admin, FinalizeControl, res); d.Allowed {
		t.Fatalf("admin must not finalize another driver's control")
	}
	if d := CanPerform(driver, FinalizeControl, Resource{OwnerID: 1, Open: false}); d.Allowed {
		t.Fatalf("closed control must not be finalized again")
	}
}

func TestCancelControl(t *testing.T) {
	res := Resource{OwnerID: 1, Open: true}
	if d := CanPerform(driver, CancelControl, res); !d.Allowed {
		t.Fatalf("owner should cancel own open control: %s", d.Reason)
	}
	if d := CanPerform(admin, CancelControl, res); !d.Allowed {
		t.Fatalf("admin should cancel any open control: %s", d.Reason)
	}
	if d := CanPerform(driver2, CancelControl, res); d.Allowed {
		t.Fatalf("another driver must not cancel")
	}
	if d := CanPerform(gestor, CancelControl, res); d.Allowed {
		t.Fatalf("gestor must not cancel another driver's control")
	}
	if d := CanPerform(admin, CancelControl, Resource{OwnerID: 1, Open: false}); d.Allowed {
		t.Fatalf("closed control must not be cancelled")
	}
}

func TestRouteActions(t *testing.T) {
	open := Resource{OwnerID: 1, Open: true}
	closed := Resource{OwnerID: 1, Open: false}

	for _, a := range []Action{CreateRoute, EditRoute} {
		if d := CanPerform(driver, a, open); !d.Allowed {
			t.Fatalf("%s on open control by owner should pass: %s", a, d.Reason)
		}
		if d := CanPerform(driver, a, closed); d.Allowed {
			t.Fatalf("%s on closed control must be denied", a)
		}
		if d := CanPerform(admin, a, open); d.Allowed {
			t.Fatalf("%s by non-owner must be denied even for admin", a)
		}
	}

	if d := CanPerform(driver, DeleteRoute, open); !d.Allowed {
		t.Fatalf("owner should delete route while open: %s", d.Reason)
	}
	if d := CanPerform(driver, DeleteRoute, closed); d.Allowed {
		t.Fatalf("owner must not delete route of a closed control")
	}
	if d := CanPerform(admin, DeleteRoute, closed); !d.Allowed {
		t.Fatalf("admin should delete routes of any control: %s", d.Reason)
	}
	if d := CanPerform(driver2, DeleteRoute, open); d.Allowed {
		t.Fatalf("unrelated driver must not delete routes")
	}
}

func TestManageVehicle(t *testing.T) {
	if d := CanPerform(admin, ManageVehicle, Resource{}); !d.Allowed {
		t.Fatalf("admin should manage vehicles: %s", d.Reason)
	}
	for _, a := range []Actor{driver, gestor, {ID: 7, Role: model.RoleOperador}} {
		if d := CanPerform(a, ManageVehicle, Resource{}); d.Allowed {
			t.Fatalf("%s must not manage vehicles", a.Role)
		}
	}
}

func TestUnknownAction(t *testing.T) {
	if d := CanPerform(admin, Action("drop_tables"), Resource{}); d.Allowed {
		t.Fatalf("unknown actions must be denied")
	}
}
