package model

import "testing"

func TestValidVehicleStatus(t *testing.T) {
	for _, s := range []string{VehicleAvailable, VehicleInUse, VehicleMaintenance, VehicleInactive} {
		if !ValidVehicleStatus(s) {
			t.Errorf("ValidVehicleStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "parked", "IN_USE"} {
		if ValidVehicleStatus(s) {
			t.Errorf("ValidVehicleStatus(%q) = true", s)
		}
	}
}

// A checked-out vehicle's status is owned by its open usage control;
// administrative edits must not be able to free it for a second driver.
func TestVehicleStatusEditable(t *testing.T) {
	cases := []struct {
		current string
		want    bool
	}{
		{VehicleAvailable, true},
		{VehicleMaintenance, true},
		{VehicleInactive, true},
		{VehicleInUse, false},
	}
	for _, tc := range cases {
		if got := VehicleStatusEditable(tc.current); got != tc.want {
			t.Errorf("VehicleStatusEditable(%q) = %v, want %v", tc.current, got, tc.want)
		}
	}
}
