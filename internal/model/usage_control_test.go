package model

import "testing"

func TestCanTransition(t *testing.T) {
	if !CanTransition(ControlOpen, ControlFinalized) {
		t.Fatalf("expected open -> finalized allowed")
	}
	if !CanTransition(ControlOpen, ControlCancelled) {
		t.Fatalf("expected open -> cancelled allowed")
	}
	if CanTransition(ControlFinalized, ControlOpen) {
		t.Fatalf("expected finalized -> open not allowed")
	}
	if CanTransition(ControlFinalized, ControlCancelled) {
		t.Fatalf("expected finalized -> cancelled not allowed")
	}
	if CanTransition(ControlCancelled, ControlFinalized) {
		t.Fatalf("expected cancelled -> finalized not allowed")
	}
	if CanTransition("bogus", ControlFinalized) {
		t.Fatalf("expected unknown status to reject transitions")
	}
}

func TestValidateFinalization(t *testing.T) {
	u := &UsageControl{StartOdometer: 1000, Status: ControlOpen}

	if err := u.ValidateFinalization(1050, "D1 Silva"); err != nil {
		t.Fatalf("ValidateFinalization: %v", err)
	}
	if err := u.ValidateFinalization(999, "D1 Silva"); err != ErrOdometerNotAfter {
		t.Fatalf("expected ErrOdometerNotAfter for 999 <= 1000, got %v", err)
	}
	if err := u.ValidateFinalization(1000, "D1 Silva"); err != ErrOdometerNotAfter {
		t.Fatalf("expected ErrOdometerNotAfter for equal readings, got %v", err)
	}
	if err := u.ValidateFinalization(1050, "   "); err != ErrSignatureRequired {
		t.Fatalf("expected ErrSignatureRequired for blank signature, got %v", err)
	}
}
