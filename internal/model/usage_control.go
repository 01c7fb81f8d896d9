package model

import (
	"errors"
	"strings"
	"time"
)

// Usage control statuses.  A control starts open; finalized and cancelled
// are terminal.
const (
	ControlOpen      = "open"
	ControlFinalized = "finalized"
	ControlCancelled = "cancelled"
)

// controlTransitions is the allowed transition graph for a usage control.
// Terminal states map to the empty set.
var controlTransitions = map[string][]string{
	ControlOpen:      {ControlFinalized, ControlCancelled},
	ControlFinalized: {},
	ControlCancelled: {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to string) bool {
	allowed, ok := controlTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// UsageControl is the central entity of the service: one driver's
// continuous checkout of one vehicle, from open to finalized or cancelled.
// DriverID and VehicleID are fixed at creation and never reassigned.
//
// Fields:
//  ID            – primary key identifier.
//  DriverID      – user who checked the vehicle out.
//  VehicleID     – vehicle being used.
//  StartedAt     – checkout timestamp.
//  StartOdometer – odometer reading at checkout; immutable after creation.
//  EndOdometer   – odometer reading at finalization (null while open).
//  EndedAt       – finalization/cancellation timestamp (null while open).
//  Signature     – electronic signature captured at finalization; a free
//                  text attestation, not a cryptographic signature.
//  Status        – open, finalized or cancelled.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type UsageControl struct {
	ID            uint64     // usage_controls.id
	DriverID      uint64     // usage_controls.driver_id
	VehicleID     uint64     // usage_controls.vehicle_id
	StartedAt     time.Time  // usage_controls.started_at
	StartOdometer float64    // usage_controls.start_odometer
	EndOdometer   *float64   // usage_controls.end_odometer (nullable)
	EndedAt       *time.Time // usage_controls.ended_at (nullable)
	Signature     *string    // usage_controls.signature (nullable)
	Status        string     // usage_controls.status
	CreatedAt     time.Time  // usage_controls.created_at
	UpdatedAt     time.Time  // usage_controls.updated_at
}

// Validation errors for finalization input.  Handlers map these to 400.
var (
	ErrSignatureRequired = errors.New("electronic signature is required")
	ErrOdometerNotAfter  = errors.New("end odometer must be greater than start odometer")
)

// ValidateFinalization checks the completion data against the control's
// start reading.  The end odometer must be strictly greater than the start
// and the signature non-empty.  Status and ownership checks happen in the
// policy and repository layers; this covers only the input itself.
func (u *UsageControl) ValidateFinalization(endOdometer float64, signature string) error {
	if strings.TrimSpace(signature) == "" {
		return ErrSignatureRequired
	}
	if endOdometer <= u.StartOdometer {
		return ErrOdometerNotAfter
	}
	return nil
}
