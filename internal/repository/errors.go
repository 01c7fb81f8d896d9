// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrConflict signals that an operation cannot proceed because
// of the current state of dependent records (e.g. deleting a vehicle
// that has usage history), while ErrControlClosed marks a conditional
// write that lost to the parent control leaving the open state.
package repository

import "errors"

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrVehicleUnavailable is returned when a checkout races or targets a
// vehicle that is not in the available state.
var ErrVehicleUnavailable = errors.New("vehicle is not available")

// ErrDriverBusy is returned when the driver already has an open usage
// control. It is raised by the unique key on (driver_id, open_marker),
// so concurrent checkouts from the same driver cannot both succeed.
var ErrDriverBusy = errors.New("driver already has an open usage control")

// ErrControlClosed is returned by conditional writes that require the
// parent usage control to still be open.
var ErrControlClosed = errors.New("usage control is not open")
