// Package queue defines message payloads exchanged over the message broker.
package queue

// UsageFinalizedEvent is published when a usage control is finalized.
// It carries enough information for downstream consumers to log, notify,
// or feed analytics without querying the primary database.
type UsageFinalizedEvent struct {
	ControlID     uint64  `json:"control_id"`
	DriverID      uint64  `json:"driver_id"`
	DriverName    string  `json:"driver_name"`
	VehicleID     uint64  `json:"vehicle_id"`
	VehiclePlate  string  `json:"vehicle_plate"`
	StartOdometer float64 `json:"start_odometer"`
	EndOdometer   float64 `json:"end_odometer"`
	Distance      float64 `json:"distance"`
	StartedAt     string  `json:"started_at"`
	EndedAt       string  `json:"ended_at"`
}
