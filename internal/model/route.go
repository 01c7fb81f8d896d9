package model

import "time"

// Route is one leg (departure -> arrival) logged within an open usage
// control.  The departure side is required at creation; every arrival
// field stays null until the leg is closed.  Address and coordinate
// triples are optional and usually filled by the geocoding endpoints.
//
// Odometer readings across legs are deliberately not checked against each
// other or against the control's bounds; only the control-level end
// reading is validated at finalization.
//
// Fields:
//  ID                – primary key identifier.
//  ControlID         – owning usage control; immutable.
//  DepartedAt        – departure timestamp.
//  DepartureOdometer – odometer reading at departure.
//  DepartureAddress  – reverse-geocoded departure address (nullable).
//  DepartureLat/Lon  – departure coordinates (nullable).
//  ArrivedAt         – arrival timestamp (nullable).
//  ArrivalOdometer   – odometer reading at arrival (nullable).
//  ArrivalAddress    – reverse-geocoded arrival address (nullable).
//  ArrivalLat/Lon    – arrival coordinates (nullable).
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type Route struct {
	ID                uint64     // routes.id
	ControlID         uint64     // routes.control_id
	DepartedAt        time.Time  // routes.departed_at
	DepartureOdometer float64    // routes.departure_odometer
	DepartureAddress  *string    // routes.departure_address (nullable)
	DepartureLat      *float64   // routes.departure_lat (nullable)
	DepartureLon      *float64   // routes.departure_lon (nullable)
	ArrivedAt         *time.Time // routes.arrived_at (nullable)
	ArrivalOdometer   *float64   // routes.arrival_odometer (nullable)
	ArrivalAddress    *string    // routes.arrival_address (nullable)
	ArrivalLat        *float64   // routes.arrival_lat (nullable)
	ArrivalLon        *float64   // routes.arrival_lon (nullable)
	CreatedAt         time.Time  // routes.created_at
	UpdatedAt         time.Time  // routes.updated_at
}
