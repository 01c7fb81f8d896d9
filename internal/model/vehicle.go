package model

import "time"

// Vehicle availability statuses.  Available and InUse are flipped only by
// the usage-control lifecycle transactions; maintenance and inactive are
// set by administrators through the vehicle endpoints.
const (
	VehicleAvailable   = "available"
	VehicleInUse       = "in_use"
	VehicleMaintenance = "maintenance"
	VehicleInactive    = "inactive"
)

// Vehicle represents a fleet asset as stored in the `vehicles` table.
//
// Fields:
//  ID        – primary key identifier.
//  Brand     – manufacturer name.
//  Model     – model name.
//  Plate     – unique license plate.
//  Year      – manufacture year (nullable).
//  Engine    – engine description (nullable).
//  Kind      – vehicle kind, e.g. car, motorcycle, truck (nullable).
//  Status    – availability status (available, in_use, maintenance, inactive).
//  ImageLink – relative path of the stored vehicle photo, if any.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Vehicle struct {
	ID        uint64    // vehicles.id
	Brand     string    // vehicles.brand
	Model     string    // vehicles.model
	Plate     string    // vehicles.plate
	Year      *int      // vehicles.year (nullable)
	Engine    *string   // vehicles.engine (nullable)
	Kind      *string   // vehicles.kind (nullable)
	Status    string    // vehicles.status
	ImageLink *string   // vehicles.image_link (nullable)
	CreatedAt time.Time // vehicles.created_at
	UpdatedAt time.Time // vehicles.updated_at
}

// ValidVehicleStatus reports whether s is a recognized availability status.
func ValidVehicleStatus(s string) bool {
	switch s {
	case VehicleAvailable, VehicleInUse, VehicleMaintenance, VehicleInactive:
		return true
	}
	return false
}

// VehicleStatusEditable reports whether administrators may change the
// vehicle's status directly. A checked-out vehicle keeps in_use until
// the open usage control finalizes or cancels; flipping it by hand would
// let a second driver claim a vehicle that is still on the road.
func VehicleStatusEditable(current string) bool {
	return current != VehicleInUse
}
