package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/fleet-usage-control/internal/model"
)

// RouteRepo persists the legs logged under a usage control. Writes that
// are only legal while the parent control is open join against the
// parent's status in the same statement, so a concurrent finalize cannot
// slip between the check and the write.
type RouteRepo struct{ DB *sql.DB }

func NewRouteRepo(db *sql.DB) *RouteRepo { return &RouteRepo{DB: db} }

const routeColumns = "id,control_id,departed_at,departure_odometer,departure_address,departure_lat,departure_lon," +
	"arrived_at,arrival_odometer,arrival_address,arrival_lat,arrival_lon,created_at,updated_at"

func scanRoute(scan func(dest ...interface{}) error) (model.Route, error) {
	var rt model.Route
	var depAddr, arrAddr sql.NullString
	var depLat, depLon, arrOdo, arrLat, arrLon sql.NullFloat64
	var arrivedAt sql.NullTime
	err := scan(&rt.ID, &rt.ControlID, &rt.DepartedAt, &rt.DepartureOdometer, &depAddr, &depLat, &depLon,
		&arrivedAt, &arrOdo, &arrAddr, &arrLat, &arrLon, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return rt, err
	}
	if depAddr.Valid {
		rt.DepartureAddress = &depAddr.String
	}
	if depLat.Valid {
		rt.DepartureLat = &depLat.Float64
	}
	if depLon.Valid {
		rt.DepartureLon = &depLon.Float64
	}
	if arrivedAt.Valid {
		rt.ArrivedAt = &arrivedAt.Time
	}
	if arrOdo.Valid {
		rt.ArrivalOdometer = &arrOdo.Float64
	}
	if arrAddr.Valid {
		rt.ArrivalAddress = &arrAddr.String
	}
	if arrLat.Valid {
		rt.ArrivalLat = &arrLat.Float64
	}
	if arrLon.Valid {
		rt.ArrivalLon = &arrLon.Float64
	}
	return rt, nil
}

// Create inserts a leg under an open control. The INSERT selects from
// the parent row with status='open', so a closed parent yields zero rows
// and ErrControlClosed; a missing parent is sql.ErrNoRows.
func (r *RouteRepo) Create(ctx context.Context, rt *model.Route) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO routes (control_id, departed_at, departure_odometer, departure_address, departure_lat, departure_lon,
                             arrived_at, arrival_odometer, arrival_address, arrival_lat, arrival_lon)
         SELECT c.id, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
           FROM usage_controls c WHERE c.id = ? AND c.status = ?`,
		rt.DepartedAt, rt.DepartureOdometer, rt.DepartureAddress, rt.DepartureLat, rt.DepartureLon,
		rt.ArrivedAt, rt.ArrivalOdometer, rt.ArrivalAddress, rt.ArrivalLat, rt.ArrivalLon,
		rt.ControlID, model.ControlOpen)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		var one int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM usage_controls WHERE id=?", rt.ControlID).Scan(&one)
		if err != nil {
			return 0, err // sql.ErrNoRows when the control is missing
		}
		return 0, ErrControlClosed
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetWithControl fetches a leg together with the parent's driver and
// status, which is everything the policy layer needs to decide on it.
func (r *RouteRepo) GetWithControl(ctx context.Context, id uint64) (model.Route, uint64, string, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT r.id, r.control_id, r.departed_at, r.departure_odometer, r.departure_address, r.departure_lat, r.departure_lon,
                r.arrived_at, r.arrival_odometer, r.arrival_address, r.arrival_lat, r.arrival_lon, r.created_at, r.updated_at,
                c.driver_id, c.status
           FROM routes r JOIN usage_controls c ON c.id = r.control_id
          WHERE r.id = ? LIMIT 1`, id)
	var rt model.Route
	var driverID uint64
	var status string
	var depAddr, arrAddr sql.NullString
	var depLat, depLon, arrOdo, arrLat, arrLon sql.NullFloat64
	var arrivedAt sql.NullTime
	err := row.Scan(&rt.ID, &rt.ControlID, &rt.DepartedAt, &rt.DepartureOdometer, &depAddr, &depLat, &depLon,
		&arrivedAt, &arrOdo, &arrAddr, &arrLat, &arrLon, &rt.CreatedAt, &rt.UpdatedAt,
		&driverID, &status)
	if err != nil {
		return rt, 0, "", err
	}
	if depAddr.Valid {
		rt.DepartureAddress = &depAddr.String
	}
	if depLat.Valid {
		rt.DepartureLat = &depLat.Float64
	}
	if depLon.Valid {
		rt.DepartureLon = &depLon.Float64
	}
	if arrivedAt.Valid {
		rt.ArrivedAt = &arrivedAt.Time
	}
	if arrOdo.Valid {
		rt.ArrivalOdometer = &arrOdo.Float64
	}
	if arrAddr.Valid {
		rt.ArrivalAddress = &arrAddr.String
	}
	if arrLat.Valid {
		rt.ArrivalLat = &arrLat.Float64
	}
	if arrLon.Valid {
		rt.ArrivalLon = &arrLon.Float64
	}
	return rt, driverID, status, nil
}

// ListByControl returns a control's legs in departure order.
func (r *RouteRepo) ListByControl(ctx context.Context, controlID uint64) ([]model.Route, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+routeColumns+" FROM routes WHERE control_id=? ORDER BY departed_at, id", controlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	routes := make([]model.Route, 0)
	for rows.Next() {
		rt, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

// RoutePatch carries the optional fields of a partial leg update.
type RoutePatch struct {
	DepartedAt        *time.Time
	DepartureOdometer *float64
	ArrivedAt         *time.Time
	ArrivalOdometer   *float64
}

// Update applies a partial update, but only while the parent control is
// open; the join on status serializes the edit against finalize/cancel.
// Zero matched rows mean the parent is closed (the handler has already
// loaded the leg, so existence is settled).
func (r *RouteRepo) Update(ctx context.Context, id uint64, p RoutePatch) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE routes r JOIN usage_controls c ON c.id = r.control_id SET
            r.departed_at        = COALESCE(?, r.departed_at),
            r.departure_odometer = COALESCE(?, r.departure_odometer),
            r.arrived_at         = COALESCE(?, r.arrived_at),
            r.arrival_odometer   = COALESCE(?, r.arrival_odometer)
         WHERE r.id = ? AND c.status = ?`,
		p.DepartedAt, p.DepartureOdometer, p.ArrivedAt, p.ArrivalOdometer, id, model.ControlOpen)
	if err != nil {
		return err
	}
	return zeroRowsAsClosed(res)
}

// SetDepartureLocation stores a reverse-geocoded departure position.
// Open-only, like every other leg edit.
func (r *RouteRepo) SetDepartureLocation(ctx context.Context, id uint64, address string, lat, lon float64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE routes r JOIN usage_controls c ON c.id = r.control_id
            SET r.departure_address = ?, r.departure_lat = ?, r.departure_lon = ?
          WHERE r.id = ? AND c.status = ?`,
		address, lat, lon, id, model.ControlOpen)
	if err != nil {
		return err
	}
	return zeroRowsAsClosed(res)
}

// SetArrivalLocation stores a reverse-geocoded arrival position.
func (r *RouteRepo) SetArrivalLocation(ctx context.Context, id uint64, address string, lat, lon float64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE routes r JOIN usage_controls c ON c.id = r.control_id
            SET r.arrival_address = ?, r.arrival_lat = ?, r.arrival_lon = ?
          WHERE r.id = ? AND c.status = ?`,
		address, lat, lon, id, model.ControlOpen)
	if err != nil {
		return err
	}
	return zeroRowsAsClosed(res)
}

// Delete removes a leg unconditionally. Administrators may prune legs
// from closed controls; everyone else goes through DeleteWhileOpen.
func (r *RouteRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM routes WHERE id=?", id)
	if err != nil {
		return err
	}
	return noRowsAsNotFound(res)
}

// DeleteWhileOpen removes a leg only while the parent control is open.
func (r *RouteRepo) DeleteWhileOpen(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE r FROM routes r JOIN usage_controls c ON c.id = r.control_id WHERE r.id = ? AND c.status = ?",
		id, model.ControlOpen)
	if err != nil {
		return err
	}
	return zeroRowsAsClosed(res)
}
