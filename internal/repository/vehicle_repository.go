package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/fleet-usage-control/internal/model"
)

// VehicleRepo provides persistence for the vehicle registry. Plain CRUD
// is exposed for administrators; the flips between available and in_use
// are reachable only through the *Tx claim/release methods so that every
// flip happens inside a usage-control transaction and the registry can
// never disagree with the control table about a vehicle's state.
type VehicleRepo struct{ DB *sql.DB }

func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{DB: db} }

var ErrPlateExists = errors.New("plate already exists")

const vehicleColumns = "id,brand,model,plate,year,engine,kind,status,image_link,created_at,updated_at"

func scanVehicle(scan func(dest ...interface{}) error) (model.Vehicle, error) {
	var v model.Vehicle
	var year sql.NullInt64
	var engine, kind, image sql.NullString
	err := scan(&v.ID, &v.Brand, &v.Model, &v.Plate, &year, &engine, &kind,
		&v.Status, &image, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return v, err
	}
	if year.Valid {
		y := int(year.Int64)
		v.Year = &y
	}
	if engine.Valid {
		v.Engine = &engine.String
	}
	if kind.Valid {
		v.Kind = &kind.String
	}
	if image.Valid {
		v.ImageLink = &image.String
	}
	return v, nil
}

// Create inserts a vehicle and returns its ID. Duplicate plates are
// reported as ErrPlateExists.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) (uint64, error) {
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO vehicles (brand, model, plate, year, engine, kind, status, image_link) VALUES (?,?,?,?,?,?,?,?)",
		v.Brand, v.Model, v.Plate, v.Year, v.Engine, v.Kind, v.Status, v.ImageLink)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return 0, ErrPlateExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a vehicle by id. sql.ErrNoRows when absent.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (model.Vehicle, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE id=? LIMIT 1", id)
	return scanVehicle(row.Scan)
}

// List returns vehicles ordered by plate with offset pagination.
func (r *VehicleRepo) List(ctx context.Context, offset, limit int) ([]model.Vehicle, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return r.query(ctx, "SELECT "+vehicleColumns+" FROM vehicles ORDER BY plate LIMIT ? OFFSET ?", limit, offset)
}

// ListAvailable returns vehicles that can currently be checked out.
func (r *VehicleRepo) ListAvailable(ctx context.Context) ([]model.Vehicle, error) {
	return r.query(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE status=? ORDER BY plate", model.VehicleAvailable)
}

func (r *VehicleRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Vehicle, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	vehicles := make([]model.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// VehiclePatch carries the optional fields of a partial vehicle update.
// Status here only accepts the administrator-controlled values; the
// in_use/available pair is owned by the lifecycle transactions.
type VehiclePatch struct {
	Brand     *string
	Model     *string
	Year      *int
	Engine    *string
	Kind      *string
	Status    *string
	ImageLink *string
}

// Update applies a partial update. sql.ErrNoRows when the vehicle does
// not exist. When the patch carries a status, the WHERE clause refuses
// rows currently in_use (that status belongs to the open usage control)
// and ErrVehicleUnavailable is returned instead, so a checkout that
// lands between the handler's read and this write still cannot be
// overwritten.
func (r *VehicleRepo) Update(ctx context.Context, id uint64, p VehiclePatch) error {
	query := `UPDATE vehicles SET
            brand      = COALESCE(?, brand),
            model      = COALESCE(?, model),
            year       = COALESCE(?, year),
            engine     = COALESCE(?, engine),
            kind       = COALESCE(?, kind),
            status     = COALESCE(?, status),
            image_link = COALESCE(?, image_link)
         WHERE id = ?`
	args := []interface{}{p.Brand, p.Model, p.Year, p.Engine, p.Kind, p.Status, p.ImageLink, id}
	if p.Status != nil {
		query += " AND status <> ?"
		args = append(args, model.VehicleInUse)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if p.Status != nil {
		var exists int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM vehicles WHERE id=?", id).Scan(&exists); err != nil {
			return err // sql.ErrNoRows when the vehicle is missing
		}
		return ErrVehicleUnavailable
	}
	return sql.ErrNoRows
}

// Delete removes a vehicle. Vehicles with usage history are protected by
// the foreign key and reported as ErrConflict.
func (r *VehicleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM vehicles WHERE id=?", id)
	if err != nil {
		if strings.Contains(err.Error(), "1451") {
			return ErrConflict
		}
		return err
	}
	return noRowsAsNotFound(res)
}

// ClaimTx flips an available vehicle to in_use inside the checkout
// transaction. The status predicate in the WHERE clause makes the claim
// atomic: two concurrent checkouts of the same vehicle cannot both match
// it. Returns ErrVehicleUnavailable when the vehicle exists but is not
// available and sql.ErrNoRows when it does not exist.
func (r *VehicleRepo) ClaimTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE vehicles SET status=? WHERE id=? AND status=?",
		model.VehicleInUse, id, model.VehicleAvailable)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM vehicles WHERE id=?", id).Scan(&exists); err != nil {
		return err // sql.ErrNoRows when the vehicle is missing
	}
	return ErrVehicleUnavailable
}

// ReleaseTx flips a vehicle back to available when its usage control
// leaves the open state. A vehicle moved to maintenance keeps its status.
func (r *VehicleRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE vehicles SET status=? WHERE id=? AND status=?",
		model.VehicleAvailable, id, model.VehicleInUse)
	return err
}
