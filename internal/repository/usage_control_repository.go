package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/fleet-usage-control/internal/model"
)

// UsageControlRepo persists the checkout lifecycle. Every write that
// depends on the control still being open is a single conditional
// statement, so the open check and the mutation cannot be separated by a
// concurrent finalize or cancel.
type UsageControlRepo struct{ DB *sql.DB }

func NewUsageControlRepo(db *sql.DB) *UsageControlRepo { return &UsageControlRepo{DB: db} }

const controlColumns = "id,driver_id,vehicle_id,started_at,start_odometer,end_odometer,ended_at,signature,status,created_at,updated_at"

func scanControl(scan func(dest ...interface{}) error) (model.UsageControl, error) {
	var c model.UsageControl
	var endOdo sql.NullFloat64
	var endedAt sql.NullTime
	var sig sql.NullString
	err := scan(&c.ID, &c.DriverID, &c.VehicleID, &c.StartedAt, &c.StartOdometer,
		&endOdo, &endedAt, &sig, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if endOdo.Valid {
		c.EndOdometer = &endOdo.Float64
	}
	if endedAt.Valid {
		c.EndedAt = &endedAt.Time
	}
	if sig.Valid {
		c.Signature = &sig.String
	}
	return c, nil
}

// CreateTx inserts a new open control inside the checkout transaction.
// The stored generated column open_marker plus its unique key reject a
// second open control for the same driver with a duplicate-key error,
// which is surfaced as ErrDriverBusy.
func (r *UsageControlRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.UsageControl) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO usage_controls (driver_id, vehicle_id, started_at, start_odometer, status) VALUES (?,?,?,?,?)",
		c.DriverID, c.VehicleID, c.StartedAt, c.StartOdometer, model.ControlOpen)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return 0, ErrDriverBusy
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a control by id. sql.ErrNoRows when absent.
func (r *UsageControlRepo) GetByID(ctx context.Context, id uint64) (model.UsageControl, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+controlColumns+" FROM usage_controls WHERE id=? LIMIT 1", id)
	return scanControl(row.Scan)
}

// GetForUpdateTx fetches a control with a row lock so the caller can
// inspect it and then release the vehicle without a concurrent closer
// interleaving.
func (r *UsageControlRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.UsageControl, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+controlColumns+" FROM usage_controls WHERE id=? FOR UPDATE", id)
	return scanControl(row.Scan)
}

// FinalizeTx closes an open control with its completion data. The WHERE
// clause requires status='open', so a control that was finalized or
// cancelled in the meantime matches zero rows and ErrControlClosed is
// returned.
func (r *UsageControlRepo) FinalizeTx(ctx context.Context, tx *sql.Tx, id uint64, endOdometer float64, signature string, endedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE usage_controls SET status=?, end_odometer=?, signature=?, ended_at=? WHERE id=? AND status=?",
		model.ControlFinalized, endOdometer, signature, endedAt, id, model.ControlOpen)
	if err != nil {
		return err
	}
	return zeroRowsAsClosed(res)
}

// CancelTx voids an open control. End odometer and signature stay null;
// a cancelled control records that the checkout did not happen.
func (r *UsageControlRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, endedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE usage_controls SET status=?, ended_at=? WHERE id=? AND status=?",
		model.ControlCancelled, endedAt, id, model.ControlOpen)
	if err != nil {
		return err
	}
	return zeroRowsAsClosed(res)
}

// ListByDriver returns a driver's controls, newest first.
func (r *UsageControlRepo) ListByDriver(ctx context.Context, driverID uint64, offset, limit int) ([]model.UsageControl, error) {
	offset, limit = clampPage(offset, limit)
	return r.query(ctx,
		"SELECT "+controlColumns+" FROM usage_controls WHERE driver_id=? ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?",
		driverID, limit, offset)
}

// ListAll returns every control, newest first. Staff only; the handler
// enforces that.
func (r *UsageControlRepo) ListAll(ctx context.Context, offset, limit int) ([]model.UsageControl, error) {
	offset, limit = clampPage(offset, limit)
	return r.query(ctx,
		"SELECT "+controlColumns+" FROM usage_controls ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
}

// ListOpen returns open controls, optionally narrowed to one driver
// (driverID 0 means all drivers).
func (r *UsageControlRepo) ListOpen(ctx context.Context, driverID uint64) ([]model.UsageControl, error) {
	if driverID != 0 {
		return r.query(ctx,
			"SELECT "+controlColumns+" FROM usage_controls WHERE status=? AND driver_id=? ORDER BY started_at DESC",
			model.ControlOpen, driverID)
	}
	return r.query(ctx,
		"SELECT "+controlColumns+" FROM usage_controls WHERE status=? ORDER BY started_at DESC",
		model.ControlOpen)
}

// HasOpenByDriver reports whether the driver currently has an open
// control. Used for pre-flight checks; the unique key remains the real
// guarantee.
func (r *UsageControlRepo) HasOpenByDriver(ctx context.Context, driverID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM usage_controls WHERE driver_id=? AND status=? LIMIT 1",
		driverID, model.ControlOpen).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *UsageControlRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.UsageControl, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	controls := make([]model.UsageControl, 0)
	for rows.Next() {
		c, err := scanControl(rows.Scan)
		if err != nil {
			return nil, err
		}
		controls = append(controls, c)
	}
	return controls, rows.Err()
}

func clampPage(offset, limit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// zeroRowsAsClosed maps a zero-row conditional update onto
// ErrControlClosed. Callers that need to distinguish "closed" from
// "missing" load the row first.
func zeroRowsAsClosed(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrControlClosed
	}
	return nil
}
