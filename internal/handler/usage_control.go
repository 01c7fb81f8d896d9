package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/model"
	"github.com/iliyamo/fleet-usage-control/internal/policy"
	"github.com/iliyamo/fleet-usage-control/internal/queue"
	"github.com/iliyamo/fleet-usage-control/internal/repository"
	queue_publisher "github.com/iliyamo/fleet-usage-control/internal/service"
)

// UsageControlHandler orchestrates the checkout lifecycle. Every state
// change runs inside a transaction so the control row and the vehicle's
// availability always move together.
type UsageControlHandler struct {
	Controls *repository.UsageControlRepo
	Vehicles *repository.VehicleRepo
	Users    *repository.UserRepo
}

func NewUsageControlHandler(c *repository.UsageControlRepo, v *repository.VehicleRepo, u *repository.UserRepo) *UsageControlHandler {
	if c == nil || v == nil || u == nil {
		panic("nil repository passed to NewUsageControlHandler")
	}
	return &UsageControlHandler{Controls: c, Vehicles: v, Users: u}
}

type controlPart struct {
	ID            uint64     `json:"id"`
	DriverID      uint64     `json:"driver_id"`
	VehicleID     uint64     `json:"vehicle_id"`
	StartedAt     time.Time  `json:"started_at"`
	StartOdometer float64    `json:"start_odometer"`
	EndOdometer   *float64   `json:"end_odometer,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Signature     *string    `json:"signature,omitempty"`
	Status        string     `json:"status"`
}

func controlPartFrom(uc model.UsageControl) controlPart {
	return controlPart{
		ID:            uc.ID,
		DriverID:      uc.DriverID,
		VehicleID:     uc.VehicleID,
		StartedAt:     uc.StartedAt,
		StartOdometer: uc.StartOdometer,
		EndOdometer:   uc.EndOdometer,
		EndedAt:       uc.EndedAt,
		Signature:     uc.Signature,
		Status:        uc.Status,
	}
}

type controlCreateReq struct {
	VehicleID     uint64     `json:"vehicle_id"`
	StartOdometer float64    `json:"start_odometer"`
	StartedAt     *time.Time `json:"started_at"`
}

// Create handles POST /v1/usage-controls. The driver checks a vehicle
// out: the vehicle flips to in_use and an open control is inserted in
// one transaction. The unique open-control key rejects a second checkout
// by the same driver even under concurrent requests.
func (h *UsageControlHandler) Create(c echo.Context) error {
	actor := actorFrom(c)
	if actor.ID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req controlCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.VehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id required"})
	}
	if req.StartOdometer < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_odometer must not be negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hasOpen, err := h.Controls.HasOpenByDriver(ctx, actor.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if d := policy.CanPerform(actor, policy.CreateControl, policy.Resource{DriverHasOpen: hasOpen}); !d.Allowed {
		// An existing open control is a state conflict, not a permission
		// problem; only role failures answer 403.
		status := http.StatusForbidden
		if actor.Role == model.RoleMotorista && hasOpen {
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": d.Reason})
	}

	startedAt := time.Now().UTC()
	if req.StartedAt != nil {
		startedAt = req.StartedAt.UTC()
	}

	tx, err := h.Controls.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Vehicles.ClaimTx(ctx, tx, req.VehicleID); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		case repository.ErrVehicleUnavailable:
			return c.JSON(http.StatusConflict, echo.Map{"error": "vehicle is not available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "claim vehicle failed"})
	}

	uc := model.UsageControl{
		DriverID:      actor.ID,
		VehicleID:     req.VehicleID,
		StartedAt:     startedAt,
		StartOdometer: req.StartOdometer,
		Status:        model.ControlOpen,
	}
	id, err := h.Controls.CreateTx(ctx, tx, &uc)
	if err != nil {
		if err == repository.ErrDriverBusy {
			return c.JSON(http.StatusConflict, echo.Map{"error": "driver already has an open usage control"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create control failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	uc.ID = id

	return c.JSON(http.StatusCreated, controlPartFrom(uc))
}

type finalizeReq struct {
	EndOdometer float64 `json:"end_odometer"`
	Signature   string  `json:"signature"`
}

// Finalize handles POST /v1/usage-controls/:id/finalize. Only the
// responsible driver may finalize; the completion data is validated
// against the start reading and the vehicle is released in the same
// transaction. A usage.finalized event is published best-effort after
// commit.
func (h *UsageControlHandler) Finalize(c echo.Context) error {
	actor := actorFrom(c)
	if actor.ID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req finalizeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Controls.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	uc, err := h.Controls.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "usage control not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	res := policy.Resource{OwnerID: uc.DriverID, Open: uc.Status == model.ControlOpen}
	if d := policy.CanPerform(actor, policy.FinalizeControl, res); !d.Allowed {
		status := http.StatusForbidden
		if actor.ID == uc.DriverID && uc.Status != model.ControlOpen {
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": d.Reason})
	}
	if !model.CanTransition(uc.Status, model.ControlFinalized) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
	}
	if err := uc.ValidateFinalization(req.EndOdometer, req.Signature); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	endedAt := time.Now().UTC()
	if err := h.Controls.FinalizeTx(ctx, tx, id, req.EndOdometer, req.Signature, endedAt); err != nil {
		if err == repository.ErrControlClosed {
			return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "finalize failed"})
	}
	if err := h.Vehicles.ReleaseTx(ctx, tx, uc.VehicleID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release vehicle failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	go h.publishFinalized(uc, req.EndOdometer, endedAt)

	uc.Status = model.ControlFinalized
	uc.EndOdometer = &req.EndOdometer
	uc.EndedAt = &endedAt
	uc.Signature = &req.Signature
	return c.JSON(http.StatusOK, controlPartFrom(uc))
}

// publishFinalized enriches and publishes the usage.finalized event.
// It runs after commit with its own deadline; failures only log.
func (h *UsageControlHandler) publishFinalized(uc model.UsageControl, endOdometer float64, endedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ev := queue.UsageFinalizedEvent{
		ControlID:     uc.ID,
		DriverID:      uc.DriverID,
		VehicleID:     uc.VehicleID,
		StartOdometer: uc.StartOdometer,
		EndOdometer:   endOdometer,
		Distance:      endOdometer - uc.StartOdometer,
		StartedAt:     uc.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:       endedAt.Format(time.RFC3339),
	}
	if u, err := h.Users.GetByID(ctx, uc.DriverID); err == nil {
		ev.DriverName = u.Name
	}
	if v, err := h.Vehicles.GetByID(ctx, uc.VehicleID); err == nil {
		ev.VehiclePlate = v.Plate
	}
	if err := queue_publisher.PublishUsageFinalized(ctx, ev); err != nil {
		log.Printf("usage-control: publish finalized event failed: %v", err)
	}
}

// Cancel handles POST /v1/usage-controls/:id/cancel. The responsible
// driver or an admin voids an open control; the vehicle is released and
// no completion data is recorded.
func (h *UsageControlHandler) Cancel(c echo.Context) error {
	actor := actorFrom(c)
	if actor.ID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Controls.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	uc, err := h.Controls.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "usage control not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	res := policy.Resource{OwnerID: uc.DriverID, Open: uc.Status == model.ControlOpen}
	if d := policy.CanPerform(actor, policy.CancelControl, res); !d.Allowed {
		status := http.StatusForbidden
		if uc.Status != model.ControlOpen && (actor.ID == uc.DriverID || actor.Role == model.RoleAdmin) {
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": d.Reason})
	}
	if !model.CanTransition(uc.Status, model.ControlCancelled) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
	}

	endedAt := time.Now().UTC()
	if err := h.Controls.CancelTx(ctx, tx, id, endedAt); err != nil {
		if err == repository.ErrControlClosed {
			return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if err := h.Vehicles.ReleaseTx(ctx, tx, uc.VehicleID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release vehicle failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	uc.Status = model.ControlCancelled
	uc.EndedAt = &endedAt
	return c.JSON(http.StatusOK, controlPartFrom(uc))
}

// Get handles GET /v1/usage-controls/:id. Owner or staff.
func (h *UsageControlHandler) Get(c echo.Context) error {
	actor := actorFrom(c)
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uc, err := h.Controls.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "usage control not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if d := policy.CanPerform(actor, policy.ViewControl, policy.Resource{OwnerID: uc.DriverID}); !d.Allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": d.Reason})
	}
	return c.JSON(http.StatusOK, controlPartFrom(uc))
}

// List handles GET /v1/usage-controls. Staff see every control; drivers
// are pointed at /meus.
func (h *UsageControlHandler) List(c echo.Context) error {
	actor := actorFrom(c)
	if !model.IsStaff(actor.Role) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "staff only; use /v1/usage-controls/meus"})
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	controls, err := h.Controls.ListAll(ctx, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"usage_controls": controlParts(controls)})
}

// ListMine handles GET /v1/usage-controls/meus: the caller's own history.
func (h *UsageControlHandler) ListMine(c echo.Context) error {
	actor := actorFrom(c)
	if actor.ID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	controls, err := h.Controls.ListByDriver(ctx, actor.ID, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"usage_controls": controlParts(controls)})
}

// ListOpen handles GET /v1/usage-controls/abertos. Staff see all open
// controls and may narrow to one driver with ?driver=<id>; a driver
// always sees only their own.
func (h *UsageControlHandler) ListOpen(c echo.Context) error {
	actor := actorFrom(c)
	if actor.ID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	driverID, err := openDriverFilter(c, actor)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid driver filter"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	controls, err := h.Controls.ListOpen(ctx, driverID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"usage_controls": controlParts(controls)})
}

// openDriverFilter resolves whose open controls to list. Staff may pass
// ?driver=<id> to narrow the listing (absent means all drivers);
// everyone else is pinned to their own ID regardless of the parameter.
func openDriverFilter(c echo.Context, actor policy.Actor) (uint64, error) {
	if !model.IsStaff(actor.Role) {
		return actor.ID, nil
	}
	q := c.QueryParam("driver")
	if q == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(q, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid driver filter")
	}
	return id, nil
}

func controlParts(controls []model.UsageControl) []controlPart {
	out := make([]controlPart, 0, len(controls))
	for _, uc := range controls {
		out = append(out, controlPartFrom(uc))
	}
	return out
}
