package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/model"
	"github.com/iliyamo/fleet-usage-control/internal/repository"
)

// VehicleHandler covers registry CRUD (admin) and availability listing.
// The in_use/available pair never goes through these endpoints; it is
// owned by the usage-control transactions.
type VehicleHandler struct {
	Vehicles *repository.VehicleRepo
}

func NewVehicleHandler(v *repository.VehicleRepo) *VehicleHandler {
	return &VehicleHandler{Vehicles: v}
}

type vehiclePart struct {
	ID        uint64  `json:"id"`
	Brand     string  `json:"brand"`
	Model     string  `json:"model"`
	Plate     string  `json:"plate"`
	Year      *int    `json:"year,omitempty"`
	Engine    *string `json:"engine,omitempty"`
	Kind      *string `json:"kind,omitempty"`
	Status    string  `json:"status"`
	ImageLink *string `json:"image_link,omitempty"`
}

func vehiclePartFrom(v model.Vehicle) vehiclePart {
	return vehiclePart{
		ID:        v.ID,
		Brand:     v.Brand,
		Model:     v.Model,
		Plate:     v.Plate,
		Year:      v.Year,
		Engine:    v.Engine,
		Kind:      v.Kind,
		Status:    v.Status,
		ImageLink: v.ImageLink,
	}
}

type vehicleCreateReq struct {
	Brand     string  `json:"brand"`
	Model     string  `json:"model"`
	Plate     string  `json:"plate"`
	Year      *int    `json:"year"`
	Engine    *string `json:"engine"`
	Kind      *string `json:"kind"`
	ImageLink *string `json:"image_link"`
}

// Create registers a vehicle. Admin only.
func (h *VehicleHandler) Create(c echo.Context) error {
	var req vehicleCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Brand = strings.TrimSpace(req.Brand)
	req.Model = strings.TrimSpace(req.Model)
	req.Plate = strings.TrimSpace(req.Plate)
	if req.Brand == "" || req.Model == "" || req.Plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "brand/model/plate required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v := model.Vehicle{
		Brand:     req.Brand,
		Model:     req.Model,
		Plate:     req.Plate,
		Year:      req.Year,
		Engine:    req.Engine,
		Kind:      req.Kind,
		Status:    model.VehicleAvailable,
		ImageLink: req.ImageLink,
	}
	id, err := h.Vehicles.Create(ctx, &v)
	if err != nil {
		if err == repository.ErrPlateExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create vehicle failed"})
	}
	v.ID = id
	return c.JSON(http.StatusCreated, vehiclePartFrom(v))
}

// List returns all vehicles (staff view).
func (h *VehicleHandler) List(c echo.Context) error {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vehicles, err := h.Vehicles.List(ctx, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]vehiclePart, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, vehiclePartFrom(v))
	}
	return c.JSON(http.StatusOK, echo.Map{"vehicles": out})
}

// ListAvailable returns vehicles a driver can currently check out.
func (h *VehicleHandler) ListAvailable(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vehicles, err := h.Vehicles.ListAvailable(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]vehiclePart, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, vehiclePartFrom(v))
	}
	return c.JSON(http.StatusOK, echo.Map{"vehicles": out})
}

// Get returns one vehicle by id.
func (h *VehicleHandler) Get(c echo.Context) error {
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, vehiclePartFrom(v))
}

type vehicleUpdateReq struct {
	Brand     *string `json:"brand"`
	Model     *string `json:"model"`
	Year      *int    `json:"year"`
	Engine    *string `json:"engine"`
	Kind      *string `json:"kind"`
	Status    *string `json:"status"`
	ImageLink *string `json:"image_link"`
}

// Update applies a partial update. Admin only. Status may only be set to
// maintenance, inactive or available; in_use belongs to the lifecycle.
func (h *VehicleHandler) Update(c echo.Context) error {
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req vehicleUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Status != nil {
		s := strings.ToLower(strings.TrimSpace(*req.Status))
		if !model.ValidVehicleStatus(s) || s == model.VehicleInUse {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
		req.Status = &s
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if req.Status != nil {
		cur, err := h.Vehicles.GetByID(ctx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !model.VehicleStatusEditable(cur.Status) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "vehicle is checked out"})
		}
	}

	err := h.Vehicles.Update(ctx, id, repository.VehiclePatch{
		Brand:     req.Brand,
		Model:     req.Model,
		Year:      req.Year,
		Engine:    req.Engine,
		Kind:      req.Kind,
		Status:    req.Status,
		ImageLink: req.ImageLink,
	})
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		case repository.ErrVehicleUnavailable:
			return c.JSON(http.StatusConflict, echo.Map{"error": "vehicle is checked out"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, vehiclePartFrom(v))
}

// Delete removes a vehicle. Vehicles with usage history answer 409.
func (h *VehicleHandler) Delete(c echo.Context) error {
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Vehicles.Delete(ctx, id); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "vehicle has usage history"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
