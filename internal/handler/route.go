package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/geocode"
	"github.com/iliyamo/fleet-usage-control/internal/model"
	"github.com/iliyamo/fleet-usage-control/internal/policy"
	"github.com/iliyamo/fleet-usage-control/internal/repository"
)

// RouteHandler covers the legs logged under a usage control, including
// the reverse-geocoding endpoints. Ownership and open-state rules come
// from the policy table; the open-state writes themselves are still
// guarded in SQL so a concurrent finalize cannot race the check.
type RouteHandler struct {
	Routes   *repository.RouteRepo
	Controls *repository.UsageControlRepo
	Geo      *geocode.Client
}

func NewRouteHandler(r *repository.RouteRepo, ctrl *repository.UsageControlRepo, geo *geocode.Client) *RouteHandler {
	if r == nil || ctrl == nil || geo == nil {
		panic("nil dependency passed to NewRouteHandler")
	}
	return &RouteHandler{Routes: r, Controls: ctrl, Geo: geo}
}

type routePart struct {
	ID                uint64     `json:"id"`
	ControlID         uint64     `json:"control_id"`
	DepartedAt        time.Time  `json:"departed_at"`
	DepartureOdometer float64    `json:"departure_odometer"`
	DepartureAddress  *string    `json:"departure_address,omitempty"`
	DepartureLat      *float64   `json:"departure_lat,omitempty"`
	DepartureLon      *float64   `json:"departure_lon,omitempty"`
	ArrivedAt         *time.Time `json:"arrived_at,omitempty"`
	ArrivalOdometer   *float64   `json:"arrival_odometer,omitempty"`
	ArrivalAddress    *string    `json:"arrival_address,omitempty"`
	ArrivalLat        *float64   `json:"arrival_lat,omitempty"`
	ArrivalLon        *float64   `json:"arrival_lon,omitempty"`
}

func routePartFrom(rt model.Route) routePart {
	return routePart{
		ID:                rt.ID,
		ControlID:         rt.ControlID,
		DepartedAt:        rt.DepartedAt,
		DepartureOdometer: rt.DepartureOdometer,
		DepartureAddress:  rt.DepartureAddress,
		DepartureLat:      rt.DepartureLat,
		DepartureLon:      rt.DepartureLon,
		ArrivedAt:         rt.ArrivedAt,
		ArrivalOdometer:   rt.ArrivalOdometer,
		ArrivalAddress:    rt.ArrivalAddress,
		ArrivalLat:        rt.ArrivalLat,
		ArrivalLon:        rt.ArrivalLon,
	}
}

type routeCreateReq struct {
	ControlID         uint64     `json:"control_id"`
	DepartedAt        *time.Time `json:"departed_at"`
	DepartureOdometer float64    `json:"departure_odometer"`
	ArrivedAt         *time.Time `json:"arrived_at"`
	ArrivalOdometer   *float64   `json:"arrival_odometer"`
}

// Create handles POST /v1/routes: the responsible driver logs a leg
// under their open control.
func (h *RouteHandler) Create(c echo.Context) error {
	actor := actorFrom(c)
	if actor.ID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req routeCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ControlID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "control_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uc, err := h.Controls.GetByID(ctx, req.ControlID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "usage control not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	res := policy.Resource{OwnerID: uc.DriverID, Open: uc.Status == model.ControlOpen}
	if d := policy.CanPerform(actor, policy.CreateRoute, res); !d.Allowed {
		status := http.StatusForbidden
		if actor.ID == uc.DriverID && uc.Status != model.ControlOpen {
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": d.Reason})
	}

	departedAt := time.Now().UTC()
	if req.DepartedAt != nil {
		departedAt = req.DepartedAt.UTC()
	}
	rt := model.Route{
		ControlID:         req.ControlID,
		DepartedAt:        departedAt,
		DepartureOdometer: req.DepartureOdometer,
		ArrivedAt:         req.ArrivedAt,
		ArrivalOdometer:   req.ArrivalOdometer,
	}
	id, err := h.Routes.Create(ctx, &rt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "usage control not found"})
		case repository.ErrControlClosed:
			return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create route failed"})
	}
	rt.ID = id
	return c.JSON(http.StatusCreated, routePartFrom(rt))
}

// ListByControl handles GET /v1/usage-controls/:id/routes.
func (h *RouteHandler) ListByControl(c echo.Context) error {
	actor := actorFrom(c)
	controlID := paramID(c, "id")
	if controlID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uc, err := h.Controls.GetByID(ctx, controlID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "usage control not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if d := policy.CanPerform(actor, policy.ViewRoute, policy.Resource{OwnerID: uc.DriverID}); !d.Allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": d.Reason})
	}

	routes, err := h.Routes.ListByControl(ctx, controlID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]routePart, 0, len(routes))
	for _, rt := range routes {
		out = append(out, routePartFrom(rt))
	}
	return c.JSON(http.StatusOK, echo.Map{"routes": out})
}

// Get handles GET /v1/routes/:id.
func (h *RouteHandler) Get(c echo.Context) error {
	actor := actorFrom(c)
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rt, ownerID, _, err := h.Routes.GetWithControl(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if d := policy.CanPerform(actor, policy.ViewRoute, policy.Resource{OwnerID: ownerID}); !d.Allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": d.Reason})
	}
	return c.JSON(http.StatusOK, routePartFrom(rt))
}

type routeUpdateReq struct {
	DepartedAt        *time.Time `json:"departed_at"`
	DepartureOdometer *float64   `json:"departure_odometer"`
	ArrivedAt         *time.Time `json:"arrived_at"`
	ArrivalOdometer   *float64   `json:"arrival_odometer"`
}

// Update handles PATCH /v1/routes/:id. Owner only, while the parent is
// open.
func (h *RouteHandler) Update(c echo.Context) error {
	actor := actorFrom(c)
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req routeUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, ownerID, status, err := h.Routes.GetWithControl(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	res := policy.Resource{OwnerID: ownerID, Open: status == model.ControlOpen}
	if d := policy.CanPerform(actor, policy.EditRoute, res); !d.Allowed {
		httpStatus := http.StatusForbidden
		if actor.ID == ownerID && status != model.ControlOpen {
			httpStatus = http.StatusConflict
		}
		return c.JSON(httpStatus, echo.Map{"error": d.Reason})
	}

	err = h.Routes.Update(ctx, id, repository.RoutePatch{
		DepartedAt:        req.DepartedAt,
		DepartureOdometer: req.DepartureOdometer,
		ArrivedAt:         req.ArrivedAt,
		ArrivalOdometer:   req.ArrivalOdometer,
	})
	if err != nil {
		if err == repository.ErrControlClosed {
			return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	rt, _, _, err := h.Routes.GetWithControl(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, routePartFrom(rt))
}

// Delete handles DELETE /v1/routes/:id. Admins may delete any leg, even
// from a closed control; the owner may delete only while it is open.
func (h *RouteHandler) Delete(c echo.Context) error {
	actor := actorFrom(c)
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, ownerID, status, err := h.Routes.GetWithControl(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	res := policy.Resource{OwnerID: ownerID, Open: status == model.ControlOpen}
	if d := policy.CanPerform(actor, policy.DeleteRoute, res); !d.Allowed {
		httpStatus := http.StatusForbidden
		if actor.ID == ownerID && status != model.ControlOpen {
			httpStatus = http.StatusConflict
		}
		return c.JSON(httpStatus, echo.Map{"error": d.Reason})
	}

	if actor.Role == model.RoleAdmin {
		err = h.Routes.Delete(ctx, id)
	} else {
		err = h.Routes.DeleteWhileOpen(ctx, id)
	}
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		case repository.ErrControlClosed:
			return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type geocodeReq struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeocodeDeparture handles POST /v1/routes/:id/geocode-departure.
func (h *RouteHandler) GeocodeDeparture(c echo.Context) error {
	return h.geocodeSide(c, true)
}

// GeocodeArrival handles POST /v1/routes/:id/geocode-arrival.
func (h *RouteHandler) GeocodeArrival(c echo.Context) error {
	return h.geocodeSide(c, false)
}

// geocodeSide reverse-geocodes the given coordinates and stores the
// resulting triple on one side of the leg. The provider is best-effort:
// when it yields no address the endpoint still answers 200, persists
// nothing, and reports address null so the client can retry later.
func (h *RouteHandler) geocodeSide(c echo.Context, departure bool) error {
	actor := actorFrom(c)
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req geocodeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coordinates"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	_, ownerID, status, err := h.Routes.GetWithControl(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	res := policy.Resource{OwnerID: ownerID, Open: status == model.ControlOpen}
	if d := policy.CanPerform(actor, policy.EditRoute, res); !d.Allowed {
		httpStatus := http.StatusForbidden
		if actor.ID == ownerID && status != model.ControlOpen {
			httpStatus = http.StatusConflict
		}
		return c.JSON(httpStatus, echo.Map{"error": d.Reason})
	}

	addr, _ := h.Geo.ReverseGeocode(ctx, req.Lat, req.Lon)
	if addr == "" {
		return c.JSON(http.StatusOK, echo.Map{
			"address": nil,
			"message": "address unavailable, nothing stored",
		})
	}

	if departure {
		err = h.Routes.SetDepartureLocation(ctx, id, addr, req.Lat, req.Lon)
	} else {
		err = h.Routes.SetArrivalLocation(ctx, id, addr, req.Lat, req.Lon)
	}
	if err != nil {
		if err == repository.ErrControlClosed {
			return c.JSON(http.StatusConflict, echo.Map{"error": "usage control is not open"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save location failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"address": addr,
		"lat":     req.Lat,
		"lon":     req.Lon,
	})
}
