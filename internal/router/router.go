// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/handler"
	"github.com/iliyamo/fleet-usage-control/internal/middleware"
	"github.com/iliyamo/fleet-usage-control/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotating refresh: validates the old token, revokes it, issues a pair.
	g.POST("/refresh", a.Refresh)
	// Non-rotating: returns a fresh access token only.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout works without JWT middleware: a refresh token in the body is
	// always enough to close that session.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := protectedGroup(e, jwtSecret)
	auth.GET("/me", a.Me)
}

// RegisterUsers registers account administration and the avatar upload.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string) {
	auth := protectedGroup(e, jwtSecret)

	// Every authenticated user manages their own avatar.
	auth.POST("/users/me/avatar", u.UploadAvatar)
	auth.DELETE("/users/me/avatar", u.DeleteAvatar)

	staff := protectedGroup(e, jwtSecret)
	staff.Use(middleware.RequireRole(model.RoleAdmin, model.RoleGestor, model.RoleOperador))
	staff.GET("/users", u.List)
	staff.GET("/users/:id", u.Get)

	admin := protectedGroup(e, jwtSecret)
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.PATCH("/users/:id", u.Update)
	admin.POST("/users/:id/activate", u.Activate)
	admin.POST("/users/:id/deactivate", u.Deactivate)
	admin.DELETE("/users/:id", u.Delete)
}

// RegisterVehicles registers the vehicle registry. CRUD is admin-only;
// listing is open to all authenticated roles so drivers can pick a
// vehicle to check out.
func RegisterVehicles(e *echo.Echo, v *handler.VehicleHandler, jwtSecret string) {
	auth := protectedGroup(e, jwtSecret)
	auth.GET("/vehicles", v.List)
	auth.GET("/vehicles/available", v.ListAvailable)
	auth.GET("/vehicles/:id", v.Get)

	admin := protectedGroup(e, jwtSecret)
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/vehicles", v.Create)
	admin.PATCH("/vehicles/:id", v.Update)
	admin.DELETE("/vehicles/:id", v.Delete)
}

// RegisterUsageControls registers the checkout lifecycle and the route
// legs. Fine-grained ownership rules live in the policy table inside the
// handlers; the router only requires a valid token with a known role.
func RegisterUsageControls(e *echo.Echo, uc *handler.UsageControlHandler, rt *handler.RouteHandler, jwtSecret string) {
	auth := protectedGroup(e, jwtSecret)
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleGestor, model.RoleOperador, model.RoleMotorista))

	auth.POST("/usage-controls", uc.Create)
	auth.GET("/usage-controls", uc.List)
	auth.GET("/usage-controls/meus", uc.ListMine)
	auth.GET("/usage-controls/abertos", uc.ListOpen)
	auth.GET("/usage-controls/:id", uc.Get)
	auth.POST("/usage-controls/:id/finalize", uc.Finalize)
	auth.POST("/usage-controls/:id/cancel", uc.Cancel)
	auth.GET("/usage-controls/:id/routes", rt.ListByControl)

	auth.POST("/routes", rt.Create)
	auth.GET("/routes/:id", rt.Get)
	auth.PATCH("/routes/:id", rt.Update)
	auth.DELETE("/routes/:id", rt.Delete)
	auth.POST("/routes/:id/geocode-departure", rt.GeocodeDeparture)
	auth.POST("/routes/:id/geocode-arrival", rt.GeocodeArrival)
}

func protectedGroup(e *echo.Echo, jwtSecret string) *echo.Group {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	return g
}
