package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/policy"
)

// getUserID pulls the authenticated user ID out of the context. JWT
// numeric claims decode as float64; string subjects are parsed for
// robustness. Zero means unauthenticated.
func getUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v)
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// getRole returns the role claim, or "" when absent.
func getRole(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}

// actorFrom builds the policy actor for the current request.
func actorFrom(c echo.Context) policy.Actor {
	return policy.Actor{ID: getUserID(c), Role: getRole(c)}
}

// paramID parses a numeric path parameter; 0 signals a bad value.
func paramID(c echo.Context, name string) uint64 {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
