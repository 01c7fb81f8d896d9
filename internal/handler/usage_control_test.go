package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/model"
	"github.com/iliyamo/fleet-usage-control/internal/policy"
)

func filterContext(t *testing.T, query string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/usage-controls/abertos"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestOpenDriverFilter(t *testing.T) {
	gestor := policy.Actor{ID: 3, Role: model.RoleGestor}
	driver := policy.Actor{ID: 9, Role: model.RoleMotorista}

	cases := []struct {
		name    string
		actor   policy.Actor
		query   string
		want    uint64
		wantErr bool
	}{
		{"staff without filter sees all", gestor, "", 0, false},
		{"staff narrows to one driver", gestor, "?driver=5", 5, false},
		{"staff with garbage filter", gestor, "?driver=abc", 0, true},
		{"staff with zero filter", gestor, "?driver=0", 0, true},
		{"driver pinned to own id", driver, "", 9, false},
		{"driver cannot filter others", driver, "?driver=5", 9, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := openDriverFilter(filterContext(t, tc.query), tc.actor)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("want error, got driver %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("driver filter = %d, want %d", got, tc.want)
			}
		})
	}
}
