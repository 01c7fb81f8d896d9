package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReverseGeocodeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("language"); got != "pt-BR" {
			t.Errorf("language = %q, want pt-BR", got)
		}
		if got := r.URL.Query().Get("key"); got != "k" {
			t.Errorf("key = %q, want k", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Av. Paulista, 1000 - São Paulo"}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second)
	addr, err := c.ReverseGeocode(context.Background(), -23.561, -46.655)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if addr != "Av. Paulista, 1000 - São Paulo" {
		t.Fatalf("addr = %q", addr)
	}
}

func TestReverseGeocodeZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second)
	addr, err := c.ReverseGeocode(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if addr != "" {
		t.Fatalf("addr = %q, want empty", addr)
	}
}

func TestReverseGeocodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second)
	addr, err := c.ReverseGeocode(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if addr != "" {
		t.Fatalf("addr = %q, want empty", addr)
	}
}

func TestReverseGeocodeWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called without an API key")
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, time.Second)
	addr, err := c.ReverseGeocode(context.Background(), 1, 1)
	if err != nil || addr != "" {
		t.Fatalf("got (%q, %v), want empty and nil", addr, err)
	}
}

func TestReverseGeocodeUnreachable(t *testing.T) {
	c := NewClient("k", "http://127.0.0.1:1", 200*time.Millisecond)
	addr, err := c.ReverseGeocode(context.Background(), 1, 1)
	if err != nil || addr != "" {
		t.Fatalf("got (%q, %v), want empty and nil", addr, err)
	}
}
