// Package geocode wraps the Google Maps Geocoding API for reverse
// lookups. The provider is strictly best-effort: any failure (missing
// key, transport error, non-OK provider status, zero results) yields an
// empty address and a nil error, so route logging keeps working when the
// provider does not.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client performs reverse geocoding lookups.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a Client. An empty apiKey disables lookups (every call
// returns an empty address); an empty baseURL selects the Google endpoint.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// response mirrors the slice of the provider payload we care about.
type response struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

// ReverseGeocode resolves coordinates to a formatted address in pt-BR.
// The empty string means "no address available", never an error the
// caller must handle.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if c.apiKey == "" {
		return "", nil
	}

	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", lat, lon))
	q.Set("key", c.apiKey)
	q.Set("language", "pt-BR")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil
	}
	if body.Status != "OK" || len(body.Results) == 0 {
		return "", nil
	}
	return body.Results[0].FormattedAddress, nil
}
