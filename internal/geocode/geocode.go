// Package geocode resolves human-readable addresses into coordinates.
//
// The HTTP client targets the Nominatim search API (OpenStreetMap), but any
// endpoint speaking the same format works — tests point it at a local
// httptest server, and GEOCODER_URL can point production at a self-hosted
// instance to avoid the public rate limits.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/places-api/internal/apperror"
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Geocoder resolves an address into coordinates.
//
// Implementations must return a validation-kind error (apperror.ErrValidation)
// when the address simply cannot be resolved, and a plain error for transport
// failures, so callers can map them to 422 vs 500.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// Client is a Geocoder backed by a Nominatim-compatible HTTP endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a geocoding client for the given base URL
// (e.g. "https://nominatim.openstreetmap.org").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// searchResult is the subset of the Nominatim response we care about.
// Nominatim returns lat/lon as JSON strings, not numbers.
type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves the address via GET /search?format=json&limit=1&q=<address>.
//
// An address Nominatim knows nothing about yields an empty result array, which
// we surface as a validation error: the caller sent an address that cannot be
// resolved, and no place must be created for it.
func (c *Client) Geocode(ctx context.Context, address string) (Coordinates, error) {
	endpoint := fmt.Sprintf("%s/search?format=json&limit=1&q=%s",
		c.baseURL, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: building request: %w", err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", "places-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: requesting %q: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Coordinates{}, fmt.Errorf("geocode: decoding response: %w", err)
	}

	if len(results) == 0 {
		return Coordinates{}, apperror.ValidationFailed("address",
			fmt.Sprintf("could not find a location for the address %q", address))
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: parsing latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: parsing longitude %q: %w", results[0].Lon, err)
	}

	return Coordinates{Lat: lat, Lng: lng}, nil
}
