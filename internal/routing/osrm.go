// Package routing resolves drivable paths for clusters through an
// OSRM-compatible routing service, degrading to straight-line paths
// when the service is unavailable.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetroute/internal/model"
)

const (
	defaultProfile     = "driving"
	defaultSnapRadiusM = 50
)

// Client is a minimal OSRM route-service client. It issues a single
// point-to-point route request per call; retries are the caller's
// concern (the resolver deliberately performs none).
type Client struct {
	baseURL     string
	profile     string
	snapRadiusM int
	http        *http.Client
}

// NewClient builds a Client for an OSRM base URL such as
// "https://router.project-osrm.org". The timeout bounds the whole
// request including body read.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		profile:     defaultProfile,
		snapRadiusM: defaultSnapRadiusM,
		http:        &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// Route fetches a driving path through the waypoints in order. OSRM
// takes coordinates as lng,lat pairs; the per-point radius widens
// snapping to the road network.
func (c *Client) Route(ctx context.Context, waypoints []model.GeoPoint) (model.ResolvedPath, error) {
	if len(waypoints) < 2 {
		return model.ResolvedPath{}, errors.New("route needs at least two waypoints")
	}

	coords := make([]string, len(waypoints))
	radiuses := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
		radiuses[i] = strconv.Itoa(c.snapRadiusM)
	}
	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson&radiuses=%s",
		c.baseURL, c.profile, strings.Join(coords, ";"), strings.Join(radiuses, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.ResolvedPath{}, fmt.Errorf("create route request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.ResolvedPath{}, fmt.Errorf("route request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return model.ResolvedPath{}, fmt.Errorf("route service returned %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.ResolvedPath{}, fmt.Errorf("decode route response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return model.ResolvedPath{}, fmt.Errorf("no route found (code %q)", body.Code)
	}

	best := body.Routes[0]
	path := make([]model.GeoPoint, 0, len(best.Geometry.Coordinates))
	for _, c := range best.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		path = append(path, model.GeoPoint{Lat: c[1], Lng: c[0]})
	}
	if len(path) == 0 {
		return model.ResolvedPath{}, errors.New("route geometry empty")
	}

	return model.ResolvedPath{
		Path:        path,
		DistanceKm:  best.Distance / 1000.0,
		DurationMin: best.Duration / 60.0,
		Source:      SourceOSRM,
	}, nil
}
