package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"rvnl.in/fittrack/models"
)

// DepotBoundary is the polygonal section boundary installers must be
// inside when they record an install location. Loaded once from the
// DEPOT_BOUNDARY env var as a JSON list of {lat,lng} vertices; when
// unset, the check is disabled.
type DepotBoundary struct {
	Coordinates []models.GPS `json:"coordinates"`
	Name        string       `json:"name,omitempty"`
}

var (
	boundaryOnce sync.Once
	boundaryPoly orb.Polygon
	boundaryErr  error
)

// ParseBoundary validates and converts a boundary definition into an orb
// polygon, auto-closing the ring when the caller left it open.
func ParseBoundary(raw string) (orb.Polygon, error) {
	var b DepotBoundary
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("invalid boundary JSON: %w", err)
	}
	if len(b.Coordinates) < 3 {
		return nil, errors.New("boundary must have at least 3 coordinates to form a polygon")
	}

	ring := make(orb.Ring, 0, len(b.Coordinates)+1)
	for _, c := range b.Coordinates {
		if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return nil, fmt.Errorf("coordinate out of range: %v", c)
		}
		ring = append(ring, orb.Point{c.Lng, c.Lat})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}

// WithinDepotBoundary reports whether the point falls inside the
// configured depot boundary. Always true when no boundary is configured.
func WithinDepotBoundary(g models.GPS) (bool, error) {
	boundaryOnce.Do(func() {
		raw := os.Getenv("DEPOT_BOUNDARY")
		if raw == "" {
			return
		}
		boundaryPoly, boundaryErr = ParseBoundary(raw)
	})
	if boundaryErr != nil {
		return false, boundaryErr
	}
	if boundaryPoly == nil {
		return true, nil
	}
	return PointInBoundary(boundaryPoly, g), nil
}

// PointInBoundary is the pure containment check behind
// WithinDepotBoundary.
func PointInBoundary(poly orb.Polygon, g models.GPS) bool {
	return planar.PolygonContains(poly, orb.Point{g.Lng, g.Lat})
}
