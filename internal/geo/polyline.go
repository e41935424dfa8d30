package geo

import (
	"encoding/json"
	"fmt"

	"github.com/apexline/simcore/pkg/core"
)

// ParsePolyline parses a JSON array of coordinates into route waypoints.
// Input format: "[[lng1,lat1],[lng2,lat2],...]"
func ParsePolyline(input string) ([]core.GeoPoint, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	waypoints := make([]core.GeoPoint, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		waypoints[i] = core.GeoPoint{Lng: coord[0], Lat: coord[1]}
	}

	return waypoints, nil
}
