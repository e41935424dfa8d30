package core

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Course is the route for a race: an ordered polyline from start through
// the checkpoints to the finish, plus the tolerances used by the
// simulation. Immutable for the duration of a race.
type Course struct {
	Name        string     `json:"name"`
	Start       GeoPoint   `json:"start"`
	Checkpoints []GeoPoint `json:"checkpoints"`
	Finish      GeoPoint   `json:"finish"`

	// HalfWidth is the corridor tolerance in degrees either side of the
	// route polyline. CheckpointRadius and FinishRadius gate progress
	// detection. Zero values fall back to the configured defaults.
	HalfWidth        float64 `json:"halfWidth"`
	CheckpointRadius float64 `json:"checkpointRadius"`
	FinishRadius     float64 `json:"finishRadius"`
}

// Waypoints returns the full route polyline, start to finish.
func (c *Course) Waypoints() []GeoPoint {
	pts := make([]GeoPoint, 0, len(c.Checkpoints)+2)
	pts = append(pts, c.Start)
	pts = append(pts, c.Checkpoints...)
	pts = append(pts, c.Finish)
	return pts
}
