package core

// Position is a 3D position in renderer coordinates.
// X carries longitude, Z latitude, Y elevation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation holds orientation in degrees. Yaw carries the vehicle heading.
type Rotation struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// PlayerState is a player's pose as exchanged with the party server.
type PlayerState struct {
	UserID   int      `json:"user_id"`
	Position Position `json:"position"`
	Rotation Rotation `json:"rotation"`
}
