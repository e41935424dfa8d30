package core

import "time"

// RaceResult is a completed race for one driver.
type RaceResult struct {
	CourseName string
	UserID     int
	StartedAt  time.Time
	FinishedAt time.Time
	Total      time.Duration

	// Splits holds the elapsed time at each checkpoint, in course order.
	Splits []time.Duration

	OffTrackCount int
}
