// Package input tracks directional control state across frames: rising
// edges for impulse seeding and per-direction hold durations for boost
// shaping. The input source only supplies the four booleans.
package input

// Controls is one frame of directional input.
type Controls struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
}

// Sample is a frame of input enriched with edge and hold information.
type Sample struct {
	Controls

	// Rising edges since the previous frame.
	ForwardEdge  bool
	BackwardEdge bool

	// Seconds each direction has been held continuously.
	ForwardHold  float64
	BackwardHold float64
	LeftHold     float64
	RightHold    float64
}

// Tracker keeps the previous-frame snapshot and hold counters.
// One Tracker per vehicle; not safe for concurrent use.
type Tracker struct {
	previous Controls

	forwardHold  float64
	backwardHold float64
	leftHold     float64
	rightHold    float64
}

// NewTracker creates a tracker with all controls released.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Sample advances the tracker by dt with the current controls and returns
// the enriched frame. Hold counters accumulate while held and reset to
// zero on release.
func (t *Tracker) Sample(c Controls, dt float64) Sample {
	s := Sample{
		Controls:     c,
		ForwardEdge:  c.Forward && !t.previous.Forward,
		BackwardEdge: c.Backward && !t.previous.Backward,
	}

	t.forwardHold = advanceHold(t.forwardHold, c.Forward, dt)
	t.backwardHold = advanceHold(t.backwardHold, c.Backward, dt)
	t.leftHold = advanceHold(t.leftHold, c.Left, dt)
	t.rightHold = advanceHold(t.rightHold, c.Right, dt)

	s.ForwardHold = t.forwardHold
	s.BackwardHold = t.backwardHold
	s.LeftHold = t.leftHold
	s.RightHold = t.rightHold

	t.previous = c
	return s
}

// Reset clears the previous snapshot and all hold counters.
func (t *Tracker) Reset() {
	*t = Tracker{}
}

func advanceHold(hold float64, held bool, dt float64) float64 {
	if !held {
		return 0
	}
	return hold + dt
}
