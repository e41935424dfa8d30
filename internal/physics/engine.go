package physics

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/apexline/simcore/internal/geo"
	"github.com/apexline/simcore/internal/input"
	"github.com/apexline/simcore/pkg/core"
)

// State is the vehicle state after a tick. Position and heading live in
// route coordinates (lng/lat degrees, heading in radians counterclockwise
// from east).
type State struct {
	Position      geom.XY
	Heading       float64
	Roll          float64
	Speed         float64
	RotationSpeed float64
	OffTrack      bool
	Complete      bool
}

// Engine integrates vehicle motion from shaped control impulses. It is
// not safe for concurrent use; the simulation loop is its only caller.
type Engine struct {
	tuning Tuning

	position      geom.XY
	heading       float64
	roll          float64
	speed         float64
	rotationSpeed float64

	forwardImpulse  float64
	backwardImpulse float64
	boostTime       float64

	offTrack bool
	complete bool

	onOffTrack func()
}

// NewEngine places the vehicle at start with the given heading.
func NewEngine(tuning Tuning, start core.GeoPoint, heading float64) *Engine {
	return &Engine{
		tuning:   tuning,
		position: geo.XY(start),
		heading:  wrapHeading(heading),
	}
}

// OnOffTrack registers a callback fired once per transition from
// on-track to off-track.
func (e *Engine) OnOffTrack(fn func()) { e.onOffTrack = fn }

// MarkComplete freezes drive input. Motion decays to a stop over the
// following ticks.
func (e *Engine) MarkComplete() { e.complete = true }

// Reset returns the vehicle to start, clearing all accumulated motion.
func (e *Engine) Reset(start core.GeoPoint, heading float64) {
	e.position = geo.XY(start)
	e.heading = wrapHeading(heading)
	e.roll = 0
	e.speed = 0
	e.rotationSpeed = 0
	e.forwardImpulse = 0
	e.backwardImpulse = 0
	e.boostTime = 0
	e.offTrack = false
	e.complete = false
}

// State reports the current vehicle state.
func (e *Engine) State() State {
	return State{
		Position:      e.position,
		Heading:       e.heading,
		Roll:          e.roll,
		Speed:         e.speed,
		RotationSpeed: e.rotationSpeed,
		OffTrack:      e.offTrack,
		Complete:      e.complete,
	}
}

// Pose converts the current state to the wire representation: renderer
// axes (x longitude, z latitude), yaw and roll in degrees. Elevation
// and pitch are unused on flat courses.
func (e *Engine) Pose() (core.Position, core.Rotation) {
	p := geo.Point(e.position)
	return core.Position{X: p.Lng, Z: p.Lat},
		core.Rotation{Yaw: e.heading * 180 / math.Pi, Roll: e.roll * 180 / math.Pi}
}

// Update advances the vehicle by dt seconds. The corridor bounds lateral
// excursion; a nil or unbounded corridor disables the check.
func (e *Engine) Update(dt float64, sample input.Sample, corridor *geo.Corridor) State {
	if dt <= 0 {
		return e.State()
	}
	if dt > 0.1 {
		dt = 0.1
	}
	t := e.tuning

	if e.complete {
		sample = input.Sample{}
	}

	e.forwardImpulse = shapeImpulse(t, e.forwardImpulse, sample.Controls.Forward, sample.ForwardEdge, sample.ForwardHold, dt)
	e.backwardImpulse = shapeImpulse(t, e.backwardImpulse, sample.Controls.Backward, sample.BackwardEdge, sample.BackwardHold, dt)

	// Longitudinal: throttle builds boost, anything else bleeds it.
	switch {
	case e.forwardImpulse > 0:
		e.boostTime = math.Min(e.boostTime+dt, t.BoostCap)
		bonus := 1 + t.BoostFactor*e.boostTime/t.BoostCap
		e.speed += t.Acceleration * e.forwardImpulse * bonus * dt
	case e.backwardImpulse > 0:
		e.boostTime = 0
		e.speed -= t.ReverseAccel * e.backwardImpulse * dt
	default:
		e.boostTime = math.Max(0, e.boostTime-t.BoostDecay*dt)
		e.speed *= t.IdleDecay
	}

	topSpeed := t.InitialTopSpeed + (t.MaxTopSpeed-t.InitialTopSpeed)*e.boostTime/t.BoostCap
	e.speed = clamp(e.speed, -t.MaxReverseSpeed, topSpeed)

	// Steering authority shrinks as speed grows.
	authority := t.SteeringRate / (1 + math.Abs(e.speed)/t.SteeringDamping)
	if sample.Controls.Left {
		e.rotationSpeed += authority * dt
	}
	if sample.Controls.Right {
		e.rotationSpeed -= authority * dt
	}
	maxRot := t.MaxRotationSpeed / (1 + math.Abs(e.speed)/t.ReferenceSpeed)
	e.rotationSpeed = clamp(e.rotationSpeed, -maxRot, maxRot)
	e.rotationSpeed *= t.RotationDecay
	if math.Abs(e.speed) < t.MinTurnSpeed {
		e.rotationSpeed = 0
	}

	// Hard turns scrub speed.
	e.speed *= 1 - t.RotationPenalty*math.Abs(e.rotationSpeed)

	speedRatio := math.Abs(e.speed) / t.ReferenceSpeed
	e.heading = wrapHeading(e.heading + e.rotationSpeed*speedRatio)
	e.roll = t.RollFactor * e.rotationSpeed * speedRatio

	drag := dt * (t.DragBase + t.DragLinear*math.Abs(e.speed) + t.DragQuadratic*e.speed*e.speed)
	if drag > 1 {
		drag = 1
	}
	e.speed *= 1 - drag

	displacement := geom.XY{X: math.Cos(e.heading), Y: math.Sin(e.heading)}.Scale(e.speed * dt)
	tentative := e.position.Add(displacement)

	if corridor != nil && corridor.Bounded() && !corridor.Contains(tentative) {
		e.speed *= t.OffTrackSpeedScale
		e.position = e.position.Add(displacement.Scale(t.BounceBackFactor))
		if !e.offTrack {
			e.offTrack = true
			if e.onOffTrack != nil {
				e.onOffTrack()
			}
		}
	} else {
		e.position = tentative
		e.offTrack = false
	}

	return e.State()
}

// shapeImpulse applies the press/hold/release envelope: seed on the
// rising edge, hold through the dwell, ramp toward 1.0 while held, decay
// geometrically after release and snap to zero below epsilon.
func shapeImpulse(t Tuning, impulse float64, held, edge bool, hold, dt float64) float64 {
	switch {
	case edge:
		return t.ImpulseSeed
	case held:
		if hold < t.ImpulseDwell {
			return impulse
		}
		return math.Min(1, impulse+t.ImpulseRamp*dt)
	default:
		impulse *= t.ImpulseDecay
		if impulse < t.ImpulseEpsilon {
			return 0
		}
		return impulse
	}
}

func wrapHeading(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
