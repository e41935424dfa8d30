package physics

// Tuning holds the vehicle dynamics constants. Linear quantities are in
// degrees (route coordinates are lng/lat), speeds in degrees per second.
type Tuning struct {
	// Impulse shaping
	ImpulseSeed    float64 // value seeded on a rising edge
	ImpulseDwell   float64 // seconds held before the ramp starts
	ImpulseRamp    float64 // ramp rate toward 1.0, per second
	ImpulseDecay   float64 // multiplicative decay per tick after release
	ImpulseEpsilon float64 // snap-to-zero threshold

	// Longitudinal
	Acceleration    float64 // base forward acceleration
	ReverseAccel    float64 // braking/reverse acceleration
	MaxReverseSpeed float64
	InitialTopSpeed float64
	MaxTopSpeed     float64
	BoostCap        float64 // seconds of sustained throttle for full boost
	BoostFactor     float64 // acceleration bonus at full boost
	BoostDecay      float64 // boost-time decay per second without throttle
	IdleDecay       float64 // multiplicative speed decay per tick without input

	// Drag, combined multiplicatively each tick
	DragBase      float64
	DragLinear    float64
	DragQuadratic float64

	// Steering
	SteeringRate       float64 // rotation-speed gain per second at standstill
	SteeringDamping    float64 // speed at which steering authority halves
	MaxRotationSpeed   float64 // radians per tick at reference speed
	RotationDecay      float64 // multiplicative rotation-speed decay per tick
	MinTurnSpeed       float64 // below this speed the vehicle cannot turn
	RotationPenalty    float64 // speed scrub per radian of rotation speed
	ReferenceSpeed     float64 // speed ratio denominator for heading/roll
	RollFactor         float64 // visual roll per rotation-speed unit
	OffTrackSpeedScale float64 // speed multiplier on corridor excursion
	BounceBackFactor   float64 // fraction of displacement committed off-track
}

// DefaultTuning returns the tuning used by the game client. The scales
// suit street-sized courses a few thousandths of a degree long.
func DefaultTuning() Tuning {
	return Tuning{
		ImpulseSeed:    0.2,
		ImpulseDwell:   0.1,
		ImpulseRamp:    2.0,
		ImpulseDecay:   0.7,
		ImpulseEpsilon: 0.01,

		Acceleration:    1.2e-3,
		ReverseAccel:    8e-4,
		MaxReverseSpeed: 5e-4,
		InitialTopSpeed: 1.5e-3,
		MaxTopSpeed:     2.6e-3,
		BoostCap:        4.0,
		BoostFactor:     0.5,
		BoostDecay:      1.5,
		IdleDecay:       0.985,

		DragBase:      0.05,
		DragLinear:    20.0,
		DragQuadratic: 2.0e4,

		SteeringRate:       0.9,
		SteeringDamping:    1.2e-3,
		MaxRotationSpeed:   0.12,
		RotationDecay:      0.88,
		MinTurnSpeed:       5e-5,
		RotationPenalty:    0.08,
		ReferenceSpeed:     1.5e-3,
		RollFactor:         0.6,
		OffTrackSpeedScale: 0.2,
		BounceBackFactor:   0.1,
	}
}
