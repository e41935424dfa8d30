// Package sim drives the per-frame race loop: sample input, integrate
// the vehicle, evaluate race progress, broadcast the pose at the
// configured rate, and hand the accumulated events to the renderer.
package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/apexline/simcore/internal/events"
	"github.com/apexline/simcore/internal/geo"
	"github.com/apexline/simcore/internal/input"
	"github.com/apexline/simcore/internal/physics"
	"github.com/apexline/simcore/internal/race"
	"github.com/apexline/simcore/pkg/core"
)

// maxTickDelta caps integration when the host stalls (tab hidden,
// debugger pause). Matches the engine's own clamp.
const maxTickDelta = 100 * time.Millisecond

// InputSource feeds the current control booleans each frame.
type InputSource interface {
	Read() input.Controls
}

// SyncClient is the slice of the session client the loop drives.
type SyncClient interface {
	SendPose(core.Position, core.Rotation) error
	StartRace() error
}

// ResultSink persists a finished race.
type ResultSink interface {
	SaveResult(core.RaceResult) error
}

// Config carries the loop parameters.
type Config struct {
	Course            core.Course
	CorridorHalfWidth float64
	UserID            int
	UpdateRate        float64       // pose broadcasts per second
	WarnDuration      time.Duration // off-track warning lifetime
}

// Report is the per-tick outward snapshot for rendering and UI.
type Report struct {
	Vehicle         physics.State
	Progress        race.Progress
	OffTrackWarning bool
	Events          []events.Event
}

// Loop owns the engine, the tracker and the tick cadence. Single
// goroutine; inbound network events are observed via the stream between
// ticks, never concurrently with physics.
type Loop struct {
	cfg      Config
	engine   *physics.Engine
	tracker  *race.Tracker
	corridor *geo.Corridor
	source   InputSource
	client   SyncClient
	stream   *events.Stream
	results  ResultSink
	logger   *slog.Logger

	inputs        *input.Tracker
	lastTick      time.Time
	lastSend      time.Time
	sendEvery     time.Duration
	offTrackCount int
	warnUntil     time.Time
	warnActive    bool
	saved         bool
}

// NewLoop assembles the loop. The stream must be the same one the
// session client publishes to, so network events surface in tick order.
func NewLoop(cfg Config, client SyncClient, source InputSource, stream *events.Stream, logger *slog.Logger) *Loop {
	if cfg.UpdateRate <= 0 {
		cfg.UpdateRate = 10
	}
	if cfg.WarnDuration <= 0 {
		cfg.WarnDuration = 2 * time.Second
	}
	l := &Loop{
		cfg:       cfg,
		corridor:  geo.NewCorridor(cfg.Course.Waypoints(), cfg.CorridorHalfWidth),
		source:    source,
		client:    client,
		stream:    stream,
		logger:    logger,
		inputs:    input.NewTracker(),
		sendEvery: time.Duration(float64(time.Second) / cfg.UpdateRate),
	}
	l.engine = physics.NewEngine(physics.DefaultTuning(), cfg.Course.Start, l.startHeading())
	l.tracker = race.NewTracker(cfg.Course, stream, nil)
	l.engine.OnOffTrack(func() {
		l.offTrackCount++
		l.warnUntil = l.lastTick.Add(l.cfg.WarnDuration)
		l.warnActive = true
		l.stream.Push(events.OffTrackEntered{At: l.lastTick})
	})
	return l
}

// SetResultSink installs the persistence target for finished races.
func (l *Loop) SetResultSink(sink ResultSink) { l.results = sink }

// startHeading aims the vehicle down the first route segment.
func (l *Loop) startHeading() float64 {
	wps := l.cfg.Course.Waypoints()
	if len(wps) < 2 {
		return 0
	}
	return geo.Bearing(wps[0], wps[1])
}

// StartRace asks the server to start the race for the party. The
// tracker arms when the RaceStarted broadcast comes back; without a
// session the transition is applied locally so solo play still works.
func (l *Loop) StartRace() {
	if l.client != nil {
		if err := l.client.StartRace(); err == nil {
			return
		}
		l.logger.Warn("race start not broadcast, starting locally")
	}
	l.stream.Push(events.RaceStarted{})
}

// Restart returns the race and the vehicle to their initial state.
func (l *Loop) Restart() {
	l.tracker.Restart()
	l.engine.Reset(l.cfg.Course.Start, l.startHeading())
	l.inputs.Reset()
	l.offTrackCount = 0
	l.warnActive = false
	l.saved = false
}

// Tick advances the simulation to now and returns the outward report.
func (l *Loop) Tick(now time.Time) Report {
	var dt float64
	if !l.lastTick.IsZero() {
		delta := now.Sub(l.lastTick)
		if delta > maxTickDelta {
			delta = maxTickDelta
		}
		dt = delta.Seconds()
	}
	l.lastTick = now

	sample := l.inputs.Sample(l.source.Read(), dt)
	st := l.engine.Update(dt, sample, l.corridor)

	progress := l.tracker.Evaluate(geo.Point(st.Position))
	if progress.Status == race.Complete && !st.Complete {
		l.engine.MarkComplete()
		st = l.engine.State()
	}
	l.persistResult(progress)

	if l.client != nil && now.Sub(l.lastSend) >= l.sendEvery {
		l.lastSend = now
		pos, rot := l.engine.Pose()
		if err := l.client.SendPose(pos, rot); err != nil {
			l.logger.Debug("pose broadcast skipped", "error", err)
		}
	}

	if l.warnActive && now.After(l.warnUntil) {
		l.warnActive = false
		l.stream.Push(events.OffTrackExpired{})
	}

	batch := l.stream.Drain()
	for _, ev := range batch {
		if _, ok := ev.(events.RaceStarted); ok && l.tracker.Status() == race.NotStarted {
			l.tracker.Start()
			l.logger.Info("race started", "course", l.cfg.Course.Name)
		}
	}

	return Report{
		Vehicle:         st,
		Progress:        progress,
		OffTrackWarning: l.warnActive,
		Events:          batch,
	}
}

// OffTrackCount reports corridor excursions since the last restart.
func (l *Loop) OffTrackCount() int { return l.offTrackCount }

func (l *Loop) persistResult(progress race.Progress) {
	if l.results == nil || l.saved || progress.Status != race.Complete {
		return
	}
	result, ok := l.tracker.Result(l.cfg.UserID, l.offTrackCount)
	if !ok {
		return
	}
	l.saved = true
	if err := l.results.SaveResult(result); err != nil {
		l.logger.Error("saving race result", "error", err)
		return
	}
	l.logger.Info("race result saved",
		"course", result.CourseName, "total", result.Total, "offTrack", result.OffTrackCount)
}

// Run drives Tick at the frame interval until the context ends. Reports
// go to onTick, which runs on the loop goroutine.
func (l *Loop) Run(ctx context.Context, frame time.Duration, onTick func(Report)) error {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			report := l.Tick(now)
			if onTick != nil {
				onTick(report)
			}
		}
	}
}
