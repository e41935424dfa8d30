package sim

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexline/simcore/internal/events"
	"github.com/apexline/simcore/internal/input"
	"github.com/apexline/simcore/internal/race"
	"github.com/apexline/simcore/pkg/core"
)

type scriptSource struct {
	controls input.Controls
}

func (s *scriptSource) Read() input.Controls { return s.controls }

type fakeClient struct {
	sends     int
	starts    int
	startFail bool
}

func (f *fakeClient) SendPose(core.Position, core.Rotation) error {
	f.sends++
	return nil
}

func (f *fakeClient) StartRace() error {
	f.starts++
	if f.startFail {
		return errors.New("no session")
	}
	return nil
}

type fakeSink struct {
	saved []core.RaceResult
}

func (f *fakeSink) SaveResult(r core.RaceResult) error {
	f.saved = append(f.saved, r)
	return nil
}

func straightCourse() core.Course {
	return core.Course{
		Name:             "straightaway",
		Start:            core.GeoPoint{Lng: -81.199, Lat: 28.602},
		Finish:           core.GeoPoint{Lng: -81.195, Lat: 28.605},
		CheckpointRadius: 1.5e-4,
		FinishRadius:     1.5e-4,
	}
}

func newTestLoop(t *testing.T, cfg Config, client SyncClient, src InputSource) (*Loop, *events.Stream) {
	t.Helper()
	stream := events.NewStream()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewLoop(cfg, client, src, stream, logger), stream
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func runTicks(l *Loop, base time.Time, n int, dt time.Duration) []Report {
	reports := make([]Report, 0, n)
	for i := 1; i <= n; i++ {
		reports = append(reports, l.Tick(base.Add(time.Duration(i)*dt)))
	}
	return reports
}

func TestLoop_PoseBroadcastThrottled(t *testing.T) {
	client := &fakeClient{}
	src := &scriptSource{controls: input.Controls{Forward: true}}
	loop, _ := newTestLoop(t, Config{
		Course:            straightCourse(),
		CorridorHalfWidth: 3e-4,
		UpdateRate:        10,
	}, client, src)

	base := time.Unix(1_750_000_000, 0)
	runTicks(loop, base, 100, 16*time.Millisecond) // 1.6 simulated seconds

	// ~10 Hz over 1.6s, not one send per tick.
	assert.GreaterOrEqual(t, client.sends, 14)
	assert.LessOrEqual(t, client.sends, 18)
}

func TestLoop_RaceStartFallsBackToLocal(t *testing.T) {
	client := &fakeClient{startFail: true}
	src := &scriptSource{}
	loop, _ := newTestLoop(t, Config{Course: straightCourse(), CorridorHalfWidth: 3e-4}, client, src)

	loop.StartRace()
	loop.Tick(time.Unix(1_750_000_000, 0))
	assert.Equal(t, 1, client.starts)
	assert.Equal(t, race.InProgress, loop.Tick(time.Unix(1_750_000_000, 0).Add(16*time.Millisecond)).Progress.Status)
}

func TestLoop_RaceStartWaitsForBroadcast(t *testing.T) {
	client := &fakeClient{}
	src := &scriptSource{}
	loop, stream := newTestLoop(t, Config{Course: straightCourse(), CorridorHalfWidth: 3e-4}, client, src)

	base := time.Unix(1_750_000_000, 0)
	loop.StartRace()
	rep := loop.Tick(base)
	assert.Equal(t, race.NotStarted, rep.Progress.Status, "tracker arms only on the server broadcast")

	stream.Push(events.RaceStarted{})
	loop.Tick(base.Add(16 * time.Millisecond))
	rep = loop.Tick(base.Add(32 * time.Millisecond))
	assert.Equal(t, race.InProgress, rep.Progress.Status)
}

func TestLoop_FullRaceToCompletion(t *testing.T) {
	client := &fakeClient{startFail: true}
	sink := &fakeSink{}
	src := &scriptSource{controls: input.Controls{Forward: true}}
	loop, _ := newTestLoop(t, Config{
		Course:            straightCourse(),
		CorridorHalfWidth: 3e-4,
		UserID:            7,
		UpdateRate:        10,
	}, client, src)
	loop.SetResultSink(sink)

	loop.StartRace()
	base := time.Unix(1_750_000_000, 0)

	var completed bool
	for i := 1; i <= 400 && !completed; i++ {
		rep := loop.Tick(base.Add(time.Duration(i) * 16 * time.Millisecond))
		for _, ev := range rep.Events {
			if _, ok := ev.(events.RaceComplete); ok {
				completed = true
			}
		}
	}
	require.True(t, completed, "a straight forward drive must finish inside the tick budget")

	require.Len(t, sink.saved, 1)
	res := sink.saved[0]
	assert.Equal(t, "straightaway", res.CourseName)
	assert.Equal(t, 7, res.UserID)
	assert.Zero(t, res.OffTrackCount)

	// Completion is terminal; further ticks neither re-save nor re-fire.
	rep := loop.Tick(base.Add(500 * 16 * time.Millisecond))
	assert.Equal(t, race.Complete, rep.Progress.Status)
	assert.Len(t, sink.saved, 1)
}

func TestLoop_OffTrackWarningLifecycle(t *testing.T) {
	// Right-angle course: driving straight ahead overshoots the corner.
	course := core.Course{
		Name:             "elbow",
		Start:            core.GeoPoint{Lng: 0, Lat: 0},
		Checkpoints:      []core.GeoPoint{{Lng: 5e-4, Lat: 0}},
		Finish:           core.GeoPoint{Lng: 5e-4, Lat: 5e-4},
		CheckpointRadius: 1.5e-4,
		FinishRadius:     1.5e-4,
	}
	src := &scriptSource{controls: input.Controls{Forward: true}}
	loop, _ := newTestLoop(t, Config{
		Course:            course,
		CorridorHalfWidth: 1e-4,
		WarnDuration:      200 * time.Millisecond,
	}, nil, src)

	base := time.Unix(1_750_000_000, 0)
	var entered, expired, warned bool
	for i := 1; i <= 600; i++ {
		rep := loop.Tick(base.Add(time.Duration(i) * 16 * time.Millisecond))
		if rep.OffTrackWarning {
			warned = true
		}
		for _, ev := range rep.Events {
			switch ev.(type) {
			case events.OffTrackEntered:
				entered = true
			case events.OffTrackExpired:
				expired = true
			}
		}
	}
	require.True(t, entered, "overshooting the corner must trip the corridor")
	assert.True(t, warned, "warning shows while fresh")
	assert.True(t, expired, "warning auto-expires")
	assert.Equal(t, 1, loop.OffTrackCount(), "one transition, one count")
	assert.False(t, loop.Tick(base.Add(700*16*time.Millisecond)).OffTrackWarning)
}

func TestLoop_Restart(t *testing.T) {
	client := &fakeClient{startFail: true}
	sink := &fakeSink{}
	src := &scriptSource{controls: input.Controls{Forward: true}}
	loop, _ := newTestLoop(t, Config{
		Course:            straightCourse(),
		CorridorHalfWidth: 3e-4,
		UserID:            7,
	}, client, src)
	loop.SetResultSink(sink)

	loop.StartRace()
	base := time.Unix(1_750_000_000, 0)
	runTicks(loop, base, 400, 16*time.Millisecond)
	require.Len(t, sink.saved, 1)

	loop.Restart()
	rep := loop.Tick(base.Add(401 * 16 * time.Millisecond))
	assert.Equal(t, race.NotStarted, rep.Progress.Status)
	assert.Zero(t, loop.OffTrackCount())

	// A second run saves a second result.
	loop.StartRace()
	runTicks(loop, base.Add(402*16*time.Millisecond), 400, 16*time.Millisecond)
	assert.Len(t, sink.saved, 2)
}

func TestLoop_NoClientRunsOffline(t *testing.T) {
	src := &scriptSource{controls: input.Controls{Forward: true}}
	loop, _ := newTestLoop(t, Config{Course: straightCourse(), CorridorHalfWidth: 3e-4}, nil, src)

	loop.StartRace()
	base := time.Unix(1_750_000_000, 0)
	reports := runTicks(loop, base, 100, 16*time.Millisecond)
	assert.Equal(t, race.InProgress, reports[len(reports)-1].Progress.Status)
}
