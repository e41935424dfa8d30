package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexline/simcore/internal/events"
	"github.com/apexline/simcore/pkg/core"
)

func testCourse() core.Course {
	return core.Course{
		Name:  "baldwin-park-loop",
		Start: core.GeoPoint{Lng: -81.199, Lat: 28.602},
		Checkpoints: []core.GeoPoint{
			{Lng: -81.198, Lat: 28.603},
			{Lng: -81.196, Lat: 28.604},
		},
		Finish:           core.GeoPoint{Lng: -81.195, Lat: 28.605},
		CheckpointRadius: 1.5e-4,
		FinishRadius:     1.5e-4,
	}
}

// fakeClock steps a fixed amount per reading so splits are deterministic.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func drain(stream *events.Stream) []events.Event {
	return stream.Drain()
}

func TestTracker_EvaluateBeforeStartIsNoOp(t *testing.T) {
	stream := events.NewStream()
	tr := NewTracker(testCourse(), stream, newFakeClock().Now)

	p := tr.Evaluate(testCourse().Finish)
	assert.Equal(t, NotStarted, p.Status)
	assert.Empty(t, drain(stream))
}

func TestTracker_CheckpointIdempotent(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()
	drain(stream)

	for i := 0; i < 5; i++ {
		tr.Evaluate(course.Checkpoints[0])
	}
	var passes int
	for _, ev := range drain(stream) {
		if _, ok := ev.(events.CheckpointPassed); ok {
			passes++
		}
	}
	assert.Equal(t, 1, passes, "a checkpoint fires its event exactly once")

	p := tr.Evaluate(course.Start)
	assert.Equal(t, []bool{true, false}, p.Checkpoints)
	assert.Equal(t, InProgress, p.Status)
}

func TestTracker_FinishGatedOnCheckpoints(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()

	// Driving straight to the finish with checkpoints outstanding does
	// nothing.
	p := tr.Evaluate(course.Finish)
	require.Equal(t, InProgress, p.Status)

	tr.Evaluate(course.Checkpoints[0])
	p = tr.Evaluate(course.Finish)
	require.Equal(t, InProgress, p.Status, "one checkpoint still missing")

	tr.Evaluate(course.Checkpoints[1])
	p = tr.Evaluate(course.Finish)
	assert.Equal(t, Complete, p.Status)
	assert.Positive(t, p.Elapsed)
}

func TestTracker_CheckpointsOrderIndependent(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()

	// Second checkpoint reached first: allowed, both still count.
	tr.Evaluate(course.Checkpoints[1])
	tr.Evaluate(course.Checkpoints[0])
	p := tr.Evaluate(course.Finish)
	assert.Equal(t, Complete, p.Status)
}

func TestTracker_CheckpointAndFinishSameTick(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	// Park the last checkpoint on the finish so one evaluation clears both.
	course.Checkpoints = []core.GeoPoint{course.Finish}
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()

	p := tr.Evaluate(course.Finish)
	assert.Equal(t, Complete, p.Status)
	assert.Equal(t, []bool{true}, p.Checkpoints)
}

func TestTracker_NoCheckpointsFinishUnconditional(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	course.Checkpoints = nil
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()

	p := tr.Evaluate(course.Finish)
	assert.Equal(t, Complete, p.Status)
}

func TestTracker_CompletionTerminal(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	course.Checkpoints = nil
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()
	tr.Evaluate(course.Finish)
	drain(stream)

	first := tr.Evaluate(course.Finish)
	second := tr.Evaluate(course.Start)
	assert.Equal(t, Complete, first.Status)
	assert.Equal(t, Complete, second.Status)
	assert.Equal(t, first.Elapsed, second.Elapsed, "elapsed freezes at completion")
	assert.Empty(t, drain(stream), "no events after completion")
}

func TestTracker_SplitsRecorded(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()

	tr.Evaluate(course.Checkpoints[0])
	tr.Evaluate(course.Checkpoints[1])
	p := tr.Evaluate(course.Finish)

	require.Len(t, p.Splits, 2)
	assert.Positive(t, p.Splits[0])
	assert.Greater(t, p.Splits[1], p.Splits[0])
}

func TestTracker_Restart(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()
	tr.Evaluate(course.Checkpoints[0])

	tr.Restart()
	assert.Equal(t, NotStarted, tr.Status())
	assert.True(t, tr.StartedAt().IsZero())

	tr.Start()
	p := tr.Evaluate(course.Start)
	assert.Equal(t, []bool{false, false}, p.Checkpoints)
}

func TestTracker_StartWhileRunningIsNoOp(t *testing.T) {
	stream := events.NewStream()
	tr := NewTracker(testCourse(), stream, newFakeClock().Now)
	tr.Start()
	started := tr.StartedAt()
	drain(stream)

	tr.Start()
	assert.Equal(t, started, tr.StartedAt())
	assert.Empty(t, drain(stream))
}

func TestTracker_Result(t *testing.T) {
	stream := events.NewStream()
	course := testCourse()
	tr := NewTracker(course, stream, newFakeClock().Now)
	tr.Start()

	_, ok := tr.Result(7, 0)
	require.False(t, ok, "no result before completion")

	tr.Evaluate(course.Checkpoints[0])
	tr.Evaluate(course.Checkpoints[1])
	tr.Evaluate(course.Finish)

	res, ok := tr.Result(7, 2)
	require.True(t, ok)
	assert.Equal(t, "baldwin-park-loop", res.CourseName)
	assert.Equal(t, 7, res.UserID)
	assert.Equal(t, 2, res.OffTrackCount)
	assert.Equal(t, res.StartedAt.Add(res.Total), res.FinishedAt)
	assert.Len(t, res.Splits, 2)
}
