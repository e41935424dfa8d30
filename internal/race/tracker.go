package race

import (
	"time"

	"github.com/apexline/simcore/internal/events"
	"github.com/apexline/simcore/internal/geo"
	"github.com/apexline/simcore/pkg/core"
)

// Status is the race lifecycle phase.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Complete
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Progress is the tracker snapshot after an evaluation.
type Progress struct {
	Status      Status
	Checkpoints []bool
	Elapsed     time.Duration
	Splits      []time.Duration
}

// Tracker marks checkpoints and the finish as the vehicle approaches
// them. Checkpoint passes are idempotent and order-independent; the
// finish only arms once every checkpoint is passed. Not safe for
// concurrent use.
type Tracker struct {
	course core.Course
	stream *events.Stream
	clock  func() time.Time

	status    Status
	passed    []bool
	splits    []time.Duration
	startedAt time.Time
	elapsed   time.Duration
}

// NewTracker builds a tracker for the course, publishing one-shot
// progress events onto stream. clock may be nil for wall time.
func NewTracker(course core.Course, stream *events.Stream, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		course: course,
		stream: stream,
		clock:  clock,
		passed: make([]bool, len(course.Checkpoints)),
		splits: make([]time.Duration, len(course.Checkpoints)),
	}
}

// Start arms the timer and moves to InProgress. Calling it again while
// a race is running is a no-op; callers restart explicitly.
func (t *Tracker) Start() {
	if t.status != NotStarted {
		return
	}
	t.status = InProgress
	t.startedAt = t.clock()
	t.stream.Push(events.RaceStarted{})
}

// Restart clears all flags and timers and returns to NotStarted.
func (t *Tracker) Restart() {
	t.status = NotStarted
	t.passed = make([]bool, len(t.course.Checkpoints))
	t.splits = make([]time.Duration, len(t.course.Checkpoints))
	t.startedAt = time.Time{}
	t.elapsed = 0
}

// Status reports the current phase.
func (t *Tracker) Status() Status { return t.status }

// StartedAt reports when the race timer was armed.
func (t *Tracker) StartedAt() time.Time { return t.startedAt }

// Evaluate checks the position against every unpassed checkpoint and,
// once all are passed, the finish. Completion is terminal; further
// calls are no-ops.
func (t *Tracker) Evaluate(position core.GeoPoint) Progress {
	if t.status != InProgress {
		return t.snapshot()
	}

	now := t.clock()
	allPassed := true
	for i, cp := range t.course.Checkpoints {
		if t.passed[i] {
			continue
		}
		if geo.Distance(position, cp) < t.course.CheckpointRadius {
			t.passed[i] = true
			t.splits[i] = now.Sub(t.startedAt)
			t.stream.Push(events.CheckpointPassed{Index: i, At: now})
			continue
		}
		allPassed = false
	}

	if allPassed && geo.Distance(position, t.course.Finish) < t.course.FinishRadius {
		t.status = Complete
		t.elapsed = now.Sub(t.startedAt)
		t.stream.Push(events.RaceComplete{Elapsed: t.elapsed})
	}
	return t.snapshot()
}

// Result assembles the finished race for persistence. The second return
// is false until the race is complete.
func (t *Tracker) Result(userID int, offTrackCount int) (core.RaceResult, bool) {
	if t.status != Complete {
		return core.RaceResult{}, false
	}
	splits := make([]time.Duration, len(t.splits))
	copy(splits, t.splits)
	return core.RaceResult{
		CourseName:    t.course.Name,
		UserID:        userID,
		StartedAt:     t.startedAt,
		FinishedAt:    t.startedAt.Add(t.elapsed),
		Total:         t.elapsed,
		Splits:        splits,
		OffTrackCount: offTrackCount,
	}, true
}

func (t *Tracker) snapshot() Progress {
	passed := make([]bool, len(t.passed))
	copy(passed, t.passed)
	splits := make([]time.Duration, len(t.splits))
	copy(splits, t.splits)
	elapsed := t.elapsed
	if t.status == InProgress {
		elapsed = t.clock().Sub(t.startedAt)
	}
	return Progress{Status: t.status, Checkpoints: passed, Elapsed: elapsed, Splits: splits}
}
