// Package events carries simulation and session events from the core to
// the embedding renderer/UI. Producers push onto a Stream; the
// orchestration loop drains it once per tick. There are no mutable
// callback hooks: consumers only ever see drained snapshots.
package events

import (
	"time"

	"github.com/apexline/simcore/pkg/core"
)

// Event is a one-shot notification from the simulation core. The concrete
// types below are the only implementations.
type Event interface {
	event()
}

// CheckpointPassed fires once when an unpassed checkpoint comes within its
// radius.
type CheckpointPassed struct {
	Index int
	At    time.Time
}

// RaceComplete fires once when the finish is crossed with all checkpoints
// passed.
type RaceComplete struct {
	Elapsed time.Duration
}

// RaceStarted fires when the server broadcasts a race transition.
type RaceStarted struct{}

// OffTrackEntered fires once per corridor excursion transition.
type OffTrackEntered struct {
	At time.Time
}

// OffTrackExpired fires when the transient off-track warning times out.
type OffTrackExpired struct{}

// StatusChanged reports a connection-status transition.
type StatusChanged struct {
	Status string
}

// RosterJoined reports a new party member.
type RosterJoined struct {
	UserID int
	Name   string
}

// RosterLeft reports a voluntary leave.
type RosterLeft struct {
	UserID int
}

// RosterMoved reports a pose update for a remote player.
type RosterMoved struct {
	State core.PlayerState
}

func (CheckpointPassed) event() {}
func (RaceComplete) event()     {}
func (RaceStarted) event()      {}
func (OffTrackEntered) event()  {}
func (OffTrackExpired) event()  {}
func (StatusChanged) event()    {}
func (RosterJoined) event()     {}
func (RosterLeft) event()       {}
func (RosterMoved) event()      {}

// Stream is the queue the orchestration loop polls each tick.
type Stream = Queue[Event]

// NewStream creates an empty event stream.
func NewStream() *Stream {
	return NewQueue[Event]()
}
