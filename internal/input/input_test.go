package input

import (
	"math"
	"testing"
)

const dt = 0.016

func TestSample_RisingEdge(t *testing.T) {
	tr := NewTracker()

	s := tr.Sample(Controls{Forward: true}, dt)
	if !s.ForwardEdge {
		t.Error("expected rising edge on first press")
	}

	s = tr.Sample(Controls{Forward: true}, dt)
	if s.ForwardEdge {
		t.Error("expected no edge while held")
	}

	tr.Sample(Controls{}, dt)
	s = tr.Sample(Controls{Forward: true}, dt)
	if !s.ForwardEdge {
		t.Error("expected edge after release and re-press")
	}
}

func TestSample_BackwardEdgeIndependent(t *testing.T) {
	tr := NewTracker()

	s := tr.Sample(Controls{Forward: true, Backward: true}, dt)
	if !s.ForwardEdge || !s.BackwardEdge {
		t.Error("expected edges on both directions")
	}
}

func TestSample_HoldAccumulates(t *testing.T) {
	tr := NewTracker()

	var s Sample
	for i := 0; i < 10; i++ {
		s = tr.Sample(Controls{Forward: true, Left: true}, dt)
	}

	if math.Abs(s.ForwardHold-10*dt) > 1e-12 {
		t.Errorf("expected forward hold %f, got %f", 10*dt, s.ForwardHold)
	}
	if math.Abs(s.LeftHold-10*dt) > 1e-12 {
		t.Errorf("expected left hold %f, got %f", 10*dt, s.LeftHold)
	}
	if s.BackwardHold != 0 || s.RightHold != 0 {
		t.Error("unheld directions must stay at zero")
	}
}

func TestSample_HoldResetsOnRelease(t *testing.T) {
	tr := NewTracker()

	for i := 0; i < 5; i++ {
		tr.Sample(Controls{Right: true}, dt)
	}
	s := tr.Sample(Controls{}, dt)
	if s.RightHold != 0 {
		t.Errorf("expected hold reset on release, got %f", s.RightHold)
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.Sample(Controls{Forward: true}, dt)
	tr.Reset()

	s := tr.Sample(Controls{Forward: true}, dt)
	if !s.ForwardEdge {
		t.Error("expected rising edge after reset")
	}
	if math.Abs(s.ForwardHold-dt) > 1e-12 {
		t.Errorf("expected hold %f after reset, got %f", dt, s.ForwardHold)
	}
}
