package geo

import (
	"errors"
	"math"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/apexline/simcore/pkg/core"
)

func TestPointFromString_Valid(t *testing.T) {
	p, err := PointFromString("-81.199,28.602")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lng != -81.199 {
		t.Errorf("expected Lng=-81.199, got %f", p.Lng)
	}
	if p.Lat != 28.602 {
		t.Errorf("expected Lat=28.602, got %f", p.Lat)
	}
}

func TestPointFromString_WithSpaces(t *testing.T) {
	p, err := PointFromString(" -81.199 , 28.602 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lng != -81.199 || p.Lat != 28.602 {
		t.Errorf("unexpected point %+v", p)
	}
}

func TestPointFromString_Invalid(t *testing.T) {
	tests := []string{"", "-81.199", "abc,def", "-81.199,"}
	for _, input := range tests {
		if _, err := PointFromString(input); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("input %q: expected ErrInvalidCoordinates, got %v", input, err)
		}
	}
}

func TestMetricDistance_KnownBaseline(t *testing.T) {
	// One degree of longitude at the equator is ~111km in the 3857 projection.
	a := core.GeoPoint{Lng: 0, Lat: 0}
	b := core.GeoPoint{Lng: 1, Lat: 0}
	d := MetricDistance(a, b)
	if d < 100_000 || d > 120_000 {
		t.Errorf("expected ~111km, got %f m", d)
	}
}

func TestClosestOnSegment_Interior(t *testing.T) {
	got := closestOnSegment(geom.XY{X: 1, Y: 1}, geom.XY{X: 0, Y: 0}, geom.XY{X: 2, Y: 0})
	if got.X != 1 || got.Y != 0 {
		t.Errorf("expected (1,0), got %+v", got)
	}
}

func TestClosestOnSegment_ClampsEnds(t *testing.T) {
	a := geom.XY{X: 0, Y: 0}
	b := geom.XY{X: 2, Y: 0}

	before := closestOnSegment(geom.XY{X: -5, Y: 3}, a, b)
	if before != a {
		t.Errorf("expected clamp to %+v, got %+v", a, before)
	}
	after := closestOnSegment(geom.XY{X: 9, Y: -2}, a, b)
	if after != b {
		t.Errorf("expected clamp to %+v, got %+v", b, after)
	}
}

func TestClosestOnSegment_ZeroLength(t *testing.T) {
	a := geom.XY{X: 1, Y: 1}
	got := closestOnSegment(geom.XY{X: 5, Y: 5}, a, a)
	if got != a {
		t.Errorf("expected point distance fallback to %+v, got %+v", a, got)
	}
}

func TestCorridor_MinDistance(t *testing.T) {
	c := NewCorridor([]core.GeoPoint{
		{Lng: 0, Lat: 0},
		{Lng: 2, Lat: 0},
		{Lng: 2, Lat: 2},
	}, 0.5)

	d, bounded := c.MinDistance(geom.XY{X: 1, Y: 1})
	if !bounded {
		t.Fatal("expected bounded corridor")
	}
	// Equidistant from both segments.
	if math.Abs(d-1.0) > 1e-12 {
		t.Errorf("expected distance 1.0, got %f", d)
	}
}

func TestCorridor_Contains(t *testing.T) {
	c := NewCorridor([]core.GeoPoint{
		{Lng: -81.199, Lat: 28.602},
		{Lng: -81.195, Lat: 28.605},
	}, 3e-4)

	if !c.Contains(geom.XY{X: -81.199, Y: 28.602}) {
		t.Error("expected start point inside corridor")
	}
	if c.Contains(geom.XY{X: -81.199, Y: 28.610}) {
		t.Error("expected far point outside corridor")
	}
}

func TestCorridor_UnboundedUnderTwoPoints(t *testing.T) {
	for _, pts := range [][]core.GeoPoint{nil, {{Lng: 1, Lat: 1}}} {
		c := NewCorridor(pts, 1e-4)
		if c.Bounded() {
			t.Error("expected unbounded corridor")
		}
		if !c.Contains(geom.XY{X: 999, Y: 999}) {
			t.Error("unbounded corridor must contain everything")
		}
	}
}

func TestParsePolyline(t *testing.T) {
	wps, err := ParsePolyline(`[[-81.199,28.602],[-81.195,28.605]]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wps) != 2 {
		t.Fatalf("expected 2 waypoints, got %d", len(wps))
	}
	if wps[0].Lng != -81.199 || wps[1].Lat != 28.605 {
		t.Errorf("unexpected waypoints %+v", wps)
	}
}

func TestParsePolyline_Invalid(t *testing.T) {
	if _, err := ParsePolyline(`[[0,0]]`); err == nil {
		t.Error("expected error for single point")
	}
	if _, err := ParsePolyline(`not json`); err == nil {
		t.Error("expected error for malformed input")
	}
	if _, err := ParsePolyline(`[[0,0],[1]]`); err == nil {
		t.Error("expected error for short coordinate")
	}
}
