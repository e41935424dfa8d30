package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/apexline/simcore/pkg/core"
)

// All route and vehicle coordinates are WGS84 decimal degrees (EPSG 4326).
// Corridor and checkpoint tolerances are expressed in degrees as well; the
// 3857 projection is only used when a metric readout is needed.

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PointFromString parses a "lng,lat" string into a GeoPoint.
func PointFromString(coords string) (core.GeoPoint, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	return core.GeoPoint{Lng: lng, Lat: lat}, nil
}

// XY converts a GeoPoint to a simplefeatures vector (X=lng, Y=lat).
func XY(p core.GeoPoint) geom.XY {
	return geom.XY{X: p.Lng, Y: p.Lat}
}

// Point converts a simplefeatures vector back to a GeoPoint.
func Point(v geom.XY) core.GeoPoint {
	return core.GeoPoint{Lng: v.X, Lat: v.Y}
}

// Coords3857From4326 projects a lng/lat pair into EPSG 3857 meters.
func Coords3857From4326(longitude, latitude float64) geom.XY {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.XY{X: x, Y: y}
}

// MetricDistance returns the approximate ground distance in meters between
// two points, measured in the 3857 projection.
func MetricDistance(a, b core.GeoPoint) float64 {
	pa := Coords3857From4326(a.Lng, a.Lat)
	pb := Coords3857From4326(b.Lng, b.Lat)
	return pb.Sub(pa).Length()
}

// Distance returns the planar distance between two points in degrees.
func Distance(a, b core.GeoPoint) float64 {
	return XY(b).Sub(XY(a)).Length()
}

// Bearing returns the planar direction from a to b in radians,
// counterclockwise from east, normalized to [0, 2π).
func Bearing(a, b core.GeoPoint) float64 {
	d := XY(b).Sub(XY(a))
	angle := math.Atan2(d.Y, d.X)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}
