// Package geoscore computes the clustering engine's geo proximity signal:
// haversine distance between two points, mapped through a
// fixed distance-to-score table. Points are wrapped with go-geom so the
// distance math shares a representation with any future PostGIS interop.
package geoscore

import (
	"math"

	"github.com/twpayne/go-geom"
)

// earthRadiusMeters is the mean Earth radius used for the haversine formula.
const earthRadiusMeters = 6_371_000.0

// NewPoint wraps a lat/lng pair as a go-geom Point in (X=lng, Y=lat) order.
func NewPoint(lat, lng float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat})
}

// HaversineMeters returns the great-circle distance between two points, in
// meters.
func HaversineMeters(a, b *geom.Point) float64 {
	lat1, lng1 := a.Y(), a.X()
	lat2, lng2 := b.Y(), b.X()

	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lng2 - lng1)

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)

	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Score maps a haversine distance in meters to the clustering engine's
// proximity score, per a fixed distance-bucket table.
func Score(distanceMeters float64) float64 {
	switch {
	case distanceMeters <= 0:
		return 1.0
	case distanceMeters <= 200:
		return 0.9
	case distanceMeters <= 500:
		return 0.7
	case distanceMeters <= 1000:
		return 0.5
	case distanceMeters <= 2000:
		return 0.3
	default:
		return 0.1
	}
}

// ScoreLatLng is a convenience wrapper combining HaversineMeters and Score.
func ScoreLatLng(lat1, lng1, lat2, lng2 float64) float64 {
	return Score(HaversineMeters(NewPoint(lat1, lng1), NewPoint(lat2, lng2)))
}
