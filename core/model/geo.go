package model

import "math"

// EarthRadiusMiles is the sphere radius used for every distance in the engine.
const EarthRadiusMiles = 3959.0

// Haversine returns the great-circle distance in miles between a and b.
func Haversine(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMiles * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceMiles is Haversine over two locations.
func DistanceMiles(a, b Location) float64 {
	return Haversine(a.Point(), b.Point())
}
