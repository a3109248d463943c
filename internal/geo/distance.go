package geo

import "math"

const earthRadiusMeters = 6_371_000

// Point is a WGS84 position in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// Haversine returns the great-circle distance in meters between two lat/lon points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// DistanceKm returns the great-circle distance between two points in kilometers.
func DistanceKm(a, b Point) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}

// Centroid returns the arithmetic mean of the given points.
// It returns false when pts is empty.
func Centroid(pts []Point) (Point, bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	var c Point
	for _, p := range pts {
		c.Lon += p.Lon
		c.Lat += p.Lat
	}
	n := float64(len(pts))
	return Point{Lon: c.Lon / n, Lat: c.Lat / n}, true
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
