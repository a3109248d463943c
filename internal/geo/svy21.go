package geo

import (
	"errors"
	"fmt"
	"math"
)

// CRS identifies a coordinate reference system by its EPSG code.
type CRS string

const (
	WGS84 CRS = "EPSG:4326" // x = longitude, y = latitude
	SVY21 CRS = "EPSG:3414" // x = easting, y = northing (meters)
)

// ErrUnknownCRS is returned when a CRS outside the supported set is requested.
var ErrUnknownCRS = errors.New("unknown coordinate reference system")

// ParseCRS validates an EPSG identifier.
func ParseCRS(s string) (CRS, error) {
	switch c := CRS(s); c {
	case WGS84, SVY21:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCRS, s)
}

// ToWGS84 converts an (x, y) pair in crs to a WGS84 point.
func ToWGS84(crs CRS, x, y float64) (Point, error) {
	switch crs {
	case WGS84:
		return Point{Lon: x, Lat: y}, nil
	case SVY21:
		lat, lon := svy21ToLatLon(y, x)
		return Point{Lon: lon, Lat: lat}, nil
	}
	return Point{}, fmt.Errorf("%w: %q", ErrUnknownCRS, crs)
}

// FromWGS84 converts a WGS84 point to an (x, y) pair in crs.
func FromWGS84(crs CRS, p Point) (x, y float64, err error) {
	switch crs {
	case WGS84:
		return p.Lon, p.Lat, nil
	case SVY21:
		n, e := latLonToSVY21(p.Lat, p.Lon)
		return e, n, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrUnknownCRS, crs)
}

// Reproject converts coordinates between two supported systems.
func Reproject(from, to CRS, x, y float64) (float64, float64, error) {
	if from == to {
		if _, err := ParseCRS(string(from)); err != nil {
			return 0, 0, err
		}
		return x, y, nil
	}
	p, err := ToWGS84(from, x, y)
	if err != nil {
		return 0, 0, err
	}
	return FromWGS84(to, p)
}

// SVY21 transverse Mercator parameters on the WGS84 ellipsoid.
const (
	svyA         = 6378137.0
	svyF         = 1 / 298.257223563
	svyOriginLat = 1.366666
	svyOriginLon = 103.833333
	svyFalseN    = 38744.572
	svyFalseE    = 28001.642
	svyK         = 1.0
)

var (
	svyB  = svyA * (1 - svyF)
	svyE2 = 2*svyF - svyF*svyF
	svyE4 = svyE2 * svyE2
	svyE6 = svyE4 * svyE2
	svyA0 = 1 - svyE2/4 - 3*svyE4/64 - 5*svyE6/256
	svyA2 = 3.0 / 8.0 * (svyE2 + svyE4/4 + 15*svyE6/128)
	svyA4 = 15.0 / 256.0 * (svyE4 + 3*svyE6/4)
	svyA6 = 35 * svyE6 / 3072
)

// meridianArc returns the meridional distance from the equator to lat (degrees).
func meridianArc(lat float64) float64 {
	r := toRad(lat)
	return svyA * (svyA0*r - svyA2*math.Sin(2*r) + svyA4*math.Sin(4*r) - svyA6*math.Sin(6*r))
}

func radiusRho(sin2Lat float64) float64 {
	return svyA * (1 - svyE2) / math.Pow(1-svyE2*sin2Lat, 1.5)
}

func radiusV(sin2Lat float64) float64 {
	return svyA / math.Sqrt(1-svyE2*sin2Lat)
}

func latLonToSVY21(lat, lon float64) (northing, easting float64) {
	latR := toRad(lat)
	sinLat := math.Sin(latR)
	sin2Lat := sinLat * sinLat
	cosLat := math.Cos(latR)
	cos2Lat := cosLat * cosLat
	cos3Lat := cos2Lat * cosLat
	cos4Lat := cos3Lat * cosLat
	cos5Lat := cos4Lat * cosLat
	cos6Lat := cos5Lat * cosLat
	cos7Lat := cos6Lat * cosLat

	t := math.Tan(latR)
	t2 := t * t
	t4 := t2 * t2
	t6 := t4 * t2

	rho := radiusRho(sin2Lat)
	v := radiusV(sin2Lat)
	psi := v / rho
	psi2 := psi * psi
	psi3 := psi2 * psi
	psi4 := psi3 * psi

	w := toRad(lon - svyOriginLon)
	w2 := w * w
	w4 := w2 * w2
	w6 := w4 * w2
	w8 := w6 * w2

	m := meridianArc(lat)
	mo := meridianArc(svyOriginLat)

	n1 := w2 / 2 * v * sinLat * cosLat
	n2 := w4 / 24 * v * sinLat * cos3Lat * (4*psi2 + psi - t2)
	n3 := w6 / 720 * v * sinLat * cos5Lat * (8*psi4*(11-24*t2) - 28*psi3*(1-6*t2) + psi2*(1-32*t2) - psi*2*t2 + t4)
	n4 := w8 / 40320 * v * sinLat * cos7Lat * (1385 - 3111*t2 + 543*t4 - t6)
	northing = svyFalseN + svyK*(m-mo+n1+n2+n3+n4)

	e1 := w2 / 6 * cos2Lat * (psi - t2)
	e2 := w4 / 120 * cos4Lat * (4*psi3*(1-6*t2) + psi2*(1+8*t2) - psi*2*t2 + t4)
	e3 := w6 / 5040 * cos6Lat * (61 - 479*t2 + 179*t4 - t6)
	easting = svyFalseE + svyK*v*w*cosLat*(1+e1+e2+e3)
	return northing, easting
}

func svy21ToLatLon(northing, easting float64) (lat, lon float64) {
	nPrime := northing - svyFalseN
	mPrime := meridianArc(svyOriginLat) + nPrime/svyK

	n := (svyA - svyB) / (svyA + svyB)
	n2 := n * n
	n3 := n2 * n
	n4 := n2 * n2
	g := svyA * (1 - n) * (1 - n2) * (1 + 9*n2/4 + 225*n4/64) * (math.Pi / 180)
	sigma := mPrime * math.Pi / (180 * g)

	latPrime := sigma + (3*n/2-27*n3/32)*math.Sin(2*sigma) +
		(21*n2/16-55*n4/32)*math.Sin(4*sigma) +
		(151*n3/96)*math.Sin(6*sigma) +
		(1097*n4/512)*math.Sin(8*sigma)

	sinLatPrime := math.Sin(latPrime)
	sin2LatPrime := sinLatPrime * sinLatPrime
	rhoPrime := radiusRho(sin2LatPrime)
	vPrime := radiusV(sin2LatPrime)
	psi := vPrime / rhoPrime
	psi2 := psi * psi
	psi3 := psi2 * psi
	psi4 := psi3 * psi
	t := math.Tan(latPrime)
	t2 := t * t
	t4 := t2 * t2
	t6 := t4 * t2

	ePrime := easting - svyFalseE
	x := ePrime / (svyK * vPrime)
	x2 := x * x
	x3 := x2 * x
	x5 := x3 * x2
	x7 := x5 * x2

	f := t / (svyK * rhoPrime)
	l1 := f * (ePrime * x / 2)
	l2 := f * (ePrime * x3 / 24) * (-4*psi2 + 9*psi*(1-t2) + 12*t2)
	l3 := f * (ePrime * x5 / 720) * (8*psi4*(11-24*t2) - 12*psi3*(21-71*t2) + 15*psi2*(15-98*t2+15*t4) + 180*psi*(5*t2-3*t4) + 360*t4)
	l4 := f * (ePrime * x7 / 40320) * (1385 - 3633*t2 + 4095*t4 + 1575*t6)
	latR := latPrime - l1 + l2 - l3 + l4

	sec := 1 / math.Cos(latR)
	o1 := x * sec
	o2 := x3 * sec / 6 * (psi + 2*t2)
	o3 := x5 * sec / 120 * (-4*psi3*(1-6*t2) + psi2*(9-68*t2) + 72*psi*t2 + 24*t4)
	o4 := x7 * sec / 5040 * (61 + 662*t2 + 1320*t4 + 720*t6)
	lonR := toRad(svyOriginLon) + o1 - o2 + o3 - o4

	return toDeg(latR), toDeg(lonR)
}
