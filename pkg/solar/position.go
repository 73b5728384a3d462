// Package solar computes the apparent position of the sun, used to flag
// nighttime records when a flux file carries no night indicator.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// refractionDeg lifts the geometric elevation to the apparent one near the
// horizon.
const refractionDeg = 0.5667

// Position is the sun's position for an observer at one instant.
type Position struct {
	DeclinationDeg float64
	EqOfTimeMin    float64
	HourAngleDeg   float64
	ElevationDeg   float64
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// SunPosition returns the sun's position at time t for the observer at
// latitude lat and longitude lon (degrees, east positive).
func SunPosition(t time.Time, lat, lon float64) Position {
	return positionJD(julian.TimeToJD(t.UTC()), lat, lon)
}

func positionJD(jd, lat, lon float64) Position {
	T := (jd - 2451545.0) / 36525.0 // Julian centuries since J2000.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032)) // mean longitude
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))  // mean anomaly
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)       // orbital eccentricity
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	omega := 125.04 - 1934.136*T
	lambda := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(omega)) // apparent longitude
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	decl := math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(lambda)))

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4

	// Julian days start at noon
	dayFrac := jd + 0.5 - math.Floor(jd+0.5)
	tst := dayFrac*1440 + 4*lon + eqTimeMin // true solar time, minutes
	ha := tst/4 - 180

	latRad := degToRad(lat)
	cosZen := math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Cos(degToRad(ha))
	cosZen = math.Max(-1, math.Min(1, cosZen))

	return Position{
		DeclinationDeg: radToDeg(decl),
		EqOfTimeMin:    eqTimeMin,
		HourAngleDeg:   ha,
		ElevationDeg:   90 - radToDeg(math.Acos(cosZen)) + refractionDeg,
	}
}

func isNight(p Position) bool {
	return p.ElevationDeg <= 0
}

// NightFlags marks each fractional day-of-year stamp as night or day.
// Stamps are in local standard time, utcOffset hours ahead of UTC, with
// 1.0 at midnight starting January 1 of year. An unknown year (0) uses a
// common year.
func NightFlags(doy []float64, year int, lat, lon, utcOffset float64) []bool {
	if year == 0 {
		year = 2001
	}
	jan0 := julian.CalendarGregorianToJD(year, 1, 0)
	out := make([]bool, len(doy))
	for i, t := range doy {
		if math.IsNaN(t) {
			continue
		}
		jd := jan0 + t - utcOffset/24
		out[i] = isNight(positionJD(jd, lat, lon))
	}
	return out
}
