package weather

import (
	"math/rand/v2"
	"time"
)

// Sensors simulates the raw instruments feeding the generator. Temperature
// depends on the season and solar radiation/UV on the hour of the instant
// passed in, evaluated in the configured location.
//
// Sensors is not safe for concurrent use.
type Sensors struct {
	rng *rand.Rand
	loc *time.Location
}

// NewSensors returns Sensors drawing from rng. A nil loc means time.Local.
func NewSensors(rng *rand.Rand, loc *time.Location) *Sensors {
	if loc == nil {
		loc = time.Local
	}
	return &Sensors{rng: rng, loc: loc}
}

// Read returns one raw reading for field f at instant at.
func (s *Sensors) Read(f Field, at time.Time) float64 {
	switch f {
	case Temperature:
		return s.Thermostat(at)
	case Humidity:
		return s.Hygrometer()
	case Pressure:
		return s.Barometer()
	case WindSpeed:
		return s.Anemometer()
	case WindDirection:
		return s.WindVane()
	case SolarRadiation:
		return s.Pyranometer(at)
	case UVIndex:
		return s.Radiometer(at)
	case Precipitation:
		return s.RainGauge()
	}
	return 0
}

// ReadAll returns one raw reading per field.
func (s *Sensors) ReadAll(at time.Time) State {
	var st State
	for _, f := range Fields {
		st.Set(f, s.Read(f, at))
	}
	return st
}

// Thermostat returns a temperature in °F for the season of at.
func (s *Sensors) Thermostat(at time.Time) float64 {
	switch at.In(s.loc).Month() {
	case time.December, time.January, time.February:
		return s.uniform(10, 40)
	case time.June, time.July, time.August:
		return s.uniform(60, 90)
	default:
		return s.uniform(40, 70)
	}
}

// Hygrometer returns a relative humidity in % of saturated vapor pressure.
func (s *Sensors) Hygrometer() float64 {
	return s.uniform(30, 90)
}

// Barometer returns an air pressure in hPa.
func (s *Sensors) Barometer() float64 {
	return s.uniform(980, 1030)
}

// Anemometer returns a wind speed in mph.
func (s *Sensors) Anemometer() float64 {
	return s.uniform(0, 50)
}

// WindVane returns a wind direction in degrees.
func (s *Sensors) WindVane() float64 {
	return s.uniform(0, 360)
}

// Pyranometer returns solar radiation in W/m², high between 06:00 and 18:59.
func (s *Sensors) Pyranometer(at time.Time) float64 {
	hour := at.In(s.loc).Hour()
	if hour >= 6 && hour <= 18 {
		return s.uniform(100, 1000)
	}
	return s.uniform(0, 100)
}

// Radiometer returns a UV index: peak between 10 and 15, low in the morning
// and evening, zero at night.
func (s *Sensors) Radiometer(at time.Time) float64 {
	hour := at.In(s.loc).Hour()
	switch {
	case hour >= 10 && hour <= 15:
		return s.uniform(3, 11)
	case (hour >= 6 && hour < 10) || (hour > 15 && hour <= 18):
		return s.uniform(0, 3)
	default:
		return 0
	}
}

// RainGauge returns a precipitation rate in nm/s.
func (s *Sensors) RainGauge() float64 {
	return s.uniform(0, 58)
}

func (s *Sensors) uniform(lo, hi float64) float64 {
	return uniform(s.rng, lo, hi)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
