package weather

import (
	"fmt"
	"time"
)

// Field identifies one of the generated weather variables.
type Field int

const (
	Temperature Field = iota
	Humidity
	Pressure
	WindSpeed
	WindDirection
	SolarRadiation
	UVIndex
	Precipitation

	fieldCount
)

// Fields lists every variable in storage order.
var Fields = [fieldCount]Field{
	Temperature,
	Humidity,
	Pressure,
	WindSpeed,
	WindDirection,
	SolarRadiation,
	UVIndex,
	Precipitation,
}

var fieldNames = [fieldCount]string{
	"temperature",
	"humidity",
	"pressure",
	"wind_speed",
	"wind_direction",
	"solar_radiation",
	"uv_index",
	"precipitation",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64
	Max float64
}

// Clamp constrains v to the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Contains reports whether v lies within the range, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// State is one multivariate weather reading.
// Units: °F, % of saturated vapor pressure, hPa, mph, degrees, W/m², UV index, nm/s.
type State struct {
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	Pressure       float64 `json:"pressure"`
	WindSpeed      float64 `json:"windSpeed"`
	WindDirection  float64 `json:"windDirection"`
	SolarRadiation float64 `json:"solarRadiation"`
	UVIndex        float64 `json:"uvIndex"`
	Precipitation  float64 `json:"precipitation"`
}

// Get returns the value of field f.
func (s State) Get(f Field) float64 {
	switch f {
	case Temperature:
		return s.Temperature
	case Humidity:
		return s.Humidity
	case Pressure:
		return s.Pressure
	case WindSpeed:
		return s.WindSpeed
	case WindDirection:
		return s.WindDirection
	case SolarRadiation:
		return s.SolarRadiation
	case UVIndex:
		return s.UVIndex
	case Precipitation:
		return s.Precipitation
	}
	return 0
}

// Set assigns v to field f.
func (s *State) Set(f Field, v float64) {
	switch f {
	case Temperature:
		s.Temperature = v
	case Humidity:
		s.Humidity = v
	case Pressure:
		s.Pressure = v
	case WindSpeed:
		s.WindSpeed = v
	case WindDirection:
		s.WindDirection = v
	case SolarRadiation:
		s.SolarRadiation = v
	case UVIndex:
		s.UVIndex = v
	case Precipitation:
		s.Precipitation = v
	}
}

// Drift holds the signed sensitivity coefficient of every variable. It
// describes how strongly a raw reading moves the running State, not the
// value of the variable itself.
type Drift struct {
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	Pressure       float64 `json:"pressure"`
	WindSpeed      float64 `json:"windSpeed"`
	WindDirection  float64 `json:"windDirection"`
	SolarRadiation float64 `json:"solarRadiation"`
	UVIndex        float64 `json:"uvIndex"`
	Precipitation  float64 `json:"precipitation"`
}

// Get returns the coefficient of field f.
func (d Drift) Get(f Field) float64 {
	return State(d).Get(f)
}

// Set assigns the coefficient of field f.
func (d *Drift) Set(f Field, v float64) {
	(*State)(d).Set(f, v)
}

// Sample is the unit of persistence.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	State     State     `json:"state"`
}

// Window describes a backfill request: samples from Start, every Interval,
// strictly before Start+Duration.
type Window struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Interval time.Duration `json:"interval"`
}

const (
	DefaultBackfillDuration = 7 * 24 * time.Hour
	DefaultBackfillInterval = time.Second
)

// DefaultWindow returns the week preceding now at one-second granularity.
func DefaultWindow(now time.Time) Window {
	return Window{
		Start:    now.Add(-DefaultBackfillDuration),
		Duration: DefaultBackfillDuration,
		Interval: DefaultBackfillInterval,
	}
}

// End returns the exclusive end of the window.
func (w Window) End() time.Time {
	return w.Start.Add(w.Duration)
}

// Steps returns the number of samples a backfill of w produces.
func (w Window) Steps() int {
	if w.Interval <= 0 || w.Duration <= 0 {
		return 1
	}
	n := int(w.Duration / w.Interval)
	if w.Duration%w.Interval != 0 {
		n++
	}
	return n
}

// Cursor is the resumable end of a generated timeline: the last state and
// drift, and the timestamp the next sample should carry.
type Cursor struct {
	State State
	Drift Drift
	Time  time.Time
}
