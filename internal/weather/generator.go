package weather

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

// stateBounds are the ranges every state field is clamped to. Wind direction
// is listed for completeness; it wraps modulo 360 instead.
var stateBounds = [fieldCount]Range{
	Temperature:    {-10, 100},
	Humidity:       {0, 100},
	Pressure:       {900, 1100},
	WindSpeed:      {0, 100},
	WindDirection:  {0, 360},
	SolarRadiation: {0, 1000},
	UVIndex:        {0, 11},
	Precipitation:  {0, 80},
}

// Bounds returns the declared range of field f.
func Bounds(f Field) Range {
	return stateBounds[f]
}

// Snapshotter produces the next state of a generated timeline.
type Snapshotter interface {
	GenerateAt(at time.Time, prev *State, drift *Drift, scale float64) (State, Drift, error)
}

// Generator combines sensor readings, drift and elapsed time into the next
// weather state. It is not safe for concurrent use; every generation run
// drives it from a single goroutine.
type Generator struct {
	sensors *Sensors
	drift   *DriftController
	clock   clockwork.Clock
}

// NewGenerator returns a Generator. A nil rng is seeded randomly, a nil
// clock is the real clock and a nil loc is time.Local.
func NewGenerator(rng *rand.Rand, clock clockwork.Clock, loc *time.Location) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{
		sensors: NewSensors(rng, loc),
		drift:   NewDriftController(rng),
		clock:   clock,
	}
}

// Generate is GenerateAt evaluated at the generator clock's current time.
func (g *Generator) Generate(prev *State, drift *Drift, scale float64) (State, Drift, error) {
	return g.GenerateAt(g.clock.Now(), prev, drift, scale)
}

// GenerateAt returns the state following prev and the advanced drift.
//
// Without prev it returns one raw reading per field and freshly seeded drift;
// drift without prev is rejected. With prev, every field moves by
// raw*drift*scale and is clamped to its bounds, wind direction wraps into
// [0, 360), and the drift takes one random-walk step. A nil drift alongside
// prev is seeded before stepping.
func (g *Generator) GenerateAt(at time.Time, prev *State, drift *Drift, scale float64) (State, Drift, error) {
	if prev == nil {
		if drift != nil {
			return State{}, Drift{}, fmt.Errorf("%w: drift supplied without a previous state", ErrInvalidArgument)
		}
		return g.sensors.ReadAll(at), g.drift.Seed(), nil
	}
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return State{}, Drift{}, fmt.Errorf("%w: scale %v", ErrInvalidArgument, scale)
	}

	var d Drift
	if drift != nil {
		d = *drift
	} else {
		d = g.drift.Seed()
	}

	var next State
	for _, f := range Fields {
		v := prev.Get(f) + g.sensors.Read(f, at)*d.Get(f)*scale
		if f == WindDirection {
			next.Set(f, wrapDegrees(v))
			continue
		}
		next.Set(f, stateBounds[f].Clamp(v))
	}

	return next, g.drift.Walk(d), nil
}

func wrapDegrees(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	// -tiny + 360 rounds to 360.
	if v >= 360 {
		v -= 360
	}
	return v
}
