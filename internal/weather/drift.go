package weather

import "math/rand/v2"

// driftSeeds are the ranges fresh coefficients are drawn from. The same
// ranges are used as the per-step delta of the drift random walk.
var driftSeeds = [fieldCount]Range{
	Temperature:    {-0.00005, 0.00005},
	Humidity:       {-0.0005, 0.0005},
	Pressure:       {-0.0000002, 0.0000002},
	WindSpeed:      {-0.05, 0.05},
	WindDirection:  {-0.01, 0.01},
	SolarRadiation: {-0.0003, 0.0003},
	UVIndex:        {-0.0006, 0.0006},
	Precipitation:  {-0.031, 0.03},
}

// DriftSeedRange returns the range coefficients of f are seeded from.
func DriftSeedRange(f Field) Range {
	return driftSeeds[f]
}

// DriftBounds returns the range the coefficient of f is kept within:
// double its seed range.
func DriftBounds(f Field) Range {
	seed := driftSeeds[f]
	return Range{Min: 2 * seed.Min, Max: 2 * seed.Max}
}

// DriftController seeds and evolves drift coefficients. Each coefficient
// performs its own bounded random walk, independent of the weather state.
type DriftController struct {
	rng *rand.Rand
}

// NewDriftController returns a controller drawing from rng.
func NewDriftController(rng *rand.Rand) *DriftController {
	return &DriftController{rng: rng}
}

// Seed draws a fresh set of coefficients from the seed ranges.
func (c *DriftController) Seed() Drift {
	var d Drift
	for _, f := range Fields {
		seed := driftSeeds[f]
		d.Set(f, uniform(c.rng, seed.Min, seed.Max))
	}
	return d
}

// Walk advances every coefficient by one step of its random walk, clamped to
// the drift bounds so the walk neither freezes nor runs away.
func (c *DriftController) Walk(d Drift) Drift {
	var next Drift
	for _, f := range Fields {
		delta := driftSeeds[f]
		v := d.Get(f) + uniform(c.rng, delta.Min, delta.Max)
		next.Set(f, DriftBounds(f).Clamp(v))
	}
	return next
}
