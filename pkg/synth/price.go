package synth

import (
	"github.com/shopspring/decimal"
)

// NoiseConfig holds the amplitude of each noise term as a fraction of the
// current price: Micro 0.002 draws uniformly in ±0.2%.
type NoiseConfig struct {
	Micro            float64 `mapstructure:"micro"`
	Small            float64 `mapstructure:"small"`
	Medium           float64 `mapstructure:"medium"`
	Shock            float64 `mapstructure:"shock"`
	ShockProbability float64 `mapstructure:"shock_probability"`
	Drift            float64 `mapstructure:"drift"`
}

func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		Micro:            0.002,
		Small:            0.005,
		Medium:           0.012,
		Shock:            0.025,
		ShockProbability: 0.05,
		Drift:            0.001,
	}
}

// PriceProcess is a Markov random walk: the next price depends only on the
// current one.
type PriceProcess struct {
	noise     NoiseConfig
	precision int32
	src       Source
}

func NewPriceProcess(noise NoiseConfig, precision int32, src Source) *PriceProcess {
	return &PriceProcess{
		noise:     noise,
		precision: precision,
		src:       src,
	}
}

// Next returns current × (1 + noise), rounded to the price precision. The
// result is always positive.
func (p *PriceProcess) Next(current decimal.Decimal) decimal.Decimal {
	sum := symmetric(p.src, p.noise.Micro) +
		symmetric(p.src, p.noise.Small) +
		symmetric(p.src, p.noise.Medium)

	// Rare shock
	if p.src.Float64() < p.noise.ShockProbability {
		sum += symmetric(p.src, p.noise.Shock)
	}

	sum += symmetric(p.src, p.noise.Drift)

	next := current.Mul(decimal.NewFromFloat(1 + sum)).Round(p.precision)
	if !next.IsPositive() {
		return increment(p.precision)
	}
	return next
}
