// Package synth holds the stateless generators behind the feed: the price
// process, the order book synthesizer, the trade sampler and the candle
// aggregator. Every generator draws its randomness from an injected Source so
// runs are reproducible under a fixed seed.
package synth

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Source yields uniform draws in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded generator. A zero seed picks a time based seed.
func NewSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Constant always returns the same draw. Constant(0.5) zeroes every symmetric
// noise term.
type Constant float64

func (c Constant) Float64() float64 { return float64(c) }

// Neutral is the zero-noise source.
const Neutral = Constant(0.5)

// symmetric maps a draw to a value in [-amplitude, amplitude).
func symmetric(src Source, amplitude float64) float64 {
	return (src.Float64() - 0.5) * 2 * amplitude
}

func uniform(src Source, min, max float64) float64 {
	return min + src.Float64()*(max-min)
}

// increment is the smallest positive price at the given precision.
func increment(precision int32) decimal.Decimal {
	return decimal.New(1, -precision)
}
