package synth

import (
	"time"

	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/shopspring/decimal"
)

type CandleConfig struct {
	MinTicks  int     `mapstructure:"min_ticks"`
	VolumeMin float64 `mapstructure:"volume_min"`
	VolumeMax float64 `mapstructure:"volume_max"`
}

func DefaultCandleConfig() CandleConfig {
	return CandleConfig{
		MinTicks:  4,
		VolumeMin: 10,
		VolumeMax: 60,
	}
}

// CandleAggregator folds a window of ticks into one OHLCV bar. Volume is an
// independent draw and does not depend on the ticks.
type CandleAggregator struct {
	cfg CandleConfig
	src Source
}

func NewCandleAggregator(cfg CandleConfig, src Source) *CandleAggregator {
	return &CandleAggregator{
		cfg: cfg,
		src: src,
	}
}

// Aggregate returns false when the window holds fewer than MinTicks ticks.
func (a *CandleAggregator) Aggregate(ticks []models.Tick, windowStart time.Time) (models.Candle, bool) {
	if len(ticks) < a.cfg.MinTicks || len(ticks) == 0 {
		return models.Candle{}, false
	}

	first, last := ticks[0], ticks[0]
	candle := models.Candle{
		WindowStart: windowStart,
		High:        ticks[0].Price,
		Low:         ticks[0].Price,
	}

	for _, tick := range ticks[1:] {
		if tick.Timestamp.Before(first.Timestamp) {
			first = tick
		}
		if !tick.Timestamp.Before(last.Timestamp) {
			last = tick
		}
		if tick.Price.GreaterThan(candle.High) {
			candle.High = tick.Price
		}
		if tick.Price.LessThan(candle.Low) {
			candle.Low = tick.Price
		}
	}

	candle.Open = first.Price
	candle.Close = last.Price
	candle.Volume = decimal.NewFromFloat(uniform(a.src, a.cfg.VolumeMin, a.cfg.VolumeMax)).Round(2)

	return candle, true
}
