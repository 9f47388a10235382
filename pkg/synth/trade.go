package synth

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/shopspring/decimal"
)

type TradeConfig struct {
	PriceJitter float64 `mapstructure:"price_jitter"`
	QtyMin      float64 `mapstructure:"qty_min"`
	QtyMax      float64 `mapstructure:"qty_max"`
}

func DefaultTradeConfig() TradeConfig {
	return TradeConfig{
		PriceJitter: 0.0005,
		QtyMin:      0.01,
		QtyMax:      0.51,
	}
}

// TradeSampler draws independent trades around a reference price. It is not
// a matching engine: side, price and size ignore the book entirely.
type TradeSampler struct {
	cfg       TradeConfig
	precision int32
	src       Source
	seq       atomic.Uint64
}

func NewTradeSampler(cfg TradeConfig, precision int32, src Source) *TradeSampler {
	return &TradeSampler{
		cfg:       cfg,
		precision: precision,
		src:       src,
	}
}

func (s *TradeSampler) Sample(reference decimal.Decimal, at time.Time) models.Trade {
	side := models.OrderSideBuy
	if s.src.Float64() >= 0.5 {
		side = models.OrderSideSell
	}

	quantity := decimal.NewFromFloat(uniform(s.src, s.cfg.QtyMin, s.cfg.QtyMax)).Round(4)

	price := reference.Mul(decimal.NewFromFloat(1 + symmetric(s.src, s.cfg.PriceJitter))).Round(s.precision)
	if !price.IsPositive() {
		price = increment(s.precision)
	}

	return models.Trade{
		ID:        s.nextID(),
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Timestamp: at,
		Source:    models.TradeSourceSampled,
	}
}

// nextID pairs a monotonic counter with a random tiebreak.
func (s *TradeSampler) nextID() string {
	seq := s.seq.Add(1)
	tiebreak := int(s.src.Float64()*0x10000) & 0xffff
	return fmt.Sprintf("%d-%04x", seq, tiebreak)
}
