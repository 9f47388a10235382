package synth

import (
	"time"

	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/shopspring/decimal"
)

// BookConfig expresses spreads as fractions of the reference price so the
// ladder looks the same at any price level.
type BookConfig struct {
	SpreadBase   float64 `mapstructure:"spread_base"`
	SpreadJitter float64 `mapstructure:"spread_jitter"`
	QtyMin       float64 `mapstructure:"qty_min"`
	QtyMax       float64 `mapstructure:"qty_max"`
}

func DefaultBookConfig() BookConfig {
	return BookConfig{
		SpreadBase:   0.0002,
		SpreadJitter: 0.0004,
		QtyMin:       0.1,
		QtyMax:       2.1,
	}
}

// MaxOffset is the largest fractional distance from the reference any level
// of a book with the given depth can reach.
func (c BookConfig) MaxOffset(depth int) float64 {
	return float64(depth) * (c.SpreadBase + c.SpreadJitter)
}

type BookSynthesizer struct {
	cfg       BookConfig
	precision int32
	src       Source
}

func NewBookSynthesizer(cfg BookConfig, precision int32, src Source) *BookSynthesizer {
	return &BookSynthesizer{
		cfg:       cfg,
		precision: precision,
		src:       src,
	}
}

// Synthesize builds depth levels on each side of reference. Level offsets are
// cumulative, so bids strictly descend and asks strictly ascend whatever the
// jitter draws are.
func (b *BookSynthesizer) Synthesize(reference decimal.Decimal, depth int, at time.Time) models.OrderBook {
	book := models.OrderBook{
		Reference: reference,
		Bids:      make([]models.PriceLevel, 0, depth),
		Asks:      make([]models.PriceLevel, 0, depth),
		Timestamp: at,
	}

	var bidOffset, askOffset float64
	prevBid, prevAsk := reference, reference
	for i := 0; i < depth; i++ {
		bidOffset += b.cfg.SpreadBase + b.src.Float64()*b.cfg.SpreadJitter
		askOffset += b.cfg.SpreadBase + b.src.Float64()*b.cfg.SpreadJitter

		bid := b.quantize(reference.Mul(decimal.NewFromFloat(1-bidOffset)), func(p decimal.Decimal) bool {
			return p.LessThan(prevBid) && p.IsPositive()
		})
		ask := b.quantize(reference.Mul(decimal.NewFromFloat(1+askOffset)), func(p decimal.Decimal) bool {
			return p.GreaterThan(prevAsk)
		})

		book.Bids = append(book.Bids, models.PriceLevel{Price: bid, Quantity: b.quantity()})
		book.Asks = append(book.Asks, models.PriceLevel{Price: ask, Quantity: b.quantity()})
		prevBid, prevAsk = bid, ask
	}

	return book
}

// quantize rounds to the price precision unless rounding would collapse two
// adjacent levels.
func (b *BookSynthesizer) quantize(exact decimal.Decimal, ok func(decimal.Decimal) bool) decimal.Decimal {
	if rounded := exact.Round(b.precision); ok(rounded) {
		return rounded
	}
	return exact
}

func (b *BookSynthesizer) quantity() decimal.Decimal {
	return decimal.NewFromFloat(uniform(b.src, b.cfg.QtyMin, b.cfg.QtyMax)).Round(4)
}
