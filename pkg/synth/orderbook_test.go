package synth

import (
	"testing"
	"time"

	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBookNotCrossed(t *testing.T, book models.OrderBook) {
	t.Helper()

	for i, level := range book.Bids {
		require.True(t, level.Price.LessThan(book.Reference), "bid %d %s >= reference %s", i, level.Price, book.Reference)
		require.True(t, level.Price.IsPositive(), "bid %d not positive", i)
		require.True(t, level.Quantity.IsPositive(), "bid %d quantity not positive", i)
		if i > 0 {
			require.True(t, level.Price.LessThan(book.Bids[i-1].Price), "bids not strictly descending at %d", i)
		}
	}
	for i, level := range book.Asks {
		require.True(t, level.Price.GreaterThan(book.Reference), "ask %d %s <= reference %s", i, level.Price, book.Reference)
		require.True(t, level.Quantity.IsPositive(), "ask %d quantity not positive", i)
		if i > 0 {
			require.True(t, level.Price.GreaterThan(book.Asks[i-1].Price), "asks not strictly ascending at %d", i)
		}
	}
}

func TestBookSynthesizer_NonCrossing(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		depth     int
		src       Source
	}{
		{name: "default price", reference: "49500", depth: 15, src: NewSource(1)},
		{name: "max jitter every level", reference: "49500", depth: 15, src: Constant(0.9999)},
		{name: "zero jitter every level", reference: "49500", depth: 15, src: Constant(0)},
		{name: "sub-cent instrument", reference: "0.05", depth: 15, src: NewSource(3)},
		{name: "single level", reference: "100", depth: 1, src: NewSource(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBookSynthesizer(DefaultBookConfig(), 2, tt.src)
			for i := 0; i < 50; i++ {
				book := b.Synthesize(decimal.RequireFromString(tt.reference), tt.depth, time.Now())
				require.Len(t, book.Bids, tt.depth)
				require.Len(t, book.Asks, tt.depth)
				assertBookNotCrossed(t, book)
			}
		})
	}
}

func TestBookSynthesizer_SpreadScalesWithPrice(t *testing.T) {
	cfg := BookConfig{SpreadBase: 0.001, QtyMin: 1, QtyMax: 1}
	b := NewBookSynthesizer(cfg, 2, Neutral)

	book := b.Synthesize(decimal.NewFromInt(1000), 3, time.Now())

	assert.Equal(t, "999", book.Bids[0].Price.String())
	assert.Equal(t, "998", book.Bids[1].Price.String())
	assert.Equal(t, "997", book.Bids[2].Price.String())
	assert.Equal(t, "1001", book.Asks[0].Price.String())
	assert.Equal(t, "1003", book.Asks[2].Price.String())
	assert.Equal(t, "1", book.Asks[2].Quantity.String())
}

func TestBookSynthesizer_ZeroDepth(t *testing.T) {
	b := NewBookSynthesizer(DefaultBookConfig(), 2, Neutral)

	book := b.Synthesize(decimal.NewFromInt(1000), 0, time.Now())

	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
	assert.True(t, book.Reference.Equal(decimal.NewFromInt(1000)))
}
