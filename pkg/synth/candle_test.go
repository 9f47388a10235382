package synth

import (
	"testing"
	"time"

	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestTicks(start time.Time, spacing time.Duration, prices ...string) []models.Tick {
	ticks := make([]models.Tick, 0, len(prices))
	for i, p := range prices {
		ticks = append(ticks, models.Tick{
			Timestamp: start.Add(time.Duration(i) * spacing),
			Price:     decimal.RequireFromString(p),
		})
	}
	return ticks
}

func TestCandleAggregator_Aggregate(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		ticks  []models.Tick
		wantOK bool
		open   string
		high   string
		low    string
		close  string
	}{
		{
			name:   "below minimum tick count",
			ticks:  createTestTicks(start, 3*time.Second, "100", "102", "99"),
			wantOK: false,
		},
		{
			name:   "empty window",
			ticks:  nil,
			wantOK: false,
		},
		{
			name:   "five ticks",
			ticks:  createTestTicks(start, 3*time.Second, "100", "102", "99", "105", "101"),
			wantOK: true,
			open:   "100", high: "105", low: "99", close: "101",
		},
		{
			name:   "exactly the minimum",
			ticks:  createTestTicks(start, 3*time.Second, "50", "50.5", "49.75", "50.25"),
			wantOK: true,
			open:   "50", high: "50.5", low: "49.75", close: "50.25",
		},
		{
			name:   "flat window",
			ticks:  createTestTicks(start, time.Second, "10", "10", "10", "10"),
			wantOK: true,
			open:   "10", high: "10", low: "10", close: "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewCandleAggregator(DefaultCandleConfig(), NewSource(5))

			candle, ok := agg.Aggregate(tt.ticks, start)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}

			assert.Equal(t, tt.open, candle.Open.String())
			assert.Equal(t, tt.high, candle.High.String())
			assert.Equal(t, tt.low, candle.Low.String())
			assert.Equal(t, tt.close, candle.Close.String())
			assert.Equal(t, start, candle.WindowStart)
			assert.True(t, candle.Low.LessThanOrEqual(candle.Open))
			assert.True(t, candle.Low.LessThanOrEqual(candle.Close))
			assert.True(t, candle.High.GreaterThanOrEqual(candle.Open))
			assert.True(t, candle.High.GreaterThanOrEqual(candle.Close))
			assert.True(t, candle.Volume.GreaterThanOrEqual(decimal.NewFromInt(10)))
			assert.True(t, candle.Volume.LessThanOrEqual(decimal.NewFromInt(60)))
		})
	}
}

func TestCandleAggregator_OpenCloseFollowTimestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := createTestTicks(start, time.Second, "100", "102", "99", "105", "101")
	// feed the window out of order
	shuffled := []models.Tick{ticks[3], ticks[4], ticks[0], ticks[2], ticks[1]}

	agg := NewCandleAggregator(DefaultCandleConfig(), Neutral)
	candle, ok := agg.Aggregate(shuffled, start)

	require.True(t, ok)
	assert.Equal(t, "100", candle.Open.String())
	assert.Equal(t, "101", candle.Close.String())
	assert.Equal(t, "105", candle.High.String())
	assert.Equal(t, "99", candle.Low.String())
	assert.Equal(t, "35", candle.Volume.String())
}
