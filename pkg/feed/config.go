package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/gregtusar/simfeed/pkg/synth"
)

const minTickPeriod = time.Millisecond

type Config struct {
	Symbol           string        `mapstructure:"symbol"`
	StartPrice       float64       `mapstructure:"start_price"`
	PricePrecision   int32         `mapstructure:"price_precision"`
	TickPeriod       time.Duration `mapstructure:"tick_period"`
	CandlePeriod     time.Duration `mapstructure:"candle_period"`
	MaxTicks         int           `mapstructure:"max_ticks"`
	MaxTrades        int           `mapstructure:"max_trades"`
	MaxCandles       int           `mapstructure:"max_candles"`
	BookDepth        int           `mapstructure:"book_depth"`
	SeedTicks        int           `mapstructure:"seed_ticks"`
	SeedCandleSize   int           `mapstructure:"seed_candle_size"`
	SeedTrades       int           `mapstructure:"seed_trades"`
	TradeProbability float64       `mapstructure:"trade_probability"`
	InitialVolume    float64       `mapstructure:"initial_volume"`
	VolumeIncrement  float64       `mapstructure:"volume_increment"`
	RandomSeed       int64         `mapstructure:"random_seed"`

	Noise  synth.NoiseConfig  `mapstructure:"noise"`
	Book   synth.BookConfig   `mapstructure:"book"`
	Trade  synth.TradeConfig  `mapstructure:"trade"`
	Candle synth.CandleConfig `mapstructure:"candle"`
}

func DefaultConfig() Config {
	return Config{
		Symbol:           "BTC-USD",
		StartPrice:       49500,
		PricePrecision:   2,
		TickPeriod:       3 * time.Second,
		CandlePeriod:     60 * time.Second,
		MaxTicks:         120,
		MaxTrades:        20,
		MaxCandles:       50,
		BookDepth:        15,
		SeedTicks:        100,
		SeedCandleSize:   5,
		SeedTrades:       10,
		TradeProbability: 0.3,
		InitialVolume:    2847.32,
		VolumeIncrement:  10,
		Noise:            synth.DefaultNoiseConfig(),
		Book:             synth.DefaultBookConfig(),
		Trade:            synth.DefaultTradeConfig(),
		Candle:           synth.DefaultCandleConfig(),
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.StartPrice <= 0 {
		errs = append(errs, fmt.Errorf("start_price must be positive, got %v", c.StartPrice))
	}
	if c.PricePrecision < 0 {
		errs = append(errs, fmt.Errorf("price_precision must not be negative, got %d", c.PricePrecision))
	}
	if c.TickPeriod < minTickPeriod {
		// bare integers decode as nanoseconds; durations need a unit
		errs = append(errs, fmt.Errorf("tick_period must be at least %s, got %s", minTickPeriod, c.TickPeriod))
	}
	if c.CandlePeriod <= c.TickPeriod {
		errs = append(errs, fmt.Errorf("candle_period (%s) must be longer than tick_period (%s)", c.CandlePeriod, c.TickPeriod))
	}
	for name, v := range map[string]int{
		"max_ticks":   c.MaxTicks,
		"max_trades":  c.MaxTrades,
		"max_candles": c.MaxCandles,
		"book_depth":  c.BookDepth,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.SeedTicks < 0 || c.SeedTrades < 0 {
		errs = append(errs, errors.New("seed counts must not be negative"))
	}
	if c.SeedCandleSize < c.Candle.MinTicks || c.SeedCandleSize <= 0 {
		errs = append(errs, fmt.Errorf("seed_candle_size (%d) must be at least candle min_ticks (%d)", c.SeedCandleSize, c.Candle.MinTicks))
	}
	if !isProbability(c.TradeProbability) || !isProbability(c.Noise.ShockProbability) {
		errs = append(errs, errors.New("probabilities must be within [0, 1]"))
	}
	if c.InitialVolume < 0 || c.VolumeIncrement < 0 {
		errs = append(errs, errors.New("volumes must not be negative"))
	}
	if c.Book.SpreadBase <= 0 || c.Book.SpreadJitter < 0 {
		errs = append(errs, errors.New("book spread_base must be positive and spread_jitter not negative"))
	}
	if c.Book.MaxOffset(c.BookDepth) >= 1 {
		errs = append(errs, fmt.Errorf("book of depth %d can reach a non-positive bid", c.BookDepth))
	}
	if err := checkRange("book quantity", c.Book.QtyMin, c.Book.QtyMax); err != nil {
		errs = append(errs, err)
	}
	if err := checkRange("trade quantity", c.Trade.QtyMin, c.Trade.QtyMax); err != nil {
		errs = append(errs, err)
	}
	if err := checkRange("candle volume", c.Candle.VolumeMin, c.Candle.VolumeMax); err != nil {
		errs = append(errs, err)
	}
	if c.Trade.PriceJitter < 0 {
		errs = append(errs, errors.New("trade price_jitter must not be negative"))
	}
	if c.Candle.MinTicks < 1 {
		errs = append(errs, fmt.Errorf("candle min_ticks must be at least 1, got %d", c.Candle.MinTicks))
	}

	return errors.Join(errs...)
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}

func checkRange(name string, min, max float64) error {
	if min <= 0 || max < min {
		return fmt.Errorf("%s range [%v, %v) must be positive and ordered", name, min, max)
	}
	return nil
}
