package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/gregtusar/simfeed/pkg/synth"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Engine owns every piece of mutable feed state. Tick, CloseCandle and
// PlaceOrder are serialized by mu and each ends by publishing a new snapshot.
type Engine struct {
	cfg      Config
	logger   *logrus.Logger
	src      synth.Source
	clock    func() time.Time
	validate *validator.Validate

	prices  *synth.PriceProcess
	books   *synth.BookSynthesizer
	sampler *synth.TradeSampler
	candles *synth.CandleAggregator

	mu           sync.Mutex
	price        decimal.Decimal
	ticks        []models.Tick
	book         models.OrderBook
	trades       []models.Trade
	candleSeries []models.Candle
	// liveCandle marks the trailing candle as built by CloseCandle, so a
	// repeat close of the same window may revise it. Seeded candles are final.
	liveCandle bool
	stats        models.RollingStats
	sequence     uint64
	running      bool

	published atomic.Pointer[models.Snapshot]

	subMu       sync.Mutex
	subscribers map[string]*Subscription
	subsClosed  bool

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

type Option func(*Engine)

// WithSource replaces the random source shared by all generators.
func WithSource(src synth.Source) Option {
	return func(e *Engine) { e.src = src }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New validates cfg, seeds the initial history and publishes the first
// snapshot. The engine does not advance until Start is called or Tick and
// CloseCandle are driven by hand.
func New(cfg Config, logger *logrus.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feed config: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		clock:       time.Now,
		validate:    validator.New(),
		subscribers: make(map[string]*Subscription),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = synth.NewSource(cfg.RandomSeed)
	}

	e.prices = synth.NewPriceProcess(cfg.Noise, cfg.PricePrecision, e.src)
	e.books = synth.NewBookSynthesizer(cfg.Book, cfg.PricePrecision, e.src)
	e.sampler = synth.NewTradeSampler(cfg.Trade, cfg.PricePrecision, e.src)
	e.candles = synth.NewCandleAggregator(cfg.Candle, e.src)

	e.mu.Lock()
	e.seed()
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"symbol":  cfg.Symbol,
		"price":   e.price.StringFixed(cfg.PricePrecision),
		"ticks":   len(e.ticks),
		"candles": len(e.candleSeries),
		"trades":  len(e.trades),
	}).Info("Seeded feed history")

	return e, nil
}

func (e *Engine) seed() {
	now := e.clock()
	start := decimal.NewFromFloat(e.cfg.StartPrice).Round(e.cfg.PricePrecision)

	price := start
	history := make([]models.Tick, 0, e.cfg.SeedTicks)
	for i := 0; i < e.cfg.SeedTicks; i++ {
		price = e.prices.Next(price)
		history = append(history, models.Tick{
			Timestamp: now.Add(-time.Duration(e.cfg.SeedTicks-i) * e.cfg.TickPeriod),
			Price:     price,
		})
	}

	for i := 0; i < len(history); {
		end := min(i+e.cfg.SeedCandleSize, len(history))
		// a tail too short for its own candle joins the last chunk
		if len(history)-end < e.cfg.Candle.MinTicks {
			end = len(history)
		}
		chunk := history[i:end]
		if candle, ok := e.candles.Aggregate(chunk, chunk[0].Timestamp); ok {
			e.candleSeries = appendCapped(e.candleSeries, candle, e.cfg.MaxCandles)
		}
		i = end
	}

	e.ticks = history
	if len(e.ticks) > e.cfg.MaxTicks {
		e.ticks = append([]models.Tick(nil), e.ticks[len(e.ticks)-e.cfg.MaxTicks:]...)
	}

	for i := 0; i < e.cfg.SeedTrades; i++ {
		e.trades = prependCapped(e.trades, e.sampler.Sample(price, now), e.cfg.MaxTrades)
	}

	e.price = price
	e.book = e.books.Synthesize(price, e.cfg.BookDepth, now)

	e.stats = models.RollingStats{
		Volume:      decimal.NewFromFloat(e.cfg.InitialVolume).Round(2),
		SessionOpen: start,
		SessionHigh: start,
		SessionLow:  start,
	}
	for _, tick := range history {
		e.trackExtremes(tick.Price)
	}
	e.stats.ChangePercent = e.changePercent(price)

	e.publishLocked(now)
}

// Start runs the tick and candle timers on a single goroutine until ctx is
// cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	select {
	case <-e.stopCh:
		return errors.New("feed engine already stopped")
	default:
	}
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("feed engine already started")
	}

	e.logger.WithFields(logrus.Fields{
		"symbol":        e.cfg.Symbol,
		"tick_period":   e.cfg.TickPeriod.String(),
		"candle_period": e.cfg.CandlePeriod.String(),
	}).Info("Starting feed engine")

	e.setRunning(true)

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

// Stop halts both timers and waits for an in-flight update to finish.
// Subscriber channels are closed afterwards. Stop is safe to call more than
// once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.logger.Info("Stopping feed engine")
		close(e.stopCh)
		e.wg.Wait()
		e.setRunning(false)
		e.closeSubscribers()
	})
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	tickTimer := time.NewTicker(e.cfg.TickPeriod)
	defer tickTimer.Stop()
	candleTimer := time.NewTicker(e.cfg.CandlePeriod)
	defer candleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.setRunning(false)
			return
		case <-e.stopCh:
			return
		case <-tickTimer.C:
			e.Tick()
		case <-candleTimer.C:
			e.CloseCandle()
		}
	}
}

// Tick advances the price by one step and refreshes everything derived from
// it.
func (e *Engine) Tick() models.Tick {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	if n := len(e.ticks); n > 0 && now.Before(e.ticks[n-1].Timestamp) {
		now = e.ticks[n-1].Timestamp
	}

	price := e.prices.Next(e.price)
	tick := models.Tick{Timestamp: now, Price: price}

	e.price = price
	e.ticks = appendCapped(e.ticks, tick, e.cfg.MaxTicks)
	e.book = e.books.Synthesize(price, e.cfg.BookDepth, now)

	if e.src.Float64() < e.cfg.TradeProbability {
		e.trades = prependCapped(e.trades, e.sampler.Sample(price, now), e.cfg.MaxTrades)
	}

	increment := decimal.NewFromFloat(e.src.Float64() * e.cfg.VolumeIncrement).Round(2)
	e.stats.Volume = e.stats.Volume.Add(increment)
	e.stats.ChangePercent = e.changePercent(price)
	e.trackExtremes(price)

	e.publishLocked(now)

	e.logger.WithField("price", price.StringFixed(e.cfg.PricePrecision)).Debug("Tick")
	return tick
}

// CloseCandle folds the ticks of the last candle period into a bar. It
// reports false when the window held too few ticks, or when the window does
// not start after a candle that is already final; nothing changes then.
func (e *Engine) CloseCandle() (models.Candle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	windowStart := now.Add(-e.cfg.CandlePeriod)

	from := windowStart
	replace := false
	if n := len(e.candleSeries); n > 0 && !windowStart.After(e.candleSeries[n-1].WindowStart) {
		if !e.liveCandle {
			e.logger.WithField("window_start", windowStart).Debug("Window overlaps a closed candle")
			return models.Candle{}, false
		}
		// Still inside the trailing candle's window.
		from = e.candleSeries[n-1].WindowStart
		replace = true
	}

	first := sort.Search(len(e.ticks), func(i int) bool {
		return e.ticks[i].Timestamp.After(from)
	})
	window := e.ticks[first:]

	candle, ok := e.candles.Aggregate(window, from)
	if !ok {
		e.logger.WithField("ticks", len(window)).Debug("Not enough ticks for a candle")
		return models.Candle{}, false
	}

	if replace {
		e.candleSeries[len(e.candleSeries)-1] = candle
	} else {
		e.candleSeries = appendCapped(e.candleSeries, candle, e.cfg.MaxCandles)
	}
	e.liveCandle = true

	e.publishLocked(now)

	e.logger.WithFields(logrus.Fields{
		"open":  candle.Open.String(),
		"high":  candle.High.String(),
		"low":   candle.Low.String(),
		"close": candle.Close.String(),
		"ticks": len(window),
	}).Debug("Candle closed")
	return candle, true
}

func (e *Engine) setRunning(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running == running {
		return
	}
	e.running = running
	e.publishLocked(e.clock())
}

func (e *Engine) changePercent(price decimal.Decimal) decimal.Decimal {
	open := e.stats.SessionOpen
	if open.IsZero() {
		return decimal.Zero
	}
	return price.Sub(open).Div(open).Mul(decimal.NewFromInt(100)).Round(2)
}

func (e *Engine) trackExtremes(price decimal.Decimal) {
	if price.GreaterThan(e.stats.SessionHigh) {
		e.stats.SessionHigh = price
	}
	if price.LessThan(e.stats.SessionLow) {
		e.stats.SessionLow = price
	}
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}

func prependCapped[T any](s []T, v T, limit int) []T {
	out := make([]T, 0, min(len(s)+1, limit))
	out = append(out, v)
	return append(out, s[:min(len(s), limit-1)]...)
}
