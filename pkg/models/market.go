package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Tick struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBook is a synthesized ladder around a single reference price.
// Bids are sorted by descending price, asks by ascending price.
type OrderBook struct {
	Reference decimal.Decimal `json:"reference"`
	Bids      []PriceLevel    `json:"bids"`
	Asks      []PriceLevel    `json:"asks"`
	Timestamp time.Time       `json:"timestamp"`
}

type TradeSource string

const (
	TradeSourceSampled TradeSource = "sampled"
	TradeSourceOrder   TradeSource = "order"
)

type Trade struct {
	ID        string          `json:"id"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
	Source    TradeSource     `json:"source"`
	OrderType OrderType       `json:"order_type,omitempty"`
	Status    OrderStatus     `json:"status,omitempty"`
}

type Candle struct {
	WindowStart time.Time       `json:"window_start"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
}

type RollingStats struct {
	Volume        decimal.Decimal `json:"volume"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	SessionOpen   decimal.Decimal `json:"session_open"`
	SessionHigh   decimal.Decimal `json:"session_high"`
	SessionLow    decimal.Decimal `json:"session_low"`
}

// Snapshot is the published, read-only view of the feed. A snapshot is never
// modified after it has been handed out.
type Snapshot struct {
	Symbol       string          `json:"symbol"`
	Sequence     uint64          `json:"sequence"`
	Running      bool            `json:"running"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Ticks        []Tick          `json:"ticks"`
	OrderBook    OrderBook       `json:"order_book"`
	Trades       []Trade         `json:"trades"`
	Candles      []Candle        `json:"candles"`
	Stats        RollingStats    `json:"stats"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
