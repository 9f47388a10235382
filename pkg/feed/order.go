package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrInvalidOrderInput is returned, wrapped, for any order rejected before it
// touches engine state.
var ErrInvalidOrderInput = errors.New("invalid order input")

// PlaceOrder fills the order immediately and in full. Market orders fill at
// the last published price, limit orders at their own price; there is no
// matching and no rejection for crossing or liquidity.
func (e *Engine) PlaceOrder(req models.OrderRequest) (models.Trade, error) {
	if err := e.validate.Struct(req); err != nil {
		return models.Trade{}, fmt.Errorf("%w: %v", ErrInvalidOrderInput, err)
	}

	quantity, err := parsePositive("quantity", req.Quantity)
	if err != nil {
		return models.Trade{}, err
	}

	var limitPrice decimal.Decimal
	if req.Type == models.OrderTypeLimit {
		if limitPrice, err = parsePositive("price", req.Price); err != nil {
			return models.Trade{}, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fill := e.price
	if req.Type == models.OrderTypeLimit {
		fill = limitPrice
	}

	now := e.clock()
	trade := models.Trade{
		ID:        "ord-" + uuid.NewString(),
		Side:      req.Side,
		Price:     fill,
		Quantity:  quantity,
		Timestamp: now,
		Source:    models.TradeSourceOrder,
		OrderType: req.Type,
		Status:    models.OrderStatusFilled,
	}

	e.trades = prependCapped(e.trades, trade, e.cfg.MaxTrades)
	e.publishLocked(now)

	e.logger.WithFields(logrus.Fields{
		"order_id": trade.ID,
		"side":     trade.Side,
		"type":     trade.OrderType,
		"price":    trade.Price.String(),
		"quantity": trade.Quantity.String(),
	}).Info("Order filled")

	return trade, nil
}

func parsePositive(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s %q is not a number", ErrInvalidOrderInput, field, raw)
	}
	if !value.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidOrderInput, field, value)
	}
	return value, nil
}
