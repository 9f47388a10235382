package models

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

type OrderStatus string

const (
	OrderStatusFilled OrderStatus = "filled"
)

// OrderRequest carries raw user input; quantity and price are parsed and
// validated by the engine.
type OrderRequest struct {
	Side     OrderSide `json:"side" validate:"required,oneof=buy sell"`
	Type     OrderType `json:"type" validate:"required,oneof=market limit"`
	Quantity string    `json:"quantity" validate:"required"`
	Price    string    `json:"price,omitempty" validate:"required_if=Type limit"`
}
