package common

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Order is an offer by Party to buy or sell Quantity units of the base asset
// of Instrument at Price or better. Orders are values and are never changed
// once built; a partial fill produces a new residual order.
type Order struct {
	ID         uint64          // Allocated by the run's IDAllocator
	Instrument AssetPair       //
	Party      string          // Who owns this order
	Side       Side            // Order side
	Price      decimal.Decimal // Limit price in terms per base
	Quantity   int64           // Base quantity, always positive
	Time       time.Time       // Event time of the order
}

// NewOrder validates and builds an order.
func NewOrder(
	id uint64,
	t time.Time,
	instrument AssetPair,
	party string,
	side Side,
	price decimal.Decimal,
	quantity int64,
) (Order, error) {
	if instrument.Base == instrument.Terms {
		return Order{}, fmt.Errorf("%w: order instrument %s", ErrValidation, instrument)
	}
	if party == "" {
		return Order{}, fmt.Errorf("%w: order has no party", ErrValidation)
	}
	if side != Buy && side != Sell {
		return Order{}, fmt.Errorf("%w: order side %v", ErrValidation, side)
	}
	if price.IsNegative() {
		return Order{}, fmt.Errorf("%w: negative price %s", ErrValidation, price)
	}
	if quantity <= 0 {
		return Order{}, fmt.Errorf("%w: quantity %d must be positive", ErrValidation, quantity)
	}
	return Order{
		ID:         id,
		Instrument: instrument,
		Party:      party,
		Side:       side,
		Price:      price,
		Quantity:   quantity,
		Time:       t,
	}, nil
}

// Residual returns the unfilled remainder of the order under a fresh id.
func (order Order) Residual(id uint64, quantity int64) (Order, error) {
	return NewOrder(id, order.Time, order.Instrument, order.Party, order.Side, order.Price, quantity)
}

// Before orders by time, then by id.
func (order Order) Before(other Order) bool {
	if !order.Time.Equal(other.Time) {
		return order.Time.Before(other.Time)
	}
	return order.ID < other.ID
}

// PriceFromFloat converts a float price from an external feed, rejecting NaN
// and infinities.
func PriceFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: price %v is not finite", ErrValidation, f)
	}
	return decimal.NewFromFloat(f), nil
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:         %d
Instrument: %s
Party:      %s
Side:       %v
Price:      %s
Quantity:   %d
Time:       %v`,
		order.ID,
		order.Instrument,
		order.Party,
		order.Side,
		order.Price,
		order.Quantity,
		order.Time.Format(time.RFC3339Nano),
	)
}
