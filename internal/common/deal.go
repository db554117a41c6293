package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var half = decimal.New(5, -1)

// Deal accounts for the two orders that matched. The price is the mid of the
// two order prices.
type Deal struct {
	ID          uint64
	Instrument  AssetPair
	Price       decimal.Decimal
	Quantity    int64
	BuyOrderID  uint64
	BuyParty    string
	SellOrderID uint64
	SellParty   string
	Time        time.Time
}

// MidPrice is the price at which a buy and a sell order deal.
func MidPrice(buy, sell Order) decimal.Decimal {
	return Mid(buy.Price, sell.Price)
}

// Mid is the exact mean of two prices. Halving by multiplication keeps every
// digit, where division would round at the decimal division precision.
func Mid(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b).Mul(half)
}

// NewDeal builds a deal between a buy and a sell order for quantity units.
func NewDeal(id uint64, buy, sell Order, quantity int64, t time.Time) (Deal, error) {
	if buy.Side != Buy || sell.Side != Sell {
		return Deal{}, fmt.Errorf("%w: deal needs a buy and a sell order, got %v and %v",
			ErrValidation, buy.Side, sell.Side)
	}
	if buy.Instrument != sell.Instrument {
		return Deal{}, fmt.Errorf("%w: deal instruments differ: %s and %s",
			ErrValidation, buy.Instrument, sell.Instrument)
	}
	if quantity <= 0 || quantity > min(buy.Quantity, sell.Quantity) {
		return Deal{}, fmt.Errorf("%w: deal quantity %d outside (0, %d]",
			ErrValidation, quantity, min(buy.Quantity, sell.Quantity))
	}
	return Deal{
		ID:          id,
		Instrument:  buy.Instrument,
		Price:       MidPrice(buy, sell),
		Quantity:    quantity,
		BuyOrderID:  buy.ID,
		BuyParty:    buy.Party,
		SellOrderID: sell.ID,
		SellParty:   sell.Party,
		Time:        t,
	}, nil
}

// Party returns the party on the given side of the deal.
func (d Deal) Party(side Side) string {
	if side == Buy {
		return d.BuyParty
	}
	return d.SellParty
}

// TermsQuantity is the amount of the terms asset exchanged.
func (d Deal) TermsQuantity() decimal.Decimal {
	return d.Price.Mul(decimal.NewFromInt(d.Quantity))
}

func (d Deal) String() string {
	return fmt.Sprintf(
		`ID:         %d
Instrument: %s
Price:      %s
Quantity:   %d
Buy:        %s (order %d)
Sell:       %s (order %d)
Time:       %v`,
		d.ID,
		d.Instrument,
		d.Price,
		d.Quantity,
		d.BuyParty, d.BuyOrderID,
		d.SellParty, d.SellOrderID,
		d.Time.Format(time.RFC3339Nano),
	)
}
