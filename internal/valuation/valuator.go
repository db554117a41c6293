package valuation

import (
	"fmt"

	"fxmatch/internal/common"

	"github.com/shopspring/decimal"
)

// Positions is what the valuator needs to read from an account.
type Positions interface {
	Position(asset common.Asset) decimal.Decimal
	Assets() []common.Asset
}

// Valuator marks a set of positions to market in a single currency.
type Valuator struct {
	currency  common.Asset
	positions Positions
}

func NewValuator(currency common.Asset, positions Positions) *Valuator {
	return &Valuator{currency: currency, positions: positions}
}

func (v *Valuator) Currency() common.Asset {
	return v.currency
}

// Value sums every non-zero position converted into the valuation currency.
// A missing rate for any held asset fails the whole valuation.
func (v *Valuator) Value(rates RateSource) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, asset := range v.positions.Assets() {
		value, err := v.ValueAsset(asset, rates)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(value)
	}
	return total, nil
}

// ValueAsset converts the position in a single asset. A flat position is
// worth zero whether or not a rate exists.
func (v *Valuator) ValueAsset(asset common.Asset, rates RateSource) (decimal.Decimal, error) {
	pos := v.positions.Position(asset)
	if pos.IsZero() {
		return decimal.Zero, nil
	}
	rate, err := rates.Rate(asset, v.currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("valuing %s in %s: %w", asset, v.currency, err)
	}
	return pos.Mul(rate), nil
}
