package position

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"fxmatch/internal/common"
	"fxmatch/internal/risk"

	"github.com/shopspring/decimal"
)

// View is the read-only face of an Account handed to strategies and reports.
type View interface {
	Position(asset common.Asset) decimal.Decimal
	Assets() []common.Asset
	Limits() *risk.Limits
	MaxFill(instrument common.AssetPair, orderSide common.Side, rate decimal.Decimal) risk.Limit
}

type watermark struct {
	high decimal.Decimal
	low  decimal.Decimal
}

// Account tracks the signed per-asset positions of one party and keeps them
// within the party's risk limits. Positive means long.
//
// An Account is owned by a single engine and is not safe for concurrent use.
type Account struct {
	limits    *risk.Limits
	positions map[common.Asset]decimal.Decimal
	marks     map[common.Asset]*watermark
}

func NewAccount(limits *risk.Limits) *Account {
	if limits == nil {
		limits = risk.NoLimits()
	}
	return &Account{
		limits:    limits,
		positions: make(map[common.Asset]decimal.Decimal),
		marks:     make(map[common.Asset]*watermark),
	}
}

func (a *Account) Limits() *risk.Limits {
	return a.limits
}

// Position returns the signed position in asset, zero when never traded.
func (a *Account) Position(asset common.Asset) decimal.Decimal {
	return a.positions[asset]
}

// Assets lists every asset that has a position entry, in code order.
func (a *Account) Assets() []common.Asset {
	return slices.Sorted(maps.Keys(a.positions))
}

// signed returns the exposure of pos seen from side: a long position is
// positive exposure for a buyer and negative for a seller.
func signed(pos decimal.Decimal, side common.Side) decimal.Decimal {
	if side == common.Buy {
		return pos
	}
	return pos.Neg()
}

// MaxFill returns the largest base quantity this account can take acting as
// counterparty to an order of orderSide at rate, without breaching the base or
// the terms limit.
func (a *Account) MaxFill(instrument common.AssetPair, orderSide common.Side, rate decimal.Decimal) risk.Limit {
	fill := risk.Unlimited

	if n, ok := a.limits.MaxPosition(instrument.Base).Value(); ok {
		headroom := decimal.NewFromInt(n).Sub(signed(a.Position(instrument.Base), orderSide.Opposite()))
		fill = fill.Min(toLimit(headroom))
	}

	if n, ok := a.limits.MaxPosition(instrument.Terms).Value(); ok {
		headroom := decimal.NewFromInt(n).Sub(signed(a.Position(instrument.Terms), orderSide))
		switch {
		case rate.IsPositive():
			fill = fill.Min(termsLimit(headroom, rate))
		case headroom.IsNegative():
			// A zero price moves no terms; only an existing breach blocks it.
			fill = fill.Min(risk.AtMost(0))
		}
	}
	return fill
}

// termsLimit converts a terms headroom to base units at rate. The quotient is
// rounded at the division precision, so it is stepped back when the product
// would overshoot the headroom.
func termsLimit(headroom, rate decimal.Decimal) risk.Limit {
	qty := headroom.Div(rate).Floor()
	if qty.IsPositive() && qty.Mul(rate).GreaterThan(headroom) {
		qty = qty.Sub(decimal.NewFromInt(1))
	}
	return toLimit(qty)
}

// toLimit floors a base quantity headroom to whole units.
func toLimit(headroom decimal.Decimal) risk.Limit {
	headroom = headroom.Floor()
	if headroom.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return risk.AtMost(math.MaxInt64)
	}
	return risk.AtMost(headroom.IntPart())
}

// Update applies a deal in which this account took side. The deal must fit
// inside the headroom re-derived at the deal price, otherwise ErrRiskBreach is
// returned and no position changes.
func (a *Account) Update(deal common.Deal, side common.Side) error {
	headroom := a.MaxFill(deal.Instrument, side.Opposite(), deal.Price)
	if headroom.Clip(deal.Quantity) < deal.Quantity {
		return fmt.Errorf("%w: deal %d %v %d %s @ %s exceeds headroom %v",
			common.ErrRiskBreach, deal.ID, side, deal.Quantity, deal.Instrument, deal.Price, headroom)
	}

	base := decimal.NewFromInt(deal.Quantity)
	terms := deal.TermsQuantity()
	if side == common.Sell {
		base = base.Neg()
	} else {
		terms = terms.Neg()
	}
	a.add(deal.Instrument.Base, base)
	a.add(deal.Instrument.Terms, terms)
	return nil
}

func (a *Account) add(asset common.Asset, delta decimal.Decimal) {
	pos := a.positions[asset].Add(delta)
	a.positions[asset] = pos

	mark, ok := a.marks[asset]
	if !ok {
		mark = &watermark{}
		a.marks[asset] = mark
	}
	if pos.GreaterThan(mark.high) {
		mark.high = pos
	}
	if pos.LessThan(mark.low) {
		mark.low = pos
	}
}

// HighWaterMark is the largest long position seen in asset since the last reset.
func (a *Account) HighWaterMark(asset common.Asset) decimal.Decimal {
	if mark, ok := a.marks[asset]; ok {
		return mark.high
	}
	return decimal.Zero
}

// LowWaterMark is the largest short position seen in asset since the last
// reset, as a negative number.
func (a *Account) LowWaterMark(asset common.Asset) decimal.Decimal {
	if mark, ok := a.marks[asset]; ok {
		return mark.low
	}
	return decimal.Zero
}

// Reset flattens the position in asset. It bypasses risk checks.
func (a *Account) Reset(asset common.Asset) {
	delete(a.positions, asset)
	delete(a.marks, asset)
}

// ResetAll flattens every position.
func (a *Account) ResetAll() {
	clear(a.positions)
	clear(a.marks)
}

// View returns a read-only view over the account.
func (a *Account) View() View {
	return view{account: a}
}

type view struct {
	account *Account
}

func (v view) Position(asset common.Asset) decimal.Decimal {
	return v.account.Position(asset)
}

func (v view) Assets() []common.Asset {
	return v.account.Assets()
}

func (v view) Limits() *risk.Limits {
	return v.account.Limits()
}

func (v view) MaxFill(instrument common.AssetPair, orderSide common.Side, rate decimal.Decimal) risk.Limit {
	return v.account.MaxFill(instrument, orderSide, rate)
}

func (a *Account) String() string {
	s := "["
	for i, asset := range a.Assets() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %s", asset, a.positions[asset])
	}
	return s + "]"
}
