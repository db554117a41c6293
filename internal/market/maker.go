package market

import (
	"fmt"
	"time"

	"fxmatch/internal/common"
	"fxmatch/internal/flow"
	"fxmatch/internal/position"

	"github.com/shopspring/decimal"
)

// PositionLookup resolves the positions of a party.
type PositionLookup interface {
	Positions(party string) position.View
}

// Quoter supplies the strategy specific parts of a two-sided quote. The
// Maker owns the loop, the market view and the risk constraint.
type Quoter interface {
	NextParty(side common.Side) string
	NextQuantity(side common.Side, party string) int64
	NextPrice(side common.Side, party string, mid decimal.Decimal, positions position.View) decimal.Decimal
}

// DealFollower is implemented by quoters that react to deals.
type DealFollower interface {
	OnDeal(deal common.Deal)
}

// Maker quotes an instrument around the last observed market. It is an order
// source and a market observer at once.
//
// A side is quoted again only after new market information arrived since its
// last quote, so a quiet market makes the maker go quiet as well.
type Maker struct {
	ids        *common.IDAllocator
	instrument common.AssetPair
	quoter     Quoter
	positions  PositionLookup
	latency    time.Duration

	clock          time.Time
	bid, ask       decimal.Decimal
	hasBid, hasAsk bool
	fresh          [2]bool
	next           common.Side
	own            map[string]bool
}

var (
	_ flow.Source       = (*Maker)(nil)
	_ Observer          = (*Maker)(nil)
	_ BestQuoteObserver = (*Maker)(nil)
)

// NewMaker builds a maker. Its orders are stamped latency after the last
// observed market time.
func NewMaker(
	ids *common.IDAllocator,
	instrument common.AssetPair,
	quoter Quoter,
	positions PositionLookup,
	latency time.Duration,
) *Maker {
	return &Maker{
		ids:        ids,
		instrument: instrument,
		quoter:     quoter,
		positions:  positions,
		latency:    latency,
		fresh:      [2]bool{true, true},
		next:       common.Buy,
		own:        make(map[string]bool),
	}
}

// Mid is the mid of the last observed bid and ask.
func (m *Maker) Mid() (decimal.Decimal, bool) {
	if !m.hasBid || !m.hasAsk {
		return decimal.Zero, false
	}
	return common.Mid(m.bid, m.ask), true
}

// Next quotes the next side that has seen fresh market information.
func (m *Maker) Next() (common.Order, bool, error) {
	for range 2 {
		side := m.next
		m.next = side.Opposite()
		if !m.fresh[side] {
			continue
		}
		order, ok, err := m.quote(side)
		if err != nil {
			return common.Order{}, false, err
		}
		if ok {
			m.fresh[side] = false
			return order, true, nil
		}
	}
	return common.Order{}, false, nil
}

func (m *Maker) quote(side common.Side) (common.Order, bool, error) {
	mid, ok := m.Mid()
	if !ok {
		return common.Order{}, false, nil
	}
	party := m.quoter.NextParty(side)
	m.own[party] = true
	positions := m.positions.Positions(party)

	price := m.quoter.NextPrice(side, party, mid, positions)
	if price.IsNegative() {
		price = decimal.Zero
	}
	// The taker of this quote trades the opposite side.
	qty := positions.MaxFill(m.instrument, side.Opposite(), price).Clip(m.quoter.NextQuantity(side, party))
	if qty <= 0 {
		return common.Order{}, false, nil
	}
	order, err := common.NewOrder(m.ids.Next(), m.clock.Add(m.latency), m.instrument, party, side, price, qty)
	if err != nil {
		return common.Order{}, false, fmt.Errorf("maker %s quote: %w", party, err)
	}
	return order, true, nil
}

func (m *Maker) advance(t time.Time) {
	if t.After(m.clock) {
		m.clock = t
	}
}

func (m *Maker) observe(side common.Side, price decimal.Decimal) {
	if side == common.Buy {
		m.bid, m.hasBid = price, true
	} else {
		m.ask, m.hasAsk = price, true
	}
	m.fresh = [2]bool{true, true}
}

func (m *Maker) OnTime(t time.Time) {
	m.advance(t)
}

func (m *Maker) OnOrder(order common.Order) {
	m.advance(order.Time)
	if order.Instrument != m.instrument || m.own[order.Party] {
		return
	}
	m.observe(order.Side, order.Price)
}

func (m *Maker) OnBestQuote(order common.Order) {
	if order.Instrument != m.instrument || m.own[order.Party] {
		return
	}
	m.observe(order.Side, order.Price)
}

func (m *Maker) OnDeal(deal common.Deal) {
	m.advance(deal.Time)
	if deal.Instrument != m.instrument {
		return
	}
	m.observe(common.Buy, deal.Price)
	m.observe(common.Sell, deal.Price)
	if follower, ok := m.quoter.(DealFollower); ok {
		follower.OnDeal(deal)
	}
}
