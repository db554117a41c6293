package valuation

import (
	"time"

	"fxmatch/internal/common"

	"github.com/shopspring/decimal"
)

type quote struct {
	bid, ask       decimal.Decimal
	hasBid, hasAsk bool
}

// LastRates follows the market and remembers, per instrument, the last deal
// price or the last best bid and ask. Snapshot turns them into mid rates.
type LastRates struct {
	quotes map[common.AssetPair]*quote
}

func NewLastRates() *LastRates {
	return &LastRates{quotes: make(map[common.AssetPair]*quote)}
}

func (r *LastRates) get(pair common.AssetPair) *quote {
	q, ok := r.quotes[pair]
	if !ok {
		q = &quote{}
		r.quotes[pair] = q
	}
	return q
}

func (r *LastRates) OnTime(time.Time) {}

func (r *LastRates) OnOrder(common.Order) {}

// OnDeal sets both sides of the instrument to the deal price.
func (r *LastRates) OnDeal(deal common.Deal) {
	q := r.get(deal.Instrument)
	q.bid, q.ask = deal.Price, deal.Price
	q.hasBid, q.hasAsk = true, true
}

// OnBestQuote replaces one side of the instrument.
func (r *LastRates) OnBestQuote(order common.Order) {
	q := r.get(order.Instrument)
	if order.Side == common.Buy {
		q.bid, q.hasBid = order.Price, true
	} else {
		q.ask, q.hasAsk = order.Price, true
	}
}

// Snapshot returns the mid rate of every instrument with both sides known.
func (r *LastRates) Snapshot() *Snapshot {
	snapshot := EmptySnapshot()
	for pair, q := range r.quotes {
		if !q.hasBid || !q.hasAsk {
			continue
		}
		mid := common.Mid(q.bid, q.ask)
		if mid.IsPositive() {
			snapshot.rates[pair] = mid
		}
	}
	return snapshot
}
