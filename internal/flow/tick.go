package flow

import (
	"fmt"
	"time"

	"fxmatch/internal/common"

	"github.com/shopspring/decimal"
)

// TickLayout is the timestamp layout of tick files, always UTC.
const TickLayout = "2006-01-02 15:04:05.000"

// VolumeUnit converts tick volumes, quoted in millions, into units.
var VolumeUnit = decimal.NewFromInt(1_000_000)

// Tick is one top-of-book observation.
type Tick struct {
	Time      time.Time
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	BidVolume decimal.Decimal // millions
	AskVolume decimal.Decimal // millions
}

// tickReplay turns ticks into orders for one party: a buy at the bid followed
// by a sell at the ask, skipping sides without volume.
type tickReplay struct {
	ids        *common.IDAllocator
	instrument common.AssetPair
	party      string
	pending    []common.Order
}

func (r *tickReplay) push(tick Tick) error {
	if bidQty := units(tick.BidVolume); bidQty > 0 {
		order, err := common.NewOrder(r.ids.Next(), tick.Time, r.instrument, r.party, common.Buy, tick.Bid, bidQty)
		if err != nil {
			return fmt.Errorf("bid: %w", err)
		}
		r.pending = append(r.pending, order)
	}
	if askQty := units(tick.AskVolume); askQty > 0 {
		order, err := common.NewOrder(r.ids.Next(), tick.Time, r.instrument, r.party, common.Sell, tick.Ask, askQty)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
		r.pending = append(r.pending, order)
	}
	return nil
}

func (r *tickReplay) pop() (common.Order, bool) {
	if len(r.pending) == 0 {
		return common.Order{}, false
	}
	order := r.pending[0]
	r.pending = r.pending[1:]
	return order, true
}

func units(millions decimal.Decimal) int64 {
	return millions.Mul(VolumeUnit).Round(0).IntPart()
}
