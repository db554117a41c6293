package market

import (
	"fmt"
	"strings"
	"time"

	"fxmatch/internal/common"

	"github.com/rs/zerolog"
)

type Mode uint8

const (
	PrintOrders Mode = 1 << iota
	PrintDeals
	PrintBest

	PrintAll = PrintOrders | PrintDeals | PrintBest
)

// ParseModes reads mode names ("orders", "deals", "best"). No names means all.
func ParseModes(names []string) (Mode, error) {
	if len(names) == 0 {
		return PrintAll, nil
	}
	var modes Mode
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "orders":
			modes |= PrintOrders
		case "deals":
			modes |= PrintDeals
		case "best":
			modes |= PrintBest
		default:
			return 0, fmt.Errorf("%w: unknown print mode %q", common.ErrValidation, name)
		}
	}
	return modes, nil
}

// Printer logs market events as structured lines.
type Printer struct {
	log   zerolog.Logger
	modes Mode
}

var (
	_ Observer          = (*Printer)(nil)
	_ BestQuoteObserver = (*Printer)(nil)
)

func NewPrinter(logger zerolog.Logger, modes Mode) *Printer {
	return &Printer{log: logger, modes: modes}
}

func (p *Printer) OnTime(t time.Time) {
	p.log.Debug().Time("time", t).Msg("time")
}

func (p *Printer) OnOrder(order common.Order) {
	if p.modes&PrintOrders == 0 {
		return
	}
	p.orderEvent(order).Msg("order")
}

func (p *Printer) OnBestQuote(order common.Order) {
	if p.modes&PrintBest == 0 {
		return
	}
	p.orderEvent(order).Msg("best")
}

func (p *Printer) OnDeal(deal common.Deal) {
	if p.modes&PrintDeals == 0 {
		return
	}
	p.log.Info().
		Uint64("id", deal.ID).
		Stringer("instrument", deal.Instrument).
		Str("price", deal.Price.String()).
		Int64("quantity", deal.Quantity).
		Str("buyer", deal.BuyParty).
		Str("seller", deal.SellParty).
		Time("time", deal.Time).
		Msg("deal")
}

func (p *Printer) orderEvent(order common.Order) *zerolog.Event {
	return p.log.Info().
		Uint64("id", order.ID).
		Stringer("instrument", order.Instrument).
		Stringer("side", order.Side).
		Str("price", order.Price.String()).
		Int64("quantity", order.Quantity).
		Str("party", order.Party).
		Time("time", order.Time)
}
