package engine

import (
	"fmt"

	"fxmatch/internal/common"

	"github.com/rs/zerolog/log"
)

// match runs one round: orders are grouped per instrument, in order of first
// appearance, and each instrument is matched on its own book.
func (engine *Engine) match(orders []common.Order) (int, error) {
	books := make(map[common.AssetPair]*OrderBook)
	var instruments []common.AssetPair
	for _, order := range orders {
		book, ok := books[order.Instrument]
		if !ok {
			book = NewOrderBook(order.Instrument)
			books[order.Instrument] = book
			instruments = append(instruments, order.Instrument)
		}
		book.Add(order)
	}

	deals := 0
	for _, instrument := range instruments {
		n, err := engine.matchBook(books[instrument])
		deals += n
		if err != nil {
			return deals, fmt.Errorf("round %d, %s: %w", engine.index, instrument, err)
		}
	}
	return deals, nil
}

// draw takes the next order of side off the book and reports it.
func (engine *Engine) draw(book *OrderBook, side common.Side) (common.Order, bool) {
	order, ok := book.Pop(side)
	if ok {
		engine.notifyOrder(order)
	}
	return order, ok
}

// matchBook walks the best bid and best ask while they cross. An order a
// party has no headroom for is dropped for this round and the next order on
// its side is tried; prices that stop crossing end the instrument.
//
// The residual of a partial fill stays at the head of its side. If it is
// still there when matching stops it is carried into the next round.
func (engine *Engine) matchBook(book *OrderBook) (int, error) {
	deals := 0
	bid, bidOk := engine.draw(book, common.Buy)
	ask, askOk := engine.draw(book, common.Sell)
	var bidResidual, askResidual bool

	for bidOk && askOk && IsMatchPossible(bid, ask) {
		quantity := MatchQuantity(bid, ask)
		price := common.MidPrice(bid, ask)

		// Each party is the counterparty of the other party's order.
		bidQty := engine.policy(quantity, engine.party(bid.Party).account.MaxFill(book.instrument, common.Sell, price))
		askQty := engine.policy(quantity, engine.party(ask.Party).account.MaxFill(book.instrument, common.Buy, price))
		if bidQty <= 0 || askQty <= 0 {
			if bidQty <= 0 {
				engine.dropped(bid)
				bid, bidOk = engine.draw(book, common.Buy)
				bidResidual = false
			}
			if askQty <= 0 {
				engine.dropped(ask)
				ask, askOk = engine.draw(book, common.Sell)
				askResidual = false
			}
			continue
		}

		fill := min(bidQty, askQty)
		dealTime := bid.Time
		if ask.Time.Before(dealTime) {
			dealTime = ask.Time
		}
		deal, err := common.NewDeal(engine.ids.Next(), bid, ask, fill, dealTime)
		if err != nil {
			return deals, err
		}
		if err := engine.commit(deal); err != nil {
			return deals, err
		}
		deals++

		if bid, bidOk, bidResidual, err = engine.remainder(book, bid, fill); err != nil {
			return deals, err
		}
		if ask, askOk, askResidual, err = engine.remainder(book, ask, fill); err != nil {
			return deals, err
		}
	}

	// Whatever is left is still market information.
	book.Drain(common.Buy, engine.notifyOrder)
	book.Drain(common.Sell, engine.notifyOrder)
	if bidOk {
		engine.notifyBest(bid)
		if bidResidual {
			engine.carried = append(engine.carried, bid)
		}
	}
	if askOk {
		engine.notifyBest(ask)
		if askResidual {
			engine.carried = append(engine.carried, ask)
		}
	}
	return deals, nil
}

// remainder replaces a filled order by its residual, or by the next order on
// its side once fully filled.
func (engine *Engine) remainder(book *OrderBook, order common.Order, fill int64) (common.Order, bool, bool, error) {
	if order.Quantity > fill {
		residual, err := order.Residual(engine.ids.Next(), order.Quantity-fill)
		return residual, err == nil, err == nil, err
	}
	next, ok := engine.draw(book, order.Side)
	return next, ok, false, nil
}

// commit applies a deal to both accounts. The quantities were clipped at the
// deal price, so a breach here means the clip and the account disagree.
func (engine *Engine) commit(deal common.Deal) error {
	buyer := engine.party(deal.BuyParty)
	seller := engine.party(deal.SellParty)
	if err := buyer.account.Update(deal, common.Buy); err != nil {
		return fmt.Errorf("buyer %s: %w", deal.BuyParty, err)
	}
	if err := seller.account.Update(deal, common.Sell); err != nil {
		return fmt.Errorf("seller %s: %w", deal.SellParty, err)
	}
	buyer.deals++
	seller.deals++

	for _, observer := range engine.observers {
		observer.OnDeal(deal)
	}
	return nil
}

func (engine *Engine) dropped(order common.Order) {
	log.Debug().
		Str("run", engine.runID).
		Int64("round", engine.index).
		Uint64("order", order.ID).
		Str("party", order.Party).
		Stringer("side", order.Side).
		Msg("order dropped, no risk headroom")
}

func (engine *Engine) notifyOrder(order common.Order) {
	for _, observer := range engine.observers {
		observer.OnOrder(order)
	}
}

func (engine *Engine) notifyBest(order common.Order) {
	for _, observer := range engine.best {
		observer.OnBestQuote(order)
	}
}
