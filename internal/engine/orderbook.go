package engine

import (
	"fxmatch/internal/common"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

type PriceLevel struct {
	price  decimal.Decimal
	orders []common.Order
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook holds the orders of one instrument for one round. Nothing rests
// between rounds: whatever is left when the round ends is discarded.
type OrderBook struct {
	instrument common.AssetPair

	// Price levels to orders sat on the price level, in arrival order.
	bids *PriceLevels
	asks *PriceLevels

	nBids int
	nAsks int
}

func NewOrderBook(instrument common.AssetPair) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price.GreaterThan(b.price)
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price.LessThan(b.price)
	})
	return &OrderBook{
		instrument: instrument,
		bids:       bids,
		asks:       asks,
	}
}

func (book *OrderBook) levels(side common.Side) *PriceLevels {
	if side == common.Buy {
		return book.bids
	}
	return book.asks
}

// Add places an order at the back of its price level.
func (book *OrderBook) Add(order common.Order) {
	levels := book.levels(order.Side)

	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if ok {
		level.orders = append(level.orders, order)
	} else {
		levels.Set(&PriceLevel{
			price:  order.Price,
			orders: []common.Order{order},
		})
	}

	if order.Side == common.Buy {
		book.nBids++
	} else {
		book.nAsks++
	}
}

// Pop removes and returns the first order of the best level of side.
func (book *OrderBook) Pop(side common.Side) (common.Order, bool) {
	levels := book.levels(side)
	// Min here accounts for bids and asks being in inverse order, based on
	// their comparison method.
	level, ok := levels.MinMut()
	if !ok {
		return common.Order{}, false
	}
	order := level.orders[0]
	level.orders = level.orders[1:]
	if len(level.orders) == 0 {
		levels.Delete(level)
	}

	if side == common.Buy {
		book.nBids--
	} else {
		book.nAsks--
	}
	return order, true
}

// Len returns the number of orders waiting on side.
func (book *OrderBook) Len(side common.Side) int {
	if side == common.Buy {
		return book.nBids
	}
	return book.nAsks
}

// Drain removes every order of side, best level first.
func (book *OrderBook) Drain(side common.Side, fn func(common.Order)) {
	for {
		order, ok := book.Pop(side)
		if !ok {
			return
		}
		fn(order)
	}
}

// FlatPriceLevel is an exported snapshot of a price level.
type FlatPriceLevel struct {
	Price  decimal.Decimal
	Orders []common.Order
}

// Levels lists the price levels of side, best first.
func (book *OrderBook) Levels(side common.Side) []FlatPriceLevel {
	var flat []FlatPriceLevel
	book.levels(side).Scan(func(level *PriceLevel) bool {
		flat = append(flat, FlatPriceLevel{
			Price:  level.price,
			Orders: append([]common.Order(nil), level.orders...),
		})
		return true
	})
	return flat
}
