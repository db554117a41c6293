package engine

import "fxmatch/internal/common"

// IsMatchPossible reports whether two orders can deal: same instrument,
// opposite sides, and the buy price at or above the sell price.
func IsMatchPossible(o1, o2 common.Order) bool {
	if o1.Instrument != o2.Instrument || o1.Side == o2.Side {
		return false
	}
	buy, sell := o1, o2
	if buy.Side == common.Sell {
		buy, sell = o2, o1
	}
	return buy.Price.GreaterThanOrEqual(sell.Price)
}

// MatchQuantity is the quantity two orders can deal before risk, zero when
// they cannot match.
func MatchQuantity(o1, o2 common.Order) int64 {
	if !IsMatchPossible(o1, o2) {
		return 0
	}
	return min(o1.Quantity, o2.Quantity)
}
