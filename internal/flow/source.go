package flow

import (
	"slices"

	"fxmatch/internal/common"
)

// Source is a pull-based producer of orders. Orders must come out in
// non-decreasing (time, id) order without duplicates.
//
// Next returns ok=false when the source has nothing to offer right now. That
// may be temporary: the engine asks again in later rounds.
type Source interface {
	Next() (order common.Order, ok bool, err error)
}

// ListSource replays a fixed set of orders.
type ListSource struct {
	orders []common.Order
	pos    int
}

var _ Source = (*ListSource)(nil)

// NewListSource sorts the orders by time then id.
func NewListSource(orders ...common.Order) *ListSource {
	sorted := slices.Clone(orders)
	slices.SortStableFunc(sorted, func(a, b common.Order) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return &ListSource{orders: sorted}
}

func (s *ListSource) Next() (common.Order, bool, error) {
	if s.pos >= len(s.orders) {
		return common.Order{}, false, nil
	}
	order := s.orders[s.pos]
	s.pos++
	return order, true, nil
}

// Remaining is the number of orders not yet produced.
func (s *ListSource) Remaining() int {
	return len(s.orders) - s.pos
}
