package engine

import (
	"fmt"

	"fxmatch/internal/common"

	"github.com/tidwall/btree"
)

// head is the next buffered order of a source.
type head struct {
	order  common.Order
	source int
}

func headLess(a, b head) bool {
	if a.order.Before(b.order) {
		return true
	}
	if b.order.Before(a.order) {
		return false
	}
	return a.source < b.source
}

type headQueue = btree.BTreeG[head]

func newHeadQueue() *headQueue {
	return btree.NewBTreeG(headLess)
}

// refill asks every source without a buffered head for its next order.
// Sources that had nothing before are tried again here.
func (e *Engine) refill() error {
	for i, source := range e.sources {
		if e.buffered[i] {
			continue
		}
		order, ok, err := source.Next()
		if err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
		if ok {
			e.heads.Set(head{order: order, source: i})
			e.buffered[i] = true
		}
	}
	return nil
}

// nextRound collects the orders of the next round. Sources are visited in
// (time, id) order of their head. Each source contributes its run of orders
// sharing one timestamp; the round ends at the first head of a source that
// already contributed.
func (e *Engine) nextRound() ([]common.Order, error) {
	var round []common.Order
	contributed := make(map[int]bool)
	for {
		h, ok := e.heads.Min()
		if !ok || contributed[h.source] {
			return round, nil
		}
		e.heads.Delete(h)
		e.buffered[h.source] = false
		contributed[h.source] = true
		round = append(round, h.order)

		source := e.sources[h.source]
		for {
			order, ok, err := source.Next()
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", h.source, err)
			}
			if !ok {
				break
			}
			if !order.Time.Equal(h.order.Time) {
				e.heads.Set(head{order: order, source: h.source})
				e.buffered[h.source] = true
				break
			}
			round = append(round, order)
		}
	}
}
