package valuation

import (
	"fmt"
	"maps"
	"slices"

	"fxmatch/internal/common"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// RateSource converts one unit of an asset into another.
type RateSource interface {
	Rate(from, to common.Asset) (decimal.Decimal, error)
}

// Snapshot is an immutable set of market rates, one per instrument.
type Snapshot struct {
	rates map[common.AssetPair]decimal.Decimal
}

// NewSnapshot copies rates. Every rate must be positive.
func NewSnapshot(rates map[common.AssetPair]decimal.Decimal) (*Snapshot, error) {
	snapshot := &Snapshot{rates: make(map[common.AssetPair]decimal.Decimal, len(rates))}
	for pair, rate := range rates {
		if pair.Base == pair.Terms {
			return nil, fmt.Errorf("%w: rate for degenerate pair %s", common.ErrValidation, pair)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: rate %s for %s must be positive", common.ErrValidation, rate, pair)
		}
		snapshot.rates[pair] = rate
	}
	return snapshot, nil
}

// EmptySnapshot has no rates; it can still convert an asset into itself.
func EmptySnapshot() *Snapshot {
	return &Snapshot{rates: map[common.AssetPair]decimal.Decimal{}}
}

// Rate returns the price of one unit of from in units of to, using the direct
// instrument or the inverse of the reverse instrument.
func (s *Snapshot) Rate(from, to common.Asset) (decimal.Decimal, error) {
	if from == to {
		return one, nil
	}
	if rate, ok := s.rates[common.AssetPair{Base: from, Terms: to}]; ok {
		return rate, nil
	}
	if rate, ok := s.rates[common.AssetPair{Base: to, Terms: from}]; ok {
		return one.Div(rate), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s/%s", common.ErrMissingRate, from, to)
}

// Pairs lists the instruments with a rate, ordered by base then terms.
func (s *Snapshot) Pairs() []common.AssetPair {
	return slices.SortedFunc(maps.Keys(s.rates), func(a, b common.AssetPair) int {
		if a.Base != b.Base {
			if a.Base < b.Base {
				return -1
			}
			return 1
		}
		if a.Terms < b.Terms {
			return -1
		}
		if a.Terms > b.Terms {
			return 1
		}
		return 0
	})
}

func (s *Snapshot) String() string {
	str := "{"
	for i, pair := range s.Pairs() {
		if i > 0 {
			str += ", "
		}
		str += fmt.Sprintf("%s: %s", pair, s.rates[pair])
	}
	return str + "}"
}
