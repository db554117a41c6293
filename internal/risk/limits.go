package risk

import (
	"fmt"
	"maps"
	"slices"

	"fxmatch/internal/common"
)

// Limit is either unbounded or a non-negative maximum quantity.
type Limit struct {
	max     int64
	bounded bool
}

// Unlimited is a limit that never binds.
var Unlimited = Limit{}

// AtMost returns a bounded limit of n, treating negative n as zero.
func AtMost(n int64) Limit {
	return Limit{max: max(n, 0), bounded: true}
}

// Bounded reports whether the limit binds at all.
func (l Limit) Bounded() bool {
	return l.bounded
}

// Value returns the maximum and whether there is one.
func (l Limit) Value() (int64, bool) {
	return l.max, l.bounded
}

// Clip caps q at the limit.
func (l Limit) Clip(q int64) int64 {
	if !l.bounded {
		return q
	}
	return min(q, l.max)
}

// Min returns the tighter of two limits.
func (l Limit) Min(other Limit) Limit {
	switch {
	case !l.bounded:
		return other
	case !other.bounded:
		return l
	}
	return AtMost(min(l.max, other.max))
}

func (l Limit) String() string {
	if !l.bounded {
		return "unlimited"
	}
	return fmt.Sprintf("%d", l.max)
}

// Limits holds the maximum absolute position per asset for one party. Assets
// without an entry are unlimited. Limits are fixed once built.
type Limits struct {
	max map[common.Asset]int64
}

// NewLimits validates the per-asset maximums.
func NewLimits(maxPositions map[common.Asset]int64) (*Limits, error) {
	limits := &Limits{max: make(map[common.Asset]int64, len(maxPositions))}
	for asset, n := range maxPositions {
		if asset == "" {
			return nil, fmt.Errorf("%w: limit for empty asset", common.ErrValidation)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative limit %d for %s", common.ErrValidation, n, asset)
		}
		limits.max[asset] = n
	}
	return limits, nil
}

// NoLimits returns limits that never bind.
func NoLimits() *Limits {
	return &Limits{max: map[common.Asset]int64{}}
}

// MaxPosition returns the maximum absolute position allowed in asset.
func (l *Limits) MaxPosition(asset common.Asset) Limit {
	if l == nil {
		return Unlimited
	}
	n, ok := l.max[asset]
	if !ok {
		return Unlimited
	}
	return AtMost(n)
}

// Assets lists the bounded assets in code order.
func (l *Limits) Assets() []common.Asset {
	if l == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(l.max))
}

func (l *Limits) String() string {
	if l == nil || len(l.max) == 0 {
		return "{}"
	}
	s := "{"
	for i, asset := range l.Assets() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %d", asset, l.max[asset])
	}
	return s + "}"
}
