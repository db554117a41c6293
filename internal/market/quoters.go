package market

import (
	"fmt"
	"math"

	"fxmatch/internal/common"
	"fxmatch/internal/position"

	"github.com/shopspring/decimal"
)

var half = decimal.New(5, -1)

// spreadAround places a quote f half-spreads away from mid, buys below and
// sells above. The result is never negative.
func spreadAround(mid, spread decimal.Decimal, f float64) decimal.Decimal {
	price := mid.Add(spread.Mul(half).Mul(decimal.NewFromFloat(f)))
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

func checkQuoter(party string, quantity int64, spread decimal.Decimal) error {
	if party == "" {
		return fmt.Errorf("%w: quoter needs a party", common.ErrValidation)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quote quantity %d must be positive", common.ErrValidation, quantity)
	}
	if spread.IsNegative() {
		return fmt.Errorf("%w: negative spread %s", common.ErrValidation, spread)
	}
	return nil
}

// MidQuoter quotes a fixed size half a spread either side of mid.
type MidQuoter struct {
	party    string
	quantity int64
	spread   decimal.Decimal
}

func NewMidQuoter(party string, quantity int64, spread decimal.Decimal) (*MidQuoter, error) {
	if err := checkQuoter(party, quantity, spread); err != nil {
		return nil, err
	}
	return &MidQuoter{party: party, quantity: quantity, spread: spread}, nil
}

func (q *MidQuoter) NextParty(common.Side) string {
	return q.party
}

func (q *MidQuoter) NextQuantity(common.Side, string) int64 {
	return q.quantity
}

func (q *MidQuoter) NextPrice(side common.Side, _ string, mid decimal.Decimal, _ position.View) decimal.Decimal {
	if side == common.Buy {
		return spreadAround(mid, q.spread, -1)
	}
	return spreadAround(mid, q.spread, 1)
}

// SkewedQuoter widens the side that would grow its position in asset and
// tightens the side that would shrink it. The skew grows with the log of the
// position measured in quote sizes.
type SkewedQuoter struct {
	MidQuoter
	asset common.Asset
}

const skewBase = 1.15

func NewSkewedQuoter(party string, quantity int64, spread decimal.Decimal, asset common.Asset) (*SkewedQuoter, error) {
	if err := checkQuoter(party, quantity, spread); err != nil {
		return nil, err
	}
	return &SkewedQuoter{
		MidQuoter: MidQuoter{party: party, quantity: quantity, spread: spread},
		asset:     asset,
	}, nil
}

func (q *SkewedQuoter) NextPrice(side common.Side, _ string, mid decimal.Decimal, positions position.View) decimal.Decimal {
	pos, _ := positions.Position(q.asset).Float64()
	steps := max(0, math.Log(math.Abs(pos)/float64(q.quantity)))
	wider, narrower := math.Pow(skewBase, steps), math.Pow(skewBase, -steps)

	if pos > 0 {
		if side == common.Buy {
			return spreadAround(mid, q.spread, -wider)
		}
		return spreadAround(mid, q.spread, narrower)
	}
	if side == common.Buy {
		return spreadAround(mid, q.spread, -narrower)
	}
	return spreadAround(mid, q.spread, wider)
}

// TrendingQuoter leans with the flow that last hit it. After buying it shades
// both quotes down to pass the position on. The lean fades over the next deals
// of other parties.
type TrendingQuoter struct {
	MidQuoter
	lastSide      common.Side
	dealt         bool
	dealsSinceOwn int
}

const (
	trendBase  = 1.05
	trendDeals = 10
)

func NewTrendingQuoter(party string, quantity int64, spread decimal.Decimal) (*TrendingQuoter, error) {
	if err := checkQuoter(party, quantity, spread); err != nil {
		return nil, err
	}
	return &TrendingQuoter{MidQuoter: MidQuoter{party: party, quantity: quantity, spread: spread}}, nil
}

var _ DealFollower = (*TrendingQuoter)(nil)

func (q *TrendingQuoter) OnDeal(deal common.Deal) {
	switch q.party {
	case deal.BuyParty:
		q.lastSide, q.dealt, q.dealsSinceOwn = common.Buy, true, 0
	case deal.SellParty:
		q.lastSide, q.dealt, q.dealsSinceOwn = common.Sell, true, 0
	default:
		q.dealsSinceOwn++
	}
}

func (q *TrendingQuoter) NextPrice(side common.Side, party string, mid decimal.Decimal, positions position.View) decimal.Decimal {
	if !q.dealt || q.dealsSinceOwn >= trendDeals {
		return q.MidQuoter.NextPrice(side, party, mid, positions)
	}
	stronger := math.Pow(trendBase, float64(trendDeals-q.dealsSinceOwn))
	weaker := 1 / stronger

	// We were hit on our bid: the market sells, so sell with it.
	if q.lastSide == common.Buy {
		if side == common.Buy {
			return spreadAround(mid, q.spread, -stronger)
		}
		return spreadAround(mid, q.spread, weaker)
	}
	if side == common.Buy {
		return spreadAround(mid, q.spread, -weaker)
	}
	return spreadAround(mid, q.spread, stronger)
}
