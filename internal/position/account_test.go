package position

import (
	"testing"
	"time"

	"fxmatch/internal/common"
	"fxmatch/internal/risk"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// --- Setup & Helpers --------------------------------------------------------

const keeper = "keeper"

var (
	audusd   = common.MustAssetPair(common.AUD, common.USD)
	eurusd   = common.MustAssetPair(common.EUR, common.USD)
	euraud   = common.MustAssetPair(common.EUR, common.AUD)
	testTime = time.Date(2015, 7, 1, 9, 0, 0, 0, time.UTC)
)

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	limits, err := risk.NewLimits(map[common.Asset]int64{
		common.AUD: 2_000_000,
		common.USD: 1_500_000,
		common.EUR: 1_500_000,
	})
	require.NoError(t, err)
	return NewAccount(limits)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fill makes the account counterparty to an order from "client" and returns
// the quantity taken under policy.
func fill(t *testing.T, account *Account, pair common.AssetPair, side common.Side, price string, qty int64, policy FillPolicy) int64 {
	t.Helper()
	order, err := common.NewOrder(1, testTime, pair, "client", side, dec(price), qty)
	require.NoError(t, err)

	taken := policy(qty, account.MaxFill(pair, side, order.Price))
	if taken == 0 {
		return 0
	}
	counter, err := common.NewOrder(2, testTime, pair, keeper, side.Opposite(), order.Price, qty)
	require.NoError(t, err)

	buy, sell := order, counter
	if side == common.Sell {
		buy, sell = counter, order
	}
	deal, err := common.NewDeal(3, buy, sell, taken, testTime)
	require.NoError(t, err)
	require.NoError(t, account.Update(deal, side.Opposite()))
	return taken
}

func assertPosition(t *testing.T, account *Account, asset common.Asset, expected int64) {
	t.Helper()
	assert.True(t, account.Position(asset).Equal(decimal.NewFromInt(expected)),
		"%s position: expected %d, got %s", asset, expected, account.Position(asset))
}

// --- Tests ------------------------------------------------------------------

func TestUpdate_BuyThenSell(t *testing.T) {
	account := newTestAccount(t)

	// 1. Client buys, account sells AUD for USD
	assert.Equal(t, int64(1_000_000), fill(t, account, audusd, common.Buy, "0.80", 1_000_000, FullFill))
	assertPosition(t, account, common.AUD, -1_000_000)
	assertPosition(t, account, common.USD, 800_000)

	// 2. Client sells back cheaper
	assert.Equal(t, int64(1_000_000), fill(t, account, audusd, common.Sell, "0.75", 1_000_000, FullFill))
	assertPosition(t, account, common.AUD, 0)
	assertPosition(t, account, common.USD, 50_000)
}

func TestUpdate_BuyThenBlockAnotherBuy(t *testing.T) {
	account := newTestAccount(t)

	assert.Equal(t, int64(1_000_000), fill(t, account, audusd, common.Buy, "0.80", 1_000_000, FullFill))

	// USD headroom is 700,000 / 0.75 < 1,000,000, so an all-or-nothing fill is refused.
	assert.Equal(t, int64(0), fill(t, account, audusd, common.Buy, "0.75", 1_000_000, FullFill))
	assertPosition(t, account, common.AUD, -1_000_000)
	assertPosition(t, account, common.USD, 800_000)
}

func TestUpdate_BuyThenPartialBuy(t *testing.T) {
	account := newTestAccount(t)

	assert.Equal(t, int64(1_000_000), fill(t, account, audusd, common.Buy, "0.80", 1_000_000, PartialFill))

	assert.Equal(t, risk.AtMost(875_000), account.MaxFill(audusd, common.Buy, dec("0.80")))
	assert.Equal(t, int64(0), fill(t, account, audusd, common.Buy, "0.80", 1_000_000, FullFill))
	assert.Equal(t, int64(875_000), fill(t, account, audusd, common.Buy, "0.80", 1_000_000, PartialFill))
	assertPosition(t, account, common.AUD, -1_875_000)
	assertPosition(t, account, common.USD, 1_500_000)
}

func TestUpdate_PartialBuy(t *testing.T) {
	account := newTestAccount(t)

	assert.Equal(t, int64(2_000_000), fill(t, account, audusd, common.Buy, "0.40", 3_000_000, PartialFill))
	assertPosition(t, account, common.AUD, -2_000_000)
	assertPosition(t, account, common.USD, 800_000)
}

func TestUpdate_PartialSell(t *testing.T) {
	account := newTestAccount(t)

	assert.Equal(t, int64(2_000_000), fill(t, account, audusd, common.Sell, "0.25", 10_000_000, PartialFill))
	assertPosition(t, account, common.AUD, 2_000_000)
	assertPosition(t, account, common.USD, -500_000)
}

func TestUpdate_SellThenPartialSell(t *testing.T) {
	account := newTestAccount(t)

	assert.Equal(t, int64(1_000_000), fill(t, account, audusd, common.Sell, "0.75", 1_000_000, PartialFill))
	assertPosition(t, account, common.AUD, 1_000_000)
	assertPosition(t, account, common.USD, -750_000)

	assert.Equal(t, int64(937_500), fill(t, account, audusd, common.Sell, "0.80", 1_000_000, PartialFill))
	assertPosition(t, account, common.AUD, 1_937_500)
	assertPosition(t, account, common.USD, -1_500_000)
}

func TestUpdate_ThreePairs(t *testing.T) {
	account := newTestAccount(t)

	// 1. AUD/USD
	assert.Equal(t, int64(1_000_000), fill(t, account, audusd, common.Sell, "0.75", 1_000_000, PartialFill))
	assertPosition(t, account, common.EUR, 0)

	// 2. EUR/AUD flips the AUD position
	assert.Equal(t, int64(1_000_000), fill(t, account, euraud, common.Sell, "1.25", 1_000_000, PartialFill))
	assertPosition(t, account, common.AUD, -250_000)
	assertPosition(t, account, common.USD, -750_000)
	assertPosition(t, account, common.EUR, 1_000_000)

	// 3. EUR/USD is capped by the EUR limit
	assert.Equal(t, int64(500_000), fill(t, account, eurusd, common.Sell, "1.20", 1_000_000, PartialFill))
	assertPosition(t, account, common.AUD, -250_000)
	assertPosition(t, account, common.USD, -1_350_000)
	assertPosition(t, account, common.EUR, 1_500_000)

	assert.Equal(t, []common.Asset{common.AUD, common.EUR, common.USD}, account.Assets())
}

func TestUpdate_RiskBreachLeavesStateUntouched(t *testing.T) {
	account := newTestAccount(t)
	buy, err := common.NewOrder(1, testTime, audusd, keeper, common.Buy, dec("0.50"), 3_000_000)
	require.NoError(t, err)
	sell, err := common.NewOrder(2, testTime, audusd, "client", common.Sell, dec("0.50"), 3_000_000)
	require.NoError(t, err)
	deal, err := common.NewDeal(3, buy, sell, 2_500_000, testTime)
	require.NoError(t, err)

	err = account.Update(deal, common.Buy)
	assert.ErrorIs(t, err, common.ErrRiskBreach)
	assert.Empty(t, account.Assets())
}

func TestMaxFill_Unlimited(t *testing.T) {
	account := NewAccount(nil)
	assert.Equal(t, risk.Unlimited, account.MaxFill(audusd, common.Buy, dec("0.75")))

	limits, err := risk.NewLimits(map[common.Asset]int64{common.USD: 1_000})
	require.NoError(t, err)
	account = NewAccount(limits)
	assert.Equal(t, risk.AtMost(2_000), account.MaxFill(audusd, common.Buy, dec("0.5")), "terms leg only")
	assert.Equal(t, risk.Unlimited, account.MaxFill(audusd, common.Buy, decimal.Zero), "zero price moves no terms")
}

func TestWatermarksAndReset(t *testing.T) {
	account := newTestAccount(t)

	fill(t, account, audusd, common.Sell, "0.75", 1_000_000, PartialFill)
	fill(t, account, audusd, common.Buy, "0.75", 1_500_000, PartialFill)

	assert.True(t, account.HighWaterMark(common.AUD).Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, account.LowWaterMark(common.AUD).Equal(decimal.NewFromInt(-500_000)))
	assert.True(t, account.HighWaterMark(common.USD).Equal(decimal.NewFromInt(375_000)))
	assert.True(t, account.LowWaterMark(common.USD).Equal(decimal.NewFromInt(-750_000)))

	account.Reset(common.AUD)
	assertPosition(t, account, common.AUD, 0)
	assert.True(t, account.HighWaterMark(common.AUD).IsZero())
	assertPosition(t, account, common.USD, 375_000)

	account.ResetAll()
	assert.Empty(t, account.Assets())
	assert.True(t, account.LowWaterMark(common.USD).IsZero())
}

func TestView_IsReadOnlyFacade(t *testing.T) {
	account := newTestAccount(t)
	view := account.View()
	fill(t, account, audusd, common.Buy, "0.80", 1_000_000, PartialFill)

	assert.True(t, view.Position(common.AUD).Equal(decimal.NewFromInt(-1_000_000)))
	assert.Equal(t, account.Limits(), view.Limits())
	assert.Equal(t, risk.AtMost(875_000), view.MaxFill(audusd, common.Buy, dec("0.80")))
	_, isAccount := view.(*Account)
	assert.False(t, isAccount)
}

func TestParseFillPolicy(t *testing.T) {
	policy, err := ParseFillPolicy("FULL")
	require.NoError(t, err)
	assert.Equal(t, int64(0), policy(10, risk.AtMost(5)))

	policy, err = ParseFillPolicy("")
	require.NoError(t, err)
	assert.Equal(t, int64(5), policy(10, risk.AtMost(5)))

	_, err = ParseFillPolicy("greedy")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestProperty_ClippedFillsRespectLimits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limits, _ := risk.NewLimits(map[common.Asset]int64{
			common.AUD: rapid.Int64Range(0, 5_000_000).Draw(rt, "audLimit"),
			common.USD: rapid.Int64Range(0, 5_000_000).Draw(rt, "usdLimit"),
		})
		account := NewAccount(limits)

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := range steps {
			side := common.Side(rapid.IntRange(0, 1).Draw(rt, "side"))
			price := decimal.New(rapid.Int64Range(0, 20_000).Draw(rt, "pips"), -4)
			qty := rapid.Int64Range(1, 3_000_000).Draw(rt, "qty")

			headroom := account.MaxFill(audusd, side, price)
			n, bounded := headroom.Value()
			if !bounded || n < 0 {
				rt.Fatalf("step %d: headroom %v should be bounded and non-negative", i, headroom)
			}
			taken := PartialFill(qty, headroom)
			if taken == 0 {
				continue
			}
			buy, _ := common.NewOrder(1, testTime, audusd, keeper, common.Buy, price, qty)
			sell, _ := common.NewOrder(2, testTime, audusd, "client", common.Sell, price, qty)
			if side == common.Buy {
				buy.Party, sell.Party = "client", keeper
			}
			deal, err := common.NewDeal(3, buy, sell, taken, testTime)
			if err != nil {
				rt.Fatalf("deal: %v", err)
			}
			if err := account.Update(deal, side.Opposite()); err != nil {
				rt.Fatalf("step %d: clipped deal rejected: %v", i, err)
			}
			for _, asset := range limits.Assets() {
				limit, _ := limits.MaxPosition(asset).Value()
				if account.Position(asset).Abs().GreaterThan(decimal.NewFromInt(limit)) {
					rt.Fatalf("step %d: %s position %s beyond limit %d", i, asset, account.Position(asset), limit)
				}
			}
		}
	})
}

func TestProperty_MaxFillShrinksWithExposure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limits, _ := risk.NewLimits(map[common.Asset]int64{
			common.AUD: rapid.Int64Range(0, 5_000_000).Draw(rt, "audLimit"),
			common.USD: rapid.Int64Range(0, 5_000_000).Draw(rt, "usdLimit"),
		})
		rate := decimal.New(rapid.Int64Range(1, 20_000).Draw(rt, "pips"), -4)
		small := rapid.Int64Range(0, 3_000_000).Draw(rt, "small")
		large := small + rapid.Int64Range(0, 3_000_000).Draw(rt, "extra")

		// Long base and short terms: both eat into the headroom for buying
		// more base, i.e. for taking the other side of a sell order.
		exposed := func(qty int64) *Account {
			account := NewAccount(limits)
			account.add(common.AUD, decimal.NewFromInt(qty))
			account.add(common.USD, decimal.NewFromInt(qty).Mul(rate).Neg())
			return account
		}
		before, _ := exposed(small).MaxFill(audusd, common.Sell, rate).Value()
		after, _ := exposed(large).MaxFill(audusd, common.Sell, rate).Value()
		if after > before {
			rt.Fatalf("headroom grew from %d to %d as position went %d -> %d", before, after, small, large)
		}
	})
}
