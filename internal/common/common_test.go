package common

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// --- Setup & Helpers --------------------------------------------------------

var (
	testTime = time.Date(2015, 7, 1, 9, 0, 0, 0, time.UTC)
	audusd   = MustAssetPair(AUD, USD)
)

func newTestOrder(t *testing.T, id uint64, party string, side Side, price string, qty int64) Order {
	t.Helper()
	order, err := NewOrder(id, testTime, audusd, party, side, decimal.RequireFromString(price), qty)
	require.NoError(t, err)
	return order
}

// --- Tests ------------------------------------------------------------------

func TestAssetPair(t *testing.T) {
	pair, err := NewAssetPair(EUR, USD)
	require.NoError(t, err)
	assert.Equal(t, "EUR/USD", pair.String())
	assert.Equal(t, AssetPair{Base: USD, Terms: EUR}, pair.Inverse())

	_, err = NewAssetPair(USD, USD)
	assert.ErrorIs(t, err, ErrValidation)

	parsed, err := ParseAssetPair("aud/usd")
	require.NoError(t, err)
	assert.Equal(t, audusd, parsed)

	_, err = ParseAssetPair("AUDUSD")
	assert.ErrorIs(t, err, ErrValidation)

	asset, err := ParseAsset(" eur ")
	require.NoError(t, err)
	assert.Equal(t, EUR, asset)
	_, err = ParseAsset("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSide(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.Equal(t, "BUY", Buy.String())

	side, err := ParseSide("sell")
	require.NoError(t, err)
	assert.Equal(t, Sell, side)
	_, err = ParseSide("hold")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewOrder_Validation(t *testing.T) {
	price := decimal.RequireFromString("0.7134")

	_, err := NewOrder(1, testTime, audusd, "ANZ", Buy, price, 0)
	assert.ErrorIs(t, err, ErrValidation, "zero quantity")

	_, err = NewOrder(1, testTime, audusd, "ANZ", Buy, price.Neg(), 10)
	assert.ErrorIs(t, err, ErrValidation, "negative price")

	_, err = NewOrder(1, testTime, audusd, "", Buy, price, 10)
	assert.ErrorIs(t, err, ErrValidation, "no party")

	_, err = NewOrder(1, testTime, AssetPair{Base: AUD, Terms: AUD}, "ANZ", Buy, price, 10)
	assert.ErrorIs(t, err, ErrValidation, "degenerate instrument")

	order, err := NewOrder(1, testTime, audusd, "ANZ", Buy, decimal.Zero, 10)
	require.NoError(t, err, "zero price is allowed")
	assert.True(t, order.Price.IsZero())
}

func TestPriceFromFloat(t *testing.T) {
	_, err := PriceFromFloat(math.NaN())
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PriceFromFloat(math.Inf(1))
	assert.ErrorIs(t, err, ErrValidation)

	price, err := PriceFromFloat(1.0975)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.0975")))
}

func TestOrder_Residual(t *testing.T) {
	order := newTestOrder(t, 1, "UBS", Sell, "0.7132", 2_000_000)

	residual, err := order.Residual(7, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), residual.ID)
	assert.Equal(t, int64(1_000_000), residual.Quantity)
	assert.Equal(t, order.Time, residual.Time)
	assert.Equal(t, int64(2_000_000), order.Quantity, "original order is unchanged")

	_, err = order.Residual(8, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrder_Before(t *testing.T) {
	a := newTestOrder(t, 1, "ANZ", Buy, "1", 1)
	b := newTestOrder(t, 2, "ANZ", Buy, "1", 1)
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))

	b.Time = testTime.Add(-time.Second)
	assert.True(t, b.Before(a))
}

func TestNewDeal(t *testing.T) {
	buy := newTestOrder(t, 1, "ANZ", Buy, "0.7134", 1_000_000)
	sell := newTestOrder(t, 2, "UBS", Sell, "0.7132", 2_000_000)

	deal, err := NewDeal(3, buy, sell, 1_000_000, testTime)
	require.NoError(t, err)
	assert.True(t, deal.Price.Equal(decimal.RequireFromString("0.7133")), deal.Price.String())
	assert.Equal(t, "ANZ", deal.Party(Buy))
	assert.Equal(t, "UBS", deal.Party(Sell))
	assert.True(t, deal.TermsQuantity().Equal(decimal.NewFromInt(713_300)))

	_, err = NewDeal(4, sell, buy, 1_000_000, testTime)
	assert.ErrorIs(t, err, ErrValidation, "sides swapped")

	_, err = NewDeal(4, buy, sell, 1_000_001, testTime)
	assert.ErrorIs(t, err, ErrValidation, "more than the smaller order")

	other := buy
	other.Instrument = MustAssetPair(EUR, USD)
	_, err = NewDeal(4, other, sell, 1, testTime)
	assert.ErrorIs(t, err, ErrValidation, "instrument mismatch")
}

func TestIDAllocator(t *testing.T) {
	ids := NewIDAllocator(10)
	assert.Equal(t, uint64(11), ids.Next())
	assert.Equal(t, uint64(12), ids.Next())
	assert.Equal(t, uint64(12), ids.Current())
}

func TestMidPrice_KeepsEveryDigit(t *testing.T) {
	buy := newTestOrder(t, 1, "ANZ", Buy, "0.12345678901234567", 1)
	sell := newTestOrder(t, 2, "UBS", Sell, "0.1", 1)

	deal, err := NewDeal(3, buy, sell, 1, testTime)
	require.NoError(t, err)
	assert.Equal(t, "0.111728394506172835", deal.Price.String())
	assert.True(t, deal.Price.Add(deal.Price).Equal(buy.Price.Add(sell.Price)))
	assert.True(t, Mid(decimal.RequireFromString("1"), decimal.RequireFromString("0.3")).Equal(decimal.RequireFromString("0.65")))
}

func TestProperty_DealAtExactMid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		buyQty := rapid.Int64Range(1, 10_000_000).Draw(rt, "buyQty")
		sellQty := rapid.Int64Range(1, 10_000_000).Draw(rt, "sellQty")
		// Five places of pips plus a long tail, as float-derived quotes have.
		price := func(label string) decimal.Decimal {
			pips := decimal.New(rapid.Int64Range(0, 200_000).Draw(rt, label+"Pips"), -5)
			tail := decimal.New(rapid.Int64Range(0, 999_999_999_999_999).Draw(rt, label+"Tail"), -20)
			return pips.Add(tail)
		}
		buy, _ := NewOrder(1, testTime, audusd, "A", Buy, price("bid"), buyQty)
		sell, _ := NewOrder(2, testTime, audusd, "B", Sell, price("ask"), sellQty)
		qty := rapid.Int64Range(1, min(buyQty, sellQty)).Draw(rt, "qty")

		deal, err := NewDeal(3, buy, sell, qty, testTime)
		if err != nil {
			rt.Fatalf("deal: %v", err)
		}
		if !deal.Price.Add(deal.Price).Equal(buy.Price.Add(sell.Price)) {
			rt.Fatalf("price %s is not the mid of %s and %s", deal.Price, buy.Price, sell.Price)
		}
		if deal.Quantity != qty {
			rt.Fatalf("quantity %d, want %d", deal.Quantity, qty)
		}
	})
}
