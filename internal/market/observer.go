package market

import (
	"time"

	"fxmatch/internal/common"
)

// Observer receives every market event of a run, in event order.
type Observer interface {
	OnTime(t time.Time)
	OnOrder(order common.Order)
	OnDeal(deal common.Deal)
}

// BestQuoteObserver additionally receives the best remaining bid and ask of
// an instrument after it has been matched in a round.
type BestQuoteObserver interface {
	OnBestQuote(order common.Order)
}
