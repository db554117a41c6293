package engine

import (
	"maps"
	"slices"
	"time"

	"fxmatch/internal/common"
	"fxmatch/internal/position"
	"fxmatch/internal/risk"
	"fxmatch/internal/valuation"

	"github.com/shopspring/decimal"
)

// PartyState is the per-party view of a run.
type PartyState struct {
	name       string
	account    *position.Account
	deals      int64
	registered bool
}

func (p *PartyState) Name() string {
	return p.name
}

func (p *PartyState) Limits() *risk.Limits {
	return p.account.Limits()
}

func (p *PartyState) Positions() position.View {
	return p.account.View()
}

func (p *PartyState) Position(asset common.Asset) decimal.Decimal {
	return p.account.Position(asset)
}

func (p *PartyState) HighWaterMark(asset common.Asset) decimal.Decimal {
	return p.account.HighWaterMark(asset)
}

func (p *PartyState) LowWaterMark(asset common.Asset) decimal.Decimal {
	return p.account.LowWaterMark(asset)
}

// DealCount is the number of deals the party took part in.
func (p *PartyState) DealCount() int64 {
	return p.deals
}

// Valuator values the party's positions in currency.
func (p *PartyState) Valuator(currency common.Asset) *valuation.Valuator {
	return valuation.NewValuator(currency, p.account.View())
}

// State exposes the progress of an engine between rounds. It reads the
// engine directly, so it always reflects the latest round.
type State struct {
	engine *Engine
}

func (s *State) RunID() string {
	return s.engine.runID
}

// Index is the zero-based index of the last matched round, -1 before the
// first one.
func (s *State) Index() int64 {
	return s.engine.index
}

func (s *State) HasNext() bool {
	return s.engine.HasNext()
}

// StartTime and EndTime bound the orders of the last round.
func (s *State) StartTime() time.Time {
	return s.engine.start
}

func (s *State) EndTime() time.Time {
	return s.engine.end
}

// Parties lists, by name, the parties registered with limits or involved in
// at least one deal.
func (s *State) Parties() []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(s.engine.parties)) {
		if p := s.engine.parties[name]; p.registered || p.deals > 0 {
			names = append(names, name)
		}
	}
	return names
}

func (s *State) Party(name string) (*PartyState, bool) {
	p, ok := s.engine.parties[name]
	if !ok || !(p.registered || p.deals > 0) {
		return nil, false
	}
	return p, true
}

// MarketSnapshot holds the mid rates last seen per instrument.
func (s *State) MarketSnapshot() *valuation.Snapshot {
	return s.engine.rates.Snapshot()
}

// Carried lists the residual orders waiting for the next round.
func (s *State) Carried() []common.Order {
	return slices.Clone(s.engine.carried)
}
