package simulation

import (
	"maps"
	"slices"

	"fxmatch/internal/common"
	"fxmatch/internal/engine"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Report is the outcome of a finished simulation.
type Report struct {
	ID       string
	Name     string
	RunID    string
	Rounds   int64
	Currency common.Asset
	Parties  []PartyReport
}

// PartyReport summarises one party. Value is only meaningful when ValueErr is
// nil; a missing market rate leaves the party unvalued.
type PartyReport struct {
	Name      string
	Deals     int64
	Positions map[common.Asset]decimal.Decimal
	High      map[common.Asset]decimal.Decimal
	Low       map[common.Asset]decimal.Decimal
	Value     decimal.Decimal
	ValueErr  error
}

func NewReport(id, name string, state *engine.State, currency common.Asset) *Report {
	report := &Report{
		ID:       id,
		Name:     name,
		RunID:    state.RunID(),
		Rounds:   state.Index() + 1,
		Currency: currency,
	}
	rates := state.MarketSnapshot()
	for _, partyName := range state.Parties() {
		party, _ := state.Party(partyName)
		pr := PartyReport{
			Name:      partyName,
			Deals:     party.DealCount(),
			Positions: make(map[common.Asset]decimal.Decimal),
			High:      make(map[common.Asset]decimal.Decimal),
			Low:       make(map[common.Asset]decimal.Decimal),
		}
		for _, asset := range party.Positions().Assets() {
			pr.Positions[asset] = party.Position(asset)
			pr.High[asset] = party.HighWaterMark(asset)
			pr.Low[asset] = party.LowWaterMark(asset)
		}
		pr.Value, pr.ValueErr = party.Valuator(currency).Value(rates)
		report.Parties = append(report.Parties, pr)
	}
	return report
}

func (p PartyReport) MarshalZerologObject(e *zerolog.Event) {
	e.Str("party", p.Name).Int64("deals", p.Deals)
	e.Dict("positions", assetDict(p.Positions))
	e.Dict("high", assetDict(p.High))
	e.Dict("low", assetDict(p.Low))
	if p.ValueErr != nil {
		e.AnErr("value_error", p.ValueErr)
	} else {
		e.Str("value", p.Value.StringFixed(2))
	}
}

// Log writes one line per party.
func (r *Report) Log(logger zerolog.Logger) {
	for _, party := range r.Parties {
		logger.Info().
			Str("sim", r.Name).
			Str("run", r.RunID).
			Stringer("currency", r.Currency).
			EmbedObject(party).
			Msg("party report")
	}
}

func assetDict(values map[common.Asset]decimal.Decimal) *zerolog.Event {
	dict := zerolog.Dict()
	for _, asset := range slices.Sorted(maps.Keys(values)) {
		dict.Str(string(asset), values[asset].String())
	}
	return dict
}
