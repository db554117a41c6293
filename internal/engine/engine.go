package engine

import (
	"errors"
	"fmt"
	"time"

	"fxmatch/internal/common"
	"fxmatch/internal/flow"
	"fxmatch/internal/market"
	"fxmatch/internal/position"
	"fxmatch/internal/risk"
	"fxmatch/internal/valuation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrStarted = errors.New("engine already started")

// MarketMaker is a strategy that both produces orders and follows the market.
type MarketMaker interface {
	flow.Source
	market.Observer
}

// Engine is the round based matching engine.
//
// Each round pulls a batch of orders from the sources, matches every
// instrument independently and commits the resulting deals to the parties'
// accounts before the next round starts. The engine is single threaded; a
// round is never interrupted halfway.
type Engine struct {
	runID  string
	ids    *common.IDAllocator
	policy position.FillPolicy

	sources  []flow.Source
	buffered []bool
	heads    *headQueue

	observers []market.Observer
	best      []market.BestQuoteObserver
	rates     *valuation.LastRates

	parties map[string]*PartyState
	// Residuals left at the head of a book when matching stops. They rest
	// into the next round instead of being discarded, so a partially filled
	// seller keeps trading against later buyers.
	carried []common.Order

	initial   time.Time
	clock     time.Time
	announced bool
	index     int64
	start     time.Time
	end       time.Time
	started   bool
	pollErr   error
}

// New creates an engine minting order and deal ids from ids.
func New(ids *common.IDAllocator) *Engine {
	engine := &Engine{
		runID:   uuid.New().String(),
		ids:     ids,
		policy:  position.PartialFill,
		heads:   newHeadQueue(),
		rates:   valuation.NewLastRates(),
		parties: make(map[string]*PartyState),
		index:   -1,
	}
	engine.observers = []market.Observer{engine.rates}
	engine.best = []market.BestQuoteObserver{engine.rates}
	return engine
}

func (engine *Engine) RunID() string {
	return engine.runID
}

func (engine *Engine) AddSource(source flow.Source) error {
	if engine.started {
		return ErrStarted
	}
	engine.sources = append(engine.sources, source)
	engine.buffered = append(engine.buffered, false)
	return nil
}

// AddObserver registers an observer. Observers that also implement
// market.BestQuoteObserver receive best quotes.
func (engine *Engine) AddObserver(observer market.Observer) error {
	if engine.started {
		return ErrStarted
	}
	engine.observers = append(engine.observers, observer)
	if best, ok := observer.(market.BestQuoteObserver); ok {
		engine.best = append(engine.best, best)
	}
	return nil
}

func (engine *Engine) AddMarketMaker(maker MarketMaker) error {
	if err := engine.AddSource(maker); err != nil {
		return err
	}
	return engine.AddObserver(maker)
}

// SetRiskLimits registers a party with its limits. Parties never registered
// trade without limits.
func (engine *Engine) SetRiskLimits(party string, limits *risk.Limits) error {
	if engine.started {
		return ErrStarted
	}
	if party == "" {
		return fmt.Errorf("%w: risk limits for empty party", common.ErrValidation)
	}
	engine.parties[party] = &PartyState{
		name:       party,
		account:    position.NewAccount(limits),
		registered: true,
	}
	return nil
}

// SetInitialTime sets the time announced before the first round. It defaults
// to the time of the first round.
func (engine *Engine) SetInitialTime(t time.Time) error {
	if engine.started {
		return ErrStarted
	}
	engine.initial = t
	return nil
}

func (engine *Engine) SetFillPolicy(policy position.FillPolicy) error {
	if engine.started {
		return ErrStarted
	}
	if policy == nil {
		return fmt.Errorf("%w: nil fill policy", common.ErrValidation)
	}
	engine.policy = policy
	return nil
}

// Positions returns a read-only view of a party's positions.
func (engine *Engine) Positions(party string) position.View {
	return engine.party(party).Positions()
}

func (engine *Engine) party(name string) *PartyState {
	p, ok := engine.parties[name]
	if !ok {
		p = &PartyState{name: name, account: position.NewAccount(nil)}
		engine.parties[name] = p
	}
	return p
}

func (engine *Engine) State() *State {
	return &State{engine: engine}
}

// HasNext reports whether any source can produce another order. Sources that
// had nothing earlier are asked again.
func (engine *Engine) HasNext() bool {
	if engine.pollErr != nil {
		return true
	}
	if err := engine.refill(); err != nil {
		engine.pollErr = err
		return true
	}
	return engine.heads.Len() > 0
}

// MatchNext runs the next round.
func (engine *Engine) MatchNext() (*State, error) {
	if !engine.HasNext() {
		return nil, common.ErrNoNextRound
	}
	if err := engine.pollErr; err != nil {
		engine.pollErr = nil
		return nil, err
	}

	fresh, err := engine.nextRound()
	if err != nil {
		return nil, err
	}
	engine.started = true
	engine.index++
	engine.start, engine.end = fresh[0].Time, fresh[0].Time
	for _, order := range fresh {
		if order.Time.After(engine.end) {
			engine.end = order.Time
		}
	}
	// Residuals carried from the previous round queue ahead of new orders.
	orders := append(engine.carried, fresh...)
	engine.carried = nil

	if engine.index == 0 {
		initial := engine.initial
		if initial.IsZero() {
			initial = engine.start
		}
		engine.announce(initial)
	}
	engine.announce(engine.start)

	deals, err := engine.match(orders)
	if err != nil {
		log.Error().Err(err).Str("run", engine.runID).Int64("round", engine.index).Msg("round failed")
		return nil, err
	}

	log.Debug().
		Str("run", engine.runID).
		Int64("round", engine.index).
		Time("start", engine.start).
		Int("orders", len(orders)).
		Int("deals", deals).
		Msg("round matched")
	return engine.State(), nil
}

// announce notifies observers of a time once it moves forward.
func (engine *Engine) announce(t time.Time) {
	if engine.announced && !t.After(engine.clock) {
		return
	}
	engine.clock = t
	engine.announced = true
	for _, observer := range engine.observers {
		observer.OnTime(t)
	}
}

// MatchAll runs rounds until the sources are exhausted. The first round
// always happens, so a run without orders ends at index 0.
func (engine *Engine) MatchAll() (*State, error) {
	if err := engine.ForEach(nil); err != nil {
		return nil, err
	}
	return engine.State(), nil
}

// ForEach runs rounds until the sources are exhausted, calling fn after every
// round. fn may be nil.
func (engine *Engine) ForEach(fn func(*State) error) error {
	if engine.index < 0 && !engine.HasNext() {
		engine.matchEmpty()
		if fn != nil {
			return fn(engine.State())
		}
		return nil
	}
	for engine.HasNext() {
		state, err := engine.MatchNext()
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(state); err != nil {
				return err
			}
		}
	}
	return nil
}

func (engine *Engine) matchEmpty() {
	engine.started = true
	engine.index = 0
	engine.start, engine.end = engine.initial, engine.initial
	if !engine.initial.IsZero() {
		engine.announce(engine.initial)
	}
	log.Debug().Str("run", engine.runID).Msg("no orders to match")
}
