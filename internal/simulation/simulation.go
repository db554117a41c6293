package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"

	"fxmatch/internal/common"
	"fxmatch/internal/config"
	"fxmatch/internal/engine"
	"fxmatch/internal/flow"
	"fxmatch/internal/market"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Simulation is one configured engine run with its sources and observers.
type Simulation struct {
	id       string
	name     string
	engine   *engine.Engine
	currency common.Asset
	closers  []io.Closer
}

// Build wires an engine from a configuration. Tick files are opened here and
// closed when the simulation finishes running.
func Build(cfg *config.Config) (*Simulation, error) {
	ids := common.NewIDAllocator(0)
	sim := &Simulation{
		id:     uuid.NewString(),
		name:   cfg.Name,
		engine: engine.New(ids),
	}
	if err := sim.wire(cfg, ids); err != nil {
		sim.close()
		return nil, fmt.Errorf("simulation %s: %w", cfg.Name, err)
	}
	return sim, nil
}

func (s *Simulation) wire(cfg *config.Config, ids *common.IDAllocator) error {
	var err error
	if s.currency, err = cfg.Run.Currency(); err != nil {
		return err
	}
	policy, err := cfg.Run.Policy()
	if err != nil {
		return err
	}
	if err := s.engine.SetFillPolicy(policy); err != nil {
		return err
	}
	initial, err := cfg.Run.Initial()
	if err != nil {
		return err
	}
	if !initial.IsZero() {
		if err := s.engine.SetInitialTime(initial); err != nil {
			return err
		}
	}

	for _, party := range cfg.Parties {
		limits, err := party.RiskLimits()
		if err != nil {
			return err
		}
		if err := s.engine.SetRiskLimits(party.Name, limits); err != nil {
			return err
		}
	}

	for i, sc := range cfg.Sources {
		source, err := s.openSource(cfg.Run, sc, ids)
		if err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if err := s.engine.AddSource(source); err != nil {
			return err
		}
	}

	for i, mc := range cfg.Makers {
		maker, err := s.newMaker(mc, ids)
		if err != nil {
			return fmt.Errorf("makers[%d]: %w", i, err)
		}
		if err := s.engine.AddMarketMaker(maker); err != nil {
			return err
		}
	}

	if cfg.Printer.Enabled {
		modes, err := market.ParseModes(cfg.Printer.Modes)
		if err != nil {
			return err
		}
		logger := log.Logger.With().Str("sim", s.name).Str("run", s.engine.RunID()).Logger()
		if err := s.engine.AddObserver(market.NewPrinter(logger, modes)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) openSource(run config.Run, sc config.Source, ids *common.IDAllocator) (flow.Source, error) {
	if sc.Type == config.SourceOrders {
		orders := make([]common.Order, 0, len(sc.Orders))
		for i, oc := range sc.Orders {
			order, err := oc.Build(ids, sc.Instrument)
			if err != nil {
				return nil, fmt.Errorf("orders[%d]: %w", i, err)
			}
			orders = append(orders, order)
		}
		return flow.NewListSource(orders...), nil
	}

	instrument, err := common.ParseAssetPair(sc.Instrument)
	if err != nil {
		return nil, err
	}
	path := run.Resolve(sc.Path)
	switch sc.Type {
	case config.SourceCSV:
		source, err := flow.OpenCSV(path, ids, instrument, sc.Party)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, source)
		return source, nil
	case config.SourceParquet:
		return flow.OpenParquet(path, ids, instrument, sc.Party)
	}
	return nil, fmt.Errorf("%w: unknown source type %q", common.ErrValidation, sc.Type)
}

func (s *Simulation) newMaker(mc config.Maker, ids *common.IDAllocator) (*market.Maker, error) {
	instrument, err := common.ParseAssetPair(mc.Instrument)
	if err != nil {
		return nil, err
	}
	spread, err := mc.SpreadValue()
	if err != nil {
		return nil, err
	}

	var quoter market.Quoter
	switch mc.Type {
	case config.MakerMid:
		quoter, err = market.NewMidQuoter(mc.Party, mc.Quantity, spread)
	case config.MakerSkewed:
		var asset common.Asset
		if asset, err = common.ParseAsset(mc.SkewAsset); err == nil {
			quoter, err = market.NewSkewedQuoter(mc.Party, mc.Quantity, spread, asset)
		}
	case config.MakerTrending:
		quoter, err = market.NewTrendingQuoter(mc.Party, mc.Quantity, spread)
	default:
		err = fmt.Errorf("%w: unknown maker type %q", common.ErrValidation, mc.Type)
	}
	if err != nil {
		return nil, err
	}
	return market.NewMaker(ids, instrument, quoter, s.engine, mc.Latency), nil
}

func (s *Simulation) ID() string {
	return s.id
}

func (s *Simulation) Name() string {
	return s.name
}

func (s *Simulation) Engine() *engine.Engine {
	return s.engine
}

// Run matches rounds until the sources are exhausted or ctx is cancelled.
// Cancellation is only observed between rounds.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	defer s.close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, _ := tomb.WithContext(ctx)
	t.Go(func() error {
		return s.engine.ForEach(func(*engine.State) error {
			select {
			case <-t.Dying():
				return tomb.ErrDying
			default:
				return nil
			}
		})
	})
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Str("sim", s.name).Str("id", s.id).Msg("simulation stopped")
		return nil, err
	}

	report := NewReport(s.id, s.name, s.engine.State(), s.currency)
	log.Info().
		Str("sim", s.name).
		Str("id", s.id).
		Int64("rounds", report.Rounds).
		Int("parties", len(report.Parties)).
		Msg("simulation finished")
	return report, nil
}

// Close releases the tick files of a simulation that will not be run. Run
// closes them itself.
func (s *Simulation) Close() {
	s.close()
}

// BuildAll builds one simulation per configuration. If any fails, the ones
// already built are closed.
func BuildAll(cfgs []*config.Config) ([]*Simulation, error) {
	return buildAll(cfgs, Build)
}

func buildAll(cfgs []*config.Config, build func(*config.Config) (*Simulation, error)) ([]*Simulation, error) {
	sims := make([]*Simulation, 0, len(cfgs))
	for _, cfg := range cfgs {
		sim, err := build(cfg)
		if err != nil {
			for _, built := range sims {
				built.Close()
			}
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, nil
}

func (s *Simulation) close() {
	var errs []error
	for _, closer := range s.closers {
		errs = append(errs, closer.Close())
	}
	s.closers = nil
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Str("sim", s.name).Msg("closing sources")
	}
}
