package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fxmatch/internal/common"
	"fxmatch/internal/flow"
	"fxmatch/internal/market"
	"fxmatch/internal/position"
	"fxmatch/internal/risk"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config describes one simulation: who trades, where orders come from and
// how the run is reported.
type Config struct {
	Name    string   `yaml:"name"`
	Run     Run      `yaml:"run"`
	Logging Logging  `yaml:"logging"`
	Parties []Party  `yaml:"parties"`
	Sources []Source `yaml:"sources"`
	Makers  []Maker  `yaml:"makers"`
	Printer Printer  `yaml:"printer"`
}

// Run holds the engine settings.
type Run struct {
	InitialTime       string `yaml:"initial_time"`
	FillPolicy        string `yaml:"fill_policy"`
	ValuationCurrency string `yaml:"valuation_currency"`
	DataDir           string `yaml:"data_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Party registers a participant with per-asset position limits. Assets
// without an entry are unlimited.
type Party struct {
	Name   string           `yaml:"name"`
	Limits map[string]int64 `yaml:"limits"`
}

// Source is an order feed: a tick file replayed for one party, or a literal
// list of orders.
type Source struct {
	Type       string  `yaml:"type"`
	Path       string  `yaml:"path"`
	Instrument string  `yaml:"instrument"`
	Party      string  `yaml:"party"`
	Orders     []Order `yaml:"orders"`
}

// Order is a literal order of an "orders" source.
type Order struct {
	Time       string `yaml:"time"`
	Instrument string `yaml:"instrument"`
	Party      string `yaml:"party"`
	Side       string `yaml:"side"`
	Price      string `yaml:"price"`
	Quantity   int64  `yaml:"quantity"`
}

// Maker is a synthetic market maker.
type Maker struct {
	Type       string        `yaml:"type"`
	Party      string        `yaml:"party"`
	Instrument string        `yaml:"instrument"`
	Spread     string        `yaml:"spread"`
	Quantity   int64         `yaml:"quantity"`
	Latency    time.Duration `yaml:"latency"`
	SkewAsset  string        `yaml:"skew_asset"`
}

// Printer selects which market events are logged.
type Printer struct {
	Enabled bool     `yaml:"enabled"`
	Modes   []string `yaml:"modes"`
}

const (
	SourceCSV     = "csv"
	SourceParquet = "parquet"
	SourceOrders  = "orders"

	MakerMid      = "mid"
	MakerSkewed   = "skewed"
	MakerTrending = "trending"
)

// timeLayouts are tried in order when reading times.
var timeLayouts = []string{time.RFC3339Nano, flow.TickLayout, time.DateTime, time.DateOnly}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, applies
// environment variable overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FXMATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FXMATCH_DATA_DIR"); v != "" {
		cfg.Run.DataDir = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks every value that the simulation will later convert, and
// reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	_, err := c.Run.Policy()
	check(err)
	_, err = c.Run.Initial()
	check(err)
	_, err = c.Run.Currency()
	check(err)
	_, err = market.ParseModes(c.Printer.Modes)
	check(err)

	seen := make(map[string]bool)
	for i, party := range c.Parties {
		if party.Name == "" {
			check(fmt.Errorf("%w: parties[%d]: missing name", common.ErrValidation, i))
		} else if seen[party.Name] {
			check(fmt.Errorf("%w: parties[%d]: duplicate party %q", common.ErrValidation, i, party.Name))
		}
		seen[party.Name] = true
		_, err := party.RiskLimits()
		check(wrapIndex("parties", i, err))
	}

	for i, source := range c.Sources {
		check(wrapIndex("sources", i, source.validate()))
	}
	for i, maker := range c.Makers {
		check(wrapIndex("makers", i, maker.validate()))
	}
	return errors.Join(errs...)
}

func wrapIndex(section string, i int, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s[%d]: %w", section, i, err)
}

func (s Source) validate() error {
	switch s.Type {
	case SourceCSV, SourceParquet:
		if s.Path == "" {
			return fmt.Errorf("%w: %s source without path", common.ErrValidation, s.Type)
		}
		if s.Party == "" {
			return fmt.Errorf("%w: %s source without party", common.ErrValidation, s.Type)
		}
		_, err := common.ParseAssetPair(s.Instrument)
		return err
	case SourceOrders:
		for i, order := range s.Orders {
			if err := order.validate(s.Instrument); err != nil {
				return wrapIndex("orders", i, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown source type %q", common.ErrValidation, s.Type)
}

func (o Order) validate(instrument string) error {
	if _, err := o.Pair(instrument); err != nil {
		return err
	}
	if _, err := common.ParseSide(o.Side); err != nil {
		return err
	}
	if _, err := parseTime(o.Time); err != nil {
		return err
	}
	if _, err := decimal.NewFromString(o.Price); err != nil {
		return fmt.Errorf("%w: price %q", common.ErrValidation, o.Price)
	}
	if o.Party == "" || o.Quantity <= 0 {
		return fmt.Errorf("%w: order needs a party and a positive quantity", common.ErrValidation)
	}
	return nil
}

func (m Maker) validate() error {
	switch m.Type {
	case MakerMid, MakerTrending:
	case MakerSkewed:
		if _, err := common.ParseAsset(m.SkewAsset); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown maker type %q", common.ErrValidation, m.Type)
	}
	if _, err := common.ParseAssetPair(m.Instrument); err != nil {
		return err
	}
	if m.Latency < 0 {
		return fmt.Errorf("%w: negative latency %s", common.ErrValidation, m.Latency)
	}
	if _, err := m.SpreadValue(); err != nil {
		return err
	}
	if m.Party == "" || m.Quantity <= 0 {
		return fmt.Errorf("%w: maker needs a party and a positive quantity", common.ErrValidation)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// Policy returns the configured fill policy, partial by default.
func (r Run) Policy() (position.FillPolicy, error) {
	return position.ParseFillPolicy(r.FillPolicy)
}

// Initial returns the configured initial time; zero when unset.
func (r Run) Initial() (time.Time, error) {
	if r.InitialTime == "" {
		return time.Time{}, nil
	}
	return parseTime(r.InitialTime)
}

// Currency returns the valuation currency, USD by default.
func (r Run) Currency() (common.Asset, error) {
	if r.ValuationCurrency == "" {
		return common.USD, nil
	}
	return common.ParseAsset(r.ValuationCurrency)
}

// Resolve makes a relative data path relative to the data directory.
func (r Run) Resolve(path string) string {
	if r.DataDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.DataDir, path)
}

func (p Party) RiskLimits() (*risk.Limits, error) {
	limits := make(map[common.Asset]int64, len(p.Limits))
	for code, n := range p.Limits {
		asset, err := common.ParseAsset(code)
		if err != nil {
			return nil, err
		}
		limits[asset] = n
	}
	return risk.NewLimits(limits)
}

// Pair returns the order's instrument, falling back to the source's.
func (o Order) Pair(fallback string) (common.AssetPair, error) {
	if o.Instrument != "" {
		return common.ParseAssetPair(o.Instrument)
	}
	return common.ParseAssetPair(fallback)
}

func (o Order) Build(ids *common.IDAllocator, fallback string) (common.Order, error) {
	pair, err := o.Pair(fallback)
	if err != nil {
		return common.Order{}, err
	}
	side, err := common.ParseSide(o.Side)
	if err != nil {
		return common.Order{}, err
	}
	t, err := parseTime(o.Time)
	if err != nil {
		return common.Order{}, err
	}
	price, err := decimal.NewFromString(o.Price)
	if err != nil {
		return common.Order{}, fmt.Errorf("%w: price %q", common.ErrValidation, o.Price)
	}
	return common.NewOrder(ids.Next(), t, pair, o.Party, side, price, o.Quantity)
}

func (m Maker) SpreadValue() (decimal.Decimal, error) {
	spread, err := decimal.NewFromString(m.Spread)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: spread %q", common.ErrValidation, m.Spread)
	}
	return spread, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q", common.ErrValidation, s)
}
