package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxmatch/internal/common"

	"github.com/parquet-go/parquet-go"
)

// TickRecord is the parquet row layout of a tick file.
type TickRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Bid       float64 `parquet:"bid"`
	Ask       float64 `parquet:"ask"`
	BidVolume float64 `parquet:"bid_volume"` // millions
	AskVolume float64 `parquet:"ask_volume"` // millions
}

// ParquetSource replays ticks stored in a parquet file. Rows are read up front
// and must already be in time order.
type ParquetSource struct {
	tickReplay
	records []TickRecord
	pos     int
}

var _ Source = (*ParquetSource)(nil)

func OpenParquet(path string, ids *common.IDAllocator, instrument common.AssetPair, party string) (*ParquetSource, error) {
	records, err := parquet.ReadFile[TickRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &ParquetSource{
		tickReplay: tickReplay{ids: ids, instrument: instrument, party: party},
		records:    records,
	}, nil
}

func (s *ParquetSource) Next() (common.Order, bool, error) {
	for {
		if order, ok := s.pop(); ok {
			return order, true, nil
		}
		if s.pos >= len(s.records) {
			return common.Order{}, false, nil
		}
		record := s.records[s.pos]
		s.pos++

		tick, err := record.tick()
		if err == nil {
			err = s.push(tick)
		}
		if err != nil {
			return common.Order{}, false, fmt.Errorf("%s parquet for %s, row %d: %w", s.instrument, s.party, s.pos, err)
		}
	}
}

func (r TickRecord) tick() (Tick, error) {
	bid, err := common.PriceFromFloat(r.Bid)
	if err != nil {
		return Tick{}, err
	}
	ask, err := common.PriceFromFloat(r.Ask)
	if err != nil {
		return Tick{}, err
	}
	bidVolume, err := common.PriceFromFloat(r.BidVolume)
	if err != nil {
		return Tick{}, err
	}
	askVolume, err := common.PriceFromFloat(r.AskVolume)
	if err != nil {
		return Tick{}, err
	}
	return Tick{
		Time:      time.UnixMilli(r.Timestamp).UTC(),
		Bid:       bid,
		Ask:       ask,
		BidVolume: bidVolume,
		AskVolume: askVolume,
	}, nil
}

// WriteTicks stores ticks in the layout OpenParquet reads.
func WriteTicks(path string, ticks []Tick) error {
	records := make([]TickRecord, len(ticks))
	for i, tick := range ticks {
		bid, _ := tick.Bid.Float64()
		ask, _ := tick.Ask.Float64()
		bidVolume, _ := tick.BidVolume.Float64()
		askVolume, _ := tick.AskVolume.Float64()
		records[i] = TickRecord{
			Timestamp: tick.Time.UnixMilli(),
			Bid:       bid,
			Ask:       ask,
			BidVolume: bidVolume,
			AskVolume: askVolume,
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
