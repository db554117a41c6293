package flow

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fxmatch/internal/common"

	"github.com/shopspring/decimal"
)

var ErrMalformedTick = errors.New("malformed tick")

// CSVSource replays tick data of the form
//
//	Time,Ask,Bid,AskVolume,BidVolume
//	2015-07-01 11:47:19.707,1.11022,1.11018,2.25,4.12
//
// The header line is optional.
type CSVSource struct {
	tickReplay
	reader *csv.Reader
	closer io.Closer
	line   int
	done   bool
}

var _ Source = (*CSVSource)(nil)

func NewCSVSource(r io.Reader, ids *common.IDAllocator, instrument common.AssetPair, party string) *CSVSource {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
	return &CSVSource{
		tickReplay: tickReplay{ids: ids, instrument: instrument, party: party},
		reader:     reader,
	}
}

// OpenCSV opens a tick file. Close releases it.
func OpenCSV(path string, ids *common.IDAllocator, instrument common.AssetPair, party string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	source := NewCSVSource(f, ids, instrument, party)
	source.closer = f
	return source, nil
}

func (s *CSVSource) Next() (common.Order, bool, error) {
	for {
		if order, ok := s.pop(); ok {
			return order, true, nil
		}
		if s.done {
			return common.Order{}, false, nil
		}

		record, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			continue
		}
		s.line++
		if err != nil {
			return common.Order{}, false, fmt.Errorf("%s csv for %s, line %d: %w", s.instrument, s.party, s.line, err)
		}
		if s.line == 1 && strings.EqualFold(record[0], "time") {
			continue
		}

		tick, err := parseTick(record)
		if err == nil {
			err = s.push(tick)
		}
		if err != nil {
			return common.Order{}, false, fmt.Errorf("%s csv for %s, line %d: %w", s.instrument, s.party, s.line, err)
		}
	}
}

func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func parseTick(record []string) (Tick, error) {
	t, err := time.ParseInLocation(TickLayout, record[0], time.UTC)
	if err != nil {
		return Tick{}, fmt.Errorf("%w: time %q", ErrMalformedTick, record[0])
	}
	var fields [4]decimal.Decimal
	for i := range fields {
		if fields[i], err = decimal.NewFromString(record[i+1]); err != nil {
			return Tick{}, fmt.Errorf("%w: field %d %q", ErrMalformedTick, i+2, record[i+1])
		}
	}
	return Tick{
		Time:      t,
		Ask:       fields[0],
		Bid:       fields[1],
		AskVolume: fields[2],
		BidVolume: fields[3],
	}, nil
}
