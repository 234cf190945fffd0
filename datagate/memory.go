package datagate

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
)

// MemorySource is a deterministic in-memory Source used by tests and the
// CLI fixture loader. Safe for concurrent reads after ingestion
type MemorySource struct {
	m       sync.RWMutex
	sources map[string][]Row
}

// NewMemorySource returns an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{sources: make(map[string][]Row)}
}

// AddRows appends rows to a named source
func (s *MemorySource) AddRows(source string, rows ...Row) {
	s.m.Lock()
	defer s.m.Unlock()
	s.sources[source] = append(s.sources[source], rows...)
}

// AddBar ingests a market bar into the prices_daily source. The bar's
// effective date equals its trade date; end of day prices are observable
// on the day itself
func (s *MemorySource) AddBar(bar MarketBar) {
	s.AddRows(PricesDaily, RowFromBar(bar))
}

// Read implements Source, filtering on instruments and event date range
func (s *MemorySource) Read(name string, q Query) ([]Row, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	rows, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	var wanted map[string]struct{}
	if len(q.Instruments) > 0 {
		wanted = make(map[string]struct{}, len(q.Instruments))
		for i := range q.Instruments {
			wanted[q.Instruments[i]] = struct{}{}
		}
	}
	var resp []Row
	for i := range rows {
		if wanted != nil {
			if _, ok := wanted[rows[i].Instrument]; !ok {
				continue
			}
		}
		eventDate := common.NormaliseDate(rows[i].EventDate)
		if !q.Start.IsZero() && eventDate.Before(common.NormaliseDate(q.Start)) {
			continue
		}
		if !q.End.IsZero() && eventDate.After(common.NormaliseDate(q.End)) {
			continue
		}
		resp = append(resp, rows[i])
	}
	return resp, nil
}

// RowFromBar converts a market bar into its row representation
func RowFromBar(bar MarketBar) Row {
	r := Row{
		Instrument:    bar.Instrument,
		EventDate:     common.NormaliseDate(bar.Date),
		EffectiveDate: common.NormaliseDate(bar.Date),
		Values: map[string]decimal.Decimal{
			"open":   bar.Open,
			"high":   bar.High,
			"low":    bar.Low,
			"close":  bar.Close,
			"volume": bar.Volume,
		},
	}
	if bar.Halted {
		r.Labels = map[string]string{"halted": "true"}
	}
	return r
}
