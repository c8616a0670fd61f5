package reducer

import (
	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/record"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/counters"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"golang.org/x/xerrors"
)

const filterComponent = "Filter Reducer"

// OutputKey is the key every surviving record is written under, collapsing
// all groups into one flat stream.
const OutputKey = ""

// Sink receives the records that pass the filter.
type Sink interface {
	Emit(key, value string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(key, value string) error

func (f SinkFunc) Emit(key, value string) error {
	return f(key, value)
}

// Filter runs the filtering stage for one group. A group whose product id is
// excluded is dropped whole. Otherwise each raw line is parsed and emitted
// unchanged unless one of its fields holds the unknown sentinel. Per-record
// problems are counted and skipped; only sink errors are returned.
func Filter(productID string, group []string, exclusion *ExclusionSet, sink Sink, c counters.Counters) error {
	if exclusion.Contains(productID) {
		c.Increment(counters.ReducerGroup, counters.DuplicateProductsSkipped, 1)
		logger.LogDebug(filterComponent, "Skipping duplicate product %s (%d records)", productID, len(group))
		return nil
	}

	for _, value := range group {
		rec, err := record.Parse(value)
		if err != nil {
			c.Increment(counters.ReducerGroup, counters.ParseErrors, 1)
			continue
		}
		if field, found := rec.FirstUnknownField(); found {
			c.Increment(counters.ReducerGroup, counters.UnknownValuesSkipped, 1)
			logger.LogDebug(filterComponent, "Skipping record of %s: field %q is unknown", productID, field.Name)
			continue
		}
		if err := sink.Emit(OutputKey, value); err != nil {
			return xerrors.Errorf("failed to emit record of %s: %w", productID, err)
		}
		c.Increment(counters.ReducerGroup, counters.RecordsOutput, 1)
	}
	return nil
}
