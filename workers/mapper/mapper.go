package mapper

import (
	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/record"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/counters"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"golang.org/x/xerrors"
)

const mapperComponent = "Json Mapper"

// ExtractKey returns the product id a raw line groups under. Lines that do
// not parse group under record.UnknownValue.
func ExtractKey(line string) string {
	rec, err := record.Parse(line)
	if err != nil {
		return record.UnknownValue
	}
	id, err := rec.ProductID()
	if err != nil {
		return record.UnknownValue
	}
	return id
}

// EmitFunc receives one (product id, raw line) association.
type EmitFunc func(key, value string) error

// Map runs the grouping stage on one input line. Blank lines are skipped,
// malformed lines are counted and produce nothing, everything else is
// emitted unchanged under its product id.
func Map(line string, emit EmitFunc, c counters.Counters) error {
	rec, err := record.Parse(line)
	var key string
	if err == nil {
		key, err = rec.ProductID()
	}
	switch {
	case err == nil:
	case xerrors.Is(err, record.ErrEmptyLine):
		return nil
	case xerrors.Is(err, record.ErrMalformed):
		c.Increment(counters.MapperGroup, counters.MalformedJSON, 1)
		logger.LogDebug(mapperComponent, "Skipping malformed line: %v", err)
		return nil
	default:
		return err
	}

	if err := emit(key, rec.Line()); err != nil {
		return xerrors.Errorf("failed to emit record for %q: %w", key, err)
	}
	return nil
}
