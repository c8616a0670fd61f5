// Package record parses newline-delimited JSON review records.
//
// A Record keeps the raw line it was parsed from together with its top-level
// fields in document order. Records are never modified after Parse returns.
package record

import (
	"strings"

	"github.com/buger/jsonparser"
	json "github.com/goccy/go-json"
	"golang.org/x/xerrors"
)

const (
	// ProductIDField is the only field the pipeline knows by name.
	ProductIDField = "product/productId"

	// UnknownValue is the sentinel for missing or unresolved data. It is
	// matched case-insensitively against field values and is also the
	// product id of records that carry none.
	UnknownValue = "unknown"
)

var (
	// ErrEmptyLine means the line was blank after trimming and must be skipped.
	ErrEmptyLine = xerrors.New("empty line")

	// ErrMalformed means the line is not a single JSON object.
	ErrMalformed = xerrors.New("malformed record")
)

// ValueType mirrors the JSON type of a field value.
type ValueType int

const (
	NullValue ValueType = iota
	StringValue
	NumberValue
	BoolValue
	ObjectValue
	ArrayValue
)

// Field is one top-level key/value pair of a Record.
type Field struct {
	Name string
	Type ValueType
	// Raw holds the value bytes as they appear in the line. For strings the
	// quotes are stripped but escapes are not resolved.
	Raw []byte
}

// Record is a parsed JSON object line.
type Record struct {
	line   string
	fields []Field
}

// Parse trims line and parses it as a JSON object.
// It returns ErrEmptyLine for blank input and ErrMalformed when the text is
// not valid JSON or its top-level value is not an object.
func Parse(line string) (*Record, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, ErrEmptyLine
	}
	data := []byte(trimmed)
	if data[0] != '{' || !json.Valid(data) {
		return nil, xerrors.Errorf("%w: %q", ErrMalformed, abbreviate(trimmed))
	}

	rec := &Record{line: trimmed}
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		rec.fields = append(rec.fields, Field{
			Name: name,
			Type: convertType(dataType),
			Raw:  value,
		})
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("%w: %v", ErrMalformed, err)
	}
	return rec, nil
}

// Line returns the trimmed source line, byte for byte.
func (r *Record) Line() string {
	return r.line
}

// Fields returns the top-level fields in document order. The slice is a copy.
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of top-level fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// Lookup returns the last field named name, matching the behaviour of a
// decoded map when keys repeat.
func (r *Record) Lookup(name string) (Field, bool) {
	for i := len(r.fields) - 1; i >= 0; i-- {
		if r.fields[i].Name == name {
			return r.fields[i], true
		}
	}
	return Field{}, false
}

// String renders the value the way its JSON form reads: unescaped text for
// strings and the literal token for everything else.
func (f Field) String() string {
	if f.Type == StringValue {
		if s, err := jsonparser.ParseString(f.Raw); err == nil {
			return s
		}
	}
	return string(f.Raw)
}

// IsUnknown reports whether the field is a string equal to "unknown",
// ignoring case.
func (f Field) IsUnknown() bool {
	if f.Type != StringValue || len(f.Raw) < len(UnknownValue) {
		return false
	}
	return strings.EqualFold(f.String(), UnknownValue)
}

// FirstUnknownField returns the first field, in document order, whose value
// is the unknown sentinel.
func (r *Record) FirstUnknownField() (Field, bool) {
	for _, f := range r.fields {
		if f.IsUnknown() {
			return f, true
		}
	}
	return Field{}, false
}

// ProductID returns the product id of the record, or UnknownValue when the
// field is absent. A present null id cannot be read and yields ErrMalformed.
func (r *Record) ProductID() (string, error) {
	f, ok := r.Lookup(ProductIDField)
	if !ok {
		return UnknownValue, nil
	}
	if f.Type == NullValue {
		return "", xerrors.Errorf("%w: null %s in %q", ErrMalformed, ProductIDField, abbreviate(r.line))
	}
	return f.String(), nil
}

func convertType(t jsonparser.ValueType) ValueType {
	switch t {
	case jsonparser.String:
		return StringValue
	case jsonparser.Number:
		return NumberValue
	case jsonparser.Boolean:
		return BoolValue
	case jsonparser.Object:
		return ObjectValue
	case jsonparser.Array:
		return ArrayValue
	default:
		return NullValue
	}
}

func abbreviate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}
