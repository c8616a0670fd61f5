package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestParseKeepsLineAndFieldOrder(t *testing.T) {
	line := `  {"product/productId":"B001","review/score":5,"helpful":true,"meta":{"a":1},"tags":["x"],"gone":null}  `

	rec, err := Parse(line)
	require.NoError(t, err)

	assert.Equal(t, `{"product/productId":"B001","review/score":5,"helpful":true,"meta":{"a":1},"tags":["x"],"gone":null}`, rec.Line())

	fields := rec.Fields()
	require.Len(t, fields, 6)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"product/productId", "review/score", "helpful", "meta", "tags", "gone"}, names)
	assert.Equal(t, StringValue, fields[0].Type)
	assert.Equal(t, NumberValue, fields[1].Type)
	assert.Equal(t, BoolValue, fields[2].Type)
	assert.Equal(t, ObjectValue, fields[3].Type)
	assert.Equal(t, ArrayValue, fields[4].Type)
	assert.Equal(t, NullValue, fields[5].Type)
}

func TestParseEmptyLine(t *testing.T) {
	for _, line := range []string{"", "   ", "\t\r"} {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrEmptyLine, "line %q", line)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "plain text", line: "not json at all"},
		{name: "truncated object", line: `{"product/productId":"B001"`},
		{name: "array", line: `[{"product/productId":"B001"}]`},
		{name: "string", line: `"unknown"`},
		{name: "number", line: `42`},
		{name: "two objects", line: `{"a":"1"}{"b":"2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.line)
			assert.Nil(t, rec)
			assert.True(t, xerrors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestProductID(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "string id", line: `{"product/productId":"B001","value":"5"}`, want: "B001"},
		{name: "numeric id keeps token", line: `{"product/productId":1234}`, want: "1234"},
		{name: "boolean id", line: `{"product/productId":false}`, want: "false"},
		{name: "escaped id", line: `{"product/productId":"B\u00e9"}`, want: "Bé"},
		{name: "missing", line: `{"review/score":"5"}`, want: UnknownValue},
		{name: "repeated key keeps last", line: `{"product/productId":"A","product/productId":"B"}`, want: "B"},
		{name: "empty object", line: `{}`, want: UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.line)
			require.NoError(t, err)
			id, err := rec.ProductID()
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestProductIDRejectsNull(t *testing.T) {
	rec, err := Parse(`{"product/productId":null,"review/text":"great"}`)
	require.NoError(t, err)

	id, err := rec.ProductID()
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Empty(t, id)
}

func TestFirstUnknownField(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantField string
		wantFound bool
	}{
		{name: "lower case", line: `{"product/productId":"B002","rating":"unknown"}`, wantField: "rating", wantFound: true},
		{name: "upper case", line: `{"a":"x","b":"UNKNOWN"}`, wantField: "b", wantFound: true},
		{name: "mixed case picks first", line: `{"a":"UnKnOwN","b":"unknown"}`, wantField: "a", wantFound: true},
		{name: "product id itself", line: `{"product/productId":"unknown"}`, wantField: "product/productId", wantFound: true},
		{name: "substring is not a match", line: `{"a":"unknown artist"}`},
		{name: "padded is not a match", line: `{"a":" unknown"}`},
		{name: "nested value is ignored", line: `{"a":{"b":"unknown"}}`},
		{name: "array value is ignored", line: `{"a":["unknown"]}`},
		{name: "key named unknown", line: `{"unknown":"value"}`},
		{name: "null", line: `{"a":null}`},
		{name: "clean", line: `{"product/productId":"B001","value":"5"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.line)
			require.NoError(t, err)
			f, found := rec.FirstUnknownField()
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.wantField, f.Name)
			}
		})
	}
}

func TestFieldsReturnsCopy(t *testing.T) {
	rec, err := Parse(`{"a":"1"}`)
	require.NoError(t, err)

	fields := rec.Fields()
	fields[0].Name = "mutated"

	f, ok := rec.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "1", f.String())
	assert.Equal(t, 1, rec.Len())
}
