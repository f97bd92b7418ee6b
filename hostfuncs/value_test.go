package hostfuncs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reglet-dev/luabridge/wireformat"
)

func TestValue_Conversions(t *testing.T) {
	tests := []struct {
		name  string
		v     Value
		kind  Kind
		str   string
		strOK bool
		num   float64
		numOK bool
	}{
		{name: "nil", v: Nil(), kind: KindNil},
		{name: "bool", v: Bool(true), kind: KindBool},
		{name: "integer", v: Number(42), kind: KindNumber, str: "42", strOK: true, num: 42, numOK: true},
		{name: "float", v: Number(1.5), kind: KindNumber, str: "1.5", strOK: true, num: 1.5, numOK: true},
		{name: "numeric string", v: String(" 7 "), kind: KindString, str: " 7 ", strOK: true, num: 7, numOK: true},
		{name: "plain string", v: Bytes([]byte("abc")), kind: KindString, str: "abc", strOK: true},
		{name: "table", v: Table(wireformat.Table{}.Add("a", "b")), kind: KindTable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.v.Kind())
			s, ok := tc.v.AsString()
			assert.Equal(t, tc.strOK, ok)
			assert.Equal(t, tc.str, s)
			n, ok := tc.v.AsNumber()
			assert.Equal(t, tc.numOK, ok)
			assert.Equal(t, tc.num, n)
		})
	}
}

func TestArgs(t *testing.T) {
	args := Args{String("x"), Number(3)}
	assert.True(t, args.Arg(5).IsNil())
	assert.True(t, args.Arg(-1).IsNil())
	assert.Equal(t, 3.0, args.Number(1, 9))
	assert.Equal(t, 9.0, args.Number(0, 9))
	assert.Equal(t, 9.0, args.Number(2, 9))
	assert.Equal(t, int64(3), args.Integer(1, 9))
	assert.Equal(t, int64(9), args.Integer(0, 9))

	tbl, ok := Table(wireformat.Table{}.Add("k", "v")).AsTable()
	assert.True(t, ok)
	assert.Len(t, tbl, 1)
	b, ok := Bool(false).AsBool()
	assert.True(t, ok)
	assert.False(t, b)
	assert.Equal(t, "boolean", KindBool.String())
}

func TestArgs_IntegerTruncates(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int64
		byte uint8
	}{
		{"in range", 17, 17, 17},
		{"fraction", 6.9, 6, 6},
		{"wraps above 255", 300, 300, 44},
		{"negative", -1, -1, 255},
		{"huge", 1e300, math.MaxInt64, 255},
		{"nan", math.NaN(), 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Args{Number(tc.in)}.Integer(0, 0)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.byte, uint8(got))
		})
	}
}
