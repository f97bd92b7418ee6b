package hostfuncs

import (
	"math"
	"strconv"
	"strings"

	"github.com/reglet-dev/luabridge/wireformat"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// Value is a script-visible value crossing the capability boundary.
// The zero Value is nil.
type Value struct {
	table wireformat.Table
	str   string
	num   float64
	kind  Kind
	b     bool
}

// Args is the argument list of a capability call.
type Args []Value

// Results is the return list of a capability call. Each element becomes a
// separate return value in the script.
type Results []Value

// Nil returns the nil value.
func Nil() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a number.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bytes wraps a byte slice as a string value.
func Bytes(b []byte) Value { return Value{kind: KindString, str: string(b)} }

// Table wraps a table snapshot.
func Table(t wireformat.Table) Value { return Value{kind: KindTable, table: t} }

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == KindNil }

// AsString returns the string form of v. Numbers convert, like the
// interpreter's own string coercion; every other kind reports false.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return formatNumber(v.num), true
	default:
		return "", false
	}
}

// AsNumber returns the numeric form of v. Numeric strings convert.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsTable returns the table held by v.
func (v Value) AsTable() (wireformat.Table, bool) {
	if v.kind != KindTable {
		return nil, false
	}
	return v.table, true
}

// Arg returns the i-th argument or nil when absent.
func (a Args) Arg(i int) Value {
	if i < 0 || i >= len(a) {
		return Nil()
	}
	return a[i]
}

// Number returns the i-th argument as a number, or def when absent or not numeric.
func (a Args) Number(i int, def float64) float64 {
	if n, ok := a.Arg(i).AsNumber(); ok {
		return n
	}
	return def
}

// Integer returns the i-th argument truncated toward zero, or def when absent,
// not numeric or NaN. Values beyond the int64 range saturate.
func (a Args) Integer(i int, def int64) int64 {
	n, ok := a.Arg(i).AsNumber()
	switch {
	case !ok || math.IsNaN(n):
		return def
	case n >= math.MaxInt64:
		return math.MaxInt64
	case n <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(n)
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}
