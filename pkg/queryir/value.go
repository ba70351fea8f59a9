package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind discriminates the tagged Value union.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindBytes
	KindDatetime
	KindJSON
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDatetime:
		return "datetime"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Value is a tagged column value. Using an explicit tag instead of bare `any`
// keeps field-check comparisons well-defined across the types a row can
// actually carry.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	by   []byte
	t    time.Time
	raw  json.RawMessage
}

func NullValue() Value                { return Value{kind: KindNull} }
func BoolValue(b bool) Value          { return Value{kind: KindBool, b: b} }
func NumberValue(n float64) Value     { return Value{kind: KindNumber, n: n} }
func StringValue(s string) Value      { return Value{kind: KindString, s: s} }
func BytesValue(by []byte) Value      { return Value{kind: KindBytes, by: by} }
func DatetimeValue(t time.Time) Value { return Value{kind: KindDatetime, t: t} }

// JSONValue wraps an opaque JSON document (objects, arrays).
func JSONValue(raw json.RawMessage) Value { return Value{kind: KindJSON, raw: raw} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

func (v Value) Bool() bool            { return v.b }
func (v Value) Number() float64       { return v.n }
func (v Value) Str() string           { return v.s }
func (v Value) Bytes() []byte         { return v.by }
func (v Value) Time() time.Time       { return v.t }
func (v Value) JSON() json.RawMessage { return v.raw }

// ValueOf converts an arbitrary Go value, as produced by JSON decoding or a
// database driver, into a tagged Value. Unrecognized types are marshaled as
// opaque JSON.
func ValueOf(v any) Value {
	switch tv := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return tv
	case bool:
		return BoolValue(tv)
	case int:
		return NumberValue(float64(tv))
	case int32:
		return NumberValue(float64(tv))
	case int64:
		return NumberValue(float64(tv))
	case uint64:
		return NumberValue(float64(tv))
	case float32:
		return NumberValue(float64(tv))
	case float64:
		return NumberValue(tv)
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return StringValue(tv.String())
		}
		return NumberValue(f)
	case string:
		return StringValue(tv)
	case []byte:
		return BytesValue(tv)
	case time.Time:
		return DatetimeValue(tv)
	case json.RawMessage:
		return JSONValue(tv)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return StringValue(fmt.Sprintf("%v", v))
		}
		return JSONValue(raw)
	}
}

// Native returns the underlying Go value, suitable for database drivers and
// JSON encoding.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindBytes:
		return v.by
	case KindDatetime:
		return v.t
	case KindJSON:
		return []byte(v.raw)
	default:
		return nil
	}
}

// Equal reports whether two values are equal. Values of different kinds are
// never equal, except that null equals null.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindBytes:
		return bytes.Equal(v.by, other.by)
	case KindDatetime:
		return v.t.Equal(other.t)
	case KindJSON:
		return bytes.Equal(v.raw, other.raw)
	default:
		return false
	}
}

// String renders the value for logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNumber:
		return fmt.Sprintf("%g", v.n)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("0x%x", v.by)
	case KindDatetime:
		return v.t.Format(time.RFC3339)
	case KindJSON:
		return string(v.raw)
	default:
		return "<invalid>"
	}
}

// MarshalJSON renders the underlying value without the tag.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindBytes:
		return json.Marshal(v.by)
	case KindDatetime:
		return json.Marshal(v.t)
	case KindJSON:
		return v.raw, nil
	default:
		return nil, fmt.Errorf("cannot marshal value of kind %s", v.kind)
	}
}

// Row is one result row: a typed map from column name to value.
type Row map[string]Value

// RowOf converts a map of arbitrary values into a typed Row.
func RowOf(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = ValueOf(v)
	}
	return row
}
