package notifications

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
)

// Value is a tagged scalar taken from event metadata or a rule condition.
// Anything that is not a number, string or bool is held as KindNull.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

func Null() Value { return Value{} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// ValueOf converts a decoded JSON/BSON/YAML scalar into a Value.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case string:
		return String(t)
	case bool:
		return Bool(t)
	default:
		return Null()
	}
}

// Float returns the numeric value. Strings holding a decimal number are accepted
// because queue payloads often carry numbers as strings.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Text returns the string form used for template rendering and equality of strings.
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Equal compares two values. Numbers compare numerically, including numeric strings.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNull || o.kind == KindNull {
		return v.kind == o.kind
	}
	if v.kind == KindNumber || o.kind == KindNumber {
		a, aok := v.Float()
		b, bok := o.Float()
		return aok && bok && a == b
	}
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindBool {
		return v.b == o.b
	}
	return v.str == o.str
}

// Compare orders two values. Numbers compare numerically, two non-numeric strings
// compare lexically. ok is false when the values are not comparable.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if a, aok := v.Float(); aok {
		if b, bok := o.Float(); bok {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if v.kind == KindString && o.kind == KindString {
		return strings.Compare(v.str, o.str), true
	}
	return 0, false
}

// Metadata is the free-form payload attached to events, candidates and notifications.
type Metadata map[string]any

// Get returns the value under key, or Null when absent.
func (m Metadata) Get(key string) Value {
	if m == nil {
		return Null()
	}
	x, ok := m[key]
	if !ok {
		return Null()
	}
	return ValueOf(x)
}

// Number returns the numeric value under key. ok is false when the key is
// missing or not numeric; callers must treat that as a failed predicate.
func (m Metadata) Number(key string) (float64, bool) {
	return m.Get(key).Float()
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
