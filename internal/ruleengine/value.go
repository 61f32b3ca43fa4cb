package ruleengine

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind discriminates the scalar types a Value can hold.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindNumber
	KindBool
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a typed scalar. It is used both for context attributes and for
// comparison operands. The zero Value is invalid.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps f.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the scalar kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a scalar.
func (v Value) IsValid() bool { return v.kind != 0 }

// Str returns the string payload (empty unless Kind is KindString).
func (v Value) Str() string { return v.str }

// Num returns the numeric payload (zero unless Kind is KindNumber).
func (v Value) Num() float64 { return v.num }

// Bool returns the boolean payload (false unless Kind is KindBool).
func (v Value) Bool() bool { return v.b }

// Text renders the value the way it is hashed and matched against sets.
// Integral numbers have no fractional part ("42", not "42.000000").
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Interface converts v back to a plain Go value (string, float64 or bool).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// String implements fmt.Stringer. Strings are quoted so operands print the
// way they are written in conditions.
func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.str)
	}
	return v.Text()
}

// ValueOf converts a decoded JSON/YAML scalar into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return numberValue(t)
	case float32:
		return numberValue(float64(t))
	case int:
		return NumberValue(float64(t)), nil
	case int8:
		return NumberValue(float64(t)), nil
	case int16:
		return NumberValue(float64(t)), nil
	case int32:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case uint:
		return NumberValue(float64(t)), nil
	case uint8:
		return NumberValue(float64(t)), nil
	case uint16:
		return NumberValue(float64(t)), nil
	case uint32:
		return NumberValue(float64(t)), nil
	case uint64:
		return NumberValue(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return numberValue(f)
	default:
		return Value{}, fmt.Errorf("unsupported value type %T (want string, number or bool)", x)
	}
}

func numberValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("number must be finite, got %v", f)
	}
	return NumberValue(f), nil
}

// Context is the set of attributes describing one evaluation request.
// The engine only reads from it.
type Context map[string]Value

// NewContext converts decoded attributes into a Context.
// Nil attribute values are dropped, so they behave like missing attributes.
func NewContext(attrs map[string]any) (Context, error) {
	ctx := make(Context, len(attrs))
	for k, raw := range attrs {
		if raw == nil {
			continue
		}
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		ctx[k] = v
	}
	return ctx, nil
}

// Key returns a canonical fingerprint of ctx: equal contexts produce equal
// keys regardless of map order, and values of different kinds never collide
// ("1" the string and 1 the number differ).
func (c Context) Key() string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, k := range names {
		v := c[k]
		text := v.Text()
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte(byte('0' + v.kind))
		b.WriteString(strconv.Itoa(len(text)))
		b.WriteByte(':')
		b.WriteString(text)
	}
	return b.String()
}
