package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind tags the scalar held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	default:
		return "null"
	}
}

// Value is a single cell. The zero Value is Null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// Constructors and accessors.
func Null() Value            { return Value{} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func String(s string) Value  { return Value{kind: KindString, str: s} }
func Boolean(b bool) Value   { return Value{kind: KindBoolean, b: b} }
func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Num() float64 { return v.num }
func (v Value) Str() string  { return v.str }
func (v Value) Bool() bool   { return v.b }

// Blank reports whether the value carries no usable sample: Null or an empty string.
func (v Value) Blank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	default:
		return false
	}
}

// Text renders the value the way it would appear in a cell.
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBoolean:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBoolean:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Number(t)
	case string:
		*v = String(t)
	case bool:
		*v = Boolean(t)
	default:
		*v = String(string(b))
	}
	return nil
}

// ParseNumber reports whether s is a plain decimal number token
// (optional sign, digits with an optional fraction, optional exponent).
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !numberToken(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func numberToken(s string) bool {
	i := 0
	if s[i] == '-' || s[i] == '+' {
		i++
	}
	digits, dot := 0, false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		case c == 'e' || c == 'E':
			if digits == 0 {
				return false
			}
			return exponent(s[i+1:])
		default:
			return false
		}
	}
	return digits > 0
}

func exponent(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Coerce types a raw text cell: empty -> Null, true/false -> Boolean,
// numeric-looking -> Number, anything else stays a String.
func Coerce(raw string) Value {
	if raw == "" {
		return Null()
	}
	switch raw {
	case "true", "TRUE", "True":
		return Boolean(true)
	case "false", "FALSE", "False":
		return Boolean(false)
	}
	if f, ok := ParseNumber(raw); ok {
		return Number(f)
	}
	return String(raw)
}
