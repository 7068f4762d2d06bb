// Package types provides the tagged runtime value representation and the
// type-restriction lattice shared by the interpreter tiers and the
// optimizing code generator.
package types

import (
	"fmt"
	"strconv"
)

// Kind identifies the runtime representation of a Value.
type Kind uint8

const (
	KindNil    Kind = iota // The single nil value
	KindBool               // true / false
	KindInt                // 64-bit signed integer
	KindFloat              // 64-bit IEEE float
	KindString             // immutable string
	KindSymbol             // interned selector name (callee identity)
)

// String returns a human-readable name for a Kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a tagged runtime value. Values are immutable; the zero Value
// is nil. The full object model lives outside this core, so Value only
// carries what the bytecode tiers and the optimizer need: literals,
// booleans for branching, and symbols naming callees.
type Value struct {
	Kind  Kind
	I     int64
	F     float64
	B     bool
	S     string
	Codes []byte // nybblecodes, set only for function literals (see package l1)
	Lits  []Value
}

// Nil returns the nil value.
func Nil() Value { return Value{Kind: KindNil} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, I: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }

// Str returns a string value.
func Str(s string) Value { return Value{Kind: KindString, S: s} }

// Symbol returns an interned selector value.
func Symbol(s string) Value { return Value{Kind: KindSymbol, S: s} }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// Truthy reports whether v is a true boolean. Only booleans are truthy;
// branching on anything else is a front-end error.
func (v Value) Truthy() bool { return v.Kind == KindBool && v.B }

// Equal reports structural equality between two values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return v.B == o.B
	case KindInt:
		return v.I == o.I
	case KindFloat:
		return v.F == o.F
	case KindString, KindSymbol:
		return v.S == o.S
	default:
		return false
	}
}

// Tag returns the lattice tag that exactly describes v.
func (v Value) Tag() Tag {
	switch v.Kind {
	case KindNil:
		return TagNil
	case KindBool:
		return TagBool
	case KindInt:
		return TagInt
	case KindFloat:
		return TagFloat
	case KindString:
		return TagString
	case KindSymbol:
		return TagSymbol
	default:
		return TagAny
	}
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.S)
	case KindSymbol:
		return "#" + v.S
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}
