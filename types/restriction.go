package types

import "fmt"

// Tag is a point in the small static type lattice used by the optimizer.
// The lattice is intentionally shallow: Any at the top, Number grouping
// the two numeric tags, Bottom below everything (no value can have it).
type Tag uint8

const (
	TagBottom Tag = iota
	TagNil
	TagBool
	TagInt
	TagFloat
	TagString
	TagSymbol
	TagNumber // supertype of TagInt and TagFloat
	TagAny
)

// tagParent maps each tag to its immediate supertype. TagAny is its own
// parent, which terminates ancestor walks.
var tagParent = [...]Tag{
	TagBottom: TagBottom,
	TagNil:    TagAny,
	TagBool:   TagAny,
	TagInt:    TagNumber,
	TagFloat:  TagNumber,
	TagString: TagAny,
	TagSymbol: TagAny,
	TagNumber: TagAny,
	TagAny:    TagAny,
}

// String returns a human-readable name for a Tag.
func (t Tag) String() string {
	switch t {
	case TagBottom:
		return "⊥"
	case TagNil:
		return "nil"
	case TagBool:
		return "boolean"
	case TagInt:
		return "integer"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagSymbol:
		return "symbol"
	case TagNumber:
		return "number"
	case TagAny:
		return "any"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// SubtagOf reports whether t is equal to or below o in the lattice.
func (t Tag) SubtagOf(o Tag) bool {
	if t == TagBottom {
		return true
	}
	for cur := t; ; cur = tagParent[cur] {
		if cur == o {
			return true
		}
		if cur == TagAny {
			return o == TagAny
		}
	}
}

// Join returns the least upper bound of two tags.
func (t Tag) Join(o Tag) Tag {
	if t == TagBottom {
		return o
	}
	if o == TagBottom {
		return t
	}
	for cur := t; ; cur = tagParent[cur] {
		if o.SubtagOf(cur) {
			return cur
		}
		if cur == TagAny {
			return TagAny
		}
	}
}

// Meet returns the greatest lower bound of two tags.
func (t Tag) Meet(o Tag) Tag {
	if t.SubtagOf(o) {
		return t
	}
	if o.SubtagOf(t) {
		return o
	}
	return TagBottom
}

// RestrictionFlag records which machine representations of a value are
// currently available, so the generator can prefer an unboxed form when
// the consumer wants one.
type RestrictionFlag uint8

const (
	// Boxed indicates the value is available in an object register.
	Boxed RestrictionFlag = 1 << iota
	// UnboxedInt indicates the value is available in an int register.
	UnboxedInt
	// UnboxedFloat indicates the value is available in a float register.
	UnboxedFloat
)

// Restriction is statically proven information about a semantic value at
// a program point: an upper-bound type tag, optionally an exact constant,
// and the set of representations currently materialized. Restrictions
// are immutable; derivation methods return fresh values.
//
// Soundness rule: a restriction must never assert something false about
// the runtime value on any execution reaching its program point. All
// merge operations therefore widen.
type Restriction struct {
	Tag   Tag
	Const *Value
	Flags RestrictionFlag
}

// AnyRestriction places no constraint beyond "some boxed value".
func AnyRestriction() Restriction {
	return Restriction{Tag: TagAny, Flags: Boxed}
}

// ForTag returns a restriction to the given tag, boxed.
func ForTag(t Tag) Restriction {
	return Restriction{Tag: t, Flags: Boxed}
}

// ForConstant returns the strongest restriction for a known constant.
func ForConstant(v Value) Restriction {
	c := v
	return Restriction{Tag: v.Tag(), Const: &c, Flags: Boxed}
}

// IsConstant reports whether the restriction pins an exact value.
func (r Restriction) IsConstant() bool { return r.Const != nil }

// ConstantValue returns the pinned constant. Call only when IsConstant.
func (r Restriction) ConstantValue() Value { return *r.Const }

// WithFlags returns a copy with the representation flags replaced.
func (r Restriction) WithFlags(f RestrictionFlag) Restriction {
	r.Flags = f
	return r
}

// WithoutConstant returns a copy with the constant dropped, keeping the
// type bound. Used when widening at loop headers.
func (r Restriction) WithoutConstant() Restriction {
	r.Const = nil
	return r
}

// Union widens to cover both restrictions: tag join, constant kept only
// when both sides pin the same constant, flags intersected (a
// representation is only available if every path provides it).
func (r Restriction) Union(o Restriction) Restriction {
	out := Restriction{Tag: r.Tag.Join(o.Tag), Flags: r.Flags & o.Flags}
	if r.Const != nil && o.Const != nil && r.Const.Equal(*o.Const) {
		c := *r.Const
		out.Const = &c
	}
	return out
}

// Intersect narrows to what both restrictions guarantee: tag meet,
// constant kept from either side (they must agree if both present),
// flags unioned.
func (r Restriction) Intersect(o Restriction) Restriction {
	out := Restriction{Tag: r.Tag.Meet(o.Tag), Flags: r.Flags | o.Flags}
	switch {
	case r.Const != nil:
		c := *r.Const
		out.Const = &c
	case o.Const != nil:
		c := *o.Const
		out.Const = &c
	}
	return out
}

// Compatible reports whether the two restrictions can describe the same
// value on some execution (their tags are not disjoint).
func (r Restriction) Compatible(o Restriction) bool {
	return r.Tag.Meet(o.Tag) != TagBottom ||
		r.Tag == TagBottom || o.Tag == TagBottom
}

// Admits reports whether the concrete value v satisfies the restriction.
func (r Restriction) Admits(v Value) bool {
	if !v.Tag().SubtagOf(r.Tag) {
		return false
	}
	if r.Const != nil && !r.Const.Equal(v) {
		return false
	}
	return true
}

// String renders the restriction for diagnostics.
func (r Restriction) String() string {
	if r.Const != nil {
		return fmt.Sprintf("%s=%s", r.Tag, *r.Const)
	}
	return r.Tag.String()
}
