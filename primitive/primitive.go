// Package primitive defines the registry of primitive operations the
// runtime exposes to compiled code. The registry is built once at init
// and never mutated afterwards, so concurrent code generators may read
// it without locking.
package primitive

import (
	"errors"
	"fmt"

	"github.com/stylpe/Avail-sub004/types"
)

// Flag describes optimizer-visible properties of a primitive.
type Flag uint16

const (
	// CannotFail marks primitives with no failure conditions; call sites
	// need no failure edge.
	CannotFail Flag = 1 << iota

	// CanFold allows the optimizer to evaluate the primitive at compile
	// time when every argument is a known constant.
	CanFold

	// CanInline allows the optimizer to replace the generic call with a
	// specialized instruction sequence.
	CanInline

	// HasSideEffect forbids removing the call even when its result is
	// unused.
	HasSideEffect

	// Invokes marks primitives that may call back into compiled code.
	Invokes

	// CanSuspend marks primitives that may suspend the running task.
	CanSuspend
)

// Has reports whether all the given flags are set.
func (f Flag) Has(set Flag) bool { return f&set == set }

// SpecialForm identifies the specialized level-two lowering a primitive
// opts into. The set is closed; the translator switches over it
// exhaustively.
type SpecialForm uint8

const (
	SpecialNone SpecialForm = iota
	SpecialIntAdd
	SpecialIntSub
	SpecialIntMul
	SpecialIntLess
	SpecialIntEq
	SpecialFloatAdd
)

// Failure is the error a primitive returns for one of its documented
// failure conditions. Generated code represents these as ordinary
// control-flow edges carrying the code, never as exceptions.
type Failure struct {
	Code int64
	Msg  string
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("primitive failure %d: %s", f.Code, f.Msg)
}

// IsFailure reports whether err is a documented primitive failure, as
// opposed to a programming error in the caller.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Failure codes shared by the numeric primitives.
const (
	FailDivisionByZero int64 = 1
	FailTypeMismatch   int64 = 2
)

// Primitive is the declared contract of one primitive operation.
type Primitive struct {
	Name  string
	Arity int
	Flags Flag

	// ArgTags and ResultTag form the primitive's static signature.
	ArgTags   []types.Tag
	ResultTag types.Tag

	// FailureCodes enumerates the codes Run may fail with; the optimizer
	// propagates them to the failure edge's restriction.
	FailureCodes []int64

	// Special selects the specialized lowering, SpecialNone for a
	// generic call.
	Special SpecialForm

	// Run executes the primitive. It must be a pure function of its
	// arguments unless HasSideEffect is set.
	Run func(args []types.Value) (types.Value, error)

	// InfallibleFor optionally proves failure impossible for particular
	// call-site restrictions (for example a divisor pinned to a nonzero
	// constant). It must only return true when no admitted argument
	// tuple can fail.
	InfallibleFor func(args []types.Restriction) bool

	// ReturnTypeGuaranteed optionally narrows the declared result type
	// given the argument restrictions at a call site. It must be
	// conservative: never stronger than what holds for every admitted
	// argument tuple.
	ReturnTypeGuaranteed func(args []types.Restriction) types.Restriction
}

// BlockTypeRestriction returns the primitive's declared result
// restriction, ignoring call-site information.
func (p *Primitive) BlockTypeRestriction() types.Restriction {
	return types.ForTag(p.ResultTag)
}

// ResultRestriction returns the strongest restriction the registry can
// prove for a call with the given argument restrictions.
func (p *Primitive) ResultRestriction(args []types.Restriction) types.Restriction {
	declared := p.BlockTypeRestriction()
	if p.ReturnTypeGuaranteed == nil {
		return declared
	}
	narrowed := p.ReturnTypeGuaranteed(args)
	// A narrowing hook may not widen past the declaration.
	return narrowed.Intersect(declared)
}

// ArgsSatisfySignature reports whether every argument restriction
// provably lies within the primitive's declared argument types.
func (p *Primitive) ArgsSatisfySignature(args []types.Restriction) bool {
	if len(args) != p.Arity {
		return false
	}
	for i, r := range args {
		if !r.Tag.SubtagOf(p.ArgTags[i]) {
			return false
		}
	}
	return true
}

// CanFailFor reports whether a call with the given argument
// restrictions can reach any failure condition. The optimizer routes
// the failure edge to unreachable code when this returns false.
func (p *Primitive) CanFailFor(args []types.Restriction) bool {
	if p.Flags.Has(CannotFail) {
		return false
	}
	if p.InfallibleFor != nil && p.InfallibleFor(args) {
		return false
	}
	// A primitive whose only documented failure is a type mismatch
	// cannot fail once the argument types are proven.
	if p.ArgsSatisfySignature(args) {
		onlyMismatch := true
		for _, code := range p.FailureCodes {
			if code != FailTypeMismatch {
				onlyMismatch = false
				break
			}
		}
		if onlyMismatch && len(p.FailureCodes) > 0 {
			return false
		}
	}
	return true
}

// Fold attempts compile-time evaluation. It succeeds only for foldable
// primitives whose arguments are all pinned constants and whose
// execution does not fail.
func (p *Primitive) Fold(args []types.Restriction) (types.Value, bool) {
	if !p.Flags.Has(CanFold) || len(args) != p.Arity {
		return types.Value{}, false
	}
	values := make([]types.Value, len(args))
	for i, r := range args {
		if !r.IsConstant() {
			return types.Value{}, false
		}
		values[i] = r.ConstantValue()
	}
	result, err := p.Run(values)
	if err != nil {
		return types.Value{}, false
	}
	return result, true
}
