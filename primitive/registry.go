package primitive

import (
	"fmt"

	"github.com/stylpe/Avail-sub004/types"
)

// registry is the process-wide primitive table, keyed by name. It is
// populated during init and read-only afterwards.
var registry = map[string]*Primitive{}

// Lookup returns the primitive with the given name.
func Lookup(name string) (*Primitive, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names returns all registered primitive names; used by diagnostics and
// tests.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// register installs a primitive. Duplicate names are a startup fault.
func register(p *Primitive) {
	if _, ok := registry[p.Name]; ok {
		panic(fmt.Sprintf("primitive: %q registered twice", p.Name))
	}
	if len(p.ArgTags) != p.Arity {
		panic(fmt.Sprintf("primitive: %q signature arity mismatch", p.Name))
	}
	registry[p.Name] = p
}

// wantInt extracts an integer argument or reports a type-mismatch
// failure.
func wantInt(v types.Value) (int64, error) {
	if v.Kind != types.KindInt {
		return 0, &Failure{Code: FailTypeMismatch, Msg: fmt.Sprintf("expected integer, got %s", v.Kind)}
	}
	return v.I, nil
}

// wantFloat extracts a float argument or reports a type-mismatch
// failure.
func wantFloat(v types.Value) (float64, error) {
	if v.Kind != types.KindFloat {
		return 0, &Failure{Code: FailTypeMismatch, Msg: fmt.Sprintf("expected float, got %s", v.Kind)}
	}
	return v.F, nil
}

// intBinary builds the Run function for a two-integer primitive.
func intBinary(f func(a, b int64) (types.Value, error)) func([]types.Value) (types.Value, error) {
	return func(args []types.Value) (types.Value, error) {
		a, err := wantInt(args[0])
		if err != nil {
			return types.Nil(), err
		}
		b, err := wantInt(args[1])
		if err != nil {
			return types.Nil(), err
		}
		return f(a, b)
	}
}

func init() {
	intInt := []types.Tag{types.TagInt, types.TagInt}

	// The arithmetic primitives fail only on argument type mismatches;
	// the flag set deliberately omits CannotFail so that an unproven call
	// site keeps a reachable failure edge and both tiers surface the same
	// failure. Proven call sites are recognized through the signature.
	register(&Primitive{
		Name: "int+", Arity: 2,
		Flags:        CanFold | CanInline,
		ArgTags:      intInt,
		ResultTag:    types.TagInt,
		FailureCodes: []int64{FailTypeMismatch},
		Special:      SpecialIntAdd,
		Run: intBinary(func(a, b int64) (types.Value, error) {
			return types.Int(a + b), nil
		}),
	})

	register(&Primitive{
		Name: "int-", Arity: 2,
		Flags:        CanFold | CanInline,
		ArgTags:      intInt,
		ResultTag:    types.TagInt,
		FailureCodes: []int64{FailTypeMismatch},
		Special:      SpecialIntSub,
		Run: intBinary(func(a, b int64) (types.Value, error) {
			return types.Int(a - b), nil
		}),
	})

	register(&Primitive{
		Name: "int*", Arity: 2,
		Flags:        CanFold | CanInline,
		ArgTags:      intInt,
		ResultTag:    types.TagInt,
		FailureCodes: []int64{FailTypeMismatch},
		Special:      SpecialIntMul,
		Run: intBinary(func(a, b int64) (types.Value, error) {
			return types.Int(a * b), nil
		}),
	})

	register(&Primitive{
		Name: "int/", Arity: 2,
		Flags:        CanFold | CanInline,
		ArgTags:      intInt,
		ResultTag:    types.TagInt,
		FailureCodes: []int64{FailDivisionByZero, FailTypeMismatch},
		// A divisor pinned to a nonzero integer constant cannot trip the
		// division-by-zero condition.
		InfallibleFor: func(args []types.Restriction) bool {
			if len(args) != 2 || !args[1].IsConstant() {
				return false
			}
			d := args[1].ConstantValue()
			return d.Kind == types.KindInt && d.I != 0 &&
				args[0].Tag.SubtagOf(types.TagInt)
		},
		Run: intBinary(func(a, b int64) (types.Value, error) {
			if b == 0 {
				return types.Nil(), &Failure{Code: FailDivisionByZero, Msg: "division by zero"}
			}
			return types.Int(a / b), nil
		}),
	})

	register(&Primitive{
		Name: "int<", Arity: 2,
		Flags:        CanFold | CanInline,
		ArgTags:      intInt,
		ResultTag:    types.TagBool,
		FailureCodes: []int64{FailTypeMismatch},
		Special:      SpecialIntLess,
		Run: intBinary(func(a, b int64) (types.Value, error) {
			return types.Bool(a < b), nil
		}),
	})

	register(&Primitive{
		Name: "int=", Arity: 2,
		Flags:        CanFold | CanInline,
		ArgTags:      intInt,
		ResultTag:    types.TagBool,
		FailureCodes: []int64{FailTypeMismatch},
		Special:      SpecialIntEq,
		Run: intBinary(func(a, b int64) (types.Value, error) {
			return types.Bool(a == b), nil
		}),
		// Disjoint argument types can never compare equal, even when
		// neither side is a known constant.
		ReturnTypeGuaranteed: func(args []types.Restriction) types.Restriction {
			if len(args) == 2 && args[0].Tag.Meet(args[1].Tag) == types.TagBottom {
				return types.ForConstant(types.Bool(false))
			}
			return types.ForTag(types.TagBool)
		},
	})

	register(&Primitive{
		Name: "float+", Arity: 2,
		Flags:        CanFold | CanInline,
		ArgTags:      []types.Tag{types.TagFloat, types.TagFloat},
		ResultTag:    types.TagFloat,
		FailureCodes: []int64{FailTypeMismatch},
		Special:      SpecialFloatAdd,
		Run: func(args []types.Value) (types.Value, error) {
			a, err := wantFloat(args[0])
			if err != nil {
				return types.Nil(), err
			}
			b, err := wantFloat(args[1])
			if err != nil {
				return types.Nil(), err
			}
			return types.Float(a + b), nil
		},
	})

	register(&Primitive{
		Name: "not", Arity: 1,
		Flags:        CanFold,
		ArgTags:      []types.Tag{types.TagBool},
		ResultTag:    types.TagBool,
		FailureCodes: []int64{FailTypeMismatch},
		Run: func(args []types.Value) (types.Value, error) {
			if args[0].Kind != types.KindBool {
				return types.Nil(), &Failure{Code: FailTypeMismatch, Msg: "expected boolean"}
			}
			return types.Bool(!args[0].B), nil
		},
	})

	// yield cooperates with the task scheduler; the optimizer must treat
	// the call as a suspension point and never remove or reorder it.
	register(&Primitive{
		Name: "yield", Arity: 0,
		Flags:     CannotFail | HasSideEffect | CanSuspend,
		ResultTag: types.TagNil,
		Run: func(args []types.Value) (types.Value, error) {
			return types.Nil(), nil
		},
	})
}
