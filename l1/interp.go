package l1

import (
	"fmt"

	"github.com/stylpe/Avail-sub004/nybble"
	"github.com/stylpe/Avail-sub004/primitive"
	"github.com/stylpe/Avail-sub004/types"
)

// Invoke runs a function in the unoptimized tier: a direct nybblecode
// interpretation over tagged values. It is the fallback used before a
// function is optimized and after its chunk is invalidated.
func Invoke(fn *Function, args []types.Value, outers []types.Value) (types.Value, error) {
	if len(args) != fn.NumArgs {
		return types.Nil(), fmt.Errorf("l1: %s expects %d arguments, got %d",
			fn.Name, fn.NumArgs, len(args))
	}
	if len(outers) != fn.NumOuters {
		return types.Nil(), fmt.Errorf("l1: %s expects %d outers, got %d",
			fn.Name, fn.NumOuters, len(outers))
	}

	// Optional fast path: attempt the entry primitive on the raw
	// arguments. Failure falls through to the general body.
	if fn.EntryPrimitive != "" {
		prim, ok := primitive.Lookup(fn.EntryPrimitive)
		if !ok {
			return types.Nil(), fmt.Errorf("l1: %s names unknown entry primitive %q",
				fn.Name, fn.EntryPrimitive)
		}
		result, err := prim.Run(args)
		if err == nil {
			return result, nil
		}
		if !primitive.IsFailure(err) {
			return types.Nil(), err
		}
	}

	locals := make([]types.Value, fn.NumLocals)
	var stack []types.Value
	push := func(v types.Value) { stack = append(stack, v) }
	pop := func() types.Value {
		if len(stack) == 0 {
			panic("l1: value stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	r := nybble.NewReader(fn.Codes, fn.NumCodes)
	for !r.AtEnd() {
		op := readOpcode(r)
		switch op {
		case OpCall:
			lit := fn.Literal(int(r.ReadInt()))
			nargs := int(r.ReadInt())
			if lit.Kind != types.KindSymbol {
				return types.Nil(), fmt.Errorf("l1: call literal %s is not a symbol", lit)
			}
			prim, ok := primitive.Lookup(lit.S)
			if !ok {
				return types.Nil(), fmt.Errorf("l1: call to unknown primitive %q", lit.S)
			}
			if prim.Arity != nargs {
				return types.Nil(), fmt.Errorf("l1: %q expects %d arguments, call site passes %d",
					lit.S, prim.Arity, nargs)
			}
			callArgs := make([]types.Value, nargs)
			for i := nargs - 1; i >= 0; i-- {
				callArgs[i] = pop()
			}
			result, err := prim.Run(callArgs)
			if err != nil {
				return types.Nil(), err
			}
			push(result)

		case OpPushLiteral:
			push(fn.Literal(int(r.ReadInt())))

		case OpPushLocal:
			push(locals[r.ReadInt()])

		case OpSetLocal:
			locals[r.ReadInt()] = pop()

		case OpPushArgument:
			push(args[r.ReadInt()])

		case OpPushOuter:
			push(outers[r.ReadInt()])

		case OpPop:
			pop()

		case OpDup:
			v := pop()
			push(v)
			push(v)

		case OpJump:
			r.SetPos(int(r.ReadInt()))

		case OpBranchIfTrue:
			target := int(r.ReadInt())
			if pop().Truthy() {
				r.SetPos(target)
			}

		case OpBranchIfFalse:
			target := int(r.ReadInt())
			if !pop().Truthy() {
				r.SetPos(target)
			}

		case OpBranchIfNil:
			target := int(r.ReadInt())
			if pop().IsNil() {
				r.SetPos(target)
			}

		case OpReturn:
			return pop(), nil

		case OpReturnNil:
			return types.Nil(), nil

		default:
			return types.Nil(), fmt.Errorf("l1: unknown opcode %d at %d", byte(op), r.Pos())
		}
	}
	return types.Nil(), fmt.Errorf("l1: %s fell off the end of its code", fn.Name)
}
