package l2

import (
	"fmt"

	"github.com/stylpe/Avail-sub004/primitive"
	"github.com/stylpe/Avail-sub004/types"
)

// execState holds the three register files of one chunk activation.
type execState struct {
	obj    []types.Value
	ints   []int64
	floats []float64
}

// Run executes the chunk from its entry. Arguments and outers are the
// activation's inputs; the returned error is either a primitive failure
// surfaced by a FAIL instruction or an internal fault.
func (c *Chunk) Run(args, outers []types.Value) (types.Value, error) {
	st := &execState{
		obj:    make([]types.Value, c.ObjectRegisterCount),
		ints:   make([]int64, c.IntRegisterCount),
		floats: make([]float64, c.FloatRegisterCount),
	}
	ip := 0
	for {
		if ip < 0 || ip >= len(c.Instructions) {
			return types.Nil(), fmt.Errorf("l2: instruction pointer %d out of range in %s", ip, c.Name)
		}
		in := c.Instructions[ip]
		switch in.Op {
		case L2MoveConstant:
			v := in.Operands[0].(*ImmediateOperand).Value
			st.writeBoxed(in.Operands[1], v)
			ip++

		case L2Move:
			src := in.Operands[0].(*ReadOperand)
			dst := in.Operands[1].(*WriteOperand)
			switch dst.Register.Kind {
			case KindBoxed:
				st.obj[dst.Register.FinalIndex] = st.obj[src.Register.FinalIndex]
			case KindInt:
				st.ints[dst.Register.FinalIndex] = st.ints[src.Register.FinalIndex]
			case KindFloat:
				st.floats[dst.Register.FinalIndex] = st.floats[src.Register.FinalIndex]
			}
			ip++

		case L2GetArgument:
			i := in.Operands[0].(*ImmediateOperand).Value.I
			if int(i) >= len(args) {
				return types.Nil(), fmt.Errorf("l2: argument %d missing in %s", i, c.Name)
			}
			st.writeBoxed(in.Operands[1], args[i])
			ip++

		case L2GetOuter:
			i := in.Operands[0].(*ImmediateOperand).Value.I
			if int(i) >= len(outers) {
				return types.Nil(), fmt.Errorf("l2: outer %d missing in %s", i, c.Name)
			}
			st.writeBoxed(in.Operands[1], outers[i])
			ip++

		case L2Box:
			src := in.Operands[0].(*ReadOperand)
			var v types.Value
			switch src.Register.Kind {
			case KindInt:
				v = types.Int(st.ints[src.Register.FinalIndex])
			case KindFloat:
				v = types.Float(st.floats[src.Register.FinalIndex])
			default:
				return types.Nil(), fmt.Errorf("l2: BOX reads boxed register in %s", c.Name)
			}
			st.writeBoxed(in.Operands[1], v)
			ip++

		case L2Unbox:
			v := st.readBoxed(in.Operands[0])
			dst := in.Operands[1].(*WriteOperand)
			switch dst.Register.Kind {
			case KindInt:
				if v.Kind != types.KindInt {
					return types.Nil(), fmt.Errorf("l2: UNBOX of %s to int register in %s", v.Kind, c.Name)
				}
				st.ints[dst.Register.FinalIndex] = v.I
			case KindFloat:
				if v.Kind != types.KindFloat {
					return types.Nil(), fmt.Errorf("l2: UNBOX of %s to float register in %s", v.Kind, c.Name)
				}
				st.floats[dst.Register.FinalIndex] = v.F
			default:
				return types.Nil(), fmt.Errorf("l2: UNBOX writes boxed register in %s", c.Name)
			}
			ip++

		case L2IntAdd:
			st.intBinary(in, func(a, b int64) int64 { return a + b })
			ip++
		case L2IntSub:
			st.intBinary(in, func(a, b int64) int64 { return a - b })
			ip++
		case L2IntMul:
			st.intBinary(in, func(a, b int64) int64 { return a * b })
			ip++

		case L2IntLess:
			a, b := st.intOperands(in)
			st.writeBoxed(in.Operands[2], types.Bool(a < b))
			ip++
		case L2IntEq:
			a, b := st.intOperands(in)
			st.writeBoxed(in.Operands[2], types.Bool(a == b))
			ip++

		case L2FloatAdd:
			a := st.floats[in.Operands[0].(*ReadOperand).Register.FinalIndex]
			b := st.floats[in.Operands[1].(*ReadOperand).Register.FinalIndex]
			st.floats[in.Operands[2].(*WriteOperand).Register.FinalIndex] = a + b
			ip++

		case L2RunInfallible:
			result, err := st.runPrimitive(in)
			if err != nil {
				return types.Nil(), fmt.Errorf("l2: infallible primitive failed in %s: %w", c.Name, err)
			}
			st.writeBoxed(in.Operands[2], result)
			ip++

		case L2CallPrimitive:
			result, err := st.runPrimitive(in)
			if err == nil {
				st.writeBoxed(in.Operands[2], result)
				ip = in.Operands[4].(*PCOperand).Target.Offset()
				break
			}
			var failure *primitive.Failure
			if f, ok := err.(*primitive.Failure); ok {
				failure = f
			} else {
				return types.Nil(), err
			}
			failDst := in.Operands[3].(*WriteOperand)
			st.ints[failDst.Register.FinalIndex] = failure.Code
			ip = in.Operands[5].(*PCOperand).Target.Offset()

		case L2TryPrimitive:
			result, err := st.runPrimitive(in)
			if err == nil {
				return result, nil
			}
			if !primitive.IsFailure(err) {
				return types.Nil(), err
			}
			ip = in.Operands[3].(*PCOperand).Target.Offset()

		case L2Jump:
			ip = in.Operands[0].(*PCOperand).Target.Offset()

		case L2JumpIfTrue:
			v := st.readBoxed(in.Operands[0])
			if v.Truthy() {
				ip = in.Operands[1].(*PCOperand).Target.Offset()
			} else {
				ip = in.Operands[2].(*PCOperand).Target.Offset()
			}

		case L2JumpIfNil:
			v := st.readBoxed(in.Operands[0])
			if v.IsNil() {
				ip = in.Operands[1].(*PCOperand).Target.Offset()
			} else {
				ip = in.Operands[2].(*PCOperand).Target.Offset()
			}

		case L2Return:
			return st.readBoxed(in.Operands[0]), nil

		case L2Fail:
			code := st.ints[in.Operands[0].(*ReadOperand).Register.FinalIndex]
			return types.Nil(), &primitive.Failure{Code: code, Msg: "primitive failure"}

		case L2Phi:
			return types.Nil(), fmt.Errorf("l2: PHI survived lowering in %s", c.Name)

		case L2Unreachable:
			return types.Nil(), fmt.Errorf("l2: reached unreachable code in %s", c.Name)

		default:
			return types.Nil(), fmt.Errorf("l2: unknown operation %s in %s", in.Op, c.Name)
		}
	}
}

// readBoxed fetches the value of a boxed read operand.
func (st *execState) readBoxed(op Operand) types.Value {
	return st.obj[op.(*ReadOperand).Register.FinalIndex]
}

// writeBoxed stores into a boxed write operand.
func (st *execState) writeBoxed(op Operand, v types.Value) {
	st.obj[op.(*WriteOperand).Register.FinalIndex] = v
}

// intOperands fetches the two integer reads of a binary instruction.
func (st *execState) intOperands(in *Instruction) (int64, int64) {
	a := st.ints[in.Operands[0].(*ReadOperand).Register.FinalIndex]
	b := st.ints[in.Operands[1].(*ReadOperand).Register.FinalIndex]
	return a, b
}

// intBinary executes a two-integer instruction writing an integer.
func (st *execState) intBinary(in *Instruction, f func(a, b int64) int64) {
	a, b := st.intOperands(in)
	st.ints[in.Operands[2].(*WriteOperand).Register.FinalIndex] = f(a, b)
}

// runPrimitive resolves and runs the primitive named by a call
// instruction's first two operands (symbol, argument vector).
func (st *execState) runPrimitive(in *Instruction) (types.Value, error) {
	name := in.Operands[0].(*ImmediateOperand).Value.S
	prim, ok := primitive.Lookup(name)
	if !ok {
		return types.Nil(), fmt.Errorf("l2: unknown primitive %q", name)
	}
	vector := in.Operands[1].(*ReadVectorOperand)
	args := make([]types.Value, len(vector.Elements))
	for i, el := range vector.Elements {
		args[i] = st.obj[el.Register.FinalIndex]
	}
	return prim.Run(args)
}
