package l2

import (
	"fmt"
	"strings"

	"github.com/stylpe/Avail-sub004/types"
)

// Operand is one argument of a level-two instruction. The set of
// operand shapes is closed; every cross-cutting pass (register
// counting, substitution, rendering, execution) switches over it
// exhaustively rather than dispatching through open interfaces.
type Operand interface {
	isOperand()
	kind() OperandKind
}

// ReadOperand reads a register, carrying the restriction proven for the
// value at this use.
type ReadOperand struct {
	Register    *Register
	Restriction types.Restriction
}

// WriteOperand defines a register. Executing the instruction produces
// exactly one new version of the register's value, described by the
// restriction.
type WriteOperand struct {
	Register    *Register
	Restriction types.Restriction
}

// ImmediateOperand holds a compile-time constant.
type ImmediateOperand struct {
	Value types.Value
}

// PCOperand is a control-flow edge to a target block, carrying the
// manifest snapshot valid along that path. The owning instruction is
// recorded when the instruction is added so the target can walk its
// incoming edges.
type PCOperand struct {
	Target   *BasicBlock
	Manifest *Manifest
	Source   *Instruction
}

// ReadVectorOperand aggregates an ordered list of reads, used for
// multi-argument calls without materializing a tuple.
type ReadVectorOperand struct {
	Elements []*ReadOperand
}

func (*ReadOperand) isOperand()       {}
func (*WriteOperand) isOperand()      {}
func (*ImmediateOperand) isOperand()  {}
func (*PCOperand) isOperand()         {}
func (*ReadVectorOperand) isOperand() {}

func (*ReadOperand) kind() OperandKind       { return KRead }
func (*WriteOperand) kind() OperandKind      { return KWrite }
func (*ImmediateOperand) kind() OperandKind  { return KImmediate }
func (*PCOperand) kind() OperandKind         { return KPC }
func (*ReadVectorOperand) kind() OperandKind { return KReadVector }

// Restrictions returns the element restrictions of the vector, used by
// return-type inference at call sites.
func (v *ReadVectorOperand) Restrictions() []types.Restriction {
	out := make([]types.Restriction, len(v.Elements))
	for i, e := range v.Elements {
		out[i] = e.Restriction
	}
	return out
}

// forEachRegister invokes f for every register the operand references,
// with isWrite true for defining references.
func forEachRegister(op Operand, f func(r *Register, isWrite bool)) {
	switch o := op.(type) {
	case *ReadOperand:
		f(o.Register, false)
	case *WriteOperand:
		f(o.Register, true)
	case *ReadVectorOperand:
		for _, e := range o.Elements {
			f(e.Register, false)
		}
	case *ImmediateOperand, *PCOperand:
		// no registers
	default:
		panic(fmt.Sprintf("l2: unknown operand %T", op))
	}
}

// substituteRegisters replaces registers in place per the remap table,
// returning how many references changed. Use-list maintenance is the
// caller's responsibility (see Instruction.ReplaceRegisters).
func substituteRegisters(op Operand, remap map[*Register]*Register) int {
	changed := 0
	switch o := op.(type) {
	case *ReadOperand:
		if repl, ok := remap[o.Register]; ok {
			o.Register = repl
			changed++
		}
	case *WriteOperand:
		if repl, ok := remap[o.Register]; ok {
			o.Register = repl
			changed++
		}
	case *ReadVectorOperand:
		for _, e := range o.Elements {
			if repl, ok := remap[e.Register]; ok {
				e.Register = repl
				changed++
			}
		}
	case *ImmediateOperand, *PCOperand:
		// no registers
	default:
		panic(fmt.Sprintf("l2: unknown operand %T", op))
	}
	return changed
}

// operandString renders an operand for diagnostics.
func operandString(op Operand) string {
	switch o := op.(type) {
	case *ReadOperand:
		return o.Register.String()
	case *WriteOperand:
		return fmt.Sprintf("%s:%s", o.Register, o.Restriction)
	case *ImmediateOperand:
		return o.Value.String()
	case *PCOperand:
		if o.Target == nil {
			return "->?"
		}
		return "->" + o.Target.Name
	case *ReadVectorOperand:
		parts := make([]string, len(o.Elements))
		for i, e := range o.Elements {
			parts[i] = e.Register.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		panic(fmt.Sprintf("l2: unknown operand %T", op))
	}
}
