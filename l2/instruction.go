package l2

import (
	"fmt"
	"strings"
)

// Instruction is one level-two operation together with operands matching
// the operation's declared signature. An instruction belongs to exactly
// one basic block and records that ownership for removal and
// replacement.
type Instruction struct {
	ID       int
	Op       Operation
	Operands []Operand

	block *BasicBlock
}

// newInstruction validates operands against the operation signature.
// A mismatch is a generator-internal fault and panics; translation of
// the offending function is abandoned at the Translate boundary.
func newInstruction(id int, op Operation, operands ...Operand) *Instruction {
	sig := op.Info().Signature
	if len(operands) != len(sig) {
		panic(fmt.Sprintf("l2: %s expects %d operands, got %d", op, len(sig), len(operands)))
	}
	for i, o := range operands {
		if o.kind() != sig[i] {
			panic(fmt.Sprintf("l2: %s operand %d has kind %d, want %d", op, i, o.kind(), sig[i]))
		}
	}
	return &Instruction{ID: id, Op: op, Operands: operands}
}

// Block returns the basic block owning the instruction, nil before it is
// added.
func (in *Instruction) Block() *BasicBlock { return in.block }

// instructionWasAdded records the instruction's register references on
// their use-lists, stamps PC operands with their source, and attaches
// outgoing edges to their target blocks.
func (in *Instruction) instructionWasAdded(b *BasicBlock) {
	in.block = b
	for _, op := range in.Operands {
		forEachRegister(op, func(r *Register, _ bool) {
			r.addUse(in.ID)
		})
		if pc, ok := op.(*PCOperand); ok {
			pc.Source = in
			if pc.Target != nil {
				pc.Target.addPredecessor(pc)
			}
		}
	}
}

// instructionWasRemoved deregisters the instruction's references and
// detaches its outgoing edges from their targets.
func (in *Instruction) instructionWasRemoved() {
	for _, op := range in.Operands {
		forEachRegister(op, func(r *Register, _ bool) {
			r.removeUse(in.ID)
		})
		if pc, ok := op.(*PCOperand); ok && pc.Target != nil {
			pc.Target.removePredecessor(pc)
		}
	}
	in.block = nil
}

// ReplaceRegisters swaps stale registers for their replacements in every
// operand, keeping use-lists consistent: the old register loses this
// instruction, the new one gains it. The whole remapping of one
// instruction is applied before any use-list is touched, so a pass over
// an instruction list never observes a half-updated instruction.
func (in *Instruction) ReplaceRegisters(remap map[*Register]*Register) {
	changed := 0
	for _, op := range in.Operands {
		changed += substituteRegisters(op, remap)
	}
	if changed == 0 {
		return
	}
	for old, repl := range remap {
		old.removeUse(in.ID)
		repl.addUse(in.ID)
	}
}

// Targets returns the blocks this instruction branches to, in operand
// order.
func (in *Instruction) Targets() []*BasicBlock {
	var out []*BasicBlock
	for _, op := range in.Operands {
		if pc, ok := op.(*PCOperand); ok {
			out = append(out, pc.Target)
		}
	}
	return out
}

// WritesTo reports whether the instruction defines the given register.
func (in *Instruction) WritesTo(r *Register) bool {
	for _, op := range in.Operands {
		if w, ok := op.(*WriteOperand); ok && w.Register == r {
			return true
		}
	}
	return false
}

// String renders the instruction for diagnostics.
func (in *Instruction) String() string {
	if len(in.Operands) == 0 {
		return in.Op.String()
	}
	parts := make([]string, len(in.Operands))
	for i, op := range in.Operands {
		parts[i] = operandString(op)
	}
	return fmt.Sprintf("%s %s", in.Op, strings.Join(parts, ", "))
}
