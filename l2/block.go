package l2

import "fmt"

// BasicBlock is an ordered instruction list with incoming control-flow
// edges. Only the last instruction of a block may alter control; all
// earlier instructions fall through. A removable block that never gains
// a predecessor is dead and is excluded from the final chunk without a
// separate elimination pass.
type BasicBlock struct {
	Name         string
	Instructions []*Instruction

	// predecessors are the incoming PC operands, in arrival order. Phi
	// reads in this block correspond positionally to this order.
	predecessors []*PCOperand

	// removable blocks with no predecessors are dead by construction.
	removable bool

	// mayThread permits single-predecessor jump threading. Loop headers
	// forbid it: a threaded-away block cannot receive its back edge.
	mayThread bool

	// loopHead marks blocks that will receive back edges after they are
	// generated; their entry manifests are widened accordingly.
	loopHead bool

	started  bool
	threaded bool

	// offset is the block's first instruction index in the serialized
	// chunk, assigned during generateOn.
	offset int

	// phis are this block's merge pseudo-instructions, kept separately
	// from Instructions until lowering.
	phis []*Instruction
}

// addPredecessor records an incoming edge.
func (b *BasicBlock) addPredecessor(pc *PCOperand) {
	b.predecessors = append(b.predecessors, pc)
}

// removePredecessor erases an incoming edge (jump retraction, dead-edge
// cleanup).
func (b *BasicBlock) removePredecessor(pc *PCOperand) {
	for i, p := range b.predecessors {
		if p == pc {
			b.predecessors = append(b.predecessors[:i], b.predecessors[i+1:]...)
			return
		}
	}
}

// PredecessorCount returns the number of incoming edges.
func (b *BasicBlock) PredecessorCount() int { return len(b.predecessors) }

// Offset returns the block's instruction offset in the finished chunk.
func (b *BasicBlock) Offset() int { return b.offset }

// terminal returns the block's last instruction, or nil while the block
// is still open.
func (b *BasicBlock) terminal() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if !last.Op.Info().AltersControl {
		return nil
	}
	return last
}

// isClosed reports whether the block already ends in a control-altering
// instruction.
func (b *BasicBlock) isClosed() bool { return b.terminal() != nil }

// String renders the block header for diagnostics.
func (b *BasicBlock) String() string {
	return fmt.Sprintf("[%s preds=%d insts=%d]", b.Name, len(b.predecessors), len(b.Instructions))
}
