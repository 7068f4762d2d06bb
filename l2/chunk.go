package l2

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Chunk is the finalized artifact of one translation: a linear
// instruction stream, the register-file sizes it needs, the external
// values it is contingent on, and the offset at which execution resumes
// when the optional entry primitive fails. Chunks are immutable after
// creation; invalidation flips a flag and installs nothing in its place,
// so in-flight executions of the old chunk are unaffected.
type Chunk struct {
	Name         string
	Instructions []*Instruction

	ObjectRegisterCount int
	IntRegisterCount    int
	FloatRegisterCount  int

	// EntryOffsetAfterPrimitive is the instruction offset of the general
	// body, entered when the entry fast path fails; zero when the
	// function has no entry primitive.
	EntryOffsetAfterPrimitive int

	// ContingentValues names the externally redefinable facts (resolved
	// callees) this chunk's optimizations depend on.
	ContingentValues []string

	invalid atomic.Bool
}

// Valid reports whether the chunk may still be installed for new calls.
func (c *Chunk) Valid() bool { return !c.invalid.Load() }

// Invalidate marks the chunk stale. Callers already executing it are
// unaffected; the owning function simply stops dispatching to it.
func (c *Chunk) Invalidate() { c.invalid.Store(true) }

// HasOperation reports whether any instruction uses the given
// operation; tests use it to assert folding and threading outcomes.
func (c *Chunk) HasOperation(op Operation) bool {
	for _, in := range c.Instructions {
		if in.Op == op {
			return true
		}
	}
	return false
}

// Describe returns a human-readable listing of the chunk in the style
// of the level-one disassembler.
func (c *Chunk) Describe() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; === %s (L2) ===\n", c.Name))
	sb.WriteString(fmt.Sprintf("; registers: obj=%d int=%d float=%d\n",
		c.ObjectRegisterCount, c.IntRegisterCount, c.FloatRegisterCount))
	if c.EntryOffsetAfterPrimitive > 0 {
		sb.WriteString(fmt.Sprintf("; entry offset after primitive: %d\n", c.EntryOffsetAfterPrimitive))
	}
	if len(c.ContingentValues) > 0 {
		sb.WriteString(fmt.Sprintf("; contingent on: %s\n", strings.Join(c.ContingentValues, ", ")))
	}
	for i, in := range c.Instructions {
		sb.WriteString(fmt.Sprintf("%4d  %s\n", i, describeInstruction(in)))
	}
	return sb.String()
}

// describeInstruction renders an instruction with resolved PC offsets.
func describeInstruction(in *Instruction) string {
	if len(in.Operands) == 0 {
		return in.Op.String()
	}
	parts := make([]string, len(in.Operands))
	for i, op := range in.Operands {
		if pc, ok := op.(*PCOperand); ok && pc.Target != nil {
			parts[i] = fmt.Sprintf("->%d", pc.Target.Offset())
			continue
		}
		parts[i] = operandString(op)
	}
	return fmt.Sprintf("%s %s", in.Op, strings.Join(parts, ", "))
}
