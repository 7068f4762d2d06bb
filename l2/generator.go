package l2

import (
	"fmt"
	"sort"

	"github.com/stylpe/Avail-sub004/types"
)

// Generator owns all state of one translation: the instruction arena,
// the registers and blocks it creates, the current block, and the live
// manifest. A generator is used by exactly one goroutine and runs to
// completion; nothing is shared between concurrent generations except
// the read-only primitive registry.
type Generator struct {
	name string

	arena   []*Instruction
	removed map[int]bool

	registers []*Register
	blocks    []*BasicBlock
	order     []*BasicBlock // layout order (started blocks)

	entry       *BasicBlock
	current     *BasicBlock
	manifest    *Manifest
	unreachable *BasicBlock

	// afterPrimitive is the block where execution resumes when the entry
	// fast path fails; nil for functions without one.
	afterPrimitive *BasicBlock

	contingent map[string]struct{}

	tempID  int
	constID int
}

// NewGenerator creates a generator with a started entry block.
func NewGenerator(name string) *Generator {
	g := &Generator{
		name:       name,
		removed:    make(map[int]bool),
		manifest:   NewManifest(),
		contingent: make(map[string]struct{}),
	}
	g.entry = g.CreateBasicBlock("entry")
	g.entry.removable = false
	g.entry.started = true
	g.order = append(g.order, g.entry)
	g.current = g.entry
	return g
}

// Manifest returns the live manifest at the current generation point.
func (g *Generator) Manifest() *Manifest { return g.manifest }

// CurrentlyReachable reports whether emitted code can execute; it is
// false after a return or an unconditional jump until the next block
// starts.
func (g *Generator) CurrentlyReachable() bool { return g.current != nil }

// NewRegister creates a fresh, unallocated register of the given class.
func (g *Generator) NewRegister(kind RegisterKind) *Register {
	r := &Register{Kind: kind, FinalIndex: -1, id: len(g.registers)}
	g.registers = append(g.registers, r)
	return r
}

// NextTemp returns a fresh optimizer temporary identity.
func (g *Generator) NextTemp() SemanticValue {
	g.tempID++
	return TempValue(0, g.tempID)
}

// NextConstant returns a fresh constant identity; the translator interns
// equal constants onto one identity itself.
func (g *Generator) NextConstant() SemanticValue {
	g.constID++
	return ConstantValue(0, g.constID)
}

// NoteContingency records an external fact the finished chunk depends
// on, by name.
func (g *Generator) NoteContingency(name string) {
	g.contingent[name] = struct{}{}
}

// CreateBasicBlock creates an unattached, removable block. It produces
// no code until started.
func (g *Generator) CreateBasicBlock(name string) *BasicBlock {
	b := &BasicBlock{Name: name, removable: true, mayThread: true}
	g.blocks = append(g.blocks, b)
	return b
}

// CreateLoopHeadBlock creates a block that will receive back edges. It
// is never jump-threaded away and widens its entry manifest, since its
// back edges arrive only after it has been generated.
func (g *Generator) CreateLoopHeadBlock(name string) *BasicBlock {
	b := g.CreateBasicBlock(name)
	b.mayThread = false
	b.loopHead = true
	return b
}

// StartBlock begins generating into b and returns whether any code can
// reach it. Dead removable blocks are never started. A block with
// exactly one predecessor whose source is an unconditional jump is
// threaded: the jump is retracted and generation continues appended to
// the predecessor, carrying that edge's manifest forward.
func (g *Generator) StartBlock(b *BasicBlock) bool {
	if b.started || b.threaded {
		panic(fmt.Sprintf("l2: block %q started twice", b.Name))
	}
	if len(b.predecessors) == 0 {
		if !b.removable {
			panic(fmt.Sprintf("l2: unreachable non-removable block %q", b.Name))
		}
		g.current = nil
		return false
	}

	if b.mayThread && len(b.predecessors) == 1 {
		edge := b.predecessors[0]
		src := edge.Source
		if src != nil && src.Op == L2Jump && src.block.terminal() == src {
			pred := src.block
			g.removeInstruction(src)
			b.threaded = true
			g.current = pred
			g.manifest = edge.Manifest.Clone()
			return true
		}
	}

	b.started = true
	g.order = append(g.order, b)
	g.current = b
	g.manifest = NewManifest()
	g.manifest.PopulateFromIntersection(b.predecessors, g, b.loopHead)
	return true
}

// AddInstruction validates, creates and appends an instruction to the
// current block. Emitting with no open block, or past a block's
// control-altering terminal, is a generator-internal fault.
func (g *Generator) AddInstruction(op Operation, operands ...Operand) *Instruction {
	if g.current == nil {
		panic(fmt.Sprintf("l2: emitting %s with no open block", op))
	}
	if g.current.isClosed() {
		panic(fmt.Sprintf("l2: emitting %s past terminal of %q", op, g.current.Name))
	}
	in := newInstruction(len(g.arena), op, operands...)
	g.arena = append(g.arena, in)
	in.instructionWasAdded(g.current)
	g.current.Instructions = append(g.current.Instructions, in)
	if op.Info().AltersControl {
		g.current = nil
	}
	return in
}

// EdgeTo builds a control-flow edge to target carrying a snapshot of the
// current manifest. Callers may narrow the snapshot before the owning
// instruction is emitted.
func (g *Generator) EdgeTo(target *BasicBlock) *PCOperand {
	return &PCOperand{Target: target, Manifest: g.manifest.Clone()}
}

// JumpTo ends the current block with an unconditional jump.
func (g *Generator) JumpTo(target *BasicBlock) {
	g.AddInstruction(L2Jump, g.EdgeTo(target))
}

// UnreachableBlock returns the single block used as the target of edges
// that are provably never taken, creating it on first use. It holds one
// UNREACHABLE instruction; reaching it at run time is a fault.
func (g *Generator) UnreachableBlock() *BasicBlock {
	if g.unreachable == nil {
		b := g.CreateBasicBlock("unreachable")
		b.mayThread = false
		in := newInstruction(len(g.arena), L2Unreachable)
		g.arena = append(g.arena, in)
		in.instructionWasAdded(b)
		b.Instructions = append(b.Instructions, in)
		b.started = true
		g.order = append(g.order, b)
		g.unreachable = b
	}
	return g.unreachable
}

// AddUnreachableCode gives dead instructions that still syntactically
// need a successor a valid but never-taken target.
func (g *Generator) AddUnreachableCode() *PCOperand {
	return &PCOperand{Target: g.UnreachableBlock(), Manifest: NewManifest()}
}

// MarkAfterPrimitive records the block where execution resumes when the
// entry fast path fails.
func (g *Generator) MarkAfterPrimitive(b *BasicBlock) {
	g.afterPrimitive = b
}

// emitPhi appends a merge pseudo-instruction to the current block. The
// sources correspond positionally to the block's predecessor edges; the
// returned destination register carries the merged value.
func (g *Generator) emitPhi(kind RegisterKind, sources []*Register, restriction types.Restriction) *Register {
	dest := g.NewRegister(kind)
	elements := make([]*ReadOperand, len(sources))
	for i, src := range sources {
		elements[i] = &ReadOperand{Register: src, Restriction: restriction}
	}
	in := newInstruction(len(g.arena), L2Phi,
		&ReadVectorOperand{Elements: elements},
		&WriteOperand{Register: dest, Restriction: restriction})
	g.arena = append(g.arena, in)
	in.instructionWasAdded(g.current)
	g.current.phis = append(g.current.phis, in)
	return dest
}

// removeInstruction detaches an instruction from its block, its
// registers and its targets.
func (g *Generator) removeInstruction(in *Instruction) {
	b := in.block
	for i, have := range b.Instructions {
		if have == in {
			b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
			break
		}
	}
	in.instructionWasRemoved()
	g.removed[in.ID] = true
}

// CheckUseConsistency verifies that register use-lists and instruction
// operands agree. Tests run it after generation to catch stale entries.
func (g *Generator) CheckUseConsistency() error {
	live := make(map[int]*Instruction)
	for _, in := range g.arena {
		if !g.removed[in.ID] {
			live[in.ID] = in
		}
	}
	for _, in := range live {
		err := fmt.Errorf("instruction %d (%s) missing from a use-list", in.ID, in.Op)
		ok := true
		for _, op := range in.Operands {
			forEachRegister(op, func(r *Register, _ bool) {
				if _, has := r.uses[in.ID]; !has {
					ok = false
				}
			})
		}
		if !ok {
			return err
		}
	}
	for _, r := range g.registers {
		for id := range r.uses {
			in, ok := live[id]
			if !ok {
				return fmt.Errorf("register %s lists removed instruction %d", r, id)
			}
			found := false
			for _, op := range in.Operands {
				forEachRegister(op, func(have *Register, _ bool) {
					if have == r {
						found = true
					}
				})
			}
			if !found {
				return fmt.Errorf("register %s lists instruction %d which does not use it", r, id)
			}
		}
	}
	return nil
}

// CreateChunk lowers phis to edge moves, serializes the CFG in layout
// order with fallthrough jumps elided, colors registers, runs the
// counting pass and assembles the final chunk.
func (g *Generator) CreateChunk() *Chunk {
	layout := make([]*BasicBlock, 0, len(g.order))
	for _, b := range g.order {
		if b == g.entry || b.PredecessorCount() > 0 {
			layout = append(layout, b)
		}
	}

	for _, b := range layout {
		g.lowerPhis(b)
	}

	var final []*Instruction
	for i, b := range layout {
		b.offset = len(final)
		insts := b.Instructions
		if t := b.terminal(); t != nil && t.Op == L2Jump && i+1 < len(layout) {
			if pc := t.Operands[0].(*PCOperand); pc.Target == layout[i+1] {
				insts = insts[:len(insts)-1]
			}
		}
		final = append(final, insts...)
	}

	// Resolve the offsets of threaded-away jump targets: an edge created
	// before threading may still name the threaded block.
	for _, in := range final {
		for _, op := range in.Operands {
			if pc, ok := op.(*PCOperand); ok && pc.Target != nil && pc.Target.threaded {
				panic(fmt.Sprintf("l2: edge into threaded block %q survived", pc.Target.Name))
			}
		}
	}

	g.color(final)

	counter := NewRegisterCounter()
	for _, in := range final {
		counter.Visit(in)
	}
	objects, ints, floats := counter.Counts()

	contingent := make([]string, 0, len(g.contingent))
	for name := range g.contingent {
		contingent = append(contingent, name)
	}
	sort.Strings(contingent)

	chunk := &Chunk{
		Name:                g.name,
		Instructions:        final,
		ObjectRegisterCount: objects,
		IntRegisterCount:    ints,
		FloatRegisterCount:  floats,
		ContingentValues:    contingent,
	}
	if g.afterPrimitive != nil {
		chunk.EntryOffsetAfterPrimitive = g.afterPrimitive.Offset()
	}
	return chunk
}

// lowerPhis rewrites b's merge pseudo-instructions as moves along each
// incoming edge, inserted just before the predecessor's terminal. Phi
// destinations are fresh registers read only in b, so the extra write
// along a conditional's other edge is harmless.
func (g *Generator) lowerPhis(b *BasicBlock) {
	if len(b.phis) == 0 {
		return
	}
	for _, phi := range b.phis {
		vector := phi.Operands[0].(*ReadVectorOperand)
		dest := phi.Operands[1].(*WriteOperand)
		if len(vector.Elements) != len(b.predecessors) {
			panic(fmt.Sprintf("l2: phi in %q has %d sources for %d predecessors",
				b.Name, len(vector.Elements), len(b.predecessors)))
		}
		for i, edge := range b.predecessors {
			src := vector.Elements[i]
			if src.Register == dest.Register {
				continue
			}
			g.insertBeforeTerminal(edge.Source.block,
				L2Move,
				&ReadOperand{Register: src.Register, Restriction: src.Restriction},
				&WriteOperand{Register: dest.Register, Restriction: dest.Restriction})
		}
		phi.instructionWasRemoved()
		g.removed[phi.ID] = true
	}
	b.phis = nil
}

// insertBeforeTerminal places a new instruction immediately before a
// block's control-altering terminal.
func (g *Generator) insertBeforeTerminal(b *BasicBlock, op Operation, operands ...Operand) {
	t := b.terminal()
	if t == nil {
		panic(fmt.Sprintf("l2: predecessor %q has no terminal", b.Name))
	}
	in := newInstruction(len(g.arena), op, operands...)
	g.arena = append(g.arena, in)
	in.instructionWasAdded(b)
	idx := len(b.Instructions) - 1
	b.Instructions = append(b.Instructions[:idx],
		append([]*Instruction{in}, b.Instructions[idx:]...)...)
}

// color assigns final indices per register class in first-use order.
func (g *Generator) color(final []*Instruction) {
	next := map[RegisterKind]int{}
	for _, in := range final {
		for _, op := range in.Operands {
			forEachRegister(op, func(r *Register, _ bool) {
				if r.FinalIndex < 0 {
					r.FinalIndex = next[r.Kind]
					next[r.Kind]++
				}
			})
		}
	}
}
