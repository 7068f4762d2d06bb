package l2

import (
	"fmt"

	"github.com/stylpe/Avail-sub004/l1"
	"github.com/stylpe/Avail-sub004/nybble"
	"github.com/stylpe/Avail-sub004/primitive"
	"github.com/stylpe/Avail-sub004/types"
)

// Translate converts one level-one function into an optimized chunk.
// Generation runs in a single forward pass; every block is fully
// generated before any of its successors starts, and loops accept a
// conservatively widened manifest at the header instead of iterating to
// a fixed point.
//
// Internal inconsistencies (malformed code, arity mismatches) are fatal
// to this one translation: they surface as an error here and the caller
// keeps running the function in the unoptimized tier.
func Translate(fn *l1.Function) (chunk *Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("l2: translation of %s failed: %v", fn.Name, r)
		}
	}()
	t := &translator{
		g:            NewGenerator(fn.Name),
		fn:           fn,
		blocksAt:     make(map[int]*BasicBlock),
		isTarget:     make(map[int]bool),
		backTarget:   make(map[int]bool),
		stackDepthAt: make(map[int]int),
		stackHomes:   make(map[int][]*Register),
		constants:    make(map[string]SemanticValue),
	}
	t.scan()
	t.emitPrologue()
	t.run()
	return t.g.CreateChunk(), nil
}

// translator holds the walk state of one translation: the virtual
// operand stack of semantic values, the current identity of each local,
// and the block map keyed by level-one program counter.
type translator struct {
	g  *Generator
	fn *l1.Function

	blocksAt     map[int]*BasicBlock
	isTarget     map[int]bool
	backTarget   map[int]bool
	stackDepthAt map[int]int

	stack        []SemanticValue
	localSV      []SemanticValue
	localVersion []int

	// homeMode pins every local to a fixed register so loop headers can
	// rely on register placement across not-yet-seen back edges. Stack
	// slots live at a back-edge target get the same treatment, keyed by
	// the target's program counter.
	homeMode   bool
	homeRegs   []*Register
	stackHomes map[int][]*Register

	constants map[string]SemanticValue
}

// reader returns a fresh nybble reader over the function's code.
func (t *translator) reader() *nybble.Reader {
	return nybble.NewReader(t.fn.Codes, t.fn.NumCodes)
}

// scan records every branch target, whether it is reached by a back
// edge, and the implicit targets that conditional fallthrough creates.
func (t *translator) scan() {
	r := t.reader()
	for !r.AtEnd() {
		pc := r.Pos()
		op := readOpcode(r)
		info := l1.GetOpcodeInfo(op)
		for _, kind := range info.Operands {
			v := int(r.ReadInt())
			if kind == l1.OperandTarget {
				t.isTarget[v] = true
				if v <= pc {
					t.backTarget[v] = true
				}
			}
		}
		if op.IsConditional() {
			t.isTarget[r.Pos()] = true
		}
	}
}

// emitPrologue loads arguments and outers into registers, attempts the
// optional entry primitive, and gives every local its initial nil.
func (t *translator) emitPrologue() {
	g := t.g
	for i := 0; i < t.fn.NumArgs; i++ {
		reg := g.NewRegister(KindBoxed)
		g.AddInstruction(L2GetArgument,
			&ImmediateOperand{Value: types.Int(int64(i))},
			&WriteOperand{Register: reg, Restriction: types.AnyRestriction()})
		g.Manifest().RecordDefinition(ArgumentValue(0, i), reg, types.AnyRestriction())
	}
	for i := 0; i < t.fn.NumOuters; i++ {
		reg := g.NewRegister(KindBoxed)
		g.AddInstruction(L2GetOuter,
			&ImmediateOperand{Value: types.Int(int64(i))},
			&WriteOperand{Register: reg, Restriction: types.AnyRestriction()})
		g.Manifest().RecordDefinition(OuterValue(0, i), reg, types.AnyRestriction())
	}

	if t.fn.EntryPrimitive != "" {
		prim, ok := primitive.Lookup(t.fn.EntryPrimitive)
		if !ok {
			panic(fmt.Sprintf("unknown entry primitive %q", t.fn.EntryPrimitive))
		}
		if prim.Arity != t.fn.NumArgs {
			panic(fmt.Sprintf("entry primitive %q arity %d does not match %d arguments",
				prim.Name, prim.Arity, t.fn.NumArgs))
		}
		g.NoteContingency(prim.Name)
		elements := make([]*ReadOperand, t.fn.NumArgs)
		for i := 0; i < t.fn.NumArgs; i++ {
			sv := ArgumentValue(0, i)
			restr, _ := g.Manifest().RestrictionFor(sv)
			elements[i] = &ReadOperand{
				Register:    g.Manifest().RegisterFor(sv, KindBoxed),
				Restriction: restr,
			}
		}
		dest := g.NewRegister(KindBoxed)
		body := g.CreateBasicBlock("afterPrimitive")
		body.mayThread = false
		g.MarkAfterPrimitive(body)
		g.AddInstruction(L2TryPrimitive,
			&ImmediateOperand{Value: types.Symbol(prim.Name)},
			&ReadVectorOperand{Elements: elements},
			&WriteOperand{Register: dest, Restriction: prim.BlockTypeRestriction()},
			g.EdgeTo(body))
		g.StartBlock(body)
	}

	// Locals begin as nil on every path, which keeps them mergeable at
	// joins even when only some paths assign them.
	t.homeMode = len(t.backTarget) > 0
	t.localSV = make([]SemanticValue, t.fn.NumLocals)
	t.localVersion = make([]int, t.fn.NumLocals)
	if t.homeMode {
		t.homeRegs = make([]*Register, t.fn.NumLocals)
	}
	for i := 0; i < t.fn.NumLocals; i++ {
		sv := LocalValue(0, i, 0)
		t.localSV[i] = sv
		if t.homeMode {
			home := t.g.NewRegister(KindBoxed)
			t.homeRegs[i] = home
			nilRestr := types.ForConstant(types.Nil())
			g.AddInstruction(L2MoveConstant,
				&ImmediateOperand{Value: types.Nil()},
				&WriteOperand{Register: home, Restriction: nilRestr})
			g.Manifest().RecordDefinition(sv, home, nilRestr)
		} else {
			nilSV := t.materializeConstant(types.Nil())
			g.Manifest().RecordAlias(sv, nilSV)
		}
	}
}

// run walks the code stream in program order.
func (t *translator) run() {
	r := t.reader()
	for !r.AtEnd() {
		pc := r.Pos()
		if t.isTarget[pc] {
			t.reachTarget(pc)
		}
		if !t.g.CurrentlyReachable() {
			skipInstruction(r)
			continue
		}
		t.translateInstruction(r)
	}
	if t.g.CurrentlyReachable() {
		panic("code falls off the end of the function")
	}
}

// reachTarget closes the current block with a fallthrough jump into the
// block at pc, then starts that block and rebuilds the virtual frame
// from its canonical names.
func (t *translator) reachTarget(pc int) {
	b := t.blockAt(pc)
	if t.g.CurrentlyReachable() {
		t.canonicalizeForEdge(pc)
		t.g.JumpTo(b)
	}
	if t.g.StartBlock(b) {
		t.enterBlock(pc)
	} else {
		t.stack = nil
	}
}

// blockAt returns (creating on demand) the block for a branch target.
func (t *translator) blockAt(pc int) *BasicBlock {
	if b, ok := t.blocksAt[pc]; ok {
		return b
	}
	name := fmt.Sprintf("L%d", pc)
	var b *BasicBlock
	if t.backTarget[pc] {
		b = t.g.CreateLoopHeadBlock(name)
	} else {
		b = t.g.CreateBasicBlock(name)
	}
	t.blocksAt[pc] = b
	return b
}

// canonicalLocal is the merge-point identity of local i at target pc.
// The negative version keeps these names disjoint from write versions.
func canonicalLocal(i, pc int) SemanticValue {
	return SemanticValue{Role: RoleLocal, Index: i, Version: -(pc + 1)}
}

// canonicalizeForEdge renames the live frame onto the target's merge
// identities before an edge snapshot is taken, so all edges into one
// block agree on names. A back-edge target cannot rely on phi synthesis
// (its back edges arrive only after the header was generated), so each
// of its live stack slots is pinned to a fixed register and moved into
// it along every incoming edge, the way locals use home registers.
func (t *translator) canonicalizeForEdge(pc int) {
	if depth, ok := t.stackDepthAt[pc]; ok {
		if depth != len(t.stack) {
			panic(fmt.Sprintf("inconsistent stack depth %d vs %d at %d",
				len(t.stack), depth, pc))
		}
	} else {
		t.stackDepthAt[pc] = len(t.stack)
	}
	m := t.g.Manifest()
	if t.backTarget[pc] {
		homes := t.stackHomesFor(pc, len(t.stack))
		for j, sv := range t.stack {
			canonical := StackValue(0, j, pc)
			home := homes[j]
			src := t.ensureBoxed(sv)
			restr := t.restrictionFor(sv)
			m.ForgetRegister(home)
			if src != home {
				t.g.AddInstruction(L2Move,
					&ReadOperand{Register: src, Restriction: restr},
					&WriteOperand{Register: home, Restriction: restr})
			}
			m.RecordDefinition(canonical, home, restr)
		}
	} else {
		for j, sv := range t.stack {
			canonical := StackValue(0, j, pc)
			if canonical != sv {
				m.RecordAlias(canonical, sv)
			}
		}
	}
	for i, sv := range t.localSV {
		canonical := canonicalLocal(i, pc)
		if canonical != sv {
			m.RecordAlias(canonical, sv)
		}
	}
}

// stackHomesFor returns the pinned registers carrying the operand stack
// of the back-edge target at pc, allocating them on first use.
func (t *translator) stackHomesFor(pc, depth int) []*Register {
	homes, ok := t.stackHomes[pc]
	if !ok {
		homes = make([]*Register, depth)
		for j := range homes {
			homes[j] = t.g.NewRegister(KindBoxed)
		}
		t.stackHomes[pc] = homes
	}
	return homes
}

// enterBlock rebuilds the virtual stack and local identities from the
// canonical names the block's edges agreed on.
func (t *translator) enterBlock(pc int) {
	depth := t.stackDepthAt[pc]
	t.stack = make([]SemanticValue, depth)
	for j := 0; j < depth; j++ {
		t.stack[j] = StackValue(0, j, pc)
	}
	for i := range t.localSV {
		t.localSV[i] = canonicalLocal(i, pc)
	}
}

// push / pop manage the virtual operand stack.
func (t *translator) push(sv SemanticValue) { t.stack = append(t.stack, sv) }

func (t *translator) pop() SemanticValue {
	if len(t.stack) == 0 {
		panic("virtual stack underflow")
	}
	sv := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return sv
}

// restrictionFor returns the proven restriction for a tracked value.
func (t *translator) restrictionFor(sv SemanticValue) types.Restriction {
	r, ok := t.g.Manifest().RestrictionFor(sv)
	if !ok {
		panic(fmt.Sprintf("semantic value %s lost from manifest", sv))
	}
	return r
}

// materializeConstant interns a constant, emitting its load only the
// first time it is needed on the current path.
func (t *translator) materializeConstant(v types.Value) SemanticValue {
	key := fmt.Sprintf("%d|%s", v.Kind, v)
	sv, ok := t.constants[key]
	if !ok {
		sv = t.g.NextConstant()
		t.constants[key] = sv
	}
	if t.g.Manifest().HasValue(sv) {
		return sv
	}
	reg := t.g.NewRegister(KindBoxed)
	restr := types.ForConstant(v)
	t.g.AddInstruction(L2MoveConstant,
		&ImmediateOperand{Value: v},
		&WriteOperand{Register: reg, Restriction: restr})
	t.g.Manifest().RecordDefinition(sv, reg, restr)
	return sv
}

// ensureBoxed returns a boxed register holding sv, boxing an unboxed
// form when necessary.
func (t *translator) ensureBoxed(sv SemanticValue) *Register {
	m := t.g.Manifest()
	if reg := m.RegisterFor(sv, KindBoxed); reg != nil {
		return reg
	}
	restr := t.restrictionFor(sv)
	for _, kind := range []RegisterKind{KindInt, KindFloat} {
		src := m.RegisterFor(sv, kind)
		if src == nil {
			continue
		}
		dest := t.g.NewRegister(KindBoxed)
		t.g.AddInstruction(L2Box,
			&ReadOperand{Register: src, Restriction: restr},
			&WriteOperand{Register: dest, Restriction: restr})
		m.RecordAlso(sv, dest)
		return dest
	}
	panic(fmt.Sprintf("no register holds %s", sv))
}

// ensureUnboxed returns an unboxed register of the given kind holding
// sv, unboxing the boxed form when necessary.
func (t *translator) ensureUnboxed(sv SemanticValue, kind RegisterKind) *Register {
	m := t.g.Manifest()
	if reg := m.RegisterFor(sv, kind); reg != nil {
		return reg
	}
	src := m.RegisterFor(sv, KindBoxed)
	if src == nil {
		panic(fmt.Sprintf("no register holds %s", sv))
	}
	restr := t.restrictionFor(sv)
	dest := t.g.NewRegister(kind)
	t.g.AddInstruction(L2Unbox,
		&ReadOperand{Register: src, Restriction: restr},
		&WriteOperand{Register: dest, Restriction: restr})
	m.RecordAlso(sv, dest)
	return dest
}

// translateInstruction lowers one level-one instruction.
func (t *translator) translateInstruction(r *nybble.Reader) {
	g := t.g
	op := readOpcode(r)
	switch op {
	case l1.OpCall:
		lit := int(r.ReadInt())
		nargs := int(r.ReadInt())
		t.translateCall(lit, nargs)

	case l1.OpPushLiteral:
		t.push(t.materializeConstant(t.fn.Literal(int(r.ReadInt()))))

	case l1.OpPushLocal:
		t.push(t.localSV[r.ReadInt()])

	case l1.OpSetLocal:
		i := int(r.ReadInt())
		sv := t.pop()
		t.localVersion[i]++
		newSV := LocalValue(0, i, t.localVersion[i])
		if t.homeMode {
			home := t.homeRegs[i]
			src := t.ensureBoxed(sv)
			restr := t.restrictionFor(sv)
			g.Manifest().ForgetRegister(home)
			if src != home {
				g.AddInstruction(L2Move,
					&ReadOperand{Register: src, Restriction: restr},
					&WriteOperand{Register: home, Restriction: restr})
			}
			g.Manifest().RecordDefinition(newSV, home, restr)
		} else {
			g.Manifest().RecordAlias(newSV, sv)
		}
		t.localSV[i] = newSV

	case l1.OpPushArgument:
		t.push(ArgumentValue(0, int(r.ReadInt())))

	case l1.OpPushOuter:
		t.push(OuterValue(0, int(r.ReadInt())))

	case l1.OpPop:
		t.pop()

	case l1.OpDup:
		sv := t.pop()
		t.push(sv)
		t.push(sv)

	case l1.OpJump:
		target := int(r.ReadInt())
		t.canonicalizeForEdge(target)
		g.JumpTo(t.blockAt(target))

	case l1.OpBranchIfTrue:
		t.translateConditional(int(r.ReadInt()), r.Pos(), branchOnTrue)

	case l1.OpBranchIfFalse:
		t.translateConditional(int(r.ReadInt()), r.Pos(), branchOnFalse)

	case l1.OpBranchIfNil:
		t.translateConditional(int(r.ReadInt()), r.Pos(), branchOnNil)

	case l1.OpReturn:
		sv := t.pop()
		reg := t.ensureBoxed(sv)
		g.AddInstruction(L2Return,
			&ReadOperand{Register: reg, Restriction: t.restrictionFor(sv)})

	case l1.OpReturnNil:
		sv := t.materializeConstant(types.Nil())
		g.AddInstruction(L2Return,
			&ReadOperand{Register: t.ensureBoxed(sv), Restriction: t.restrictionFor(sv)})

	default:
		panic(fmt.Sprintf("unknown opcode %d", byte(op)))
	}
}

// branchSense distinguishes the three conditional forms.
type branchSense uint8

const (
	branchOnTrue branchSense = iota
	branchOnFalse
	branchOnNil
)

// translateConditional lowers a conditional branch, resolving it at
// compile time when the condition's restriction already decides it.
func (t *translator) translateConditional(target, next int, sense branchSense) {
	g := t.g
	sv := t.pop()
	restr := t.restrictionFor(sv)

	if taken, known := decideBranch(restr, sense); known {
		if taken {
			t.canonicalizeForEdge(target)
			g.JumpTo(t.blockAt(target))
		}
		// A decided-untaken branch just falls through; the block at
		// next, created by the scan, is threaded back onto this one.
		return
	}

	t.canonicalizeForEdge(target)
	t.canonicalizeForEdge(next)
	reg := t.ensureBoxed(sv)
	takenEdge := g.EdgeTo(t.blockAt(target))
	fallEdge := g.EdgeTo(t.blockAt(next))

	var op Operation
	switch sense {
	case branchOnTrue:
		op = L2JumpIfTrue
		takenEdge.Manifest.Restrict(sv, types.ForConstant(types.Bool(true)))
		fallEdge.Manifest.Restrict(sv, types.ForConstant(types.Bool(false)))
	case branchOnFalse:
		op = L2JumpIfTrue
		takenEdge, fallEdge = fallEdge, takenEdge
		takenEdge.Manifest.Restrict(sv, types.ForConstant(types.Bool(true)))
		fallEdge.Manifest.Restrict(sv, types.ForConstant(types.Bool(false)))
	case branchOnNil:
		op = L2JumpIfNil
		takenEdge.Manifest.Restrict(sv, types.ForConstant(types.Nil()))
	}
	g.AddInstruction(op,
		&ReadOperand{Register: reg, Restriction: restr},
		takenEdge, fallEdge)
}

// decideBranch resolves a conditional against a pinned restriction.
func decideBranch(restr types.Restriction, sense branchSense) (taken, known bool) {
	switch sense {
	case branchOnTrue, branchOnFalse:
		if restr.IsConstant() && restr.ConstantValue().Kind == types.KindBool {
			taken = restr.ConstantValue().B
			if sense == branchOnFalse {
				taken = !taken
			}
			return taken, true
		}
	case branchOnNil:
		if restr.Tag == types.TagNil {
			return true, true
		}
		if restr.Tag != types.TagAny && !types.TagNil.SubtagOf(restr.Tag) {
			return false, true
		}
	}
	return false, false
}

// translateCall lowers one call site: fold it to a constant when the
// arguments are pinned, specialize it to a direct instruction sequence
// when types allow, and otherwise emit a generic invocation whose
// failure edge carries the declared failure codes — or targets the
// unreachable block when failure is provably impossible.
func (t *translator) translateCall(lit, nargs int) {
	g := t.g
	callee := t.fn.Literal(lit)
	if callee.Kind != types.KindSymbol {
		panic(fmt.Sprintf("call literal %s is not a symbol", callee))
	}
	prim, ok := primitive.Lookup(callee.S)
	if !ok {
		panic(fmt.Sprintf("call to unknown primitive %q", callee.S))
	}
	if prim.Arity != nargs {
		panic(fmt.Sprintf("%q expects %d arguments, call site passes %d",
			prim.Name, prim.Arity, nargs))
	}
	g.NoteContingency(prim.Name)

	argSVs := make([]SemanticValue, nargs)
	restrs := make([]types.Restriction, nargs)
	for i := 0; i < nargs; i++ {
		argSVs[i] = t.stack[len(t.stack)-nargs+i]
		restrs[i] = t.restrictionFor(argSVs[i])
	}
	popArgs := func() { t.stack = t.stack[:len(t.stack)-nargs] }

	// Call-site folding: pinned arguments collapse the call to its
	// constant result.
	if !prim.Flags.Has(primitive.HasSideEffect) {
		if v, folded := prim.Fold(restrs); folded {
			popArgs()
			t.push(t.materializeConstant(v))
			return
		}
	}

	// Call-site specialization: proven argument types let the call
	// become a direct instruction over unboxed registers.
	if prim.Flags.Has(primitive.CanInline) && prim.Special != primitive.SpecialNone &&
		prim.ArgsSatisfySignature(restrs) {
		t.specializeCall(prim, argSVs, restrs, popArgs)
		return
	}

	// Generic invocation.
	elements := make([]*ReadOperand, nargs)
	for i, sv := range argSVs {
		elements[i] = &ReadOperand{Register: t.ensureBoxed(sv), Restriction: restrs[i]}
	}
	popArgs()
	dest := g.NewRegister(KindBoxed)
	resRestr := prim.ResultRestriction(restrs)
	resultSV := g.NextTemp()

	if !prim.CanFailFor(restrs) {
		// A primitive with no failure conditions at all needs no edges.
		if prim.Flags.Has(primitive.CannotFail) {
			g.AddInstruction(L2RunInfallible,
				&ImmediateOperand{Value: types.Symbol(prim.Name)},
				&ReadVectorOperand{Elements: elements},
				&WriteOperand{Register: dest, Restriction: resRestr})
			g.Manifest().RecordDefinition(resultSV, dest, resRestr)
			t.push(resultSV)
			return
		}
		// The primitive keeps its runtime check, but the call site proved
		// failure impossible: the failure edge targets the unreachable
		// block, and taking it at run time is an internal fault.
		failReg := g.NewRegister(KindInt)
		g.Manifest().RecordDefinition(resultSV, dest, resRestr)
		succBlock := g.CreateBasicBlock("afterCall")
		succEdge := g.EdgeTo(succBlock)
		g.AddInstruction(L2CallPrimitive,
			&ImmediateOperand{Value: types.Symbol(prim.Name)},
			&ReadVectorOperand{Elements: elements},
			&WriteOperand{Register: dest, Restriction: resRestr},
			&WriteOperand{Register: failReg, Restriction: types.ForTag(types.TagInt)},
			succEdge, g.AddUnreachableCode())
		g.StartBlock(succBlock)
		t.push(resultSV)
		return
	}

	failReg := g.NewRegister(KindInt)
	failSV := g.NextTemp()
	failRestr := types.ForTag(types.TagInt)

	failBlock := g.CreateBasicBlock("onPrimitiveFailure")
	failEdge := g.EdgeTo(failBlock)
	failEdge.Manifest.RecordDefinition(failSV, failReg, failRestr)

	g.Manifest().RecordDefinition(resultSV, dest, resRestr)
	succBlock := g.CreateBasicBlock("afterCall")
	succEdge := g.EdgeTo(succBlock)

	g.AddInstruction(L2CallPrimitive,
		&ImmediateOperand{Value: types.Symbol(prim.Name)},
		&ReadVectorOperand{Elements: elements},
		&WriteOperand{Register: dest, Restriction: resRestr},
		&WriteOperand{Register: failReg, Restriction: failRestr},
		succEdge, failEdge)

	// The failure path surfaces the code to the caller; downstream code
	// pattern-matches on the restriction carried by the edge.
	g.StartBlock(failBlock)
	g.AddInstruction(L2Fail,
		&ReadOperand{Register: failReg, Restriction: failRestr})

	g.StartBlock(succBlock)
	t.push(resultSV)
}

// specializeCall emits the direct lowering a primitive opted into.
func (t *translator) specializeCall(prim *primitive.Primitive, argSVs []SemanticValue,
	restrs []types.Restriction, popArgs func()) {
	g := t.g
	resRestr := prim.ResultRestriction(restrs)
	resultSV := g.NextTemp()

	emitBinary := func(op Operation, argKind, destKind RegisterKind) {
		a := t.ensureUnboxed(argSVs[0], argKind)
		b := t.ensureUnboxed(argSVs[1], argKind)
		dest := g.NewRegister(destKind)
		g.AddInstruction(op,
			&ReadOperand{Register: a, Restriction: restrs[0]},
			&ReadOperand{Register: b, Restriction: restrs[1]},
			&WriteOperand{Register: dest, Restriction: resRestr})
		popArgs()
		g.Manifest().RecordDefinition(resultSV, dest, resRestr)
		t.push(resultSV)
	}

	switch prim.Special {
	case primitive.SpecialIntAdd:
		emitBinary(L2IntAdd, KindInt, KindInt)
	case primitive.SpecialIntSub:
		emitBinary(L2IntSub, KindInt, KindInt)
	case primitive.SpecialIntMul:
		emitBinary(L2IntMul, KindInt, KindInt)
	case primitive.SpecialIntLess:
		emitBinary(L2IntLess, KindInt, KindBoxed)
	case primitive.SpecialIntEq:
		emitBinary(L2IntEq, KindInt, KindBoxed)
	case primitive.SpecialFloatAdd:
		emitBinary(L2FloatAdd, KindFloat, KindFloat)
	default:
		panic(fmt.Sprintf("primitive %q declares unknown special form %d",
			prim.Name, prim.Special))
	}
}

// skipInstruction advances the reader past one instruction without
// translating it (dead code is eliminated by construction).
func skipInstruction(r *nybble.Reader) {
	op := readOpcode(r)
	for range l1.GetOpcodeInfo(op).Operands {
		r.ReadInt()
	}
}

// readOpcode decodes an opcode, following the extension escape.
func readOpcode(r *nybble.Reader) l1.Opcode {
	n := r.ReadNybble()
	if n == l1.ExtensionEscape {
		return l1.Opcode(16 + r.ReadNybble())
	}
	return l1.Opcode(n)
}
