package l2

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stylpe/Avail-sub004/l1"
	"github.com/stylpe/Avail-sub004/primitive"
	"github.com/stylpe/Avail-sub004/types"
)

// mustTranslate fails the test on a translation error.
func mustTranslate(t *testing.T, fn *l1.Function) *Chunk {
	t.Helper()
	chunk, err := Translate(fn)
	if err != nil {
		t.Fatalf("Translate(%s): %v", fn.Name, err)
	}
	return chunk
}

// runBoth runs a function through the unoptimized tier and the optimized
// chunk and requires identical results.
func runBoth(t *testing.T, fn *l1.Function, chunk *Chunk, args []types.Value) types.Value {
	t.Helper()
	slow, slowErr := l1.Invoke(fn, args, nil)
	fast, fastErr := chunk.Run(args, nil)
	if (slowErr == nil) != (fastErr == nil) {
		t.Fatalf("%s: tier disagreement: unoptimized err=%v, optimized err=%v",
			fn.Name, slowErr, fastErr)
	}
	if slowErr == nil && !slow.Equal(fast) {
		t.Fatalf("%s: unoptimized %s, optimized %s", fn.Name, slow, fast)
	}
	return fast
}

// countOps counts occurrences of one operation in a chunk.
func countOps(chunk *Chunk, op Operation) int {
	n := 0
	for _, in := range chunk.Instructions {
		if in.Op == op {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Folding and specialization
// ---------------------------------------------------------------------------

func TestTranslateFoldsConstantCall(t *testing.T) {
	b := l1.NewBuilder("constAdd", 0, 0, 0)
	b.EmitPushConstant(types.Int(5))
	b.EmitPushConstant(types.Int(1))
	b.EmitCall("int+", 2)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if chunk.HasOperation(L2RunInfallible) || chunk.HasOperation(L2CallPrimitive) {
		t.Errorf("folded call should leave no invocation:\n%s", chunk.Describe())
	}
	if chunk.HasOperation(L2IntAdd) {
		t.Errorf("folded call should leave no arithmetic:\n%s", chunk.Describe())
	}

	result, err := chunk.Run(nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Equal(types.Int(6)) {
		t.Errorf("result = %s, want 6", result)
	}
}

func TestTranslateSpecializesProvenInts(t *testing.T) {
	// The first addition runs generically (argument types unknown); its
	// integer result restriction lets the second addition specialize.
	b := l1.NewBuilder("twice", 2, 0, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpPushArgument, 1)
	b.EmitCall("int+", 2)
	b.Emit(l1.OpDup)
	b.EmitCall("int+", 2)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if !chunk.HasOperation(L2IntAdd) {
		t.Errorf("second addition should specialize:\n%s", chunk.Describe())
	}

	result := runBoth(t, fn, chunk, []types.Value{types.Int(3), types.Int(4)})
	if !result.Equal(types.Int(14)) {
		t.Errorf("result = %s, want 14", result)
	}
}

func TestTranslateInfallibleDivision(t *testing.T) {
	// (a+0)/2: the addition proves its result an integer and the divisor
	// is a pinned nonzero constant, so the division's failure edge
	// targets unreachable code. Only the addition, whose argument type is
	// unknown, keeps a reachable failure path.
	b := l1.NewBuilder("halve", 1, 0, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.EmitPushConstant(types.Int(0))
	b.EmitCall("int+", 2)
	b.EmitPushConstant(types.Int(2))
	b.EmitCall("int/", 2)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if !chunk.HasOperation(L2Unreachable) {
		t.Errorf("proven-infallible division should route failure to unreachable code:\n%s",
			chunk.Describe())
	}
	if n := countOps(chunk, L2Fail); n != 1 {
		t.Errorf("%d reachable failure paths, want only the addition's:\n%s",
			n, chunk.Describe())
	}

	result := runBoth(t, fn, chunk, []types.Value{types.Int(10)})
	if !result.Equal(types.Int(5)) {
		t.Errorf("result = %s, want 5", result)
	}
}

// ---------------------------------------------------------------------------
// Failure edges
// ---------------------------------------------------------------------------

func TestTranslateFallibleCall(t *testing.T) {
	b := l1.NewBuilder("div", 2, 0, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpPushArgument, 1)
	b.EmitCall("int/", 2)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if !chunk.HasOperation(L2CallPrimitive) {
		t.Fatalf("fallible call should use the two-edge form:\n%s", chunk.Describe())
	}
	if !chunk.HasOperation(L2Fail) {
		t.Fatalf("failure path missing:\n%s", chunk.Describe())
	}

	result := runBoth(t, fn, chunk, []types.Value{types.Int(10), types.Int(2)})
	if !result.Equal(types.Int(5)) {
		t.Errorf("10/2 = %s, want 5", result)
	}

	_, err := chunk.Run([]types.Value{types.Int(1), types.Int(0)}, nil)
	if err == nil {
		t.Fatal("division by zero should fail")
	}
	var failure *primitive.Failure
	if !primitive.IsFailure(err) {
		t.Fatalf("error should be a primitive failure, got %v", err)
	}
	failure = err.(*primitive.Failure)
	if failure.Code != primitive.FailDivisionByZero {
		t.Errorf("failure code = %d, want %d", failure.Code, primitive.FailDivisionByZero)
	}
}

func TestTranslateTypeMismatchFailsInBothTiers(t *testing.T) {
	// With an unproven argument the addition keeps a reachable failure
	// edge, so a badly typed call surfaces the same failure from the
	// optimized chunk as from the unoptimized tier.
	b := l1.NewBuilder("badAdd", 1, 0, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.EmitPushConstant(types.Int(1))
	b.EmitCall("int+", 2)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	runBoth(t, fn, chunk, []types.Value{types.Bool(true)})

	_, err := chunk.Run([]types.Value{types.Bool(true)}, nil)
	if !primitive.IsFailure(err) {
		t.Fatalf("error should be a primitive failure, got %v", err)
	}
	if code := err.(*primitive.Failure).Code; code != primitive.FailTypeMismatch {
		t.Errorf("failure code = %d, want %d", code, primitive.FailTypeMismatch)
	}

	// Well-typed calls still succeed through the same failure-edge form.
	result := runBoth(t, fn, chunk, []types.Value{types.Int(4)})
	if !result.Equal(types.Int(5)) {
		t.Errorf("result = %s, want 5", result)
	}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestTranslateConditional(t *testing.T) {
	b := l1.NewBuilder("max", 2, 0, 0)
	second := b.NewLabel()
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpPushArgument, 1)
	b.EmitCall("int<", 2)
	b.EmitBranch(l1.OpBranchIfTrue, second)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpReturn)
	b.Bind(second)
	b.Emit(l1.OpPushArgument, 1)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	tests := []struct{ a, b, want int64 }{{1, 2, 2}, {2, 1, 2}, {3, 3, 3}}
	for _, tt := range tests {
		result := runBoth(t, fn, chunk,
			[]types.Value{types.Int(tt.a), types.Int(tt.b)})
		if !result.Equal(types.Int(tt.want)) {
			t.Errorf("max(%d,%d) = %s, want %d", tt.a, tt.b, result, tt.want)
		}
	}
}

func TestTranslateConstantBranchEliminatesDeadCode(t *testing.T) {
	// The condition is pinned true, so the branch resolves at translation
	// time and the fallthrough code is never generated.
	b := l1.NewBuilder("alwaysTaken", 0, 0, 0)
	taken := b.NewLabel()
	b.EmitPushConstant(types.Bool(true))
	b.EmitBranch(l1.OpBranchIfTrue, taken)
	b.EmitPushConstant(types.Str("dead"))
	b.Emit(l1.OpReturn)
	b.Bind(taken)
	b.EmitPushConstant(types.Int(99))
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if chunk.HasOperation(L2JumpIfTrue) {
		t.Errorf("pinned condition should not emit a runtime branch:\n%s", chunk.Describe())
	}
	for _, in := range chunk.Instructions {
		if imm, ok := in.Operands[0].(*ImmediateOperand); ok && in.Op == L2MoveConstant {
			if imm.Value.Equal(types.Str("dead")) {
				t.Errorf("dead branch code survived:\n%s", chunk.Describe())
			}
		}
	}

	result, err := chunk.Run(nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Equal(types.Int(99)) {
		t.Errorf("result = %s, want 99", result)
	}
}

func TestTranslateBranchIfNil(t *testing.T) {
	b := l1.NewBuilder("nilCheck", 1, 0, 0)
	isNil := b.NewLabel()
	b.Emit(l1.OpPushArgument, 0)
	b.EmitBranch(l1.OpBranchIfNil, isNil)
	b.EmitPushConstant(types.Bool(false))
	b.Emit(l1.OpReturn)
	b.Bind(isNil)
	b.EmitPushConstant(types.Bool(true))
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	for _, arg := range []types.Value{types.Nil(), types.Int(0), types.Bool(false)} {
		runBoth(t, fn, chunk, []types.Value{arg})
	}
}

func TestTranslateMergeWithPhi(t *testing.T) {
	// Each arm binds the local to a different constant register, so the
	// join must reconcile them; no PHI pseudo-instruction may survive
	// into the executable chunk.
	b := l1.NewBuilder("pick", 1, 1, 0)
	other := b.NewLabel()
	join := b.NewLabel()
	b.Emit(l1.OpPushArgument, 0)
	b.EmitBranch(l1.OpBranchIfTrue, other)
	b.EmitPushConstant(types.Int(10))
	b.Emit(l1.OpSetLocal, 0)
	b.EmitBranch(l1.OpJump, join)
	b.Bind(other)
	b.EmitPushConstant(types.Int(20))
	b.Emit(l1.OpSetLocal, 0)
	b.Bind(join)
	b.Emit(l1.OpPushLocal, 0)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if chunk.HasOperation(L2Phi) {
		t.Fatalf("PHI must be lowered before execution:\n%s", chunk.Describe())
	}

	tests := []struct {
		arg  types.Value
		want int64
	}{
		{types.Bool(false), 10},
		{types.Bool(true), 20},
	}
	for _, tt := range tests {
		result := runBoth(t, fn, chunk, []types.Value{tt.arg})
		if !result.Equal(types.Int(tt.want)) {
			t.Errorf("pick(%s) = %s, want %d", tt.arg, result, tt.want)
		}
	}
}

func TestTranslateLoop(t *testing.T) {
	// Sum 1..n: a back edge forces a loop header with a widened entry.
	b := l1.NewBuilder("sum", 1, 2, 0)
	top := b.NewLabel()
	done := b.NewLabel()
	b.EmitPushConstant(types.Int(0))
	b.Emit(l1.OpSetLocal, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpSetLocal, 1)
	b.Bind(top)
	b.Emit(l1.OpPushLocal, 1)
	b.EmitPushConstant(types.Int(0))
	b.EmitCall("int=", 2)
	b.EmitBranch(l1.OpBranchIfTrue, done)
	b.Emit(l1.OpPushLocal, 0)
	b.Emit(l1.OpPushLocal, 1)
	b.EmitCall("int+", 2)
	b.Emit(l1.OpSetLocal, 0)
	b.Emit(l1.OpPushLocal, 1)
	b.EmitPushConstant(types.Int(1))
	b.EmitCall("int-", 2)
	b.Emit(l1.OpSetLocal, 1)
	b.EmitBranch(l1.OpJump, top)
	b.Bind(done)
	b.Emit(l1.OpPushLocal, 0)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	for _, n := range []int64{0, 1, 10} {
		result := runBoth(t, fn, chunk, []types.Value{types.Int(n)})
		want := n * (n + 1) / 2
		if !result.Equal(types.Int(want)) {
			t.Errorf("sum(%d) = %s, want %d", n, result, want)
		}
	}
}

func TestTranslateCountdownLoop(t *testing.T) {
	b := l1.NewBuilder("countdown", 1, 1, 0)
	top := b.NewLabel()
	done := b.NewLabel()
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpSetLocal, 0)
	b.Bind(top)
	b.Emit(l1.OpPushLocal, 0)
	b.EmitPushConstant(types.Int(0))
	b.EmitCall("int=", 2)
	b.EmitBranch(l1.OpBranchIfTrue, done)
	b.Emit(l1.OpPushLocal, 0)
	b.EmitPushConstant(types.Int(1))
	b.EmitCall("int-", 2)
	b.Emit(l1.OpSetLocal, 0)
	b.EmitBranch(l1.OpJump, top)
	b.Bind(done)
	b.Emit(l1.OpPushLocal, 0)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	result := runBoth(t, fn, chunk, []types.Value{types.Int(5)})
	if !result.Equal(types.Int(0)) {
		t.Errorf("countdown(5) = %s, want 0", result)
	}
}

func TestTranslateLoopCarriedStackValue(t *testing.T) {
	// The accumulator lives on the operand stack across iterations while
	// the counter lives in a local. The loop body replaces the stack slot
	// every iteration, so the header must read the value moved in along
	// the back edge, not the register the entry edge happened to use.
	b := l1.NewBuilder("accumulate", 1, 1, 0)
	top := b.NewLabel()
	done := b.NewLabel()
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpSetLocal, 0)
	b.EmitPushConstant(types.Int(0))
	b.Bind(top)
	b.Emit(l1.OpPushLocal, 0)
	b.EmitPushConstant(types.Int(0))
	b.EmitCall("int=", 2)
	b.EmitBranch(l1.OpBranchIfTrue, done)
	b.EmitPushConstant(types.Int(10))
	b.EmitCall("int+", 2)
	b.Emit(l1.OpPushLocal, 0)
	b.EmitPushConstant(types.Int(1))
	b.EmitCall("int-", 2)
	b.Emit(l1.OpSetLocal, 0)
	b.EmitBranch(l1.OpJump, top)
	b.Bind(done)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	for _, n := range []int64{0, 1, 2, 5} {
		result := runBoth(t, fn, chunk, []types.Value{types.Int(n)})
		if !result.Equal(types.Int(n * 10)) {
			t.Errorf("accumulate(%d) = %s, want %d", n, result, n*10)
		}
	}
}

// ---------------------------------------------------------------------------
// Entry primitive
// ---------------------------------------------------------------------------

func TestTranslateEntryPrimitive(t *testing.T) {
	b := l1.NewBuilder("fastDiv", 2, 0, 0)
	b.SetEntryPrimitive("int/")
	b.EmitPushConstant(types.Int(-1))
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if !chunk.HasOperation(L2TryPrimitive) {
		t.Fatalf("entry primitive should lower to TRY_PRIMITIVE:\n%s", chunk.Describe())
	}
	if chunk.EntryOffsetAfterPrimitive == 0 {
		t.Error("re-entry offset past the primitive should be recorded")
	}

	// Fast path succeeds.
	result := runBoth(t, fn, chunk, []types.Value{types.Int(10), types.Int(2)})
	if !result.Equal(types.Int(5)) {
		t.Errorf("fast path = %s, want 5", result)
	}

	// Primitive failure falls through to the body.
	result = runBoth(t, fn, chunk, []types.Value{types.Int(1), types.Int(0)})
	if !result.Equal(types.Int(-1)) {
		t.Errorf("fallback = %s, want -1", result)
	}
}

// ---------------------------------------------------------------------------
// Chunk structure
// ---------------------------------------------------------------------------

func TestChunkRegisterCounts(t *testing.T) {
	b := l1.NewBuilder("counts", 2, 0, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpPushArgument, 1)
	b.EmitCall("int+", 2)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)

	maxIndex := map[RegisterKind]int{KindBoxed: -1, KindInt: -1, KindFloat: -1}
	for _, in := range chunk.Instructions {
		for _, op := range in.Operands {
			forEachRegister(op, func(r *Register, _ bool) {
				if r.FinalIndex > maxIndex[r.Kind] {
					maxIndex[r.Kind] = r.FinalIndex
				}
			})
		}
	}
	if chunk.ObjectRegisterCount != maxIndex[KindBoxed]+1 {
		t.Errorf("ObjectRegisterCount = %d, want %d",
			chunk.ObjectRegisterCount, maxIndex[KindBoxed]+1)
	}
	if chunk.IntRegisterCount != maxIndex[KindInt]+1 {
		t.Errorf("IntRegisterCount = %d, want %d",
			chunk.IntRegisterCount, maxIndex[KindInt]+1)
	}
	if chunk.FloatRegisterCount != maxIndex[KindFloat]+1 {
		t.Errorf("FloatRegisterCount = %d, want %d",
			chunk.FloatRegisterCount, maxIndex[KindFloat]+1)
	}
}

func TestChunkContingencies(t *testing.T) {
	b := l1.NewBuilder("dep", 2, 0, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpPushArgument, 1)
	b.EmitCall("int+", 2)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	found := false
	for _, name := range chunk.ContingentValues {
		if name == "int+" {
			found = true
		}
	}
	if !found {
		t.Errorf("ContingentValues = %v, want int+ recorded", chunk.ContingentValues)
	}
}

func TestChunkInvalidation(t *testing.T) {
	b := l1.NewBuilder("inv", 0, 0, 0)
	b.EmitPushConstant(types.Int(1))
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if !chunk.Valid() {
		t.Fatal("fresh chunk should be valid")
	}
	chunk.Invalidate()
	if chunk.Valid() {
		t.Error("chunk should be invalid after Invalidate")
	}

	// An in-flight activation keeps running: Run ignores the flag.
	result, err := chunk.Run(nil, nil)
	if err != nil {
		t.Fatalf("Run after invalidation: %v", err)
	}
	if !result.Equal(types.Int(1)) {
		t.Errorf("result = %s, want 1", result)
	}
}

func TestTranslateSideEffectCallNotFolded(t *testing.T) {
	b := l1.NewBuilder("yielder", 0, 0, 0)
	b.EmitCall("yield", 0)
	b.Emit(l1.OpPop)
	b.EmitPushConstant(types.Int(1))
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	chunk := mustTranslate(t, fn)
	if !chunk.HasOperation(L2RunInfallible) {
		t.Errorf("side-effecting call must be emitted:\n%s", chunk.Describe())
	}
	result := runBoth(t, fn, chunk, nil)
	if !result.Equal(types.Int(1)) {
		t.Errorf("result = %s, want 1", result)
	}
}

// ---------------------------------------------------------------------------
// Randomized tier agreement
// ---------------------------------------------------------------------------

// randomProgram builds a stack-balanced integer function from a seeded
// source: pushes of the argument and small constants mixed with
// arithmetic, sometimes guarded by a comparison. withArg false produces
// an all-constant program.
func randomProgram(rng *rand.Rand, id int, withArg bool) *l1.Function {
	nargs := 0
	if withArg {
		nargs = 1
	}
	b := l1.NewBuilder(fmt.Sprintf("generated%d", id), nargs, 0, 0)
	depth := 0
	push := func() {
		if withArg && rng.Intn(2) == 0 {
			b.Emit(l1.OpPushArgument, 0)
		} else {
			b.EmitPushConstant(types.Int(int64(rng.Intn(7) - 3)))
		}
		depth++
	}
	ops := []string{"int+", "int-", "int*"}

	push()
	for steps := 3 + rng.Intn(6); steps > 0; steps-- {
		switch {
		case depth >= 2 && rng.Intn(2) == 0:
			b.EmitCall(ops[rng.Intn(len(ops))], 2)
			depth--
		case rng.Intn(4) == 0:
			b.Emit(l1.OpDup)
			depth++
		default:
			push()
		}
	}
	for depth > 1 {
		b.EmitCall("int+", 2)
		depth--
	}

	if rng.Intn(2) == 0 {
		other := b.NewLabel()
		join := b.NewLabel()
		b.Emit(l1.OpDup)
		b.EmitPushConstant(types.Int(int64(rng.Intn(3))))
		b.EmitCall("int<", 2)
		b.EmitBranch(l1.OpBranchIfTrue, other)
		b.EmitPushConstant(types.Int(int64(rng.Intn(5))))
		b.EmitCall("int+", 2)
		b.EmitBranch(l1.OpJump, join)
		b.Bind(other)
		b.EmitPushConstant(types.Int(int64(rng.Intn(5))))
		b.EmitCall("int-", 2)
		b.Bind(join)
	}
	b.Emit(l1.OpReturn)
	return b.Assemble()
}

func TestTranslateRandomProgramsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 40; i++ {
		fn := randomProgram(rng, i, true)
		chunk := mustTranslate(t, fn)
		for _, n := range []int64{-2, 0, 3} {
			runBoth(t, fn, chunk, []types.Value{types.Int(n)})
		}
	}
}

func TestTranslateRandomConstantPrograms(t *testing.T) {
	// With every input pinned, folding and branch resolution must reduce
	// the whole computation to constants: no invocation, no arithmetic,
	// no runtime branch may survive.
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 40; i++ {
		fn := randomProgram(rng, i, false)
		chunk := mustTranslate(t, fn)
		for _, op := range []Operation{
			L2CallPrimitive, L2RunInfallible,
			L2IntAdd, L2IntSub, L2IntMul, L2IntLess,
			L2JumpIfTrue,
		} {
			if chunk.HasOperation(op) {
				t.Fatalf("%s: %s survived constant folding:\n%s",
					fn.Name, op, chunk.Describe())
			}
		}
		runBoth(t, fn, chunk, nil)
	}
}

func TestTranslateUnknownCalleeFails(t *testing.T) {
	b := l1.NewBuilder("bad", 0, 0, 0)
	b.EmitCall("no-such-primitive", 0)
	b.Emit(l1.OpReturn)
	fn := b.Assemble()

	if _, err := Translate(fn); err == nil {
		t.Error("unknown callee should fail translation, not panic")
	}
}
