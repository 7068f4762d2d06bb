package l1

import (
	"strings"
	"testing"

	"github.com/stylpe/Avail-sub004/nybble"
	"github.com/stylpe/Avail-sub004/types"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op       Opcode
		name     string
		operands int
	}{
		{OpCall, "CALL", 2},
		{OpPushLiteral, "PUSH_LITERAL", 1},
		{OpPushLocal, "PUSH_LOCAL", 1},
		{OpSetLocal, "SET_LOCAL", 1},
		{OpPushArgument, "PUSH_ARGUMENT", 1},
		{OpPushOuter, "PUSH_OUTER", 1},
		{OpPop, "POP", 0},
		{OpDup, "DUP", 0},
		{OpJump, "JUMP", 1},
		{OpBranchIfTrue, "BRANCH_IF_TRUE", 1},
		{OpBranchIfFalse, "BRANCH_IF_FALSE", 1},
		{OpReturn, "RETURN", 0},
		{OpReturnNil, "RETURN_NIL", 0},
		{OpBranchIfNil, "BRANCH_IF_NIL", 1},
	}
	for _, tt := range tests {
		info := GetOpcodeInfo(tt.op)
		if info.Name != tt.name {
			t.Errorf("%d: Name = %q, want %q", byte(tt.op), info.Name, tt.name)
		}
		if len(info.Operands) != tt.operands {
			t.Errorf("%s: %d operands, want %d", tt.name, len(info.Operands), tt.operands)
		}
	}
}

func TestOpcodeClassification(t *testing.T) {
	if !OpJump.IsBranch() || OpJump.IsConditional() {
		t.Error("JUMP should be an unconditional branch")
	}
	if !OpBranchIfTrue.IsConditional() || !OpBranchIfNil.IsConditional() {
		t.Error("conditional branches misclassified")
	}
	if !OpReturn.IsReturn() || !OpReturnNil.IsReturn() {
		t.Error("returns misclassified")
	}
	if OpCall.IsBranch() || OpCall.IsReturn() {
		t.Error("CALL is neither branch nor return")
	}
}

func TestExtendedOpcodeEncoding(t *testing.T) {
	w := nybble.NewWriter()
	writeOpcode(w, OpReturnNil)
	writeOpcode(w, OpBranchIfNil)
	writeOpcode(w, OpPop)

	r := nybble.NewReader(w.Bytes(), w.Count())
	for _, want := range []Opcode{OpReturnNil, OpBranchIfNil, OpPop} {
		if got := readOpcode(r); got != want {
			t.Errorf("readOpcode = %s, want %s", got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Assembler tests
// ---------------------------------------------------------------------------

func TestAssembleLiteralInterning(t *testing.T) {
	b := NewBuilder("f", 0, 0, 0)
	first := b.AddLiteral(types.Int(42))
	second := b.AddLiteral(types.Int(42))
	third := b.AddLiteral(types.Int(43))
	if first != second {
		t.Errorf("equal literals should intern: %d vs %d", first, second)
	}
	if third == first {
		t.Error("distinct literals should get distinct slots")
	}
}

func TestAssembleOperandArity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("wrong operand count should panic")
		}
	}()
	NewBuilder("f", 0, 0, 0).Emit(OpPushLocal)
}

func TestAssembleBranchViaEmitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("emitting a branch through Emit should panic")
		}
	}()
	NewBuilder("f", 0, 0, 0).Emit(OpJump, 0)
}

func TestAssembleUnboundLabelPanics(t *testing.T) {
	b := NewBuilder("f", 0, 0, 0)
	l := b.NewLabel()
	b.EmitBranch(OpJump, l)
	defer func() {
		if recover() == nil {
			t.Error("assembling with an unbound label should panic")
		}
	}()
	b.Assemble()
}

func TestAssembleBackwardBranchOffsets(t *testing.T) {
	b := NewBuilder("loop", 0, 0, 0)
	top := b.NewLabel()
	b.Bind(top)
	b.EmitPushConstant(types.Bool(false))
	b.EmitBranch(OpBranchIfTrue, top)
	b.Emit(OpReturnNil)
	fn := b.Assemble()

	// The backward branch must encode offset 0 (the first instruction).
	r := nybble.NewReader(fn.Codes, fn.NumCodes)
	if op := readOpcode(r); op != OpPushLiteral {
		t.Fatalf("first op = %s", op)
	}
	r.ReadInt()
	if op := readOpcode(r); op != OpBranchIfTrue {
		t.Fatalf("second op = %s", op)
	}
	if target := r.ReadInt(); target != 0 {
		t.Errorf("branch target = %d, want 0", target)
	}
}

// TestAssembleOffsetRelaxation builds a function whose forward-branch
// target offset needs a wider encoding than the initial zero estimate,
// checking the relaxation loop converges on consistent offsets.
func TestAssembleOffsetRelaxation(t *testing.T) {
	b := NewBuilder("wide", 1, 0, 0)
	end := b.NewLabel()
	b.EmitBranch(OpJump, end)
	// Padding so the target lands past offset 9 and needs a two-nybble
	// encoding.
	for i := 0; i < 12; i++ {
		b.Emit(OpPushArgument, 0)
		b.Emit(OpPop)
	}
	b.Bind(end)
	b.Emit(OpReturnNil)
	fn := b.Assemble()

	result, err := Invoke(fn, []types.Value{types.Int(1)}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.IsNil() {
		t.Errorf("result = %s, want nil", result)
	}
}

// ---------------------------------------------------------------------------
// Interpreter tests
// ---------------------------------------------------------------------------

func TestInvokeArithmetic(t *testing.T) {
	b := NewBuilder("add", 2, 0, 0)
	b.Emit(OpPushArgument, 0)
	b.Emit(OpPushArgument, 1)
	b.EmitCall("int+", 2)
	b.Emit(OpReturn)
	fn := b.Assemble()

	result, err := Invoke(fn, []types.Value{types.Int(3), types.Int(4)}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.Equal(types.Int(7)) {
		t.Errorf("result = %s, want 7", result)
	}
}

func TestInvokeLocalsAndBranches(t *testing.T) {
	// abs-ish: if a < 0 then 0 - a else a
	b := NewBuilder("abs", 1, 1, 0)
	neg := b.NewLabel()
	b.Emit(OpPushArgument, 0)
	b.Emit(OpSetLocal, 0)
	b.Emit(OpPushLocal, 0)
	b.EmitPushConstant(types.Int(0))
	b.EmitCall("int<", 2)
	b.EmitBranch(OpBranchIfTrue, neg)
	b.Emit(OpPushLocal, 0)
	b.Emit(OpReturn)
	b.Bind(neg)
	b.EmitPushConstant(types.Int(0))
	b.Emit(OpPushLocal, 0)
	b.EmitCall("int-", 2)
	b.Emit(OpReturn)
	fn := b.Assemble()

	tests := []struct{ in, want int64 }{{5, 5}, {-5, 5}, {0, 0}}
	for _, tt := range tests {
		result, err := Invoke(fn, []types.Value{types.Int(tt.in)}, nil)
		if err != nil {
			t.Fatalf("Invoke(%d): %v", tt.in, err)
		}
		if !result.Equal(types.Int(tt.want)) {
			t.Errorf("abs(%d) = %s, want %d", tt.in, result, tt.want)
		}
	}
}

func TestInvokeLoop(t *testing.T) {
	// Sum 1..n using a loop with a back edge.
	b := NewBuilder("sum", 1, 2, 0)
	top := b.NewLabel()
	done := b.NewLabel()
	b.EmitPushConstant(types.Int(0))
	b.Emit(OpSetLocal, 0) // acc = 0
	b.Emit(OpPushArgument, 0)
	b.Emit(OpSetLocal, 1) // i = n
	b.Bind(top)
	b.Emit(OpPushLocal, 1)
	b.EmitPushConstant(types.Int(0))
	b.EmitCall("int=", 2)
	b.EmitBranch(OpBranchIfTrue, done)
	b.Emit(OpPushLocal, 0)
	b.Emit(OpPushLocal, 1)
	b.EmitCall("int+", 2)
	b.Emit(OpSetLocal, 0)
	b.Emit(OpPushLocal, 1)
	b.EmitPushConstant(types.Int(1))
	b.EmitCall("int-", 2)
	b.Emit(OpSetLocal, 1)
	b.EmitBranch(OpJump, top)
	b.Bind(done)
	b.Emit(OpPushLocal, 0)
	b.Emit(OpReturn)
	fn := b.Assemble()

	result, err := Invoke(fn, []types.Value{types.Int(10)}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.Equal(types.Int(55)) {
		t.Errorf("sum(10) = %s, want 55", result)
	}
}

func TestInvokeEntryPrimitiveFastPath(t *testing.T) {
	// Entry primitive succeeds: body never runs.
	b := NewBuilder("fastAdd", 2, 0, 0)
	b.SetEntryPrimitive("int+")
	b.EmitPushConstant(types.Int(-1))
	b.Emit(OpReturn)
	fn := b.Assemble()

	result, err := Invoke(fn, []types.Value{types.Int(2), types.Int(3)}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.Equal(types.Int(5)) {
		t.Errorf("result = %s, want 5 (fast path)", result)
	}
}

func TestInvokeEntryPrimitiveFallthrough(t *testing.T) {
	// Division by zero fails the entry primitive; the body runs instead.
	b := NewBuilder("safeDiv", 2, 0, 0)
	b.SetEntryPrimitive("int/")
	b.EmitPushConstant(types.Int(-1))
	b.Emit(OpReturn)
	fn := b.Assemble()

	result, err := Invoke(fn, []types.Value{types.Int(1), types.Int(0)}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.Equal(types.Int(-1)) {
		t.Errorf("result = %s, want -1 (fallback body)", result)
	}
}

func TestInvokePrimitiveFailurePropagates(t *testing.T) {
	b := NewBuilder("div", 2, 0, 0)
	b.Emit(OpPushArgument, 0)
	b.Emit(OpPushArgument, 1)
	b.EmitCall("int/", 2)
	b.Emit(OpReturn)
	fn := b.Assemble()

	_, err := Invoke(fn, []types.Value{types.Int(1), types.Int(0)}, nil)
	if err == nil {
		t.Fatal("division by zero should surface an error")
	}
}

func TestInvokeArityMismatch(t *testing.T) {
	b := NewBuilder("one", 1, 0, 0)
	b.Emit(OpReturnNil)
	fn := b.Assemble()

	if _, err := Invoke(fn, nil, nil); err == nil {
		t.Error("wrong argument count should error")
	}
}

func TestInvokeOuters(t *testing.T) {
	b := NewBuilder("closedOver", 0, 0, 1)
	b.Emit(OpPushOuter, 0)
	b.Emit(OpReturn)
	fn := b.Assemble()

	result, err := Invoke(fn, nil, []types.Value{types.Str("captured")})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.Equal(types.Str("captured")) {
		t.Errorf("result = %s, want captured outer", result)
	}
}

func TestInvokeBranchIfNil(t *testing.T) {
	b := NewBuilder("nilCheck", 1, 0, 0)
	isNil := b.NewLabel()
	b.Emit(OpPushArgument, 0)
	b.EmitBranch(OpBranchIfNil, isNil)
	b.EmitPushConstant(types.Bool(false))
	b.Emit(OpReturn)
	b.Bind(isNil)
	b.EmitPushConstant(types.Bool(true))
	b.Emit(OpReturn)
	fn := b.Assemble()

	tests := []struct {
		arg  types.Value
		want bool
	}{
		{types.Nil(), true},
		{types.Int(0), false},
		{types.Bool(false), false},
	}
	for _, tt := range tests {
		result, err := Invoke(fn, []types.Value{tt.arg}, nil)
		if err != nil {
			t.Fatalf("Invoke(%s): %v", tt.arg, err)
		}
		if !result.Equal(types.Bool(tt.want)) {
			t.Errorf("nilCheck(%s) = %s, want %v", tt.arg, result, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Function / disassembler tests
// ---------------------------------------------------------------------------

func TestContentHashStability(t *testing.T) {
	build := func() *Function {
		b := NewBuilder("h", 1, 0, 0)
		b.Emit(OpPushArgument, 0)
		b.Emit(OpReturn)
		return b.Assemble()
	}
	a, bfn := build(), build()
	if a.ContentHash() != bfn.ContentHash() {
		t.Error("identical functions should hash identically")
	}

	c := NewBuilder("h", 1, 0, 0)
	c.EmitPushConstant(types.Int(9))
	c.Emit(OpReturn)
	if a.ContentHash() == c.Assemble().ContentHash() {
		t.Error("different code should hash differently")
	}
}

func TestLiteralOutOfRangePanics(t *testing.T) {
	b := NewBuilder("f", 0, 0, 0)
	b.Emit(OpReturnNil)
	fn := b.Assemble()
	defer func() {
		if recover() == nil {
			t.Error("out-of-range literal access should panic")
		}
	}()
	fn.Literal(0)
}

func TestDisassemble(t *testing.T) {
	b := NewBuilder("demo", 1, 0, 0)
	skip := b.NewLabel()
	b.Emit(OpPushArgument, 0)
	b.EmitPushConstant(types.Int(2))
	b.EmitCall("int+", 2)
	b.EmitBranch(OpBranchIfNil, skip)
	b.Emit(OpReturn)
	b.Bind(skip)
	b.Emit(OpReturnNil)
	fn := b.Assemble()

	listing := fn.Disassemble()
	for _, want := range []string{
		"; === demo ===",
		"PUSH_ARGUMENT",
		"PUSH_LITERAL",
		"#int+",
		"CALL",
		"BRANCH_IF_NIL",
		"RETURN_NIL",
		"-> ",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}

	lines := fn.DisassembleToLines()
	if len(lines) != 6 {
		t.Errorf("DisassembleToLines: %d lines, want 6:\n%s", len(lines), strings.Join(lines, "\n"))
	}
}
