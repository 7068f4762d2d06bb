package l1

import (
	"fmt"

	"github.com/stylpe/Avail-sub004/nybble"
	"github.com/stylpe/Avail-sub004/types"
)

// Label identifies a position in a function body under assembly.
type Label int

// asmInst is one pending instruction. Branch instructions carry a label
// instead of an encoded target; everything else carries literal operand
// values.
type asmInst struct {
	op       Opcode
	operands []int64
	target   Label // valid when op.IsBranch()
}

// Builder assembles a level-one function. Branch targets are labels, so
// callers never deal with nybble offsets; Assemble resolves them with a
// relaxation loop, since the width of an encoded target depends on its
// value.
type Builder struct {
	name       string
	numArgs    int
	numLocals  int
	numOuters  int
	entryPrim  string
	literals   []types.Value
	insts      []asmInst
	labelCount int
	bound      map[Label]int // label -> instruction index
}

// NewBuilder starts assembling a function with the given frame layout.
func NewBuilder(name string, numArgs, numLocals, numOuters int) *Builder {
	return &Builder{
		name:      name,
		numArgs:   numArgs,
		numLocals: numLocals,
		numOuters: numOuters,
		bound:     make(map[Label]int),
	}
}

// SetEntryPrimitive declares the optional fast-path primitive attempted
// before the body.
func (b *Builder) SetEntryPrimitive(name string) { b.entryPrim = name }

// AddLiteral adds a value to the literal pool, reusing an existing equal
// entry, and returns its index.
func (b *Builder) AddLiteral(v types.Value) int {
	for i, lit := range b.literals {
		if lit.Equal(v) {
			return i
		}
	}
	b.literals = append(b.literals, v)
	return len(b.literals) - 1
}

// NewLabel allocates an unbound label.
func (b *Builder) NewLabel() Label {
	b.labelCount++
	return Label(b.labelCount)
}

// Bind attaches a label to the next emitted instruction. Binding twice
// is an assembler misuse and panics.
func (b *Builder) Bind(l Label) {
	if _, ok := b.bound[l]; ok {
		panic(fmt.Sprintf("l1: label %d bound twice", l))
	}
	b.bound[l] = len(b.insts)
}

// Emit appends an instruction with plain integer operands. The operand
// count must match the opcode's signature.
func (b *Builder) Emit(op Opcode, operands ...int64) {
	info := GetOpcodeInfo(op)
	if len(operands) != len(info.Operands) {
		panic(fmt.Sprintf("l1: %s expects %d operands, got %d",
			info.Name, len(info.Operands), len(operands)))
	}
	if op.IsBranch() {
		panic(fmt.Sprintf("l1: %s requires EmitBranch", info.Name))
	}
	b.insts = append(b.insts, asmInst{op: op, operands: operands})
}

// EmitBranch appends a branch to the given label.
func (b *Builder) EmitBranch(op Opcode, target Label) {
	if !op.IsBranch() {
		panic(fmt.Sprintf("l1: %s is not a branch", op))
	}
	b.insts = append(b.insts, asmInst{op: op, target: target})
}

// EmitCall appends a call of the named callee with nargs arguments,
// interning the callee symbol in the literal pool.
func (b *Builder) EmitCall(callee string, nargs int) {
	lit := b.AddLiteral(types.Symbol(callee))
	b.Emit(OpCall, int64(lit), int64(nargs))
}

// EmitPushConstant pushes a literal value, interning it in the pool.
func (b *Builder) EmitPushConstant(v types.Value) {
	b.Emit(OpPushLiteral, int64(b.AddLiteral(v)))
}

// Assemble encodes the instruction stream and returns the finished
// function. Target offsets are resolved by iterating until no encoded
// width changes, which terminates because offsets only grow.
func (b *Builder) Assemble() *Function {
	for l := range b.bound {
		if int(l) > b.labelCount {
			panic("l1: foreign label bound")
		}
	}

	// offsets[i] is the nybble offset of instruction i under the current
	// width estimate; start with every target encoded as zero.
	offsets := make([]int, len(b.insts)+1)
	for {
		changed := false
		pos := 0
		for i, inst := range b.insts {
			if offsets[i] != pos {
				offsets[i] = pos
				changed = true
			}
			pos += b.encodedWidth(inst, offsets)
		}
		if offsets[len(b.insts)] != pos {
			offsets[len(b.insts)] = pos
			changed = true
		}
		if !changed {
			break
		}
	}

	w := nybble.NewWriter()
	for _, inst := range b.insts {
		writeOpcode(w, inst.op)
		if inst.op.IsBranch() {
			w.WriteInt(int64(b.resolve(inst.target, offsets)))
			continue
		}
		for _, v := range inst.operands {
			w.WriteInt(v)
		}
	}

	return &Function{
		Name:           b.name,
		NumArgs:        b.numArgs,
		NumLocals:      b.numLocals,
		NumOuters:      b.numOuters,
		EntryPrimitive: b.entryPrim,
		Literals:       b.literals,
		Codes:          w.Bytes(),
		NumCodes:       w.Count(),
	}
}

// resolve returns the nybble offset a label currently points at.
func (b *Builder) resolve(l Label, offsets []int) int {
	idx, ok := b.bound[l]
	if !ok {
		panic(fmt.Sprintf("l1: branch to unbound label %d", l))
	}
	return offsets[idx]
}

// encodedWidth returns the nybble width of one instruction under the
// current offset estimates.
func (b *Builder) encodedWidth(inst asmInst, offsets []int) int {
	width := opcodeWidth(inst.op)
	if inst.op.IsBranch() {
		return width + intWidth(int64(b.resolve(inst.target, offsets)))
	}
	for _, v := range inst.operands {
		width += intWidth(v)
	}
	return width
}

// opcodeWidth returns the nybble width of an encoded opcode.
func opcodeWidth(op Opcode) int {
	if byte(op) >= 16 {
		return 2
	}
	return 1
}

// writeOpcode encodes an opcode, using the escape nybble for extended
// opcodes.
func writeOpcode(w *nybble.Writer, op Opcode) {
	if byte(op) >= 16 {
		w.WriteNybble(ExtensionEscape)
		w.WriteNybble(byte(op) - 16)
		return
	}
	w.WriteNybble(byte(op))
}

// intWidth returns the nybble width WriteInt will use for v.
func intWidth(v int64) int {
	switch {
	case v <= 9:
		return 1
	case v <= 41:
		return 2
	case v <= 313:
		return 3
	case v <= 0xFFFF:
		return 5
	default:
		return 9
	}
}

// readOpcode decodes an opcode from the reader, following the escape.
func readOpcode(r *nybble.Reader) Opcode {
	n := r.ReadNybble()
	if n == ExtensionEscape {
		return Opcode(16 + r.ReadNybble())
	}
	return Opcode(n)
}
