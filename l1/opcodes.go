package l1

import "fmt"

// Opcode is a level-one instruction. Opcodes 0–14 encode as a single
// nybble; the escape nybble 15 introduces an extended opcode whose value
// is 16 plus the following nybble.
type Opcode byte

const (
	// ExtensionEscape is the reserved nybble that prefixes extended
	// opcodes in the stream. It never appears as an Opcode value itself.
	ExtensionEscape byte = 15
)

const (
	OpCall          Opcode = 0  // Call callee literal: OpCall <lit> <nargs>; pops nargs, pushes result
	OpPushLiteral   Opcode = 1  // Push literal: OpPushLiteral <lit>
	OpPushLocal     Opcode = 2  // Push local: OpPushLocal <slot>
	OpSetLocal      Opcode = 3  // Pop and store to local: OpSetLocal <slot>
	OpPushArgument  Opcode = 4  // Push argument: OpPushArgument <index>
	OpPushOuter     Opcode = 5  // Push captured outer: OpPushOuter <index>
	OpPop           Opcode = 6  // Discard top of stack
	OpDup           Opcode = 7  // Duplicate top of stack
	OpJump          Opcode = 8  // Unconditional jump: OpJump <target>
	OpBranchIfTrue  Opcode = 9  // Pop boolean, jump when true: OpBranchIfTrue <target>
	OpBranchIfFalse Opcode = 10 // Pop boolean, jump when false: OpBranchIfFalse <target>
	OpReturn        Opcode = 11 // Return top of stack

	// Extended opcodes (≥16), written via the escape nybble.

	OpReturnNil   Opcode = 16 // Return the nil value
	OpBranchIfNil Opcode = 17 // Pop value, jump when nil: OpBranchIfNil <target>
)

// OperandType describes how one encoded operand is interpreted.
type OperandType uint8

const (
	OperandLiteral OperandType = iota // index into the literal pool
	OperandLocal                      // local slot index
	OperandArgument                   // argument index
	OperandOuter                      // outer (captured) index
	OperandCount                      // small immediate count
	OperandTarget                     // absolute nybble offset of a jump target
)

// OpcodeInfo provides metadata about each opcode for the assembler,
// disassembler and translator.
type OpcodeInfo struct {
	Name     string
	Operands []OperandType
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpCall:          {"CALL", []OperandType{OperandLiteral, OperandCount}},
	OpPushLiteral:   {"PUSH_LITERAL", []OperandType{OperandLiteral}},
	OpPushLocal:     {"PUSH_LOCAL", []OperandType{OperandLocal}},
	OpSetLocal:      {"SET_LOCAL", []OperandType{OperandLocal}},
	OpPushArgument:  {"PUSH_ARGUMENT", []OperandType{OperandArgument}},
	OpPushOuter:     {"PUSH_OUTER", []OperandType{OperandOuter}},
	OpPop:           {"POP", nil},
	OpDup:           {"DUP", nil},
	OpJump:          {"JUMP", []OperandType{OperandTarget}},
	OpBranchIfTrue:  {"BRANCH_IF_TRUE", []OperandType{OperandTarget}},
	OpBranchIfFalse: {"BRANCH_IF_FALSE", []OperandType{OperandTarget}},
	OpReturn:        {"RETURN", nil},
	OpReturnNil:     {"RETURN_NIL", nil},
	OpBranchIfNil:   {"BRANCH_IF_NIL", []OperandType{OperandTarget}},
}

// GetOpcodeInfo returns metadata for an opcode. Unknown opcodes get a
// placeholder name and no operands.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsBranch reports whether the opcode transfers control to an encoded
// target.
func (op Opcode) IsBranch() bool {
	switch op {
	case OpJump, OpBranchIfTrue, OpBranchIfFalse, OpBranchIfNil:
		return true
	}
	return false
}

// IsConditional reports whether the opcode may also fall through.
func (op Opcode) IsConditional() bool {
	return op.IsBranch() && op != OpJump
}

// IsReturn reports whether the opcode terminates execution of the
// function.
func (op Opcode) IsReturn() bool {
	return op == OpReturn || op == OpReturnNil
}

// AllOpcodes returns every defined opcode; used by tests to verify the
// metadata table is total.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		ops = append(ops, op)
	}
	return ops
}
