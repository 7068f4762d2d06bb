package l2

import "fmt"

// Operation enumerates the level-two instruction set.
type Operation uint8

const (
	L2MoveConstant Operation = iota // load an immediate into a boxed register
	L2Move                          // copy between registers of one kind
	L2GetArgument                   // load an invocation argument
	L2GetOuter                      // load a captured outer
	L2Box                           // box an unboxed register into a boxed one
	L2Unbox                         // unbox a boxed register into an unboxed one
	L2Phi                           // merge-point pseudo-instruction; lowered to moves
	L2IntAdd                        // unboxed integer add
	L2IntSub                        // unboxed integer subtract
	L2IntMul                        // unboxed integer multiply
	L2IntLess                       // unboxed integer compare, boxed boolean result
	L2IntEq                         // unboxed integer equality, boxed boolean result
	L2FloatAdd                      // unboxed float add
	L2RunInfallible                 // generic call of a primitive that cannot fail
	L2CallPrimitive                 // generic call with success and failure edges
	L2TryPrimitive                  // entry fast path: success returns, failure branches
	L2Jump                          // unconditional branch
	L2JumpIfTrue                    // boolean branch, true and false edges
	L2JumpIfNil                     // nil-test branch, nil and non-nil edges
	L2Return                        // return a boxed register
	L2Fail                          // surface a primitive failure code to the caller
	L2Unreachable                   // dynamically unreachable; reaching it is a fault
)

// OperandKind is the shape of one operand slot in an operation's
// signature.
type OperandKind uint8

const (
	KRead OperandKind = iota
	KWrite
	KImmediate
	KPC
	KReadVector
)

// OperationInfo declares an operation's name, operand signature, and the
// properties the generator consults.
type OperationInfo struct {
	Name      string
	Signature []OperandKind

	// AltersControl marks operations that end a basic block.
	AltersControl bool

	// SideEffect marks operations that must be kept even when their
	// result is unused.
	SideEffect bool
}

// operationInfoTable maps operations to their metadata.
var operationInfoTable = map[Operation]OperationInfo{
	L2MoveConstant:  {"MOVE_CONSTANT", []OperandKind{KImmediate, KWrite}, false, false},
	L2Move:          {"MOVE", []OperandKind{KRead, KWrite}, false, false},
	L2GetArgument:   {"GET_ARGUMENT", []OperandKind{KImmediate, KWrite}, false, false},
	L2GetOuter:      {"GET_OUTER", []OperandKind{KImmediate, KWrite}, false, false},
	L2Box:           {"BOX", []OperandKind{KRead, KWrite}, false, false},
	L2Unbox:         {"UNBOX", []OperandKind{KRead, KWrite}, false, false},
	L2Phi:           {"PHI", []OperandKind{KReadVector, KWrite}, false, false},
	L2IntAdd:        {"INT_ADD", []OperandKind{KRead, KRead, KWrite}, false, false},
	L2IntSub:        {"INT_SUB", []OperandKind{KRead, KRead, KWrite}, false, false},
	L2IntMul:        {"INT_MUL", []OperandKind{KRead, KRead, KWrite}, false, false},
	L2IntLess:       {"INT_LESS", []OperandKind{KRead, KRead, KWrite}, false, false},
	L2IntEq:         {"INT_EQ", []OperandKind{KRead, KRead, KWrite}, false, false},
	L2FloatAdd:      {"FLOAT_ADD", []OperandKind{KRead, KRead, KWrite}, false, false},
	L2RunInfallible: {"RUN_INFALLIBLE_PRIMITIVE", []OperandKind{KImmediate, KReadVector, KWrite}, false, true},
	L2CallPrimitive: {"CALL_PRIMITIVE", []OperandKind{KImmediate, KReadVector, KWrite, KWrite, KPC, KPC}, true, true},
	L2TryPrimitive:  {"TRY_PRIMITIVE", []OperandKind{KImmediate, KReadVector, KWrite, KPC}, true, true},
	L2Jump:          {"JUMP", []OperandKind{KPC}, true, false},
	L2JumpIfTrue:    {"JUMP_IF_TRUE", []OperandKind{KRead, KPC, KPC}, true, false},
	L2JumpIfNil:     {"JUMP_IF_NIL", []OperandKind{KRead, KPC, KPC}, true, false},
	L2Return:        {"RETURN", []OperandKind{KRead}, true, false},
	L2Fail:          {"FAIL", []OperandKind{KRead}, true, false},
	L2Unreachable:   {"UNREACHABLE", nil, true, false},
}

// Info returns the metadata for an operation. Unknown operations are a
// construction-time fault elsewhere; here they get a placeholder.
func (op Operation) Info() OperationInfo {
	if info, ok := operationInfoTable[op]; ok {
		return info
	}
	return OperationInfo{Name: fmt.Sprintf("UNKNOWN(%d)", uint8(op))}
}

// String returns the operation's name.
func (op Operation) String() string { return op.Info().Name }
