// Package l2 implements the level-two optimizing code generator: it
// translates level-one nybblecode plus live type information into a
// control-flow graph of typed, register-based instructions, performs
// call-site folding and specialization of primitive calls, and lowers
// the result to an executable chunk.
package l2

import "fmt"

// Role classifies what a semantic value abstracts over.
type Role uint8

const (
	RoleArgument Role = iota // value of argument #Index
	RoleLocal                // value of local #Index at write version Version
	RoleOuter                // value of captured outer #Index
	RoleStack                // value of stack slot #Index at merge point Version
	RoleConstant             // a compile-time constant, numbered by Index
	RoleTemp                 // optimizer-introduced temporary #Index
)

// String returns a short name for a Role.
func (r Role) String() string {
	switch r {
	case RoleArgument:
		return "arg"
	case RoleLocal:
		return "local"
	case RoleOuter:
		return "outer"
	case RoleStack:
		return "stack"
	case RoleConstant:
		return "const"
	case RoleTemp:
		return "temp"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// SemanticValue identifies an abstract value independent of whichever
// registers happen to hold it. It is immutable and compared by value, so
// it serves as a manifest key. Many semantic values may share a register
// over time, and one semantic value may be duplicated into several
// registers across blocks.
//
// Frame distinguishes values of distinct activations once deeper
// inlining exists; the current translator works on a single frame.
type SemanticValue struct {
	Frame   int
	Role    Role
	Index   int
	Version int
}

// ArgumentValue identifies the value of the given argument.
func ArgumentValue(frame, index int) SemanticValue {
	return SemanticValue{Frame: frame, Role: RoleArgument, Index: index}
}

// LocalValue identifies the value of a local at a particular write
// version; each store to the local introduces a new version.
func LocalValue(frame, index, version int) SemanticValue {
	return SemanticValue{Frame: frame, Role: RoleLocal, Index: index, Version: version}
}

// OuterValue identifies the value of a captured outer.
func OuterValue(frame, index int) SemanticValue {
	return SemanticValue{Frame: frame, Role: RoleOuter, Index: index}
}

// StackValue identifies the value of operand-stack slot depth at the
// control-flow merge whose target program counter is pc. Edges into the
// same merge canonicalize their slots to these names so the merged
// block sees one identity per slot.
func StackValue(frame, depth, pc int) SemanticValue {
	return SemanticValue{Frame: frame, Role: RoleStack, Index: depth, Version: pc}
}

// ConstantValue identifies a compile-time constant by its interning
// number within one translation.
func ConstantValue(frame, id int) SemanticValue {
	return SemanticValue{Frame: frame, Role: RoleConstant, Index: id}
}

// TempValue identifies the id'th temporary introduced by optimization.
func TempValue(frame, id int) SemanticValue {
	return SemanticValue{Frame: frame, Role: RoleTemp, Index: id}
}

// String renders the semantic value for diagnostics.
func (sv SemanticValue) String() string {
	if sv.Version != 0 {
		return fmt.Sprintf("%s%d.%d", sv.Role, sv.Index, sv.Version)
	}
	return fmt.Sprintf("%s%d", sv.Role, sv.Index)
}
