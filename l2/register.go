package l2

import "fmt"

// RegisterKind is the storage class of a register.
type RegisterKind uint8

const (
	KindBoxed RegisterKind = iota // holds any tagged value
	KindInt                       // holds an unboxed int64
	KindFloat                     // holds an unboxed float64
)

// String returns a short name for a RegisterKind.
func (k RegisterKind) String() string {
	switch k {
	case KindBoxed:
		return "obj"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Register is an allocatable storage cell. Before allocation a register
// is identified by object identity (and its debug id); FinalIndex is
// assigned by the coloring step during chunk creation.
//
// Each register tracks the ids of instructions that read or write it.
// The ids index the owning generator's instruction arena; all mutation
// goes through instructionWasAdded/instructionWasRemoved so stale
// entries are detectable (see Generator.CheckUseConsistency).
type Register struct {
	Kind       RegisterKind
	FinalIndex int // -1 until colored

	id   int
	uses map[int]struct{} // instruction ids using this register
}

// addUse records that instruction id references this register.
func (r *Register) addUse(id int) {
	if r.uses == nil {
		r.uses = make(map[int]struct{})
	}
	r.uses[id] = struct{}{}
}

// removeUse erases a recorded reference.
func (r *Register) removeUse(id int) {
	delete(r.uses, id)
}

// UseCount returns how many instructions currently reference the
// register.
func (r *Register) UseCount() int { return len(r.uses) }

// String renders the register for diagnostics: the final index when
// allocated, otherwise the debug id.
func (r *Register) String() string {
	if r.FinalIndex >= 0 {
		return fmt.Sprintf("%s%d", r.Kind, r.FinalIndex)
	}
	return fmt.Sprintf("%s?%d", r.Kind, r.id)
}
