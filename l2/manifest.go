package l2

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stylpe/Avail-sub004/types"
)

// binding is one manifest entry: the registers currently proven to hold
// the value, plus the strongest restriction proven for it.
type binding struct {
	registers   []*Register
	restriction types.Restriction
}

// Manifest is the live mapping, at one point of code generation, from
// semantic values to the registers holding them and the type/constant
// information proven about them. Every value present has at least one
// register; restrictions are always sound for every path reaching the
// current point.
type Manifest struct {
	bindings map[SemanticValue]*binding
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{bindings: make(map[SemanticValue]*binding)}
}

// Clone returns an independent copy; edge snapshots use this.
func (m *Manifest) Clone() *Manifest {
	out := NewManifest()
	for sv, b := range m.bindings {
		regs := make([]*Register, len(b.registers))
		copy(regs, b.registers)
		out.bindings[sv] = &binding{registers: regs, restriction: b.restriction}
	}
	return out
}

// Clear resets the manifest for re-entry into a fresh block.
func (m *Manifest) Clear() {
	m.bindings = make(map[SemanticValue]*binding)
}

// Size returns the number of tracked semantic values.
func (m *Manifest) Size() int { return len(m.bindings) }

// RecordDefinition binds a semantic value to a register just written,
// replacing any previous binding. The restriction describes what the
// write proved about the value.
func (m *Manifest) RecordDefinition(sv SemanticValue, r *Register, restriction types.Restriction) {
	m.bindings[sv] = &binding{
		registers:   []*Register{r},
		restriction: restriction.WithFlags(flagForKind(r.Kind)),
	}
}

// RecordAlso adds an additional register holding an equivalent form of
// an already-tracked value (for example the unboxed copy of a boxed
// integer).
func (m *Manifest) RecordAlso(sv SemanticValue, r *Register) {
	b, ok := m.bindings[sv]
	if !ok {
		panic(fmt.Sprintf("l2: RecordAlso of untracked value %s", sv))
	}
	for _, have := range b.registers {
		if have == r {
			return
		}
	}
	b.registers = append(b.registers, r)
	b.restriction.Flags |= flagForKind(r.Kind)
}

// RecordAlias makes dst an alias for src's current binding. No code is
// emitted; both names now denote the same registers.
func (m *Manifest) RecordAlias(dst, src SemanticValue) {
	b, ok := m.bindings[src]
	if !ok {
		panic(fmt.Sprintf("l2: alias of untracked value %s", src))
	}
	regs := make([]*Register, len(b.registers))
	copy(regs, b.registers)
	m.bindings[dst] = &binding{registers: regs, restriction: b.restriction}
}

// HasValue reports whether the value is tracked.
func (m *Manifest) HasValue(sv SemanticValue) bool {
	_, ok := m.bindings[sv]
	return ok
}

// Lookup returns all registers currently proven to hold the value.
func (m *Manifest) Lookup(sv SemanticValue) []*Register {
	if b, ok := m.bindings[sv]; ok {
		return b.registers
	}
	return nil
}

// RegisterFor returns a register of the requested kind holding the
// value, or nil when no such form is materialized.
func (m *Manifest) RegisterFor(sv SemanticValue, kind RegisterKind) *Register {
	for _, r := range m.Lookup(sv) {
		if r.Kind == kind {
			return r
		}
	}
	return nil
}

// RestrictionFor returns the strongest statically known information
// about the value.
func (m *Manifest) RestrictionFor(sv SemanticValue) (types.Restriction, bool) {
	if b, ok := m.bindings[sv]; ok {
		return b.restriction, true
	}
	return types.Restriction{}, false
}

// Restrict narrows the tracked restriction with newly proven
// information, such as the outcome of a type test along one edge.
func (m *Manifest) Restrict(sv SemanticValue, r types.Restriction) {
	b, ok := m.bindings[sv]
	if !ok {
		return
	}
	flags := b.restriction.Flags
	b.restriction = b.restriction.Intersect(r).WithFlags(flags)
}

// ForgetRegister removes a register from every binding before it is
// overwritten; bindings left with no register are dropped entirely, so
// the "every tracked value has a register" invariant holds.
func (m *Manifest) ForgetRegister(r *Register) {
	for sv, b := range m.bindings {
		for i, have := range b.registers {
			if have == r {
				b.registers = append(b.registers[:i], b.registers[i+1:]...)
				break
			}
		}
		if len(b.registers) == 0 {
			delete(m.bindings, sv)
		} else {
			b.restriction.Flags = flagsForRegisters(b.registers)
		}
	}
}

// PopulateFromIntersection fills the manifest from what is guaranteed
// along every incoming edge. A value survives only if every edge tracks
// it with a compatible restriction; its merged restriction is the union
// (widening) of the edge restrictions. When the edges disagree on which
// register holds a value, a phi is synthesized in the merging block and
// its destination becomes the new binding.
//
// With widen set (loop headers generated before their back edges), the
// restrictions of mutable values are additionally discarded, since a
// not-yet-seen back edge cannot be assumed to preserve them.
func (m *Manifest) PopulateFromIntersection(edges []*PCOperand, g *Generator, widen bool) {
	m.Clear()
	if len(edges) == 0 {
		return
	}

	first := edges[0].Manifest
	for sv, fb := range first.bindings {
		merged := fb.restriction
		compatible := true
		for _, e := range edges[1:] {
			ob, ok := e.Manifest.bindings[sv]
			if !ok || !merged.Compatible(ob.restriction) {
				compatible = false
				break
			}
			merged = merged.Union(ob.restriction)
		}
		if !compatible {
			continue
		}
		if widen {
			// The back edges are not among the inputs yet, so nothing
			// proven only along the forward edges may be trusted. Values
			// with mutable roles lose all type information; write-once
			// values (arguments, outers, interned constants, temporaries)
			// keep theirs, since no later edge can rebind them.
			switch sv.Role {
			case RoleLocal, RoleStack:
				merged = types.AnyRestriction()
			}
		}

		// Keep registers common to every edge.
		common := commonRegisters(sv, edges)
		if len(common) > 0 {
			m.bindings[sv] = &binding{
				registers:   common,
				restriction: merged.WithFlags(flagsForRegisters(common)),
			}
			continue
		}

		// The edges hold the value in different registers: synthesize a
		// phi selecting per-predecessor sources, preferring the boxed
		// form. Values with no kind common to all edges are dropped.
		// Widened (loop header) merges never synthesize phis: the back
		// edge is not among the inputs yet, so only values pinned to one
		// register on every path may survive.
		if widen {
			continue
		}
		kind, sources, ok := phiSources(sv, edges)
		if !ok {
			continue
		}
		dest := g.emitPhi(kind, sources, merged)
		m.bindings[sv] = &binding{
			registers:   []*Register{dest},
			restriction: merged.WithFlags(flagForKind(kind)),
		}
	}
}

// commonRegisters returns the registers bound to sv in every edge.
func commonRegisters(sv SemanticValue, edges []*PCOperand) []*Register {
	var common []*Register
	for _, r := range edges[0].Manifest.Lookup(sv) {
		inAll := true
		for _, e := range edges[1:] {
			found := false
			for _, or := range e.Manifest.Lookup(sv) {
				if or == r {
					found = true
					break
				}
			}
			if !found {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, r)
		}
	}
	return common
}

// phiSources picks a register kind available for sv along every edge and
// returns one source register per edge in predecessor order.
func phiSources(sv SemanticValue, edges []*PCOperand) (RegisterKind, []*Register, bool) {
	for _, kind := range []RegisterKind{KindBoxed, KindInt, KindFloat} {
		sources := make([]*Register, 0, len(edges))
		ok := true
		for _, e := range edges {
			r := e.Manifest.RegisterFor(sv, kind)
			if r == nil {
				ok = false
				break
			}
			sources = append(sources, r)
		}
		if ok {
			return kind, sources, true
		}
	}
	return 0, nil, false
}

// flagForKind maps a register kind to its availability flag.
func flagForKind(k RegisterKind) types.RestrictionFlag {
	switch k {
	case KindInt:
		return types.UnboxedInt
	case KindFloat:
		return types.UnboxedFloat
	default:
		return types.Boxed
	}
}

// flagsForRegisters unions the availability flags of a register set.
func flagsForRegisters(regs []*Register) types.RestrictionFlag {
	var f types.RestrictionFlag
	for _, r := range regs {
		f |= flagForKind(r.Kind)
	}
	return f
}

// String renders the manifest in a stable order for diagnostics.
func (m *Manifest) String() string {
	keys := make([]SemanticValue, 0, len(m.bindings))
	for sv := range m.bindings {
		keys = append(keys, sv)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	var parts []string
	for _, sv := range keys {
		b := m.bindings[sv]
		regs := make([]string, len(b.registers))
		for i, r := range b.registers {
			regs[i] = r.String()
		}
		parts = append(parts, fmt.Sprintf("%s=%s{%s}", sv, b.restriction, strings.Join(regs, "|")))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
