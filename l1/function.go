// Package l1 implements level-one compiled code: the nybble-encoded,
// stack-oriented instruction format produced by the front end, along
// with its assembler, disassembler and the unoptimized interpreter tier.
package l1

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/stylpe/Avail-sub004/types"
)

// Function is a level-one compiled function: a literal pool, frame
// layout counts, and a packed nybblecode stream. Functions are immutable
// once built.
type Function struct {
	Name      string
	NumArgs   int
	NumLocals int
	NumOuters int

	// EntryPrimitive optionally names a primitive attempted on the raw
	// arguments before the body runs. When the attempt fails, execution
	// falls back to the nybblecode body.
	EntryPrimitive string

	Literals []types.Value
	Codes    []byte // packed nybbles, high nybble first
	NumCodes int    // nybble count of the code stream
}

// Literal returns the literal at the given pool index. Out-of-range
// indices are front-end faults and panic.
func (f *Function) Literal(index int) types.Value {
	if index < 0 || index >= len(f.Literals) {
		panic("l1: literal index out of range")
	}
	return f.Literals[index]
}

// ContentHash returns a digest of the function's behavior-relevant
// content, used as its identity in the content-addressed store.
func (f *Function) ContentHash() [32]byte {
	h := sha256.New()
	var counts [8]byte
	binary.BigEndian.PutUint16(counts[0:], uint16(f.NumArgs))
	binary.BigEndian.PutUint16(counts[2:], uint16(f.NumLocals))
	binary.BigEndian.PutUint16(counts[4:], uint16(f.NumOuters))
	binary.BigEndian.PutUint16(counts[6:], uint16(f.NumCodes))
	h.Write(counts[:])
	h.Write([]byte(f.EntryPrimitive))
	h.Write([]byte{0})
	for _, lit := range f.Literals {
		h.Write([]byte{byte(lit.Kind)})
		h.Write([]byte(lit.String()))
		h.Write([]byte{0})
	}
	h.Write(f.Codes)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
