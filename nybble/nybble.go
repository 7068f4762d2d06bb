// Package nybble implements the 4-bit stream encoding used by level-one
// compiled code: a packed nybble reader/writer and the variable-length
// unsigned integer coding that the assembler and disassembler must agree
// on bit for bit.
package nybble

import "fmt"

// Integer coding, by first nybble:
//
//	0–9            the value itself, no extra nybbles
//	10, 11         1 extra nybble, offsets 10 and 26
//	12, 13         2 extra nybbles, offsets 42 and 58
//	14             4 extra nybbles, offset 0
//	15             8 extra nybbles, offset 0
//
// Extra nybbles are big-endian. The encoder always chooses the lowest
// tier that can represent the value, so every value has exactly one
// encoding.
var (
	// extraNybbles[n] is the number of nybbles following first nybble n.
	extraNybbles = [16]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 2, 2, 4, 8}

	// tierOffset[n] is the additive offset for first nybble n.
	tierOffset = [16]uint32{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 10, 26, 42, 58, 0, 0}
)

// Writer accumulates a packed nybble stream, high nybble of each byte
// first.
type Writer struct {
	data  []byte
	count int // nybbles written
}

// NewWriter returns an empty nybble writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Count returns the number of nybbles written so far.
func (w *Writer) Count() int { return w.count }

// Bytes returns the packed stream. A trailing unpaired nybble occupies
// the high half of the final byte, low half zero.
func (w *Writer) Bytes() []byte { return w.data }

// WriteNybble appends a single nybble. Values above 15 panic; callers
// encode larger values with WriteInt.
func (w *Writer) WriteNybble(n byte) {
	if n > 15 {
		panic(fmt.Sprintf("nybble: value %d out of range", n))
	}
	if w.count%2 == 0 {
		w.data = append(w.data, n<<4)
	} else {
		w.data[len(w.data)-1] |= n
	}
	w.count++
}

// WriteInt appends a non-negative integer in the variable-length coding.
// Values above math.MaxUint32 panic; the bytecode format never needs
// them.
func (w *Writer) WriteInt(v int64) {
	if v < 0 || v > 0xFFFFFFFF {
		panic(fmt.Sprintf("nybble: integer %d out of coding range", v))
	}
	u := uint32(v)
	switch {
	case u <= 9:
		w.WriteNybble(byte(u))
	case u <= 25:
		w.WriteNybble(10)
		w.writeBigEndian(u-10, 1)
	case u <= 41:
		w.WriteNybble(11)
		w.writeBigEndian(u-26, 1)
	case u <= 297:
		w.WriteNybble(12)
		w.writeBigEndian(u-42, 2)
	case u <= 313:
		w.WriteNybble(13)
		w.writeBigEndian(u-58, 2)
	case u <= 0xFFFF:
		w.WriteNybble(14)
		w.writeBigEndian(u, 4)
	default:
		w.WriteNybble(15)
		w.writeBigEndian(u, 8)
	}
}

// writeBigEndian appends v as exactly n big-endian nybbles.
func (w *Writer) writeBigEndian(v uint32, n int) {
	for shift := (n - 1) * 4; shift >= 0; shift -= 4 {
		w.WriteNybble(byte(v>>shift) & 0xF)
	}
}

// Reader walks a packed nybble stream by nybble index.
type Reader struct {
	data  []byte
	count int // total nybbles available
	pos   int // next nybble index
}

// NewReader returns a reader over a packed stream holding count nybbles.
func NewReader(data []byte, count int) *Reader {
	return &Reader{data: data, count: count}
}

// Pos returns the index of the next nybble to be read.
func (r *Reader) Pos() int { return r.pos }

// SetPos repositions the reader. Used by the disassembler and the
// translator when following recorded program counters.
func (r *Reader) SetPos(pos int) { r.pos = pos }

// AtEnd reports whether the stream is exhausted.
func (r *Reader) AtEnd() bool { return r.pos >= r.count }

// ReadNybble consumes and returns one nybble. Reading past the end is a
// malformed-stream fault and panics; level-one code is validated before
// it reaches this package.
func (r *Reader) ReadNybble() byte {
	if r.pos >= r.count {
		panic("nybble: read past end of stream")
	}
	b := r.data[r.pos/2]
	if r.pos%2 == 0 {
		b >>= 4
	}
	r.pos++
	return b & 0xF
}

// ReadInt consumes one variable-length integer and returns its value.
// Exactly mirrors Writer.WriteInt.
func (r *Reader) ReadInt() int64 {
	first := r.ReadNybble()
	extra := extraNybbles[first]
	if extra == 0 {
		return int64(first)
	}
	var v uint64
	for i := 0; i < extra; i++ {
		v = v<<4 | uint64(r.ReadNybble())
	}
	return int64(v + uint64(tierOffset[first]))
}
