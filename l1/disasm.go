package l1

import (
	"fmt"
	"strings"

	"github.com/stylpe/Avail-sub004/nybble"
)

// Disassemble returns a human-readable listing of the function.
func (f *Function) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", f.Name))
	sb.WriteString(fmt.Sprintf("; args=%d locals=%d outers=%d\n",
		f.NumArgs, f.NumLocals, f.NumOuters))
	if f.EntryPrimitive != "" {
		sb.WriteString(fmt.Sprintf("; entry primitive: %s\n", f.EntryPrimitive))
	}

	if len(f.Literals) > 0 {
		sb.WriteString("; Literals:\n")
		for i, lit := range f.Literals {
			display := lit.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
	}

	sb.WriteString("; Code:\n")
	r := nybble.NewReader(f.Codes, f.NumCodes)
	for !r.AtEnd() {
		offset := r.Pos()
		line := f.disassembleInstruction(r)
		sb.WriteString(fmt.Sprintf("%4d  %s\n", offset, line))
	}
	return sb.String()
}

// DisassembleToLines returns the code listing as a slice of lines.
func (f *Function) DisassembleToLines() []string {
	var lines []string
	r := nybble.NewReader(f.Codes, f.NumCodes)
	for !r.AtEnd() {
		offset := r.Pos()
		line := f.disassembleInstruction(r)
		lines = append(lines, fmt.Sprintf("%4d  %s", offset, line))
	}
	return lines
}

// disassembleInstruction decodes and formats the instruction at the
// reader's position, advancing past it.
func (f *Function) disassembleInstruction(r *nybble.Reader) string {
	op := readOpcode(r)
	info := GetOpcodeInfo(op)

	if len(info.Operands) == 0 {
		return info.Name
	}

	parts := []string{info.Name}
	for _, kind := range info.Operands {
		v := r.ReadInt()
		switch kind {
		case OperandLiteral:
			if int(v) < len(f.Literals) {
				parts = append(parts, fmt.Sprintf("%d ; %s", v, f.Literals[v]))
			} else {
				parts = append(parts, fmt.Sprintf("%d ; <bad literal>", v))
			}
		case OperandTarget:
			parts = append(parts, fmt.Sprintf("-> %d", v))
		default:
			parts = append(parts, fmt.Sprintf("%d", v))
		}
	}
	return strings.Join(parts, " ")
}
