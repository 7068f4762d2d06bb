package l2

// RegisterCounter computes, per register class, the highest final index
// used by any operand of a finished instruction list. It is a pure
// function of the list; the chunk's register-file sizes are each
// max + 1.
type RegisterCounter struct {
	ObjectMax int
	IntMax    int
	FloatMax  int
}

// NewRegisterCounter returns a counter with all maxima at -1, so a list
// using no registers of a class yields a count of zero.
func NewRegisterCounter() *RegisterCounter {
	return &RegisterCounter{ObjectMax: -1, IntMax: -1, FloatMax: -1}
}

// Visit folds one instruction's operands into the counter.
func (c *RegisterCounter) Visit(in *Instruction) {
	for _, op := range in.Operands {
		forEachRegister(op, func(r *Register, _ bool) {
			c.note(r)
		})
	}
}

// note records one register reference.
func (c *RegisterCounter) note(r *Register) {
	switch r.Kind {
	case KindBoxed:
		if r.FinalIndex > c.ObjectMax {
			c.ObjectMax = r.FinalIndex
		}
	case KindInt:
		if r.FinalIndex > c.IntMax {
			c.IntMax = r.FinalIndex
		}
	case KindFloat:
		if r.FinalIndex > c.FloatMax {
			c.FloatMax = r.FinalIndex
		}
	}
}

// Counts returns the register-file sizes needed per class.
func (c *RegisterCounter) Counts() (objects, ints, floats int) {
	return c.ObjectMax + 1, c.IntMax + 1, c.FloatMax + 1
}
