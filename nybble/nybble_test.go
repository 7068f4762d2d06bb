package nybble

import "testing"

// ---------------------------------------------------------------------------
// Integer coding tests
// ---------------------------------------------------------------------------

func TestWriteIntEncoding(t *testing.T) {
	tests := []struct {
		value   int64
		nybbles []byte
	}{
		{0, []byte{0}},
		{9, []byte{9}},
		{10, []byte{10, 0}},
		{25, []byte{10, 15}},
		{26, []byte{11, 0}},
		{41, []byte{11, 15}},
		{42, []byte{12, 0, 0}},
		{297, []byte{12, 15, 15}},
		{298, []byte{13, 15, 0}},
		{300, []byte{13, 15, 2}},
		{313, []byte{13, 15, 15}},
		{314, []byte{14, 0, 1, 3, 10}},
		{0xFFFF, []byte{14, 15, 15, 15, 15}},
		{0x10000, []byte{15, 0, 0, 0, 1, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		w := NewWriter()
		w.WriteInt(tt.value)
		if w.Count() != len(tt.nybbles) {
			t.Errorf("WriteInt(%d): %d nybbles, want %d", tt.value, w.Count(), len(tt.nybbles))
			continue
		}
		r := NewReader(w.Bytes(), w.Count())
		for i, want := range tt.nybbles {
			if got := r.ReadNybble(); got != want {
				t.Errorf("WriteInt(%d): nybble %d = %d, want %d", tt.value, i, got, want)
			}
		}
	}
}

func TestIntRoundTrip(t *testing.T) {
	values := []int64{
		0, 1, 5, 9, 10, 11, 25, 26, 41, 42, 100, 297, 298, 313, 314,
		1000, 0xFFFF, 0x10000, 123456789, 0xFFFFFFFF,
	}

	w := NewWriter()
	for _, v := range values {
		w.WriteInt(v)
	}

	r := NewReader(w.Bytes(), w.Count())
	for _, want := range values {
		if got := r.ReadInt(); got != want {
			t.Errorf("round trip: got %d, want %d", got, want)
		}
	}
	if !r.AtEnd() {
		t.Error("reader should be exhausted")
	}
}

func TestMixedStream(t *testing.T) {
	w := NewWriter()
	w.WriteNybble(3)
	w.WriteInt(300)
	w.WriteNybble(15)
	w.WriteInt(7)

	r := NewReader(w.Bytes(), w.Count())
	if got := r.ReadNybble(); got != 3 {
		t.Errorf("nybble = %d, want 3", got)
	}
	if got := r.ReadInt(); got != 300 {
		t.Errorf("int = %d, want 300", got)
	}
	if got := r.ReadNybble(); got != 15 {
		t.Errorf("nybble = %d, want 15", got)
	}
	if got := r.ReadInt(); got != 7 {
		t.Errorf("int = %d, want 7", got)
	}
}

func TestOddNybbleCount(t *testing.T) {
	w := NewWriter()
	w.WriteNybble(5)
	w.WriteNybble(6)
	w.WriteNybble(7)
	if w.Count() != 3 {
		t.Fatalf("Count = %d, want 3", w.Count())
	}
	if len(w.Bytes()) != 2 {
		t.Fatalf("len(Bytes) = %d, want 2", len(w.Bytes()))
	}

	r := NewReader(w.Bytes(), w.Count())
	for i, want := range []byte{5, 6, 7} {
		if got := r.ReadNybble(); got != want {
			t.Errorf("nybble %d = %d, want %d", i, got, want)
		}
	}
	if !r.AtEnd() {
		t.Error("reader should be at end after three nybbles")
	}
}

func TestReaderSetPos(t *testing.T) {
	w := NewWriter()
	w.WriteInt(5)
	w.WriteInt(100)

	r := NewReader(w.Bytes(), w.Count())
	r.ReadInt()
	mark := r.Pos()
	if got := r.ReadInt(); got != 100 {
		t.Fatalf("first read = %d, want 100", got)
	}
	r.SetPos(mark)
	if got := r.ReadInt(); got != 100 {
		t.Errorf("re-read = %d, want 100", got)
	}
}

func TestWriteNybbleRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("WriteNybble(16) should panic")
		}
	}()
	NewWriter().WriteNybble(16)
}

func TestReadPastEndPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("reading past end should panic")
		}
	}()
	r := NewReader(nil, 0)
	r.ReadNybble()
}

func TestWriteIntNegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("WriteInt(-1) should panic")
		}
	}()
	NewWriter().WriteInt(-1)
}

func FuzzIntRoundTrip(f *testing.F) {
	f.Add(int64(0))
	f.Add(int64(9))
	f.Add(int64(42))
	f.Add(int64(313))
	f.Add(int64(0xFFFF))
	f.Fuzz(func(t *testing.T, v int64) {
		if v < 0 || v > 0xFFFFFFFF {
			t.Skip()
		}
		w := NewWriter()
		w.WriteInt(v)
		r := NewReader(w.Bytes(), w.Count())
		if got := r.ReadInt(); got != v {
			t.Errorf("round trip: got %d, want %d", got, v)
		}
		if !r.AtEnd() {
			t.Errorf("value %d: stream not exhausted", v)
		}
	})
}
