package util

import "testing"

func TestMinMax(t *testing.T) {
	if Min(3, 7) != 3 {
		t.Error("Min(3,7) != 3")
	}
	if Max(3, 7) != 7 {
		t.Error("Max(3,7) != 7")
	}
	if Min(uintptr(0x1000), uintptr(0x10)) != 0x10 {
		t.Error("Min over uintptr failed")
	}
}

func TestRoundupRounddown(t *testing.T) {
	cases := []struct {
		v, b     uintptr
		up, down uintptr
	}{
		{0, 16, 0, 0},
		{1, 16, 16, 0},
		{16, 16, 16, 16},
		{17, 16, 32, 16},
		{0x1234, 0x1000, 0x2000, 0x1000},
	}
	for _, c := range cases {
		if got := Roundup(c.v, c.b); got != c.up {
			t.Errorf("Roundup(%#x, %#x) = %#x, want %#x", c.v, c.b, got, c.up)
		}
		if got := Rounddown(c.v, c.b); got != c.down {
			t.Errorf("Rounddown(%#x, %#x) = %#x, want %#x", c.v, c.b, got, c.down)
		}
	}
}

func TestReadnWriten(t *testing.T) {
	buf := make([]byte, 16)
	Writen(buf, 8, 0, -1)
	if got := Readn(buf, 8, 0); got != -1 {
		t.Errorf("Readn after Writen(8) = %d, want -1", got)
	}

	Writen(buf, 4, 8, 0x7FFFFFFF)
	if got := Readn(buf, 4, 8); got != 0x7FFFFFFF {
		t.Errorf("Readn after Writen(4) = %#x, want %#x", got, 0x7FFFFFFF)
	}

	Writen(buf, 1, 12, -2)
	if got := Readn(buf, 1, 12); got != -2 {
		t.Errorf("Readn after Writen(1) = %d, want -2", got)
	}
}

func TestReadnOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Readn to panic on out-of-bounds access")
		}
	}()
	Readn(make([]byte, 4), 8, 0)
}

func TestWritenUnsupportedSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Writen to panic on an unsupported size")
		}
	}()
	Writen(make([]byte, 8), 3, 0, 0)
}
