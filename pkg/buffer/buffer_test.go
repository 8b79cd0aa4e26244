package buffer

import "testing"

func TestAppendAndView(t *testing.T) {
	b := New()
	if err := b.Append([]byte("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Append([]byte(", world")); err != nil {
		t.Fatalf("append: %v", err)
	}
	got := string(b.AsView())
	want := "hello, world"
	if got != want {
		t.Fatalf("AsView() = %q, want %q", got, want)
	}
}

func TestShiftCompacts(t *testing.T) {
	b := NewWithData([]byte("0123456789"))
	b.Shift(4)
	if got := string(b.AsView()); got != "456789" {
		t.Fatalf("after Shift(4) = %q", got)
	}
	if err := b.Append([]byte("AB")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := string(b.AsView()); got != "456789AB" {
		t.Fatalf("after append = %q", got)
	}
}

func TestShiftBeyondLenEmpties(t *testing.T) {
	b := NewWithData([]byte("abc"))
	b.Shift(100)
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer, got len %d", b.Len())
	}
}

func TestAppendGrowsGeometrically(t *testing.T) {
	b := New()
	chunk := make([]byte, 300)
	if err := b.Append(chunk); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got, want := cap(b.AsView()), int(MinAlloc*GrowthFactor); got != want {
		t.Fatalf("expected the %d-byte floor grown once by %v to %d, got %d", MinAlloc, GrowthFactor, want, got)
	}
}

func TestAppendNoMemoryBeyondMax(t *testing.T) {
	b := New()
	huge := make([]byte, MaxSize+1)
	if err := b.Append(huge); err == nil {
		t.Fatalf("expected NoMemory error for oversized append")
	}
}

// TestChunkingIndependence checks, at the buffer level only, that feeding the same bytes via many
// small appends is equivalent to one large append.
func TestChunkingIndependence(t *testing.T) {
	whole := []byte("the quick brown fox jumps over the lazy dog")

	a := New()
	if err := a.Append(whole); err != nil {
		t.Fatalf("append: %v", err)
	}

	b := New()
	for i := 0; i < len(whole); i++ {
		if err := b.Append(whole[i : i+1]); err != nil {
			t.Fatalf("append byte %d: %v", i, err)
		}
	}

	if string(a.AsView()) != string(b.AsView()) {
		t.Fatalf("chunked append diverged from whole append")
	}
}
