package hpack

import (
	"reflect"
	"testing"
)

func TestRoundTripStaticOnly(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	fields := []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/"},
		{Name: ":authority", Value: "example.com"},
	}
	block := enc.Encode(nil, fields)

	got, err := dec.Decode(block)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, fields) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, fields)
	}
}

func TestRoundTripDynamicInsertAndReuse(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	// "accept-encoding" already has a static-table entry (index 16, value
	// "gzip, deflate"); a different value is a name-only match, which gets
	// literal-with-incremental-indexing and an insert on the first call.
	first := []HeaderField{
		{Name: "accept-encoding", Value: "br"},
	}
	block1 := enc.Encode(nil, first)
	got1, err := dec.Decode(block1)
	if err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if !reflect.DeepEqual(got1, first) {
		t.Fatalf("first round trip mismatch: got %+v want %+v", got1, first)
	}

	// Second call should reuse the dynamic table entry as an indexed
	// representation, not re-emit the literal.
	block2 := enc.Encode(nil, first)
	if len(block2) >= len(block1) {
		t.Fatalf("expected indexed reuse to be shorter than the initial literal: %d vs %d", len(block2), len(block1))
	}
	got2, err := dec.Decode(block2)
	if err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if !reflect.DeepEqual(got2, first) {
		t.Fatalf("second round trip mismatch: got %+v want %+v", got2, first)
	}
}

func TestRoundTripNeverIndexedNotStored(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	sensitive := []HeaderField{
		{Name: "authorization", Value: "Bearer sekret", Sensitive: true},
	}
	block := enc.Encode(nil, sensitive)
	got, err := dec.Decode(block)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, sensitive) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, sensitive)
	}
	if enc.DynamicTableSize() != 0 {
		t.Fatalf("never-indexed field must not enter the dynamic table, size=%d", enc.DynamicTableSize())
	}
}

// TestSizeUpdateCoalescing checks that a limit sequence of
// 4096 -> 1024 -> 2048 between Encode calls emits exactly two
// dynamic-table-size-update representations (the minimum reached and the
// final value) ahead of the first literal, not one per SetMaxDynamicTableSize
// call.
func TestSizeUpdateCoalescing(t *testing.T) {
	enc := NewEncoder(4096)
	enc.SetMaxDynamicTableSize(1024)
	enc.SetMaxDynamicTableSize(2048)

	block := enc.Encode(nil, []HeaderField{{Name: "x-a", Value: "b"}})

	pos := 0
	updates := 0
	for pos < len(block) && block[pos]&0xe0 == 0x20 {
		_, n, err := decodeInt(block[pos:], 5)
		if err != nil {
			t.Fatalf("decodeInt on size update: %v", err)
		}
		pos += n
		updates++
	}
	if updates != 2 {
		t.Fatalf("expected exactly 2 size-update representations, got %d", updates)
	}
	if pos >= len(block) || block[pos]&0xf0 != 0x00 {
		t.Fatalf("expected a literal-without-indexing representation after the size updates")
	}

	dec := NewDecoder(4096)
	got, err := dec.Decode(block)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []HeaderField{{Name: "x-a", Value: "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decode after size update mismatch: got %+v want %+v", got, want)
	}
}

func TestSizeUpdateRejectsAboveUpperBound(t *testing.T) {
	dec := NewDecoder(100)
	enc := NewEncoder(4096)
	enc.SetMaxDynamicTableSize(4096) // encoder-side limit unrelated to decoder's ceiling

	block := enc.Encode(nil, []HeaderField{{Name: "x-a", Value: "b"}})
	if _, err := dec.Decode(block); err == nil {
		t.Fatalf("expected decode to reject a size update above the negotiated ceiling")
	}
}

func TestHuffmanRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"a",
		"www.example.com",
		"The quick brown fox jumps over the lazy dog.",
		"123456789012345678901234567890",
	}
	for _, s := range cases {
		enc := huffmanEncode(nil, []byte(s))
		dec, err := huffmanDecode(nil, enc)
		if err != nil {
			t.Fatalf("huffmanDecode(%q): %v", s, err)
		}
		if string(dec) != s {
			t.Fatalf("huffman round trip mismatch: got %q want %q", dec, s)
		}
	}
}

func TestDynamicTableEviction(t *testing.T) {
	table := newDynamicTable(64)
	table.insert(HeaderField{Name: "a", Value: "1"}) // size 32+1+1=34
	table.insert(HeaderField{Name: "b", Value: "2"}) // size 34, total 68 > 64, evicts "a"
	if table.len() != 1 {
		t.Fatalf("expected eviction to leave 1 entry, got %d", table.len())
	}
	if hf, ok := table.lookup(1); !ok || hf.Name != "b" {
		t.Fatalf("expected surviving entry to be \"b\", got %+v ok=%v", hf, ok)
	}
}

func TestIndexZeroIsError(t *testing.T) {
	dec := NewDecoder(4096)
	if _, err := dec.Decode([]byte{0x80}); err == nil {
		t.Fatalf("expected index 0 indexed representation to be an error")
	}
}
