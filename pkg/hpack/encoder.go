package hpack

// Encoder turns a sequence of HeaderField values into an HPACK-encoded
// header block, maintaining one side's dynamic table across calls to
// Encode(). A connection owns one Encoder, for the header blocks it sends.
type Encoder struct {
	table *dynamicTable

	// pendingMin/pendingEnd implement RFC 7541 §4.2's size-update
	// coalescing: if the peer's header_table_size setting changes more
	// than once between Encode calls, only the smallest value reached
	// and the final value need to be signaled on the wire, as two
	// leading dynamic-table-size-update representations.
	pendingMin *uint32
	pendingEnd uint32
}

// NewEncoder creates an Encoder whose dynamic table starts at limit.
func NewEncoder(limit uint32) *Encoder {
	return &Encoder{table: newDynamicTable(limit)}
}

// SetMaxDynamicTableSize changes the table's capacity, evicting
// immediately so the encoder's own matching stays consistent, and queues a
// size-update representation to be emitted at the start of the next
// Encode call.
func (e *Encoder) SetMaxDynamicTableSize(limit uint32) {
	if e.pendingMin == nil {
		min := e.table.limit
		if limit < min {
			min = limit
		}
		e.pendingMin = &min
	} else if limit < *e.pendingMin {
		*e.pendingMin = limit
	}
	e.pendingEnd = limit
	e.table.setLimit(limit)
}

// DynamicTableSize reports the table's current accounted size, for Stats.
func (e *Encoder) DynamicTableSize() uint32 { return e.table.size }

// Encode appends the HPACK encoding of fields to dst and returns the
// extended slice. Per header: a full name+value match emits an indexed
// reference; a name-only match emits literal-with-incremental-indexing
// (reusing the name index) and inserts the pair; no match at all emits
// literal-without-indexing with a fresh literal name and does not touch
// the table. A Sensitive field always emits literal-never-indexed instead
// and is never inserted (RFC 7541 §7.1: never-indexed fields must not
// re-appear via the dynamic table either).
func (e *Encoder) Encode(dst []byte, fields []HeaderField) []byte {
	dst = e.flushPendingSizeUpdates(dst)
	for _, hf := range fields {
		dst = e.encodeField(dst, hf)
	}
	return dst
}

func (e *Encoder) flushPendingSizeUpdates(dst []byte) []byte {
	if e.pendingMin == nil {
		return dst
	}
	min := *e.pendingMin
	end := e.pendingEnd
	dst = encodeInt(dst, 0x20, uint64(min), 5)
	if end != min {
		dst = encodeInt(dst, 0x20, uint64(end), 5)
	}
	e.pendingMin = nil
	return dst
}

func (e *Encoder) encodeField(dst []byte, hf HeaderField) []byte {
	if hf.Sensitive {
		return e.encodeLiteralNeverIndexed(dst, hf)
	}

	if idx := e.findFullMatch(hf.Name, hf.Value); idx != 0 {
		return encodeInt(dst, 0x80, uint64(idx), 7)
	}
	if e.findNameMatch(hf.Name) != 0 {
		return e.encodeLiteral(dst, hf, 0x40, 6, true)
	}
	return e.encodeLiteralFreshName(dst, hf)
}

// encodeLiteralNeverIndexed writes the literal-never-indexed representation
// (0001xxxx), reusing a name index when one exists but never inserting.
func (e *Encoder) encodeLiteralNeverIndexed(dst []byte, hf HeaderField) []byte {
	nameIdx := e.findNameMatch(hf.Name)
	if nameIdx != 0 {
		dst = encodeInt(dst, 0x10, uint64(nameIdx), 4)
	} else {
		dst = encodeInt(dst, 0x10, 0, 4)
		dst = encodeString(dst, hf.Name)
	}
	return encodeString(dst, hf.Value)
}

// encodeLiteralFreshName writes the literal-without-indexing representation
// (0000xxxx) for a header whose name has no match in either table.
func (e *Encoder) encodeLiteralFreshName(dst []byte, hf HeaderField) []byte {
	dst = encodeInt(dst, 0x00, 0, 4)
	dst = encodeString(dst, hf.Name)
	return encodeString(dst, hf.Value)
}

// findFullMatch looks for an exact name+value match, static table first
// (cheaper, stable across the connection) then dynamic.
func (e *Encoder) findFullMatch(name, value string) int {
	if idx, ok := staticFullIndex[name+"\x00"+value]; ok {
		return idx
	}
	if idx := e.table.findFull(name, value); idx != 0 {
		return len(staticTable) + idx
	}
	return 0
}

func (e *Encoder) findNameMatch(name string) int {
	if idx, ok := staticNameIndex[name]; ok {
		return idx
	}
	if idx := e.table.findName(name); idx != 0 {
		return len(staticTable) + idx
	}
	return 0
}

// encodeLiteral writes a literal-with-incremental-indexing representation
// for hf, reusing the already-confirmed name match, and inserts hf into the
// dynamic table.
func (e *Encoder) encodeLiteral(dst []byte, hf HeaderField, tagByte byte, prefixBits uint, insert bool) []byte {
	nameIdx := e.findNameMatch(hf.Name)
	dst = encodeInt(dst, tagByte, uint64(nameIdx), prefixBits)
	dst = encodeString(dst, hf.Value)
	if insert {
		e.table.insert(hf)
	}
	return dst
}

// encodeInt appends value as an RFC 7541 §5.1 integer with the given
// prefix width, ORing the representation's tag bits into the first byte.
func encodeInt(dst []byte, tagByte byte, value uint64, prefixBits uint) []byte {
	max := uint64(1)<<prefixBits - 1
	if value < max {
		return append(dst, tagByte|byte(value))
	}
	dst = append(dst, tagByte|byte(max))
	value -= max
	for value >= 0x80 {
		dst = append(dst, byte(value&0x7f)|0x80)
		value >>= 7
	}
	return append(dst, byte(value))
}

// encodeString appends s as an RFC 7541 §5.2 string literal, choosing
// Huffman coding whenever it is strictly shorter than the literal bytes.
func encodeString(dst []byte, s string) []byte {
	huffLen := huffmanEncodedLen([]byte(s))
	huffBytes := (huffLen + 7) / 8
	if huffBytes < len(s) {
		dst = encodeInt(dst, 0x80, uint64(huffBytes), 7)
		return huffmanEncode(dst, []byte(s))
	}
	dst = encodeInt(dst, 0x00, uint64(len(s)), 7)
	return append(dst, s...)
}
