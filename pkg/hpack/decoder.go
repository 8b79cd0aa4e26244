package hpack

// Decoder turns an HPACK-encoded header block into a sequence of
// HeaderField values, maintaining one side's dynamic table across calls to
// decode(). A connection owns one Decoder, for the header blocks it
// receives.
type Decoder struct {
	table *dynamicTable
}

// NewDecoder creates a Decoder whose dynamic table starts at limit and may
// never be resized above limit by a peer's size-update (the value this side
// advertised via SETTINGS header_table_size).
func NewDecoder(limit uint32) *Decoder {
	return &Decoder{table: newDynamicTable(limit)}
}

// SetMaxDynamicTableSize sets the ceiling the peer's size-update
// representations may raise the table to. Called when local SETTINGS
// changes header_table_size; never raises the current limit on its own,
// and lowers it (evicting as needed) when it is above the new ceiling.
func (d *Decoder) SetMaxDynamicTableSize(limit uint32) {
	d.table.setLimitUpper(limit)
}

// DynamicTableSize reports the table's current accounted size, for Stats.
func (d *Decoder) DynamicTableSize() uint32 { return d.table.size }

// Decode parses one complete header block (the concatenation of a
// HEADERS/PUSH_PROMISE frame's payload with any CONTINUATION frames in its
// sequence) into an ordered list of header fields. A field produced purely
// by a dynamic-table-size-update representation is not itself a header
// field and is not included in the result.
func (d *Decoder) Decode(block []byte) ([]HeaderField, error) {
	var out []HeaderField
	seenField := false
	pos := 0

	for pos < len(block) {
		b := block[pos]
		switch {
		case b&0x80 != 0: // indexed header field: 1xxxxxxx
			idx, n, err := decodeInt(block[pos:], 7)
			if err != nil {
				return nil, err
			}
			pos += n
			hf, err := d.resolveIndex(int(idx))
			if err != nil {
				return nil, err
			}
			out = append(out, hf)
			seenField = true

		case b&0xc0 == 0x40: // literal with incremental indexing: 01xxxxxx
			hf, n, err := d.decodeLiteral(block[pos:], 6)
			if err != nil {
				return nil, err
			}
			pos += n
			d.table.insert(hf)
			out = append(out, hf)
			seenField = true

		case b&0xe0 == 0x20: // dynamic table size update: 001xxxxx
			if seenField {
				return nil, errSizeUpdateOrder
			}
			newLimit, n, err := decodeInt(block[pos:], 5)
			if err != nil {
				return nil, err
			}
			pos += n
			if newLimit > uint64(d.table.limitUpper) {
				return nil, errSizeUpdateBounds
			}
			d.table.setLimit(uint32(newLimit))

		case b&0xf0 == 0x10: // literal never indexed: 0001xxxx
			hf, n, err := d.decodeLiteral(block[pos:], 4)
			if err != nil {
				return nil, err
			}
			hf.Sensitive = true
			pos += n
			out = append(out, hf)
			seenField = true

		case b&0xf0 == 0x00: // literal without indexing: 0000xxxx
			hf, n, err := d.decodeLiteral(block[pos:], 4)
			if err != nil {
				return nil, err
			}
			pos += n
			out = append(out, hf)
			seenField = true

		default:
			return nil, errInvalidHuffmanCode // unreachable: every byte matches one case above
		}
	}
	return out, nil
}

// decodeLiteral parses a literal representation (with incremental indexing,
// without indexing, or never indexed) starting at block[0], whose first
// byte carries the representation tag in its top bits and an index in the
// low prefixBits bits. Index 0 means the name is a literal string that
// follows; a nonzero index means the name is inherited from that static or
// dynamic entry.
func (d *Decoder) decodeLiteral(block []byte, prefixBits uint) (HeaderField, int, error) {
	nameIdx, n, err := decodeInt(block, prefixBits)
	if err != nil {
		return HeaderField{}, 0, err
	}
	pos := n

	var name string
	if nameIdx == 0 {
		s, used, err := decodeString(block[pos:])
		if err != nil {
			return HeaderField{}, 0, err
		}
		name = s
		pos += used
	} else {
		hf, err := d.resolveIndex(int(nameIdx))
		if err != nil {
			return HeaderField{}, 0, err
		}
		name = hf.Name
	}

	value, used, err := decodeString(block[pos:])
	if err != nil {
		return HeaderField{}, 0, err
	}
	pos += used

	return HeaderField{Name: name, Value: value}, pos, nil
}

// resolveIndex maps a wire index to its header field: 1-61 is the static
// table, 62+ is the dynamic table, most recently inserted entry first.
func (d *Decoder) resolveIndex(idx int) (HeaderField, error) {
	if idx == 0 {
		return HeaderField{}, errIndexZero
	}
	if idx <= len(staticTable) {
		hf, _ := staticLookup(idx)
		return hf, nil
	}
	hf, ok := d.table.lookup(idx - len(staticTable))
	if !ok {
		return HeaderField{}, errIndexOutOfRange
	}
	return hf, nil
}

// decodeInt parses an RFC 7541 §5.1 integer with the given prefix width
// (bits of the first byte available to the value before continuation).
// Returns the decoded value and the number of bytes consumed.
func decodeInt(b []byte, prefixBits uint) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, errTruncatedInput
	}
	max := uint64(1)<<prefixBits - 1
	val := uint64(b[0]) & max
	if val < max {
		return val, 1, nil
	}

	pos := 1
	var m uint
	for {
		if pos >= len(b) {
			return 0, 0, errTruncatedInput
		}
		octet := b[pos]
		pos++
		if m >= 63 {
			return 0, 0, errIntegerOverflow
		}
		add := uint64(octet&0x7f) << m
		if add > (1<<62)-val {
			return 0, 0, errIntegerOverflow
		}
		val += add
		m += 7
		if octet&0x80 == 0 {
			break
		}
	}
	return val, pos, nil
}

// decodeString parses an RFC 7541 §5.2 string literal: one bit selecting
// Huffman encoding, a 7-bit-prefixed length, then that many octets.
func decodeString(b []byte) (string, int, error) {
	if len(b) == 0 {
		return "", 0, errTruncatedInput
	}
	huff := b[0]&0x80 != 0
	length, n, err := decodeInt(b, 7)
	if err != nil {
		return "", 0, err
	}
	pos := n
	if uint64(pos)+length > uint64(len(b)) {
		return "", 0, errTruncatedInput
	}
	raw := b[pos : pos+int(length)]
	pos += int(length)

	if !huff {
		return string(raw), pos, nil
	}
	dec, err := huffmanDecode(nil, raw)
	if err != nil {
		return "", 0, err
	}
	return string(dec), pos, nil
}
