package hpack

// dynamicTable is the per-direction HPACK dynamic table: a most-recent-first
// sequence of header fields with a byte-accounted size limit. Insertion adds
// to the front; eviction removes from the tail once the accounted size
// exceeds the limit (RFC 7541 §2.3.2).
//
// Each Encoder and each Decoder owns one of these, since encoder and
// decoder tables are independent despite sharing wire-format index space
// with the static table.
type dynamicTable struct {
	entries []HeaderField // entries[0] is the most recently inserted
	size    uint32        // sum of entries[i].size()
	limit   uint32        // current negotiated limit the table is held to

	// limitUpper bounds how high a future SETTINGS-driven size update may
	// raise limit; the decoder rejects a dynamic-table-size-update
	// exceeding it.
	limitUpper uint32
}

func newDynamicTable(limit uint32) *dynamicTable {
	return &dynamicTable{limit: limit, limitUpper: limit}
}

// setLimitUpper adjusts the ceiling a future size update may raise limit
// to. The current limit is left alone unless it exceeds the new ceiling, in
// which case it is lowered to the ceiling and entries are evicted to fit.
// Called when local SETTINGS changes header_table_size.
func (t *dynamicTable) setLimitUpper(upper uint32) {
	t.limitUpper = upper
	if t.limit > upper {
		t.setLimit(upper)
	}
}

// setLimit applies an HPACK dynamic-table-size-update, evicting from the
// tail until size fits within the new limit.
func (t *dynamicTable) setLimit(limit uint32) {
	t.limit = limit
	t.evictToFit()
}

// insert adds hf to the front of the table, evicting from the tail as
// needed. An entry larger than the table's own limit results in the table
// being fully evicted and the entry not being stored at all (RFC 7541
// §4.4): insertion never makes the table exceed limit.
func (t *dynamicTable) insert(hf HeaderField) {
	sz := hf.size()
	if sz > t.limit {
		t.entries = nil
		t.size = 0
		return
	}
	t.entries = append([]HeaderField{hf}, t.entries...)
	t.size += sz
	t.evictToFit()
}

func (t *dynamicTable) evictToFit() {
	for t.size > t.limit && len(t.entries) > 0 {
		last := t.entries[len(t.entries)-1]
		t.entries = t.entries[:len(t.entries)-1]
		t.size -= last.size()
	}
}

// lookup resolves a 1-based dynamic index (already offset past the static
// table's 61 entries by the caller) to its entry.
func (t *dynamicTable) lookup(idx int) (HeaderField, bool) {
	if idx < 1 || idx > len(t.entries) {
		return HeaderField{}, false
	}
	return t.entries[idx-1], true
}

// findFull returns the 1-based dynamic index of an exact name+value match,
// most-recent first, or 0 if none.
func (t *dynamicTable) findFull(name, value string) int {
	for i, hf := range t.entries {
		if hf.Name == name && hf.Value == value {
			return i + 1
		}
	}
	return 0
}

// findName returns the 1-based dynamic index of the most recent entry with
// a matching name, or 0 if none.
func (t *dynamicTable) findName(name string) int {
	for i, hf := range t.entries {
		if hf.Name == name {
			return i + 1
		}
	}
	return 0
}

func (t *dynamicTable) len() int {
	return len(t.entries)
}
