package hpack

// staticTable is the fixed 61-entry table from RFC 7541 Appendix A. It is
// data, not library code: every HPACK implementation ships the identical
// table, and the indices are wire-format constants, not an implementation
// choice.
var staticTable = [61]HeaderField{
	{Name: ":authority", Value: ""},
	{Name: ":method", Value: "GET"},
	{Name: ":method", Value: "POST"},
	{Name: ":path", Value: "/"},
	{Name: ":path", Value: "/index.html"},
	{Name: ":scheme", Value: "http"},
	{Name: ":scheme", Value: "https"},
	{Name: ":status", Value: "200"},
	{Name: ":status", Value: "204"},
	{Name: ":status", Value: "206"},
	{Name: ":status", Value: "304"},
	{Name: ":status", Value: "400"},
	{Name: ":status", Value: "404"},
	{Name: ":status", Value: "500"},
	{Name: "accept-charset", Value: ""},
	{Name: "accept-encoding", Value: "gzip, deflate"},
	{Name: "accept-language", Value: ""},
	{Name: "accept-ranges", Value: ""},
	{Name: "accept", Value: ""},
	{Name: "access-control-allow-origin", Value: ""},
	{Name: "age", Value: ""},
	{Name: "allow", Value: ""},
	{Name: "authorization", Value: ""},
	{Name: "cache-control", Value: ""},
	{Name: "content-disposition", Value: ""},
	{Name: "content-encoding", Value: ""},
	{Name: "content-language", Value: ""},
	{Name: "content-length", Value: ""},
	{Name: "content-location", Value: ""},
	{Name: "content-range", Value: ""},
	{Name: "content-type", Value: ""},
	{Name: "cookie", Value: ""},
	{Name: "date", Value: ""},
	{Name: "etag", Value: ""},
	{Name: "expect", Value: ""},
	{Name: "expires", Value: ""},
	{Name: "from", Value: ""},
	{Name: "host", Value: ""},
	{Name: "if-match", Value: ""},
	{Name: "if-modified-since", Value: ""},
	{Name: "if-none-match", Value: ""},
	{Name: "if-range", Value: ""},
	{Name: "if-unmodified-since", Value: ""},
	{Name: "last-modified", Value: ""},
	{Name: "link", Value: ""},
	{Name: "location", Value: ""},
	{Name: "max-forwards", Value: ""},
	{Name: "proxy-authenticate", Value: ""},
	{Name: "proxy-authorization", Value: ""},
	{Name: "range", Value: ""},
	{Name: "referer", Value: ""},
	{Name: "refresh", Value: ""},
	{Name: "retry-after", Value: ""},
	{Name: "server", Value: ""},
	{Name: "set-cookie", Value: ""},
	{Name: "strict-transport-security", Value: ""},
	{Name: "transfer-encoding", Value: ""},
	{Name: "user-agent", Value: ""},
	{Name: "vary", Value: ""},
	{Name: "via", Value: ""},
	{Name: "www-authenticate", Value: ""},
}

// staticNameIndex maps a header name to the lowest static index carrying
// it, 1-based, 0 meaning absent. Used by the encoder to find a name-only
// match when no full name+value match exists.
var staticNameIndex = buildStaticNameIndex()

// staticFullIndex maps "name\x00value" to its 1-based static index, for an
// exact match.
var staticFullIndex = buildStaticFullIndex()

func buildStaticNameIndex() map[string]int {
	m := make(map[string]int, 61)
	for i, hf := range staticTable {
		if _, ok := m[hf.Name]; !ok {
			m[hf.Name] = i + 1
		}
	}
	return m
}

func buildStaticFullIndex() map[string]int {
	m := make(map[string]int, 61)
	for i, hf := range staticTable {
		m[hf.Name+"\x00"+hf.Value] = i + 1
	}
	return m
}

// staticLookup returns the HeaderField at 1-based static index idx, and
// whether idx was in range.
func staticLookup(idx int) (HeaderField, bool) {
	if idx < 1 || idx > len(staticTable) {
		return HeaderField{}, false
	}
	return staticTable[idx-1], true
}
