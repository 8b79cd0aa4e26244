// Package validate implements the pseudo-header validation stage that
// bridges HPACK-decoded header arrays and HTTP/1.x-shaped message objects:
// pseudo-header ordering and case rules, the request/response-specific
// pseudo-header sets, and trailer semantics. Headers are kept as an
// ordered []hpack.HeaderField rather than a map so that repeated header
// names (e.g. multiple Set-Cookie) survive the trip intact.
package validate

import (
	"strconv"
	"strings"

	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/hpack"
)

// Pseudo holds the parsed pseudo-header values for one message.
type Pseudo struct {
	Method    string
	Path      string
	Scheme    string
	Authority string
	Status    int // only meaningful for a response
}

// Result is the outcome of validating an initial-headers block: the parsed
// pseudo-headers plus the regular headers with all pseudo-headers stripped,
// in their original order.
type Result struct {
	Pseudo Pseudo
	Fields []hpack.HeaderField
}

var requestPseudo = map[string]bool{":method": true, ":path": true, ":scheme": true, ":authority": true}
var responsePseudo = map[string]bool{":status": true}

func protocolError(message string) error {
	return errors.NewTransport("validate.headers", uint32(http2.ErrCodeProtocol), message)
}

// partition splits fields into its leading pseudo-headers and the
// remainder, enforcing that no pseudo-header follows a regular header and
// that no name carries an uppercase ASCII letter (RFC 7540 §8.1.2.1/.2).
func partition(fields []hpack.HeaderField) (pseudo, regular []hpack.HeaderField, err error) {
	seenRegular := false
	for _, f := range fields {
		for i := 0; i < len(f.Name); i++ {
			if f.Name[i] >= 'A' && f.Name[i] <= 'Z' {
				return nil, nil, protocolError("header name contains an uppercase letter: " + f.Name)
			}
		}
		if strings.HasPrefix(f.Name, ":") {
			if seenRegular {
				return nil, nil, protocolError("pseudo-header " + f.Name + " appears after a regular header")
			}
			pseudo = append(pseudo, f)
			continue
		}
		seenRegular = true
		regular = append(regular, f)
	}
	return pseudo, regular, nil
}

// Headers validates a complete initial HEADERS block for
// a request or a response, returning the parsed pseudo-headers and the
// regular headers with pseudo-headers stripped.
func Headers(fields []hpack.HeaderField, isRequest bool) (Result, error) {
	pseudo, regular, err := partition(fields)
	if err != nil {
		return Result{}, err
	}

	allowed := responsePseudo
	if isRequest {
		allowed = requestPseudo
	}

	var p Pseudo
	counts := make(map[string]int, 4)
	for _, f := range pseudo {
		if !allowed[f.Name] {
			return Result{}, protocolError("unknown or misplaced pseudo-header: " + f.Name)
		}
		counts[f.Name]++
		switch f.Name {
		case ":method":
			p.Method = f.Value
		case ":path":
			p.Path = f.Value
		case ":scheme":
			p.Scheme = f.Value
		case ":authority":
			p.Authority = f.Value
		case ":status":
			p.Status, err = parseStatus(f.Value)
			if err != nil {
				return Result{}, err
			}
		}
	}

	if isRequest {
		for _, name := range []string{":method", ":path", ":scheme"} {
			if counts[name] != 1 {
				return Result{}, protocolError("request must carry exactly one " + name)
			}
		}
		if counts[":authority"] > 1 {
			return Result{}, protocolError("request must carry at most one :authority")
		}
		if p.Path == "" {
			return Result{}, protocolError(":path must be non-empty")
		}
	} else {
		if counts[":status"] != 1 {
			return Result{}, protocolError("response must carry exactly one :status")
		}
	}

	return Result{Pseudo: p, Fields: regular}, nil
}

func parseStatus(v string) (int, error) {
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, protocolError(":status must be decimal digits only")
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, protocolError(":status must be decimal digits only")
	}
	return n, nil
}

// Trailers validates a trailing HEADERS block: no pseudo-headers are
// permitted at all.
func Trailers(fields []hpack.HeaderField) ([]hpack.HeaderField, error) {
	pseudo, regular, err := partition(fields)
	if err != nil {
		return nil, err
	}
	if len(pseudo) > 0 {
		return nil, protocolError("trailers must not carry pseudo-headers")
	}
	return regular, nil
}

// connectionSpecific is the set of header names that have no meaning in
// HTTP/2 and must not be forwarded across the h1/h2 bridge (RFC 7540
// §8.1.2.2).
var connectionSpecific = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"transfer-encoding": true,
	"upgrade":           true,
	"te":                true, // "te: trailers" is allowed through by callers that check the value
}

// IsConnectionSpecific reports whether name (already lowercased) is one of
// the connection-specific headers that must be dropped when bridging
// between HTTP/1.x and HTTP/2 message representations.
func IsConnectionSpecific(name string) bool {
	return connectionSpecific[name]
}
