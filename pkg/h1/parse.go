// Package h1 provides a minimal HTTP/1.x request/response line-and-header
// parser: a bufio-buffered request-line or status-line read, then
// MIME-style header lines, then the remaining bytes as body. Header order
// is preserved (an ordered []hpack.HeaderField rather than a map) since
// the header validation stage needs first-seen order to detect misplaced
// pseudo-headers once the message crosses into HTTP/2.
package h1

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/hpack"
)

// Message is a parsed HTTP/1.x request or response line plus its headers
// and any trailing body bytes still buffered.
type Message struct {
	IsRequest bool

	Method string
	Path   string

	StatusCode int
	Reason     string

	Headers []hpack.HeaderField
	Body    []byte
}

func parseError(message string) error {
	return errors.NewAssertion("h1.parse", message)
}

// ParseRequest parses a full HTTP/1.x request (request line, headers,
// optional body) from raw.
func ParseRequest(raw []byte) (Message, error) {
	r := bufio.NewReader(bytes.NewReader(raw))
	line, err := readLine(r)
	if err != nil {
		return Message{}, parseError("failed to read request line")
	}
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return Message{}, parseError("malformed request line: " + line)
	}

	headers, err := readHeaders(r)
	if err != nil {
		return Message{}, err
	}
	body, _ := readRest(r)

	return Message{
		IsRequest: true,
		Method:    parts[0],
		Path:      parts[1],
		Headers:   headers,
		Body:      body,
	}, nil
}

// ParseResponse parses a full HTTP/1.x response (status line, headers,
// optional body) from raw.
func ParseResponse(raw []byte) (Message, error) {
	r := bufio.NewReader(bytes.NewReader(raw))
	line, err := readLine(r)
	if err != nil {
		return Message{}, parseError("failed to read status line")
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return Message{}, parseError("malformed status line: " + line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return Message{}, parseError("non-numeric status code: " + parts[1])
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	headers, err := readHeaders(r)
	if err != nil {
		return Message{}, err
	}
	body, _ := readRest(r)

	return Message{
		IsRequest:  false,
		StatusCode: code,
		Reason:     reason,
		Headers:    headers,
		Body:       body,
	}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeaders reads "Name: Value" lines up to the blank line terminating
// the header block, folding obs-fold continuation lines (leading space or
// tab) into the previous header's value per RFC 7230 §3.2.4, and preserving
// first-seen order (including repeats) since duplicate header names are
// semantically distinct entries, not a single merged value.
func readHeaders(r *bufio.Reader) ([]hpack.HeaderField, error) {
	var headers []hpack.HeaderField
	for {
		raw, err := r.ReadString('\n')
		if err != nil && raw == "" {
			break
		}
		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			break
		}
		if (line[0] == ' ' || line[0] == '\t') && len(headers) > 0 {
			headers[len(headers)-1].Value += " " + strings.TrimSpace(line)
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, parseError("malformed header line: " + line)
		}
		name := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		headers = append(headers, hpack.HeaderField{Name: name, Value: value})
		if err != nil {
			break
		}
	}
	return headers, nil
}

func readRest(r *bufio.Reader) ([]byte, error) {
	var body []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return body, nil
}

// HeaderValue returns the first value for name (case-insensitive), or ""
// if absent.
func HeaderValue(headers []hpack.HeaderField, name string) string {
	name = strings.ToLower(name)
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}
