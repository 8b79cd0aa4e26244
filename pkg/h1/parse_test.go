package h1

import "testing"

func TestParseRequestBasic(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	msg, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if msg.Method != "GET" || msg.Path != "/index.html" {
		t.Fatalf("got method=%q path=%q", msg.Method, msg.Path)
	}
	if HeaderValue(msg.Headers, "host") != "example.com" {
		t.Fatalf("host header = %q", HeaderValue(msg.Headers, "host"))
	}
	if HeaderValue(msg.Headers, "Accept") != "*/*" {
		t.Fatalf("accept header = %q", HeaderValue(msg.Headers, "accept"))
	}
}

func TestParseRequestWithBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"
	msg, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if string(msg.Body) != "hello" {
		t.Fatalf("body = %q", msg.Body)
	}
}

func TestParseRequestRejectsMalformedLine(t *testing.T) {
	if _, err := ParseRequest([]byte("garbage\r\n\r\n")); err == nil {
		t.Fatalf("expected an error for a malformed request line")
	}
}

func TestParseResponseBasic(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nbody"
	msg, err := ParseResponse([]byte(raw))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if msg.StatusCode != 200 || msg.Reason != "OK" {
		t.Fatalf("status=%d reason=%q", msg.StatusCode, msg.Reason)
	}
	if string(msg.Body) != "body" {
		t.Fatalf("body = %q", msg.Body)
	}
}

func TestParseResponseRejectsNonNumericStatus(t *testing.T) {
	raw := "HTTP/1.1 OK Fine\r\n\r\n"
	if _, err := ParseResponse([]byte(raw)); err == nil {
		t.Fatalf("expected an error for a non-numeric status code")
	}
}

func TestHeaderOrderAndDuplicatesPreserved(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nSet-Cookie: a=1\r\nSet-Cookie: b=2\r\n\r\n"
	msg, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 distinct Set-Cookie entries, got %d", len(msg.Headers))
	}
	if msg.Headers[0].Value != "a=1" || msg.Headers[1].Value != "b=2" {
		t.Fatalf("unexpected header order: %+v", msg.Headers)
	}
}

func TestObsFoldContinuation(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Long: part1\r\n part2\r\n\r\n"
	msg, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if HeaderValue(msg.Headers, "x-long") != "part1 part2" {
		t.Fatalf("got %q", HeaderValue(msg.Headers, "x-long"))
	}
}
