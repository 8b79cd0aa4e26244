package validate

import (
	"testing"

	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/hpack"
)

func TestHeadersValidRequest(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: "accept", Value: "*/*"},
	}
	res, err := Headers(fields, true)
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	if res.Pseudo.Method != "GET" || res.Pseudo.Path != "/" || res.Pseudo.Scheme != "https" || res.Pseudo.Authority != "example.com" {
		t.Fatalf("unexpected pseudo: %+v", res.Pseudo)
	}
	if len(res.Fields) != 1 || res.Fields[0].Name != "accept" {
		t.Fatalf("expected pseudo-headers stripped, got %+v", res.Fields)
	}
}

func TestHeadersValidResponse(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "content-type", Value: "text/plain"},
	}
	res, err := Headers(fields, false)
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	if res.Pseudo.Status != 200 {
		t.Fatalf("status = %d", res.Pseudo.Status)
	}
}

func TestHeadersRejectsUppercaseName(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
		{Name: ":scheme", Value: "https"},
		{Name: "Accept", Value: "*/*"},
	}
	_, err := Headers(fields, true)
	if errors.KindOf(err) != errors.Transport {
		t.Fatalf("expected a Transport error, got %v", err)
	}
}

func TestHeadersRejectsPseudoAfterRegular(t *testing.T) {
	// This is the S5 scenario: :method, then a regular header, then :path.
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: "cookie", Value: "x"},
		{Name: ":path", Value: "/"},
	}
	_, err := Headers(fields, true)
	if errors.KindOf(err) != errors.Transport {
		t.Fatalf("expected a Transport error, got %v", err)
	}
}

func TestHeadersRejectsUnknownPseudoHeader(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
		{Name: ":scheme", Value: "https"},
		{Name: ":status", Value: "200"},
	}
	if _, err := Headers(fields, true); err == nil {
		t.Fatalf("expected :status to be rejected on a request")
	}
}

func TestHeadersRejectsDuplicateMethod(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":method", Value: "POST"},
		{Name: ":path", Value: "/"},
		{Name: ":scheme", Value: "https"},
	}
	if _, err := Headers(fields, true); err == nil {
		t.Fatalf("expected a duplicate :method to be rejected")
	}
}

func TestHeadersRejectsEmptyPath(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: ""},
		{Name: ":scheme", Value: "https"},
	}
	if _, err := Headers(fields, true); err == nil {
		t.Fatalf("expected an empty :path to be rejected")
	}
}

func TestHeadersRejectsNonDecimalStatus(t *testing.T) {
	fields := []hpack.HeaderField{{Name: ":status", Value: "2xx"}}
	if _, err := Headers(fields, false); err == nil {
		t.Fatalf("expected a non-decimal :status to be rejected")
	}
}

func TestTrailersRejectPseudoHeaders(t *testing.T) {
	fields := []hpack.HeaderField{{Name: ":status", Value: "200"}}
	if _, err := Trailers(fields); err == nil {
		t.Fatalf("expected trailers with a pseudo-header to be rejected")
	}
}

func TestTrailersPassThroughRegularHeaders(t *testing.T) {
	fields := []hpack.HeaderField{{Name: "x-checksum", Value: "abc123"}}
	got, err := Trailers(fields)
	if err != nil {
		t.Fatalf("Trailers: %v", err)
	}
	if len(got) != 1 || got[0].Name != "x-checksum" {
		t.Fatalf("got %+v", got)
	}
}

func TestIsConnectionSpecific(t *testing.T) {
	if !IsConnectionSpecific("connection") || !IsConnectionSpecific("upgrade") {
		t.Fatalf("expected connection/upgrade to be connection-specific")
	}
	if IsConnectionSpecific("accept") {
		t.Fatalf("accept is not connection-specific")
	}
}
