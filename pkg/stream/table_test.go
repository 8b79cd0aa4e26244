package stream

import (
	"testing"

	herrors "github.com/mardukas/h2engine/pkg/errors"
)

func TestNewStreamParityAndMonotonicity(t *testing.T) {
	table := New(Server)

	// Server's Local streams (server push) must be even.
	if _, err := table.NewStream(3, Local, WriteHeaders, 65535, 65535, 100); err == nil {
		t.Fatalf("expected a parity error for an odd local id on a server")
	}
	s, err := table.NewStream(2, Local, WriteHeaders, 65535, 65535, 100)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if s.ID != 2 {
		t.Fatalf("got id %d", s.ID)
	}

	// Monotonicity: a lower or equal id on the same side is rejected.
	if _, err := table.NewStream(2, Local, WriteHeaders, 65535, 65535, 100); err == nil {
		t.Fatalf("expected a monotonicity error for a repeated id")
	}
	if _, err := table.NewStream(4, Local, WriteHeaders, 65535, 65535, 100); err != nil {
		t.Fatalf("NewStream(4): %v", err)
	}
}

func TestNewStreamRemoteParityMismatchIsTransport(t *testing.T) {
	table := New(Server)
	// Remote streams on a server are client-initiated: must be odd.
	_, err := table.NewStream(2, Remote, Headers, 65535, 65535, 100)
	if herrors.KindOf(err) != herrors.Transport {
		t.Fatalf("expected a Transport error, got %v", herrors.KindOf(err))
	}
}

func TestConcurrencyCapLocalIsWouldBlock(t *testing.T) {
	table := New(Client)
	if _, err := table.NewStream(1, Local, WriteHeaders, 65535, 65535, 1); err != nil {
		t.Fatalf("first NewStream: %v", err)
	}
	_, err := table.NewStream(3, Local, WriteHeaders, 65535, 65535, 1)
	if herrors.KindOf(err) != herrors.WouldBlock {
		t.Fatalf("expected WouldBlock, got %v", herrors.KindOf(err))
	}
}

func TestConcurrencyCapRemoteIsTransport(t *testing.T) {
	table := New(Client)
	if _, err := table.NewStream(2, Remote, Headers, 65535, 65535, 1); err != nil {
		t.Fatalf("first NewStream: %v", err)
	}
	_, err := table.NewStream(4, Remote, Headers, 65535, 65535, 1)
	if herrors.KindOf(err) != herrors.Transport {
		t.Fatalf("expected Transport, got %v", herrors.KindOf(err))
	}
}

func TestFindAndFree(t *testing.T) {
	table := New(Client)
	if _, err := table.NewStream(1, Local, WriteHeaders, 65535, 65535, 100); err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if table.Find(1) == nil {
		t.Fatalf("expected to find stream 1")
	}
	if table.ActiveCount(Local) != 1 {
		t.Fatalf("ActiveCount = %d", table.ActiveCount(Local))
	}
	table.Free(1, Local)
	if table.Find(1) != nil {
		t.Fatalf("expected stream 1 to be gone after Free")
	}
	if table.ActiveCount(Local) != 0 {
		t.Fatalf("ActiveCount after Free = %d", table.ActiveCount(Local))
	}
}

func TestResetRingTolerance(t *testing.T) {
	table := New(Client)
	table.MarkReset(7)
	if !table.RecentlyReset(7) {
		t.Fatalf("expected 7 to be recognized as recently reset")
	}
	if table.RecentlyReset(9) {
		t.Fatalf("9 was never reset")
	}
}

func TestStreamLive(t *testing.T) {
	s := &Stream{Accept: WriteHeaders}
	if !s.Live() {
		t.Fatalf("expected a stream with WriteHeaders set to be live")
	}
	s.Accept = 0
	if s.Live() {
		t.Fatalf("expected a stream with no acceptance bits to be dead")
	}
}
