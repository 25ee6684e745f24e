package ephemeral_test

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"convox-bot/internal/chat/chattest"
	"convox-bot/internal/ephemeral"
)

func newScheduler(ttl time.Duration) (*ephemeral.Scheduler, *chattest.Transport) {
	transport := chattest.New("bot")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ephemeral.NewScheduler(transport, ttl, logger), transport
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduleRetractsAfterTTL(t *testing.T) {
	s, transport := newScheduler(time.Hour)

	s.Schedule("c1", "m1", 10*time.Millisecond)
	if s.Pending("c1") != 1 {
		t.Fatalf("Pending = %d, want 1", s.Pending("c1"))
	}

	waitFor(t, func() bool { return len(transport.Retracted()) == 1 })
	if got := transport.Retracted(); got[0] != "m1" {
		t.Fatalf("retracted = %v", got)
	}
	waitFor(t, func() bool { return s.Pending("c1") == 0 })
}

func TestClearAllCancelsTimers(t *testing.T) {
	s, transport := newScheduler(time.Hour)

	s.Schedule("c1", "m1", 30*time.Millisecond)
	s.Schedule("c1", "m2", 0)
	s.Schedule("c2", "m3", 0)

	s.ClearAll(context.Background(), "c1")
	if got := transport.Retracted(); !reflect.DeepEqual(got, []string{"m1", "m2"}) {
		t.Fatalf("retracted = %v", got)
	}
	if s.Pending("c1") != 0 || s.Pending("c2") != 1 {
		t.Fatalf("pending c1=%d c2=%d", s.Pending("c1"), s.Pending("c2"))
	}

	// The cancelled 30ms timer must not retract m1 a second time.
	time.Sleep(60 * time.Millisecond)
	if got := transport.Retracted(); len(got) != 2 {
		t.Fatalf("retracted after wait = %v", got)
	}

	s.Stop()
	if s.Pending("c2") != 0 {
		t.Fatal("Stop should drop every entry")
	}
}

func TestDefaultTTL(t *testing.T) {
	s, _ := newScheduler(0)
	if s.TTL() != ephemeral.DefaultTTL {
		t.Fatalf("TTL = %v", s.TTL())
	}
	s.Schedule("c1", "", 0)
	if s.Pending("c1") != 0 {
		t.Fatal("empty message IDs are ignored")
	}
}
