package goSession

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) error {
	s.count.Add(1)
	return nil
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) error {
	<-s.gate
	return nil
}

type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("webhook down") }

type panickingSink struct{}

func (panickingSink) Emit(context.Context, Event) error { panic("boom") }

func TestNotifyDisabledReturnsNilDispatcher(t *testing.T) {
	d := newNotifyDispatcher(NotifyConfig{Enabled: false, BufferSize: 4}, &countingSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Type: "e1"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must be inert")
	}
}

func TestNotifyBufferFullDropsByDefault(t *testing.T) {
	sink := newGateSink()
	d := newNotifyDispatcher(NotifyConfig{Enabled: true, BufferSize: 1}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Type: "e1"})
	d.Emit(context.Background(), Event{Type: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{Type: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit without BlockWhenFull")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestNotifyBufferFullBlocksUntilSpaceWhenOptedIn(t *testing.T) {
	sink := newGateSink()
	d := newNotifyDispatcher(NotifyConfig{Enabled: true, BufferSize: 1, BlockWhenFull: true}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Type: "e1"})
	d.Emit(context.Background(), Event{Type: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{Type: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestNotifySinkFailuresAreLoggedNotPropagated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	d := newNotifyDispatcher(NotifyConfig{Enabled: true, BufferSize: 4}, failingSink{}, zap.New(core))
	d.Emit(context.Background(), Event{Type: EventLogout, SubjectID: "u1"})
	d.Close()

	if d.Failed() != 1 {
		t.Fatalf("expected 1 failed delivery, got %d", d.Failed())
	}
	if logs.FilterMessage("notification sink failed").Len() != 1 {
		t.Fatalf("expected sink failure to be logged, got %v", logs.All())
	}

	p := newNotifyDispatcher(NotifyConfig{Enabled: true, BufferSize: 4}, panickingSink{}, zap.New(core))
	p.Emit(context.Background(), Event{Type: EventLogin})
	p.Close()
	if p.Failed() != 1 {
		t.Fatalf("expected panic counted as failure, got %d", p.Failed())
	}
}

func TestNotifyCloseDrainsAndIsIdempotent(t *testing.T) {
	sink := &countingSink{}
	d := newNotifyDispatcher(NotifyConfig{Enabled: true, BufferSize: 8}, sink, nil)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Type: "e"})
	}
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{Type: "late"})

	if got := sink.count.Load(); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)

	err := sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		Type:      EventLogin,
		SubjectID: "u1",
		IP:        "127.0.0.1",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"type":"login"`) || !strings.Contains(out, `"subject_id":"u1"`) {
		t.Fatalf("unexpected JSON line %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected newline-terminated record")
	}
}

func TestZapSinkLogsEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	if err := sink.Emit(context.Background(), Event{Type: EventLogoutAll, SubjectID: "u1", Success: true}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	entries := logs.FilterMessage("session event").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "notify" || entries[0].ContextMap()["type"] != EventLogoutAll {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestNotificationsNeverCarrySecrets(t *testing.T) {
	ta := newTestAuthority(t)
	ctx := context.Background()
	ta.users.add("u1", "Ada", "ada@example.com", "secret-123")

	issued, err := ta.Login(ctx, "ada@example.com", "secret-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := ta.ChangePassword(ctx, "u1", "secret-123", "new-secret-456"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	ta.Close()

	needles := []string{"secret-123", "new-secret-456", issued.Token}
	close(ta.sink.events)
	seen := 0
	for ev := range ta.sink.Events() {
		seen++
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("secret leaked in error field of %s", ev.Type)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("secret leaked in metadata of %s", ev.Type)
				}
			}
		}
	}
	if seen == 0 {
		t.Fatal("expected events")
	}
}
