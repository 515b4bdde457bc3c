package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/phonetica/phonauth/internal/dispatch"
)

func TestDispatcherDeliversToChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(dispatch.Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Enqueue(context.Background(), Event{EventType: "login_success", UserID: 7, Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.UserID != 7 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "logout", Email: "alice@example.com"})
	sink.Emit(context.Background(), Event{EventType: "refresh_success"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Email != "alice@example.com" {
		t.Fatalf("email = %q", ev.Email)
	}
}

func TestSlogSinkWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{
		EventType: "rate_limited",
		IP:        "10.0.0.1",
		Error:     "rate_limited",
		Metadata:  map[string]string{"route": "login"},
	})

	out := buf.String()
	for _, want := range []string{"msg=audit", "event_type=rate_limited", "ip=10.0.0.1", "meta.route=login", "success=false"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	if d := NewDispatcher(dispatch.Config{}, NoOpSink{}); d != nil {
		t.Fatal("expected nil dispatcher")
	}
}
