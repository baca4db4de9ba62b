package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"payout-charts/internal/series"
)

func TestTelegramReporterSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	reporter := NewTelegramReporter("token", "chat", srv.URL, time.Second, 0, testLogger())
	report := Report{TickID: "t-1", Tick: time.Now(), Account: "0xabc", Err: &series.InvalidEventError{Index: 2, Reason: "amount is negative"}}

	if err := reporter.Report(context.Background(), report); err != nil {
		t.Fatalf("Report should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "amount is negative") {
		t.Fatalf("text should carry the error, got %q", received["text"])
	}
	if !strings.Contains(received["text"], "0xabc") {
		t.Fatalf("text should carry the account, got %q", received["text"])
	}
}

func TestTelegramReporterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	reporter := NewTelegramReporter("token", "chat", srv.URL, time.Second, 0, testLogger())
	if err := reporter.Report(context.Background(), Report{Tick: time.Now(), Err: errors.New("x")}); err == nil {
		t.Fatal("ok=false should fail")
	}
}

func TestTelegramReporterCooldown(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reporter := NewTelegramReporter("token", "chat", srv.URL, time.Second, 10*time.Minute, testLogger())
	reporter.now = func() time.Time { return clock }

	report := Report{Tick: clock, Account: "0xabc", Err: errors.New("same problem")}
	for i := 0; i < 3; i++ {
		if err := reporter.Report(context.Background(), report); err != nil {
			t.Fatalf("Report #%d: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 delivery within cooldown, got %d", calls.Load())
	}

	other := report
	other.Err = errors.New("different problem")
	if err := reporter.Report(context.Background(), other); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("a different message should not be suppressed, got %d calls", calls.Load())
	}

	clock = clock.Add(11 * time.Minute)
	if err := reporter.Report(context.Background(), report); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("cooldown should have expired, got %d calls", calls.Load())
	}
}

func TestMultiReporterJoinsErrors(t *testing.T) {
	failing := reporterFunc(func(ctx context.Context, r Report) error { return errors.New("down") })
	var hits int
	counting := reporterFunc(func(ctx context.Context, r Report) error {
		hits++
		return nil
	})

	err := MultiReporter{failing, nil, counting, NewLogReporter(testLogger())}.Report(context.Background(), Report{Err: errors.New("x")})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("remaining reporters should still run, hits=%d", hits)
	}
}

type reporterFunc func(ctx context.Context, r Report) error

func (f reporterFunc) Report(ctx context.Context, r Report) error { return f(ctx, r) }

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
