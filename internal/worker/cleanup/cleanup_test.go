package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/grailtracker/internal/metrics"
)

// --- モック ---

type mockSweeper struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (m *mockSweeper) SweepExpired(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.deleted, m.err
}

type sweepRecorder struct {
	metrics.Nop

	mu    sync.Mutex
	swept map[string]int64
}

func (r *sweepRecorder) RecordSweep(target string, deleted int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.swept == nil {
		r.swept = make(map[string]int64)
	}
	r.swept[target] += deleted
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestJob_Run_SweepsAllTargets(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSweeper{deleted: 3}
	states := &mockSweeper{deleted: 7}
	rec := &sweepRecorder{}

	job := NewJob([]Target{
		{Name: "sessions", Sweeper: sessions},
		{Name: "oauth_states", Sweeper: states},
	}, newTestLogger(&buf), rec)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sessions.calls.Load() != 1 || states.calls.Load() != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", sessions.calls.Load(), states.calls.Load())
	}
	if rec.swept["sessions"] != 3 || rec.swept["oauth_states"] != 7 {
		t.Errorf("recorded sweeps = %v", rec.swept)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["target"] != "sessions" || entry["deleted_count"] != float64(3) {
		t.Errorf("log entry = %v", entry)
	}
}

func TestJob_Run_ContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection refused")
	failing := &mockSweeper{err: dbErr}
	ok := &mockSweeper{deleted: 1}

	job := NewJob([]Target{
		{Name: "sessions", Sweeper: failing},
		{Name: "oauth_states", Sweeper: ok},
	}, newTestLogger(&buf), nil)

	err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Errorf("Run() error = %v, want wrapping %v", err, dbErr)
	}
	if ok.calls.Load() != 1 {
		t.Error("second target should still be swept")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected error log, got: %s", buf.String())
	}
}

func TestJob_Run_NoTargets(t *testing.T) {
	var buf bytes.Buffer
	job := NewJob(nil, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	s := &mockSweeper{}
	job := NewJob([]Target{{Name: "sessions", Sweeper: s}}, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if s.calls.Load() < 2 {
		t.Errorf("calls = %d, want at least 2", s.calls.Load())
	}
}

func TestJob_RunDetached(t *testing.T) {
	var buf bytes.Buffer
	s := &mockSweeper{}
	job := NewJob([]Target{{Name: "oauth_states", Sweeper: s}}, newTestLogger(&buf), nil)

	job.RunDetached()

	deadline := time.Now().Add(2 * time.Second)
	for s.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", s.calls.Load())
	}
}
