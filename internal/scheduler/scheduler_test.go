package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeReindexer struct {
	mu   sync.Mutex
	dirs []string
	err  error
}

func (f *fakeReindexer) Reindex(_ context.Context, dir string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs = append(f.dirs, dir)
	return 3, f.err
}

func (f *fakeReindexer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dirs...)
}

func TestAddJob_Fires(t *testing.T) {
	r := &fakeReindexer{}
	sched := New(nil)
	if err := sched.AddJob("reindex", "@every 1s", ReindexJob(r, "/docs")); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	if err := sched.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start returned %v", err)
	}

	calls := r.calls()
	if len(calls) == 0 {
		t.Fatal("expected at least one reindex")
	}
	if calls[0] != "/docs" {
		t.Errorf("dir = %q", calls[0])
	}
}

func TestAddJob_ReplacesSameName(t *testing.T) {
	sched := New(nil)
	noop := func(context.Context) error { return nil }
	if err := sched.AddJob("reindex", "@every 5m", noop); err != nil {
		t.Fatal(err)
	}
	if err := sched.AddJob("reindex", "@hourly", noop); err != nil {
		t.Fatal(err)
	}
	if err := sched.AddJob("cleanup", "0 3 * * *", noop); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(sched.Jobs(), ","); got != "cleanup,reindex" {
		t.Errorf("Jobs = %s", got)
	}
	if len(sched.cron.Entries()) != 2 {
		t.Errorf("cron entries = %d, want 2", len(sched.cron.Entries()))
	}
}

func TestInvalidSchedule(t *testing.T) {
	sched := New(nil)
	err := sched.AddJob("reindex", "invalid-cron", func(context.Context) error { return nil })
	if err == nil {
		t.Error("expected error for invalid schedule")
	}
	if sched.JobCount() != 0 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}
}

func TestRemoveJob(t *testing.T) {
	sched := New(nil)
	sched.AddJob("reindex", "@every 5m", func(context.Context) error { return nil })
	sched.RemoveJob("reindex")
	sched.RemoveJob("missing")

	if sched.JobCount() != 0 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}
	if _, ok := sched.Next("reindex"); ok {
		t.Error("expected removed job to have no next time")
	}
}

func TestRun_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	sched := New(slog.New(slog.NewTextHandler(&buf, nil)))

	r := &fakeReindexer{err: errors.New("disk full")}
	sched.run("reindex", ReindexJob(r, "/docs"))

	if !strings.Contains(buf.String(), "job failed") || !strings.Contains(buf.String(), "disk full") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestRun_UsesStartContext(t *testing.T) {
	sched := New(nil)
	type key struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "v"))

	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	got := make(chan any, 1)
	deadline := time.Now().Add(time.Second)
	for {
		sched.mu.Lock()
		started := sched.ctx == ctx
		sched.mu.Unlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	sched.run("ctx-check", func(c context.Context) error {
		got <- c.Value(key{})
		return nil
	})
	if v := <-got; v != "v" {
		t.Errorf("job context value = %v", v)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Start returned %v", err)
	}
}
