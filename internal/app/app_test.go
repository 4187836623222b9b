package app

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pushbridge/pushbridge/internal/config"
	"github.com/pushbridge/pushbridge/internal/domain/events"
	"github.com/pushbridge/pushbridge/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Watcher: config.WatcherConfig{Path: dir, DebounceMS: 10},
		Journal: config.JournalConfig{Enabled: true, Path: filepath.Join(dir, "journal.db")},
		Logging: config.LoggingConfig{Level: "error"},
	}
}

func startApp(t *testing.T, a *App) (cancel context.CancelFunc, done chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- a.Start(ctx) }()
	return cancelFn, done
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestApp_ActivatesSourceOnStartRegardlessOfConsumers(t *testing.T) {
	src := testutil.NewMockSource()
	a, err := newApp(testConfig(t), src)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	if !src.HasSink() {
		t.Fatal("bridge did not register as sink")
	}

	cancel, done := startApp(t, a)

	// No consumer is connected; activation happens anyway.
	if !waitUntil(t, 2*time.Second, func() bool {
		activations, _ := src.Counts()
		return activations == 1
	}) {
		t.Fatal("source never activated")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, deactivations := src.Counts(); deactivations != 1 {
		t.Errorf("deactivations = %d, want 1", deactivations)
	}
}

func TestApp_JournalRecordsPushedEvents(t *testing.T) {
	cfg := testConfig(t)
	src := testutil.NewMockSource()
	a, err := newApp(cfg, src)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	cancel, done := startApp(t, a)

	if !waitUntil(t, 2*time.Second, func() bool {
		activations, _ := src.Counts()
		return activations == 1
	}) {
		t.Fatal("source never activated")
	}

	src.Push(events.NewFileChangedEvent("x.go", events.FileChangeCreated))
	src.Push(events.NewFileChangedEvent("y.go", events.FileChangeModified))

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	db, err := sql.Open("sqlite", cfg.Journal.Path)
	if err != nil {
		t.Fatalf("open journal db: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM deliveries WHERE event_type = 'file_changed'").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 2 {
		t.Errorf("journal recorded %d file_changed rows, want 2", n)
	}
}

func TestApp_ProducerFailureAfterStart(t *testing.T) {
	src := testutil.NewMockSource()
	a, err := newApp(testConfig(t), src)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	rec := testutil.NewRecorder()
	rec.Subscribe(a.bridge.Stream())

	cancel, done := startApp(t, a)
	defer func() { cancel(); <-done }()

	if !waitUntil(t, 2*time.Second, func() bool {
		activations, _ := src.Counts()
		return activations == 1
	}) {
		t.Fatal("source never activated")
	}

	src.Fail(errors.New("producer broke"))

	if len(rec.Errors()) != 1 {
		t.Errorf("recorded %d failures, want 1", len(rec.Errors()))
	}
	// Values racing in after the failure are dropped.
	src.Push(events.NewFileChangedEvent("late.go", events.FileChangeCreated))
	if len(rec.Events()) != 0 {
		t.Errorf("recorded %d events after failure, want 0", len(rec.Events()))
	}
}

func TestApp_DoubleStartFails(t *testing.T) {
	src := testutil.NewMockSource()
	a, err := newApp(testConfig(t), src)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	cancel, done := startApp(t, a)
	defer func() { cancel(); <-done }()

	if !waitUntil(t, 2*time.Second, func() bool {
		activations, _ := src.Counts()
		return activations == 1
	}) {
		t.Fatal("source never activated")
	}

	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}
