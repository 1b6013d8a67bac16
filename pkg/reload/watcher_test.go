package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/verdict/pkg/source"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after Stop, want 0", got)
	}
}

func TestManager_WatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(oneRule), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(source.NewFileSource(dir, quietLogger()), nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan Event, 4)
	m.AddListener(ListenerFunc(func(e Event) { reloaded <- e }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, &WatcherConfig{
			DebounceInterval: 20 * time.Millisecond,
			Extensions:       []string{".yaml"},
			SkipHidden:       true,
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(twoRules), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-reloaded:
		if e.Trigger != TriggerWatch || e.Err != nil {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file change")
	}
	if got := m.Current().Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestManager_WatchUnsupportedSource(t *testing.T) {
	m := newTestManager(t, &fakeSource{})
	if err := m.Watch(context.Background(), nil); err == nil {
		t.Error("Watch() error = nil for a source without files")
	}
}
