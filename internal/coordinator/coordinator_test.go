package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingLogger keeps error and info messages.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config[int]{Interval: time.Second}); !errors.Is(err, ErrNoUpdateFunc) {
		t.Errorf("New() without update error = %v", err)
	}
	update := func(context.Context) (int, error) { return 0, nil }
	if _, err := New(Config[int]{Update: update}); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("New() without interval error = %v", err)
	}
}

func TestRefresh(t *testing.T) {
	calls := 0
	c, err := New(Config[string]{
		Name:     "test",
		Interval: time.Hour,
		Update: func(context.Context) (string, error) {
			calls++
			if calls == 2 {
				return "", errors.New("read failed")
			}
			return fmt.Sprintf("reading-%d", calls), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Stop()
	ctx := context.Background()

	if snap := c.Snapshot(); snap.HasData {
		t.Error("HasData before first update")
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	snap := c.Snapshot()
	if !snap.HasData || snap.Data != "reading-1" || snap.Err != nil || snap.UpdatedAt.IsZero() {
		t.Errorf("after success snapshot = %+v", snap)
	}

	if err := c.Refresh(ctx); err == nil {
		t.Fatal("second Refresh() expected error")
	}
	snap = c.Snapshot()
	if snap.Err == nil || snap.Data != "reading-1" {
		t.Errorf("failed update should keep last data and record error, got %+v", snap)
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("third Refresh() error = %v", err)
	}
	if snap := c.Snapshot(); snap.Err != nil || snap.Data != "reading-3" {
		t.Errorf("after recovery snapshot = %+v", snap)
	}
}

func TestListeners(t *testing.T) {
	c, _ := New(Config[int]{
		Interval: time.Hour,
		Update:   func(context.Context) (int, error) { return 42, nil },
	})
	defer c.Stop()

	var got []int
	remove := c.AddListener(func(s Snapshot[int]) { got = append(got, s.Data) })

	_ = c.Refresh(context.Background())
	remove()
	_ = c.Refresh(context.Background())

	if len(got) != 1 || got[0] != 42 {
		t.Errorf("listener got %v, want [42]", got)
	}
}

func TestFailureLoggedOnTransitions(t *testing.T) {
	logger := &recordingLogger{}
	results := []error{nil, errors.New("a"), errors.New("b"), errors.New("c"), nil, nil}
	i := 0
	c, _ := New(Config[int]{
		Name:     "ultraheat_gateway",
		Interval: time.Hour,
		Logger:   logger,
		Update: func(context.Context) (int, error) {
			err := results[i]
			i++
			return i, err
		},
	})
	defer c.Stop()

	for range results {
		_ = c.Refresh(context.Background())
	}

	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1: %v", len(logger.errors), logger.errors)
	}
	if len(logger.infos) != 1 {
		t.Errorf("logged %d recoveries, want 1: %v", len(logger.infos), logger.infos)
	}
}

func TestTimeout(t *testing.T) {
	c, _ := New(Config[int]{
		Interval: time.Hour,
		Timeout:  20 * time.Millisecond,
		Update: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	})
	defer c.Stop()

	err := c.Refresh(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Refresh() error = %v, want deadline exceeded", err)
	}
}

func TestStartPollsWithoutOverlap(t *testing.T) {
	var running, maxRunning, calls atomic.Int32
	c, _ := New(Config[int]{
		Interval: 5 * time.Millisecond,
		Update: func(context.Context) (int, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			return int(calls.Add(1)), nil
		},
	})

	c.Start(context.Background())
	c.Start(context.Background())

	// Refresh races the loop but must wait its turn.
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		_ = c.Refresh(context.Background())
	}
	c.Stop()

	if calls.Load() < 3 {
		t.Fatalf("only %d updates ran", calls.Load())
	}
	if got := maxRunning.Load(); got != 1 {
		t.Errorf("max concurrent updates = %d, want 1", got)
	}
}

func TestStopCancelsUpdateAndIsIdempotent(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	c, _ := New(Config[int]{
		Interval: time.Millisecond,
		Update: func(ctx context.Context) (int, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return 0, ctx.Err()
		},
	})
	c.Start(context.Background())

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never ran an update")
	}

	done := make(chan struct{})
	go func() {
		c.Stop()
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	if err := c.Refresh(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Refresh() after Stop error = %v, want ErrStopped", err)
	}
}

func TestStartEndsWithContext(t *testing.T) {
	var calls atomic.Int32
	c, _ := New(Config[int]{
		Interval: time.Millisecond,
		Update: func(context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after context cancel")
	}
}
