package coordinator

import (
	"context"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds configuration for a coordinator.
type Config[T any] struct {
	// Name identifies the coordinator in logs.
	Name string

	// Interval is the time between the start of two updates.
	Interval time.Duration

	// Timeout bounds a single update. Zero means no bound beyond the
	// coordinator's own lifetime.
	Timeout time.Duration

	// Update fetches fresh data.
	Update func(ctx context.Context) (T, error)

	// Logger is optional.
	Logger Logger
}

// Snapshot is the state after the most recent update.
type Snapshot[T any] struct {
	// Data is the last successfully fetched value. It is kept when a later
	// update fails.
	Data T

	// HasData is false until the first successful update.
	HasData bool

	// Err is the error of the most recent update, nil on success.
	Err error

	// UpdatedAt is when the most recent update finished.
	UpdatedAt time.Time
}

// Coordinator runs Config.Update on a fixed interval.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Updates never overlap, whether started by the loop or by Refresh.
type Coordinator[T any] struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	update   func(ctx context.Context) (T, error)
	logger   Logger
	now      func() time.Time

	runMu sync.Mutex // held for the duration of an update

	mu        sync.RWMutex
	snap      Snapshot[T]
	failing   bool
	listeners map[int]func(Snapshot[T])
	nextID    int

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	start    sync.Once
	stopOnce sync.Once
}

// New creates a coordinator. Call Start to begin polling.
func New[T any](cfg Config[T]) (*Coordinator[T], error) {
	if cfg.Update == nil {
		return nil, ErrNoUpdateFunc
	}
	if cfg.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator[T]{
		name:      cfg.Name,
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		update:    cfg.Update,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(Snapshot[T])),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Name returns the coordinator name.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Interval returns the polling interval.
func (c *Coordinator[T]) Interval() time.Duration {
	return c.interval
}

// Refresh runs one update now and returns its error. It waits for an
// update already in progress to finish first.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return ErrStopped
	}

	// Stop cancels the coordinator context, which must also end this update.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	return c.run(ctx)
}

// Start begins polling on a new goroutine. The first update runs after one
// interval; call Refresh beforehand for an immediate first update. The loop
// ends when ctx is cancelled or Stop is called. Calling Start more than
// once has no effect.
func (c *Coordinator[T]) Start(ctx context.Context) {
	c.start.Do(func() {
		c.wg.Add(1)
		go c.loop(ctx)
	})
}

// Stop ends the polling loop, cancels an update in progress and waits for
// the loop goroutine to exit. Safe to call multiple times.
func (c *Coordinator[T]) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.logger.Debug("coordinator stopped", "name", c.name)
	})
}

// Snapshot returns the state after the most recent update.
func (c *Coordinator[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// AddListener registers fn to be called after every update. fn runs on the
// updating goroutine and must not call Refresh. The returned function
// removes it.
func (c *Coordinator[T]) AddListener(fn func(Snapshot[T])) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator[T]) loop(parent context.Context) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.run(ctx) //nolint:errcheck // Recorded in the snapshot
		}
	}
}

// run performs one update and records its outcome.
func (c *Coordinator[T]) run(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	data, err := c.update(ctx)
	finished := c.now()

	c.mu.Lock()
	c.snap.Err = err
	c.snap.UpdatedAt = finished
	if err == nil {
		c.snap.Data = data
		c.snap.HasData = true
	}
	wasFailing := c.failing
	c.failing = err != nil
	snap := c.snap
	listeners := make([]func(Snapshot[T]), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	switch {
	case err != nil && !wasFailing:
		c.logger.Error("error fetching data", "name", c.name, "error", err)
	case err == nil && wasFailing:
		c.logger.Info("fetching data recovered", "name", c.name)
	default:
		c.logger.Debug("finished fetching data", "name", c.name,
			"duration", finished.Sub(start), "success", err == nil)
	}

	for _, fn := range listeners {
		fn(snap)
	}
	return err
}
