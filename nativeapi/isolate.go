package nativeapi

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	polyglot "github.com/wippyai/polyglot-native"
	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/reference"
	"github.com/wippyai/polyglot-native/scope"
)

// Isolate is the process-wide half of the boundary: the persistent
// reference table, the allocator for error-info blocks, the async close
// pool and the performance counters. Threads attach to it.
type Isolate struct {
	cfg    Config
	logger *zap.Logger
	alloc  polyglot.Allocator
	refs   *reference.Table
	perf   perfData

	closers errgroup.Group

	mu      sync.Mutex
	threads map[*Thread]struct{}
	closed  bool

	// down is closed by Close; calls on attached threads fail from then on.
	down     chan struct{}
	shutdown atomic.Bool
}

// IsolateOption customizes NewIsolate.
type IsolateOption func(*Isolate)

// WithAllocator sets the allocator for error-info blocks. The default is a
// HeapAllocator.
func WithAllocator(a polyglot.Allocator) IsolateOption {
	return func(iso *Isolate) { iso.alloc = a }
}

// WithLogger replaces the logger built from Config.Log.
func WithLogger(l *zap.Logger) IsolateOption {
	return func(iso *Isolate) { iso.logger = l }
}

// NewIsolate validates cfg and creates an isolate.
func NewIsolate(cfg Config, opts ...IsolateOption) (*Isolate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	iso := &Isolate{
		cfg:     cfg,
		threads: make(map[*Thread]struct{}),
		down:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(iso)
	}
	if iso.logger == nil {
		l, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		iso.logger = l
	}
	if iso.alloc == nil {
		iso.alloc = polyglot.NewHeapAllocator()
	}
	iso.refs = reference.NewTable(cfg.ReferenceQuarantine)
	iso.refs.Subscribe(&referenceCounter{perf: &iso.perf, logger: iso.logger})

	iso.logger.Debug("isolate created",
		zap.Int("frame_capacity", cfg.FrameCapacity),
		zap.Int("reference_quarantine", cfg.ReferenceQuarantine),
		zap.Bool("recurring_callbacks", cfg.RecurringCallbacks))
	return iso, nil
}

// Config returns the isolate configuration.
func (iso *Isolate) Config() Config { return iso.cfg }

// Logger returns the isolate logger.
func (iso *Isolate) Logger() *zap.Logger { return iso.logger }

// Allocator returns the allocator used for error-info blocks.
func (iso *Isolate) Allocator() polyglot.Allocator { return iso.alloc }

// References returns the number of live persistent references.
func (iso *Isolate) References() int { return iso.refs.Len() }

// PerfSnapshot reads every performance counter.
func (iso *Isolate) PerfSnapshot() map[string]int64 { return iso.perf.Snapshot() }

// AttachThread creates the per-thread state for the calling thread. The
// returned Thread must only be used by that thread.
func (iso *Isolate) AttachThread() (*Thread, error) {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	if iso.closed {
		return nil, errors.Closed(errors.PhaseBoundary, "isolate")
	}
	t := &Thread{
		iso:   iso,
		stack: scope.NewStack(iso.cfg.FrameCapacity),
	}
	iso.threads[t] = struct{}{}
	iso.logger.Debug("thread attached", zap.Int("threads", len(iso.threads)))
	return t, nil
}

func (iso *Isolate) detach(t *Thread) {
	iso.mu.Lock()
	delete(iso.threads, t)
	n := len(iso.threads)
	iso.mu.Unlock()
	iso.logger.Debug("thread detached", zap.Int("threads", n))
}

// closeAsync closes c on the unbounded close pool.
func (iso *Isolate) closeAsync(c *engine.Context) {
	iso.closers.Go(func() error {
		err := c.Close(true)
		if err != nil {
			iso.logger.Warn("async context close failed", zap.String("context", c.ID()), zap.Error(err))
		}
		return err
	})
}

// Close waits for pending async closes and releases the reference table.
// Threads still attached are not touched, since they may be inside a call
// on their own native thread: their calls fail from now on, their recurring
// timers stop, and their state is freed when they detach. The error
// aggregates everything that failed.
func (iso *Isolate) Close() error {
	iso.mu.Lock()
	if iso.closed {
		iso.mu.Unlock()
		return nil
	}
	iso.closed = true
	attached := len(iso.threads)
	iso.mu.Unlock()

	iso.shutdown.Store(true)
	close(iso.down)

	err := iso.closers.Wait()
	err = multierr.Append(err, iso.refs.Close())
	iso.logger.Debug("isolate closed", zap.Int("attached", attached), zap.Error(err))
	_ = iso.logger.Sync()
	return err
}
