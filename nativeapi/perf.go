package nativeapi

import (
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/polyglot-native/reference"
)

// Performance data keys.
const (
	PerfCalls          = "polyglot.calls"
	PerfFailures       = "polyglot.failures"
	PerfReferencesLive = "polyglot.references.live"
	PerfCallbacks      = "polyglot.callbacks"
)

// perfData holds the isolate counters. Each counter lives at a fixed
// address for the lifetime of the isolate so native callers can sample it
// directly.
type perfData struct {
	calls          int64
	failures       int64
	referencesLive int64
	callbacks      int64
}

func (p *perfData) counter(key string) *int64 {
	switch key {
	case PerfCalls:
		return &p.calls
	case PerfFailures:
		return &p.failures
	case PerfReferencesLive:
		return &p.referencesLive
	case PerfCallbacks:
		return &p.callbacks
	}
	return nil
}

// PerfKeys lists every performance data key.
func PerfKeys() []string {
	keys := []string{PerfCalls, PerfFailures, PerfReferencesLive, PerfCallbacks}
	sort.Strings(keys)
	return keys
}

// Snapshot reads every counter.
func (p *perfData) Snapshot() map[string]int64 {
	out := make(map[string]int64, 4)
	for _, k := range PerfKeys() {
		out[k] = atomic.LoadInt64(p.counter(k))
	}
	return out
}

// referenceCounter keeps polyglot.references.live in step with the table.
type referenceCounter struct {
	perf   *perfData
	logger *zap.Logger
}

func (c *referenceCounter) OnReferenceEvent(e reference.Event) {
	switch e.Type {
	case reference.EventCreated:
		atomic.AddInt64(&c.perf.referencesLive, 1)
		c.logger.Debug("reference created", zap.Stringer("handle", e.Handle))
	case reference.EventDeleted:
		atomic.AddInt64(&c.perf.referencesLive, -1)
		c.logger.Debug("reference deleted", zap.Stringer("handle", e.Handle))
	}
}
