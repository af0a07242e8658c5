// Package stream provides the throttle that coalesces irregular generation
// fragments into full-text snapshots on a bounded cadence. It exists purely
// for backpressure: downstream re-parses every snapshot from scratch, so the
// throttle never inspects or alters content, it only controls emit timing.
package stream

import (
	"strings"
	"sync"
	"time"
)

// Cadence bounds. Config clamps into [MinInterval, MaxInterval]; anything
// faster floods the parser, anything slower makes streaming feel stalled.
const (
	MinInterval     = 60 * time.Millisecond
	MaxInterval     = 100 * time.Millisecond
	DefaultInterval = 80 * time.Millisecond
)

// ClampInterval forces d into the supported cadence range. Non-positive
// values become DefaultInterval.
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	default:
		return d
	}
}

// Throttle accumulates written fragments and emits the full accumulated text
// at most once per interval. Close performs one final synchronous,
// unconditional emit so trailing text is never lost. Emits are serialized:
// ticker emits run on the throttle goroutine, the final emit runs on the
// Close caller after that goroutine has exited.
type Throttle struct {
	emit     func(snapshot string)
	interval time.Duration

	mu     sync.Mutex
	buf    strings.Builder
	dirty  bool
	closed bool

	done    chan struct{}
	stopped chan struct{}
	flushed chan struct{}
}

// NewThrottle starts a throttle emitting snapshots to emit at the given
// interval (pass 0 for the default). The caller must Close it.
func NewThrottle(interval time.Duration, emit func(snapshot string)) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Throttle{
		emit:     emit,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		flushed:  make(chan struct{}),
	}
	go t.loop()
	return t
}

// Write appends a fragment. Writes after Close are dropped.
func (t *Throttle) Write(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.buf.WriteString(fragment)
	t.dirty = true
}

// Close stops the ticker and performs the final flush. It blocks until the
// flush has been delivered, so the stream-end snapshot is complete before
// Close returns. Safe to call more than once.
func (t *Throttle) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		// A concurrent second closer waits for the first closer's final
		// flush, not just for the ticker goroutine to exit.
		<-t.flushed
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	<-t.stopped
	t.flush(true)
	close(t.flushed)
}

func (t *Throttle) loop() {
	defer close(t.stopped)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.flush(false)
		}
	}
}

// flush emits the accumulated text. Unless forced, a clean buffer (nothing
// new since the last emit) is skipped.
func (t *Throttle) flush(force bool) {
	t.mu.Lock()
	if !t.dirty && !force {
		t.mu.Unlock()
		return
	}
	t.dirty = false
	snapshot := t.buf.String()
	t.mu.Unlock()
	t.emit(snapshot)
}
