package stream

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// collector records emitted snapshots.
type collector struct {
	mu    sync.Mutex
	snaps []string
}

func (c *collector) emit(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.snaps))
	copy(out, c.snaps)
	return out
}

func TestThrottle_finalFlushKeepsTrailingText(t *testing.T) {
	t.Parallel()
	var c collector
	th := NewThrottle(MinInterval, c.emit)
	th.Write("alpha ")
	th.Write("beta ")
	th.Write("gamma")
	th.Close()
	snaps := c.all()
	if len(snaps) == 0 {
		t.Fatal("no snapshots emitted")
	}
	last := snaps[len(snaps)-1]
	if last != "alpha beta gamma" {
		t.Errorf("final snapshot = %q, want full accumulated text", last)
	}
}

func TestThrottle_coalescesBursts(t *testing.T) {
	t.Parallel()
	var c collector
	th := NewThrottle(MaxInterval, c.emit)
	const writes = 200
	for i := 0; i < writes; i++ {
		th.Write("x")
	}
	th.Close()
	snaps := c.all()
	// A burst far faster than the cadence must coalesce to a handful of
	// snapshots, never one per write.
	if len(snaps) >= writes/2 {
		t.Errorf("got %d snapshots for %d writes; throttle did not coalesce", len(snaps), writes)
	}
	if got := snaps[len(snaps)-1]; got != strings.Repeat("x", writes) {
		t.Errorf("final snapshot lost content: len=%d, want %d", len(got), writes)
	}
}

func TestThrottle_snapshotsAreCumulative(t *testing.T) {
	t.Parallel()
	var c collector
	th := NewThrottle(MinInterval, c.emit)
	th.Write("one ")
	time.Sleep(2 * MinInterval)
	th.Write("two")
	th.Close()
	snaps := c.all()
	for i := 1; i < len(snaps); i++ {
		if !strings.HasPrefix(snaps[i], snaps[i-1]) {
			t.Errorf("snapshot %d is not an extension of snapshot %d: %q vs %q", i, i-1, snaps[i], snaps[i-1])
		}
	}
	if snaps[len(snaps)-1] != "one two" {
		t.Errorf("final = %q, want %q", snaps[len(snaps)-1], "one two")
	}
}

func TestThrottle_closeWithoutWritesEmitsOnce(t *testing.T) {
	t.Parallel()
	var c collector
	th := NewThrottle(MinInterval, c.emit)
	th.Close()
	snaps := c.all()
	if len(snaps) != 1 || snaps[0] != "" {
		t.Errorf("snaps = %q, want one empty final snapshot", snaps)
	}
}

func TestThrottle_writeAfterCloseDropped(t *testing.T) {
	t.Parallel()
	var c collector
	th := NewThrottle(MinInterval, c.emit)
	th.Write("kept")
	th.Close()
	th.Write("dropped")
	th.Close()
	snaps := c.all()
	if snaps[len(snaps)-1] != "kept" {
		t.Errorf("final = %q, want %q", snaps[len(snaps)-1], "kept")
	}
}

func TestThrottle_concurrentCloseBothSeeFinalFlush(t *testing.T) {
	t.Parallel()
	var c collector
	th := NewThrottle(MaxInterval, c.emit)
	th.Write("trailing text")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.Close()
			// Every returned Close must observe the final snapshot.
			snaps := c.all()
			if len(snaps) == 0 || snaps[len(snaps)-1] != "trailing text" {
				t.Errorf("snapshots after Close = %q, want final %q", snaps, "trailing text")
			}
		}()
	}
	wg.Wait()
}

func TestClampInterval(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want time.Duration
	}{
		{0, DefaultInterval},
		{-time.Second, DefaultInterval},
		{10 * time.Millisecond, MinInterval},
		{75 * time.Millisecond, 75 * time.Millisecond},
		{time.Second, MaxInterval},
	}
	for _, c := range cases {
		if got := ClampInterval(c.in); got != c.want {
			t.Errorf("ClampInterval(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
