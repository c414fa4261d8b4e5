// Package clock provides a hybrid logical clock for stamping entity revisions.
//
// Wall-clock timestamps alone cannot order concurrent edits reliably: two
// devices with skewed clocks can produce ties or inversions. A hybrid logical
// clock pairs the wall time with a logical counter that bumps whenever the
// wall clock stalls or runs backwards, so revisions issued by one clock are
// strictly monotonic regardless of what the OS clock does.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Revision is a lexicographically ordered revision stamp. Comparing two
// revisions with plain string comparison yields their causal order for stamps
// issued by the same clock, and wall-clock order across clocks.
type Revision = string

// HLC is a hybrid logical clock. The zero value is not usable; use New.
type HLC struct {
	mu      sync.Mutex
	nowFn   func() time.Time
	lastMs  int64
	counter uint16
}

// New creates a clock reading from the system wall clock.
func New() *HLC {
	return NewWithTime(time.Now)
}

// NewWithTime creates a clock with an injectable time source, for tests.
func NewWithTime(nowFn func() time.Time) *HLC {
	return &HLC{nowFn: nowFn}
}

// Now issues the next revision. If the wall clock has not advanced since the
// previous call (or has regressed), the logical counter is incremented
// instead, keeping revisions strictly increasing.
func (c *HLC) Now() Revision {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.nowFn().UnixMilli()
	if ms > c.lastMs {
		c.lastMs = ms
		c.counter = 0
	} else {
		c.counter++
		if c.counter == 0 {
			// Counter wrapped within one stalled millisecond; borrow a
			// millisecond so revisions keep increasing.
			c.lastMs++
		}
	}
	return format(c.lastMs, c.counter)
}

// Observe folds a remote revision into the clock so that revisions issued
// afterwards sort after it. Malformed revisions are ignored.
func (c *HLC) Observe(rev Revision) {
	ms, counter, err := parse(rev)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ms > c.lastMs {
		c.lastMs = ms
		c.counter = counter
	} else if ms == c.lastMs && counter > c.counter {
		c.counter = counter
	}
}

// Compare orders two revisions. Empty revisions sort before any real one, so
// entities written before revision stamping existed always lose a merge.
func Compare(a, b Revision) int {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}

// Time extracts the wall-clock component of a revision.
func Time(rev Revision) (time.Time, error) {
	ms, _, err := parse(rev)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// format renders a revision as "<millis:012x>-<counter:04x>". Fixed-width hex
// keeps lexicographic order aligned with numeric order until the year 10889.
func format(ms int64, counter uint16) Revision {
	return fmt.Sprintf("%012x-%04x", ms, counter)
}

func parse(rev Revision) (int64, uint16, error) {
	var ms int64
	var counter uint16
	if _, err := fmt.Sscanf(rev, "%12x-%4x", &ms, &counter); err != nil {
		return 0, 0, fmt.Errorf("malformed revision %q: %w", rev, err)
	}
	return ms, counter, nil
}
