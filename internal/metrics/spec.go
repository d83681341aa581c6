package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidBucketSpec is returned when a retention or window is not a
// positive whole number of seconds.
var ErrInvalidBucketSpec = errors.New("metrics: invalid bucket spec")

// BucketSpec fixes the window length and retention of one ring.
type BucketSpec struct {
	retention int64 // seconds
	window    int64 // seconds
	capacity  int
}

// NewBucketSpec validates retention and window and derives the ring capacity.
// Sub-second precision is truncated.
func NewBucketSpec(retention, window time.Duration) (BucketSpec, error) {
	r := int64(retention / time.Second)
	w := int64(window / time.Second)
	if r <= 0 {
		return BucketSpec{}, fmt.Errorf("%w: retention %s must be at least 1s", ErrInvalidBucketSpec, retention)
	}
	if w <= 0 {
		return BucketSpec{}, fmt.Errorf("%w: window %s must be at least 1s", ErrInvalidBucketSpec, window)
	}
	c := int((r + w - 1) / w)
	if c < 1 {
		c = 1
	}
	return BucketSpec{retention: r, window: w, capacity: c}, nil
}

// Capacity is ceil(retention/window), never below 1.
func (s BucketSpec) Capacity() int { return s.capacity }

func (s BucketSpec) Window() time.Duration { return time.Duration(s.window) * time.Second }

func (s BucketSpec) Retention() time.Duration { return time.Duration(s.retention) * time.Second }

// WindowStart aligns a Unix-seconds timestamp down to its window boundary.
func (s BucketSpec) WindowStart(ts int64) int64 {
	return floorDiv(ts, s.window) * s.window
}

func (s BucketSpec) slot(windowStart int64) int {
	i := (windowStart / s.window) % int64(s.capacity)
	if i < 0 {
		i += int64(s.capacity)
	}
	return int(i)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ParseSpan parses a Go duration with an extra "d" (day) suffix, e.g. "1d", "90s".
func ParseSpan(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("metrics: invalid span %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("metrics: invalid span %q: %w", s, err)
	}
	return d, nil
}
