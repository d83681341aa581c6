package metrics

import (
	"math"
	"sort"
)

const unsetMarker = math.MinInt64

// Window is one live ring slot as seen by a collect. Start and End are Unix
// seconds, End exclusive. Agg aliases ring storage.
type Window[A Aggregate] struct {
	Start int64
	End   int64
	Agg   A
}

// RingBucket maps aligned window starts onto a fixed set of slots. A slot is
// reset when a write for a different window lands on it, so memory stays at
// Capacity aggregates and no sweep is needed.
//
// RingBucket is not safe for concurrent use; the collector serializes access.
type RingBucket[A Aggregate] struct {
	spec    BucketSpec
	markers []int64
	aggs    []A
}

// NewRingBucket pre-allocates Capacity aggregates using newAggregate.
func NewRingBucket[A Aggregate](spec BucketSpec, newAggregate func() A) *RingBucket[A] {
	c := spec.Capacity()
	r := &RingBucket[A]{
		spec:    spec,
		markers: make([]int64, c),
		aggs:    make([]A, c),
	}
	for i := range c {
		r.markers[i] = unsetMarker
		r.aggs[i] = newAggregate()
	}
	return r
}

func (r *RingBucket[A]) Spec() BucketSpec { return r.spec }

// Update applies mutate to the aggregate of the window containing ts.
// A late event whose window shares a slot with a newer window takes the slot
// over and discards the newer counts. Late writes are not detected.
func (r *RingBucket[A]) Update(ts int64, mutate func(A)) {
	start := r.spec.WindowStart(ts)
	i := r.spec.slot(start)
	if r.markers[i] != start {
		r.aggs[i].Reset()
		r.markers[i] = start
	}
	mutate(r.aggs[i])
}

func (r *RingBucket[A]) live(i int, cutoff int64) bool {
	m := r.markers[i]
	if m == unsetMarker || r.aggs[i].IsEmpty() {
		return false
	}
	return m+r.spec.window > cutoff
}

// Collect returns every non-empty window that ends after now-retention,
// ascending by end.
func (r *RingBucket[A]) Collect(now int64) []Window[A] {
	cutoff := now - r.spec.retention
	out := make([]Window[A], 0, len(r.markers))
	for i := range r.markers {
		if !r.live(i, cutoff) {
			continue
		}
		out = append(out, Window[A]{
			Start: r.markers[i],
			End:   r.markers[i] + r.spec.window,
			Agg:   r.aggs[i],
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].End < out[b].End })
	return out
}

// Latest returns the live window with the greatest start.
func (r *RingBucket[A]) Latest(now int64) (Window[A], bool) {
	cutoff := now - r.spec.retention
	best := -1
	for i := range r.markers {
		if !r.live(i, cutoff) {
			continue
		}
		if best < 0 || r.markers[i] > r.markers[best] {
			best = i
		}
	}
	if best < 0 {
		return Window[A]{}, false
	}
	m := r.markers[best]
	return Window[A]{Start: m, End: m + r.spec.window, Agg: r.aggs[best]}, true
}
