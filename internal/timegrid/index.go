package timegrid

import "time"

// bucketSize discretizes the timeline for interval lookup. Records are
// registered into every 15-minute bucket they touch, so a slot-to-record
// probe inspects a handful of buckets instead of scanning every record.
const bucketSize = 15 * time.Minute

// IntervalIndex answers "which registered interval overlaps this window"
// without a linear scan. Rendering twelve weeks of day grids probes it once
// per candidate slot.
type IntervalIndex struct {
	items   []Interval
	buckets map[int64][]int
}

func NewIntervalIndex(items []Interval) *IntervalIndex {
	ix := &IntervalIndex{
		items:   items,
		buckets: make(map[int64][]int),
	}
	for i, iv := range items {
		if !iv.Valid() {
			continue
		}
		for b := bucketOf(iv.Start); b < bucketCeil(iv.End); b++ {
			ix.buckets[b] = append(ix.buckets[b], i)
		}
	}
	return ix
}

// Find returns the position of the first registered interval overlapping iv.
// Earlier-registered intervals win ties.
func (ix *IntervalIndex) Find(iv Interval) (int, bool) {
	best := -1
	for b := bucketOf(iv.Start); b < bucketCeil(iv.End); b++ {
		for _, i := range ix.buckets[b] {
			if ix.items[i].Overlaps(iv) && (best == -1 || i < best) {
				best = i
			}
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func bucketOf(t time.Time) int64 {
	return t.Unix() / int64(bucketSize/time.Second)
}

func bucketCeil(t time.Time) int64 {
	sec := int64(bucketSize / time.Second)
	return (t.Unix() + sec - 1) / sec
}
