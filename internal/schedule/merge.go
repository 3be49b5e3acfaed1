package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Merge collapses a participant's claimed blocks into a minimal sorted set of
// non-overlapping intervals. Touching intervals are merged: adjacency counts
// as overlap so rounding never produces spurious micro-gaps.
//
// A block whose start is not strictly before its end is rejected with a
// ValidationError; that is an ingestion bug, not data to be silently dropped.
func Merge(blocks []Interval) ([]Interval, error) {
	for _, b := range blocks {
		if !b.End.After(b.Start) {
			return nil, &ValidationError{Msg: "time block start must be before end"}
		}
	}
	if len(blocks) == 0 {
		return nil, nil
	}

	sorted := make([]Interval, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !b.Start.After(last.End) {
			if b.End.After(last.End) {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged, nil
}

// ClipToWindows bounds a sorted, merged interval set by the plan's overall
// windows. Windows must themselves be sorted and non-overlapping.
func ClipToWindows(merged, windows []Interval) []Interval {
	var out []Interval
	for _, w := range windows {
		for _, iv := range merged {
			start := maxTime(iv.Start, w.Start)
			end := minTime(iv.End, w.End)
			if end.After(start) {
				out = append(out, Interval{Start: start, End: end})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
