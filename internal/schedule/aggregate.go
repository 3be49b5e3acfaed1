package schedule

import (
	"sort"
	"time"
)

type Mode string

const (
	ModeIntersection Mode = "intersection"
	ModeUnion        Mode = "union"
)

// ParseMode parses the slot aggregation mode. An empty string defaults to
// intersection (common free time for everyone).
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", ModeIntersection:
		return ModeIntersection, nil
	case ModeUnion:
		return ModeUnion, nil
	default:
		return "", &ValidationError{Msg: "mode must be intersection or union"}
	}
}

// CandidateSlot is a ranked output interval where some or all participants are
// simultaneously free.
type CandidateSlot struct {
	Start             time.Time
	End               time.Time
	Available         []string
	AvailableCount    int
	TotalParticipants int
	Score             int
}

// Aggregate computes candidate meeting slots from per-participant free
// intervals (already merged and clipped to the plan window).
//
// It sweeps the sorted interval boundaries and tracks which participants are
// free in each sub-interval between consecutive boundaries. In intersection
// mode a sub-interval qualifies only when every participant is free; in union
// mode when at least one is. Adjacent qualifying sub-intervals with the same
// free set are coalesced into one slot.
//
// An empty participant map is a caller bug and reports an InputError; a plan
// with participants but no common slot is a successful empty result.
func Aggregate(freeByParticipant map[string][]Interval, mode Mode) ([]CandidateSlot, error) {
	if len(freeByParticipant) == 0 {
		return nil, &InputError{Msg: "aggregation requires at least one participant"}
	}
	total := len(freeByParticipant)

	type event struct {
		at    time.Time
		pid   string
		delta int
	}
	var events []event
	for pid, intervals := range freeByParticipant {
		for _, iv := range intervals {
			if !iv.End.After(iv.Start) {
				return nil, &ValidationError{Msg: "free interval start must be before end"}
			}
			events = append(events, event{at: iv.Start, pid: pid, delta: +1})
			events = append(events, event{at: iv.End, pid: pid, delta: -1})
		}
	}
	slots := []CandidateSlot{}
	if len(events) == 0 {
		return slots, nil
	}

	sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	active := map[string]int{}
	var prev time.Time
	started := false
	i := 0
	for i < len(events) {
		t := events[i].at
		if started && t.After(prev) {
			avail := activeParticipants(active)
			qualifies := len(avail) >= 1
			if mode == ModeIntersection {
				qualifies = len(avail) == total
			}
			if qualifies {
				if n := len(slots); n > 0 && slots[n-1].End.Equal(prev) && sameParticipants(slots[n-1].Available, avail) {
					slots[n-1].End = t
				} else {
					slots = append(slots, CandidateSlot{
						Start:             prev,
						End:               t,
						Available:         avail,
						AvailableCount:    len(avail),
						TotalParticipants: total,
					})
				}
			}
		}
		for i < len(events) && events[i].at.Equal(t) {
			active[events[i].pid] += events[i].delta
			i++
		}
		prev = t
		started = true
	}

	for idx := range slots {
		slots[idx].Score = slotScore(slots[idx])
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].AvailableCount != slots[j].AvailableCount {
			return slots[i].AvailableCount > slots[j].AvailableCount
		}
		di, dj := slots[i].End.Sub(slots[i].Start), slots[j].End.Sub(slots[j].Start)
		if di != dj {
			return di > dj
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}

// slotScore mirrors the ranking order: participant count dominates, duration
// breaks ties. Plan windows never span a full day, so minutes stay below the
// count weight.
func slotScore(s CandidateSlot) int {
	return s.AvailableCount*1440 + int(s.End.Sub(s.Start).Minutes())
}

func activeParticipants(active map[string]int) []string {
	out := make([]string, 0, len(active))
	for pid, n := range active {
		if n > 0 {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	return out
}

func sameParticipants(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
