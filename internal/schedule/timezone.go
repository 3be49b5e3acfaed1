package schedule

import "time"

// LoadZone resolves an IANA timezone identifier. An unknown identifier is a
// ConfigurationError; the engine never substitutes UTC on its own, because a
// wrong reference frame silently shifts every computed slot.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, &ConfigurationError{Zone: name}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ConfigurationError{Zone: name, Err: err}
	}
	return loc, nil
}

// InZone re-expresses an interval in the target zone's wall-clock terms. The
// absolute instants are unchanged; across a DST transition the wall-clock
// length may legitimately differ from the absolute duration.
func InZone(iv Interval, loc *time.Location) Interval {
	return Interval{Start: iv.Start.In(loc), End: iv.End.In(loc)}
}

// PlanWindows builds the plan's daily availability windows: one interval per
// plan date, from startHour to endHour in the plan's timezone. endHour may be
// 24 to cover through midnight.
func PlanWindows(dates []string, startHour, endHour int, loc *time.Location) ([]Interval, error) {
	if startHour < 0 || startHour > 23 || endHour < 1 || endHour > 24 || startHour >= endHour {
		return nil, &ValidationError{Msg: "plan hours must satisfy 0 <= start < end <= 24"}
	}
	windows := make([]Interval, 0, len(dates))
	for _, d := range dates {
		day, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			return nil, &ValidationError{Msg: "plan date must be YYYY-MM-DD"}
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, loc)
		windows = append(windows, Interval{Start: start, End: end})
	}
	merged, err := Merge(windows)
	if err != nil {
		return nil, err
	}
	return merged, nil
}
