package analytics

import (
	"strings"
	"time"

	"payoutdesk/pkg/errors"
)

// Window is a half-open [Start, End) interval over withdrawal created_at.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

var presets = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
}

// DefaultWindow is used when a request names no window.
const DefaultWindow = "30d"

// ParseWindow resolves a preset name or an explicit start/end pair relative
// to asOf. Explicit bounds take precedence over the preset. Dates without a
// time component are read as midnight in loc.
func ParseWindow(preset, start, end string, asOf time.Time, loc *time.Location) (Window, error) {
	if start != "" || end != "" {
		if start == "" || end == "" {
			return Window{}, errors.New(errors.CodeValidation, "start and end must be given together")
		}
		s, err := parseBound(start, loc)
		if err != nil {
			return Window{}, err
		}
		e, err := parseBound(end, loc)
		if err != nil {
			return Window{}, err
		}
		if !e.After(s) {
			return Window{}, errors.New(errors.CodeValidation, "end must be after start")
		}
		return Window{Start: s, End: e}, nil
	}

	preset = strings.ToLower(strings.TrimSpace(preset))
	if preset == "" {
		preset = DefaultWindow
	}
	days, ok := presets[preset]
	if !ok {
		return Window{}, errors.New(errors.CodeValidation, "unknown window %q, expected 7d, 30d or 90d", preset)
	}
	// End is one tick past asOf so records stamped exactly at asOf are in.
	return Window{
		Start: asOf.Add(-time.Duration(days) * 24 * time.Hour),
		End:   asOf.Add(time.Nanosecond),
	}, nil
}

func parseBound(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New(errors.CodeValidation, "invalid date %q, expected RFC3339 or YYYY-MM-DD", v)
}
