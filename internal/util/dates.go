package util

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date format (use YYYY-MM-DD or RFC3339)")

// DateRange is a half-open [Start, End) filter window; either side may be
// absent.
type DateRange struct {
	Start    time.Time
	End      time.Time
	HasStart bool
	HasEnd   bool
}

func (r DateRange) Empty() bool { return !r.HasStart && !r.HasEnd }

// ParseDateRange accepts YYYY-MM-DD or RFC3339 bounds. A date-only end
// covers that whole day. Reversed bounds are swapped.
func ParseDateRange(startStr, endStr *string) (DateRange, error) {
	var r DateRange

	start, startOK, _, err := parseBound(startStr)
	if err != nil {
		return r, err
	}
	end, endOK, endDateOnly, err := parseBound(endStr)
	if err != nil {
		return r, err
	}

	if startOK && endOK && end.Before(start) {
		start, end = end, start
	}

	if startOK {
		r.Start, r.HasStart = start, true
	}
	if endOK {
		if endDateOnly {
			end = end.AddDate(0, 0, 1)
		}
		r.End, r.HasEnd = end, true
	}
	return r, nil
}

func parseBound(p *string) (t time.Time, ok bool, dateOnly bool, err error) {
	if p == nil {
		return time.Time{}, false, false, nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return time.Time{}, false, false, nil
	}
	if tt, e := time.Parse(time.RFC3339, s); e == nil {
		return tt, true, false, nil
	}
	if tt, e := time.Parse("2006-01-02", s); e == nil {
		return tt, true, true, nil
	}
	return time.Time{}, false, false, ErrInvalidDate
}
