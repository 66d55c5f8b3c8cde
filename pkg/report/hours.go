package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
)

// HoursQuery selects roots and an optional inclusive date range.
type HoursQuery struct {
	IDs  []int
	From time.Time
	To   time.Time
}

// HoursSummary is estimated against invested time over a set of roots.
type HoursSummary struct {
	Items     int     `json:"items" yaml:"items"`
	Estimated float64 `json:"estimated" yaml:"estimated"`
	Invested  float64 `json:"invested" yaml:"invested"`
	Ranged    bool    `json:"ranged" yaml:"ranged"`
}

// Hours sums the estimate and the invested time of the selected roots (all
// roots when IDs is empty). With a date range, invested time only counts the
// ledger entries dated inside it; a zero bound is open.
func Hours(items []engine.EnrichedItem, q HoursQuery) HoursSummary {
	s := HoursSummary{Ranged: !q.From.IsZero() || !q.To.IsZero()}
	for _, it := range items {
		if len(q.IDs) > 0 && !slices.Contains(q.IDs, it.ID) {
			continue
		}
		s.Items++
		s.Estimated += it.EstimatedHours()
		if !s.Ranged {
			s.Invested += it.InvestedHours
			continue
		}
		for _, e := range it.TimeEntries {
			if !q.From.IsZero() && e.Date.Before(q.From) {
				continue
			}
			if !q.To.IsZero() && e.Date.After(q.To) {
				continue
			}
			s.Invested += e.Hours
		}
	}
	return s
}

// ParseDayRange reads two optional YYYY-MM-DD dates in loc into an inclusive
// range: from starts at midnight, to ends at the last instant of its day.
// An empty string leaves the bound open.
func ParseDayRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	var start, end time.Time
	if from != "" {
		t, err := time.ParseInLocation(time.DateOnly, from, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: %w", from, err)
		}
		start = t
	}
	if to != "" {
		t, err := time.ParseInLocation(time.DateOnly, to, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: %w", to, err)
		}
		end = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range %s..%s ends before it starts", from, to)
	}
	return start, end, nil
}
