package business

import (
	"fmt"
	"math"
	"time"
)

// Period is a named reporting window.
type Period string

const (
	PeriodToday  Period = "today"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodCustom Period = "custom"
)

// Periods lists the accepted period values in tool-schema order.
func Periods() []string {
	return []string{string(PeriodToday), string(PeriodWeek), string(PeriodMonth), string(PeriodCustom)}
}

const day = 24 * time.Hour

// DefaultCustomLookback is the window used for a custom period without "from".
const DefaultCustomLookback = 30 * day

// Range is a closed time interval.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Days returns the number of started days covered by the range.
func (r Range) Days() int {
	return int(math.Ceil(r.To.Sub(r.From).Hours() / 24))
}

// Previous returns the window of equal length that ends where r starts.
func (r Range) Previous() Range {
	return Range{From: r.From.Add(-time.Duration(r.Days()) * day), To: r.From}
}

// ParsePeriod converts a tool argument into a Period. Empty or unknown
// values fall back to PeriodMonth.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodCustom:
		return Period(s)
	}
	return PeriodMonth
}

// ResolveRange computes the concrete window for a period relative to now.
// from/to are ISO-8601 strings and only consulted for PeriodCustom.
func ResolveRange(p Period, from, to string, now time.Time) (Range, error) {
	r := Range{To: now}
	switch p {
	case PeriodToday:
		r.From = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		r.From = now.Add(-7 * day)
	case PeriodMonth:
		r.From = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		r.From = now.Add(-DefaultCustomLookback)
		if from != "" {
			t, err := parseISO(from)
			if err != nil {
				return Range{}, fmt.Errorf("invalid from date %q: %w", from, err)
			}
			r.From = t
		}
		if to != "" {
			t, err := parseISO(to)
			if err != nil {
				return Range{}, fmt.Errorf("invalid to date %q: %w", to, err)
			}
			r.To = t
		}
	}
	return r, nil
}

func parseISO(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected ISO-8601 date")
}
