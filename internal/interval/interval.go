// Package interval reconciles raw work sessions into payable minutes.
// Everything here is a pure computation: inputs are never mutated and no
// I/O happens, so callers own persistence of any derived value.
package interval

import (
	"math"
	"sort"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
)

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Merge sorts a copy of spans by start and coalesces overlapping or
// adjacent intervals: [s1,e1) absorbs [s2,e2) when s2 <= e1. Spans with
// End before Start contribute nothing.
func Merge(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.End.After(s.Start) {
			sorted = append(sorted, s)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !s.Start.After(last.End) {
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// TotalMinutes sums merged span durations, rounded to the nearest whole
// minute and floored at zero.
func TotalMinutes(spans []Span) int {
	var total float64
	for _, s := range Merge(spans) {
		total += s.End.Sub(s.Start).Minutes()
	}
	m := int(math.Round(total))
	if m < 0 {
		return 0
	}
	return m
}

// Dedupe drops sessions that repeat the (worker, context, start, end)
// triple of an earlier one; mobile client retries can double-record the
// same logical visit.
func Dedupe(sessions []domain.WorkSession) []domain.WorkSession {
	seen := make(map[string]struct{}, len(sessions))
	out := make([]domain.WorkSession, 0, len(sessions))
	for _, s := range sessions {
		key := dedupeKey(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func dedupeKey(s domain.WorkSession) string {
	end := ""
	if s.EndAt != nil {
		end = s.EndAt.UTC().Format(time.RFC3339Nano)
	}
	return s.ContextID + "|" + s.StartAt.UTC().Format(time.RFC3339Nano) + "|" + end
}

// DayMinutes reconciles a worker's sessions for one local civil day: it
// keeps sessions whose check-in falls on day in loc, drops duplicates,
// and returns the merged total. Open sessions contribute zero until
// closed. A session starting at 23:50 local counts for that local day
// even if UTC midnight has already passed.
func DayMinutes(sessions []domain.WorkSession, day time.Time, loc *time.Location) int {
	var spans []Span
	for _, s := range Dedupe(sessions) {
		if s.EndAt == nil {
			continue
		}
		if !sameCivilDay(s.StartAt, day, loc) {
			continue
		}
		spans = append(spans, Span{Start: s.StartAt, End: *s.EndAt})
	}
	return TotalMinutes(spans)
}

// WeekMinutes reconciles each civil day of the Sunday-start week beginning
// at weekStart, returning the per-day map (keyed "2006-01-02") and the
// weekly total.
func WeekMinutes(sessions []domain.WorkSession, weekStart time.Time, loc *time.Location) (map[string]int, int) {
	days := make(map[string]int, 7)
	total := 0
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		m := DayMinutes(sessions, day, loc)
		days[day.Format(dateLayout)] = m
		total += m
	}
	return days, total
}
