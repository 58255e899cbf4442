package report

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Period is a named report window preset.
type Period string

const (
	PeriodThisMonth Period = "this-month"
	PeriodLastMonth Period = "last-month"
	Period3Months   Period = "3-months"
	Period6Months   Period = "6-months"
	Period12Months  Period = "12-months"
	PeriodAll       Period = "all"
)

// allTimeEpoch is the fixed start of the "all" preset.
var allTimeEpoch = civil.Date{Year: 2000, Month: time.January, Day: 1}

// Window is a resolved report window. Daily buckets are used only for the
// this-month preset; every other preset and every explicit range buckets by
// month. That rule is keyed off the preset, not the span: callers rely on a
// custom single-month range still producing monthly buckets.
type Window struct {
	Start civil.Date
	End   civil.Date
	Daily bool
}

// ResolveWindow translates a preset into a concrete window relative to now.
func ResolveWindow(preset Period, now time.Time) (Window, error) {
	first := firstOfMonth(now)
	switch preset {
	case PeriodThisMonth:
		return Window{Start: first, End: lastOfMonth(first), Daily: true}, nil
	case PeriodLastMonth:
		start := addMonths(first, -1)
		return Window{Start: start, End: lastOfMonth(start)}, nil
	case Period3Months:
		return Window{Start: addMonths(first, -2), End: lastOfMonth(first)}, nil
	case Period6Months:
		return Window{Start: addMonths(first, -5), End: lastOfMonth(first)}, nil
	case Period12Months:
		return Window{Start: addMonths(first, -11), End: lastOfMonth(first)}, nil
	case PeriodAll:
		return Window{Start: allTimeEpoch, End: lastOfMonth(first)}, nil
	default:
		return Window{}, fmt.Errorf("ResolveWindow: unknown period %q", preset)
	}
}

// CustomWindow builds a window from an explicit date range. Always monthly.
func CustomWindow(start, end civil.Date) (Window, error) {
	if !start.IsValid() || !end.IsValid() {
		return Window{}, fmt.Errorf("CustomWindow: invalid date range %v..%v", start, end)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("CustomWindow: end %v before start %v", end, start)
	}
	return Window{Start: start, End: end}, nil
}

// BucketLabel returns the bucket key for a date within this window:
// yyyy-mm-dd for daily windows, yyyy-mm for monthly ones.
func (w Window) BucketLabel(d civil.Date) string {
	if w.Daily {
		return d.String()
	}
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// Labels returns the ordered bucket labels spanning [Start, End].
func (w Window) Labels() []string {
	var labels []string
	if w.Daily {
		for d := w.Start; !w.End.Before(d); d = d.AddDays(1) {
			labels = append(labels, d.String())
		}
		return labels
	}
	for d := firstOfMonthDate(w.Start); !w.End.Before(d); d = addMonths(d, 1) {
		labels = append(labels, w.BucketLabel(d))
	}
	return labels
}

func firstOfMonth(t time.Time) civil.Date {
	return civil.Date{Year: t.Year(), Month: t.Month(), Day: 1}
}

func firstOfMonthDate(d civil.Date) civil.Date {
	return civil.Date{Year: d.Year, Month: d.Month, Day: 1}
}

func addMonths(d civil.Date, n int) civil.Date {
	t := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return civil.Date{Year: t.Year(), Month: t.Month(), Day: 1}
}

func lastOfMonth(d civil.Date) civil.Date {
	return addMonths(d, 1).AddDays(-1)
}
