package report

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies which report is being produced
type Kind string

const (
	KindDaily   Kind = "daily"
	KindMonthly Kind = "monthly"
)

// AllKinds returns all supported report kinds
func AllKinds() []Kind {
	return []Kind{KindDaily, KindMonthly}
}

// ParseKind converts a string into a Kind
func ParseKind(s string) (Kind, error) {
	want := Kind(strings.ToLower(strings.TrimSpace(s)))
	names := make([]string, 0, len(AllKinds()))
	for _, k := range AllKinds() {
		if k == want {
			return k, nil
		}
		names = append(names, string(k))
	}
	return "", fmt.Errorf("%w: %q (expected %s)", ErrInvalidReportKind, s, strings.Join(names, " or "))
}

// Title returns the capitalized kind name used in subjects
func (k Kind) Title() string {
	switch k {
	case KindDaily:
		return "Daily"
	case KindMonthly:
		return "Monthly"
	default:
		return string(k)
	}
}

// Label layouts
const (
	DailyLabelLayout   = "2006-01-02"
	MonthlyLabelLayout = "January 2006"
)

// Period is the time window a report covers.
// A zero End means the range is open-ended ("created at or after Start").
type Period struct {
	Kind  Kind
	Start time.Time
	End   time.Time
	Label string
}

// IsOpenEnded reports whether the period has no upper bound
func (p Period) IsOpenEnded() bool {
	return p.End.IsZero()
}

// FileLabel returns the label with spaces replaced, suitable for filenames
func (p Period) FileLabel() string {
	return strings.ReplaceAll(p.Label, " ", "_")
}

// ResolvePeriod computes the query range for the given report kind.
//
// Daily covers the calendar day of now, starting at midnight in loc, with no
// upper bound. Monthly covers the whole previous calendar month, from its first
// instant to 23:59:59 on its last day. A nil loc means UTC.
func ResolvePeriod(now time.Time, kind Kind, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	switch kind {
	case KindDaily:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		return Period{
			Kind:  KindDaily,
			Start: start,
			Label: start.Format(DailyLabelLayout),
		}, nil
	case KindMonthly:
		// time.Date normalizes month 0 to December of the prior year
		start := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, loc)
		end := time.Date(now.Year(), now.Month(), 0, 23, 59, 59, 0, loc)
		return Period{
			Kind:  KindMonthly,
			Start: start,
			End:   end,
			Label: start.Format(MonthlyLabelLayout),
		}, nil
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidReportKind, kind)
	}
}
