package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Layout is the ISO 8601 calendar date layout used for every stored date.
// Dates in this layout compare correctly as plain strings.
const Layout = "2006-01-02"

func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", err, s)
	}
	return t, nil
}

func Validate(s string) error {
	_, err := Parse(s)
	return err
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

func AddDays(s string, days int) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t.AddDate(0, 0, days)), nil
}

// Range returns every calendar day in [from, to], weekends included.
// An inverted range yields no days.
func Range(from, to string) ([]string, error) {
	start, err := Parse(from)
	if err != nil {
		return nil, err
	}
	end, err := Parse(to)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, nil
	}

	days := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, Format(d))
	}
	return days, nil
}

// Today returns the current calendar date in the given IANA timezone.
func Today(now time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: can't load timezone %s", err, tz)
	}
	return Format(now.In(loc)), nil
}

// Yesterday returns the calendar date before today in the given timezone.
func Yesterday(now time.Time, tz string) (string, error) {
	today, err := Today(now, tz)
	if err != nil {
		return "", err
	}
	return AddDays(today, -1)
}
