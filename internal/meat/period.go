package meat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is an ISO week, keyed "2026-W09".
type Period struct {
	Year int
	Week int
}

func PeriodOf(t time.Time) Period {
	y, w := t.ISOWeek()
	return Period{Year: y, Week: w}
}

// ParsePeriod accepts "2026-W09" and the unpadded "2026-W9".
func ParsePeriod(s string) (Period, error) {
	yearStr, weekStr, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(s)), "-W")
	if !ok {
		return Period{}, fmt.Errorf("invalid period %q, want YYYY-Www", s)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 9999 {
		return Period{}, fmt.Errorf("invalid period year in %q", s)
	}
	week, err := strconv.Atoi(weekStr)
	if err != nil || week < 1 || week > weeksInYear(year) {
		return Period{}, fmt.Errorf("invalid period week in %q", s)
	}
	return Period{Year: year, Week: week}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%d-W%02d", p.Year, p.Week)
}

// Bounds returns [Monday 00:00, next Monday 00:00) in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	jan4 := time.Date(p.Year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	start := jan4.AddDate(0, 0, -offset+(p.Week-1)*7)
	return start, start.AddDate(0, 0, 7)
}

func weeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}
