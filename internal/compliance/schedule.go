package compliance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"meatengine/internal/meat"
)

var ErrInvalidWindowKey = errors.New("invalid window key")

// Clock is a weekly wall-clock instant such as "Sun 22:00".
type Clock struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func ParseClock(s string) (Clock, error) {
	day, hm, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return Clock{}, fmt.Errorf("invalid weekly time %q, want e.g. \"Mon 11:00\"", s)
	}
	wd, ok := weekdays[strings.ToLower(day)[:min(3, len(day))]]
	if !ok {
		return Clock{}, fmt.Errorf("invalid weekday in %q", s)
	}
	t, err := time.Parse("15:04", strings.TrimSpace(hm))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day in %q: %w", s, err)
	}
	return Clock{Weekday: wd, Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%s %02d:%02d", c.Weekday.String()[:3], c.Hour, c.Minute)
}

// atOrBefore is the latest occurrence of c not after t.
func (c Clock) atOrBefore(t time.Time) time.Time {
	back := (int(t.Weekday()) - int(c.Weekday) + 7) % 7
	at := time.Date(t.Year(), t.Month(), t.Day()-back, c.Hour, c.Minute, 0, 0, t.Location())
	if at.After(t) {
		at = time.Date(at.Year(), at.Month(), at.Day()-7, c.Hour, c.Minute, 0, 0, t.Location())
	}
	return at
}

// atOrAfter is the earliest occurrence of c not before t.
func (c Clock) atOrAfter(t time.Time) time.Time {
	fwd := (int(c.Weekday) - int(t.Weekday()) + 7) % 7
	at := time.Date(t.Year(), t.Month(), t.Day()+fwd, c.Hour, c.Minute, 0, 0, t.Location())
	if at.Before(t) {
		at = time.Date(at.Year(), at.Month(), at.Day()+7, c.Hour, c.Minute, 0, 0, t.Location())
	}
	return at
}

// Schedule describes the weekly count cycle: the window opens at Open and
// the gate enforces from Cutoff until the next window opens.
type Schedule struct {
	Open     Clock
	Cutoff   Clock
	Location *time.Location
}

func NewSchedule(open, cutoff string, loc *time.Location) (Schedule, error) {
	o, err := ParseClock(open)
	if err != nil {
		return Schedule{}, fmt.Errorf("window open: %w", err)
	}
	c, err := ParseClock(cutoff)
	if err != nil {
		return Schedule{}, fmt.Errorf("cutoff: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return Schedule{Open: o, Cutoff: c, Location: loc}, nil
}

// Window is one weekly count cycle. Key is the ISO week of the cutoff.
type Window struct {
	Key    string    `json:"key"`
	Start  time.Time `json:"start"`
	Cutoff time.Time `json:"cutoff"`
	End    time.Time `json:"end"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Enforcing reports whether t falls between the cutoff and the next opening.
func (w Window) Enforcing(t time.Time) bool {
	return !t.Before(w.Cutoff) && t.Before(w.End)
}

// WindowAt returns the window that t falls in.
func (s Schedule) WindowAt(t time.Time) Window {
	start := s.Open.atOrBefore(t.In(s.Location))
	return s.window(start)
}

// ParseWindowKey returns the window whose cutoff falls in the ISO week key.
func (s Schedule) ParseWindowKey(key string) (Window, error) {
	p, err := meat.ParsePeriod(key)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", ErrInvalidWindowKey, err)
	}
	monday, _ := p.Bounds(s.Location)
	cutoff := s.Cutoff.atOrAfter(monday)
	w := s.window(s.Open.atOrBefore(cutoff))
	if w.Key != p.String() {
		return Window{}, fmt.Errorf("%w: %q does not map to a window", ErrInvalidWindowKey, key)
	}
	return w, nil
}

func (s Schedule) window(start time.Time) Window {
	end := time.Date(start.Year(), start.Month(), start.Day()+7, start.Hour(), start.Minute(), 0, 0, start.Location())
	cutoff := s.Cutoff.atOrAfter(start)
	return Window{
		Key:    meat.PeriodOf(cutoff).String(),
		Start:  start,
		Cutoff: cutoff,
		End:    end,
	}
}
