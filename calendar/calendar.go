package calendar

import (
	"time"

	"github.com/meenmo/quantcore/utils"
)

// ID identifies a holiday calendar.
type ID string

const (
	// TARGET is the euro settlement calendar.
	TARGET ID = "TARGET"
	// WeekendsOnly treats every weekday as a business day.
	WeekendsOnly ID = "WEEKENDS"
	// Null treats every day as a business day.
	Null ID = "NULL"
)

// Convention is a business-day adjustment rule.
type Convention int

const (
	Following Convention = iota
	ModifiedFollowing
	Preceding
	ModifiedPreceding
	Unadjusted
)

func (c Convention) String() string {
	switch c {
	case Following:
		return "Following"
	case ModifiedFollowing:
		return "Modified Following"
	case Preceding:
		return "Preceding"
	case ModifiedPreceding:
		return "Modified Preceding"
	default:
		return "Unadjusted"
	}
}

// easterMonday returns the day of year of Easter Monday (anonymous Gregorian algorithm).
func easterMonday(year int) int {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.YearDay() + 1
}

func isTargetHoliday(t time.Time) bool {
	d, m, y := t.Day(), t.Month(), t.Year()
	yd := t.YearDay()
	em := easterMonday(y)
	return (d == 1 && m == time.January) ||
		(yd == em-3 && y >= 2000) ||
		(yd == em && y >= 2000) ||
		(d == 1 && m == time.May && y >= 2000) ||
		(d == 25 && m == time.December) ||
		(d == 26 && m == time.December && y >= 2000) ||
		(d == 31 && m == time.December && (y == 1998 || y == 1999 || y == 2001))
}

// IsHoliday reports whether t is a holiday (weekend or calendar holiday).
func IsHoliday(cal ID, t time.Time) bool {
	return !IsBusinessDay(cal, t)
}

// IsBusinessDay checks weekends and holiday sets.
func IsBusinessDay(cal ID, t time.Time) bool {
	if cal == Null {
		return true
	}
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	if cal == TARGET {
		return !isTargetHoliday(t)
	}
	return true
}

// Adjust moves t to a business day according to conv.
func Adjust(cal ID, t time.Time, conv Convention) time.Time {
	switch conv {
	case Unadjusted:
		return t
	case Following, ModifiedFollowing:
		adj := t
		for !IsBusinessDay(cal, adj) {
			adj = adj.AddDate(0, 0, 1)
		}
		if conv == ModifiedFollowing && adj.Month() != t.Month() {
			return Adjust(cal, t, Preceding)
		}
		return adj
	default:
		adj := t
		for !IsBusinessDay(cal, adj) {
			adj = adj.AddDate(0, 0, -1)
		}
		if conv == ModifiedPreceding && adj.Month() != t.Month() {
			return Adjust(cal, t, Following)
		}
		return adj
	}
}

// AddBusinessDays advances n business days (n can be negative).
func AddBusinessDays(cal ID, t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if IsBusinessDay(cal, t) {
			n -= step
		}
	}
	return t
}

// Advance moves t by p and adjusts the result. Day periods count business
// days; week, month and year periods are calendar shifts followed by conv.
// With endOfMonth, a start on the last business day of its month rolls to
// the last business day of the target month.
func Advance(cal ID, t time.Time, p utils.Period, conv Convention, endOfMonth bool) time.Time {
	if p.IsZero() {
		return Adjust(cal, t, conv)
	}
	switch p.Unit {
	case utils.UnitDays:
		return AddBusinessDays(cal, t, p.N)
	case utils.UnitWeeks:
		return Adjust(cal, t.AddDate(0, 0, 7*p.N), conv)
	default:
		target := p.AddTo(t)
		if endOfMonth && IsEndOfMonth(cal, t) {
			return LastBusinessDayOfMonth(cal, target)
		}
		return Adjust(cal, target, conv)
	}
}

// EndOfMonth returns the last calendar day of the month containing t.
func EndOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), utils.DaysInMonth(t.Year(), t.Month()), 0, 0, 0, 0, time.UTC)
}

// LastBusinessDayOfMonth returns the last business day of the month containing t.
func LastBusinessDayOfMonth(cal ID, t time.Time) time.Time {
	return Adjust(cal, EndOfMonth(t), Preceding)
}

// IsEndOfMonth checks if t is the last business day of its month.
func IsEndOfMonth(cal ID, t time.Time) bool {
	return t.Equal(LastBusinessDayOfMonth(cal, t))
}
