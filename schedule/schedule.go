package schedule

import (
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
)

// Rule selects the direction dates are generated in.
type Rule int

const (
	// Backward rolls from termination toward effective, leaving a front stub.
	Backward Rule = iota
	// Forward rolls from effective toward termination, leaving a back stub.
	Forward
)

// Params describes a schedule.
type Params struct {
	Effective             time.Time
	Termination           time.Time
	Tenor                 utils.Period
	Calendar              calendar.ID
	Convention            calendar.Convention
	TerminationConvention calendar.Convention
	Rule                  Rule
	EndOfMonth            bool
}

// Schedule is an ordered sequence of adjusted dates.
type Schedule struct {
	dates   []time.Time
	cal     calendar.ID
	conv    calendar.Convention
	tenor   utils.Period
	regular []bool
	eom     bool
}

// Period is one accrual interval of a schedule.
type Period struct {
	Start   time.Time
	End     time.Time
	Regular bool
}

// minStubDays is the shortest stub kept as a separate period.
// A shorter stub is merged into its neighbour.
const minStubDays = 7

// New builds the adjusted date sequence.
func New(p Params) (*Schedule, error) {
	if !p.Termination.After(p.Effective) {
		return nil, qerr.Invalid("termination date (%s) must be after effective date (%s)",
			p.Termination.Format(utils.DateLayout), p.Effective.Format(utils.DateLayout))
	}
	if p.Tenor.N <= 0 {
		return nil, qerr.Invalid("schedule tenor (%s) must be positive", p.Tenor)
	}

	var unadjusted []time.Time
	var regular []bool
	if p.Rule == Backward {
		unadjusted, regular = rollBackward(p)
	} else {
		unadjusted, regular = rollForward(p)
	}

	dates := make([]time.Time, len(unadjusted))
	last := len(unadjusted) - 1
	for i, d := range unadjusted {
		conv := p.Convention
		if i == last {
			conv = p.TerminationConvention
		}
		if p.EndOfMonth && i > 0 && i < last && calendar.IsEndOfMonth(p.Calendar, p.Effective) && p.Tenor.Months() > 0 {
			dates[i] = calendar.LastBusinessDayOfMonth(p.Calendar, d)
			continue
		}
		dates[i] = calendar.Adjust(p.Calendar, d, conv)
	}

	return &Schedule{
		dates:   dates,
		cal:     p.Calendar,
		conv:    p.Convention,
		tenor:   p.Tenor,
		regular: regular,
		eom:     p.EndOfMonth,
	}, nil
}

// FromDates wraps an already adjusted, strictly increasing date list.
func FromDates(dates []time.Time, cal calendar.ID, conv calendar.Convention) (*Schedule, error) {
	if len(dates) < 2 {
		return nil, qerr.Invalid("schedule needs at least 2 dates, got %d", len(dates))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, qerr.Invalid("schedule dates must be strictly increasing (%s after %s)",
				dates[i].Format(utils.DateLayout), dates[i-1].Format(utils.DateLayout))
		}
	}
	regular := make([]bool, len(dates)-1)
	for i := range regular {
		regular[i] = true
	}
	out := make([]time.Time, len(dates))
	copy(out, dates)
	return &Schedule{dates: out, cal: cal, conv: conv, regular: regular}, nil
}

// rollBackward generates periods rolling backward from termination.
// Intermediate dates align with termination; the first period becomes a front stub if needed.
func rollBackward(p Params) ([]time.Time, []bool) {
	var dates []time.Time
	step := p.Tenor.Negate()
	for k := 0; ; k++ {
		d := termAnchored(p.Termination, step, k, p.EndOfMonth)
		if !d.After(p.Effective) {
			break
		}
		dates = append([]time.Time{d}, dates...)
	}

	// A stub shorter than a week is folded into the following period.
	stub := false
	if len(dates) > 1 && int(utils.Days(p.Effective, dates[0])) < minStubDays {
		dates = dates[1:]
	}
	if len(dates) > 0 {
		prev := termAnchored(dates[0], step, 1, p.EndOfMonth)
		stub = !prev.Equal(p.Effective)
	}
	dates = append([]time.Time{p.Effective}, dates...)

	regular := make([]bool, len(dates)-1)
	for i := range regular {
		regular[i] = true
	}
	if stub {
		regular[0] = false
	}
	return dates, regular
}

// rollForward generates periods rolling forward from effective.
func rollForward(p Params) ([]time.Time, []bool) {
	dates := []time.Time{p.Effective}
	for k := 1; ; k++ {
		d := termAnchored(p.Effective, p.Tenor, k, p.EndOfMonth)
		if !d.Before(p.Termination) {
			break
		}
		dates = append(dates, d)
	}

	last := dates[len(dates)-1]
	if len(dates) > 1 && int(utils.Days(last, p.Termination)) < minStubDays {
		dates = dates[:len(dates)-1]
		last = dates[len(dates)-1]
	}
	stub := !termAnchored(last, p.Tenor, 1, p.EndOfMonth).Equal(p.Termination)
	dates = append(dates, p.Termination)

	regular := make([]bool, len(dates)-1)
	for i := range regular {
		regular[i] = true
	}
	if stub {
		regular[len(regular)-1] = false
	}
	return dates, regular
}

// termAnchored returns anchor shifted by k tenors, always measured from the
// anchor so month-end rolls do not drift.
func termAnchored(anchor time.Time, tenor utils.Period, k int, eom bool) time.Time {
	shift := utils.Period{N: tenor.N * k, Unit: tenor.Unit}
	d := shift.AddTo(anchor)
	if eom && tenor.Months() != 0 && anchor.Equal(calendar.EndOfMonth(anchor)) {
		return calendar.EndOfMonth(d)
	}
	return d
}

// Dates returns a copy of the adjusted dates.
func (s *Schedule) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Len is the number of dates.
func (s *Schedule) Len() int { return len(s.dates) }

// Date returns the i-th date.
func (s *Schedule) Date(i int) time.Time { return s.dates[i] }

// StartDate is the first date.
func (s *Schedule) StartDate() time.Time { return s.dates[0] }

// EndDate is the last date.
func (s *Schedule) EndDate() time.Time { return s.dates[len(s.dates)-1] }

// Calendar returns the schedule's calendar.
func (s *Schedule) Calendar() calendar.ID { return s.cal }

// Convention returns the accrual adjustment convention.
func (s *Schedule) Convention() calendar.Convention { return s.conv }

// Tenor returns the generating tenor (zero for FromDates schedules).
func (s *Schedule) Tenor() utils.Period { return s.tenor }

// IsRegular reports whether period i (between dates i and i+1) is a full tenor.
func (s *Schedule) IsRegular(i int) bool { return s.regular[i] }

// Periods lists the accrual periods.
func (s *Schedule) Periods() []Period {
	out := make([]Period, 0, len(s.dates)-1)
	for i := 1; i < len(s.dates); i++ {
		out = append(out, Period{Start: s.dates[i-1], End: s.dates[i], Regular: s.regular[i-1]})
	}
	return out
}

// After returns the sub-schedule of dates on or after d.
func (s *Schedule) After(d time.Time) *Schedule {
	i := utils.SearchDates(s.dates, d)
	return s.slice(i, len(s.dates))
}

// Until returns the sub-schedule of dates on or before d.
func (s *Schedule) Until(d time.Time) *Schedule {
	i := utils.SearchDates(s.dates, d)
	if i < len(s.dates) && s.dates[i].Equal(d) {
		i++
	}
	return s.slice(0, i)
}

func (s *Schedule) slice(from, to int) *Schedule {
	dates := make([]time.Time, to-from)
	copy(dates, s.dates[from:to])
	var regular []bool
	if to-from > 1 {
		regular = make([]bool, to-from-1)
		copy(regular, s.regular[from:to-1])
	}
	return &Schedule{dates: dates, cal: s.cal, conv: s.conv, tenor: s.tenor, regular: regular, eom: s.eom}
}
