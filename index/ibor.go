// Package index holds interest-rate indexes: their fixing calendars, past
// fixings and the curves their future fixings are forecast from.
package index

import (
	"sort"
	"sync"
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// Name identifies a floating benchmark.
type Name string

const (
	EURIBOR1M  Name = "EURIBOR1M"
	EURIBOR3M  Name = "EURIBOR3M"
	EURIBOR6M  Name = "EURIBOR6M"
	EURIBOR12M Name = "EURIBOR12M"
	// ESTR12M is an annual-reset stand-in for the compounded ESTR leg of an OIS.
	ESTR12M Name = "ESTR12M"
)

// fixingStore keeps past fixings per index name. Indexes with the same name
// share one history, so a fixing added through any copy is seen by all.
type fixingStore struct {
	mu     sync.RWMutex
	byName map[Name]map[time.Time]float64
}

var fixings = &fixingStore{byName: map[Name]map[time.Time]float64{}}

func (s *fixingStore) add(n Name, d time.Time, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byName[n]
	if !ok {
		m = map[time.Time]float64{}
		s.byName[n] = m
	}
	m[d] = v
}

func (s *fixingStore) get(n Name, d time.Time) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byName[n][d]
	return v, ok
}

func (s *fixingStore) clear(n Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byName, n)
}

// ClearFixings drops the stored history of an index.
func ClearFixings(n Name) { fixings.clear(n) }

// IborIndex is a term rate fixed FixingDays business days before its value
// date and accruing over Tenor.
type IborIndex struct {
	Name       Name
	Tenor      utils.Period
	FixingDays int
	Calendar   calendar.ID
	DayCount   utils.DayCount
	Convention calendar.Convention
	EndOfMonth bool

	forecast termstructure.YieldCurve
}

// NewIborIndex validates the conventions. forecast may be nil for an index
// used only through past fixings.
func NewIborIndex(name Name, tenor utils.Period, fixingDays int, cal calendar.ID, conv calendar.Convention,
	eom bool, dc utils.DayCount, forecast termstructure.YieldCurve) (*IborIndex, error) {
	if name == "" {
		return nil, qerr.Invalid("index name not set")
	}
	if tenor.N <= 0 {
		return nil, qerr.Invalid("index tenor (%s) must be positive", tenor)
	}
	if fixingDays < 0 {
		return nil, qerr.Invalid("negative fixing days (%d)", fixingDays)
	}
	return &IborIndex{
		Name:       name,
		Tenor:      tenor,
		FixingDays: fixingDays,
		Calendar:   cal,
		DayCount:   dc,
		Convention: conv,
		EndOfMonth: eom,
		forecast:   forecast,
	}, nil
}

// Euribor is the TARGET, ACT/360, modified-following, end-of-month index.
func Euribor(tenor utils.Period, forecast termstructure.YieldCurve) *IborIndex {
	name := Name("EURIBOR" + tenor.String())
	return &IborIndex{
		Name:       name,
		Tenor:      tenor,
		FixingDays: 2,
		Calendar:   calendar.TARGET,
		DayCount:   utils.Act360,
		Convention: calendar.ModifiedFollowing,
		EndOfMonth: true,
		forecast:   forecast,
	}
}

// WithForecast returns a copy forecasting off curve. The fixing history is shared.
func (i *IborIndex) WithForecast(curve termstructure.YieldCurve) *IborIndex {
	c := *i
	c.forecast = curve
	return &c
}

// ForecastCurve is the attached forecasting curve, nil if none.
func (i *IborIndex) ForecastCurve() termstructure.YieldCurve { return i.forecast }

// Version tracks the forecasting curve.
func (i *IborIndex) Version() uint64 {
	if i.forecast == nil {
		return 0
	}
	return i.forecast.Version()
}

// FixingDate is the fixing date for an accrual starting at valueDate.
func (i *IborIndex) FixingDate(valueDate time.Time) time.Time {
	return calendar.AddBusinessDays(i.Calendar, valueDate, -i.FixingDays)
}

// ValueDate is the start of the deposit fixed on fixingDate.
func (i *IborIndex) ValueDate(fixingDate time.Time) time.Time {
	return calendar.AddBusinessDays(i.Calendar, fixingDate, i.FixingDays)
}

// MaturityDate is the end of the deposit starting at valueDate.
func (i *IborIndex) MaturityDate(valueDate time.Time) time.Time {
	return calendar.Advance(i.Calendar, valueDate, i.Tenor, i.Convention, i.EndOfMonth)
}

// IsValidFixingDate reports whether fixings can occur on d.
func (i *IborIndex) IsValidFixingDate(d time.Time) bool {
	return calendar.IsBusinessDay(i.Calendar, d)
}

// AddFixing stores a past fixing.
func (i *IborIndex) AddFixing(d time.Time, v float64) error {
	if !i.IsValidFixingDate(d) {
		return qerr.Invalid("invalid fixing date %s for %s", d.Format(utils.DateLayout), i.Name)
	}
	fixings.add(i.Name, d, v)
	return nil
}

// AddFixings stores a batch of past fixings.
func (i *IborIndex) AddFixings(history map[time.Time]float64) error {
	dates := make([]time.Time, 0, len(history))
	for d := range history {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
	for _, d := range dates {
		if err := i.AddFixing(d, history[d]); err != nil {
			return err
		}
	}
	return nil
}

// Forecast is the simply compounded forward rate over [start, end] in the
// index day count.
func (i *IborIndex) Forecast(start, end time.Time) (float64, error) {
	if i.forecast == nil {
		return 0, qerr.Invalid("null term structure set to %s", i.Name)
	}
	tau := utils.YearFraction(start, end, i.DayCount)
	if tau <= 0 {
		return 0, qerr.Numerical("non-positive accrual (%g) forecasting %s", tau, i.Name)
	}
	return termstructure.SimpleForward(i.forecast, start, end, tau), nil
}

// ForecastFixing forecasts the rate fixed on fixingDate.
func (i *IborIndex) ForecastFixing(fixingDate time.Time) (float64, error) {
	start := i.ValueDate(fixingDate)
	return i.Forecast(start, i.MaturityDate(start))
}

// Fixing returns the stored fixing for past dates and the forecast for
// future ones. A fixing on the evaluation date uses the stored value when
// present.
func (i *IborIndex) Fixing(vc valuation.Context, fixingDate time.Time) (float64, error) {
	if !i.IsValidFixingDate(fixingDate) {
		return 0, qerr.Invalid("fixing date %s is not valid for %s", fixingDate.Format(utils.DateLayout), i.Name)
	}
	today := vc.EvaluationDate
	if fixingDate.Before(today) {
		v, ok := fixings.get(i.Name, fixingDate)
		if !ok {
			return 0, qerr.Stale("missing %s fixing for %s", i.Name, fixingDate.Format(utils.DateLayout))
		}
		return v, nil
	}
	if fixingDate.Equal(today) {
		if v, ok := fixings.get(i.Name, fixingDate); ok {
			return v, nil
		}
	}
	return i.ForecastFixing(fixingDate)
}
