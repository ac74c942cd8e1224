package utils

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO date format used by inputs and log output.
const DateLayout = "2006-01-02"

// SortDates sorts a slice of time.Time in ascending order.
func SortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}

// SearchDates returns the index of the first date >= target.
// Returns len(dates) if all dates are before target.
func SearchDates(dates []time.Time, target time.Time) int {
	return sort.Search(len(dates), func(i int) bool {
		return !dates[i].Before(target)
	})
}

// BracketTimes returns i such that times[i] <= t < times[i+1], clamped to
// [0, len(times)-2] so callers can extrapolate with the boundary segment.
func BracketTimes(times []float64, t float64) int {
	n := len(times)
	if n < 2 {
		return 0
	}
	i := sort.SearchFloat64s(times, t)
	// SearchFloat64s returns the first index with times[i] >= t.
	if i < n && times[i] == t {
		i++
	}
	i--
	if i < 0 {
		return 0
	}
	if i > n-2 {
		return n - 2
	}
	return i
}

// ParseDate converts YYYY-MM-DD to a UTC time.Time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate: %w", err)
	}
	return t, nil
}

// Date is a shorthand for a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of calendar days between two dates.
func Days(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}

// MonthInt returns the numeric month.
func MonthInt(t time.Time) int {
	return int(t.Month())
}

// AddMonth behaves like Excel's EDATE, avoiding Go's month normalization surprises.
func AddMonth(t time.Time, months int) time.Time {
	target := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	if target.Month() == t.AddDate(0, months, 0).Month() {
		return t.AddDate(0, months, 0)
	}

	d := t.AddDate(0, months, 0)
	origMonth := MonthInt(d)
	for MonthInt(d) == origMonth {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// RoundTo rounds half away from zero to the given decimal places. NaN and
// infinities pass through.
func RoundTo(val float64, decimals int32) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return val
	}
	return decimal.NewFromFloat(val).Round(decimals).InexactFloat64()
}
