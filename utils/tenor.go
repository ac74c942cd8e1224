package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeUnit is the unit of a Period.
type TimeUnit int

const (
	UnitDays TimeUnit = iota
	UnitWeeks
	UnitMonths
	UnitYears
)

// Period is a tenor such as 3M or 10Y.
type Period struct {
	N    int
	Unit TimeUnit
}

// ParsePeriod converts tenor strings like "1W", "3M", "10Y", "2D".
func ParsePeriod(tenor string) (Period, error) {
	tenor = strings.TrimSpace(strings.ToUpper(tenor))
	if len(tenor) < 2 {
		return Period{}, fmt.Errorf("ParsePeriod: invalid tenor %q", tenor)
	}
	var unit TimeUnit
	switch tenor[len(tenor)-1] {
	case 'D':
		unit = UnitDays
	case 'W':
		unit = UnitWeeks
	case 'M':
		unit = UnitMonths
	case 'Y':
		unit = UnitYears
	default:
		return Period{}, fmt.Errorf("ParsePeriod: unknown unit in tenor %q", tenor)
	}
	n, err := strconv.Atoi(tenor[:len(tenor)-1])
	if err != nil {
		return Period{}, fmt.Errorf("ParsePeriod: %w", err)
	}
	return Period{N: n, Unit: unit}, nil
}

// MustPeriod is ParsePeriod for literals known to be valid.
func MustPeriod(tenor string) Period {
	p, err := ParsePeriod(tenor)
	if err != nil {
		panic(err)
	}
	return p
}

// Years approximates the period length in years.
func (p Period) Years() float64 {
	switch p.Unit {
	case UnitDays:
		return float64(p.N) / 365.0
	case UnitWeeks:
		return float64(p.N) * 7.0 / 365.0
	case UnitMonths:
		return float64(p.N) / 12.0
	default:
		return float64(p.N)
	}
}

// Months returns the period in months for month and year units, else 0.
func (p Period) Months() int {
	switch p.Unit {
	case UnitMonths:
		return p.N
	case UnitYears:
		return 12 * p.N
	default:
		return 0
	}
}

// Negate flips the sign of the period.
func (p Period) Negate() Period {
	return Period{N: -p.N, Unit: p.Unit}
}

// IsZero reports an empty period.
func (p Period) IsZero() bool {
	return p.N == 0
}

// AddTo shifts d by p without any business-day adjustment.
// Month and year shifts use EDATE semantics.
func (p Period) AddTo(d time.Time) time.Time {
	switch p.Unit {
	case UnitDays:
		return d.AddDate(0, 0, p.N)
	case UnitWeeks:
		return d.AddDate(0, 0, 7*p.N)
	default:
		return AddMonth(d, p.Months())
	}
}

func (p Period) String() string {
	suffix := [...]string{"D", "W", "M", "Y"}[p.Unit]
	return strconv.Itoa(p.N) + suffix
}
