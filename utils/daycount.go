package utils

import (
	"time"
)

// DayCount names a day count convention.
type DayCount string

const (
	Act360     DayCount = "ACT/360"
	Act365F    DayCount = "ACT/365F"
	Thirty360  DayCount = "30/360"
	Thirty360E DayCount = "30E/360"
	ActActISDA DayCount = "ACT/ACT"
)

// YearFraction computes year fraction between two dates using the specified day count convention.
// Unknown conventions fall back to ACT/365F.
func YearFraction(start, end time.Time, convention DayCount) float64 {
	switch convention {
	case Act360:
		return Days(start, end) / 360.0
	case Act365F:
		return Days(start, end) / 365.0
	case Thirty360:
		// 30/360 US (bond basis): D2 capped only when D1 is.
		d1 := start.Day()
		if d1 == 31 {
			d1 = 30
		}
		d2 := end.Day()
		if d2 == 31 && d1 == 30 {
			d2 = 30
		}
		return thirty360(start, end, d1, d2)
	case Thirty360E:
		// 30E/360 (Eurobond basis): D1 and D2 are capped at 30.
		d1 := start.Day()
		if d1 > 30 {
			d1 = 30
		}
		d2 := end.Day()
		if d2 > 30 {
			d2 = 30
		}
		return thirty360(start, end, d1, d2)
	case ActActISDA:
		return actActISDA(start, end)
	default:
		return Days(start, end) / 365.0
	}
}

func thirty360(start, end time.Time, d1, d2 int) float64 {
	y1, m1 := start.Year(), int(start.Month())
	y2, m2 := end.Year(), int(end.Month())
	return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
}

func actActISDA(start, end time.Time) float64 {
	if start.Equal(end) {
		return 0
	}
	if end.Before(start) {
		return -actActISDA(end, start)
	}
	y1, y2 := start.Year(), end.Year()
	basis := func(y int) float64 {
		if time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay() == 366 {
			return 366
		}
		return 365
	}
	if y1 == y2 {
		return Days(start, end) / basis(y1)
	}
	first := Days(start, Date(y1+1, time.January, 1)) / basis(y1)
	last := Days(Date(y2, time.January, 1), end) / basis(y2)
	return first + float64(y2-y1-1) + last
}
