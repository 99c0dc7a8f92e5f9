// Package hijri converts between the Gregorian calendar and the tabular
// (arithmetic) Islamic calendar.
//
// The arithmetic calendar uses a 30-year cycle with 11 leap years and the
// civil epoch of 16 July 622 CE. It is deterministic and does not follow
// moon sighting or Umm al-Qura tables, so it may differ from an announced
// date by a day.
package hijri

import (
	"fmt"
	"time"
)

const (
	// epochJDN is the Julian Day Number of 1 Muharram 1 AH (civil epoch).
	epochJDN = 1948439
	// unixEpochJDN is the Julian Day Number of 1970-01-01.
	unixEpochJDN = 2440588

	secondsPerDay = 86400
)

// Date is a day in the Hijri calendar.
type Date struct {
	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
	Day   int `json:"day" yaml:"day"`
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// leapCycle lists the positions within the 30-year cycle that have a
// 30-day Dhu al-Hijjah.
var leapCycle = [30]bool{
	2: true, 5: true, 7: true, 10: true, 13: true, 16: true,
	18: true, 21: true, 24: true, 26: true, 29: true,
}

// IsLeapYear reports whether the Hijri year has 355 days.
func IsLeapYear(year int) bool {
	return leapCycle[mod(year, 30)]
}

// MonthLength returns the number of days in the given Hijri month.
// Odd months have 30 days, even months 29, and month 12 has 30 days in
// leap years.
func MonthLength(year, month int) int {
	if month == 12 {
		if IsLeapYear(year) {
			return 30
		}
		return 29
	}
	if month%2 == 1 {
		return 30
	}
	return 29
}

// ClampDay limits day to the length of the given Hijri month.
func ClampDay(year, month, day int) int {
	if day < 1 {
		return 1
	}
	if n := MonthLength(year, month); day > n {
		return n
	}
	return day
}

// ToGregorian returns midnight in loc of the Gregorian day matching the
// Hijri date. The day is not validated: an out-of-range day rolls over
// into the following month.
func ToGregorian(year, month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	days := toJDN(year, month, day) - unixEpochJDN
	civil := time.Unix(int64(days)*secondsPerDay, 0).UTC()
	return time.Date(civil.Year(), civil.Month(), civil.Day(), 0, 0, 0, 0, loc)
}

// FromGregorian returns the Hijri date of the civil day of t, evaluated in
// t's own location.
func FromGregorian(t time.Time) Date {
	return fromJDN(civilJDN(t))
}

// civilJDN returns the Julian Day Number of t's wall-clock date.
func civilJDN(t time.Time) int {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(floorDiv(midnight.Unix(), secondsPerDay)) + unixEpochJDN
}

func toJDN(year, month, day int) int {
	return day +
		monthOffset(month) +
		(year-1)*354 +
		floorDivInt(3+11*year, 30) +
		epochJDN - 1
}

// monthOffset is ceil(29.5 * (month-1)), the days preceding a month.
func monthOffset(month int) int {
	return floorDivInt(59*(month-1)+1, 2)
}

func fromJDN(jdn int) Date {
	year := floorDivInt(30*(jdn-epochJDN)+10646, 10631)
	first := toJDN(year, 1, 1)
	month := ceilDivInt(2*(jdn-29-first), 59) + 1
	if month > 12 {
		month = 12
	}
	if month < 1 {
		month = 1
	}
	day := jdn - toJDN(year, month, 1) + 1
	return Date{Year: year, Month: month, Day: day}
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorDivInt(a, b int) int {
	return int(floorDiv(int64(a), int64(b)))
}

func ceilDivInt(a, b int) int {
	return -floorDivInt(-a, b)
}
