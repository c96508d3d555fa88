// Package calendar converts Gregorian calendar dates to and from a monotonic
// ordinal day count so that expiry arithmetic is exact across month and year
// boundaries.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the only accepted textual form of a Date.
const Layout = "YYYY-MM-DD"

// Invalid is the ordinal returned for malformed input. Every valid date maps
// to a strictly positive ordinal.
const Invalid int64 = 0

var monthDays = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Date is a calendar day without time-of-day or zone.
type Date struct {
	Year  int
	Month int
	Day   int
}

// IsLeapYear reports whether y is a Gregorian leap year.
func IsLeapYear(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

// DaysInMonth returns the number of days in month m of year y, or 0 when m is
// outside 1..12.
func DaysInMonth(y, m int) int {
	if m < 1 || m > 12 {
		return 0
	}
	if m == 2 && IsLeapYear(y) {
		return 29
	}
	return monthDays[m]
}

// New builds a validated Date.
func New(year, month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if !d.Valid() {
		return Date{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return d, nil
}

// Valid reports whether d names an existing calendar day.
func (d Date) Valid() bool {
	if d.Year < 1 || d.Year > 9999 {
		return false
	}
	if d.Month < 1 || d.Month > 12 {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysInMonth(d.Year, d.Month)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Parse reads a strict YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	if len(s) != len(Layout) || s[4] != '-' || s[7] != '-' {
		return Date{}, fmt.Errorf("date %q: want %s", s, Layout)
	}
	year, ok1 := digits(s[0:4])
	month, ok2 := digits(s[5:7])
	day, ok3 := digits(s[8:10])
	if !ok1 || !ok2 || !ok3 {
		return Date{}, fmt.Errorf("date %q: want %s", s, Layout)
	}
	d := Date{Year: year, Month: month, Day: day}
	if !d.Valid() {
		return Date{}, fmt.Errorf("date %q: no such day", s)
	}
	return d, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Ordinal parses s and returns its ordinal day, or Invalid when s is not a
// well-formed existing date.
func Ordinal(s string) int64 {
	d, err := Parse(s)
	if err != nil {
		return Invalid
	}
	return d.Ordinal()
}

// Ordinal returns the number of days from the epoch to d, counting d itself.
// Consecutive days have consecutive ordinals. Invalid dates yield Invalid.
func (d Date) Ordinal() int64 {
	if !d.Valid() {
		return Invalid
	}
	y := int64(d.Year)
	prev := y - 1
	days := y*365 + prev/4 - prev/100 + prev/400
	for m := 1; m < d.Month; m++ {
		days += int64(DaysInMonth(d.Year, m))
	}
	return days + int64(d.Day)
}

// FromOrdinal is the inverse of Date.Ordinal. Ordinals outside the supported
// year range return the zero Date.
func FromOrdinal(n int64) Date {
	if n < (Date{Year: 1, Month: 1, Day: 1}).Ordinal() || n > (Date{Year: 9999, Month: 12, Day: 31}).Ordinal() {
		return Date{}
	}
	// Ordinal(y-01-01) is monotonic in y, so estimate then correct.
	y := int(n / 366)
	if y < 1 {
		y = 1
	}
	for y < 9999 && (Date{Year: y + 1, Month: 1, Day: 1}).Ordinal() <= n {
		y++
	}
	rem := n - (Date{Year: y, Month: 1, Day: 1}).Ordinal()
	m := 1
	for ; m < 12; m++ {
		dim := int64(DaysInMonth(y, m))
		if rem < dim {
			break
		}
		rem -= dim
	}
	return Date{Year: y, Month: m, Day: int(rem) + 1}
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return FromOrdinal(d.Ordinal() + int64(n))
}

// DaysUntil returns other.Ordinal() - d.Ordinal().
func (d Date) DaysUntil(other Date) int64 {
	return other.Ordinal() - d.Ordinal()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Ordinal() < other.Ordinal()
}

// FromTime returns the calendar day of t in t's location.
func FromTime(t time.Time) Date {
	y, m, dd := t.Date()
	return Date{Year: y, Month: int(m), Day: dd}
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
