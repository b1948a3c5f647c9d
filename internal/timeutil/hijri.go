package timeutil

import (
	"fmt"
	"time"
)

// HijriDate is a date in the tabular Islamic calendar.
type HijriDate struct {
	Year  int
	Month int // 1 = Muharram, 9 = Ramadan
	Day   int
}

var hijriMonths = [...]string{
	"Muharram", "Safar", "Rabi al-Awwal", "Rabi al-Thani",
	"Jumada al-Ula", "Jumada al-Akhirah", "Rajab", "Shaban",
	"Ramadan", "Shawwal", "Dhu al-Qadah", "Dhu al-Hijjah",
}

// MonthName returns the transliterated month name.
func (h HijriDate) MonthName() string {
	if h.Month < 1 || h.Month > 12 {
		return ""
	}
	return hijriMonths[h.Month-1]
}

// Format returns the date as "DD MonthName YYYY AH".
func (h HijriDate) Format() string {
	if h.Day == 0 || h.MonthName() == "" {
		return ""
	}
	return fmt.Sprintf("%d %s %d AH", h.Day, h.MonthName(), h.Year)
}

// Hijri converts t's calendar date with the arithmetic Islamic calendar.
// It can differ by a day from sighting-based calendars.
func Hijri(t time.Time) HijriDate {
	jd := julianDay(t.Year(), int(t.Month()), t.Day())

	l := jd - 1948440 + 10632
	n := (l - 1) / 10631
	l = l - 10631*n + 354
	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29
	month := (24 * l) / 709
	day := l - (709*month)/24
	year := 30*n + j - 30

	return HijriDate{Year: year, Month: month, Day: day}
}

func julianDay(y, m, d int) int {
	a := (m - 14) / 12
	return (1461*(y+4800+a))/4 + (367*(m-2-12*a))/12 - (3*((y+4900+a)/100))/4 + d - 32075
}
