package prayer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseClock parses a strict "HH:mm" (or "H:mm") clock string.
func parseClock(raw string) (hour, min int, err error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 || len(parts[0]) < 1 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %q", raw)
	}
	if !allDigits(parts[0]) || !allDigits(parts[1]) {
		return 0, 0, fmt.Errorf("invalid time format: %q", raw)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, min, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// clockOn places a clock string on the given calendar date.
func clockOn(raw string, date time.Time) (time.Time, error) {
	h, m, err := parseClock(raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, date.Location()), nil
}
