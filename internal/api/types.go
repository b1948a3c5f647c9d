// Package api fetches a year of raw prayer times from a remote provider.
//
// Two providers are supported: a plain year endpoint returning every date of
// a year in one document, and the Al Adhan calendar API, queried month by
// month. Both produce a YearTimes.
package api

import (
	"context"
	"fmt"
	"sort"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

// Provider fetches one calendar year of raw day times.
type Provider interface {
	FetchYear(ctx context.Context, year int) (*YearTimes, error)
}

// YearTimes is a year of raw day times, sorted by date.
type YearTimes struct {
	Year int
	City string
	Days []prayer.RawDayTimes
}

func (y *YearTimes) sort() {
	sort.Slice(y.Days, func(i, j int) bool { return y.Days[i].Date < y.Days[j].Date })
}

// NetworkError is a transport, status or decode failure talking to a
// provider.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API returned status %d from %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("API request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Year endpoint
// ---------------------------------------------------------------------------

// yearResponse is the document served by GET <base>/<year>.
type yearResponse struct {
	City  string             `json:"city"`
	Times map[string]yearDay `json:"times"`
}

// yearDay holds one date's clock times. The endpoint also sends *_jamat
// congregation times, which are not decoded.
type yearDay struct {
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Magrib  string `json:"magrib"`
	Isha    string `json:"isha"`
}

// ---------------------------------------------------------------------------
// Al Adhan
// ---------------------------------------------------------------------------

// CalendarResponse represents the Al Adhan calendar API response.
// The calendar endpoint returns an array of daily data objects for a whole month.
type CalendarResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   []Data `json:"data"`
}

// Data is one day of a calendar response.
type Data struct {
	Timings Timings  `json:"timings"`
	Date    DateInfo `json:"date"`
}

// Timings contains the prayer times as HH:MM strings.
// The API may include a timezone suffix like " (BST)" which we strip when
// converting to raw day times.
type Timings struct {
	Fajr    string `json:"Fajr"`
	Sunrise string `json:"Sunrise"`
	Dhuhr   string `json:"Dhuhr"`
	Asr     string `json:"Asr"`
	Maghrib string `json:"Maghrib"`
	Isha    string `json:"Isha"`
}

// DateInfo holds the Gregorian date of a calendar entry. The Hijri date
// sent alongside it is not decoded; it is computed locally instead.
type DateInfo struct {
	Gregorian GregorianDate `json:"gregorian"`
}

// GregorianDate is the entry's date as "DD-MM-YYYY".
type GregorianDate struct {
	Date string `json:"date"`
}
