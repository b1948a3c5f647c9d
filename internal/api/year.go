package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

// YearClient fetches a year from an endpoint serving GET <base>/<year>.
type YearClient struct {
	httpClient *http.Client
	BaseURL    string
}

// NewYearClient returns a client for base.
func NewYearClient(base string) *YearClient {
	return &YearClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    strings.TrimSuffix(base, "/"),
	}
}

// FetchYear fetches every date of year.
func (c *YearClient) FetchYear(ctx context.Context, year int) (*YearTimes, error) {
	var resp yearResponse
	if err := getJSON(ctx, c.httpClient, fmt.Sprintf("%s/%d", c.BaseURL, year), &resp); err != nil {
		return nil, err
	}

	out := &YearTimes{Year: year, City: resp.City, Days: make([]prayer.RawDayTimes, 0, len(resp.Times))}
	for date, t := range resp.Times {
		out.Days = append(out.Days, prayer.RawDayTimes{
			Date:    date,
			Fajr:    t.Fajr,
			Sunrise: t.Sunrise,
			Dhuhr:   t.Dhuhr,
			Asr:     t.Asr,
			Maghrib: t.Magrib,
			Isha:    t.Isha,
		})
	}
	out.sort()
	return out, nil
}
