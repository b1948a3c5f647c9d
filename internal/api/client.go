package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

const defaultBaseURL = "https://api.aladhan.com/v1"

// Query selects the location and calculation settings for Al Adhan. City
// takes precedence over coordinates when set. A negative Method or School
// leaves the API default.
type Query struct {
	City      string
	Country   string
	Latitude  float64
	Longitude float64
	Method    int
	School    int
}

// Client communicates with the Al Adhan prayer times API.
type Client struct {
	httpClient *http.Client
	// BaseURL is the API base URL. Defaults to the Al Adhan API.
	// Exported for testing with httptest.
	BaseURL string
	// Query is used by FetchYear.
	Query Query
}

// NewClient creates a new API client with sensible defaults.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		BaseURL: defaultBaseURL,
		Query:   Query{Method: -1, School: -1},
	}
}

func methodParams(params url.Values, method, school int) {
	if method >= 0 {
		params.Set("method", fmt.Sprintf("%d", method))
	}
	if school >= 0 {
		params.Set("school", fmt.Sprintf("%d", school))
	}
}

func coordinateParams(lat, lon float64, method, school int) url.Values {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", lat))
	params.Set("longitude", fmt.Sprintf("%f", lon))
	methodParams(params, method, school)
	return params
}

func cityParams(city, country string, method, school int) url.Values {
	params := url.Values{}
	params.Set("city", city)
	params.Set("country", country)
	methodParams(params, method, school)
	return params
}

// FetchCalendarByCoordinates fetches a whole month for the given coordinates.
func (c *Client) FetchCalendarByCoordinates(ctx context.Context, year, month int, lat, lon float64, method, school int) (*CalendarResponse, error) {
	endpoint := fmt.Sprintf("%s/calendar/%d/%d", c.BaseURL, year, month)
	return c.calendar(ctx, endpoint, coordinateParams(lat, lon, method, school))
}

// FetchCalendarByCity fetches a whole month for the given city and country.
func (c *Client) FetchCalendarByCity(ctx context.Context, year, month int, city, country string, method, school int) (*CalendarResponse, error) {
	endpoint := fmt.Sprintf("%s/calendarByCity/%d/%d", c.BaseURL, year, month)
	return c.calendar(ctx, endpoint, cityParams(city, country, method, school))
}

// FetchYear fetches the twelve months of year for c.Query.
func (c *Client) FetchYear(ctx context.Context, year int) (*YearTimes, error) {
	q := c.Query
	out := &YearTimes{Year: year, City: q.City}
	for month := 1; month <= 12; month++ {
		var (
			resp *CalendarResponse
			err  error
		)
		if q.City != "" {
			resp, err = c.FetchCalendarByCity(ctx, year, month, q.City, q.Country, q.Method, q.School)
		} else {
			resp, err = c.FetchCalendarByCoordinates(ctx, year, month, q.Latitude, q.Longitude, q.Method, q.School)
		}
		if err != nil {
			return nil, err
		}
		for _, d := range resp.Data {
			day, err := d.RawDay()
			if err != nil {
				return nil, err
			}
			out.Days = append(out.Days, day)
		}
	}
	out.sort()
	return out, nil
}

// RawDay converts one calendar entry to raw day times.
func (d Data) RawDay() (prayer.RawDayTimes, error) {
	g, err := time.Parse("02-01-2006", d.Date.Gregorian.Date)
	if err != nil {
		return prayer.RawDayTimes{}, &prayer.DataFormatError{Date: d.Date.Gregorian.Date, Field: "date", Value: d.Date.Gregorian.Date, Err: err}
	}
	return prayer.RawDayTimes{
		Date:    g.Format(timeutil.DateLayout),
		Fajr:    stripZone(d.Timings.Fajr),
		Sunrise: stripZone(d.Timings.Sunrise),
		Dhuhr:   stripZone(d.Timings.Dhuhr),
		Asr:     stripZone(d.Timings.Asr),
		Maghrib: stripZone(d.Timings.Maghrib),
		Isha:    stripZone(d.Timings.Isha),
	}, nil
}

// stripZone drops a trailing " (BST)" style suffix.
func stripZone(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func (c *Client) calendar(ctx context.Context, endpoint string, params url.Values) (*CalendarResponse, error) {
	var resp CalendarResponse
	if err := getJSON(ctx, c.httpClient, endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Code != 200 {
		return nil, &NetworkError{URL: endpoint, Err: fmt.Errorf("API error: code=%d status=%s", resp.Code, resp.Status)}
	}
	return &resp, nil
}

// getJSON performs a GET and decodes a JSON body into v. Every failure is a
// *NetworkError.
func getJSON(ctx context.Context, hc *http.Client, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &NetworkError{URL: reqURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return &NetworkError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &NetworkError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &NetworkError{URL: reqURL, Err: fmt.Errorf("failed to decode API response: %w", err)}
	}
	return nil
}
