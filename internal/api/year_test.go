package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const yearBody = `{
  "city": "Cardiff",
  "times": {
    "2026-01-02": {"fajr": "06:13", "fajr_jamat": "06:30", "sunrise": "08:17", "dhuhr": "12:23", "dhuhr_jamat": "13:00",
                   "asr": "14:12", "asr_jamat": "14:30", "magrib": "16:20", "magrib_jamat": "16:25", "isha": "17:58", "isha_jamat": "19:00"},
    "2026-01-01": {"fajr": "06:13", "sunrise": "08:17", "dhuhr": "12:22", "asr": "14:11", "magrib": "16:19", "isha": "17:57"}
  }
}`

func TestYearClient_FetchYear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/times/2026" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(yearBody))
	}))
	defer server.Close()

	c := NewYearClient(server.URL + "/times/")
	got, err := c.FetchYear(context.Background(), 2026)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.City != "Cardiff" || got.Year != 2026 {
		t.Errorf("got city %q year %d", got.City, got.Year)
	}
	if len(got.Days) != 2 {
		t.Fatalf("got %d days, want 2", len(got.Days))
	}
	first := got.Days[0]
	if first.Date != "2026-01-01" {
		t.Errorf("days not sorted: %s first", first.Date)
	}
	if got.Days[1].Maghrib != "16:20" || got.Days[1].Dhuhr != "12:23" {
		t.Errorf("jamat times leaked into day: %+v", got.Days[1])
	}
}

func TestYearClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: "no such year"},
		{name: "bad json", status: http.StatusOK, body: "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewYearClient(server.URL).FetchYear(context.Background(), 2026)
			var nerr *NetworkError
			if !errors.As(err, &nerr) {
				t.Fatalf("error = %v, want *NetworkError", err)
			}
		})
	}
}
