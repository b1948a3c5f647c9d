// Package prayer turns a day's raw clock times into typed, fully dated prayer
// events, including the computed night and clock-offset prayers.
package prayer

import (
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Name identifies a prayer or time marker.
type Name string

// Standard schedule.
const (
	Fajr    Name = "Fajr"
	Sunrise Name = "Sunrise"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"
)

// Extra schedule.
const (
	Midnight  Name = "Midnight"
	LastThird Name = "LastThird"
	Suhoor    Name = "Suhoor"
	Duha      Name = "Duha"
	Istijaba  Name = "Istijaba"
)

// ShortNames maps prayer names to the abbreviations used by compact formats.
var ShortNames = map[Name]string{
	Fajr:      "F",
	Sunrise:   "S",
	Dhuhr:     "D",
	Asr:       "A",
	Maghrib:   "M",
	Isha:      "I",
	Midnight:  "Mi",
	LastThird: "L3",
	Suhoor:    "Su",
	Duha:      "Du",
	Istijaba:  "Is",
}

// Kind is the schedule a prayer belongs to.
type Kind int

const (
	Standard Kind = iota
	Extra
)

// Kinds lists every schedule kind in display order.
func Kinds() []Kind {
	return []Kind{Standard, Extra}
}

func (k Kind) String() string {
	switch k {
	case Standard:
		return "standard"
	case Extra:
		return "extra"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind parses "standard" or "extra".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return Standard, nil
	case "extra":
		return Extra, nil
	}
	return 0, fmt.Errorf("unknown schedule kind %q: must be \"standard\" or \"extra\"", s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Standard, Extra:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("cannot marshal %s", k)
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

var (
	standardNames = []Name{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}
	extraNames    = []Name{Midnight, LastThird, Suhoor, Duha, Istijaba}
)

// Names returns the canonical names of a kind. A prayer's position in this
// list is its stable prayer index, independent of how many prayers a given
// day actually has.
func Names(k Kind) []Name {
	switch k {
	case Standard:
		return append([]Name(nil), standardNames...)
	case Extra:
		return append([]Name(nil), extraNames...)
	}
	return nil
}

// KindOf returns the schedule a name belongs to.
func KindOf(n Name) (Kind, bool) {
	for _, k := range Kinds() {
		if Index(k, n) >= 0 {
			return k, true
		}
	}
	return 0, false
}

// Index returns n's prayer index within kind, or -1.
func Index(k Kind, n Name) int {
	for i, name := range Names(k) {
		if name == n {
			return i
		}
	}
	return -1
}

// NameAt returns the name at a prayer index.
func NameAt(k Kind, idx int) (Name, error) {
	names := Names(k)
	if idx < 0 || idx >= len(names) {
		return "", fmt.Errorf("prayer index %d out of range for %s (0-%d)", idx, k, len(names)-1)
	}
	return names[idx], nil
}

// ParseName resolves a case-insensitive prayer name.
func ParseName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	for _, k := range Kinds() {
		for _, n := range Names(k) {
			if strings.EqualFold(string(n), s) {
				return n, nil
			}
		}
	}
	return "", fmt.Errorf("unknown prayer name %q", s)
}

// Prayer is a single dated prayer occurrence. Values are never mutated after
// derivation; a change in source data produces new values.
type Prayer struct {
	Name                 Name      `json:"name"`
	Kind                 Kind      `json:"kind"`
	DisplayNameLocalized string    `json:"display_name_localized,omitempty"`
	Datetime             time.Time `json:"datetime"`
	// BelongsToDate is the ISO date of the Islamic-day group the prayer is
	// shown under. Late-night prayers belong to the day that is ending.
	BelongsToDate string `json:"belongs_to_date"`
}

// Equal reports whether two prayers describe the same occurrence at the same instant.
func (p Prayer) Equal(o Prayer) bool {
	return p.Name == o.Name &&
		p.Kind == o.Kind &&
		p.DisplayNameLocalized == o.DisplayNameLocalized &&
		p.BelongsToDate == o.BelongsToDate &&
		p.Datetime.Equal(o.Datetime)
}

// Key identifies an occurrence within a schedule.
func (p Prayer) Key() string {
	return p.BelongsToDate + "/" + string(p.Name)
}

// Filter returns the prayers of one kind, preserving order.
func Filter(prayers []Prayer, k Kind) []Prayer {
	var out []Prayer
	for _, p := range prayers {
		if p.Kind == k {
			out = append(out, p)
		}
	}
	return out
}

// RawDayTimes is one calendar date's clock times as received from the
// provider. Times are "HH:mm" in the location's local time.
type RawDayTimes struct {
	Date    string `json:"date"`
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"magrib"`
	Isha    string `json:"isha"`
}

// clock returns the raw clock string for a standard prayer.
func (r RawDayTimes) clock(n Name) string {
	switch n {
	case Fajr:
		return r.Fajr
	case Sunrise:
		return r.Sunrise
	case Dhuhr:
		return r.Dhuhr
	case Asr:
		return r.Asr
	case Maghrib:
		return r.Maghrib
	case Isha:
		return r.Isha
	}
	return ""
}

// Validate checks the date key and every clock field.
func (r RawDayTimes) Validate() error {
	if _, err := time.Parse(timeutil.DateLayout, r.Date); err != nil {
		return &DataFormatError{Date: r.Date, Field: "date", Value: r.Date, Err: err}
	}
	for _, n := range standardNames {
		if _, _, err := parseClock(r.clock(n)); err != nil {
			return &DataFormatError{Date: r.Date, Field: strings.ToLower(string(n)), Value: r.clock(n), Err: err}
		}
	}
	return nil
}

// DataFormatError reports malformed raw time data for one day.
type DataFormatError struct {
	Date  string
	Field string
	Value string
	Err   error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("invalid %s %q for %s: %v", e.Field, e.Value, e.Date, e.Err)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}
