package prayer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// ClockOffset places a computed prayer relative to a standard prayer of the
// same day.
type ClockOffset struct {
	Base    Name `json:"base"`
	Minutes int  `json:"minutes"`
}

// Config holds the derivation constants.
type Config struct {
	// EarlyMorningCutoff is the wall-clock time of day before which a computed
	// prayer belongs to the previous calendar day.
	EarlyMorningCutoff     time.Duration
	LastThirdOffsetMinutes int
	Suhoor                 ClockOffset
	Duha                   ClockOffset
	Istijaba               ClockOffset
}

// DefaultConfig returns the stock derivation constants.
func DefaultConfig() Config {
	return Config{
		EarlyMorningCutoff: 6 * time.Hour,
		Suhoor:             ClockOffset{Base: Fajr, Minutes: -10},
		Duha:               ClockOffset{Base: Sunrise, Minutes: 20},
		Istijaba:           ClockOffset{Base: Maghrib, Minutes: -60},
	}
}

// MaxLastThirdOffset bounds the last-third adjustment in minutes.
const MaxLastThirdOffset = 120

// Validate checks that offsets are based on standard prayers and the cutoff is
// a time within the first half of the day.
func (c Config) Validate() error {
	if c.EarlyMorningCutoff < 0 || c.EarlyMorningCutoff > 12*time.Hour {
		return fmt.Errorf("early morning cutoff %s out of range (0-12h)", c.EarlyMorningCutoff)
	}
	if c.LastThirdOffsetMinutes < -MaxLastThirdOffset || c.LastThirdOffsetMinutes > MaxLastThirdOffset {
		return fmt.Errorf("last third offset %d out of range (-%d..%d minutes)", c.LastThirdOffsetMinutes, MaxLastThirdOffset, MaxLastThirdOffset)
	}
	for name, off := range map[Name]ClockOffset{Suhoor: c.Suhoor, Duha: c.Duha, Istijaba: c.Istijaba} {
		if Index(Standard, off.Base) < 0 {
			return fmt.Errorf("%s offset base %q is not a standard prayer", name, off.Base)
		}
	}
	return nil
}

// Localizer supplies display names.
type Localizer interface {
	DisplayName(n Name) string
}

// Deriver converts raw day times into prayers.
type Deriver struct {
	cfg   Config
	loc   *time.Location
	names Localizer
}

// NewDeriver returns a Deriver for the location. names may be nil, in which
// case DisplayNameLocalized is left empty.
func NewDeriver(cfg Config, loc *time.Location, names Localizer) *Deriver {
	if loc == nil {
		loc = time.Local
	}
	return &Deriver{cfg: cfg, loc: loc, names: names}
}

// Location returns the location prayers are placed in.
func (d *Deriver) Location() *time.Location {
	return d.loc
}

// Derive returns the standard and computed prayers for day, sorted by time.
// prev is the previous calendar day; without it the night prayers that depend
// on the previous Maghrib are omitted.
func (d *Deriver) Derive(day RawDayTimes, prev *RawDayTimes) ([]Prayer, error) {
	date, err := timeutil.ParseDate(day.Date, d.loc)
	if err != nil {
		return nil, &DataFormatError{Date: day.Date, Field: "date", Value: day.Date, Err: err}
	}

	times := make(map[Name]time.Time, len(standardNames))
	out := make([]Prayer, 0, len(standardNames)+len(extraNames))
	for _, n := range standardNames {
		t, err := clockOn(day.clock(n), date)
		if err != nil {
			return nil, &DataFormatError{Date: day.Date, Field: strings.ToLower(string(n)), Value: day.clock(n), Err: err}
		}
		times[n] = t
		out = append(out, d.prayer(n, Standard, t, day.Date))
	}

	if prev != nil {
		night, err := d.nightPrayers(date, times[Fajr], *prev)
		if err != nil {
			return nil, err
		}
		out = append(out, night...)
	}

	for _, c := range []struct {
		name Name
		off  ClockOffset
	}{
		{Suhoor, d.cfg.Suhoor},
		{Duha, d.cfg.Duha},
		{Istijaba, d.cfg.Istijaba},
	} {
		base, ok := times[c.off.Base]
		if !ok {
			return nil, fmt.Errorf("%s offset base %q is not a standard prayer", c.name, c.off.Base)
		}
		t := base.Add(time.Duration(c.off.Minutes) * time.Minute)
		belongs := d.belongsTo(t)
		if c.name == Istijaba && !timeutil.IsFridayKey(belongs) {
			continue
		}
		out = append(out, d.prayer(c.name, Extra, t, belongs))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Datetime.Before(out[j].Datetime)
	})
	return out, nil
}

// nightPrayers splits the night between prev's Maghrib and this day's Fajr.
func (d *Deriver) nightPrayers(date, fajr time.Time, prev RawDayTimes) ([]Prayer, error) {
	prevDate, err := timeutil.ParseDate(prev.Date, d.loc)
	if err != nil {
		return nil, &DataFormatError{Date: prev.Date, Field: "date", Value: prev.Date, Err: err}
	}
	if want := timeutil.AddDays(date, -1); !prevDate.Equal(want) {
		return nil, fmt.Errorf("previous day %s does not precede %s", prev.Date, timeutil.DateKey(date))
	}
	maghrib, err := clockOn(prev.Maghrib, prevDate)
	if err != nil {
		return nil, &DataFormatError{Date: prev.Date, Field: "maghrib", Value: prev.Maghrib, Err: err}
	}

	night := fajr.Sub(maghrib)
	if night <= 0 {
		return nil, &DataFormatError{
			Date:  prev.Date,
			Field: "maghrib",
			Value: prev.Maghrib,
			Err:   fmt.Errorf("not before next fajr at %s", fajr.Format("15:04")),
		}
	}

	mid := maghrib.Add(night / 2).Truncate(time.Minute)
	third := maghrib.Add(night * 2 / 3).Truncate(time.Minute).
		Add(time.Duration(d.cfg.LastThirdOffsetMinutes) * time.Minute)

	return []Prayer{
		d.prayer(Midnight, Extra, mid, d.belongsTo(mid)),
		d.prayer(LastThird, Extra, third, d.belongsTo(third)),
	}, nil
}

// belongsTo applies the early-morning rule: computed prayers before the
// cutoff belong to the previous calendar day.
func (d *Deriver) belongsTo(t time.Time) string {
	local := t.In(d.loc)
	since := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute
	if since < d.cfg.EarlyMorningCutoff {
		return timeutil.DateKey(timeutil.AddDays(timeutil.StartOfDay(local), -1))
	}
	return timeutil.DateKey(local)
}

func (d *Deriver) prayer(n Name, k Kind, t time.Time, belongs string) Prayer {
	p := Prayer{Name: n, Kind: k, Datetime: t, BelongsToDate: belongs}
	if d.names != nil {
		p.DisplayNameLocalized = d.names.DisplayName(n)
	}
	return p
}
