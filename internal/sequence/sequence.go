// Package sequence builds and owns the rolling multi-day prayer sequences.
package sequence

import (
	"sort"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Sequence is an immutable, time-sorted run of one kind's prayers across
// consecutive days. No two entries share both Name and BelongsToDate.
type Sequence struct {
	Kind    prayer.Kind     `json:"kind"`
	Center  string          `json:"center"`
	Prayers []prayer.Prayer `json:"prayers"`
	BuiltAt time.Time       `json:"built_at"`
}

// New sorts and deduplicates prayers into a Sequence. Prayers of other kinds
// are dropped.
func New(kind prayer.Kind, center string, prayers []prayer.Prayer, builtAt time.Time) *Sequence {
	ps := prayer.Filter(prayers, kind)
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Datetime.Before(ps[j].Datetime)
	})

	seen := make(map[string]struct{}, len(ps))
	out := ps[:0]
	for _, p := range ps {
		if _, dup := seen[p.Key()]; dup {
			continue
		}
		seen[p.Key()] = struct{}{}
		out = append(out, p)
	}
	return &Sequence{Kind: kind, Center: center, Prayers: out, BuiltAt: builtAt}
}

// Len returns the number of prayers.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Prayers)
}

// Next returns the first prayer strictly after now.
func (s *Sequence) Next(now time.Time) (prayer.Prayer, bool) {
	if s == nil {
		return prayer.Prayer{}, false
	}
	i := sort.Search(len(s.Prayers), func(i int) bool {
		return s.Prayers[i].Datetime.After(now)
	})
	if i == len(s.Prayers) {
		return prayer.Prayer{}, false
	}
	return s.Prayers[i], true
}

// Prev returns the last prayer at or before now.
func (s *Sequence) Prev(now time.Time) (prayer.Prayer, bool) {
	if s == nil {
		return prayer.Prayer{}, false
	}
	i := sort.Search(len(s.Prayers), func(i int) bool {
		return s.Prayers[i].Datetime.After(now)
	})
	if i == 0 {
		return prayer.Prayer{}, false
	}
	return s.Prayers[i-1], true
}

// Exhausted reports whether no prayer lies after now.
func (s *Sequence) Exhausted(now time.Time) bool {
	_, ok := s.Next(now)
	return !ok
}

// DisplayDate is the group shown to the user: the BelongsToDate of the next
// prayer, or the day after the last group once every prayer has passed.
func (s *Sequence) DisplayDate(now time.Time) string {
	if next, ok := s.Next(now); ok {
		return next.BelongsToDate
	}
	if s.Len() == 0 {
		return ""
	}
	last := s.Prayers[len(s.Prayers)-1].BelongsToDate
	if d, err := timeutil.ShiftDateKey(last, 1); err == nil {
		return d
	}
	return last
}

// Group returns the prayers belonging to date, in time order.
func (s *Sequence) Group(date string) []prayer.Prayer {
	if s == nil {
		return nil
	}
	var out []prayer.Prayer
	for _, p := range s.Prayers {
		if p.BelongsToDate == date {
			out = append(out, p)
		}
	}
	return out
}

// Dates returns the distinct BelongsToDate values, sorted.
func (s *Sequence) Dates() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.Prayers {
		if _, ok := seen[p.BelongsToDate]; !ok {
			seen[p.BelongsToDate] = struct{}{}
			out = append(out, p.BelongsToDate)
		}
	}
	sort.Strings(out)
	return out
}

// Find returns the named prayer of a group.
func (s *Sequence) Find(name prayer.Name, date string) (prayer.Prayer, bool) {
	if s == nil {
		return prayer.Prayer{}, false
	}
	for _, p := range s.Prayers {
		if p.Name == name && p.BelongsToDate == date {
			return p, true
		}
	}
	return prayer.Prayer{}, false
}

// NextOf returns the first occurrence of name strictly after now.
func (s *Sequence) NextOf(name prayer.Name, now time.Time) (prayer.Prayer, bool) {
	if s == nil {
		return prayer.Prayer{}, false
	}
	for _, p := range s.Prayers {
		if p.Name == name && p.Datetime.After(now) {
			return p, true
		}
	}
	return prayer.Prayer{}, false
}
