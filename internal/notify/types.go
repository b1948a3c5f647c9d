// Package notify turns alert preferences into a bounded rolling set of
// scheduled notifications and keeps that set reconciled with the prayer
// schedule.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

// ErrPermissionDenied is returned by a Notifier that may not schedule
// notifications. Reconcile treats it as recoverable.
var ErrPermissionDenied = errors.New("notification permission denied")

// AlertKind is how a notification is delivered.
type AlertKind int

const (
	Off AlertKind = iota
	Silent
	Sound
)

func (a AlertKind) String() string {
	switch a {
	case Off:
		return "off"
	case Silent:
		return "silent"
	case Sound:
		return "sound"
	}
	return fmt.Sprintf("alert(%d)", int(a))
}

// ParseAlertKind parses "off", "silent" or "sound".
func ParseAlertKind(s string) (AlertKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return Off, nil
	case "silent":
		return Silent, nil
	case "sound":
		return Sound, nil
	}
	return Off, fmt.Errorf("unknown alert kind %q: must be off, silent or sound", s)
}

func (a AlertKind) MarshalText() ([]byte, error) {
	switch a {
	case Off, Silent, Sound:
		return []byte(a.String()), nil
	}
	return nil, fmt.Errorf("cannot marshal %s", a)
}

func (a *AlertKind) UnmarshalText(b []byte) error {
	v, err := ParseAlertKind(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Channel separates at-time alerts from reminders.
type Channel int

const (
	AtTime Channel = iota
	Reminder
)

func (c Channel) String() string {
	switch c {
	case AtTime:
		return "at_time"
	case Reminder:
		return "reminder"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

func (c Channel) MarshalText() ([]byte, error) {
	switch c {
	case AtTime, Reminder:
		return []byte(c.String()), nil
	}
	return nil, fmt.Errorf("cannot marshal %s", c)
}

func (c *Channel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "at_time":
		*c = AtTime
	case "reminder":
		*c = Reminder
	default:
		return fmt.Errorf("unknown channel %q", b)
	}
	return nil
}

// Reminder offset bounds, in minutes.
const (
	MinReminderOffset     = 5
	MaxReminderOffset     = 30
	DefaultReminderOffset = 10
)

// Preference is the user's alert choice for one prayer.
type Preference struct {
	AtTime                AlertKind `json:"at_time"`
	Reminder              AlertKind `json:"reminder"`
	ReminderOffsetMinutes int       `json:"reminder_offset_minutes"`
}

// DefaultPreference is used for prayers the user never configured.
func DefaultPreference() Preference {
	return Preference{AtTime: Off, Reminder: Off, ReminderOffsetMinutes: DefaultReminderOffset}
}

// Validate checks the reminder offset when a reminder is on.
func (p Preference) Validate() error {
	if p.Reminder != Off && (p.ReminderOffsetMinutes < MinReminderOffset || p.ReminderOffsetMinutes > MaxReminderOffset) {
		return fmt.Errorf("reminder offset %d out of range (%d-%d minutes)",
			p.ReminderOffsetMinutes, MinReminderOffset, MaxReminderOffset)
	}
	return nil
}

// Record tracks one scheduled OS notification: one per prayer occurrence and
// channel.
type Record struct {
	ID             string      `json:"id"`
	Kind           prayer.Kind `json:"kind"`
	PrayerIndex    int         `json:"prayer_index"`
	PrayerName     prayer.Name `json:"prayer_name"`
	BelongsToDate  string      `json:"belongs_to_date"`
	FireAt         time.Time   `json:"fire_at"`
	Alert          AlertKind   `json:"alert"`
	Channel        Channel     `json:"channel"`
	NotificationID string      `json:"notification_id"`
}

// slot identifies what a record fires for, independent of its ids.
func (r Record) slot() string {
	return fmt.Sprintf("%s|%d|%s|%s|%d|%s", r.Kind, r.PrayerIndex, r.Channel, r.BelongsToDate, r.FireAt.Unix(), r.Alert)
}

// Notification is the payload handed to the OS primitive.
type Notification struct {
	Title   string      `json:"title"`
	Body    string      `json:"body"`
	FireAt  time.Time   `json:"fire_at"`
	Sound   bool        `json:"sound"`
	Kind    prayer.Kind `json:"kind"`
	Prayer  prayer.Name `json:"prayer"`
	Date    string      `json:"date"`
	Channel Channel     `json:"channel"`
}
