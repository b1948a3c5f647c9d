package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/store"
)

// Key layout.
const (
	PrefPrefix       = "alert_pref_"
	RecordPrefix     = "notif_record_"
	LastReconcileKey = "notif_last_reconcile"
)

// PrefKey returns the preference key of a prayer, e.g. "alert_pref_standard_3".
func PrefKey(kind prayer.Kind, index int) string {
	return PrefPrefix + kind.String() + "_" + strconv.Itoa(index)
}

func recordKey(id string) string { return RecordPrefix + id }

// Preferences persists alert preferences.
type Preferences struct {
	kv store.KV
}

// NewPreferences wraps kv.
func NewPreferences(kv store.KV) *Preferences {
	return &Preferences{kv: kv}
}

// Get returns the stored preference, or the default when none is stored.
func (p *Preferences) Get(ctx context.Context, kind prayer.Kind, index int) (Preference, error) {
	if _, err := prayer.NameAt(kind, index); err != nil {
		return Preference{}, err
	}
	var pref Preference
	err := store.GetJSON(ctx, p.kv, PrefKey(kind, index), &pref)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultPreference(), nil
	}
	if err != nil {
		return Preference{}, err
	}
	return pref, nil
}

// Set validates and stores a preference.
func (p *Preferences) Set(ctx context.Context, kind prayer.Kind, index int, pref Preference) error {
	if _, err := prayer.NameAt(kind, index); err != nil {
		return err
	}
	if err := pref.Validate(); err != nil {
		return err
	}
	return store.SetJSON(ctx, p.kv, PrefKey(kind, index), pref)
}

// PrayerRef names a prayer by kind and index.
type PrayerRef struct {
	Kind  prayer.Kind
	Index int
}

// parsePrefKey is the inverse of PrefKey.
func parsePrefKey(key string) (PrayerRef, error) {
	rest := strings.TrimPrefix(key, PrefPrefix)
	i := strings.LastIndex(rest, "_")
	if i < 0 || rest == key {
		return PrayerRef{}, fmt.Errorf("malformed preference key %q", key)
	}
	kind, err := prayer.ParseKind(rest[:i])
	if err != nil {
		return PrayerRef{}, err
	}
	idx, err := strconv.Atoi(rest[i+1:])
	if err != nil {
		return PrayerRef{}, fmt.Errorf("malformed preference key %q: %w", key, err)
	}
	return PrayerRef{Kind: kind, Index: idx}, nil
}

// Stored returns every explicitly stored preference.
func (p *Preferences) Stored(ctx context.Context) (map[PrayerRef]Preference, error) {
	keys, err := p.kv.Scan(ctx, PrefPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[PrayerRef]Preference, len(keys))
	for _, k := range keys {
		ref, err := parsePrefKey(k)
		if err != nil {
			continue
		}
		var pref Preference
		if err := store.GetJSON(ctx, p.kv, k, &pref); err != nil {
			return nil, err
		}
		out[ref] = pref
	}
	return out, nil
}

// records is the bookkeeping of scheduled notifications.
type records struct {
	kv store.KV
}

func (r records) list(ctx context.Context) ([]Record, error) {
	keys, err := r.kv.Scan(ctx, RecordPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		var rec Record
		if err := store.GetJSON(ctx, r.kv, k, &rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r records) put(ctx context.Context, rec Record) error {
	return store.SetJSON(ctx, r.kv, recordKey(rec.ID), rec)
}

func (r records) remove(ctx context.Context, id string) error {
	return r.kv.Remove(ctx, recordKey(id))
}
