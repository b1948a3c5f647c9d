package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/api"
	"github.com/smokyabdulrahman/prayerd/internal/app"
	"github.com/smokyabdulrahman/prayerd/internal/config"
	"github.com/smokyabdulrahman/prayerd/internal/i18n"
	"github.com/smokyabdulrahman/prayerd/internal/notify"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Hooks replaced by tests.
var (
	newProvider = defaultProvider
	newClock    = func(loc *time.Location) timeutil.Clock { return timeutil.NewSystemClock(loc) }
	newNotifier = defaultNotifier
)

// session is an App opened for one command, with what it owns.
type session struct {
	app    *app.App
	locale i18n.Locale
	closes []func()
}

func (s *session) Close() {
	s.app.Close()
	s.runCloses()
}

// openSession builds the scheduling context from cfg.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	kv, err := store.Open(ctx, store.Options{
		Backend:    cfg.Store,
		Dir:        cfg.CacheDir,
		SQLitePath: cfg.SQLitePath,
		Redis: store.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: "prayerd:",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	s := &session{closes: []func(){func() { _ = kv.Close() }}}

	provider, err := newProvider(cfg)
	if err != nil {
		s.runCloses()
		return nil, err
	}

	s.locale = i18n.Default().For(cfg.Language)
	dcfg, err := derivationConfig(cfg)
	if err != nil {
		s.runCloses()
		return nil, err
	}
	deriver := prayer.NewDeriver(dcfg, loc, s.locale)
	clock := newClock(loc)

	notifier, closeNotifier := newNotifier(cfg, clock)
	s.closes = append(s.closes, closeNotifier)

	s.app = app.New(app.Deps{
		KV:       kv,
		Provider: provider,
		Notifier: notifier,
		Deriver:  deriver,
		Texts:    s.locale,
		Clock:    clock,
		Notify:   notify.Options{TimeFormat: goTimeLayout(cfg)},
	})
	return s, nil
}

// derivationConfig applies cfg's overrides to the default derivation
// constants and validates the result.
func derivationConfig(cfg *config.Config) (prayer.Config, error) {
	dcfg := prayer.DefaultConfig()
	if cfg.LastThirdOffset != nil {
		dcfg.LastThirdOffsetMinutes = *cfg.LastThirdOffset
	}
	if err := dcfg.Validate(); err != nil {
		return prayer.Config{}, fmt.Errorf("invalid derivation settings: %w", err)
	}
	return dcfg, nil
}

func (s *session) runCloses() {
	for i := len(s.closes) - 1; i >= 0; i-- {
		s.closes[i]()
	}
}

// defaultProvider returns the configured timetable source.
func defaultProvider(cfg *config.Config) (api.Provider, error) {
	switch cfg.Provider {
	case "year":
		return api.NewYearClient(cfg.ProviderURL), nil
	case "", "aladhan":
		c := api.NewClient()
		c.Query = api.Query{
			City:      cfg.City,
			Country:   cfg.Country,
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
			Method:    cfg.MethodOrDefault(-1),
			School:    cfg.SchoolOrDefault(-1),
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// defaultNotifier delivers through the log plus the configured MQTT and
// Telegram sinks. A sink that cannot be set up is skipped with a warning.
func defaultNotifier(cfg *config.Config, clock timeutil.Clock) (notify.Notifier, func()) {
	sinks := []notify.Sink{notify.LogSink{}}
	var closers []func()

	if cfg.MQTTBroker != "" {
		host, _ := os.Hostname()
		m, err := notify.NewMQTTSink(notify.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: "prayerd-" + host,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			QoS:      1,
		})
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("mqtt sink disabled")
		} else {
			sinks = append(sinks, m)
			closers = append(closers, m.Close)
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram sink disabled")
		} else {
			sinks = append(sinks, tg)
		}
	}

	n := notify.NewLocalNotifier(clock, sinks...)
	closeAll := func() {
		n.Close()
		for _, c := range closers {
			c()
		}
	}
	return n, closeAll
}

// syncedSession opens a session and runs a sync. A failed sync is reported
// on stderr and the last stored data is used.
func syncedSession(ctx context.Context, cfg *config.Config) (*session, error) {
	s, err := openSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.app.Sync.Sync(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: sync failed, showing stored data: %v\n", err)
	}
	return s, nil
}
