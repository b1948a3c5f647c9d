// Package httpapi exposes the scheduling context as a local JSON API: the
// read-only sequence, countdown and overlay values plus the selection,
// overlay, detail, alert and sync actions.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/app"
	"github.com/smokyabdulrahman/prayerd/internal/countdown"
	"github.com/smokyabdulrahman/prayerd/internal/notify"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/syncer"
)

// Core is what the API needs from the scheduling context. *app.App
// implements it.
type Core interface {
	View(kind prayer.Kind) app.KindView
	Status() app.Status
	Overlay() (countdown.Overlay, bool)
	SetSelectedPrayerIndex(kind prayer.Kind, index int) error
	ToggleOverlay(kind prayer.Kind) (bool, error)
	OpenDetail(kind prayer.Kind)
	Preference(ctx context.Context, kind prayer.Kind, index int) (notify.Preference, error)
	UpdatePreference(ctx context.Context, kind prayer.Kind, index int, pref notify.Preference) error
	Notifications(ctx context.Context) ([]notify.Record, error)
	Resync(ctx context.Context) (syncer.Status, error)
}

// Options configures the server.
type Options struct {
	Addr string
	// AllowedOrigins for CORS. Defaults to localhost origins.
	AllowedOrigins []string
}

// Server serves the API.
type Server struct {
	core Core
	opts Options
}

// New returns a Server for core.
func New(core Core, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	return &Server{core: core, opts: opts}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/sync", s.handleSync)
		r.Get("/overlay", s.handleOverlay)
		r.Get("/notifications", s.handleNotifications)

		r.Route("/sequences/{kind}", func(r chi.Router) {
			r.Get("/", s.handleSequence)
			r.Get("/next", s.handleNext)
			r.Get("/prev", s.handlePrev)
		})
		r.Get("/countdown/{kind}", s.handleCountdown)
		r.Put("/selection/{kind}", s.handleSelection)
		r.Post("/overlay/{kind}/toggle", s.handleToggleOverlay)
		r.Post("/detail/{kind}", s.handleDetail)

		r.Get("/alerts/{kind}/{index}", s.handleGetAlert)
		r.Put("/alerts/{kind}/{index}", s.handlePutAlert)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("http api listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs every request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
