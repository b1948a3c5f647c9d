package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smokyabdulrahman/prayerd/internal/httpapi"
	"github.com/smokyabdulrahman/prayerd/internal/logging"
)

var (
	flagListen string
	flagNoHTTP bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler daemon",
		Long: "Keep the countdowns, notifications and midnight rollover running, and serve the JSON API.\n" +
			"SIGHUP resumes as after a wake: sync, then reconcile stale notifications.",
		Args: cobra.NoArgs,
		RunE: runDaemon,
	}
	cmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address (default from config: 127.0.0.1:8787)")
	cmd.Flags().BoolVar(&flagNoHTTP, "no-http", false, "Do not serve the HTTP API")
	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig(cmd)
	if cmd.Flags().Changed("listen") {
		cfg.Listen = flagListen
	}
	logging.Setup(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	a := s.app
	resume := func(ctx context.Context, start func(context.Context) error) {
		if err := start(ctx); err != nil {
			log.Warn().Err(err).Msg("sync failed; retrying at the next date change or SIGHUP")
			return
		}
		// Picks up preferences changed by 'alerts set' and re-arms records
		// whose timers died with a previous process.
		if err := a.Scheduler.ReconcileAll(ctx, false); err != nil {
			log.Warn().Err(err).Msg("notification reconcile failed")
		}
	}
	resume(ctx, a.Start)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.RunBackground(ctx)
		return nil
	})
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				log.Info().Msg("resuming")
				resume(ctx, a.Resume)
			}
		}
	})
	if !flagNoHTTP {
		srv := httpapi.New(a, httpapi.Options{Addr: cfg.Listen})
		g.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
	}

	log.Info().
		Str("store", cfg.Store).
		Str("provider", cfg.Provider).
		Str("timezone", a.Location().String()).
		Msg("prayerd running")

	err = g.Wait()
	log.Info().Msg("prayerd stopped")
	return err
}
