package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SoarinFerret/TabWarden/internal/bridge"
	"github.com/SoarinFerret/TabWarden/internal/config"
	"github.com/SoarinFerret/TabWarden/internal/engine"
	"github.com/SoarinFerret/TabWarden/internal/ipc"
	"github.com/SoarinFerret/TabWarden/internal/logging"
	"github.com/SoarinFerret/TabWarden/internal/loginctl"
	"github.com/SoarinFerret/TabWarden/internal/store"
)

func main() {
	// check for argument to determine config location
	argPath := "/etc/tabwarden/config.toml"
	if len(os.Args) > 1 {
		argPath = os.Args[1]
	}
	if err := config.LoadConfigFromFile(argPath); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		os.Exit(1)
	}
	defer closer.Close()
	logger.Info().Str("config", argPath).Msg("starting tabwardend")

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("tabwardend stopped")
		closer.Close()
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func run(cfg config.Config, logger zerolog.Logger) error {
	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open option store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := bridge.NewHub()
	eng := engine.NewEngine(&cfg, st, hub, logger)
	srv := bridge.NewServer(cfg.Bridge, hub, eng, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	if *cfg.DBus.Enabled {
		g.Go(func() error {
			tw := &ipc.TabWarden{Engine: eng}
			if err := ipc.Serve(ctx, cfg.DBus.Bus, tw, logger); err != nil {
				// The bridge keeps working without the bus.
				logger.Warn().Err(err).Msg("D-Bus service unavailable")
			}
			return nil
		})

		g.Go(func() error {
			if err := loginctl.Watch(ctx, eng, watchedUser(), logger); err != nil {
				logger.Warn().Err(err).Msg("logind watcher unavailable")
			}
			return nil
		})
	}

	return g.Wait()
}

// watchedUser is the account whose screen locks pause the clocks. A daemon
// running as root follows every user session.
func watchedUser() string {
	if os.Geteuid() == 0 {
		return ""
	}
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
