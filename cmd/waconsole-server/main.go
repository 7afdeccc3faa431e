package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rapzz3312/waconsole/internal/config"
	"github.com/rapzz3312/waconsole/internal/credentials"
	"github.com/rapzz3312/waconsole/internal/logging"
	"github.com/rapzz3312/waconsole/internal/observability"
	"github.com/rapzz3312/waconsole/internal/push"
	"github.com/rapzz3312/waconsole/internal/server/app"
	serverHTTP "github.com/rapzz3312/waconsole/internal/server/http"
	"github.com/rapzz3312/waconsole/internal/session"
	"github.com/rapzz3312/waconsole/internal/transport"
)

func main() {
	root := &cobra.Command{
		Use:   "waconsole-server",
		Short: "Messaging console server",
		Long:  "Pairs messaging identities and runs sandboxed user scripts against them, streaming progress over a websocket push channel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting waconsole server on %s:%d", cfg.Host, cfg.Port)

	metrics := observability.DefaultMetrics()

	store := credentials.NewFileStore(cfg.CredentialDir)
	sweeper := credentials.NewSweeper(cfg.CredentialDir, cfg.CredentialTTL, cfg.CredentialSweep, logging.NewComponentLogger("CredentialSweeper"))

	hub := push.NewHub(logging.NewComponentLogger("PushHub"))
	hub.SetDropHook(metrics.IncDroppedPushEvents)

	registry := session.NewRegistry(
		transport.OpenLoopback,
		store,
		hub,
		logging.NewComponentLogger("SessionRegistry"),
		session.WithGracePeriod(cfg.GracePeriod),
		session.WithSessionCountHook(metrics.SetActiveSessions),
	)

	service := app.NewConsoleService(
		registry,
		hub,
		logging.NewComponentLogger("ConsoleService"),
		app.WithScriptTimeout(cfg.ScriptTimeout),
		app.WithIterationObserver(metrics.ObserveIteration),
	)

	router := serverHTTP.NewRouter(service, hub, serverHTTP.RouterConfig{
		Debug:      cfg.Debug,
		EnableCORS: cfg.EnableCORS,
	})
	srv := serverHTTP.NewServer(router, serverHTTP.ServerConfig{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Debug:       cfg.Debug,
		EnableCORS:  cfg.EnableCORS,
		ReadTimeout: 30 * time.Second,
	}, logging.NewComponentLogger("HTTPServer"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		registry.Close()
		hub.Close()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
