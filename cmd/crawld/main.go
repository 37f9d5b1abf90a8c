// Command crawld is the single long-running crawl daemon: it loads
// configuration from the environment, wires the shared backends, and runs
// one scheduler per tenant keyspace until signaled to stop (spec §6). There
// are no subcommands, mirroring the teacher's cmd package shape but
// collapsed to one Run, since this daemon has exactly one mode of
// operation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/sessions"
	"github.com/spf13/cobra"

	"github.com/lalasearch/crawlcore/internal/bootstrap"
	"github.com/lalasearch/crawlcore/internal/config"
	"github.com/lalasearch/crawlcore/internal/httpapi"
)

func main() {
	root := &cobra.Command{
		Use:   "crawld",
		Short: "multi-tenant web crawl orchestrator",
		RunE:  run,
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		// Fatal to startup, per spec §7: panic on missing required env vars.
		panic(err.Error())
	}

	log := newLogger(cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.New(ctx, *cfg, log)
	if err != nil {
		panic(err.Error())
	}
	defer rt.Close()

	server, err := buildHTTPServer(rt, log)
	if err != nil {
		return fmt.Errorf("crawld: build http server: %w", err)
	}
	go func() {
		log.Info("http server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
		}
	}()

	schedulerErrCh := make(chan error, 1)
	go func() {
		schedulerErrCh <- rt.RunAll(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info("received shutdown signal")
	case err := <-schedulerErrCh:
		if err != nil {
			log.Error("scheduler runtime failed", "error", err)
		}
	}

	cancel()
	_ = server.Close()
	return nil
}

// newLogger selects a JSON handler in prod and a text handler in dev, the
// way SPEC_FULL.md's ambient stack describes (spec §10).
func newLogger(env config.Environment) *slog.Logger {
	if env == config.EnvProd {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// buildHTTPServer wires the gorilla/mux router and, in multi-tenant mode, a
// gorilla/sessions cookie store for the tenant boundary (spec §4.8).
func buildHTTPServer(rt *bootstrap.Runtime, log *slog.Logger) (*http.Server, error) {
	resolver := &httpapi.TenantResolver{
		DeploymentMode: rt.Config.DeploymentMode,
		Pool:           rt.Pool,
		Log:            log,
	}

	if !rt.Config.IsMultiTenant() {
		base, err := rt.ClientFor(rt.Config.TenantKeyspace)
		if err != nil {
			return nil, err
		}
		resolver.BaseClient = base
	} else {
		base, err := rt.ClientFor(rt.Config.SystemKeyspace)
		if err != nil {
			return nil, err
		}
		resolver.BaseClient = base
		resolver.Store = sessions.NewCookieStore([]byte(rt.Config.SessionSecret))
	}

	srv := &httpapi.Server{
		Resolver: resolver,
		Search:   rt.Search,
		Config:   &rt.Config,
		Log:      log,
	}

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", rt.Config.HTTPPort),
		Handler: srv.Router(),
	}, nil
}
