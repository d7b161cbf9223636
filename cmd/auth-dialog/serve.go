package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	dialog "github.com/goliatone/go-auth-dialog"
	"github.com/goliatone/go-auth-dialog/external"
	"github.com/goliatone/go-auth-dialog/i18n"
	"github.com/goliatone/go-auth-dialog/internal/config"
	"github.com/goliatone/go-auth-dialog/middleware/csrf"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the login dialog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	lgr := newLogger(cfg)
	logger := lgr.GetLogger("serve")

	source, local, cleanup, err := buildSource(ctx, cfg, lgr.GetLogger("source"))
	if err != nil {
		return err
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := dialog.NewMetrics(reg)

	store := dialog.NewConfigStore(source,
		dialog.WithStoreLogger(lgr.GetLogger("store")),
		dialog.WithStoreMetrics(metrics),
	)

	// a failed fetch is not fatal: the dialog renders with everything hidden
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.GetFetchTimeout())
	if _, err := store.RetrieveData(fetchCtx); err != nil {
		logger.Warn("starting without authentication configuration", "error", err)
	}
	cancel()

	catalog, err := i18n.New(language.Make(cfg.GetLocale()))
	if err != nil {
		return err
	}

	engine := dialog.NewViewEngine()
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})
	srv.Router().WithLogger(lgr.GetLogger("router"))

	// with csrf_cookie the backend issues and verifies the token itself
	if cfg.GetCSRFCookie() == "" {
		csrfCfg := csrf.Config{}
		if secret := cfg.GetCSRFSecret(); len(secret) > 0 {
			csrfCfg.SecureKey = secret
		}
		if addr := cfg.GetRedisAddr(); addr != "" {
			client := redis.NewClient(&redis.Options{Addr: addr})
			defer client.Close()
			csrfCfg.Storage = csrf.NewRedisStorage(client, "")
		}
		srv.Router().Use(csrf.New(csrfCfg))
		csrf.RegisterRoutes(srv.Router())
	}

	initiator, oauth := buildInitiator(ctx, cfg, lgr.GetLogger("external"))
	if oauth != nil {
		external.NewHTTPController(oauth, external.HTTPConfig{
			Handoff: external.RegistrationHandoff("/register"),
			Logger:  lgr.GetLogger("callback"),
		}).RegisterRoutes(srv.Router())
	}

	opts := []dialog.DialogControllerOption{
		dialog.WithStore(store),
		dialog.WithExternalAuthInitiator(initiator),
		dialog.WithLocalizer(catalog),
		dialog.WithControllerMetrics(metrics),
		dialog.WithControllerLogger(lgr.GetLogger("dialog")),
		dialog.WithDebug(cfg.GetDebug()),
	}
	opts = append(opts, backendOptions(cfg)...)
	if cfg.GetServeConfig() && local != nil {
		opts = append(opts, dialog.WithConfigEndpoint(local))
	}
	dialog.RegisterDialogRoutes(srv.Router(), opts...)

	var metricsSrv *http.Server
	if addr := cfg.GetMetricsAddr(); addr != "" {
		metricsSrv = &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := srv.Serve(cfg.GetAddr()); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()
	logger.Info("auth dialog listening", "addr", cfg.GetAddr(), "source", cfg.GetSource())

	WaitExitSignal(ctx)

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

func WaitExitSignal(ctx context.Context) {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	defer signal.Stop(ch)

	select {
	case <-ch:
	case <-ctx.Done():
	}
}
