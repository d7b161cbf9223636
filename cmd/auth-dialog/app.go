package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dialog "github.com/goliatone/go-auth-dialog"
	"github.com/goliatone/go-auth-dialog/external"
	"github.com/goliatone/go-auth-dialog/internal/config"
	"github.com/goliatone/go-auth-dialog/source/bunsource"
	"github.com/goliatone/go-auth-dialog/source/httpsource"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/oauth2"
)

func newLogger(cfg *config.Config) *glog.BaseLogger {
	if cfg.GetDebug() {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("auth-dialog"),
			glog.WithAddSource(true),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("auth-dialog"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func openSettings(ctx context.Context, dsn string) (*bunsource.Source, func(), error) {
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	bunDB := bun.NewDB(db, sqlitedialect.New())

	src := bunsource.New(bunDB)
	if err := src.CreateTable(ctx); err != nil {
		_ = bunDB.Close()
		return nil, nil, fmt.Errorf("create settings table: %w", err)
	}
	return src, func() { _ = bunDB.Close() }, nil
}

// buildSource returns the configured ConfigSource. local is non nil only for
// the sqlite source and is what the config endpoint serves.
func buildSource(ctx context.Context, cfg *config.Config, lgr glog.Logger) (source dialog.ConfigSource, local dialog.ConfigSource, cleanup func(), err error) {
	switch cfg.GetSource() {
	case config.SourceHTTP:
		opts := []httpsource.Option{
			httpsource.WithTimeout(cfg.GetFetchTimeout()),
			httpsource.WithLogger(lgr),
		}
		if key := cfg.GetConfigAPIKey(); key != "" {
			opts = append(opts, httpsource.WithHeader("X-Api-Key", key))
		}
		return httpsource.New(cfg.GetConfigURL(), opts...), nil, func() {}, nil
	default:
		src, closeDB, err := openSettings(ctx, cfg.GetSQLiteDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return src, src, closeDB, nil
	}
}

// buildInitiator returns the initiator behind the provider buttons and, when
// any client is configured directly, the OAuth2Initiator whose callbacks this
// server completes.
func buildInitiator(ctx context.Context, cfg *config.Config, lgr glog.Logger) (dialog.ExternalAuthInitiator, *external.OAuth2Initiator) {
	passport := external.PathInitiator{Prefix: cfg.BackendPath(cfg.GetPassportPath())}
	if len(cfg.GetStateKey()) == 0 {
		return passport, nil
	}

	oauth := external.NewOAuth2Initiator(
		external.NewEncryptedStateManager(cfg.GetStateKey(), cfg.GetStateHMACKey(), 10*time.Minute),
	)

	for name, client := range cfg.GetProviders() {
		provider, ok := dialog.ParseProvider(name)
		if !ok {
			lgr.Warn("ignoring client for unknown provider", "provider", name)
			continue
		}

		scopes := client.Scopes
		if len(scopes) == 0 {
			scopes = external.DefaultScopes(provider)
		}
		redirectURL := callbackURL(cfg, provider, client.RedirectURL)

		if client.Issuer != "" {
			discoverCtx, cancel := context.WithTimeout(ctx, cfg.GetFetchTimeout())
			oc, verifier, err := external.NewOIDCConfig(discoverCtx, client.Issuer, client.ClientID, client.ClientSecret, redirectURL, scopes)
			cancel()
			if err != nil {
				lgr.Error("oidc discovery failed", "provider", name, "issuer", client.Issuer, "error", err)
				continue
			}
			oauth.Register(provider, oc, external.WithIDTokenVerifier(verifier))
			lgr.Info("oidc client registered", "provider", provider.String(), "redirect_url", redirectURL)
			continue
		}

		endpoint, ok := external.DefaultEndpoint(provider)
		if !ok {
			lgr.Warn("no oauth endpoint for provider, using passport route", "provider", name)
			continue
		}
		oauth.Register(provider, &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
		})
		lgr.Info("oauth client registered", "provider", provider.String(), "redirect_url", redirectURL)
	}

	if !oauth.Providers().Any() {
		return passport, nil
	}
	return external.Chain{oauth, passport}, oauth
}

// callbackURL defaults a client's redirect URL to this server's callback route.
func callbackURL(cfg *config.Config, p dialog.Provider, configured string) string {
	if configured != "" || cfg.GetPublicURL() == "" {
		return configured
	}
	return cfg.GetPublicURL() + external.DefaultCallbackPrefix + "/" + p.String() + "/callback"
}

// backendOptions points the dialog forms at the hosting backend and takes the
// anti-forgery token from the cookie it issues.
func backendOptions(cfg *config.Config) []dialog.DialogControllerOption {
	var opts []dialog.DialogControllerOption
	if cfg.GetBackendURL() != "" {
		opts = append(opts, dialog.WithFormActions(dialog.FormActions{
			Login:    cfg.BackendPath("/login"),
			Register: cfg.BackendPath("/register"),
		}))
	}
	if cookie := cfg.GetCSRFCookie(); cookie != "" {
		opts = append(opts, dialog.WithCSRFTokenSource(dialog.CookieTokenSource(cookie, "")))
	}
	return opts
}
