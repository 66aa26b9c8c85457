package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"contabils/internal/auth"
	"contabils/internal/backend"
	"contabils/internal/cli"
	"contabils/internal/config"
	"contabils/internal/export"
	apphttp "contabils/internal/http"
	applog "contabils/internal/log"
	"contabils/internal/services"
	"contabils/internal/shellcache"
	"contabils/web"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig(applog.ComponentApp)
	cli.MustValidate(logger, cfg.Validate)

	ctx, cancel := cli.SignalContext()
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	loc, _ := cfg.Location() // checked by Validate
	policy := shellcache.ParsePolicy(cfg.ShellTakeover)
	script, err := shellcache.RenderScript(shellcache.NewManifest(cfg.ShellVersion), policy)
	if err != nil {
		logger.Error("Failed to render service worker", applog.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Catalog:  services.NewCatalogService(result.Store),
		Ledger:   services.NewLedgerService(result.Store, result.Events),
		Exporter: export.NewExporter(cfg.AppName, loc),
		Store:    result.Store,
		Resolver: newResolver(cfg),
		Public: apphttp.PublicConfig{
			IdentityURL:     cfg.IdentityURL,
			IdentityAnonKey: cfg.IdentityAnonKey,
			ShellVersion:    cfg.ShellVersion,
			AuthMode:        cfg.AuthMode,
		},
		WorkerScript:       script,
		Static:             web.Static(),
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting contabils server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"auth_mode", cfg.AuthMode,
			"shell_version", cfg.ShellVersion,
			"events_enabled", result.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}

func newResolver(cfg *config.Config) auth.Resolver {
	switch cfg.AuthMode {
	case config.AuthJWT:
		return auth.NewBearerResolver(auth.NewJWTVerifier(cfg.AuthJWTSecret, cfg.AuthJWTAudience))
	case config.AuthRemote:
		return auth.NewBearerResolver(auth.NewRemoteVerifier(cfg.IdentityURL, cfg.IdentityAnonKey, nil))
	default:
		return auth.NewFixedResolver(cfg.SingleUserOwner)
	}
}
