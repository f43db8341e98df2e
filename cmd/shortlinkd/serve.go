package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/shortlinkd/shortlinkd/internal/accumulator"
	"github.com/shortlinkd/shortlinkd/internal/admin"
	"github.com/shortlinkd/shortlinkd/internal/bootstrap"
	"github.com/shortlinkd/shortlinkd/internal/cache"
	"github.com/shortlinkd/shortlinkd/internal/reload"
	"github.com/shortlinkd/shortlinkd/internal/resolver"
	"github.com/shortlinkd/shortlinkd/internal/runtimeconfig"
	"github.com/shortlinkd/shortlinkd/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the redirect service and admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := bootstrap.Load(configPath)
	if err != nil {
		return err
	}
	log := buildLogger(cfg.Log)

	st, err := store.New(ctx, store.Config{DSN: cfg.DatabaseDSN, PoolSize: cfg.DatabasePool}, log)
	if err != nil {
		return err
	}
	defer st.Close()

	cfgManager := runtimeconfig.NewManager(st, log.With("component", "runtimeconfig"))
	if err := cfgManager.Load(ctx); err != nil {
		return err
	}

	var redisTier *cache.Redis
	if cfgManager.Bool("cache.redis.enabled", false) {
		addr := cfgManager.String("cache.redis.addr", "")
		redisTier, err = cache.NewRedis(ctx, addr, "", 0, 5*time.Minute, log.With("component", "cache.redis"))
		if err != nil {
			log.Warn("distributed cache tier unavailable at startup, continuing local-only", "error", err)
			redisTier = nil
		}
	}

	compositeCache := cache.New(st, cache.DefaultConfig(), redisTier, log.With("component", "cache"))
	if err := compositeCache.WarmFromStore(ctx); err != nil {
		return err
	}
	defer compositeCache.Close()

	accum := accumulator.New(st, accumulator.Config{
		FlushInterval:  60 * time.Second,
		FlushThreshold: 1000,
	}, log.With("component", "accumulator"))
	accum.Start(ctx)

	reloader := reload.New(log.With("component", "reload"))
	reloader.Register(reload.Data, func(ctx context.Context) error {
		return compositeCache.Reconfigure(ctx)
	})
	reloader.Register(reload.Config, func(ctx context.Context) error {
		return cfgManager.Load(ctx)
	})
	reloader.ListenSignals(ctx)
	defer reloader.Stop()
	if interval := cfgManager.String("reload.data_interval_seconds", "0"); interval != "0" {
		if secs, parseErr := time.ParseDuration(interval + "s"); parseErr == nil {
			reloader.RunPeriodicData(ctx, secs)
		}
	}

	reservedPrefixes := []string{cfg.AdminPrefix, cfg.HealthPrefix, cfg.FrontendPrefix}

	res := resolver.New(compositeCache, accum, cfgManager, reservedPrefixes)
	redirectHandler := resolver.NewHandler(res, nil, log.With("component", "resolver"))

	adminHandlers := admin.NewHandlers(st, compositeCache, cfgManager, reloader, reservedPrefixes)
	adminMiddleware := admin.BuildMiddlewareStack(log.With("component", "admin"), cfgManager.String("admin.auth_token", cfg.AdminAuthToken))
	healthHandler := admin.NewHealthHandler(st, accum)

	router := mux.NewRouter()
	adminHandlers.Register(router, cfg.AdminPrefix, adminMiddleware)
	healthHandler.Register(router, cfg.HealthPrefix)
	redirectHandler.Register(router)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-sigCh:
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	accum.Stop(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}
