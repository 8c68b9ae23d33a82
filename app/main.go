package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/letterhive/letterfeed/app/api"
	"github.com/letterhive/letterfeed/app/cache"
	"github.com/letterhive/letterfeed/app/cfg"
	"github.com/letterhive/letterfeed/app/feed"
	"github.com/letterhive/letterfeed/app/metadata"
	"github.com/letterhive/letterfeed/app/sitemap"
	"github.com/letterhive/letterfeed/app/sources"
	"github.com/letterhive/letterfeed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Letterfeed", "version", appCfg.Version)

	store, err := newStore(appCfg)
	if err != nil {
		slog.Error("Failed to initialize cache store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	seed, err := sources.LoadSeedFile(appCfg.SourcesFile)
	if err != nil {
		slog.Error("Failed to load sources file", "path", appCfg.SourcesFile, "error", err)
		os.Exit(1)
	}
	registry := sources.NewRegistry(store, seed)
	slog.Info("Source registry initialized", "seeded", len(seed))

	httpClient := &http.Client{Timeout: 30 * time.Second}

	enricher := metadata.NewEnricher(
		newFetcher(appCfg, httpClient),
		store,
		time.Duration(appCfg.MetadataSpacingMS)*time.Millisecond,
		time.Duration(appCfg.MetadataTimeout)*time.Second,
	)

	rawSource := feed.NewRawSource(store, httpClient, appCfg.UserAgent,
		time.Duration(appCfg.RawTTLHours)*time.Hour)
	engine := feed.NewEngine(rawSource, sitemap.NewParser(), enricher,
		feed.NewProcessedStore(store), registry)
	engine.SetBatching(appCfg.SourceBatchSize,
		time.Duration(appCfg.SourceBatchDelay)*time.Millisecond)

	aggregator := feed.NewAggregator(engine, feed.NoopEngagement{}, appCfg.PageSize)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "refresh_interval", appCfg.RefreshInterval)
	scheduler := tasks.NewScheduler(engine, registry, store,
		time.Duration(appCfg.RefreshInterval)*time.Second, appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(aggregator, registry, scheduler, appCfg.PageSize)
	server := api.NewServer(handler, appCfg.RefreshToken)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// newStore selects the cache backend: Redis when an address is configured,
// the in-process store otherwise (single-instance and dev deployments).
func newStore(appCfg *cfg.Cfg) (cache.Store, error) {
	if appCfg.RedisAddr == "" {
		slog.Info("Using in-process cache store")
		return cache.NewMemory(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return cache.NewRedis(ctx, appCfg.RedisAddr)
}

// newFetcher picks the metadata backend: the external metadata API when
// configured, local og-tag extraction otherwise.
func newFetcher(appCfg *cfg.Cfg, httpClient *http.Client) metadata.Fetcher {
	if appCfg.MetadataEndpoint != "" && appCfg.MetadataAPIKey != "" {
		slog.Info("Using metadata API", "endpoint", appCfg.MetadataEndpoint)
		return metadata.NewClient(httpClient, appCfg.MetadataEndpoint, appCfg.MetadataAPIKey, appCfg.UserAgent)
	}
	slog.Info("Metadata API not configured, using og-tag extraction")
	return metadata.NewExtractor(httpClient, appCfg.UserAgent)
}
