package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/geosense/landtraj/internal/config"
	"github.com/geosense/landtraj/internal/datasource"
	"github.com/geosense/landtraj/internal/httpclient"
	"github.com/geosense/landtraj/internal/logger"
	"github.com/geosense/landtraj/internal/observability"
	"github.com/geosense/landtraj/internal/samplecache"
	"github.com/geosense/landtraj/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	catalogFlag := flag.String("catalog", "", "datasource catalog path (overrides CATALOG_PATH)")
	flag.Parse()

	cfg := config.FromEnv()
	if *catalogFlag != "" {
		cfg.CatalogPath = strings.TrimSpace(*catalogFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "landtraj",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting landtraj",
		"addr", cfg.Addr,
		"version", Version,
		"catalog", cfg.CatalogPath)

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		appLog.Error("catalog load failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	local, err := samplecache.NewLRU(cfg.SampleCacheSize)
	if err != nil {
		appLog.Error("sample cache setup failed", "err", err)
		return 1
	}
	var cache samplecache.Store = local
	if cfg.RedisAddr != "" {
		tiered, err := samplecache.NewTiered(ctx, appLog, local, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis cache tier unavailable", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = tiered.Close() }()
		cache = tiered
	}

	registry, err := datasource.Load(ctx, appLog, catalog, datasource.Deps{
		HTTPClient:  httpclient.NewOutboundWithTimeout(cfg.CoverageTimeout),
		SampleCache: cache,
	})
	if err != nil {
		appLog.Error("datasource load failed", "err", err)
		return 1
	}
	appLog.Info("datasources loaded", "ids", registry.IDs())

	if err := server.Run(ctx, cfg, appLog, registry); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
