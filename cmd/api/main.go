// Package main is the entry point for the Expanse storefront API server.
//
// It loads configuration, selects a catalog source (embedded default, JSON
// file, or Postgres), builds the HTTP server with the core chassis
// (middleware, routing, health checks), warms the price cache in the
// background, and serves until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"expanse/internal/api/handlers"
	"expanse/internal/auth"
	"expanse/internal/catalog"
	"expanse/internal/checkout"
	"expanse/internal/config"
	"expanse/internal/core"
	"expanse/internal/db"
	"expanse/internal/notify"
	"expanse/internal/pricing"
	"expanse/internal/telemetry"
	"expanse/internal/whmcs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("expanse storefront API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog source selection: Postgres wins over file, file wins over the
	// embedded default. Catalog load failures are fatal; serving with a
	// broken catalog would produce checkout URLs pointing at the wrong
	// products.
	cat, pool, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	metrics := newMetrics(ctx, cfg, logger)

	srv, err := core.NewServer(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Domain wiring.
	gate := auth.NewGate(cfg.Pricing.APIKey)
	billingClient := whmcs.NewClient(cfg.WHMCS, cat, logger)
	fetcher := &instrumentedFetcher{inner: billingClient, metrics: metrics}
	priceCache := pricing.NewCache(fetcher, cfg.Pricing.CacheTTL, nil, logger)
	resolver := checkout.NewResolver(cat)
	notifier := notify.NewNotifier(cfg.Notify, logger)

	pricesHandler := handlers.NewPricesHandler(priceCache, gate, metrics, logger)
	checkoutHandler := handlers.NewCheckoutHandler(resolver, logger)
	contactHandler := handlers.NewContactHandler(notifier, logger)

	srv.RegisterHealthProbe(&pricingProbe{cache: priceCache})
	if pool != nil {
		srv.RegisterHealthProbe(&databaseProbe{pool: pool})
	}

	srv.MountRoutes(
		func(r chi.Router) { pricesHandler.RegisterRoutes(r) },
		func(r chi.Router) { checkoutHandler.RegisterRoutes(r) },
		func(r chi.Router) { contactHandler.RegisterRoutes(r) },
	)

	// Warm the price cache so the first storefront request is served from a
	// fresh snapshot. Failure is non-fatal; the cache fetches on demand.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, cfg.WHMCS.Timeout)
		defer cancel()
		snap, _ := priceCache.Get(warmCtx)
		logger.Info("price cache warmed", "plans", len(snap.Prices))
	}()

	return serveHTTP(ctx, srv, cfg, logger)
}

// loadCatalog resolves the catalog from the configured source. The returned
// pool is non-nil only when the database source is active; the caller owns
// closing it.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalog.Catalog, *pgxpool.Pool, error) {
	if cfg.Database.URL.Unmask() != "" {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		cat, err := db.NewCatalogRepository(pool).Load(ctx)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("catalog loaded from database", "plans", len(cat.PlanNames))
		return cat, pool, nil
	}

	if cfg.Catalog.Path != "" {
		cat, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("catalog loaded from file", "path", cfg.Catalog.Path, "plans", len(cat.PlanNames))
		return cat, nil, nil
	}

	cat, err := catalog.Default()
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using embedded default catalog", "plans", len(cat.PlanNames))
	return cat, nil, nil
}

// newMetrics builds the telemetry collector. CloudWatch failures degrade to a
// noop collector; metrics are never worth refusing to start over.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) telemetry.Collector {
	if !cfg.Observability.EnableMetrics {
		return telemetry.NoopCollector{}
	}
	collector, err := telemetry.NewCloudWatchCollector(ctx, cfg.Observability, logger)
	if err != nil {
		logger.Warn("cloudwatch collector unavailable; metrics disabled", "error", err)
		return telemetry.NoopCollector{}
	}
	logger.Info("cloudwatch metrics enabled", "namespace", cfg.Observability.MetricNamespace)
	return collector
}

// serveHTTP runs the HTTP server until the context is cancelled, then shuts
// down gracefully with a 10-second deadline.
func serveHTTP(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// instrumentedFetcher records the plan count of every upstream price fetch.
type instrumentedFetcher struct {
	inner   pricing.Fetcher
	metrics telemetry.Collector
}

func (f *instrumentedFetcher) FetchPrices(ctx context.Context) map[string]float64 {
	prices := f.inner.FetchPrices(ctx)
	f.metrics.RecordPriceFetch(len(prices))
	return prices
}

// pricingProbe reports price snapshot freshness on the health endpoint. An
// empty or stale snapshot is degraded, not unhealthy; the storefront falls
// back to static prices.
type pricingProbe struct {
	cache *pricing.Cache
}

func (p *pricingProbe) Name() string { return "pricing" }

func (p *pricingProbe) Check(_ context.Context) error { return nil }

func (p *pricingProbe) Detail() string {
	snap, ok := p.cache.Peek()
	if !ok {
		return "no snapshot yet"
	}
	return fmt.Sprintf("%d plans, fetched %s", len(snap.Prices), snap.FetchedAt.UTC().Format(time.RFC3339))
}

// databaseProbe verifies catalog database connectivity.
type databaseProbe struct {
	pool *pgxpool.Pool
}

func (p *databaseProbe) Name() string { return "database" }

func (p *databaseProbe) Check(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *databaseProbe) Detail() string { return "" }

// newLogger creates a structured JSON slog.Logger at the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
