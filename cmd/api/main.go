package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/db/migrations"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/app"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/assets"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/browser"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/config"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/merge"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/objectstore"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/placeholder"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/render"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/smartdata"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/store"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/textfit"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{MaxOpenConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	var schema fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		schema = os.DirFS(cfg.MigrationsDir)
	}
	if err := store.ApplyMigrations(ctx, db, schema); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	dataStore := store.NewPostgresStore(db)

	fonts, err := textfit.LoadFonts(cfg.FontsDir)
	if err != nil {
		log.Fatalf("font loading failed: %v", err)
	}

	pool := browser.NewPool(browser.Options{
		MaxPages:   cfg.BrowserMaxPages,
		NavTimeout: cfg.BrowserNavTimeout,
		RemoteURL:  cfg.BrowserWSURL,
	})
	defer pool.Close()

	// Smart data works without Redis, just uncached.
	var cache *smartdata.RedisCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err = smartdata.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, smart data will not be cached: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	smartCfg := smartdata.Config{
		Rates:    smartdata.NewRatesClient(cfg.RatesURL, nil),
		Geocoder: smartdata.NewGeocoder("", cfg.MapsAPIKey, nil),
		Browser:  pool,
		Fonts:    fonts,
		TTL:      cfg.RatesCacheTTL,
	}
	if cache != nil {
		smartCfg.Cache = cache
	}
	smart := smartdata.NewService(smartCfg)

	fetchTimeout := cfg.AssetFetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = assets.DefaultFetchTimeout
	}
	fetcher := assets.NewFetcher(assets.FetcherOptions{
		Client:       &http.Client{Timeout: fetchTimeout},
		Browser:      pool,
		MinBodyBytes: cfg.AssetMinBodyBytes,
	})

	var renderer render.Renderer
	if strings.TrimSpace(cfg.RendererURL) != "" {
		log.Printf("Rendering previews with %s", cfg.RendererURL)
		renderer = render.NewRemoteRenderer(cfg.RendererURL, nil)
	} else {
		renderer = render.NewChromeRenderer(pool)
	}

	mergeCfg := merge.Config{
		Placeholders: placeholder.New(smart),
		Assets:       assets.NewPipeline(fetcher, smart),
		Fitter:       textfit.NewFitter(fonts),
		Renderer:     renderer,
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		previews, err := objectstore.NewMinioStore(objectstore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			log.Fatalf("minio setup failed: %v", err)
		}
		if err := previews.EnsureBucket(ctx); err != nil {
			log.Fatalf("minio bucket setup failed: %v", err)
		}
		mergeCfg.Previews = previews
	} else {
		log.Printf("MINIO_ENDPOINT not set, previews are returned inline")
	}

	merger, err := merge.New(mergeCfg)
	if err != nil {
		log.Fatalf("merger setup failed: %v", err)
	}

	service := app.New(dataStore, merger)
	if cache != nil {
		service.WithCache(cache)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Editor API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := pool.Close(); err != nil {
		log.Printf("browser shutdown error: %v", err)
	}
}
