package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/marktennyson/nextbrowse-sub001/internal/archive"
	"github.com/marktennyson/nextbrowse-sub001/internal/chunkstore"
	"github.com/marktennyson/nextbrowse-sub001/internal/cleanup"
	"github.com/marktennyson/nextbrowse-sub001/internal/config"
	"github.com/marktennyson/nextbrowse-sub001/internal/dirservice"
	"github.com/marktennyson/nextbrowse-sub001/internal/httpapi"
	"github.com/marktennyson/nextbrowse-sub001/internal/middleware"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
	"github.com/marktennyson/nextbrowse-sub001/internal/share"
	"github.com/marktennyson/nextbrowse-sub001/internal/upload"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "err", err)
		os.Exit(1)
	}

	gate, err := pathgate.New(cfg.RootDir)
	if err != nil {
		logger.Error("failed to resolve storage root", "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(gate.Root(), 0o750); err != nil {
		logger.Error("failed to create storage root", "err", err)
		os.Exit(1)
	}

	dirs := dirservice.New(gate, cfg.PublicFilesBase, cfg.ListingAcceleratorURL, logger)
	chunks := chunkstore.New()
	uploads := upload.New(gate, chunks, logger)
	archiver := archive.New(gate)
	shares := share.New(nil)
	defer shares.Close() //nolint:errcheck

	limiter := middleware.NewUploadLimiter(cfg.MaxConcurrentUploads)

	// Root context — cancelled when a shutdown signal arrives. Every
	// long-running background goroutine receives this context so it stops
	// cleanly without its own signal wiring.
	ctx, cancel := context.WithCancel(context.Background())

	// Scratch-chunk cleanup goroutine reclaims disk space from abandoned
	// chunked uploads. A client that starts an upload then disconnects
	// (crash, timeout, network drop) leaves chunk files that would
	// otherwise live forever under .upload-temp.
	var cleanupDone <-chan struct{}
	if cfg.ScratchTTLHours > 0 {
		ttl := time.Duration(cfg.ScratchTTLHours) * time.Hour
		cleanupDone = cleanup.RunPeriodic(ctx, gate.Root(), ttl, 1*time.Hour, logger)
		logger.Info("scratch cleanup enabled", "ttl_hours", cfg.ScratchTTLHours, "root", gate.Root())
	}

	// Share-expiry sweep is driven by the registry's own lazy-expiry-on-
	// access semantics (§4.6); this periodic List() call just exercises
	// that sweep on a schedule so shares no one ever looks up again still
	// get reclaimed promptly instead of lingering until the next request.
	shareSweepDone := runShareSweep(ctx, shares, time.Duration(cfg.ShareSweepIntervalSecs)*time.Second)

	handlerCfg := httpapi.Config{
		Gate:            gate,
		Dirs:            dirs,
		Uploads:         uploads,
		Archiver:        archiver,
		Shares:          shares,
		Limiter:         limiter,
		Logger:          logger,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		MaxUploadBody:   cfg.MaxUploadBodyBytes,
		PublicFilesBase: cfg.PublicFilesBase,
		MinFreeBytes:    cfg.MinFreeBytes,
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.New(handlerCfg),
		// ReadHeaderTimeout closes Slowloris: a client that never finishes
		// sending headers holds a goroutine until this fires.
		ReadHeaderTimeout: 10 * time.Second,
		// ReadTimeout and WriteTimeout are intentionally disabled (0 = no
		// limit).
		//
		// Why: a 10 GB file uploaded at 1 MB/s takes ~170 minutes. Any
		// finite ReadTimeout would silently abort slow uploads or archive
		// downloads. The reverse proxy in front of this service enforces
		// the outer connection timeout — that is the correct layer for an
		// upper bound. ReadHeaderTimeout already protects against
		// Slowloris, so disabling ReadTimeout/WriteTimeout is safe.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("file service starting",
			"port", cfg.Port,
			"root", gate.Root(),
			"max_concurrent_uploads", cfg.MaxConcurrentUploads,
			"scratch_ttl_hours", cfg.ScratchTTLHours,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// shutdownSignals is defined in signals.go (os.Interrupt) and extended
	// by signals_unix.go (+ SIGTERM) via build tags — no OS-specific
	// imports here.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, shutdownSignals...)
	<-quit

	logger.Info("shutdown signal received — draining connections")

	// Cancel the root context first so background goroutines (cleanup,
	// share sweep) stop accepting new work before the HTTP server drains.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}

	if cleanupDone != nil {
		<-cleanupDone
	}
	<-shareSweepDone

	logger.Info("file service stopped")
}

// runShareSweep periodically calls Registry.List, which sweeps every
// expired entry as a side effect, so shares no one accesses again are
// still reclaimed promptly. Returns a channel closed once the goroutine
// has returned, for the shutdown sequence to wait on.
func runShareSweep(ctx context.Context, shares *share.Registry, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				shares.List()
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
