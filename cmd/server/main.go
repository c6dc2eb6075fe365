package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/medveille/medveille/api"
	migrations "github.com/medveille/medveille/db"
	"github.com/medveille/medveille/internal/backup"
	"github.com/medveille/medveille/internal/compliance"
	"github.com/medveille/medveille/internal/config"
	"github.com/medveille/medveille/internal/db"
	"github.com/medveille/medveille/internal/kvstore"
	"github.com/medveille/medveille/internal/session"
	"github.com/medveille/medveille/internal/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	api.SetLogger(logger)

	log.Printf("Starting medveille server version %s (built at %s)", version, buildTime)

	ctx := context.Background()

	// Open database connection and apply migrations
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Migrate(ctx, conn, migrations.Migrations); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	engine := compliance.NewEngine()
	st := store.New(kvstore.New(conn, logger), engine, logger)
	guard := session.New(st, logger, cfg.IdleTimeout)

	// Backup strategy chain: chosen directory (restored by the service when
	// persisted), then the Documents subfolder, then the download spool.
	spool := backup.NewDirStrategy("spool", cfg.Backup.SpoolDir)
	chain := []backup.Strategy{}
	if docs, err := backup.NewDocumentsStrategy("Medveille"); err != nil {
		logger.Warn("documents strategy unavailable", "err", err)
	} else {
		chain = append(chain, docs)
	}
	chain = append(chain, spool)

	svc, err := backup.New(ctx, st, logger, cfg.Backup.Filename, chain...)
	if err != nil {
		log.Fatalf("Failed to init backup service: %v", err)
	}
	if cfg.Backup.Directory != "" {
		if err := svc.ChooseDirectory(ctx, cfg.Backup.Directory); err != nil {
			logger.Warn("configured backup directory not usable", "dir", cfg.Backup.Directory, "err", err)
		}
	}
	if cfg.Backup.Threshold != backup.DefaultThreshold || cfg.Backup.AutoImport {
		if err := svc.SetConfig(ctx, cfg.Backup.Threshold, cfg.Backup.AutoImport); err != nil {
			logger.Warn("apply backup config", "err", err)
		}
	}
	st.SetChangeNotifier(svc.RegisterChange)

	// Pull in a newer backup from the watched location before serving
	if applied, err := svc.CheckAndAutoImport(ctx); err != nil {
		logger.Warn("startup auto import", "err", err)
	} else if applied {
		logger.Info("startup auto import applied")
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	go func() {
		if err := svc.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
			logger.Warn("backup watcher stopped", "err", err)
		}
	}()

	handler := api.SetupRoutes(cfg, version, buildTime, st, guard, svc, spool)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopWatch()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if err := conn.Close(); err != nil {
		log.Printf("Error closing DB: %v", err)
	}

	log.Println("Server exited")
}
