package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/analysis"
	"github.com/leakmonitor/leakmonitor/internal/api"
	"github.com/leakmonitor/leakmonitor/internal/archive"
	"github.com/leakmonitor/leakmonitor/internal/config"
	"github.com/leakmonitor/leakmonitor/internal/feed"
	"github.com/leakmonitor/leakmonitor/internal/monitoring"
	"github.com/leakmonitor/leakmonitor/internal/notifications"
	"github.com/leakmonitor/leakmonitor/internal/scheduler"
	"github.com/leakmonitor/leakmonitor/internal/storage"
	"github.com/leakmonitor/leakmonitor/migrations"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting leak monitor backend")

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	victimRepo := storage.NewVictimRepo(pool)
	monitorRepo := storage.NewMonitorRepo(pool)

	feedClient := feed.NewRansomLookClient(cfg.RansomLookBaseURL)
	notificationService := notifications.NewService(cfg)

	var pollArchive archive.Archive
	if cfg.StorageAccount != "" {
		blobArchive, err := archive.NewBlobArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize poll archive: %v", err)
		}
		pollArchive = blobArchive
	} else {
		logrus.Info("No storage account configured, poll archiving disabled")
	}

	monitoringService := monitoring.NewService(monitorRepo, victimRepo, feedClient, notificationService, pollArchive)

	llmClient := analysis.NewAnthropicClient(cfg.AnthropicModel)
	edgarClient := analysis.NewEdgarClient(cfg.EdgarBaseURL)
	analysisService := analysis.NewService(victimRepo, llmClient, edgarClient)

	if cfg.SchedulerEnabled {
		schedulerService := scheduler.NewService(monitoringService)
		if err := schedulerService.Start(); err != nil {
			logrus.Fatalf("Failed to start scheduler: %v", err)
		}
		defer schedulerService.Stop()
	} else {
		logrus.Info("Scheduler disabled, monitors poll on demand only")
	}

	apiServer := api.NewServer(cfg, victimRepo, monitoringService, analysisService, pool)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: apiServer.Router(),
		// Enrichment calls can take minutes for a batch; the write timeout
		// has to outlast them.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logrus.Info("Database migrations applied")
	return nil
}
