package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jfelder/stockroom/internal/backup"
	"github.com/jfelder/stockroom/internal/database"
	"github.com/jfelder/stockroom/internal/logging"
	"github.com/jfelder/stockroom/internal/server"
	"github.com/jfelder/stockroom/internal/storage"
)

func main() {
	logger := logging.Setup(os.Getenv("STOCKROOM_LOG_LEVEL"), os.Getenv("STOCKROOM_LOG_FORMAT"))

	port := os.Getenv("STOCKROOM_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("STOCKROOM_DB_PATH")
	if dbPath == "" {
		dbPath = "stockroom.db"
	}

	dataDir := os.Getenv("STOCKROOM_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var blobs storage.BlobStore
	s3cfg := storage.S3Config{
		Endpoint:  os.Getenv("STOCKROOM_S3_ENDPOINT"),
		Bucket:    os.Getenv("STOCKROOM_S3_BUCKET"),
		Region:    os.Getenv("STOCKROOM_S3_REGION"),
		AccessKey: os.Getenv("STOCKROOM_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("STOCKROOM_S3_SECRET_KEY"),
		PublicURL: os.Getenv("STOCKROOM_S3_PUBLIC_URL"),
	}
	if s3cfg.Configured() {
		blobs = storage.NewS3Store(s3cfg)
		logger.Info("banner image storage", "backend", "s3", "bucket", s3cfg.Bucket)
	} else {
		blobs = storage.NewLocalStore(filepath.Join(dataDir, "uploads"))
		logger.Info("banner image storage", "backend", "local", "dir", filepath.Join(dataDir, "uploads"))
	}

	srv := server.New(db, blobs, logger)

	backups := backup.NewManager(backup.Config{
		Endpoint:   os.Getenv("STOCKROOM_BACKUP_S3_ENDPOINT"),
		Bucket:     os.Getenv("STOCKROOM_BACKUP_S3_BUCKET"),
		Region:     os.Getenv("STOCKROOM_BACKUP_S3_REGION"),
		AccessKey:  os.Getenv("STOCKROOM_BACKUP_S3_ACCESS_KEY"),
		SecretKey:  os.Getenv("STOCKROOM_BACKUP_S3_SECRET_KEY"),
		Passphrase: os.Getenv("STOCKROOM_BACKUP_PASSPHRASE"),
		DBPath:     dbPath,
	}, db, logger.With("component", "backup"))
	backups.Start(context.Background())
	defer backups.Stop()

	// Expired tokens accumulate otherwise; sweep them daily.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if count, err := srv.TokenStore().DeleteExpired(); err != nil {
				logger.Error("token cleanup", "error", err)
			} else if count > 0 {
				logger.Info("token cleanup", "deleted", count)
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Stockroom API running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
