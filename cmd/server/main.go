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

	gosmtp "github.com/emersion/go-smtp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/welldanyogia/node-attachments-backend/internal/api"
	"github.com/welldanyogia/node-attachments-backend/internal/api/middleware"
	"github.com/welldanyogia/node-attachments-backend/internal/config"
	"github.com/welldanyogia/node-attachments-backend/internal/database"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
	"github.com/welldanyogia/node-attachments-backend/internal/metrics"
	"github.com/welldanyogia/node-attachments-backend/internal/repository"
	"github.com/welldanyogia/node-attachments-backend/internal/services"
	"github.com/welldanyogia/node-attachments-backend/internal/smtp"
	"github.com/welldanyogia/node-attachments-backend/internal/storage"
	"github.com/welldanyogia/node-attachments-backend/internal/validator"
	"github.com/welldanyogia/node-attachments-backend/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Setup logger
	log := logger.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)
	secLogger := logger.NewSecurityLoggerWithHandler(log.Handler())

	slog.Info("Starting node attachments server...")
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Blob storage
	if err := storage.EnsureRoot(cfg.AttachmentStoragePath); err != nil {
		return fmt.Errorf("prepare storage root: %w", err)
	}
	store, err := storage.NewLocalStorage(cfg.AttachmentStoragePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	// Metrics
	var observer metrics.Observer = metrics.Nop()
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		promObserver, err := metrics.NewPrometheusObserver("", registry)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		observer = promObserver
		gatherer = registry
	}

	// WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	repo := repository.NewAttachmentRepository(db)
	attachmentService := services.NewAttachmentService(
		repo,
		store,
		validator.NewUploadValidator(cfg.UploadPolicy()),
		services.AttachmentServiceConfig{
			MaxAttachmentsPerNode: cfg.MaxAttachmentsPerNode,
			StrictLimit:           cfg.StrictAttachmentLimit,
			Notifier:              hub,
			Observer:              observer,
		},
		log,
	)

	// Orphan sweeper
	if cfg.OrphanSweepInterval > 0 {
		sweeper := services.NewOrphanSweeper(repo, store, services.OrphanSweeperConfig{
			Interval:    cfg.OrphanSweepInterval,
			GracePeriod: cfg.OrphanGracePeriod,
			Observer:    observer,
		}, log)
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Rate limiter
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRequests), cfg.RateLimitBurst)
	limiter.StartCleanup(ctx)

	// HTTP server
	e := api.NewRouter(&api.RouterConfig{
		DB:             db,
		Service:        attachmentService,
		Hub:            hub,
		Upgrader:       websocket.NewSecureUpgrader(cfg.AllowedOrigins, secLogger),
		Logger:         log,
		SecurityLogger: secLogger,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		AppEnv:         cfg.AppEnv,
		RateLimiter:    limiter,
		MaxFileSize:    cfg.MaxFileSize,
		StorageRoot:    cfg.AttachmentStoragePath,
		Metrics:        gatherer,
	})

	// SMTP mail-in
	var smtpServer *gosmtp.Server
	if cfg.SMTPEnabled {
		backend := smtp.NewBackend(&smtp.BackendConfig{
			Service:        attachmentService,
			InboundDomain:  cfg.InboundDomain,
			Logger:         log,
			SecurityLogger: secLogger,
		})
		server, err := smtp.NewSecureServer(backend, &smtp.ServerConfig{
			Addr:              fmt.Sprintf(":%d", cfg.SMTPPort),
			Domain:            cfg.InboundDomain,
			MaxMessageSize:    cfg.SMTPMaxMessageSize,
			MaxRecipients:     cfg.SMTPMaxRecipients,
			ReadTimeout:       cfg.SMTPReadTimeout,
			WriteTimeout:      cfg.SMTPWriteTimeout,
			AllowInsecureAuth: cfg.SMTPAllowInsecure,
			TLSCertFile:       cfg.SMTPTLSCert,
			TLSKeyFile:        cfg.SMTPTLSKey,
		})
		if err != nil {
			return err
		}
		smtpServer = server
	}

	errCh := make(chan error, 2)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		slog.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if smtpServer != nil {
		go func() {
			slog.Info("SMTP server listening",
				slog.String("addr", smtpServer.Addr),
				slog.String("domain", cfg.InboundDomain))
			if err := smtpServer.ListenAndServe(); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("smtp server: %w", err)
			}
		}()
	}

	// Graceful shutdown
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err = <-errCh:
		slog.Error("server failed, shutting down", slog.Any("error", err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if smtpServer != nil {
		if closeErr := smtpServer.Close(); closeErr != nil {
			slog.Warn("failed to close SMTP server", slog.Any("error", closeErr))
		}
	}
	if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("failed to shut down HTTP server", slog.Any("error", shutdownErr))
	}

	slog.Info("Server stopped")
	return err
}
