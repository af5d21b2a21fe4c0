package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobchat/internal/config"
	"jobchat/internal/constants"
	"jobchat/internal/database"
	"jobchat/internal/diagnostics"
	"jobchat/internal/metrics"
	"jobchat/internal/models"
	"jobchat/internal/retry"
	"jobchat/internal/service"
	"jobchat/internal/tracing"
	"jobchat/pkg/api"
	"jobchat/pkg/circuitbreaker"
	"jobchat/pkg/media"
	"jobchat/pkg/notification"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
	logout     = flag.Bool("logout", false, "Unregister this device's push token and exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("jobchat %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

// stores bundles the local state backends. db is nil when running in memory.
type stores struct {
	db            *database.Database
	registrations service.RegistrationStore
	drafts        service.DraftStore
}

func (s stores) healthChecker() diagnostics.HealthChecker {
	if s.db == nil {
		return nil
	}
	return s.db
}

func (s stores) draftCleaner() draftCleaner {
	if s.db == nil {
		return nil
	}
	return s.db
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting jobchat")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLogLevel(logger, cfg.LogLevel, *verbose)

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	registry := metrics.NewRegistry()

	breaker := circuitbreaker.New("jobchat-api",
		uint32(cfg.API.CircuitBreaker.MaxFailures),
		time.Duration(cfg.API.CircuitBreaker.ResetTimeoutSec)*time.Second,
		logger)
	apiClient := api.NewClient(cfg.API.BaseURL, cfg.API.AuthToken,
		&http.Client{Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second},
		breaker, logger)

	registration := service.NewDeviceRegistrationService(newEnvPushPlatform(cfg.Push.Platform), apiClient, st.registrations, cfg.Push, registry, logger)
	if err := registration.Restore(ctx); err != nil {
		logger.WithError(err).Warn("Failed to restore device registration state")
	}

	if *logout {
		if err := registration.Unregister(ctx); err != nil {
			return fmt.Errorf("failed to unregister device: %w", err)
		}
		logger.Info("Device unregistered")
		return nil
	}

	documents, err := media.NewDocumentCache(cfg.Media.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize document cache: %w", err)
	}
	uploader := service.NewAttachmentUploader(apiClient, cfg.Media, registry, logger)
	chats := service.NewChatSyncClient(apiClient, uploader, st.drafts, cfg.Chat, cfg.API.UserID, registry, logger)
	taps := notification.NewHandler(&logNavigator{logger: logger}, apiClient, registry, logger)

	go func() {
		reg, err := registration.Run(ctx)
		if err != nil {
			logger.WithError(err).Warn("Device registration did not start")
			return
		}
		logger.WithFields(logrus.Fields{
			service.LogFieldStatus: reg.Status,
			"message":              reg.Message,
		}).Info("Device registration finished")
	}()

	cleanup := newCleaner(documents, st.draftCleaner(), cfg.Media, logger)
	go cleanup.Start(ctx)

	watcher := config.NewConfigWatcher(*configPath, cfg, logger)
	watcher.OnConfigChange(func(c *models.Config) {
		applyLogLevel(logger, c.LogLevel, *verbose)
		cleanup.SetMaxAge(time.Duration(c.Media.CacheMaxAgeHours) * time.Hour)
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
	}()

	if !cfg.Diagnostics.Enabled {
		<-ctx.Done()
		logger.Info("Received shutdown signal")
		return nil
	}

	server := diagnostics.NewServer(diagnostics.Dependencies{
		Registration: registration,
		Store:        st.healthChecker(),
		API:          apiClient,
		Chats:        chats,
		Documents:    documents,
		Push:         taps,
	}, registry, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Diagnostics.ListenAddr); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// openStores opens the sqlite state database with retry, or falls back to an
// in-memory store when no path is configured.
func openStores(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (stores, error) {
	if cfg.Database.Path == "" {
		logger.Info("No database path configured, keeping state in memory")
		mem := service.NewMemoryStore()
		return stores{registrations: mem, drafts: mem}, nil
	}

	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	var db *database.Database
	err := backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path, cfg.Database.EncryptionSecret)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return stores{}, fmt.Errorf("failed to initialize database after retries: %w", err)
	}

	logger.WithField("encrypted", db.Encrypted()).Info("Local state database ready")
	return stores{db: db, registrations: db, drafts: db}, nil
}

func applyLogLevel(logger *logrus.Logger, configured string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	if configured == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	level, err := logrus.ParseLevel(configured)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", configured)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// logNavigator stands in for the app's navigation layer in the daemon
type logNavigator struct {
	logger *logrus.Logger
}

func (n *logNavigator) NavigateTo(ctx context.Context, target models.NavigationTarget) error {
	n.logger.WithField("target", target.String()).Info("Navigate")
	return nil
}
