// Package main is the tracking server entry point: it loads configuration,
// opens the database, bootstraps the admin account, and serves the API
// behind the authorization layer.
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

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/modeltrack/modeltrack/pkg/audit"
	"github.com/modeltrack/modeltrack/pkg/auth"
	"github.com/modeltrack/modeltrack/pkg/authstore"
	"github.com/modeltrack/modeltrack/pkg/authz"
	"github.com/modeltrack/modeltrack/pkg/config"
	"github.com/modeltrack/modeltrack/pkg/permissions"
	"github.com/modeltrack/modeltrack/pkg/server"
	"github.com/modeltrack/modeltrack/pkg/tracking"
)

func main() {
	var (
		configPath string
		listenAddr string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:   "tracking-server",
		Short: "Experiment tracking server with per-resource authorization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, listenAddr, logLevel)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (optional)")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, listenAddr, logLevel string) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}

	users := authstore.NewStore(db, logger)
	if err := users.AutoMigrate(); err != nil {
		return err
	}
	trackingStore := tracking.NewStore(db)
	if err := trackingStore.AutoMigrate(); err != nil {
		return err
	}

	if err := users.EnsureAdmin(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	// Validate already ran at load time, so the lookup cannot fail.
	defaultPerm, err := permissions.Get(cfg.Auth.DefaultPermission)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenVerifier(cfg.Auth.JWTSecret)

	authorizer := authz.New(authz.Config{
		Perms:             users,
		Tracking:          trackingStore,
		DefaultPermission: defaultPerm,
		Realm:             cfg.Auth.Realm,
		Tokens:            tokens,
		MaxRefillFetches:  cfg.Auth.MaxRefillFetches,
		Logger:            logger,
	})

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore = audit.NewStore(db)
		if err := auditStore.AutoMigrate(); err != nil {
			return err
		}
	}

	srv := server.New(cfg, users, trackingStore, authorizer, tokens, auditStore, logger)

	if auditStore != nil {
		go audit.NewRetentionWorker(auditStore, cfg.Audit.RetentionDays, logger).Run(ctx)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tracking server listening",
			"addr", cfg.ListenAddr,
			"database", cfg.Database.Type,
			"default_permission", cfg.Auth.DefaultPermission,
			"bearer_tokens", tokens != nil)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("tracking server stopped")
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}
	return db, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
