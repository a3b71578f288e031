package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/config"
	"github.com/JonnyWalker81/ecotrack/backend/internal/ingest"
	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the HTTP API server and listen for requests. When kafka.brokers is
set the check-in consumer runs alongside the server.`,
	RunE: runServe,
}

var (
	port string
)

const shutdownTimeout = 10 * time.Second

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from flag if provided
	if port != "" {
		cfg.Server.Port = port
	}

	setupLogger(cfg)
	logger.Info("starting EcoTrack insights API",
		logger.String("env", cfg.Server.Env),
		logger.String("store", cfg.Store.Driver),
		logger.String("cache", cfg.Cache.Backend),
		logger.String("generative", cfg.Generative.Provider),
		logger.String("auth", cfg.Auth.Mode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	resolver, err := a.userResolver()
	if err != nil {
		return err
	}

	generateLimit := middleware.NewRateLimiter(cfg.RateLimit.GeneratePerMinute, time.Minute, "challenge-generate")
	defer generateLimit.Stop()

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := newRouter(routerDeps{
		env:            cfg.Server.Env,
		allowedOrigins: cfg.Server.AllowedOrigins,
		db:             a.db,
		metrics:        a.metrics,
		service:        a.service,
		resolver:       resolver,
		generateLimit:  generateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var consumer *ingest.CheckinConsumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err = ingest.NewCheckinConsumer(kafkaConfig(cfg), a.service, a.metrics)
		if err != nil {
			return fmt.Errorf("failed to create check-in consumer: %w", err)
		}
		defer consumer.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", logger.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("check-in consumer: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func kafkaConfig(cfg *config.Config) ingest.Config {
	return ingest.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}
}
