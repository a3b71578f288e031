package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonnyWalker81/ecotrack/backend/internal/config"
	"github.com/JonnyWalker81/ecotrack/backend/internal/ingest"
	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume challenge check-in events",
	Long:  `Read check-in events from Kafka and credit them against weekly challenges.`,
	RunE:  runConsume,
}

func runConsume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateKafka(); err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	consumer, err := ingest.NewCheckinConsumer(kafkaConfig(cfg), a.service, a.metrics)
	if err != nil {
		return fmt.Errorf("failed to create check-in consumer: %w", err)
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
