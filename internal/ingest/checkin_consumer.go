// Package ingest consumes challenge check-in events from Kafka and credits
// them against the user's weekly challenge.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/JonnyWalker81/ecotrack/backend/internal/service"
	"github.com/segmentio/kafka-go"
)

// Check-in outcomes reported to the Observer
const (
	ResultApplied  = "applied"
	ResultInvalid  = "invalid"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

const maxApplyAttempts = 3

// Config holds the consumer settings
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
	// RetryBackoff is the wait between attempts after a storage failure
	RetryBackoff time.Duration
}

// CheckinApplier credits check-in progress. service.InsightService
// implements it.
type CheckinApplier interface {
	ApplyCheckin(ctx context.Context, userID string, delta int, occurredAt time.Time) (*models.ChallengeResult, error)
}

// Observer receives one result per consumed message
type Observer interface {
	CheckinProcessed(result string)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Checkin is the event payload
type Checkin struct {
	UserID     string    `json:"user_id"`
	Delta      int       `json:"delta"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CheckinConsumer reads check-ins from a consumer group. Every message is
// committed once handled, including ones that cannot be decoded or are
// rejected by the challenge rules.
type CheckinConsumer struct {
	cfg      Config
	reader   messageReader
	applier  CheckinApplier
	observer Observer
}

// NewCheckinConsumer builds a consumer backed by a kafka-go reader
func NewCheckinConsumer(cfg Config, applier CheckinApplier, observer Observer) (*CheckinConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("check-in topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return newCheckinConsumer(cfg, reader, applier, observer), nil
}

func newCheckinConsumer(cfg Config, reader messageReader, applier CheckinApplier, observer Observer) *CheckinConsumer {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &CheckinConsumer{cfg: cfg, reader: reader, applier: applier, observer: observer}
}

// Close shuts down the underlying reader
func (c *CheckinConsumer) Close() error {
	return c.reader.Close()
}

// Run consumes until ctx is cancelled or the reader is closed
func (c *CheckinConsumer) Run(ctx context.Context) error {
	log := logger.Ctx(ctx).With(logger.String("topic", c.cfg.Topic), logger.String("group", c.cfg.GroupID))
	log.Info("check-in consumer started", logger.String("brokers", strings.Join(c.cfg.Brokers, ",")))
	defer log.Info("check-in consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			log.Error("check-in fetch failed", logger.Err(err))
			continue
		}

		result := c.handle(ctx, msg)
		if c.observer != nil {
			c.observer.CheckinProcessed(result)
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				log.Error("check-in commit failed", logger.Err(err), logger.Int64("offset", msg.Offset))
			}
		}
		commitCancel()
	}
}

// handle applies one message and returns its result label
func (c *CheckinConsumer) handle(ctx context.Context, msg kafka.Message) string {
	log := logger.Ctx(ctx).With(logger.Int("partition", msg.Partition), logger.Int64("offset", msg.Offset))

	checkin, err := DecodeCheckin(msg.Value)
	if err != nil {
		log.Warn("check-in decode failed", logger.Err(err))
		return ResultInvalid
	}

	ctx = logger.WithUserID(ctx, checkin.UserID)
	log = log.With(logger.String("user_id", checkin.UserID), logger.Int("delta", checkin.Delta))

	for attempt := 1; ; attempt++ {
		challenge, err := c.applier.ApplyCheckin(ctx, checkin.UserID, checkin.Delta, checkin.OccurredAt)
		if err == nil {
			log.Info("check-in applied",
				logger.Int("progress", challenge.Progress),
				logger.String("status", string(challenge.Status)),
			)
			return ResultApplied
		}

		var inputErr *models.InputError
		if errors.As(err, &inputErr) || errors.Is(err, service.ErrChallengeNotFound) || errors.Is(err, service.ErrChallengeClosed) {
			log.Info("check-in rejected", logger.Err(err))
			return ResultRejected
		}

		if attempt >= maxApplyAttempts || ctx.Err() != nil {
			log.Error("check-in dropped after storage failures", logger.Err(err), logger.Int("attempts", attempt))
			return ResultFailed
		}
		log.Warn("check-in apply failed, retrying", logger.Err(err), logger.Int("attempt", attempt))

		select {
		case <-ctx.Done():
			return ResultFailed
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
}

// DecodeCheckin parses and validates a check-in payload
func DecodeCheckin(raw []byte) (Checkin, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var checkin Checkin
	if err := dec.Decode(&checkin); err != nil {
		return Checkin{}, fmt.Errorf("decode check-in payload: %w", err)
	}
	checkin.UserID = strings.TrimSpace(checkin.UserID)
	if checkin.UserID == "" {
		return Checkin{}, errors.New("user_id missing or empty")
	}
	if checkin.Delta <= 0 {
		return Checkin{}, fmt.Errorf("delta must be positive, got %d", checkin.Delta)
	}
	if checkin.OccurredAt.IsZero() {
		return Checkin{}, errors.New("occurred_at missing")
	}
	return checkin, nil
}
