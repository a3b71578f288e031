package generative

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
)

const (
	// DefaultTimeout bounds a single generation call
	DefaultTimeout = 8 * time.Second

	// DefaultMaxTokens caps generated output
	DefaultMaxTokens = 300
)

// Observer receives one event per attempt
type Observer interface {
	GenerativeAttempt(feature string, outcome string, elapsed time.Duration)
}

// PolicyConfig tunes a Policy
type PolicyConfig struct {
	Timeout   time.Duration
	MaxTokens int
	Breaker   *Breaker
	Observer  Observer
}

// Policy wraps every generative call: one attempt, bounded by a timeout,
// with any failure reported as Unavailable so callers keep their
// rule-based text. There is no retry.
type Policy struct {
	service   Service
	timeout   time.Duration
	maxTokens int
	breaker   *Breaker
	observer  Observer
}

// NewPolicy creates a Policy around service. A nil service behaves like
// Disabled.
func NewPolicy(service Service, cfg PolicyConfig) *Policy {
	if service == nil {
		service = Disabled{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Policy{
		service:   service,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
		breaker:   cfg.Breaker,
		observer:  cfg.Observer,
	}
}

// Enabled reports whether attempts can reach a real service
func (p *Policy) Enabled() bool {
	_, disabled := p.service.(Disabled)
	return !disabled
}

// Attempt makes at most one generation call for feature. validate checks
// the trimmed content and returns an error when it is unusable.
func (p *Policy) Attempt(ctx context.Context, feature, prompt string, validate func(string) error) Outcome {
	start := time.Now()
	outcome := p.attempt(ctx, prompt, validate)

	label := "ok"
	if u, ok := outcome.(Unavailable); ok {
		label = string(u.Reason)
		if u.Reason != ReasonDisabled {
			fields := []logger.Field{
				logger.Feature(feature),
				logger.String("reason", string(u.Reason)),
				logger.Duration("elapsed", time.Since(start)),
			}
			if u.Err != nil {
				fields = append(fields, logger.Err(u.Err))
			}
			logger.Ctx(ctx).Warn("generative enrichment unavailable, using rule-based text", fields...)
		}
	}
	if p.observer != nil {
		p.observer.GenerativeAttempt(feature, label, time.Since(start))
	}
	return outcome
}

func (p *Policy) attempt(ctx context.Context, prompt string, validate func(string) error) Outcome {
	if !p.Enabled() {
		return Unavailable{Reason: ReasonDisabled}
	}
	if p.breaker != nil && !p.breaker.Allow() {
		return Unavailable{Reason: ReasonCircuitOpen}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := p.service.Generate(callCtx, Request{Prompt: prompt, MaxTokens: p.maxTokens})
		done <- result{resp: resp, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		// the call is abandoned; the goroutine drains into the buffered channel
		return p.interrupted(ctx, callCtx.Err())
	}

	switch {
	case res.err != nil:
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
			return p.interrupted(ctx, res.err)
		}
		p.recordFailure()
		return Unavailable{Reason: ReasonUpstreamError, Err: res.err}
	case !res.resp.Success:
		p.recordFailure()
		return Unavailable{Reason: ReasonNonSuccess}
	}

	content := strings.TrimSpace(res.resp.Content)
	if content == "" {
		p.recordFailure()
		return Unavailable{Reason: ReasonEmpty}
	}
	if validate != nil {
		if err := validate(content); err != nil {
			p.recordFailure()
			return Unavailable{Reason: ReasonMalformed, Err: err}
		}
	}
	p.recordSuccess()
	return Ok{Content: content}
}

// interrupted classifies a call that ended through its context. Only the
// policy's own timeout counts against the breaker; a caller that went away
// says nothing about the upstream.
func (p *Policy) interrupted(parent context.Context, err error) Outcome {
	if parent.Err() != nil {
		if p.breaker != nil {
			p.breaker.Release()
		}
		return Unavailable{Reason: ReasonCanceled, Err: parent.Err()}
	}
	p.recordFailure()
	return Unavailable{Reason: ReasonTimeout, Err: err}
}

func (p *Policy) recordFailure() {
	if p.breaker != nil {
		p.breaker.Failure()
	}
}

func (p *Policy) recordSuccess() {
	if p.breaker != nil {
		p.breaker.Success()
	}
}
