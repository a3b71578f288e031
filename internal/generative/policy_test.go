package generative

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService returns a canned response and counts calls
type stubService struct {
	mu    sync.Mutex
	calls int
	resp  Response
	err   error
	block bool
}

func (s *stubService) Generate(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		// ignores ctx on purpose to prove the policy still returns
		time.Sleep(500 * time.Millisecond)
	}
	return s.resp, s.err
}

func (s *stubService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) GenerativeAttempt(feature, outcome string, _ time.Duration) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, feature+":"+outcome)
	r.mu.Unlock()
}

func notEmptyJSON(content string) error {
	if content[0] != '{' {
		return errors.New("not json")
	}
	return nil
}

func TestPolicy_Attempt(t *testing.T) {
	tests := []struct {
		name     string
		service  *stubService
		validate func(string) error
		want     Outcome
	}{
		{
			name:    "success trims content",
			service: &stubService{resp: Response{Success: true, Content: "  Plant three trees!  "}},
			want:    Ok{Content: "Plant three trees!"},
		},
		{
			name:    "non-success status",
			service: &stubService{resp: Response{Success: false}},
			want:    Unavailable{Reason: ReasonNonSuccess},
		},
		{
			name:    "empty content",
			service: &stubService{resp: Response{Success: true, Content: " \n "}},
			want:    Unavailable{Reason: ReasonEmpty},
		},
		{
			name:     "malformed content",
			service:  &stubService{resp: Response{Success: true, Content: "Sure, here you go"}},
			validate: notEmptyJSON,
			want:     Unavailable{Reason: ReasonMalformed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewPolicy(tt.service, PolicyConfig{Timeout: time.Second})
			got := policy.Attempt(context.Background(), "test", "prompt", tt.validate)

			if u, ok := got.(Unavailable); ok {
				got = Unavailable{Reason: u.Reason}
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, tt.service.Calls())
		})
	}
}

func TestPolicy_UpstreamError(t *testing.T) {
	boom := errors.New("connection reset")
	policy := NewPolicy(&stubService{err: boom}, PolicyConfig{})

	got := policy.Attempt(context.Background(), "test", "prompt", nil)
	u, ok := got.(Unavailable)
	require.True(t, ok)
	assert.Equal(t, ReasonUpstreamError, u.Reason)
	assert.ErrorIs(t, u.Err, boom)
}

func TestPolicy_TimeoutAbandonsCall(t *testing.T) {
	service := &stubService{block: true, resp: Response{Success: true, Content: "late"}}
	policy := NewPolicy(service, PolicyConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	got := policy.Attempt(context.Background(), "test", "prompt", nil)

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	u, ok := got.(Unavailable)
	require.True(t, ok)
	assert.Equal(t, ReasonTimeout, u.Reason)
}

func TestPolicy_DisabledNeverCalls(t *testing.T) {
	observer := &recordingObserver{}
	for _, svc := range []Service{nil, Disabled{}} {
		policy := NewPolicy(svc, PolicyConfig{Observer: observer})
		assert.False(t, policy.Enabled())

		got := policy.Attempt(context.Background(), "challenge", "prompt", nil)
		assert.Equal(t, Unavailable{Reason: ReasonDisabled}, got)
	}
	assert.Equal(t, []string{"challenge:disabled", "challenge:disabled"}, observer.outcomes)
}

func TestPolicy_OpenBreakerFastFails(t *testing.T) {
	service := &stubService{err: errors.New("503")}
	breaker := NewBreaker("test", BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	policy := NewPolicy(service, PolicyConfig{Breaker: breaker})

	for i := 0; i < 2; i++ {
		policy.Attempt(context.Background(), "test", "prompt", nil)
	}
	require.Equal(t, BreakerOpen, breaker.State())

	got := policy.Attempt(context.Background(), "test", "prompt", nil)
	assert.Equal(t, Unavailable{Reason: ReasonCircuitOpen}, got)
	assert.Equal(t, 2, service.Calls())
}

func TestPolicy_CallerCancelDoesNotTripBreaker(t *testing.T) {
	service := &stubService{block: true, resp: Response{Success: true, Content: "late"}}
	breaker := NewBreaker("test", BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	policy := NewPolicy(service, PolicyConfig{Timeout: time.Second, Breaker: breaker})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	got := policy.Attempt(canceled, "test", "prompt", nil)
	u, ok := got.(Unavailable)
	require.True(t, ok)
	assert.Equal(t, ReasonCanceled, u.Reason)
	assert.ErrorIs(t, u.Err, context.Canceled)

	// a caller deadline shorter than the policy timeout is the caller's problem too
	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	got = policy.Attempt(short, "test", "prompt", nil)
	assert.Equal(t, ReasonCanceled, got.(Unavailable).Reason)

	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestPolicy_OwnTimeoutTripsBreaker(t *testing.T) {
	service := &stubService{block: true}
	breaker := NewBreaker("test", BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	policy := NewPolicy(service, PolicyConfig{Timeout: 10 * time.Millisecond, Breaker: breaker})

	got := policy.Attempt(context.Background(), "test", "prompt", nil)
	assert.Equal(t, ReasonTimeout, got.(Unavailable).Reason)
	assert.Equal(t, BreakerOpen, breaker.State())
}

func TestPolicy_UnusableReplyKeepsBreakerOpen(t *testing.T) {
	now := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	service := &stubService{err: errors.New("503")}
	breaker := NewBreaker("test", BreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})
	breaker.now = func() time.Time { return now }
	policy := NewPolicy(service, PolicyConfig{Timeout: time.Second, Breaker: breaker})

	policy.Attempt(context.Background(), "test", "prompt", nil)
	require.Equal(t, BreakerOpen, breaker.State())

	// the half-open probe gets a blank reply
	now = now.Add(time.Minute)
	service.err = nil
	service.resp = Response{Success: true, Content: "  "}
	got := policy.Attempt(context.Background(), "test", "prompt", nil)
	assert.Equal(t, Unavailable{Reason: ReasonEmpty}, got)
	assert.Equal(t, BreakerOpen, breaker.State())

	// and then one that fails validation
	now = now.Add(time.Minute)
	service.resp = Response{Success: true, Content: "Sure, here you go"}
	got = policy.Attempt(context.Background(), "test", "prompt", notEmptyJSON)
	assert.Equal(t, ReasonMalformed, got.(Unavailable).Reason)
	assert.Equal(t, BreakerOpen, breaker.State())

	now = now.Add(time.Minute)
	service.resp = Response{Success: true, Content: `{"title":"ok"}`}
	got = policy.Attempt(context.Background(), "test", "prompt", notEmptyJSON)
	assert.Equal(t, Ok{Content: `{"title":"ok"}`}, got)
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestPolicy_CanceledProbeReleasesHalfOpen(t *testing.T) {
	now := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	service := &stubService{block: true, resp: Response{Success: true, Content: "Plant a tree"}}
	breaker := NewBreaker("test", BreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})
	breaker.now = func() time.Time { return now }
	policy := NewPolicy(service, PolicyConfig{Timeout: time.Second, Breaker: breaker})

	breaker.Failure()
	require.Equal(t, BreakerOpen, breaker.State())
	now = now.Add(time.Minute)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	got := policy.Attempt(canceled, "test", "prompt", nil)
	assert.Equal(t, ReasonCanceled, got.(Unavailable).Reason)
	assert.Equal(t, BreakerOpen, breaker.State())

	// the next caller becomes the probe without waiting out another window
	got = policy.Attempt(context.Background(), "test", "prompt", nil)
	assert.Equal(t, Ok{Content: "Plant a tree"}, got)
	assert.Equal(t, BreakerClosed, breaker.State())
}
