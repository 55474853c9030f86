// Package retry re-runs peer operations that failed transiently, backing off
// exponentially between attempts.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/objectfs/storenode/pkg/errors"
)

// Config defines retry behavior.
type Config struct {
	// MaxAttempts counts the first call. One disables retrying.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Jitter is the fraction of a delay randomly added or removed, in [0, 1).
	Jitter float64 `yaml:"jitter" json:"jitter"`

	// Retryable classifies a failure. Nil means Transient.
	Retryable func(error) bool `yaml:"-" json:"-"`

	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(Attempt) `yaml:"-" json:"-"`

	Clock clock.Clock `yaml:"-" json:"-"`
}

// Attempt describes a failed attempt about to be retried.
type Attempt struct {
	Number int
	Err    error
	Delay  time.Duration
}

// DefaultConfig returns the policy used for peer traffic.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
	}
}

// Transient reports whether err is a peer failure worth repeating: a transport
// error or a 5xx answer. A missing set or a rejected request is final.
func Transient(err error) bool {
	return errors.HasCode(err, errors.ErrCodePeerSync)
}

// Retryer runs functions under a Config.
type Retryer struct {
	config Config
}

// New creates a Retryer, filling unset fields from DefaultConfig.
func New(config Config) *Retryer {
	d := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = d.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = d.InitialDelay
	}
	if config.MaxDelay < config.InitialDelay {
		config.MaxDelay = max(d.MaxDelay, config.InitialDelay)
	}
	if config.Multiplier < 1 {
		config.Multiplier = d.Multiplier
	}
	if config.Jitter < 0 || config.Jitter >= 1 {
		config.Jitter = 0
	}
	if config.Retryable == nil {
		config.Retryable = Transient
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	return &Retryer{config: config}
}

// Do calls fn until it succeeds, fails permanently, runs out of attempts or
// ctx ends. The last error of fn is returned unchanged so callers can still
// classify it; a cancelled wait returns the context error.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= r.config.MaxAttempts || !r.config.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		delay := r.Backoff(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(Attempt{Number: attempt, Err: err, Delay: delay})
		}

		timer := r.config.Clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the wait after the given failed attempt.
func (r *Retryer) Backoff(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	delay = math.Min(delay, float64(r.config.MaxDelay))
	if r.config.Jitter > 0 {
		delay += delay * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}

// MaxAttempts returns the configured attempt budget.
func (r *Retryer) MaxAttempts() int {
	return r.config.MaxAttempts
}
