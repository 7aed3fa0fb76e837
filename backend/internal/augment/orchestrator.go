package augment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/metrics"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/provider"
)

const (
	// PromptTemplate is sent to the reasoning service with the raw command.
	PromptTemplate = "Explain security impact of: %s"
	// InsightTag precedes the excerpt of a successful reply.
	InsightTag = " | LLM Insight: "
	// OfflineMarker replaces the excerpt when augmentation could not complete.
	OfflineMarker = " | LLM Offline"
)

// ErrExhausted is returned once every allowed attempt has failed.
var ErrExhausted = errors.New("reasoning service attempts exhausted")

// Config bounds the external call.
type Config struct {
	AttemptTimeout time.Duration // per attempt
	MaxAttempts    int           // total attempts, including the first
	RetryDelay     time.Duration // fixed wait between attempts
	ExcerptChars   int           // runes of the reply kept in the reasoning
	Breaker        BreakerConfig
}

// DefaultConfig mirrors the development profile.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 10 * time.Second,
		MaxAttempts:    3,
		RetryDelay:     2 * time.Second,
		ExcerptChars:   100,
	}
}

// Orchestrator enriches reasoning text with a reply from the reasoning
// service. It never fails: on any error it appends OfflineMarker instead.
type Orchestrator struct {
	provider provider.Provider
	cfg      Config
	breaker  *Breaker
	recorder metrics.Recorder
	logger   *log.Logger
}

// NewOrchestrator wires p with cfg. A nil recorder or logger is allowed.
func NewOrchestrator(p provider.Provider, cfg Config, recorder metrics.Recorder, logger *log.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = def.ExcerptChars
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Orchestrator{
		provider: p,
		cfg:      cfg,
		breaker:  NewBreaker(cfg.Breaker),
		recorder: recorder,
		logger:   logger,
	}
}

// Breaker exposes the circuit breaker for status reporting.
func (o *Orchestrator) Breaker() *Breaker {
	return o.breaker
}

// Augment appends an excerpt of the service's explanation of command to
// base, or OfflineMarker when the service could not answer.
func (o *Orchestrator) Augment(ctx context.Context, command, base string) string {
	reply, err := o.Query(ctx, fmt.Sprintf(PromptTemplate, command))
	if err != nil {
		o.logWarn("LLM unavailable: %v", err)
		o.recorder.RecordAugmentation(false)
		return base + OfflineMarker
	}
	o.recorder.RecordAugmentation(true)
	return base + InsightTag + excerpt(reply, o.cfg.ExcerptChars) + "..."
}

// Query runs the retry policy: only connectivity failures are retried, with
// a fixed delay, up to MaxAttempts in total. Every other failure ends the
// sequence at once. The breaker sees one outcome per call, not per attempt.
func (o *Orchestrator) Query(ctx context.Context, prompt string) (string, error) {
	if !o.breaker.Allow() {
		o.recorder.RecordLLMFailure("breaker")
		return "", ErrCircuitOpen
	}

	reply, err := o.retry(ctx, prompt)
	switch {
	case err == nil:
		o.breaker.RecordSuccess()
	case ctx.Err() == nil:
		o.breaker.RecordFailure()
	}
	return reply, err
}

func (o *Orchestrator) retry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, o.cfg.RetryDelay); err != nil {
				return "", err
			}
			o.recorder.RecordRetry()
		}

		reply, err := o.attempt(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			// The caller went away; this says nothing about the service.
			return "", ctx.Err()
		}

		kind := provider.Classify(err)
		o.recorder.RecordLLMFailure(kind.String())
		lastErr = err

		if !kind.Retryable() {
			return "", err
		}
		if attempt < o.cfg.MaxAttempts {
			o.logInfo("attempt %d/%d failed (%s), retrying in %v", attempt, o.cfg.MaxAttempts, kind, o.cfg.RetryDelay)
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrExhausted, o.cfg.MaxAttempts, lastErr)
}

func (o *Orchestrator) attempt(ctx context.Context, prompt string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	reply, err := o.provider.Generate(actx, prompt)
	o.recorder.RecordLLMQuery(time.Since(start))

	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return "", &provider.Error{Kind: provider.KindTimeout, Backend: o.provider.Name(), Err: err}
	}
	return reply, err
}

// excerpt returns the first n runes of s.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Logging helpers
func (o *Orchestrator) logInfo(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Printf("[INFO] "+format, args...)
	}
}

func (o *Orchestrator) logWarn(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Printf("[WARN] "+format, args...)
	}
}
