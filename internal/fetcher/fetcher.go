// Package fetcher calls the carrier tracking API for a single fiscal
// document and hands the raw response to the configured normalizer.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/normalizer"
	"github.com/vialog/nfe-tracker/internal/ratelimit"
)

const (
	defaultFetchTimeout = 10 * time.Second

	// limiterScope shares one rate-limit window across every worker hitting
	// the tracking API.
	limiterScope = "tracking-api"
)

type trackingRequest struct {
	ChaveNFE string `json:"chave_nfe"`
}

// RetryPolicy bounds transient-failure retries within a single Fetch call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	return p
}

// delay grows exponentially per attempt up to MaxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if delay > p.MaxDelay || delay <= 0 {
		return p.MaxDelay
	}
	return delay
}

// Fetcher queries the tracking API for one access key per call. Each attempt
// first acquires a rate-limit slot so concurrent workers never exceed the
// provider quota.
type Fetcher struct {
	client   *resty.Client
	endpoint string
	parser   normalizer.Parser
	limiter  ratelimit.RateLimiter
	retry    RetryPolicy
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewFetcher(endpoint string, parser normalizer.Parser, limiter ratelimit.RateLimiter, retry RetryPolicy, logger *zap.Logger) (*Fetcher, error) {
	client := resty.New()
	client.SetTimeout(defaultFetchTimeout)
	client.SetRetryCount(0)

	return NewFetcherWithClient(endpoint, parser, limiter, retry, logger, client)
}

func NewFetcherWithClient(endpoint string, parser normalizer.Parser, limiter ratelimit.RateLimiter, retry RetryPolicy, logger *zap.Logger, client *resty.Client) (*Fetcher, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("tracking endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid tracking endpoint: %w", err)
	}
	if parser == nil {
		return nil, fmt.Errorf("response parser is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultFetchTimeout)
	}
	// Retries are orchestrated here so each attempt passes through the
	// rate limiter.
	client.SetRetryCount(0)

	return &Fetcher{
		client:   client,
		endpoint: trimmedEndpoint,
		parser:   parser,
		limiter:  limiter,
		retry:    retry.normalized(),
		logger:   logger,
		sleep:    sleepWithContext,
	}, nil
}

// Fetch queries the tracking API for an access key and returns the
// normalized result. A NOT_FOUND or MALFORMED result is a valid outcome,
// not an error; errors mean the document's state is unknown and the caller
// must not advance its polling cursor.
func (f *Fetcher) Fetch(ctx context.Context, accessKey string) (normalizer.Result, error) {
	key := strings.TrimSpace(accessKey)
	if len(key) != domain.AccessKeyLength {
		return normalizer.Result{}, fmt.Errorf("%w: access key must have %d characters", domain.ErrValidation, domain.AccessKeyLength)
	}

	var lastErr error
	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, f.retry.delay(attempt-1)); err != nil {
				return normalizer.Result{}, err
			}
		}

		result, err := f.attempt(ctx, key)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !IsTransient(err) {
			return normalizer.Result{}, err
		}

		f.logger.Warn("tracking fetch attempt failed",
			zap.String("accessKey", key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return normalizer.Result{}, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, key string) (normalizer.Result, error) {
	if err := f.limiter.Wait(ctx, limiterScope); err != nil {
		return normalizer.Result{}, fmt.Errorf("acquiring rate limit slot: %w", err)
	}

	response, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(trackingRequest{ChaveNFE: key}).
		Post(f.endpoint)
	if err != nil {
		return normalizer.Result{}, &FetchError{
			Message:   "tracking request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return normalizer.Result{}, &FetchError{
			Message:   "tracking API returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return f.parser.Parse(response.Body()), nil
	case isTransientHTTPStatus(statusCode):
		return normalizer.Result{}, &FetchError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("tracking API returned status %d", statusCode),
			Transient:  true,
		}
	default:
		// The provider answers permanent non-2xx for unknown documents;
		// treat it as a definitive miss so the shipment is cooled down.
		return normalizer.Result{
			Outcome: normalizer.OutcomeNotFound,
			Message: fmt.Sprintf("tracking API returned status %d", statusCode),
		}, nil
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
