package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/normalizer"
)

type fakeLimiter struct {
	waitFunc func(ctx context.Context, scope string) error
}

func (f *fakeLimiter) Allow(ctx context.Context, scope string) (bool, error) { return true, nil }

func (f *fakeLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFunc == nil {
		return nil
	}
	return f.waitFunc(ctx, scope)
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func testAccessKey() string { return strings.Repeat("1", domain.AccessKeyLength) }

const trackingBody = `{
	"success": true,
	"documento": {
		"header": {"nro_nf": "123456"},
		"tracking": [
			{"data_hora": "2025-07-01T14:10:00", "ocorrencia": "MERCADORIA ENTREGUE (01)"}
		]
	}
}`

func newTestFetcher(t *testing.T, endpoint string, limiter *fakeLimiter, retry RetryPolicy) *Fetcher {
	t.Helper()

	f, err := NewFetcher(endpoint, normalizer.NewJSONParser(), limiter, retry, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	f.sleep = noSleep
	return f
}

func TestFetcherSuccess(t *testing.T) {
	t.Parallel()

	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		var body struct {
			ChaveNFE string `json:"chave_nfe"`
		}
		if err := jsonDecode(r, &body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		gotKey = body.ChaveNFE

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(trackingBody))
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL, &fakeLimiter{}, RetryPolicy{MaxAttempts: 1})

	result, err := f.Fetch(context.Background(), testAccessKey())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotKey != testAccessKey() {
		t.Fatalf("request key = %q, want the access key", gotKey)
	}
	if result.Outcome != normalizer.OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS", result.Outcome)
	}
	if len(result.Events) != 1 || result.Events[0].OccurrenceCode != "01" {
		t.Fatalf("events = %+v, want one delivery event", result.Events)
	}
}

func TestFetcherRejectsInvalidAccessKey(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, "http://localhost:1", &fakeLimiter{}, RetryPolicy{MaxAttempts: 1})

	_, err := f.Fetch(context.Background(), "too-short")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestFetcherPermanentStatusIsNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL, &fakeLimiter{}, RetryPolicy{MaxAttempts: 1})

	result, err := f.Fetch(context.Background(), testAccessKey())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil (permanent miss is a valid outcome)", err)
	}
	if result.Outcome != normalizer.OutcomeNotFound {
		t.Fatalf("outcome = %s, want NOT_FOUND", result.Outcome)
	}
}

func TestFetcherRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(trackingBody))
	}))
	defer server.Close()

	var waits atomic.Int32
	limiter := &fakeLimiter{waitFunc: func(ctx context.Context, scope string) error {
		if scope != limiterScope {
			t.Errorf("scope = %q, want %q", scope, limiterScope)
		}
		waits.Add(1)
		return nil
	}}

	f := newTestFetcher(t, server.URL, limiter, RetryPolicy{MaxAttempts: 3})

	result, err := f.Fetch(context.Background(), testAccessKey())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if result.Outcome != normalizer.OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS after retries", result.Outcome)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	// Every attempt must pass through the rate limiter.
	if got := waits.Load(); got != 3 {
		t.Fatalf("limiter waits = %d, want 3", got)
	}
}

func TestFetcherExhaustedRetriesReturnTransientError(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL, &fakeLimiter{}, RetryPolicy{MaxAttempts: 2})

	_, err := f.Fetch(context.Background(), testAccessKey())
	if err == nil {
		t.Fatal("Fetch() error = nil, want transient error after exhausted retries")
	}
	if !IsTransient(err) {
		t.Fatalf("error %v should classify as transient", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestFetcherLimiterErrorStopsAttempt(t *testing.T) {
	t.Parallel()

	limiterErr := errors.New("redis unavailable")
	limiter := &fakeLimiter{waitFunc: func(ctx context.Context, scope string) error {
		return limiterErr
	}}

	f := newTestFetcher(t, "http://localhost:1", limiter, RetryPolicy{MaxAttempts: 1})

	_, err := f.Fetch(context.Background(), testAccessKey())
	if !errors.Is(err, limiterErr) {
		t.Fatalf("error = %v, want the limiter error", err)
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "transient fetch error", err: &FetchError{Transient: true}, want: true},
		{name: "permanent fetch error", err: &FetchError{Transient: false}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
