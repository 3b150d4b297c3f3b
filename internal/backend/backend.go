// Package backend provides per-backend adapters exposing a uniform call
// contract over heterogeneous extraction engines: cloud multimodal APIs,
// locally-hosted inference servers, and a traditional OCR pipeline.
//
// Every client owns its own retry policy and token-bucket rate limiter;
// neither is ever held across a network call.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/smartdeal/dealextract/internal/domain"
)

// Request carries one document to a backend.
type Request struct {
	Document  []byte
	MediaType string
	Prompt    string
}

// Result is a successful backend call.
type Result struct {
	Text       string
	LatencyMs  int64
	TokensUsed int
}

// Client is the uniform contract across backend kinds.
type Client interface {
	// ModelID returns the catalog ID this client serves.
	ModelID() string

	// Kind returns the backend category.
	Kind() domain.BackendKind

	// Call performs the extraction call with retry, backoff and rate
	// limiting applied. It honors ctx's deadline at every suspension
	// point.
	Call(ctx context.Context, req Request) (Result, error)
}

// FailureKind classifies a backend failure for the retry policy.
type FailureKind int

const (
	// FailureTransient failures are expected to succeed on retry:
	// HTTP 429, 5xx, connection timeouts and resets.
	FailureTransient FailureKind = iota

	// FailureFatal failures will not change outcome on retry: 4xx other
	// than 429, auth errors, malformed requests.
	FailureFatal

	// FailureCancelled means the caller's deadline expired.
	FailureCancelled
)

// Error is a classified backend failure.
type Error struct {
	Kind    FailureKind
	Status  int // HTTP status when applicable, 0 otherwise
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend failure (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend failure: %s", e.Message)
}

// Transient reports whether the failure should be retried.
func (e *Error) Transient() bool { return e.Kind == FailureTransient }

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureTransient
	case status >= 500:
		return FailureTransient
	case status >= 400:
		return FailureFatal
	default:
		return FailureTransient
	}
}

// statusError builds a classified error from an HTTP response status.
func statusError(status int, body string) *Error {
	return &Error{Kind: classifyStatus(status), Status: status, Message: truncate(body, 200)}
}

// transportError classifies a transport-level error. Context expiry is
// cancellation; everything else (timeouts, resets, refused connections)
// is transient.
func transportError(err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: FailureCancelled, Message: err.Error()}
	}
	return &Error{Kind: FailureTransient, Message: err.Error()}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// base carries the state shared by every client implementation.
type base struct {
	cfg     domain.ModelConfig
	limiter *rate.Limiter
	policy  Policy
}

func newBase(cfg domain.ModelConfig, policy Policy) base {
	rpm := cfg.MaxRequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return base{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		policy:  policy,
	}
}

func (b *base) ModelID() string          { return b.cfg.ID }
func (b *base) Kind() domain.BackendKind { return b.cfg.Kind }

// call runs one rate-limited attempt loop around fn. Each attempt first
// waits for a rate-limit token, so a retried attempt cannot bypass the
// bucket. The per-call timeout defaults to the model's configured one.
func (b *base) call(ctx context.Context, fn func(ctx context.Context) (Result, *Error)) (Result, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && b.cfg.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.DefaultTimeout)
		defer cancel()
	}

	var result Result
	err := b.policy.Do(ctx, func(ctx context.Context) *Error {
		if err := b.limiter.Wait(ctx); err != nil {
			return &Error{Kind: FailureCancelled, Message: err.Error()}
		}
		start := time.Now()
		res, callErr := fn(ctx)
		if callErr != nil {
			return callErr
		}
		res.LatencyMs = time.Since(start).Milliseconds()
		result = res
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
