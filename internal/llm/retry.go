package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Retrying is a decorator that retries transient provider failures with
// exponential backoff and jitter before giving up.
type Retrying struct {
	inner      Client
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetrying wraps a Client with retry logic. maxRetries is the number of
// additional attempts after the first failure; baseDelay doubles per attempt.
func NewRetrying(inner Client, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Retrying {
	return &Retrying{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Generate attempts the call, retrying on transient errors.
func (r *Retrying) Generate(ctx context.Context, prompt string) (*Response, error) {
	resp, err := r.inner.Generate(ctx, prompt)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil || !IsTransient(err) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		delay := r.backoffDelay(attempt)

		r.logger.Warn("retrying model call after transient error",
			"model", r.inner.Model(),
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		resp, err = r.inner.Generate(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *Retrying) Model() string { return r.inner.Model() }

func (r *Retrying) Close() error { return r.inner.Close() }

// backoffDelay computes the delay for a given attempt with ±30% jitter.
func (r *Retrying) backoffDelay(attempt int) time.Duration {
	delay := r.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// IsTransient reports whether err is a provider failure worth retrying:
// throttling, 5xx responses, unavailable gRPC backends, timeouts and dropped
// connections. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return retryableStatus(respErr.HTTPStatusCode())
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
