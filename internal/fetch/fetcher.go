package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// Fetcher retrieves the daily closing-price history for one symbol.
type Fetcher interface {
	FetchDailyCloses(ctx context.Context, ticker string) (*model.PriceSeries, error)
	Name() string
}

// ErrorKind classifies a per-symbol fetch failure.
type ErrorKind string

const (
	// KindNotFound means the provider has no data for the symbol. Permanent
	// for that symbol in that run, and a normal outcome at universe scale.
	KindNotFound ErrorKind = "not_found"
	// KindRateLimited means the provider rejected the request for pacing
	// reasons. Retryable.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTimeout means the request did not complete within its deadline.
	// Retryable.
	KindTimeout ErrorKind = "timeout"
	// KindMalformedResponse means the response could not be decoded. Permanent.
	KindMalformedResponse ErrorKind = "malformed_response"
)

// FetchError wraps a per-symbol failure with its classification.
type FetchError struct {
	Kind   ErrorKind
	Ticker string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Ticker, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Ticker, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient and worth retrying.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTimeout
}

// KindOf extracts the error kind, defaulting to malformed_response for
// errors that escaped classification.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindMalformedResponse
}
