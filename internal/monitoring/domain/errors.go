package monitoring

import (
	"errors"
	"fmt"
)

var (
	// ErrThresholdOutOfRange indicates a threshold outside [1, 60] minutes.
	ErrThresholdOutOfRange = errors.New("monitoring: threshold out of range")

	// ErrUnknownGateway indicates a gateway id the telemetry source does not know.
	ErrUnknownGateway = errors.New("monitoring: unknown gateway")

	// ErrAlreadySubscribed indicates a duplicate (user, gateway) subscription.
	ErrAlreadySubscribed = errors.New("monitoring: already subscribed")

	// ErrNotSubscribed indicates a missing (user, gateway) subscription.
	ErrNotSubscribed = errors.New("monitoring: not subscribed")
)

// FetchErrorKind classifies telemetry fetch failures.
type FetchErrorKind string

const (
	FetchNotFound        FetchErrorKind = "not_found"
	FetchUnreachable     FetchErrorKind = "unreachable"
	FetchInvalidResponse FetchErrorKind = "invalid_response"
	FetchTimeout         FetchErrorKind = "timeout"
)

// FetchError wraps a telemetry fetch failure with its classification.
type FetchError struct {
	Kind      FetchErrorKind
	GatewayID string
	Err       error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "monitoring: fetch error"
	}
	if e.Err != nil {
		return fmt.Sprintf("monitoring: fetch %s: %s: %v", e.GatewayID, e.Kind, e.Err)
	}
	return fmt.Sprintf("monitoring: fetch %s: %s", e.GatewayID, e.Kind)
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewFetchError constructs a classified fetch error.
func NewFetchError(kind FetchErrorKind, gatewayID string, err error) *FetchError {
	return &FetchError{Kind: kind, GatewayID: gatewayID, Err: err}
}

// AsFetchError extracts a FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr, true
	}
	return nil, false
}
