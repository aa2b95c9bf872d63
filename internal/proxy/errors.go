package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrUpstreamTimeout means the backend did not answer in time.
	ErrUpstreamTimeout = errors.New("upstream timed out")
	// ErrUpstreamUnavailable means the backend could not be reached at all.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// UpstreamError is a non-200 answer from a backend.
type UpstreamError struct {
	Backend string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s error: Status %d, Response: %s", e.Backend, e.Status, e.Body)
}

// HTTPStatus maps a gateway error to the status code reported to clients.
func HTTPStatus(err error) int {
	var ue *UpstreamError
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &ue):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// classifyTransport turns an http.Client error into the gateway taxonomy.
// Caller cancellation is returned unchanged.
func classifyTransport(backend, target string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s request to %s took too long to generate a response", ErrUpstreamTimeout, backend, target)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: could not connect to %s at %s; ensure it is running and the model is loaded",
			ErrUpstreamUnavailable, backend, target)
	}

	return fmt.Errorf("%s request: %w", backend, err)
}
