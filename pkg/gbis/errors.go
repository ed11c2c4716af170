package gbis

import (
	"errors"
	"fmt"
)

var (
	ErrMissingParameter        = errors.New("gbis: routeID, stationID and staOrder are required")
	ErrTransport               = errors.New("gbis: transport failure")
	ErrMalformedResponse       = errors.New("gbis: malformed response")
	ErrUpstreamReportedFailure = errors.New("gbis: upstream reported failure")
)

// TransportError covers network failures, timeouts and non 2xx statuses.
// StatusCode is 0 when no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gbis: transport failure (status %d): %v", e.StatusCode, e.Err)
	}

	return fmt.Sprintf("gbis: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("gbis: malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// UpstreamError is a well formed response whose header carries a non zero result code
type UpstreamError struct {
	ResultCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gbis: upstream result code %d: %s", e.ResultCode, e.Message)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamReportedFailure
}
