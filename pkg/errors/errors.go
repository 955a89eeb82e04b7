// Package errors holds the sentinels shared by the indexer and the query
// service, and maps them to HTTP responses.
package errors

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrMissingPubmedID rejects a document with no PMID; the build stops.
	ErrMissingPubmedID = errors.New("document has no pubmed identifier")
	// ErrIndexUnavailable marks a keyword index that could not be read.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrMetadataUnavailable fails a query outright; results cannot be
	// resolved without it.
	ErrMetadataUnavailable = errors.New("metadata index unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrTimeout             = errors.New("operation timed out")
)

// Detailed attaches a client-facing detail to a sentinel.
type Detailed struct {
	Err    error
	Detail string
}

func (e *Detailed) Error() string { return e.Err.Error() + ": " + e.Detail }

func (e *Detailed) Unwrap() error { return e.Err }

// Invalid reports bad client input.
func Invalid(detail string) error {
	return &Detailed{Err: ErrInvalidInput, Detail: detail}
}

// Message is the text safe to return to a client: the detail when one was
// attached, otherwise the error itself.
func Message(err error) string {
	var d *Detailed
	if errors.As(err, &d) {
		return d.Detail
	}
	return err.Error()
}

// HTTPStatusCode maps an error to the status the query service responds with.
func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrMetadataUnavailable), errors.Is(err, ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
