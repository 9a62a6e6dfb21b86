package orders

import (
	"fmt"
)

// ErrorKind tags the variant of an UpstreamError
type ErrorKind int

const (
	// ErrorTransport means no usable response arrived (network failure, timeout)
	ErrorTransport ErrorKind = iota
	// ErrorDetail means the server rejected the request with a generic detail
	ErrorDetail
	// ErrorOutOfStock means the server listed products with insufficient stock
	ErrorOutOfStock
)

// String returns the name of the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrorTransport:
		return "transport"
	case ErrorDetail:
		return "detail"
	case ErrorOutOfStock:
		return "out_of_stock"
	default:
		return "unknown"
	}
}

// UpstreamError is a failed call to the warehouse API, decoded once from the
// response body so callers never inspect raw error shapes.
type UpstreamError struct {
	Kind   ErrorKind
	Status int
	// Message is the structured message field, or the detail itself when the
	// server sent a plain string.
	Message string
	// Detail is the stringified detail or body when no message was present.
	Detail     string
	OutOfStock []Annotation
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Kind == ErrorTransport && e.Err != nil:
		return fmt.Sprintf("warehouse api unreachable: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("warehouse api returned status %d: %s", e.Status, e.Message)
	case e.Detail != "":
		return fmt.Sprintf("warehouse api returned status %d: %s", e.Status, e.Detail)
	default:
		return fmt.Sprintf("warehouse api returned status %d", e.Status)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// UserMessage picks the best message to show: the structured message, then
// the stringified detail, then the transport error, then fallback.
func (e *UpstreamError) UserMessage(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == ErrorOutOfStock {
		return "Insufficient stock for some products"
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fallback
}
