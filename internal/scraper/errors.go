package scraper

import "fmt"

// Reason classifies why a fetch produced no usable batch.
type Reason string

const (
	ReasonTimeout            Reason = "timeout"
	ReasonNoMatchingElements Reason = "no-matching-elements"
	ReasonTransport          Reason = "transport-error"
)

// FetchError aborts a cycle. It is never retried within the cycle.
type FetchError struct {
	Reason Reason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch failed: %s", e.Reason)
	}
	return fmt.Sprintf("fetch failed: %s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
