package factordb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidNumber is returned for input that is not a non-negative
	// decimal integer. No request is made.
	ErrInvalidNumber = errors.New("factordb: invalid number")

	// ErrUnknownStatus is wrapped by the ParseError returned when the API
	// reports a status code outside the known set.
	ErrUnknownStatus = errors.New("factordb: unknown status code")

	// ErrProductMismatch is returned by Result.Verify when the factors of a
	// fully factored number do not multiply back to it.
	ErrProductMismatch = errors.New("factordb: factors do not multiply to number")
)

// HTTPError reports a failed request: the service was unreachable, the
// context ended, or the response status was not 2xx.
type HTTPError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("factordb: request %s: %v", e.URL, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ParseError reports a response body that is not a valid lookup result.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("factordb: parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is or wraps an *HTTPError.
func IsTransport(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// IsParse reports whether err is or wraps a *ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
