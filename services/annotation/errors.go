package annotation

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound marks an explicit "no match" answer from a source
var ErrNotFound = errors.New("no matching record")

type (
	// TransientError is a failure worth retrying: transport errors,
	// timeouts, rate-limit rejections and 5xx responses
	TransientError struct {
		StatusCode int
		Err        error
	}

	// PermanentError is a failure that retrying cannot fix
	PermanentError struct {
		StatusCode int
		Err        error
	}
)

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent failure (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("permanent failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient is the default retryable predicate
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return &TransientError{StatusCode: code, Err: errors.New("rate limited")}
	case code >= 500:
		return &TransientError{StatusCode: code, Err: errors.New(http.StatusText(code))}
	case code == http.StatusNotFound:
		return &PermanentError{StatusCode: code, Err: ErrNotFound}
	default:
		return &PermanentError{StatusCode: code, Err: errors.New(http.StatusText(code))}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
