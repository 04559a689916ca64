package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable is returned once an AI call has exhausted its
	// retry budget or the provider rejected authentication.
	ErrServiceUnavailable = errors.New("ai moderation service unavailable")

	// ErrInvalidAPIResponse marks a provider answer that failed structural,
	// content or schema validation. It is retryable.
	ErrInvalidAPIResponse = errors.New("invalid api response")

	ErrUnknownProvider = errors.New("unknown ai provider")
)

type ServiceError struct {
	Op       string
	Attempts int
	Err      error
}

func NewServiceError(op string, attempts int, err error) error {
	return &ServiceError{Op: op, Attempts: attempts, Err: err}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d attempt(s): %v", ErrServiceUnavailable, e.Op, e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Err}
}

func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
