package crawler

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// FatalError marks a failure that retrying cannot fix, such as rejected
// credentials. The run aborts without touching the checkpoint.
type FatalError struct {
	StatusCode int
	Err        error
}

func (e *FatalError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fatal api error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fatal api error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// TransientError marks a failure worth retrying: server errors, throttling,
// network faults, and error payloads on otherwise well-formed responses.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient api error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient api error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MalformedResponseError marks a response that parsed but violated the
// shape the crawler depends on, such as results without a pagination cursor.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed api response: %s", e.Reason)
}

// IsFatal reports whether err is or wraps a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is or wraps a MalformedResponseError.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
