package ai

import "errors"

// ErrEmbeddingRejected is a convenience sentinel for inputs the provider
// refuses to embed. It is always wrapped as permanent.
var ErrEmbeddingRejected = errors.New("embedding input rejected by provider")

// PermanentError marks an embedding failure that retrying cannot fix, such
// as the provider rejecting the input. Unwrapped errors are treated as
// transient by callers.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a permanent embedding failure.
// Wrapping nil returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is a permanent
// embedding failure.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
