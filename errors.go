package weft

import "fmt"

// ErrInvalidConfig is returned by New when the assembled configuration is
// invalid. Use errors.Is to test for it:
//
//	_, err := weft.New(weft.WithWorkerThreadCount(-1))
//	if errors.Is(err, weft.ErrInvalidConfig) {
//	    // handle bad configuration
//	}
var ErrInvalidConfig = &Error{msg: "invalid configuration"}

// Error is an error raised by the scheduler. It supports unwrapping for use
// with errors.Is and errors.As.
//
// Note that misuse of the scheduler (scheduling on an unbound goroutine,
// waiting outside a fiber, unbinding twice, ...) is a programming error and
// panics rather than returning an Error.
type Error struct {
	msg string
	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("weft: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("weft: %s", e.msg)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.err
}

func errInvalidConfig(detail string) error {
	return &Error{msg: "invalid configuration: " + detail, err: ErrInvalidConfig}
}
