package runtime

import "fmt"

// InitializationError is returned by every call once the function initializer failed.
// The execution environment is unusable from then on.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("function initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// HandlerError wraps a failure returned by the request handler.
type HandlerError struct {
	RequestID string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed for request %s: %v", e.RequestID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
