package client

import "fmt"

// InvocationError is returned when the function runtime answered but reported a failure.
type InvocationError struct {
	Status    int
	ErrorType string
	RequestID string
	Message   string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("function returned status %d (%s) for request %s: %s", e.Status, e.ErrorType, e.RequestID, e.Message)
}
