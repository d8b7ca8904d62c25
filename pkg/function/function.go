package function

import "io"

// FunctionInitializer is implemented by functions that need a setup hook. The host calls
// Initialize once per execution environment before the first request is handled.
// A non-nil error marks the environment as unusable.
type FunctionInitializer interface {
	Initialize(ctx *Context) error
}

// StreamRequestHandler handles one invocation. The request payload is read from in and the
// complete response must be written to out before HandleRequest returns.
type StreamRequestHandler interface {
	HandleRequest(in io.Reader, out io.Writer, ctx *Context) error
}

// StreamHandlerFunc adapts a plain function to a StreamRequestHandler.
type StreamHandlerFunc func(in io.Reader, out io.Writer, ctx *Context) error

func (f StreamHandlerFunc) HandleRequest(in io.Reader, out io.Writer, ctx *Context) error {
	return f(in, out, ctx)
}
