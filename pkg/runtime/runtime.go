package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/3s-rg-codes/fcstream/pkg/function"
)

// Runtime stands in for the host: it owns one function instance, runs its initializer once
// and dispatches invocations to it.
type Runtime struct {
	handler     function.StreamRequestHandler
	initializer function.FunctionInitializer
	env         function.Environment
	logger      *slog.Logger

	initOnce sync.Once
	initErr  error

	lastActivity time.Time
	activityMu   sync.RWMutex

	invocations atomic.Int64
	failures    atomic.Int64
}

// Stats is a snapshot of the invocation counters.
type Stats struct {
	Invocations  int64
	Failures     int64
	LastActivity time.Time
}

// New creates a Runtime for handler. If handler also implements function.FunctionInitializer
// its Initialize method is used as initializer.
func New(handler function.StreamRequestHandler, env function.Environment, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runtime{
		handler: handler,
		env:     env,
		logger:  logger,
	}
	if initializer, ok := handler.(function.FunctionInitializer); ok {
		r.initializer = initializer
	}
	r.updateActivity()
	return r
}

func (r *Runtime) Environment() function.Environment {
	return r.env
}

func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// NewContext builds the execution context of a call from its headers.
func (r *Runtime) NewContext(ctx context.Context, h http.Header) *function.Context {
	fctx := function.ContextFromHeaders(ctx, h, r.env)
	return fctx.WithLogger(r.logger.With("request_id", fctx.RequestID))
}

// Initialize runs the initializer at most once. Later calls return the first result.
func (r *Runtime) Initialize(ctx *function.Context) error {
	r.updateActivity()
	r.initOnce.Do(func() {
		if r.initializer == nil {
			return
		}
		start := time.Now()
		if err := r.initializer.Initialize(ctx); err != nil {
			r.initErr = &InitializationError{Err: err}
			ctx.Logger().Error("Function initialization failed", "error", err)
			return
		}
		ctx.Logger().Info("Function initialized", "duration", time.Since(start))
	})
	return r.initErr
}

// Invoke makes sure the function is initialized and passes the streams to the handler.
// Every call counts as an invocation, also when the environment is unusable, so Failures never
// exceeds Invocations.
func (r *Runtime) Invoke(ctx *function.Context, in io.Reader, out io.Writer) error {
	r.invocations.Add(1)
	if err := r.Initialize(ctx); err != nil {
		r.failures.Add(1)
		return err
	}

	err := r.handler.HandleRequest(in, out, ctx)
	r.updateActivity()
	if err != nil {
		r.failures.Add(1)
		return &HandlerError{RequestID: ctx.RequestID, Err: err}
	}
	return nil
}

func (r *Runtime) Stats() Stats {
	r.activityMu.RLock()
	last := r.lastActivity
	r.activityMu.RUnlock()
	return Stats{
		Invocations:  r.invocations.Load(),
		Failures:     r.failures.Load(),
		LastActivity: last,
	}
}

func (r *Runtime) updateActivity() {
	r.activityMu.Lock()
	r.lastActivity = time.Now()
	r.activityMu.Unlock()
}

// MonitorIdle blocks until the runtime was idle for timeout, returning true, or until ctx is
// done, returning false.
func (r *Runtime) MonitorIdle(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		<-ctx.Done()
		return false
	}

	interval := min(timeout/4, time.Second)
	interval = max(interval, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			r.activityMu.RLock()
			inactive := time.Since(r.lastActivity)
			r.activityMu.RUnlock()

			if inactive >= timeout {
				r.logger.Info("Idle timeout reached", "timeout", timeout, "last_activity", inactive)
				return true
			}
		}
	}
}
