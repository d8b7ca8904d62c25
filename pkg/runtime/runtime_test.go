package runtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/3s-rg-codes/fcstream/functions/go/hello"
	"github.com/3s-rg-codes/fcstream/pkg/function"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFunction records lifecycle calls and can be told to fail.
type countingFunction struct {
	mu          sync.Mutex
	initCalls   int
	initErr     error
	handleErr   error
	handleCalls int
}

func (f *countingFunction) Initialize(_ *function.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *countingFunction) HandleRequest(in io.Reader, out io.Writer, _ *function.Context) error {
	f.mu.Lock()
	f.handleCalls++
	f.mu.Unlock()
	if f.handleErr != nil {
		return f.handleErr
	}
	_, err := io.Copy(out, in)
	return err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestContext(rt *Runtime) *function.Context {
	return rt.NewContext(context.Background(), nil)
}

func TestRuntimeInvokeHello(t *testing.T) {
	rt := New(hello.New(), function.Environment{}, testLogger())

	var out bytes.Buffer
	require.NoError(t, rt.Invoke(newTestContext(rt), strings.NewReader("Aliyun"), &out))
	assert.Equal(t, "hello world Aliyun", out.String())

	stats := rt.Stats()
	assert.Equal(t, int64(1), stats.Invocations)
	assert.Zero(t, stats.Failures)
}

func TestRuntimeInitializesOnce(t *testing.T) {
	fn := &countingFunction{}
	rt := New(fn, function.Environment{}, testLogger())

	require.NoError(t, rt.Initialize(newTestContext(rt)))
	require.NoError(t, rt.Initialize(newTestContext(rt)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rt.Invoke(newTestContext(rt), strings.NewReader("x"), io.Discard)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fn.initCalls)
	assert.Equal(t, 8, fn.handleCalls)
}

func TestRuntimeInvokeInitializesFirst(t *testing.T) {
	fn := &countingFunction{}
	rt := New(fn, function.Environment{}, testLogger())

	require.NoError(t, rt.Invoke(newTestContext(rt), strings.NewReader("x"), io.Discard))
	assert.Equal(t, 1, fn.initCalls)
}

func TestRuntimeInitializationFailure(t *testing.T) {
	boom := errors.New("config missing")
	fn := &countingFunction{initErr: boom}
	rt := New(fn, function.Environment{}, testLogger())

	err := rt.Initialize(newTestContext(rt))
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, boom)

	// the environment stays unusable
	err = rt.Invoke(newTestContext(rt), strings.NewReader("x"), io.Discard)
	assert.ErrorAs(t, err, &initErr)
	assert.Zero(t, fn.handleCalls)
	assert.Equal(t, 1, fn.initCalls)

	_ = rt.Invoke(newTestContext(rt), strings.NewReader("y"), io.Discard)
	stats := rt.Stats()
	assert.Equal(t, int64(2), stats.Invocations)
	assert.Equal(t, int64(2), stats.Failures)
}

func TestRuntimeHandlerFailure(t *testing.T) {
	boom := errors.New("write failed")
	rt := New(&countingFunction{handleErr: boom}, function.Environment{}, testLogger())
	fctx := newTestContext(rt)

	err := rt.Invoke(fctx, strings.NewReader("x"), io.Discard)
	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.Equal(t, fctx.RequestID, handlerErr.RequestID)
	assert.ErrorIs(t, err, boom)

	stats := rt.Stats()
	assert.Equal(t, int64(1), stats.Invocations)
	assert.Equal(t, int64(1), stats.Failures)
}

func TestRuntimeWithoutInitializer(t *testing.T) {
	rt := New(function.StreamHandlerFunc(func(in io.Reader, out io.Writer, _ *function.Context) error {
		_, err := io.Copy(out, in)
		return err
	}), function.Environment{}, nil)

	require.NoError(t, rt.Initialize(newTestContext(rt)))

	var out bytes.Buffer
	require.NoError(t, rt.Invoke(newTestContext(rt), strings.NewReader("echo"), &out))
	assert.Equal(t, "echo", out.String())
}

func TestMonitorIdle(t *testing.T) {
	rt := New(hello.New(), function.Environment{}, testLogger())

	start := time.Now()
	assert.True(t, rt.MonitorIdle(context.Background(), 40*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMonitorIdleCancelled(t *testing.T) {
	rt := New(hello.New(), function.Environment{}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, rt.MonitorIdle(ctx, time.Hour))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.False(t, rt.MonitorIdle(ctx2, 0))
}

func TestMonitorIdleActivityResets(t *testing.T) {
	rt := New(hello.New(), function.Environment{}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = rt.Invoke(newTestContext(rt), strings.NewReader("x"), io.Discard)
			}
		}
	}()

	assert.False(t, rt.MonitorIdle(ctx, 80*time.Millisecond))
}
