package utils

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestCallWithRetry(t *testing.T) {
	calls := 0
	v, err := CallWithRetry(context.Background(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetryReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := CallWithRetry(context.Background(), func() (string, error) {
		calls++
		return "", boom
	}, 3, time.Millisecond)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CallWithRetry(ctx, func() (int, error) {
		return 0, errors.New("down")
	}, 10, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallWithRetryZeroAttempts(t *testing.T) {
	calls := 0
	_, err := CallWithRetry(context.Background(), func() (int, error) {
		calls++
		return 1, nil
	}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetryIfStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := CallWithRetryIf(context.Background(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("temporary")
		}
		return 0, permanent
	}, func(err error) bool {
		return !errors.Is(err, permanent)
	}, 5, time.Millisecond)

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 2, calls)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn", "json")
	l.Info("dropped")
	l.Warn("kept", "request_id", "r1")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"request_id":"r1"`)

	buf.Reset()
	NewLogger(&buf, "info", "dev").Info("dev output")
	assert.Contains(t, buf.String(), "dev output")
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fn.log")
	l, closeLog, err := SetupLogger("info", "text", path)
	require.NoError(t, err)
	l.Info("written")
	require.NoError(t, closeLog())
	assert.ErrorIs(t, closeLog(), os.ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")

	_, _, err = SetupLogger("info", "text", filepath.Join(t.TempDir(), "missing", "fn.log"))
	assert.Error(t, err)
}

func TestSetupLoggerStdout(t *testing.T) {
	l, closeLog, err := SetupLogger("info", "text", "")
	require.NoError(t, err)
	assert.NotNil(t, l)
	assert.NoError(t, closeLog())
}

func TestInterceptorLoggerMetadataFields(t *testing.T) {
	var buf bytes.Buffer
	interceptor := InterceptorLogger(NewLogger(&buf, "info", "text"), map[string]string{
		"x-fc-request-id":    "request_id",
		"x-fc-function-name": "function",
	})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-fc-request-id", "r1"))
	info := &grpc.UnaryServerInfo{FullMethod: "/fcstream.Function/Invoke"}
	resp, err := interceptor(ctx, "req", info, func(context.Context, any) (any, error) {
		return "resp", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp)

	out := buf.String()
	assert.Contains(t, out, "request_id=r1")
	assert.Contains(t, out, "grpc.method=Invoke")
	assert.NotContains(t, out, "function=")
}
