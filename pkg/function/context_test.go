package function

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderRequestID, "req-1")
	h.Set(HeaderAccessKeyID, "ak")
	h.Set(HeaderAccessKeySecret, "sk")
	h.Set(HeaderSecurityToken, "token")
	h.Set(HeaderFunctionName, "hello")
	h.Set(HeaderFunctionMemory, "512")
	h.Set(HeaderFunctionTimeout, "3")
	h.Set(HeaderServiceName, "svc")
	h.Set(HeaderQualifier, "LATEST")
	h.Set(HeaderRegion, "cn-hangzhou")

	c := ContextFromHeaders(context.Background(), h, Environment{FunctionName: "ignored", Handler: "index.handler"})

	assert.Equal(t, "req-1", c.RequestID)
	assert.Equal(t, Credentials{AccessKeyID: "ak", AccessKeySecret: "sk", SecurityToken: "token"}, c.Credentials)
	assert.Equal(t, "hello", c.Function.Name)
	assert.Equal(t, "index.handler", c.Function.Handler)
	assert.Equal(t, 512, c.Function.Memory)
	assert.Equal(t, 3, c.Function.Timeout)
	assert.Equal(t, "svc", c.Service.Name)
	assert.Equal(t, "LATEST", c.Service.Qualifier)
	assert.Equal(t, "cn-hangzhou", c.Region)
	assert.WithinDuration(t, time.Now().Add(3*time.Second), c.Deadline, time.Second)
}

func TestContextFromHeadersDefaults(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderFunctionMemory, "lots")

	c := ContextFromHeaders(nil, h, Environment{Memory: 128, Region: "cn-shanghai"})

	require.NoError(t, uuid.Validate(c.RequestID), "missing request id must be replaced by a uuid")
	assert.Equal(t, 128, c.Function.Memory)
	assert.Equal(t, "cn-shanghai", c.Region)
	assert.True(t, c.Deadline.IsZero())
}

func TestContextStd(t *testing.T) {
	c := NewContext(context.Background(), Environment{Timeout: 1})
	ctx, cancel := c.Std()
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, c.Deadline, deadline)

	var nilCtx *Context
	ctx2, cancel2 := nilCtx.Std()
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.False(t, ok)
}

func TestContextLogger(t *testing.T) {
	var nilCtx *Context
	assert.NotNil(t, nilCtx.Logger())

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	c := NewContext(context.Background(), Environment{}).WithLogger(l)
	c.Logger().Info("hi")
	assert.Contains(t, buf.String(), "msg=hi")
}

func TestStreamHandlerFunc(t *testing.T) {
	var h StreamRequestHandler = StreamHandlerFunc(func(in io.Reader, out io.Writer, _ *Context) error {
		_, err := io.Copy(out, in)
		return err
	})

	var out bytes.Buffer
	require.NoError(t, h.HandleRequest(strings.NewReader("ping"), &out, nil))
	assert.Equal(t, "ping", out.String())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("FC_FUNCTION_NAME", "hello")
	t.Setenv("FC_FUNCTION_MEMORY_SIZE", "256")
	t.Setenv("FC_FUNCTION_TIMEOUT", "not-a-number")

	env := LoadEnvironment()
	assert.Equal(t, "hello", env.FunctionName)
	assert.Equal(t, 256, env.Memory)
	assert.Equal(t, 0, env.Timeout)
}

func TestLoadEnvironmentHostMemory(t *testing.T) {
	t.Setenv("FC_FUNCTION_MEMORY_SIZE", "")

	env := LoadEnvironment()
	assert.Positive(t, env.Memory)
}
