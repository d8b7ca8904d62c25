package function

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Header names of the custom runtime contract. gRPC metadata uses the same keys.
const (
	HeaderRequestID             = "x-fc-request-id"
	HeaderAccessKeyID           = "x-fc-access-key-id"
	HeaderAccessKeySecret       = "x-fc-access-key-secret"
	HeaderSecurityToken         = "x-fc-security-token"
	HeaderFunctionName          = "x-fc-function-name"
	HeaderFunctionHandler       = "x-fc-function-handler"
	HeaderFunctionMemory        = "x-fc-function-memory"
	HeaderFunctionTimeout       = "x-fc-function-timeout"
	HeaderFunctionInitializer   = "x-fc-function-initializer"
	HeaderInitializationTimeout = "x-fc-initialization-timeout"
	HeaderServiceName           = "x-fc-service-name"
	HeaderServiceLogProject     = "x-fc-service-logproject"
	HeaderServiceLogStore       = "x-fc-service-logstore"
	HeaderQualifier             = "x-fc-qualifier"
	HeaderVersionID             = "x-fc-version-id"
	HeaderRegion                = "x-fc-region"
	HeaderAccountID             = "x-fc-account-id"
	HeaderStatus                = "x-fc-status"
	HeaderErrorType             = "x-fc-error-type"
)

type Credentials struct {
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string
}

type FunctionMeta struct {
	Name        string
	Handler     string
	Memory      int // MB
	Timeout     int // seconds
	Initializer string
	// InitializationTimeout in seconds.
	InitializationTimeout int
}

type ServiceMeta struct {
	Name       string
	LogProject string
	LogStore   string
	Qualifier  string
	VersionID  string
}

// Context is the execution metadata handed to every lifecycle call.
type Context struct {
	RequestID   string
	Credentials Credentials
	Function    FunctionMeta
	Service     ServiceMeta
	Region      string
	AccountID   string
	// Deadline is zero when the function has no timeout.
	Deadline time.Time

	base   context.Context
	logger *slog.Logger
}

// NewContext returns a Context populated only from the environment defaults.
func NewContext(ctx context.Context, env Environment) *Context {
	return ContextFromHeaders(ctx, nil, env)
}

// ContextFromHeaders builds the execution context of one request. Values missing from h
// fall back to env. A request without id gets a fresh UUID.
func ContextFromHeaders(ctx context.Context, h http.Header, env Environment) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if h == nil {
		h = http.Header{}
	}

	c := &Context{
		RequestID: h.Get(HeaderRequestID),
		Credentials: Credentials{
			AccessKeyID:     h.Get(HeaderAccessKeyID),
			AccessKeySecret: h.Get(HeaderAccessKeySecret),
			SecurityToken:   h.Get(HeaderSecurityToken),
		},
		Function: FunctionMeta{
			Name:                  headerOr(h, HeaderFunctionName, env.FunctionName),
			Handler:               headerOr(h, HeaderFunctionHandler, env.Handler),
			Memory:                intHeaderOr(h, HeaderFunctionMemory, env.Memory),
			Timeout:               intHeaderOr(h, HeaderFunctionTimeout, env.Timeout),
			Initializer:           headerOr(h, HeaderFunctionInitializer, env.Initializer),
			InitializationTimeout: intHeaderOr(h, HeaderInitializationTimeout, env.InitializationTimeout),
		},
		Service: ServiceMeta{
			Name:       headerOr(h, HeaderServiceName, env.ServiceName),
			LogProject: h.Get(HeaderServiceLogProject),
			LogStore:   h.Get(HeaderServiceLogStore),
			Qualifier:  h.Get(HeaderQualifier),
			VersionID:  h.Get(HeaderVersionID),
		},
		Region:    headerOr(h, HeaderRegion, env.Region),
		AccountID: headerOr(h, HeaderAccountID, env.AccountID),
		base:      ctx,
	}
	if c.RequestID == "" {
		c.RequestID = uuid.New().String()
	}
	if c.Function.Timeout > 0 {
		c.Deadline = time.Now().Add(time.Duration(c.Function.Timeout) * time.Second)
	}
	return c
}

// WithLogger returns a shallow copy of c that logs through l.
func (c *Context) WithLogger(l *slog.Logger) *Context {
	cp := *c
	cp.logger = l
	return &cp
}

// Logger never returns nil, also not on a nil Context.
func (c *Context) Logger() *slog.Logger {
	if c == nil {
		return slog.Default()
	}
	if c.logger == nil {
		return slog.Default().With("request_id", c.RequestID)
	}
	return c.logger
}

// Std returns a context.Context bounded by Deadline.
func (c *Context) Std() (context.Context, context.CancelFunc) {
	base := context.Background()
	if c != nil && c.base != nil {
		base = c.base
	}
	if c == nil || c.Deadline.IsZero() {
		return context.WithCancel(base)
	}
	return context.WithDeadline(base, c.Deadline)
}

func headerOr(h http.Header, key, fallback string) string {
	if v := h.Get(key); v != "" {
		return v
	}
	return fallback
}

func intHeaderOr(h http.Header, key string, fallback int) int {
	v := h.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
