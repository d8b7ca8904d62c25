package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/3s-rg-codes/fcstream/pkg/function"
	"github.com/3s-rg-codes/fcstream/pkg/runtime"
	"github.com/3s-rg-codes/fcstream/pkg/utils"
)

// Result of one invocation.
type Result struct {
	Body      []byte
	RequestID string
}

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient talks to the custom runtime endpoints of a function.
type HTTPClient struct {
	baseURL string
	client  Doer
	// Attempts made while the server cannot be dialed. Any other failure is returned at once,
	// since the function may already have run.
	Attempts int
	Backoff  time.Duration
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return NewHTTPClientWithDoer(baseURL, http.DefaultClient)
}

func NewHTTPClientWithDoer(baseURL string, client Doer) *HTTPClient {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   client,
		Attempts: 3,
		Backoff:  200 * time.Millisecond,
	}
}

func (c *HTTPClient) Initialize(ctx context.Context, requestID string) error {
	_, err := c.post(ctx, runtime.PathInitialize, nil, requestID)
	return err
}

func (c *HTTPClient) Invoke(ctx context.Context, payload []byte, requestID string) (*Result, error) {
	return c.post(ctx, runtime.PathInvoke, payload, requestID)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload []byte, requestID string) (*Result, error) {
	resp, err := utils.CallWithRetryIf(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		if requestID != "" {
			req.Header.Set(function.HeaderRequestID, requestID)
		}
		return c.client.Do(req)
	}, isDialError, c.Attempts, c.Backoff)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	rid := resp.Header.Get(function.HeaderRequestID)
	if resp.StatusCode != http.StatusOK {
		return nil, &InvocationError{
			Status:    resp.StatusCode,
			ErrorType: resp.Header.Get(function.HeaderErrorType),
			RequestID: rid,
			Message:   strings.TrimSpace(string(body)),
		}
	}
	return &Result{Body: body, RequestID: rid}, nil
}

// isDialError reports whether err happened before a connection to the server existed.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
