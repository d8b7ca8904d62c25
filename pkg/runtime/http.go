package runtime

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/3s-rg-codes/fcstream/pkg/function"
)

// Paths of the custom runtime contract.
const (
	PathInitialize = "/initialize"
	PathInvoke     = "/invoke"
	PathHealth     = "/healthz"
)

type httpServer struct {
	rt     *Runtime
	logger *slog.Logger
}

// NewHTTPHandler serves the custom runtime endpoints for rt.
func NewHTTPHandler(rt *Runtime) http.Handler {
	s := &httpServer{rt: rt, logger: rt.Logger()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathInitialize, s.initialize)
	mux.HandleFunc("POST "+PathInvoke, s.invoke)
	mux.HandleFunc("GET "+PathHealth, s.health)
	return s.accessLog(mux)
}

func (s *httpServer) initialize(w http.ResponseWriter, r *http.Request) {
	fctx := s.rt.NewContext(r.Context(), r.Header)
	w.Header().Set(function.HeaderRequestID, fctx.RequestID)

	if err := s.rt.Initialize(fctx); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *httpServer) invoke(w http.ResponseWriter, r *http.Request) {
	fctx := s.rt.NewContext(r.Context(), r.Header)
	w.Header().Set(function.HeaderRequestID, fctx.RequestID)

	// the response is buffered so a failing handler never leaves a partial 200 behind
	var out bytes.Buffer
	if err := s.rt.Invoke(fctx, r.Body, &out); err != nil {
		fctx.Logger().Error("Invocation failed", "error", err)
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Bytes()); err != nil {
		fctx.Logger().Warn("Failed to write response", "error", err)
	}
}

func (s *httpServer) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// fail reports a function error the way the custom runtime contract expects it.
func (s *httpServer) fail(w http.ResponseWriter, err error) {
	w.Header().Set(function.HeaderStatus, strconv.Itoa(http.StatusNotFound))

	var initErr *InitializationError
	if errors.As(err, &initErr) {
		w.Header().Set(function.HeaderErrorType, "InitializationError")
	} else {
		w.Header().Set(function.HeaderErrorType, "UnhandledInvocationError")
	}
	http.Error(w, err.Error(), http.StatusNotFound)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (s *httpServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", w.Header().Get(function.HeaderRequestID),
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
		)
	})
}
