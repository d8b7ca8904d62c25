package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/golang-cz/devslog"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// InterceptorLogger returns a grpc.UnaryServerInterceptor that logs finished calls through l.
// fromMetadata maps incoming metadata keys to the log field they are written as; a key missing
// from the call is not logged.
func InterceptorLogger(l *slog.Logger, fromMetadata map[string]string) grpc.UnaryServerInterceptor {
	var keys []string
	for k := range fromMetadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	metadataFields := func(ctx context.Context) logging.Fields {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil
		}
		var fields logging.Fields
		for _, key := range keys {
			if v := md.Get(key); len(v) > 0 && v[0] != "" {
				fields = append(fields, fromMetadata[key], v[0])
			}
		}
		return fields
	}

	adapted := logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
	return logging.UnaryServerInterceptor(adapted,
		logging.WithLogOnEvents(logging.FinishCall),
		logging.WithFieldsFromContext(metadataFields),
		logging.WithDisableLoggingFields(
			logging.ComponentFieldKey,
			logging.MethodTypeFieldKey,
			logging.SystemTag[0],
			logging.SystemTag[1],
		),
	)
}

// ParseLevel maps debug, info, warn and error to a slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger sets up a slog logger with the given level, format (text, json or dev) and
// file path. An empty path logs to stdout. The returned func closes the log file.
func SetupLogger(level, format, filePath string) (*slog.Logger, func() error, error) {
	if filePath == "" {
		return NewLogger(os.Stdout, level, format), func() error { return nil }, nil
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(file, level, format), file.Close, nil
}

func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "dev":
		opts.AddSource = true
		handler = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions:    opts,
			MaxSlicePrintSize: 5,
			SortKeys:          true,
			NewLineAfterLog:   true,
			StringerFormatter: true,
		})
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
