package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/3s-rg-codes/fcstream/pkg/config"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Serve runs the HTTP and, if configured, the gRPC server for rt until ctx is cancelled or the
// idle timeout fires. Both servers are shut down gracefully before Serve returns.
func Serve(ctx context.Context, cfg config.ServerConfig, rt *Runtime) error {
	logger := rt.Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpLis, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddress, err)
	}

	var grpcLis net.Listener
	if cfg.GRPCAddress != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddress, err)
		}
	}

	return serve(ctx, cancel, cfg, rt, httpLis, grpcLis, func() {
		logger.Info("Function runtime ready", "http", httpLis.Addr(), "grpc", addrOf(grpcLis))
	})
}

func serve(ctx context.Context, cancel context.CancelFunc, cfg config.ServerConfig, rt *Runtime, httpLis, grpcLis net.Listener, ready func()) error {
	logger := rt.Logger()
	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Handler:           NewHTTPHandler(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var grpcServer *grpc.Server
	if grpcLis != nil {
		grpcServer = NewGRPCServer(rt)
		g.Go(func() error {
			if err := grpcServer.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	if cfg.IdleTimeout > 0 {
		g.Go(func() error {
			if rt.MonitorIdle(gctx, cfg.IdleTimeout) {
				cancel()
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownTimeout := cfg.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if grpcServer != nil {
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-shutdownCtx.Done():
				grpcServer.Stop()
			}
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if ready != nil {
		ready()
	}

	err := g.Wait()
	stats := rt.Stats()
	logger.Info("Function runtime stopped", "invocations", stats.Invocations, "failures", stats.Failures)
	return err
}

func addrOf(l net.Listener) string {
	if l == nil {
		return ""
	}
	return l.Addr().String()
}
