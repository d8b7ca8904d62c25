package runtime

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/3s-rg-codes/fcstream/pkg/function"
	"github.com/3s-rg-codes/fcstream/pkg/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName      = "fcstream.Function"
	InitializeMethod = "/" + ServiceName + "/Initialize"
	InvokeMethod     = "/" + ServiceName + "/Invoke"
)

// FunctionServer is the server API of the fcstream.Function service.
type FunctionServer interface {
	Initialize(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Invoke(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

var functionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FunctionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Initialize", Handler: initializeHandler},
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fcstream/function.proto",
}

func RegisterFunctionServer(s grpc.ServiceRegistrar, srv FunctionServer) {
	s.RegisterService(&functionServiceDesc, srv)
}

func initializeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionServer).Initialize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InitializeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FunctionServer).Initialize(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FunctionServer).Invoke(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcFunction struct {
	rt *Runtime
}

// NewGRPCServer returns a gRPC server exposing rt as fcstream.Function together with the
// standard health service.
func NewGRPCServer(rt *Runtime, opts ...grpc.ServerOption) *grpc.Server {
	options := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(utils.InterceptorLogger(rt.Logger(), map[string]string{
			function.HeaderRequestID:    "request_id",
			function.HeaderFunctionName: "function",
		}), rt.unaryActivityInterceptor),
	}
	server := grpc.NewServer(append(options, opts...)...)

	RegisterFunctionServer(server, &grpcFunction{rt: rt})

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server
}

func (g *grpcFunction) Initialize(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	fctx := g.newContext(ctx)
	if err := g.rt.Initialize(fctx); err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &emptypb.Empty{}, nil
}

func (g *grpcFunction) Invoke(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	fctx := g.newContext(ctx)

	var out bytes.Buffer
	if err := g.rt.Invoke(fctx, bytes.NewReader(req.GetValue()), &out); err != nil {
		fctx.Logger().Error("Invocation failed", "error", err)
		var initErr *InitializationError
		if errors.As(err, &initErr) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(out.Bytes()), nil
}

func (g *grpcFunction) newContext(ctx context.Context) *function.Context {
	h := http.Header{}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for k, vals := range md {
			for _, v := range vals {
				h.Add(k, v)
			}
		}
	}

	fctx := g.rt.NewContext(ctx, h)
	_ = grpc.SetHeader(ctx, metadata.Pairs(function.HeaderRequestID, fctx.RequestID))
	return fctx
}

func (r *Runtime) unaryActivityInterceptor(
	ctx context.Context,
	req any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	r.updateActivity()
	return handler(ctx, req)
}
