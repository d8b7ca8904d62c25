package client

import (
	"context"
	"fmt"

	"github.com/3s-rg-codes/fcstream/pkg/function"
	"github.com/3s-rg-codes/fcstream/pkg/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCClient calls the fcstream.Function service.
type GRPCClient struct {
	conn *grpc.ClientConn
}

func NewGRPCClient(address string, opts ...grpc.DialOption) (*GRPCClient, error) {
	options := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	conn, err := grpc.NewClient(address, append(options, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", address, err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Initialize(ctx context.Context, requestID string) error {
	ctx = withRequestID(ctx, requestID)
	if err := c.conn.Invoke(ctx, runtime.InitializeMethod, &emptypb.Empty{}, new(emptypb.Empty), grpc.WaitForReady(true)); err != nil {
		return fromStatus(err, "")
	}
	return nil
}

func (c *GRPCClient) Invoke(ctx context.Context, payload []byte, requestID string) (*Result, error) {
	ctx = withRequestID(ctx, requestID)

	var header metadata.MD
	out := new(wrapperspb.BytesValue)
	err := c.conn.Invoke(ctx, runtime.InvokeMethod, wrapperspb.Bytes(payload), out, grpc.Header(&header), grpc.WaitForReady(true))
	rid := firstValue(header, function.HeaderRequestID)
	if err != nil {
		return nil, fromStatus(err, rid)
	}
	return &Result{Body: out.GetValue(), RequestID: rid}, nil
}

func withRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, function.HeaderRequestID, requestID)
}

// fromStatus turns a status returned by the function into an InvocationError. Transport
// failures are returned wrapped as they are.
func fromStatus(err error, requestID string) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("grpc call failed: %w", err)
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return &InvocationError{Status: int(st.Code()), ErrorType: "InitializationError", RequestID: requestID, Message: st.Message()}
	case codes.Internal:
		return &InvocationError{Status: int(st.Code()), ErrorType: "UnhandledInvocationError", RequestID: requestID, Message: st.Message()}
	default:
		return fmt.Errorf("grpc call failed: %w", err)
	}
}

func firstValue(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
