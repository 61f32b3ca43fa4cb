package dataapi

import (
	"context"
	"log/slog"
	"path"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/rafaeljc/switchboard/internal/logger"
	"github.com/rafaeljc/switchboard/internal/observability"
)

// RequestIDHeader is the metadata key carrying the caller's request id.
const RequestIDHeader = "x-request-id"

// maxRequestIDLen caps caller-supplied ids before they reach the logs.
const maxRequestIDLen = 128

// RequestLoggerInterceptor injects a request-scoped logger into the context
// and logs the outcome of every RPC. The request id is taken from the
// x-request-id metadata or generated, and echoed back in the response header.
func RequestLoggerInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		reqID := incomingRequestID(ctx)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))

		rpcLogger := base.With(
			slog.String("request_id", reqID),
			slog.String("rpc_method", info.FullMethod),
		)
		ctx = logger.WithContext(ctx, rpcLogger)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.Internal, codes.DataLoss, codes.Unknown:
			level = slog.LevelError
		case codes.Unavailable, codes.DeadlineExceeded, codes.Unimplemented:
			level = slog.LevelWarn
		}

		rpcLogger.Log(ctx, level, "grpc request completed",
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
			slog.String("peer_addr", peerAddr(ctx)),
		)
		return resp, err
	}
}

// incomingRequestID returns the caller's request id, or "" when it is
// missing, too long or not printable ASCII.
func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	// metadata keys are normalized to lowercase
	ids := md.Get(RequestIDHeader)
	if len(ids) == 0 || len(ids[0]) > maxRequestIDLen {
		return ""
	}
	for i := 0; i < len(ids[0]); i++ {
		if c := ids[0][i]; c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return ids[0]
}

// RecoveryInterceptor turns a handler panic into codes.Internal so one bad
// request cannot take the server down. It must run inside
// RequestLoggerInterceptor to log with the request id.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx).Error("grpc handler panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// ObservabilityInterceptor records request count and latency per method
// and status code.
func ObservabilityInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := path.Base(info.FullMethod)
		code := status.Code(err).String()
		observability.DataPlaneGrpcDuration.WithLabelValues(method, code).Observe(time.Since(start).Seconds())
		observability.DataPlaneGrpcTotal.WithLabelValues(method, code).Inc()
		return resp, err
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
