package grpcadapter

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recoverTo は defer から呼ぶ。panic を Internal に変えて *errp に入れる。
func recoverTo(logger *zap.Logger, kind, method string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error("panic recovered in "+kind+" handler",
		zap.Any("panic", r),
		zap.String("method", method),
		zap.ByteString("stacktrace", debug.Stack()),
	)
	*errp = status.Error(codes.Internal, "internal error")
}

func NewRecoveryUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer recoverTo(logger, "unary", info.FullMethod, &err)
		return handler(ctx, req)
	}
}

func NewRecoveryStreamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer recoverTo(logger, "stream", info.FullMethod, &err)
		return handler(srv, ss)
	}
}
