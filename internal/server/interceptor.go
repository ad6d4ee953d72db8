package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/matcert-extractor/internal/common"
)

// RequestIDHeader is the metadata key read for caller-provided request IDs.
const RequestIDHeader = "x-request-id"

// LoggingInterceptor attaches a request ID and logger to the context and logs
// each call with its status code and duration.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)
		ctx = common.WithLogger(ctx, logger)

		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{
			"req_id", reqID,
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("grpc.call.failed", append(attrs, "err", err)...)
		} else {
			logger.Info("grpc.call.ok", attrs...)
		}
		return resp, err
	}
}
