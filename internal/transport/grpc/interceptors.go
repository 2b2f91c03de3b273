package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"peakpartner/backend/internal/ratelimit"
)

// RequestTimeout bounds calls that arrive without a deadline so a request
// blocked on a slot lock can not wait forever.
func RequestTimeout(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type participantRequest interface {
	GetParticipantId() string
}

// RateLimit rejects calls over the actor's budget with ResourceExhausted.
// Calls without a participant id are keyed by peer address.
func RateLimit(l *ratelimit.Limiter, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.ratelimit"))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := actorKey(ctx, req)
		if !l.Allow(key) {
			log.Warn("rate limited", slog.String("key", key), slog.String("method", info.FullMethod))
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		}
		return handler(ctx, req)
	}
}

func actorKey(ctx context.Context, req any) string {
	if pr, ok := req.(participantRequest); ok {
		if id := strings.TrimSpace(pr.GetParticipantId()); id != "" {
			return "participant:" + id
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if i := strings.LastIndex(addr, ":"); i > 0 {
			addr = addr[:i]
		}
		return "peer:" + addr
	}
	return "anonymous"
}
