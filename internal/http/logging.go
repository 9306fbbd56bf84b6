package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger prefers the request-scoped logger installed by RequestLogger
// and tags it with the handler and operation answering the request. The
// fallback covers handlers exercised outside the middleware chain.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}
	logger = logger.With("handler", handlerName, "operation", operation)
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}
