package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id back to the caller.
const RequestIDHeader = "X-Request-Id"

type requestIDCtxKey struct{}

// RequestID returns the id assigned to the current request.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// requestLogger assigns every request an id and logs its outcome.
type requestLogger struct {
	logger *zap.Logger
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// AsRESTMiddleware returns the bunrouter middleware.
func (m *requestLogger) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		id := uuid.NewString()
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		err := next(rec, req.WithContext(context.WithValue(req.Context(), requestIDCtxKey{}, id)))

		m.logger.Debug("Handled request",
			zap.String("requestID", id),
			zap.String("method", req.Method),
			zap.String("route", req.Route()),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))

		return err
	}
}
