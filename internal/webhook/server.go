package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/robalyx/sharegate/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// maxBodySize caps the size of an accepted update.
const maxBodySize = 1 << 20

// Publisher republishes the pinned summary.
type Publisher interface {
	Publish(ctx context.Context) error
}

// Server exposes the webhook, refresh and health endpoints.
type Server struct {
	dispatcher     *Dispatcher
	publisher      Publisher
	secret         string
	handlerTimeout time.Duration
	logger         *zap.Logger
}

// NewServer creates the HTTP handler for the service.
func NewServer(dispatcher *Dispatcher, publisher Publisher, cfg *config.Server, logger *zap.Logger) http.Handler {
	logger = logger.Named("http")

	server := &Server{
		dispatcher:     dispatcher,
		publisher:      publisher,
		secret:         cfg.Secret,
		handlerTimeout: time.Duration(cfg.HandlerTimeout) * time.Millisecond,
		logger:         logger,
	}

	requests := &requestLogger{logger: logger}

	router := bunrouter.New(
		bunrouter.Use(requests.AsRESTMiddleware),
	)

	router.POST(WebhookPath(cfg.Secret), server.handleWebhook)
	router.POST("/refresh", server.handleRefresh)
	router.GET("/healthz", server.handleHealth)

	return gzhttp.GzipHandler(router)
}

// WebhookPath returns the route updates are posted to for secret.
func WebhookPath(secret string) string {
	if secret == "" {
		return "/webhook"
	}
	return "/" + secret + "/webhook"
}

// handleWebhook dispatches one update. Telegram always gets a 200 so it
// never redelivers; malformed payloads are flagged in the body.
func (s *Server) handleWebhook(w http.ResponseWriter, req bunrouter.Request) error {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
	if err != nil {
		s.logger.Warn("Failed to read update body", zap.Error(err))
		return bunrouter.JSON(w, bunrouter.H{"ok": false})
	}

	// Keep processing if the caller disconnects, within the handler budget
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), s.handlerTimeout)
	defer cancel()

	if err := s.dispatcher.Dispatch(ctx, body); err != nil {
		if errors.Is(err, ErrMalformedEvent) {
			return bunrouter.JSON(w, bunrouter.H{"ok": false})
		}
		s.logger.Error("Failed to dispatch update",
			zap.String("requestID", RequestID(req.Context())),
			zap.Error(err))
	}

	return bunrouter.JSON(w, bunrouter.H{"ok": true})
}

// handleRefresh republishes the summary on demand.
func (s *Server) handleRefresh(w http.ResponseWriter, req bunrouter.Request) error {
	if s.secret != "" {
		given := req.URL.Query().Get("secret")
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.secret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(req.Context(), s.handlerTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx); err != nil {
		s.logger.Error("Refresh failed",
			zap.String("requestID", RequestID(req.Context())),
			zap.Error(err))
		http.Error(w, "error", http.StatusInternalServerError)
		return nil
	}

	_, err := io.WriteString(w, "ok")
	return err
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ bunrouter.Request) error {
	_, err := io.WriteString(w, "ok")
	return err
}
