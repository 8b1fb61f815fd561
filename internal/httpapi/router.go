// Package httpapi exposes the chat engine over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/internal/session"
	"github.com/goliatone/go-formchat/pkg/forms"
)

// ServiceName identifies the server in traces.
const ServiceName = "formchat"

// RouterConfig wires the router dependencies.
type RouterConfig struct {
	Sessions    *session.Service
	Forms       *forms.Registry
	Logger      *zap.Logger
	CORSOrigins []string
	Version     string
}

// NewRouter builds the gin engine serving the API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName))
	r.Use(requestLogger(log.Named("http")))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	h := &handler{sessions: cfg.Sessions, forms: cfg.Forms, version: version}

	r.GET("/health", h.health)

	api := r.Group("/api/v1")
	{
		api.POST("/chat", h.chat)
		api.DELETE("/sessions/:id", h.resetSession)
		api.GET("/form-schema/:name", h.formSchema)
		api.POST("/lookup", h.lookup)
		api.POST("/submissions", h.submit)
	}
	return r
}

// Serve runs handler on addr until ctx is cancelled, then shuts down within
// the grace period.
func Serve(ctx context.Context, addr string, handler http.Handler, grace time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
