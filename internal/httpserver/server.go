package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"artnet-node/internal/config"
)

// Server wraps the gin engine and its HTTP server
type Server struct {
	srv *http.Server
}

// New builds the gin engine with health, readiness, metrics and, when api is
// non-nil, the node status routes
func New(cfg config.HTTPConfig, metricsPath string, metricsHandler http.Handler, readyFn func() bool, api *API) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if readyFn == nil || readyFn() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	if api != nil {
		api.register(r.Group("/api"))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Start serves HTTP and blocks until the server stops
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
