// Package server exposes one analysis session over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/datalens-cli/internal/logger"
	"github.com/KaramelBytes/datalens-cli/internal/session"
)

// PDFPrinter turns a report into PDF bytes.
type PDFPrinter interface {
	PDF(ctx context.Context, fileName, report string) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	Session *session.Session
	Printer PDFPrinter
	Logger  *logger.Logger
	// MaxUploadBytes caps multipart uploads; zero means 32 MiB.
	MaxUploadBytes int64
	// AllowOrigins enables CORS for browser front-ends.
	AllowOrigins []string
}

type Server struct {
	engine    *gin.Engine
	sess      *session.Session
	printer   PDFPrinter
	log       *logger.Logger
	maxUpload int64
}

// New builds the router. The session must be non-nil.
func New(opt Options) *Server {
	log := opt.Logger
	if log == nil {
		log = logger.L()
	}
	s := &Server{
		engine:    gin.New(),
		sess:      opt.Session,
		printer:   opt.Printer,
		log:       log,
		maxUpload: opt.MaxUploadBytes,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 32 << 20
	}
	s.engine.Use(gin.Recovery(), requestID(), requestLogger(log))
	if len(opt.AllowOrigins) > 0 {
		s.engine.Use(corsFor(opt.AllowOrigins))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api := s.engine.Group("/api")
	{
		api.GET("/state", s.state)
		api.POST("/upload", s.upload)
		api.GET("/summary", s.summary)
		api.POST("/analyze", s.analyze)
		api.POST("/regenerate", s.regenerate)
		api.PUT("/directive", s.setDirective)
		api.GET("/report", s.report)
		api.GET("/export", s.export)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr, "session", s.sess.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}
