// Package server exposes document analysis, session chat and the drug
// catalog over HTTP, plus a gRPC health endpoint for operators.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/medilink/internal/analysis"
	"github.com/joseph-ayodele/medilink/internal/catalog"
)

// DefaultMaxUploadBytes bounds a multipart upload when Config leaves it unset.
const DefaultMaxUploadBytes = 25 << 20

// Analyzer is the document pipeline the HTTP handlers drive.
type Analyzer interface {
	Analyze(ctx context.Context, up analysis.Upload) (*analysis.Outcome, error)
	Chat(ctx context.Context, sessionID, message string) (string, error)
}

// Config holds HTTP server settings.
type Config struct {
	MaxUploadBytes int64
	GinMode        string
}

// Server owns the gin engine and its dependencies.
type Server struct {
	cfg      Config
	analyzer Analyzer
	drugs    catalog.Store
	logger   *slog.Logger
	engine   *gin.Engine
}

// New builds the router. drugs may be nil, in which case the catalog routes
// answer 503.
func New(cfg Config, analyzer Analyzer, drugs catalog.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &Server{cfg: cfg, analyzer: analyzer, drugs: drugs, logger: logger}

	r := gin.New()
	r.Use(requestID(), accessLog(logger), recovery(logger))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})

	r.GET("/", s.root)
	r.GET("/healthz", s.healthz)
	r.POST("/extract_text/", s.extractText)
	r.POST("/chat/:session_id", s.chat)
	r.GET("/drugs", s.listDrugs)
	r.GET("/drugs/export.xlsx", s.exportDrugs)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OCR and AI API is running"})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
