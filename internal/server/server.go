// Package server exposes the pipelines over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carepath/internal/common/config"
	"carepath/internal/common/database"
	"carepath/internal/common/logger"
	"carepath/internal/pipeline"
)

// Server wires the HTTP surface to the two pipelines and the store.
type Server struct {
	cfg        config.Config
	docs       *pipeline.DocumentPipeline
	adherence  *pipeline.AdherencePipeline
	store      *database.Store
	log        logger.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func New(cfg config.Config, docs *pipeline.DocumentPipeline, adherencePipeline *pipeline.AdherencePipeline, store *database.Store, log logger.Logger) (*Server, error) {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		docs:      docs,
		adherence: adherencePipeline,
		store:     store,
		log:       log.With(map[string]interface{}{"component": "server"}),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())
	engine.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	rateLimit, err := clientRateLimiter(cfg.Server.ClientRateLimit)
	if err != nil {
		return nil, fmt.Errorf("configure rate limiter: %w", err)
	}
	engine.Use(rateLimit)

	engine.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		docs := api.Group("/documents")
		docs.POST("/process", s.handleProcessDocument)
		docs.POST("/process-text", s.handleProcessText)
		docs.GET("/session/:sessionId", s.handleGetSession)

		adherence := api.Group("/adherence")
		adherence.POST("/check-in", s.handleCheckIn)
		adherence.GET("/history/:patientId", s.handleAdherenceHistory)
		adherence.GET("/status/:patientId", s.handleAdherenceStatus)

		patients := api.Group("/patients")
		patients.POST("", s.handleCreatePatient)
		patients.GET("/:patientId", s.handleGetPatient)
		patients.GET("/:patientId/care-plan", s.handleGetCarePlan)
	}

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s, nil
}

// Engine exposes the router for httptest.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) Start() error {
	s.log.Info("http server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if err := s.store.Ping(c.Request.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"version":   s.cfg.App.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request handled", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
