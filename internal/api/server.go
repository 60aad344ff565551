package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"finwatch/internal/api/handlers"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *pterm.Logger
	port   int
}

// Config holds server configuration
type Config struct {
	Host       string
	Port       int
	Production bool
}

// NewServer creates a new HTTP server exposing the reporting API
func NewServer(cfg *Config, dashboardHandler *handlers.DashboardHandler, ingestionHandler *handlers.IngestionHandler, logger *pterm.Logger) *Server {
	// Set Gin mode
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// JSON API only: dashboards consume these endpoints
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "FinWatch API Server",
			"api":     "/api/v1",
			"health":  "/health",
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		// Summary stats
		api.GET("/stats/summary", dashboardHandler.GetSummary)

		// Timeline data
		api.GET("/stats/timeline", dashboardHandler.GetEventTimeline)

		// Top stats
		api.GET("/stats/top/source-ips", dashboardHandler.GetTopSourceIPs)

		// Distribution stats
		api.GET("/stats/distribution/categories", dashboardHandler.GetCategoryDistribution)
		api.GET("/stats/distribution/severities", dashboardHandler.GetSeverityDistribution)
		api.GET("/stats/distribution/device-types", dashboardHandler.GetDeviceTypeDistribution)

		// Device inventory
		api.GET("/devices", dashboardHandler.GetDevices)
		api.GET("/devices/:hostname", dashboardHandler.GetDevice)

		// Security events
		api.GET("/events/recent", dashboardHandler.GetRecentEvents)
		api.GET("/events/source/:ip", dashboardHandler.GetEventsBySourceIP)

		// Ingestion control
		api.GET("/ingestion/reports", ingestionHandler.GetReports)
		api.POST("/ingestion/run", ingestionHandler.TriggerRun)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		router: router,
		server: &http.Server{
			Addr:           addr,
			Handler:        router,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger: logger,
		port:   cfg.Port,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("Starting web server", s.logger.Args("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.WithCaller().Error("Web server failed", s.logger.Args("error", err))
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web server...")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
