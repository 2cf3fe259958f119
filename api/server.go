package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/taskboard/config"
	"example.com/taskboard/eventstore"
	"example.com/taskboard/handlers"
	"example.com/taskboard/projections"
	"example.com/taskboard/queries"
	"example.com/taskboard/repository"
)

// Server is the HTTP server for the API
type Server struct {
	cfg         config.Config
	router      *gin.Engine
	httpServer  *http.Server
	db          *gorm.DB
	store       eventstore.EventStore
	repo        *repository.TaskRepository
	taskHandler *handlers.TaskHandler
	taskQueries *queries.TaskQueries
	rebuilder   *projections.Rebuilder
}

// NewServer creates a new API server
func NewServer(
	cfg config.Config,
	db *gorm.DB,
	store eventstore.EventStore,
	repo *repository.TaskRepository,
	taskHandler *handlers.TaskHandler,
	taskQueries *queries.TaskQueries,
	rebuilder *projections.Rebuilder,
) *Server {
	server := &Server{
		cfg:         cfg,
		router:      gin.Default(),
		db:          db,
		store:       store,
		repo:        repo,
		taskHandler: taskHandler,
		taskQueries: taskQueries,
		rebuilder:   rebuilder,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware adds middleware to the router
func (s *Server) setupMiddleware() {
	s.router.Use(RequestIDMiddleware())
	if s.cfg.CorsEnabled {
		s.router.Use(CORSMiddleware(s.cfg.CorsOrigins))
	}
	s.router.Use(gin.Recovery())
	s.router.Use(LoggingMiddleware())
}

// setupRoutes defines the API routes
func (s *Server) setupRoutes() {
	// Health checks
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	s.router.GET("/health", s.healthCheck)

	// API v1 group
	v1 := s.router.Group("/api/v1")

	taskRoutes := v1.Group("/tasks")
	{
		taskRoutes.POST("", s.createTask)
		taskRoutes.GET("", s.listTasks)
		taskRoutes.GET("/stats", s.creatorStats)
		taskRoutes.GET("/search", s.searchTasks)
		taskRoutes.GET("/:id", s.getTask)
		taskRoutes.PATCH("/:id", s.updateTask)
		taskRoutes.POST("/:id/complete", s.completeTask)
		taskRoutes.POST("/:id/reopen", s.reopenTask)
		taskRoutes.DELETE("/:id", s.deleteTask)
	}

	// Operational endpoints exposing the raw event log
	debugRoutes := s.router.Group("/debug")
	{
		debugRoutes.GET("/events", s.listEvents)
		debugRoutes.GET("/events/:id", s.getAggregateEvents)
		debugRoutes.POST("/refresh/:id", s.refreshReadModel)
		debugRoutes.GET("/task/:id", s.getAggregateState)
	}
}

// healthCheck reports database connectivity
func (s *Server) healthCheck(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPServerAddress,
		Handler:      s.router,
		ReadTimeout:  s.cfg.HTTPServerTimeout,
		WriteTimeout: s.cfg.HTTPServerTimeout,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.HTTPServerAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
