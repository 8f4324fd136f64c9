// Package api implements the HTTP surface spec.md §6 lists "not core, for
// completeness": project CRUD, a testbench endpoint that kicks off a full
// pipeline run, execution status polling, export, and health. Grounded on
// the teacher's pkg/api/server.go router/middleware/handler split, but
// built on gin rather than echo — cmd/tarsy's own main.go already reaches
// for gin for its minimal router, and SPEC_FULL.md commits to it here.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/pipeline"
	"github.com/ensemble-maestro/swarm/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	store      *store.Store
	executor   *pipeline.Executor
}

// NewServer builds a Server with every route registered, ready for
// Start/StartWithListener.
func NewServer(cfg *config.Config, st *store.Store, executor *pipeline.Executor) *Server {
	s := &Server{
		engine:   gin.New(),
		cfg:      cfg,
		store:    st,
		executor: executor,
	}

	s.engine.Use(gin.Logger(), gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	s.engine.POST("/projects", s.createProjectHandler)
	s.engine.GET("/projects", s.listProjectsHandler)
	s.engine.GET("/projects/:id", s.getProjectHandler)
	s.engine.POST("/projects/:id/cancel", s.cancelProjectHandler)

	s.engine.POST("/testbench/start", s.startTestbenchHandler)
	s.engine.GET("/testbench/executions/:id", s.getTestbenchExecutionHandler)

	s.engine.GET("/exports/execution/:id", s.exportExecutionHandler)
}

// Start runs the HTTP server on addr, blocking until it stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health, pinging the database and reporting
// configuration stats the way the teacher's healthHandler does.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats := s.cfg.Stats()
	resp := HealthResponse{
		Status: "healthy",
		Configuration: ConfigurationStats{
			Agents:       stats.Agents,
			LLMProviders: stats.LLMProviders,
		},
	}

	if err := s.store.Pool().Ping(reqCtx); err != nil {
		resp.Status = "unhealthy"
		resp.DatabaseError = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}
