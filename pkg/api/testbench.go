package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ensemble-maestro/swarm/pkg/store"
)

// startTestbenchHandler handles POST /testbench/start: it starts a full
// Planning→Validating pipeline run for an existing project and returns the
// new execution's id immediately, without waiting for the run to finish.
func (s *Server) startTestbenchHandler(c *gin.Context) {
	var req startTestbenchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	executionID, err := s.executor.StartAsync(c.Request.Context(), req.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, startTestbenchResponse{ExecutionID: executionID})
}

// getTestbenchExecutionHandler handles GET /testbench/executions/:id,
// reporting the pipeline execution's current stage, status, and progress.
func (s *Server) getTestbenchExecutionHandler(c *gin.Context) {
	execution, err := s.store.PipelineExecutions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}
