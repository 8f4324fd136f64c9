package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/store"
)

// createProjectHandler handles POST /projects.
func (s *Server) createProjectHandler(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	project := &models.Project{
		Name:             req.Name,
		Requirements:     req.Requirements,
		TargetLanguage:   req.TargetLanguage,
		DeploymentTarget: req.DeploymentTarget,
	}
	if err := s.store.Projects.Create(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, project)
}

// listProjectsHandler handles GET /projects.
func (s *Server) listProjectsHandler(c *gin.Context) {
	projects, err := s.store.Projects.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, projects)
}

// getProjectHandler handles GET /projects/:id.
func (s *Server) getProjectHandler(c *gin.Context) {
	project, err := s.store.Projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// cancelProjectHandler handles POST /projects/:id/cancel. It requests
// cancellation of the project's most recent pipeline execution; the
// Executor observes the flip out of band, between stages.
func (s *Server) cancelProjectHandler(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := s.store.Projects.Get(c.Request.Context(), projectID); err != nil {
		respondStoreError(c, err)
		return
	}

	executions, err := s.store.PipelineExecutions.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if len(executions) == 0 {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no pipeline execution found for project"})
		return
	}

	latest := executions[0]
	if err := s.store.PipelineExecutions.RequestCancel(c.Request.Context(), latest.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusConflict, errorResponse{Error: "pipeline execution is already terminal"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.Status(http.StatusAccepted)
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
