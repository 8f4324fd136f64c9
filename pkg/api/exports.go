package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// executionExport is the JSON export shape for GET
// /exports/execution/:id?format=json: the pipeline execution plus every
// code unit and function specification it produced.
type executionExport struct {
	Execution interface{} `json:"execution"`
	CodeUnits interface{} `json:"codeUnits"`
	Functions interface{} `json:"functions"`
}

// exportExecutionHandler handles GET /exports/execution/:id?format={json|csv|xlsx}.
// CSV/XLSX rendering is an explicitly out-of-scope external collaborator
// (spec.md §1's "file export... for language-specific compilation" Non-goal
// list) — only json is implemented; the others report 501 so callers don't
// mistake a missing feature for an empty result.
func (s *Server) exportExecutionHandler(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" {
		c.JSON(http.StatusNotImplemented, errorResponse{Error: "export format " + format + " is not implemented"})
		return
	}

	ctx := c.Request.Context()
	execution, err := s.store.PipelineExecutions.Get(ctx, c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	units, err := s.store.CodeUnits.ListByPipeline(ctx, execution.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	specs, err := s.store.FunctionSpecs.ListByPipeline(ctx, execution.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, executionExport{Execution: execution, CodeUnits: units, Functions: specs})
}
