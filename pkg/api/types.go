package api

// HealthResponse is GET /health's body.
type HealthResponse struct {
	Status        string             `json:"status"`
	DatabaseError string             `json:"databaseError,omitempty"`
	Configuration ConfigurationStats `json:"configuration"`
}

// ConfigurationStats mirrors config.ConfigStats for the health endpoint.
type ConfigurationStats struct {
	Agents       int `json:"agents"`
	LLMProviders int `json:"llmProviders"`
}

// createProjectRequest is POST /projects's body.
type createProjectRequest struct {
	Name             string `json:"name" binding:"required"`
	Requirements     string `json:"requirements" binding:"required"`
	TargetLanguage   string `json:"targetLanguage" binding:"required"`
	DeploymentTarget string `json:"deploymentTarget"`
}

// startTestbenchRequest is POST /testbench/start's body.
type startTestbenchRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
}

// startTestbenchResponse is POST /testbench/start's body.
type startTestbenchResponse struct {
	ExecutionID string `json:"executionId"`
}

// errorResponse is the body returned for any non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}
