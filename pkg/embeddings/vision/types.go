package vision

// modelInfo is a single entry of the backend's model listing.
type modelInfo struct {
	Name         string `json:"name"`
	EmbeddingDim int    `json:"embedding_dim"`
	ImageSize    int    `json:"image_size,omitempty"`
	Type         string `json:"type,omitempty"`
	Backend      string `json:"backend,omitempty"`
}

// listModelsResponse is the response of GET /api/models.
type listModelsResponse struct {
	Models []modelInfo `json:"models"`
}

// embedImageRequest is the request body of POST /api/embed/image.
type embedImageRequest struct {
	Model  string `json:"model"`
	Image  string `json:"image"`
	Device string `json:"device,omitempty"`
}

// embedImageResponse is the response of POST /api/embed/image.
type embedImageResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension,omitempty"`
}

// errorResponse is returned by the backend on failure.
type errorResponse struct {
	Error string `json:"error"`
}
