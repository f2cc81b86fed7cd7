package api

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse wraps list endpoint results.
type ListResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

// ChainStatus describes one registered chain integration.
type ChainStatus struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	FactoryAddress string `json:"factory_address"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string        `json:"status"`
	Chains []ChainStatus `json:"chains"`
}
