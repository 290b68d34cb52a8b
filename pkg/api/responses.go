package api

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string            `json:"status"`
	ActiveMailboxes int               `json:"activeMailboxes,omitempty"`
	CircuitBreakers map[string]string `json:"circuitBreakers,omitempty"`
	Database        string            `json:"database,omitempty"`
}

// RuleSetInspectResponse is returned by GET /debug/ruleset/:key.
type RuleSetInspectResponse struct {
	Found   bool        `json:"found"`
	RuleSet interface{} `json:"ruleSet,omitempty"`
}

// errorResponse is the uniform error body shape.
type errorResponse struct {
	Error string `json:"error"`
}
