package common

// ErrorResponse is the JSON envelope for every failed exchange and for
// failures outside the token endpoints
// @Description Error envelope
type ErrorResponse struct {
	// @Description Human readable error category
	// @example "Failed to exchange authorization code"
	Error string `json:"error" example:"Failed to exchange authorization code"`

	// @Description Underlying cause, passed through from the provider when available
	// @example "invalid flow state, no valid flow state found"
	Message string `json:"message,omitempty" example:"invalid flow state, no valid flow state found"`

	// @Description Machine readable error code
	// @example "flow_state_not_found"
	Code string `json:"code,omitempty" example:"flow_state_not_found"`

	// @Description Guidance for fixing the request
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by the liveness probe
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// NewErrorResponse creates an error envelope
func NewErrorResponse(message, detail, code, details string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		Message: detail,
		Code:    code,
		Details: details,
	}
}

// Healthy is the static liveness body
func Healthy() HealthResponse {
	return HealthResponse{Status: "ok"}
}
