package utils

import "time"

// APIResponse is the JSON envelope every non-streaming endpoint returns.
// Data carries the payload on success, Error the detail on failure; neither
// appears in the other case.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data, Timestamp: time.Now()}
}

func ErrorResponse(message, detail string) APIResponse {
	return APIResponse{Success: false, Message: message, Error: detail, Timestamp: time.Now()}
}

// Round2 rounds to two decimal places, half-up. All currency math in the
// pipeline funnels through this before comparison or persistence.
func Round2(v float64) float64 {
	if v < 0 {
		return -Round2(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}
