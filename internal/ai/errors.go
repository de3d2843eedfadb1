package ai

import (
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from an AI backend.
type APIError struct {
	Backend string
	Status  int
	// Code is the provider's symbolic code, e.g. RESOURCE_EXHAUSTED or model_decommissioned.
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s api error (%d %s): %s", e.Backend, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Backend, e.Status, msg)
}
