package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// Success wraps a result in an ok response.
func Success(result any) Response {
	return Response{Status: StatusOK, Result: result}
}

// SuccessWithMessage wraps a result and a message in an ok response.
func SuccessWithMessage(message string, result any) Response {
	return Response{Status: StatusOK, Message: message, Result: result}
}

// Error builds an error response.
func Error(message string) Response {
	return Response{Status: StatusError, Message: message}
}

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response any) {
	// Marshal the response to JSON first to catch encoding errors before writing headers
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}
