package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retrieval"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// ReasonNotFound is reported for unknown documents.
const ReasonNotFound = "not_found"

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Data   any    `json:"data,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Debug("failed to write response", "err", err)
		}
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, reason, message string) {
	JSON(w, status, ErrorResponse{Error: message, Reason: reason})
}

// HandleError writes err with the status its reason maps to.
func HandleError(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), ReasonFor(err), err.Error())
}

// ReasonFor extends core.Reason with the storage lookup miss.
func ReasonFor(err error) string {
	if storage.IsNotFound(err) {
		return ReasonNotFound
	}
	return core.Reason(err)
}

// StatusFor maps errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, retrieval.ErrInvalidBudget):
		return http.StatusBadRequest
	case storage.IsNotFound(err):
		return http.StatusNotFound
	}

	switch core.Reason(err) {
	case core.ReasonInvalidInput:
		return http.StatusBadRequest
	case core.ReasonRetrievalUnavailable,
		core.ReasonEmbeddingUnavailable,
		core.ReasonExtractionUnavailable,
		core.ReasonGraphUnavailable,
		core.ReasonVectorUnavailable:
		return http.StatusServiceUnavailable
	case core.ReasonCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
